package di

import (
	"net/http"

	"comments-api/application/commands/bus"
	"comments-api/application/moderation"
	"comments-api/application/ports"
	querybus "comments-api/application/queries/bus"
	"comments-api/infrastructure/config"
	"comments-api/pkg/auth"
	"comments-api/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Store      *Store
	Repository ports.CommentRepository
	Dispatcher *moderation.Dispatcher
	CommandBus *bus.CommandBus
	QueryBus   *querybus.QueryBus
	Metrics    *observability.Metrics
	Validator  *auth.JWTValidator
	Handler    http.Handler
}
