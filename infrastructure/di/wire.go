//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"comments-api/infrastructure/config"

	"github.com/google/wire"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideDomainConfig,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
	ProvideStore,
	ProvideRedisClient,
	ProvideCache,
	ProvideCommentRepository,
	ProvideMetrics,
	ProvideTracer,
	ProvideModerationHook,
	ProvideEventPublisher,
	ProvideDispatcher,
	ProvideReviewQueue,
	ProvideCommentFactory,
	ProvideCommandBus,
	ProvideQueryBus,
	ProvideJWTValidator,
	ProvideRateLimiter,
	ProvideErrorHandler,
	ProvideHTTPHandler,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}
