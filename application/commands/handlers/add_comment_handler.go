package handlers

import (
	"context"

	"comments-api/application/commands"
	"comments-api/application/ports"
	"comments-api/domain/config"
	"comments-api/domain/core/entities"
	"comments-api/domain/events"
	"comments-api/pkg/utils"

	"go.uber.org/zap"
)

// AddCommentHandler handles comment creation commands
type AddCommentHandler struct {
	repo      ports.CommentRepository
	factory   *entities.CommentFactory
	reviews   ports.ReviewQueue
	publisher ports.EventPublisher
	cfg       *config.DomainConfig
	logger    *zap.Logger
}

// NewAddCommentHandler creates a new add comment handler
func NewAddCommentHandler(
	repo ports.CommentRepository,
	factory *entities.CommentFactory,
	reviews ports.ReviewQueue,
	publisher ports.EventPublisher,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *AddCommentHandler {
	return &AddCommentHandler{
		repo:      repo,
		factory:   factory,
		reviews:   reviews,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Handle builds, stores and queues the comment for review. Review runs
// asynchronously and cannot fail the command.
func (h *AddCommentHandler) Handle(ctx context.Context, cmd commands.AddCommentCommand) (*entities.Record, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	now := utils.NowUTC()
	comment, err := h.factory.MakeComment(cmd.Fields(now))
	if err != nil {
		return nil, err
	}
	if h.cfg.PublishOnCreate {
		comment.Publish()
	}

	stored, err := h.repo.Insert(ctx, comment.Record())
	if err != nil {
		h.logger.Error("Failed to insert comment",
			zap.String("commentID", comment.ID()),
			zap.String("postID", comment.PostID()),
			zap.Error(err),
		)
		return nil, err
	}

	h.reviews.Submit(events.NewReviewRequested(comment, now))
	publishEvents(ctx, h.publisher, h.logger,
		events.NewCommentPosted(stored.ID, stored.PostID, stored.ReplyToID, stored.Published, now),
	)

	h.logger.Info("Comment posted",
		zap.String("commentID", stored.ID),
		zap.String("postID", stored.PostID),
		zap.Bool("reply", stored.ReplyToID != ""),
	)
	return stored, nil
}

// publishEvents publishes events and only logs failures; the state change
// they describe has already been stored.
func publishEvents(ctx context.Context, publisher ports.EventPublisher, logger *zap.Logger, evts ...events.DomainEvent) {
	if publisher == nil || len(evts) == 0 {
		return
	}
	if err := publisher.Publish(ctx, evts...); err != nil {
		logger.Warn("Failed to publish comment events",
			zap.String("eventType", evts[0].GetEventType()),
			zap.String("commentID", evts[0].GetAggregateID()),
			zap.Error(err),
		)
	}
}
