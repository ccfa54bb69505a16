package handlers

import (
	"context"

	"comments-api/application/commands"
	"comments-api/application/ports"
	"comments-api/domain/core/entities"
	"comments-api/domain/events"
	"comments-api/pkg/utils"

	"go.uber.org/zap"
)

// EditCommentHandler handles comment edit commands
type EditCommentHandler struct {
	repo      ports.CommentRepository
	factory   *entities.CommentFactory
	reviews   ports.ReviewQueue
	publisher ports.EventPublisher
	logger    *zap.Logger
}

// NewEditCommentHandler creates a new edit comment handler
func NewEditCommentHandler(
	repo ports.CommentRepository,
	factory *entities.CommentFactory,
	reviews ports.ReviewQueue,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *EditCommentHandler {
	return &EditCommentHandler{
		repo:      repo,
		factory:   factory,
		reviews:   reviews,
		publisher: publisher,
		logger:    logger,
	}
}

// Handle rebuilds the comment from the stored record and the changes,
// running full validation again. An edit that leaves the hash unchanged
// returns the stored record without writing.
func (h *EditCommentHandler) Handle(ctx context.Context, cmd commands.EditCommentCommand) (*entities.Record, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	existing, err := h.repo.FindByID(ctx, cmd.ID)
	if err != nil {
		return nil, err
	}

	now := utils.NowUTC()
	fields := existing.Fields()
	fields.Text = cmd.Text
	fields.ModifiedOn = now
	if cmd.Published != nil {
		fields.Published = *cmd.Published
	}

	comment, err := h.factory.MakeComment(fields)
	if err != nil {
		return nil, err
	}
	if comment.Hash() == existing.Hash {
		h.logger.Debug("Edit left comment unchanged", zap.String("commentID", existing.ID))
		return existing, nil
	}

	updated, err := h.repo.Update(ctx, comment.Record())
	if err != nil {
		h.logger.Error("Failed to update comment",
			zap.String("commentID", existing.ID),
			zap.Error(err),
		)
		return nil, err
	}

	h.reviews.Submit(events.NewReviewRequested(comment, now))
	publishEvents(ctx, h.publisher, h.logger,
		events.NewCommentEdited(updated.ID, updated.PostID, existing.Hash, updated.Hash, now),
	)

	h.logger.Info("Comment edited", zap.String("commentID", updated.ID))
	return updated, nil
}
