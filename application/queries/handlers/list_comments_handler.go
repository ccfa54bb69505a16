package handlers

import (
	"context"

	"comments-api/application/ports"
	"comments-api/application/queries"
	"comments-api/domain/core/aggregates"

	"go.uber.org/zap"
)

// ListCommentsHandler returns the comments of a post nested into threads.
type ListCommentsHandler struct {
	repo   ports.CommentRepository
	logger *zap.Logger
}

// NewListCommentsHandler creates a new list comments handler
func NewListCommentsHandler(repo ports.CommentRepository, logger *zap.Logger) *ListCommentsHandler {
	return &ListCommentsHandler{repo: repo, logger: logger}
}

// Handle executes the list comments query
func (h *ListCommentsHandler) Handle(ctx context.Context, query queries.ListCommentsQuery) ([]*aggregates.ThreadedComment, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	records, err := h.repo.Find(ctx, query.PostID)
	if err != nil {
		h.logger.Error("Failed to list comments",
			zap.String("postID", query.PostID),
			zap.Error(err),
		)
		return nil, err
	}

	nested := aggregates.Nest(records)
	if reachable := aggregates.Size(nested); reachable < len(records) {
		h.logger.Warn("Comments without a stored parent left out of threads",
			zap.String("postID", query.PostID),
			zap.Int("unreachable", len(records)-reachable),
		)
	}
	h.logger.Debug("Listed comments",
		zap.String("postID", query.PostID),
		zap.Int("count", len(records)),
		zap.Int("threads", len(nested)),
	)
	return nested, nil
}

// ListMainCommentsHandler returns the top-level comments the store flags as
// main comments.
type ListMainCommentsHandler struct {
	repo   ports.CommentRepository
	logger *zap.Logger
}

// NewListMainCommentsHandler creates a new list main comments handler
func NewListMainCommentsHandler(repo ports.CommentRepository, logger *zap.Logger) *ListMainCommentsHandler {
	return &ListMainCommentsHandler{repo: repo, logger: logger}
}

// Handle executes the list main comments query
func (h *ListMainCommentsHandler) Handle(ctx context.Context, query queries.ListMainCommentsQuery) ([]*aggregates.ThreadedComment, error) {
	records, err := h.repo.FindMainComments(ctx)
	if err != nil {
		h.logger.Error("Failed to list main comments", zap.Error(err))
		return nil, err
	}
	return aggregates.Nest(records), nil
}
