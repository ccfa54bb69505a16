package handlers

import (
	"context"
	"errors"

	"comments-api/application/commands"
	"comments-api/application/ports"
	"comments-api/domain/core/entities"
	"comments-api/domain/events"
	pkgerrors "comments-api/pkg/errors"
	"comments-api/pkg/utils"

	"go.uber.org/zap"
)

// RemoveCommentHandler deletes comments without orphaning replies. A comment
// that is replied to is tombstoned in place; anything else is removed.
type RemoveCommentHandler struct {
	repo      ports.CommentRepository
	factory   *entities.CommentFactory
	publisher ports.EventPublisher
	logger    *zap.Logger
}

// NewRemoveCommentHandler creates a new remove comment handler
func NewRemoveCommentHandler(
	repo ports.CommentRepository,
	factory *entities.CommentFactory,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *RemoveCommentHandler {
	return &RemoveCommentHandler{
		repo:      repo,
		factory:   factory,
		publisher: publisher,
		logger:    logger,
	}
}

// Handle executes the remove comment command
func (h *RemoveCommentHandler) Handle(ctx context.Context, cmd commands.RemoveCommentCommand) (*commands.RemoveCommentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	target, err := h.repo.FindByID(ctx, cmd.ID)
	if errors.Is(err, pkgerrors.ErrCommentNotFound) {
		return nothingDeleted(), nil
	}
	if err != nil {
		return nil, err
	}

	replies, err := h.repo.FindReplies(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	if len(replies) > 0 {
		return h.softDelete(ctx, target)
	}

	parent, err := h.tombstonedParentOfOnlyReply(ctx, target)
	if err != nil {
		return nil, err
	}
	if parent != nil {
		return h.deleteWithParent(ctx, target, parent)
	}
	return h.hardDelete(ctx, target)
}

// tombstonedParentOfOnlyReply returns the parent of target when that parent
// is already soft deleted and target is its last reply.
func (h *RemoveCommentHandler) tombstonedParentOfOnlyReply(ctx context.Context, target *entities.Record) (*entities.Record, error) {
	if target.IsTopLevel() {
		return nil, nil
	}
	parent, err := h.repo.FindByID(ctx, target.ReplyToID)
	if errors.Is(err, pkgerrors.ErrCommentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	parentComment, err := h.factory.MakeComment(parent.Fields())
	if err != nil {
		h.logger.Warn("Stored parent comment fails validation",
			zap.String("commentID", parent.ID),
			zap.Error(err),
		)
		return nil, nil
	}
	if !parentComment.IsDeleted() {
		return nil, nil
	}

	siblings, err := h.repo.FindReplies(ctx, parent.ID)
	if err != nil {
		return nil, err
	}
	if len(siblings) != 1 {
		return nil, nil
	}
	return parent, nil
}

func (h *RemoveCommentHandler) softDelete(ctx context.Context, target *entities.Record) (*commands.RemoveCommentResult, error) {
	comment, err := h.factory.MakeComment(target.Fields())
	if err != nil {
		return nil, err
	}
	comment.MarkDeleted()

	if _, err := h.repo.Update(ctx, comment.Record()); err != nil {
		h.logger.Error("Failed to soft delete comment",
			zap.String("commentID", target.ID),
			zap.Error(err),
		)
		return nil, err
	}

	publishEvents(ctx, h.publisher, h.logger,
		events.NewCommentDeleted(target.ID, target.PostID, true, utils.NowUTC()),
	)
	h.logger.Info("Comment soft deleted", zap.String("commentID", target.ID))
	return &commands.RemoveCommentResult{DeletedCount: 1, SoftDelete: true, Message: commands.MsgSoftDeleted}, nil
}

// hardDelete removes target unless a reply was stored after the replies
// check, in which case it falls back to a soft delete.
func (h *RemoveCommentHandler) hardDelete(ctx context.Context, target *entities.Record) (*commands.RemoveCommentResult, error) {
	n, err := h.repo.RemoveIfNoReplies(ctx, target.ID)
	if err != nil {
		h.logger.Error("Failed to delete comment",
			zap.String("commentID", target.ID),
			zap.Error(err),
		)
		return nil, err
	}
	if n == 0 {
		current, err := h.repo.FindByID(ctx, target.ID)
		if errors.Is(err, pkgerrors.ErrCommentNotFound) {
			return nothingDeleted(), nil
		}
		if err != nil {
			return nil, err
		}
		h.logger.Info("Reply arrived during delete, falling back to soft delete",
			zap.String("commentID", target.ID),
		)
		return h.softDelete(ctx, current)
	}

	publishEvents(ctx, h.publisher, h.logger,
		events.NewCommentDeleted(target.ID, target.PostID, false, utils.NowUTC()),
	)
	h.logger.Info("Comment deleted", zap.String("commentID", target.ID))
	return &commands.RemoveCommentResult{DeletedCount: n, SoftDelete: false, Message: commands.MsgDeleted}, nil
}

// deleteWithParent removes target and then its tombstoned parent. The parent
// goes only if nothing else replied to it in the meantime.
func (h *RemoveCommentHandler) deleteWithParent(ctx context.Context, target, parent *entities.Record) (*commands.RemoveCommentResult, error) {
	n, err := h.repo.RemoveIfNoReplies(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return h.hardDelete(ctx, target)
	}

	m, err := h.repo.RemoveIfNoReplies(ctx, parent.ID)
	if err != nil {
		return nil, err
	}

	now := utils.NowUTC()
	evts := []events.DomainEvent{events.NewCommentDeleted(target.ID, target.PostID, false, now)}
	if m > 0 {
		evts = append(evts, events.NewCommentDeleted(parent.ID, parent.PostID, false, now))
	}
	publishEvents(ctx, h.publisher, h.logger, evts...)

	h.logger.Info("Comment deleted with its tombstoned parent",
		zap.String("commentID", target.ID),
		zap.String("parentID", parent.ID),
		zap.Int64("deletedCount", n+m),
	)
	msg := commands.MsgDeletedWithParent
	if m == 0 {
		msg = commands.MsgDeleted
	}
	return &commands.RemoveCommentResult{DeletedCount: n + m, SoftDelete: false, Message: msg}, nil
}

func nothingDeleted() *commands.RemoveCommentResult {
	return &commands.RemoveCommentResult{DeletedCount: 0, SoftDelete: false, Message: commands.MsgNothingDeleted}
}
