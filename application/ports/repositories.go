package ports

import (
	"context"
	"time"

	"comments-api/domain/core/entities"
	"comments-api/domain/events"
)

// CommentRepository is the comment store. Implementations return
// errors.ErrCommentNotFound from FindByID for unknown ids.
type CommentRepository interface {
	// Insert stores a new comment. A reply whose parent does not exist fails
	// with errors.ErrParentNotFound.
	Insert(ctx context.Context, rec *entities.Record) (*entities.Record, error)

	// FindByID retrieves a comment by its ID
	FindByID(ctx context.Context, id string) (*entities.Record, error)

	// Find lists every comment of a post in creation order.
	Find(ctx context.Context, postID string) ([]*entities.Record, error)

	// FindMainComments lists top-level comments across posts.
	FindMainComments(ctx context.Context) ([]*entities.Record, error)

	// FindReplies lists the direct replies of a comment.
	FindReplies(ctx context.Context, commentID string) ([]*entities.Record, error)

	// Update replaces the mutable fields of an existing comment.
	Update(ctx context.Context, rec *entities.Record) (*entities.Record, error)

	// Remove deletes a comment and reports how many records went away. A
	// comment that still has replies fails with errors.ErrCommentHasReplies.
	Remove(ctx context.Context, id string) (int64, error)

	// RemoveIfNoReplies deletes the comment only while nothing replies to
	// it, atomically with respect to Insert. It reports 0 when a reply
	// exists or the comment is gone.
	RemoveIfNoReplies(ctx context.Context, id string) (int64, error)
}

// ModerationHook hands a comment to an external review process.
type ModerationHook interface {
	InitiateReview(ctx context.Context, review events.ReviewRequested) error
}

// ReviewQueue accepts review requests without blocking the caller.
type ReviewQueue interface {
	Submit(review events.ReviewRequested)
}

// EventPublisher publishes domain events after state changes.
type EventPublisher interface {
	Publish(ctx context.Context, events ...events.DomainEvent) error
}

// Cache stores serialized values by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
