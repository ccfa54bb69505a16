// Package memory holds a process-local comment store used in development
// and tests.
package memory

import (
	"context"
	"sync"

	"comments-api/domain/core/entities"
	pkgerrors "comments-api/pkg/errors"
)

// CommentRepository keeps comments in insertion order behind a single lock.
type CommentRepository struct {
	mu      sync.RWMutex
	order   []string
	records map[string]*entities.Record
}

// NewCommentRepository creates an empty store.
func NewCommentRepository() *CommentRepository {
	return &CommentRepository{records: make(map[string]*entities.Record)}
}

func (r *CommentRepository) Insert(ctx context.Context, rec *entities.Record) (*entities.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[rec.ID]; exists {
		return nil, pkgerrors.ErrDuplicateCommentID.WithDetail("id", rec.ID)
	}
	if rec.ReplyToID != "" {
		if _, ok := r.records[rec.ReplyToID]; !ok {
			return nil, pkgerrors.ErrParentNotFound.WithDetail("replyToId", rec.ReplyToID)
		}
	}
	r.records[rec.ID] = rec.Clone()
	r.order = append(r.order, rec.ID)
	return rec.Clone(), nil
}

func (r *CommentRepository) FindByID(ctx context.Context, id string) (*entities.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, pkgerrors.ErrCommentNotFound.WithDetail("id", id)
	}
	return rec.Clone(), nil
}

func (r *CommentRepository) Find(ctx context.Context, postID string) ([]*entities.Record, error) {
	return r.filter(ctx, func(rec *entities.Record) bool { return rec.PostID == postID })
}

func (r *CommentRepository) FindMainComments(ctx context.Context) ([]*entities.Record, error) {
	return r.filter(ctx, (*entities.Record).IsTopLevel)
}

func (r *CommentRepository) FindReplies(ctx context.Context, commentID string) ([]*entities.Record, error) {
	return r.filter(ctx, func(rec *entities.Record) bool { return rec.ReplyToID == commentID })
}

func (r *CommentRepository) Update(ctx context.Context, rec *entities.Record) (*entities.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[rec.ID]; !ok {
		return nil, pkgerrors.ErrCommentNotFound.WithDetail("id", rec.ID)
	}
	r.records[rec.ID] = rec.Clone()
	return rec.Clone(), nil
}

func (r *CommentRepository) Remove(ctx context.Context, id string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hasRepliesLocked(id) {
		return 0, pkgerrors.ErrCommentHasReplies.WithDetail("id", id)
	}
	return r.removeLocked(id), nil
}

func (r *CommentRepository) RemoveIfNoReplies(ctx context.Context, id string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hasRepliesLocked(id) {
		return 0, nil
	}
	return r.removeLocked(id), nil
}

func (r *CommentRepository) hasRepliesLocked(id string) bool {
	for _, rec := range r.records {
		if rec.ReplyToID == id {
			return true
		}
	}
	return false
}

func (r *CommentRepository) removeLocked(id string) int64 {
	if _, ok := r.records[id]; !ok {
		return 0
	}
	delete(r.records, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return 1
}

func (r *CommentRepository) filter(ctx context.Context, keep func(*entities.Record) bool) ([]*entities.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entities.Record, 0)
	for _, id := range r.order {
		rec := r.records[id]
		if keep(rec) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}
