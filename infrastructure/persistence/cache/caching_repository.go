// Package cache adds a read-through cache in front of a comment store.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"comments-api/application/ports"
	"comments-api/domain/core/entities"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Config controls the caching decorator.
type Config struct {
	TTL       time.Duration
	KeyPrefix string
}

// DefaultConfig returns the default cache settings.
func DefaultConfig() Config {
	return Config{TTL: time.Minute, KeyPrefix: "comments:"}
}

// CachingCommentRepository caches the list reads that back the public
// endpoints. Single lookups and reply lookups always go to the store because
// the delete path decides on them. Every write drops the lists it touches.
//
// Each key carries a generation that writes bump before deleting it. A load
// that saw the generation move while it ran never leaves its result behind,
// so a list read before a write cannot outlive the write's invalidation.
type CachingCommentRepository struct {
	ports.CommentRepository
	cache  ports.Cache
	cfg    Config
	group  singleflight.Group
	logger *zap.Logger

	mu          sync.Mutex
	generations map[string]uint64
}

// NewCachingCommentRepository wraps inner.
func NewCachingCommentRepository(inner ports.CommentRepository, cache ports.Cache, cfg Config, logger *zap.Logger) *CachingCommentRepository {
	return &CachingCommentRepository{
		CommentRepository: inner,
		cache:             cache,
		cfg:               cfg,
		logger:            logger,
		generations:       make(map[string]uint64),
	}
}

func (r *CachingCommentRepository) generation(key string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generations[key]
}

func (r *CachingCommentRepository) bump(keys []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		r.generations[k]++
	}
}

func (r *CachingCommentRepository) postKey(postID string) string {
	return fmt.Sprintf("%spost:%s", r.cfg.KeyPrefix, postID)
}

func (r *CachingCommentRepository) mainKey() string {
	return r.cfg.KeyPrefix + "main"
}

func (r *CachingCommentRepository) Find(ctx context.Context, postID string) ([]*entities.Record, error) {
	return r.cached(ctx, r.postKey(postID), func() ([]*entities.Record, error) {
		return r.CommentRepository.Find(ctx, postID)
	})
}

func (r *CachingCommentRepository) FindMainComments(ctx context.Context) ([]*entities.Record, error) {
	return r.cached(ctx, r.mainKey(), func() ([]*entities.Record, error) {
		return r.CommentRepository.FindMainComments(ctx)
	})
}

func (r *CachingCommentRepository) Insert(ctx context.Context, rec *entities.Record) (*entities.Record, error) {
	stored, err := r.CommentRepository.Insert(ctx, rec)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, rec.PostID)
	return stored, nil
}

func (r *CachingCommentRepository) Update(ctx context.Context, rec *entities.Record) (*entities.Record, error) {
	updated, err := r.CommentRepository.Update(ctx, rec)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, rec.PostID)
	return updated, nil
}

func (r *CachingCommentRepository) Remove(ctx context.Context, id string) (int64, error) {
	return r.removeAndInvalidate(ctx, id, r.CommentRepository.Remove)
}

func (r *CachingCommentRepository) RemoveIfNoReplies(ctx context.Context, id string) (int64, error) {
	return r.removeAndInvalidate(ctx, id, r.CommentRepository.RemoveIfNoReplies)
}

func (r *CachingCommentRepository) removeAndInvalidate(ctx context.Context, id string, remove func(context.Context, string) (int64, error)) (int64, error) {
	existing, lookupErr := r.CommentRepository.FindByID(ctx, id)
	n, err := remove(ctx, id)
	if err != nil {
		return n, err
	}
	if n > 0 && lookupErr == nil {
		r.invalidate(ctx, existing.PostID)
	} else if n > 0 {
		r.invalidate(ctx, "")
	}
	return n, nil
}

// cached serves key from the cache, loading it once per key on a miss.
// Cache failures fall back to the store.
func (r *CachingCommentRepository) cached(ctx context.Context, key string, load func() ([]*entities.Record, error)) ([]*entities.Record, error) {
	if data, ok, err := r.cache.Get(ctx, key); err != nil {
		r.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		var records []*entities.Record
		if err := json.Unmarshal(data, &records); err == nil {
			return records, nil
		}
		r.logger.Warn("Discarding unreadable cache entry", zap.String("key", key))
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		gen := r.generation(key)
		records, err := load()
		if err != nil {
			return nil, err
		}
		r.store(ctx, key, gen, records)
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneAll(v.([]*entities.Record)), nil
}

// store caches records loaded at generation gen. A write landing between
// the check and the Set is caught by the second check.
func (r *CachingCommentRepository) store(ctx context.Context, key string, gen uint64, records []*entities.Record) {
	if r.generation(key) != gen {
		return
	}
	data, err := json.Marshal(records)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, key, data, r.cfg.TTL); err != nil {
		r.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
		return
	}
	if r.generation(key) != gen {
		if err := r.cache.Delete(ctx, key); err != nil {
			r.logger.Warn("Cache invalidation failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// invalidate drops the main list and, when known, the post's list.
func (r *CachingCommentRepository) invalidate(ctx context.Context, postID string) {
	keys := []string{r.mainKey()}
	if postID != "" {
		keys = append(keys, r.postKey(postID))
	}
	r.bump(keys)
	if err := r.cache.Delete(ctx, keys...); err != nil {
		r.logger.Warn("Cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

func cloneAll(records []*entities.Record) []*entities.Record {
	out := make([]*entities.Record, len(records))
	for i, rec := range records {
		out[i] = rec.Clone()
	}
	return out
}
