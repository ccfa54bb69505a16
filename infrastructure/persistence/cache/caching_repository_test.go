package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"comments-api/application/ports"
	"comments-api/domain/core/entities"
	"comments-api/infrastructure/persistence/cache"
	"comments-api/infrastructure/persistence/memory"
	"comments-api/infrastructure/persistence/repotest"
	"comments-api/pkg/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCachingCommentRepository_Contract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) ports.CommentRepository {
		return cache.NewCachingCommentRepository(memory.NewCommentRepository(),
			cache.NewMemoryCache(time.Minute), cache.DefaultConfig(), zap.NewNop())
	})
}

// countingRepo counts list reads that reach the store.
type countingRepo struct {
	*memory.CommentRepository
	finds int
	mains int
}

func (r *countingRepo) Find(ctx context.Context, postID string) ([]*entities.Record, error) {
	r.finds++
	return r.CommentRepository.Find(ctx, postID)
}

func (r *countingRepo) FindMainComments(ctx context.Context) ([]*entities.Record, error) {
	r.mains++
	return r.CommentRepository.FindMainComments(ctx)
}

func newRedisBacked(t *testing.T) (*cache.CachingCommentRepository, *countingRepo) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	inner := &countingRepo{CommentRepository: memory.NewCommentRepository()}
	return cache.NewCachingCommentRepository(inner, cache.NewRedisCache(client), cache.DefaultConfig(), zap.NewNop()), inner
}

func TestCachingCommentRepository_ServesRepeatReadsFromCache(t *testing.T) {
	repo, inner := newRedisBacked(t)
	ctx := context.Background()
	rec := testutil.NewCommentBuilder().MustRecord(t)
	_, err := repo.Insert(ctx, rec)
	require.NoError(t, err)

	first, err := repo.Find(ctx, rec.PostID)
	require.NoError(t, err)
	second, err := repo.Find(ctx, rec.PostID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.finds)
}

func TestCachingCommentRepository_WritesInvalidate(t *testing.T) {
	repo, inner := newRedisBacked(t)
	ctx := context.Background()
	parent := testutil.NewCommentBuilder().MustRecord(t)
	_, err := repo.Insert(ctx, parent)
	require.NoError(t, err)

	_, err = repo.Find(ctx, parent.PostID)
	require.NoError(t, err)
	_, err = repo.FindMainComments(ctx)
	require.NoError(t, err)

	reply := testutil.NewCommentBuilder().WithPostID(parent.PostID).WithReplyTo(parent.ID).MustRecord(t)
	_, err = repo.Insert(ctx, reply)
	require.NoError(t, err)

	got, err := repo.Find(ctx, parent.PostID)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, inner.finds)

	edited := reply.Clone()
	edited.Text = "changed"
	_, err = repo.Update(ctx, edited)
	require.NoError(t, err)
	got, err = repo.Find(ctx, parent.PostID)
	require.NoError(t, err)
	assert.Equal(t, "changed", got[1].Text)

	n, err := repo.RemoveIfNoReplies(ctx, reply.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	got, err = repo.Find(ctx, parent.PostID)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = repo.FindMainComments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.mains)
}

func TestCachingCommentRepository_CacheFailureFallsBack(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	inner := memory.NewCommentRepository()
	repo := cache.NewCachingCommentRepository(inner, cache.NewRedisCache(client), cache.DefaultConfig(), zap.NewNop())
	rec := testutil.NewCommentBuilder().MustRecord(t)
	_, err := inner.Insert(context.Background(), rec)
	require.NoError(t, err)
	s.Close()

	got, err := repo.Find(context.Background(), rec.PostID)

	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCachingCommentRepository_StoreErrorsPassThrough(t *testing.T) {
	repo := cache.NewCachingCommentRepository(&failingRepo{memory.NewCommentRepository()}, cache.NewMemoryCache(time.Minute),
		cache.DefaultConfig(), zap.NewNop())

	_, err := repo.Find(context.Background(), "p")

	assert.ErrorIs(t, err, errStore)
}

var errStore = errors.New("store down")

type failingRepo struct {
	*memory.CommentRepository
}

func (*failingRepo) Find(context.Context, string) ([]*entities.Record, error) {
	return nil, errStore
}

// pausingRepo reads the store, then holds the result until released, like a
// slow list query that a write overtakes.
type pausingRepo struct {
	*memory.CommentRepository
	loaded  chan struct{}
	release chan struct{}
}

func (r *pausingRepo) Find(ctx context.Context, postID string) ([]*entities.Record, error) {
	records, err := r.CommentRepository.Find(ctx, postID)
	if r.loaded != nil {
		loaded, release := r.loaded, r.release
		r.loaded, r.release = nil, nil
		close(loaded)
		<-release
	}
	return records, err
}

func TestCachingCommentRepository_OvertakenLoadIsNotCached(t *testing.T) {
	inner := &pausingRepo{
		CommentRepository: memory.NewCommentRepository(),
		loaded:            make(chan struct{}),
		release:           make(chan struct{}),
	}
	loaded, release := inner.loaded, inner.release
	repo := cache.NewCachingCommentRepository(inner, cache.NewMemoryCache(time.Minute), cache.DefaultConfig(), zap.NewNop())
	ctx := context.Background()
	first := testutil.NewCommentBuilder().MustRecord(t)
	_, err := repo.Insert(ctx, first)
	require.NoError(t, err)

	done := make(chan []*entities.Record)
	go func() {
		got, _ := repo.Find(ctx, first.PostID)
		done <- got
	}()
	<-loaded

	second := testutil.NewCommentBuilder().WithPostID(first.PostID).MustRecord(t)
	_, err = repo.Insert(ctx, second)
	require.NoError(t, err)
	close(release)
	assert.Len(t, <-done, 1)

	got, err := repo.Find(ctx, first.PostID)

	require.NoError(t, err)
	assert.Len(t, got, 2)
}
