package handlers_test

import (
	"context"
	"testing"

	"comments-api/application/queries"
	"comments-api/application/queries/handlers"
	"comments-api/domain/core/entities"
	"comments-api/infrastructure/persistence/memory"
	pkgerrors "comments-api/pkg/errors"
	"comments-api/pkg/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestListCommentsHandler_NestsThreads(t *testing.T) {
	// Arrange
	repo := memory.NewCommentRepository()
	ctx := context.Background()
	postID := uuid.NewString()
	a := testutil.NewCommentBuilder().WithPostID(postID).MustRecord(t)
	b := testutil.NewCommentBuilder().WithPostID(postID).WithReplyTo(a.ID).MustRecord(t)
	c := testutil.NewCommentBuilder().WithPostID(postID).WithReplyTo(b.ID).MustRecord(t)
	d := testutil.NewCommentBuilder().WithPostID(postID).MustRecord(t)
	for _, rec := range records(a, b, c, d) {
		_, err := repo.Insert(ctx, rec)
		require.NoError(t, err)
	}
	h := handlers.NewListCommentsHandler(repo, zap.NewNop())

	// Act
	threads, err := h.Handle(ctx, queries.ListCommentsQuery{PostID: postID})

	// Assert
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, a.ID, threads[0].ID)
	assert.Equal(t, d.ID, threads[1].ID)
	require.Len(t, threads[0].Replies, 1)
	assert.Equal(t, b.ID, threads[0].Replies[0].ID)
	require.Len(t, threads[0].Replies[0].Replies, 1)
	assert.Equal(t, c.ID, threads[0].Replies[0].Replies[0].ID)
	assert.Empty(t, threads[1].Replies)
}

func TestListCommentsHandler_EmptyPost(t *testing.T) {
	h := handlers.NewListCommentsHandler(memory.NewCommentRepository(), zap.NewNop())

	threads, err := h.Handle(context.Background(), queries.ListCommentsQuery{PostID: uuid.NewString()})

	require.NoError(t, err)
	assert.NotNil(t, threads)
	assert.Empty(t, threads)
}

func TestListCommentsHandler_MissingPostID(t *testing.T) {
	h := handlers.NewListCommentsHandler(memory.NewCommentRepository(), zap.NewNop())

	_, err := h.Handle(context.Background(), queries.ListCommentsQuery{})

	assert.ErrorIs(t, err, pkgerrors.ErrMissingPostID)
}

func TestListMainCommentsHandler_TopLevelOnly(t *testing.T) {
	repo := memory.NewCommentRepository()
	ctx := context.Background()
	a := testutil.NewCommentBuilder().MustRecord(t)
	reply := testutil.NewCommentBuilder().WithPostID(a.PostID).WithReplyTo(a.ID).MustRecord(t)
	other := testutil.NewCommentBuilder().MustRecord(t)
	for _, rec := range records(a, reply, other) {
		_, err := repo.Insert(ctx, rec)
		require.NoError(t, err)
	}
	h := handlers.NewListMainCommentsHandler(repo, zap.NewNop())

	threads, err := h.Handle(ctx, queries.ListMainCommentsQuery{})

	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, a.ID, threads[0].ID)
	assert.Equal(t, other.ID, threads[1].ID)
	assert.Empty(t, threads[0].Replies)
}

// orphanStore returns a post listing whose reply lost its parent, as a
// store written before replies were checked might.
type orphanStore struct {
	*memory.CommentRepository
	listing []*entities.Record
}

func (s *orphanStore) Find(context.Context, string) ([]*entities.Record, error) {
	return s.listing, nil
}

func TestListCommentsHandler_ReportsUnreachableReplies(t *testing.T) {
	root := testutil.NewCommentBuilder().MustRecord(t)
	orphan := testutil.NewCommentBuilder().WithPostID(root.PostID).WithReplyTo(uuid.NewString()).MustRecord(t)
	core, logs := observer.New(zapcore.WarnLevel)
	h := handlers.NewListCommentsHandler(&orphanStore{
		CommentRepository: memory.NewCommentRepository(),
		listing:           records(root, orphan),
	}, zap.New(core))

	threads, err := h.Handle(context.Background(), queries.ListCommentsQuery{PostID: root.PostID})

	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, root.ID, threads[0].ID)
	entries := logs.FilterMessage("Comments without a stored parent left out of threads").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].ContextMap()["unreachable"])
}

func records(recs ...*entities.Record) []*entities.Record { return recs }
