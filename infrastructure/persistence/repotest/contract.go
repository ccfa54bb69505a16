// Package repotest runs the behaviour every CommentRepository must share
// against a concrete store.
package repotest

import (
	"context"
	"sync"
	"testing"

	"comments-api/application/ports"
	"comments-api/domain/core/entities"
	pkgerrors "comments-api/pkg/errors"
	"comments-api/pkg/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty repository for one subtest.
type Factory func(t *testing.T) ports.CommentRepository

// Run exercises repo against the shared contract.
func Run(t *testing.T, newRepo Factory) {
	t.Run("insert and find by id", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		rec := testutil.NewCommentBuilder().MustRecord(t)

		stored, err := repo.Insert(ctx, rec)
		require.NoError(t, err)
		assert.Equal(t, rec, stored)

		found, err := repo.FindByID(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec, found)
	})

	t.Run("find by id unknown", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.FindByID(context.Background(), uuid.NewString())

		assert.ErrorIs(t, err, pkgerrors.ErrCommentNotFound)
	})

	t.Run("reply to missing parent is rejected", func(t *testing.T) {
		repo := newRepo(t)
		rec := testutil.NewCommentBuilder().WithReplyTo(uuid.NewString()).MustRecord(t)

		_, err := repo.Insert(context.Background(), rec)

		assert.ErrorIs(t, err, pkgerrors.ErrParentNotFound)
	})

	t.Run("find lists one post in creation order", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		postID := uuid.NewString()

		first := testutil.NewCommentBuilder().WithPostID(postID).MustRecord(t)
		second := testutil.NewCommentBuilder().WithPostID(postID).WithReplyTo(first.ID).MustRecord(t)
		second.CreatedOn = first.CreatedOn + 1
		other := testutil.NewCommentBuilder().MustRecord(t)
		for _, rec := range []*entities.Record{first, second, other} {
			_, err := repo.Insert(ctx, rec)
			require.NoError(t, err)
		}

		got, err := repo.Find(ctx, postID)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, first.ID, got[0].ID)
		assert.Equal(t, second.ID, got[1].ID)

		none, err := repo.Find(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("main comments and replies", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		a := testutil.NewCommentBuilder().MustRecord(t)
		b := testutil.NewCommentBuilder().MustRecord(t)
		b.CreatedOn = a.CreatedOn + 1
		reply := testutil.NewCommentBuilder().WithPostID(a.PostID).WithReplyTo(a.ID).MustRecord(t)
		reply.CreatedOn = a.CreatedOn + 2
		for _, rec := range []*entities.Record{a, b, reply} {
			_, err := repo.Insert(ctx, rec)
			require.NoError(t, err)
		}

		main, err := repo.FindMainComments(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{a.ID, b.ID}, ids(main))

		replies, err := repo.FindReplies(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{reply.ID}, ids(replies))

		replies, err = repo.FindReplies(ctx, b.ID)
		require.NoError(t, err)
		assert.Empty(t, replies)
	})

	t.Run("update replaces mutable fields", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		rec := testutil.NewCommentBuilder().MustRecord(t)
		_, err := repo.Insert(ctx, rec)
		require.NoError(t, err)

		changed := rec.Clone()
		changed.Text = "edited"
		changed.Published = false
		changed.ModifiedOn = rec.ModifiedOn + 1000
		changed.Hash = "different"

		_, err = repo.Update(ctx, changed)
		require.NoError(t, err)

		found, err := repo.FindByID(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, changed, found)
	})

	t.Run("update unknown", func(t *testing.T) {
		repo := newRepo(t)
		rec := testutil.NewCommentBuilder().MustRecord(t)

		_, err := repo.Update(context.Background(), rec)

		assert.ErrorIs(t, err, pkgerrors.ErrCommentNotFound)
	})

	t.Run("remove", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		rec := testutil.NewCommentBuilder().MustRecord(t)
		_, err := repo.Insert(ctx, rec)
		require.NoError(t, err)

		n, err := repo.Remove(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = repo.Remove(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		_, err = repo.FindByID(ctx, rec.ID)
		assert.ErrorIs(t, err, pkgerrors.ErrCommentNotFound)
	})

	t.Run("remove refuses a comment with replies", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		parent := testutil.NewCommentBuilder().MustRecord(t)
		reply := testutil.NewCommentBuilder().WithPostID(parent.PostID).WithReplyTo(parent.ID).MustRecord(t)
		_, err := repo.Insert(ctx, parent)
		require.NoError(t, err)
		_, err = repo.Insert(ctx, reply)
		require.NoError(t, err)

		_, err = repo.Remove(ctx, parent.ID)

		assert.ErrorIs(t, err, pkgerrors.ErrCommentHasReplies)
	})

	t.Run("duplicate id is rejected", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		rec := testutil.NewCommentBuilder().MustRecord(t)
		_, err := repo.Insert(ctx, rec)
		require.NoError(t, err)

		_, err = repo.Insert(ctx, rec)

		assert.ErrorIs(t, err, pkgerrors.ErrDuplicateCommentID)
	})

	t.Run("remove if no replies", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		parent := testutil.NewCommentBuilder().MustRecord(t)
		reply := testutil.NewCommentBuilder().WithPostID(parent.PostID).WithReplyTo(parent.ID).MustRecord(t)
		_, err := repo.Insert(ctx, parent)
		require.NoError(t, err)
		_, err = repo.Insert(ctx, reply)
		require.NoError(t, err)

		n, err := repo.RemoveIfNoReplies(ctx, parent.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n, "parent with a reply must stay")

		n, err = repo.RemoveIfNoReplies(ctx, reply.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = repo.RemoveIfNoReplies(ctx, parent.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = repo.RemoveIfNoReplies(ctx, parent.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})

	t.Run("concurrent reply and delete never orphan", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		parent := testutil.NewCommentBuilder().MustRecord(t)
		_, err := repo.Insert(ctx, parent)
		require.NoError(t, err)
		reply := testutil.NewCommentBuilder().WithPostID(parent.PostID).WithReplyTo(parent.ID).MustRecord(t)

		var (
			wg        sync.WaitGroup
			insertErr error
			removed   int64
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, insertErr = repo.Insert(ctx, reply)
		}()
		go func() {
			defer wg.Done()
			removed, _ = repo.RemoveIfNoReplies(ctx, parent.ID)
		}()
		wg.Wait()

		if insertErr == nil {
			assert.Equal(t, int64(0), removed, "parent removed under a stored reply")
			_, err := repo.FindByID(ctx, parent.ID)
			assert.NoError(t, err)
		} else {
			assert.ErrorIs(t, insertErr, pkgerrors.ErrParentNotFound)
			assert.Equal(t, int64(1), removed)
		}
	})
}

func ids(recs []*entities.Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}
