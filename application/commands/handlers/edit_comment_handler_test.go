package handlers_test

import (
	"context"
	"testing"

	"comments-api/application/commands"
	"comments-api/application/commands/handlers"
	"comments-api/domain/events"
	"comments-api/infrastructure/persistence/memory"
	pkgerrors "comments-api/pkg/errors"
	"comments-api/pkg/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type editFixture struct {
	repo    *memory.CommentRepository
	queue   *recordingQueue
	pub     *recordingPublisher
	handler *handlers.EditCommentHandler
}

func newEditFixture() *editFixture {
	f := &editFixture{
		repo:  memory.NewCommentRepository(),
		queue: &recordingQueue{},
		pub:   &recordingPublisher{},
	}
	f.handler = handlers.NewEditCommentHandler(f.repo, testutil.NewCommentFactory(), f.queue, f.pub, zap.NewNop())
	return f
}

func TestEditCommentHandler_Handle(t *testing.T) {
	// Arrange
	f := newEditFixture()
	original := testutil.NewCommentBuilder().MustRecord(t)
	original.ModifiedOn -= 5000
	_, err := f.repo.Insert(context.Background(), original)
	require.NoError(t, err)

	// Act
	updated, err := f.handler.Handle(context.Background(), commands.EditCommentCommand{
		ID:   original.ID,
		Text: "I'm not wearing hockey pads.",
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "I'm not wearing hockey pads.", updated.Text)
	assert.Equal(t, original.Author, updated.Author)
	assert.Equal(t, original.CreatedOn, updated.CreatedOn)
	assert.Greater(t, updated.ModifiedOn, original.ModifiedOn)
	assert.NotEqual(t, original.Hash, updated.Hash)

	stored, err := f.repo.FindByID(context.Background(), original.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, stored)

	require.Len(t, f.queue.reviews, 1)
	assert.Equal(t, updated.Hash, f.queue.reviews[0].Hash)
	assert.Equal(t, []string{events.TypeCommentEdited}, f.pub.types())
}

func TestEditCommentHandler_Unpublish(t *testing.T) {
	f := newEditFixture()
	original := testutil.NewCommentBuilder().MustRecord(t)
	_, err := f.repo.Insert(context.Background(), original)
	require.NoError(t, err)
	published := false

	updated, err := f.handler.Handle(context.Background(), commands.EditCommentCommand{
		ID:        original.ID,
		Text:      original.Text,
		Published: &published,
	})

	require.NoError(t, err)
	assert.False(t, updated.Published)
}

func TestEditCommentHandler_UnchangedIsNoOp(t *testing.T) {
	f := newEditFixture()
	original := testutil.NewCommentBuilder().MustRecord(t)
	_, err := f.repo.Insert(context.Background(), original)
	require.NoError(t, err)

	got, err := f.handler.Handle(context.Background(), commands.EditCommentCommand{
		ID:   original.ID,
		Text: original.Text,
	})

	require.NoError(t, err)
	assert.Equal(t, original, got)
	assert.Empty(t, f.queue.reviews)
	assert.Empty(t, f.pub.types())
}

func TestEditCommentHandler_Errors(t *testing.T) {
	f := newEditFixture()
	existing := testutil.NewCommentBuilder().MustRecord(t)
	_, err := f.repo.Insert(context.Background(), existing)
	require.NoError(t, err)

	tests := []struct {
		name string
		cmd  commands.EditCommentCommand
		want error
	}{
		{"missing id", commands.EditCommentCommand{Text: "x"}, pkgerrors.ErrMissingCommentID},
		{"missing text", commands.EditCommentCommand{ID: existing.ID}, pkgerrors.ErrMissingText},
		{"unknown id", commands.EditCommentCommand{ID: uuid.NewString(), Text: "x"}, pkgerrors.ErrCommentNotFound},
		{"unusable text", commands.EditCommentCommand{ID: existing.ID, Text: "<script></script>"}, pkgerrors.ErrUnusableText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.handler.Handle(context.Background(), tt.cmd)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.queue.reviews)
}
