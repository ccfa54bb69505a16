package handlers_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"comments-api/application/commands"
	"comments-api/application/commands/handlers"
	"comments-api/domain/config"
	"comments-api/domain/core/valueobjects"
	"comments-api/domain/events"
	"comments-api/infrastructure/persistence/memory"
	pkgerrors "comments-api/pkg/errors"
	"comments-api/pkg/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func validAdd() commands.AddCommentCommand {
	return commands.AddCommentCommand{
		Author: "Selina Kyle",
		PostID: uuid.NewString(),
		Text:   "<p>Meow</p><script>alert(1)</script>",
		Source: &valueobjects.SourceFields{IP: "10.0.0.7", Browser: "curl/8.0"},
	}
}

func TestAddCommentHandler_Handle(t *testing.T) {
	// Arrange
	repo := memory.NewCommentRepository()
	queue := &recordingQueue{}
	pub := &recordingPublisher{}
	h := handlers.NewAddCommentHandler(repo, testutil.NewCommentFactory(), queue, pub,
		config.DefaultDomainConfig(), zap.NewNop())
	cmd := validAdd()

	// Act
	rec, err := h.Handle(context.Background(), cmd)

	// Assert
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "<p>Meow</p>", rec.Text)
	assert.True(t, rec.Published)
	assert.NotEmpty(t, rec.Hash)
	assert.Equal(t, rec.CreatedOn, rec.ModifiedOn)

	stored, err := repo.FindByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec, stored)

	require.Len(t, queue.reviews, 1)
	review := queue.reviews[0]
	assert.Equal(t, rec.ID, review.AggregateID)
	assert.Equal(t, "<p>Meow</p>", review.Content)
	assert.Equal(t, "10.0.0.7", review.IP)
	assert.Equal(t, rec.Hash, review.Hash)

	assert.Equal(t, []string{events.TypeCommentPosted}, pub.types())
}

func TestAddCommentHandler_HoldForReview(t *testing.T) {
	repo := memory.NewCommentRepository()
	h := handlers.NewAddCommentHandler(repo, testutil.NewCommentFactory(), &recordingQueue{}, nil,
		config.DefaultDomainConfig().HoldForReview(), zap.NewNop())

	rec, err := h.Handle(context.Background(), validAdd())

	require.NoError(t, err)
	assert.False(t, rec.Published)
}

func TestAddCommentHandler_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*commands.AddCommentCommand)
		want   error
	}{
		{"bad id", func(c *commands.AddCommentCommand) { c.ID = "nope" }, pkgerrors.ErrInvalidCommentID},
		{"no author", func(c *commands.AddCommentCommand) { c.Author = "" }, pkgerrors.ErrMissingAuthor},
		{"short author", func(c *commands.AddCommentCommand) { c.Author = "S" }, pkgerrors.ErrAuthorTooShort},
		{"no post", func(c *commands.AddCommentCommand) { c.PostID = "" }, pkgerrors.ErrMissingPostID},
		{"no text", func(c *commands.AddCommentCommand) { c.Text = "" }, pkgerrors.ErrMissingText},
		{"no source", func(c *commands.AddCommentCommand) { c.Source = nil }, pkgerrors.ErrMissingOrigin},
		{"no ip", func(c *commands.AddCommentCommand) { c.Source.IP = "" }, pkgerrors.ErrMissingOriginIP},
		{"bad ip", func(c *commands.AddCommentCommand) { c.Source.IP = "999.1.1.1" }, pkgerrors.ErrInvalidOriginIP},
		{"bad reply", func(c *commands.AddCommentCommand) { c.ReplyToID = "x" }, pkgerrors.ErrInvalidReplyToID},
		{"script only", func(c *commands.AddCommentCommand) { c.Text = "<script>x()</script>" }, pkgerrors.ErrUnusableText},
		{"long author", func(c *commands.AddCommentCommand) { c.Author = strings.Repeat("a", commands.MaxAuthorLength+1) }, pkgerrors.ErrAuthorTooLong},
		{"long text", func(c *commands.AddCommentCommand) { c.Text = strings.Repeat("é", commands.MaxTextLength+1) }, pkgerrors.ErrTextTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := memory.NewCommentRepository()
			queue := &recordingQueue{}
			h := handlers.NewAddCommentHandler(repo, testutil.NewCommentFactory(), queue, nil,
				config.DefaultDomainConfig(), zap.NewNop())
			cmd := validAdd()
			tt.mutate(&cmd)

			_, err := h.Handle(context.Background(), cmd)

			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, queue.reviews)
		})
	}
}

func TestAddCommentHandler_ReplyToMissingParent(t *testing.T) {
	queue := &recordingQueue{}
	h := handlers.NewAddCommentHandler(memory.NewCommentRepository(), testutil.NewCommentFactory(), queue, nil,
		config.DefaultDomainConfig(), zap.NewNop())
	cmd := validAdd()
	cmd.ReplyToID = uuid.NewString()

	_, err := h.Handle(context.Background(), cmd)

	assert.ErrorIs(t, err, pkgerrors.ErrParentNotFound)
	assert.Empty(t, queue.reviews)
}

func TestAddCommentHandler_StoreErrorPropagatesUnchanged(t *testing.T) {
	storeErr := errors.New("disk on fire")
	repo := new(mockRepository)
	repo.On("Insert", mock.Anything, mock.Anything).Return(nil, storeErr)
	queue := &recordingQueue{}
	h := handlers.NewAddCommentHandler(repo, testutil.NewCommentFactory(), queue, nil,
		config.DefaultDomainConfig(), zap.NewNop())

	_, err := h.Handle(context.Background(), validAdd())

	assert.Same(t, storeErr, err)
	assert.Empty(t, queue.reviews)
}

func TestAddCommentHandler_PublisherFailureIgnored(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("bus down")}
	h := handlers.NewAddCommentHandler(memory.NewCommentRepository(), testutil.NewCommentFactory(),
		&recordingQueue{}, pub, config.DefaultDomainConfig(), zap.NewNop())

	rec, err := h.Handle(context.Background(), validAdd())

	require.NoError(t, err)
	assert.NotNil(t, rec)
}
