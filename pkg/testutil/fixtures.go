// Package testutil holds builders shared by the test suites.
package testutil

import (
	"testing"
	"time"

	"comments-api/domain/config"
	"comments-api/domain/core/entities"
	"comments-api/domain/core/valueobjects"
	"comments-api/infrastructure/sanitizer"
	"comments-api/pkg/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// NewSourceFactory returns a SourceFactory using the production IP check.
func NewSourceFactory() *valueobjects.SourceFactory {
	return valueobjects.NewSourceFactory(utils.IPValidatorFunc(utils.IsValidIP))
}

// NewCommentFactory returns a factory wired like production.
func NewCommentFactory() *entities.CommentFactory {
	return entities.NewCommentFactory(
		valueobjects.NewUUIDProvider(),
		sanitizer.NewHTMLSanitizer(),
		NewSourceFactory(),
		config.DefaultDomainConfig(),
	)
}

// CommentBuilder builds valid comment fields for tests.
type CommentBuilder struct {
	fields entities.CommentFields
}

// NewCommentBuilder starts from a valid top-level comment.
func NewCommentBuilder() *CommentBuilder {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &CommentBuilder{fields: entities.CommentFields{
		ID:     uuid.New().String(),
		Author: "Bruce Wayne",
		PostID: uuid.New().String(),
		Text:   "Why so serious?",
		Source: &valueobjects.SourceFields{
			IP:       "127.0.0.1",
			Browser:  "Mozilla/5.0",
			Referrer: "https://example.com/posts/1",
		},
		CreatedOn:  now,
		ModifiedOn: now,
		Published:  true,
	}}
}

func (b *CommentBuilder) WithID(id string) *CommentBuilder {
	b.fields.ID = id
	return b
}

func (b *CommentBuilder) WithAuthor(author string) *CommentBuilder {
	b.fields.Author = author
	return b
}

func (b *CommentBuilder) WithPostID(postID string) *CommentBuilder {
	b.fields.PostID = postID
	return b
}

func (b *CommentBuilder) WithText(text string) *CommentBuilder {
	b.fields.Text = text
	return b
}

func (b *CommentBuilder) WithSource(src *valueobjects.SourceFields) *CommentBuilder {
	b.fields.Source = src
	return b
}

func (b *CommentBuilder) WithReplyTo(id string) *CommentBuilder {
	b.fields.ReplyToID = id
	return b
}

func (b *CommentBuilder) WithPublished(published bool) *CommentBuilder {
	b.fields.Published = published
	return b
}

// Fields returns a copy of the built fields.
func (b *CommentBuilder) Fields() entities.CommentFields {
	f := b.fields
	if f.Source != nil {
		src := *f.Source
		f.Source = &src
	}
	return f
}

// MustBuild makes the comment with the production factory.
func (b *CommentBuilder) MustBuild(t testing.TB) *entities.Comment {
	t.Helper()
	c, err := NewCommentFactory().MakeComment(b.Fields())
	require.NoError(t, err)
	return c
}

// MustRecord makes the comment and returns its record.
func (b *CommentBuilder) MustRecord(t testing.TB) *entities.Record {
	t.Helper()
	return b.MustBuild(t).Record()
}
