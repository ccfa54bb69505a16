package commands

import (
	"time"
	"unicode/utf8"

	"comments-api/domain/core/entities"
	"comments-api/domain/core/valueobjects"
	pkgerrors "comments-api/pkg/errors"
)

// Size limits for stored comments, in characters.
const (
	MaxAuthorLength = 100
	MaxTextLength   = 10000
)

// AddCommentCommand posts a new comment or reply.
type AddCommentCommand struct {
	ID        string                     `json:"id,omitempty"`
	Author    string                     `json:"author"`
	PostID    string                     `json:"postId"`
	Text      string                     `json:"text"`
	ReplyToID string                     `json:"replyToId,omitempty"`
	Source    *valueobjects.SourceFields `json:"source"`
}

// Validate enforces the size limits. Presence and format are left to the
// entity factory, which reports them in a fixed order.
func (c AddCommentCommand) Validate() error {
	if utf8.RuneCountInString(c.Author) > MaxAuthorLength {
		return pkgerrors.ErrAuthorTooLong
	}
	return validateTextLength(c.Text)
}

func validateTextLength(text string) error {
	if utf8.RuneCountInString(text) > MaxTextLength {
		return pkgerrors.ErrTextTooLong
	}
	return nil
}

// Fields converts the command into factory input stamped at now.
func (c AddCommentCommand) Fields(now time.Time) entities.CommentFields {
	return entities.CommentFields{
		ID:         c.ID,
		Author:     c.Author,
		PostID:     c.PostID,
		Text:       c.Text,
		ReplyToID:  c.ReplyToID,
		Source:     c.Source,
		CreatedOn:  now,
		ModifiedOn: now,
	}
}
