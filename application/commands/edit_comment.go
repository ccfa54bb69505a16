package commands

import (
	pkgerrors "comments-api/pkg/errors"
)

// EditCommentCommand changes the text of a comment, and optionally its
// published flag.
type EditCommentCommand struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Published *bool  `json:"published,omitempty"`
}

// Validate validates the EditCommentCommand
func (c EditCommentCommand) Validate() error {
	if c.ID == "" {
		return pkgerrors.ErrMissingCommentID
	}
	if c.Text == "" {
		return pkgerrors.ErrMissingText
	}
	return validateTextLength(c.Text)
}
