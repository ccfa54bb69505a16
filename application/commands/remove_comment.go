package commands

import (
	pkgerrors "comments-api/pkg/errors"
)

// RemoveCommentCommand deletes a comment, tombstoning it when replies depend
// on it.
type RemoveCommentCommand struct {
	ID string `json:"id"`
}

// Validate validates the RemoveCommentCommand
func (c RemoveCommentCommand) Validate() error {
	if c.ID == "" {
		return pkgerrors.ErrMissingCommentID
	}
	return nil
}

// RemoveCommentResult reports what a removal did.
type RemoveCommentResult struct {
	DeletedCount int64  `json:"deletedCount"`
	SoftDelete   bool   `json:"softDelete"`
	Message      string `json:"message"`
}

const (
	MsgNothingDeleted    = "Comment not found, nothing to delete."
	MsgSoftDeleted       = "Comment has replies. Soft deleted."
	MsgDeletedWithParent = "Comment and parent deleted."
	MsgDeleted           = "Comment deleted."
)
