package queries

import (
	pkgerrors "comments-api/pkg/errors"
)

// ListCommentsQuery lists the threads of one post.
type ListCommentsQuery struct {
	PostID string
}

// Validate validates the ListCommentsQuery
func (q ListCommentsQuery) Validate() error {
	if q.PostID == "" {
		return pkgerrors.ErrMissingPostID
	}
	return nil
}

// ListMainCommentsQuery lists top-level comments across posts.
type ListMainCommentsQuery struct{}

// Validate validates the ListMainCommentsQuery
func (q ListMainCommentsQuery) Validate() error {
	return nil
}
