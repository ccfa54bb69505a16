package entities

import (
	"time"

	"comments-api/domain/core/valueobjects"
	"comments-api/pkg/utils"
)

// Record is the flat shape a comment is stored and listed in. Timestamps are
// Unix milliseconds.
type Record struct {
	ID         string                    `json:"id"`
	Author     string                    `json:"author"`
	Text       string                    `json:"text"`
	PostID     string                    `json:"postId"`
	ReplyToID  string                    `json:"replyToId,omitempty"`
	Source     valueobjects.SourceFields `json:"source"`
	CreatedOn  int64                     `json:"createdOn"`
	ModifiedOn int64                     `json:"modifiedOn"`
	Published  bool                      `json:"published"`
	Hash       string                    `json:"hash,omitempty"`
}

// IsTopLevel reports whether the record starts a thread.
func (r *Record) IsTopLevel() bool {
	return r.ReplyToID == ""
}

// Fields converts the record back into factory input.
func (r *Record) Fields() CommentFields {
	src := r.Source
	return CommentFields{
		ID:         r.ID,
		Author:     r.Author,
		PostID:     r.PostID,
		Text:       r.Text,
		Source:     &src,
		ReplyToID:  r.ReplyToID,
		CreatedOn:  fromMillis(r.CreatedOn),
		ModifiedOn: fromMillis(r.ModifiedOn),
		Published:  r.Published,
	}
}

// Clone returns a copy that shares nothing with r.
func (r *Record) Clone() *Record {
	cp := *r
	return &cp
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return utils.FromUnixMilli(ms)
}
