package events

import "time"

// DomainEvent is something that happened to a comment.
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregateId"`
	EventType   string    `json:"eventType"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

func newBase(commentID, eventType string, at time.Time) BaseEvent {
	return BaseEvent{AggregateID: commentID, EventType: eventType, Timestamp: at, Version: 1}
}

const (
	TypeCommentPosted   = "comment.posted"
	TypeCommentEdited   = "comment.edited"
	TypeCommentDeleted  = "comment.deleted"
	TypeReviewRequested = "comment.review_requested"
)

// CommentPosted is raised after a comment is stored.
type CommentPosted struct {
	BaseEvent
	PostID    string `json:"postId"`
	ReplyToID string `json:"replyToId,omitempty"`
	Published bool   `json:"published"`
}

func NewCommentPosted(commentID, postID, replyToID string, published bool, at time.Time) CommentPosted {
	return CommentPosted{
		BaseEvent: newBase(commentID, TypeCommentPosted, at),
		PostID:    postID,
		ReplyToID: replyToID,
		Published: published,
	}
}

// CommentEdited is raised when an edit changed the stored comment.
type CommentEdited struct {
	BaseEvent
	PostID  string `json:"postId"`
	OldHash string `json:"oldHash"`
	NewHash string `json:"newHash"`
}

func NewCommentEdited(commentID, postID, oldHash, newHash string, at time.Time) CommentEdited {
	return CommentEdited{
		BaseEvent: newBase(commentID, TypeCommentEdited, at),
		PostID:    postID,
		OldHash:   oldHash,
		NewHash:   newHash,
	}
}

// CommentDeleted is raised for each removal. Soft is set when the comment was
// tombstoned instead of removed.
type CommentDeleted struct {
	BaseEvent
	PostID string `json:"postId"`
	Soft   bool   `json:"soft"`
}

func NewCommentDeleted(commentID, postID string, soft bool, at time.Time) CommentDeleted {
	return CommentDeleted{
		BaseEvent: newBase(commentID, TypeCommentDeleted, at),
		PostID:    postID,
		Soft:      soft,
	}
}

// ReviewRequested carries a comment snapshot to the moderation hook.
type ReviewRequested struct {
	BaseEvent
	PostID    string `json:"postId"`
	Author    string `json:"author"`
	Content   string `json:"content"`
	IP        string `json:"ip"`
	Browser   string `json:"browser,omitempty"`
	Referrer  string `json:"referrer,omitempty"`
	Hash      string `json:"hash"`
	Published bool   `json:"published"`
}
