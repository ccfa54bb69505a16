package entities

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"comments-api/domain/config"
	"comments-api/domain/core/valueobjects"
	pkgerrors "comments-api/pkg/errors"
	"comments-api/pkg/utils"
)

// IDProvider generates and validates comment identifiers.
type IDProvider interface {
	MakeID() string
	IsValidID(candidate string) bool
}

// Sanitizer strips executable markup from user supplied text.
type Sanitizer interface {
	Sanitize(raw string) string
}

// CommentFields is the raw input to MakeComment. Zero values mean absent.
type CommentFields struct {
	ID         string
	Author     string
	PostID     string
	Text       string
	Source     *valueobjects.SourceFields
	ReplyToID  string
	CreatedOn  time.Time
	ModifiedOn time.Time
	Published  bool
}

// Comment is a validated comment. Its state only changes through Publish,
// UnPublish and MarkDeleted.
type Comment struct {
	id         string
	author     string
	postID     string
	text       string
	source     valueobjects.Source
	replyToID  string
	createdOn  time.Time
	modifiedOn time.Time
	published  bool

	deletedText   string
	deletedAuthor string

	hashOnce sync.Once
	hash     string
}

// CommentFactory builds Comments with its injected collaborators.
type CommentFactory struct {
	ids       IDProvider
	sanitizer Sanitizer
	sources   *valueobjects.SourceFactory
	cfg       *config.DomainConfig
}

// NewCommentFactory creates a CommentFactory. A nil cfg uses the defaults.
func NewCommentFactory(
	ids IDProvider,
	sanitizer Sanitizer,
	sources *valueobjects.SourceFactory,
	cfg *config.DomainConfig,
) *CommentFactory {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &CommentFactory{ids: ids, sanitizer: sanitizer, sources: sources, cfg: cfg}
}

// MakeComment validates fields and returns a Comment. Checks run in a fixed
// order and the first failure is returned.
func (f *CommentFactory) MakeComment(fields CommentFields) (*Comment, error) {
	id := fields.ID
	if id == "" {
		id = f.ids.MakeID()
	}
	if !f.ids.IsValidID(id) {
		return nil, pkgerrors.ErrInvalidCommentID
	}
	if fields.Author == "" {
		return nil, pkgerrors.ErrMissingAuthor
	}
	if utf8.RuneCountInString(fields.Author) < f.cfg.MinAuthorLength {
		return nil, pkgerrors.ErrAuthorTooShort
	}
	if fields.PostID == "" {
		return nil, pkgerrors.ErrMissingPostID
	}
	if fields.Text == "" {
		return nil, pkgerrors.ErrMissingText
	}
	if fields.Source == nil {
		return nil, pkgerrors.ErrMissingOrigin
	}
	source, err := f.sources.MakeSource(*fields.Source)
	if err != nil {
		return nil, err
	}
	if fields.ReplyToID != "" && !f.ids.IsValidID(fields.ReplyToID) {
		return nil, pkgerrors.ErrInvalidReplyToID
	}

	text := strings.TrimSpace(f.sanitizer.Sanitize(fields.Text))
	if text == "" {
		return nil, pkgerrors.ErrUnusableText
	}

	now := utils.NowUTC()
	createdOn, modifiedOn := fields.CreatedOn, fields.ModifiedOn
	if createdOn.IsZero() {
		createdOn = now
	}
	if modifiedOn.IsZero() {
		modifiedOn = now
	}

	return &Comment{
		id:            id,
		author:        fields.Author,
		postID:        fields.PostID,
		text:          text,
		source:        source,
		replyToID:     fields.ReplyToID,
		createdOn:     createdOn.UTC(),
		modifiedOn:    modifiedOn.UTC(),
		published:     fields.Published,
		deletedText:   f.cfg.DeletedText,
		deletedAuthor: f.cfg.DeletedAuthor,
	}, nil
}

// Getters

func (c *Comment) ID() string                  { return c.id }
func (c *Comment) Author() string              { return c.author }
func (c *Comment) PostID() string              { return c.postID }
func (c *Comment) Text() string                { return c.text }
func (c *Comment) Source() valueobjects.Source { return c.source }
func (c *Comment) ReplyToID() string           { return c.replyToID }
func (c *Comment) CreatedOn() time.Time        { return c.createdOn }
func (c *Comment) ModifiedOn() time.Time       { return c.modifiedOn }
func (c *Comment) IsPublished() bool           { return c.published }

// IsDeleted reports whether the comment carries the tombstone text.
func (c *Comment) IsDeleted() bool {
	return c.text == c.deletedText
}

// IsReply reports whether the comment answers another comment.
func (c *Comment) IsReply() bool {
	return c.replyToID != ""
}

// Business methods

// Publish makes the comment visible.
func (c *Comment) Publish() {
	c.published = true
}

// UnPublish hides the comment.
func (c *Comment) UnPublish() {
	c.published = false
}

// MarkDeleted replaces text and author with the tombstone placeholders. The
// comment keeps its id, post and parent so replies stay anchored.
func (c *Comment) MarkDeleted() {
	c.text = c.deletedText
	c.author = c.deletedAuthor
}

// Hash returns the md5 of text, published, author, postId and replyToId as
// they were on the first call. Later mutations do not change it.
func (c *Comment) Hash() string {
	c.hashOnce.Do(func() {
		sum := md5.Sum([]byte(c.text + strconv.FormatBool(c.published) + c.author + c.postID + c.replyToID))
		c.hash = hex.EncodeToString(sum[:])
	})
	return c.hash
}

// Record returns the flat persisted representation.
func (c *Comment) Record() *Record {
	return &Record{
		ID:         c.id,
		Author:     c.author,
		Text:       c.text,
		PostID:     c.postID,
		ReplyToID:  c.replyToID,
		Source:     c.source.Fields(),
		CreatedOn:  c.createdOn.UnixMilli(),
		ModifiedOn: c.modifiedOn.UnixMilli(),
		Published:  c.published,
		Hash:       c.Hash(),
	}
}
