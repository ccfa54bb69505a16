package dynamodb

import (
	"fmt"

	"comments-api/domain/core/entities"
	"comments-api/domain/core/valueobjects"
)

const (
	entityTypeComment = "COMMENT"
	metadataSK        = "METADATA"
	mainThreadPK      = "MAIN"

	indexByPost   = "GSI1"
	indexByParent = "GSI2"
)

// commentItem is the DynamoDB item for one comment. GSI1 lists a post in
// creation order; GSI2 lists either the replies of a comment or, under
// MAIN, every top-level comment.
type commentItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	GSI1PK     string `dynamodbav:"GSI1PK"`
	GSI1SK     string `dynamodbav:"GSI1SK"`
	GSI2PK     string `dynamodbav:"GSI2PK"`
	GSI2SK     string `dynamodbav:"GSI2SK"`
	EntityType string `dynamodbav:"EntityType"`
	CommentID  string `dynamodbav:"CommentID"`
	Author     string `dynamodbav:"Author"`
	Text       string `dynamodbav:"Text"`
	PostID     string `dynamodbav:"PostID"`
	ReplyToID  string `dynamodbav:"ReplyToID,omitempty"`
	IP         string `dynamodbav:"IP"`
	Browser    string `dynamodbav:"Browser,omitempty"`
	Referrer   string `dynamodbav:"Referrer,omitempty"`
	CreatedOn  int64  `dynamodbav:"CreatedOn"`
	ModifiedOn int64  `dynamodbav:"ModifiedOn"`
	Published  bool   `dynamodbav:"Published"`
	Hash       string `dynamodbav:"Hash"`
	ReplyCount int    `dynamodbav:"ReplyCount"`
}

func commentPK(id string) string     { return fmt.Sprintf("COMMENT#%s", id) }
func postPK(postID string) string    { return fmt.Sprintf("POST#%s", postID) }
func parentPK(replyTo string) string { return fmt.Sprintf("REPLYTO#%s", replyTo) }

// chronoSK sorts by creation time, with the id breaking ties.
func chronoSK(createdOn int64, id string) string {
	return fmt.Sprintf("%013d#%s", createdOn, id)
}

func newCommentItem(rec *entities.Record) commentItem {
	threadPK := mainThreadPK
	if rec.ReplyToID != "" {
		threadPK = parentPK(rec.ReplyToID)
	}
	sk := chronoSK(rec.CreatedOn, rec.ID)
	return commentItem{
		PK:         commentPK(rec.ID),
		SK:         metadataSK,
		GSI1PK:     postPK(rec.PostID),
		GSI1SK:     sk,
		GSI2PK:     threadPK,
		GSI2SK:     sk,
		EntityType: entityTypeComment,
		CommentID:  rec.ID,
		Author:     rec.Author,
		Text:       rec.Text,
		PostID:     rec.PostID,
		ReplyToID:  rec.ReplyToID,
		IP:         rec.Source.IP,
		Browser:    rec.Source.Browser,
		Referrer:   rec.Source.Referrer,
		CreatedOn:  rec.CreatedOn,
		ModifiedOn: rec.ModifiedOn,
		Published:  rec.Published,
		Hash:       rec.Hash,
	}
}

func (i commentItem) record() *entities.Record {
	return &entities.Record{
		ID:        i.CommentID,
		Author:    i.Author,
		Text:      i.Text,
		PostID:    i.PostID,
		ReplyToID: i.ReplyToID,
		Source: valueobjects.SourceFields{
			IP:       i.IP,
			Browser:  i.Browser,
			Referrer: i.Referrer,
		},
		CreatedOn:  i.CreatedOn,
		ModifiedOn: i.ModifiedOn,
		Published:  i.Published,
		Hash:       i.Hash,
	}
}
