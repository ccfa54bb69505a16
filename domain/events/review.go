package events

import (
	"time"

	"comments-api/domain/core/entities"
)

// NewReviewRequested snapshots c for review. The snapshot is a value, so the
// worker handling it never shares state with the request that produced it.
func NewReviewRequested(c *entities.Comment, at time.Time) ReviewRequested {
	src := c.Source()
	return ReviewRequested{
		BaseEvent: newBase(c.ID(), TypeReviewRequested, at),
		PostID:    c.PostID(),
		Author:    c.Author(),
		Content:   c.Text(),
		IP:        src.IP(),
		Browser:   src.Browser(),
		Referrer:  src.Referrer(),
		Hash:      c.Hash(),
		Published: c.IsPublished(),
	}
}
