// Package local provides in-process stand-ins for the messaging adapters.
package local

import (
	"context"

	"comments-api/domain/events"

	"go.uber.org/zap"
)

// LogPublisher writes events and review requests to the log.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, evts ...events.DomainEvent) error {
	for _, e := range evts {
		p.logger.Info("Domain event",
			zap.String("eventType", e.GetEventType()),
			zap.String("commentID", e.GetAggregateID()),
			zap.Time("timestamp", e.GetTimestamp()),
		)
	}
	return nil
}

func (p *LogPublisher) InitiateReview(ctx context.Context, review events.ReviewRequested) error {
	p.logger.Info("Comment review requested",
		zap.String("commentID", review.AggregateID),
		zap.String("postID", review.PostID),
		zap.String("ip", review.IP),
		zap.Bool("published", review.Published),
	)
	return nil
}
