// Package eventbridge publishes comment events and review requests to an
// Amazon EventBridge bus.
package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"comments-api/domain/events"
	pkgerrors "comments-api/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"
)

// maxEntriesPerCall is the PutEvents batch limit.
const maxEntriesPerCall = 10

// PutEventsAPI is the subset of the EventBridge client used here.
type PutEventsAPI interface {
	PutEvents(ctx context.Context, params *awseventbridge.PutEventsInput, optFns ...func(*awseventbridge.Options)) (*awseventbridge.PutEventsOutput, error)
}

// Publisher sends events to one bus. It serves both as the domain event
// publisher and as the moderation hook: a review request is just another
// event that the review pipeline subscribes to.
type Publisher struct {
	client  PutEventsAPI
	busName string
	source  string
	logger  *zap.Logger
}

// NewPublisher creates a publisher for busName.
func NewPublisher(client PutEventsAPI, busName, source string, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, busName: busName, source: source, logger: logger}
}

// Publish sends events in batches of ten.
func (p *Publisher) Publish(ctx context.Context, evts ...events.DomainEvent) error {
	for start := 0; start < len(evts); start += maxEntriesPerCall {
		end := start + maxEntriesPerCall
		if end > len(evts) {
			end = len(evts)
		}
		if err := p.put(ctx, evts[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// InitiateReview publishes review as a comment.review_requested event.
func (p *Publisher) InitiateReview(ctx context.Context, review events.ReviewRequested) error {
	return p.put(ctx, []events.DomainEvent{review})
}

func (p *Publisher) put(ctx context.Context, evts []events.DomainEvent) error {
	entries := make([]types.PutEventsRequestEntry, 0, len(evts))
	for _, e := range evts {
		detail, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", e.GetEventType(), err)
		}
		entries = append(entries, types.PutEventsRequestEntry{
			EventBusName: aws.String(p.busName),
			Source:       aws.String(p.source),
			DetailType:   aws.String(e.GetEventType()),
			Detail:       aws.String(string(detail)),
			Resources:    []string{},
			Time:         aws.Time(e.GetTimestamp()),
		})
	}

	out, err := p.client.PutEvents(ctx, &awseventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return pkgerrors.NewExternalError("eventbridge", err)
	}
	if out.FailedEntryCount > 0 {
		for i, entry := range out.Entries {
			if entry.ErrorCode == nil {
				continue
			}
			p.logger.Warn("EventBridge rejected event",
				zap.String("eventType", evts[i].GetEventType()),
				zap.String("commentID", evts[i].GetAggregateID()),
				zap.String("errorCode", aws.ToString(entry.ErrorCode)),
				zap.String("errorMessage", aws.ToString(entry.ErrorMessage)),
			)
		}
		return pkgerrors.NewExternalError("eventbridge",
			fmt.Errorf("%d of %d events rejected", out.FailedEntryCount, len(entries)))
	}
	return nil
}
