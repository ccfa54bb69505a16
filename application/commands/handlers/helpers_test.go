package handlers_test

import (
	"context"
	"sync"

	"comments-api/domain/core/entities"
	"comments-api/domain/events"

	"github.com/stretchr/testify/mock"
)

type recordingQueue struct {
	mu      sync.Mutex
	reviews []events.ReviewRequested
}

func (q *recordingQueue) Submit(review events.ReviewRequested) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reviews = append(q.reviews, review)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.DomainEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evts ...events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evts...)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.GetEventType())
	}
	return out
}

// mockRepository lets a test script store responses, including ones a real
// store only produces under concurrent writes.
type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Insert(ctx context.Context, rec *entities.Record) (*entities.Record, error) {
	args := m.Called(ctx, rec)
	out, _ := args.Get(0).(*entities.Record)
	return out, args.Error(1)
}

func (m *mockRepository) FindByID(ctx context.Context, id string) (*entities.Record, error) {
	args := m.Called(ctx, id)
	out, _ := args.Get(0).(*entities.Record)
	return out, args.Error(1)
}

func (m *mockRepository) Find(ctx context.Context, postID string) ([]*entities.Record, error) {
	args := m.Called(ctx, postID)
	out, _ := args.Get(0).([]*entities.Record)
	return out, args.Error(1)
}

func (m *mockRepository) FindMainComments(ctx context.Context) ([]*entities.Record, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]*entities.Record)
	return out, args.Error(1)
}

func (m *mockRepository) FindReplies(ctx context.Context, commentID string) ([]*entities.Record, error) {
	args := m.Called(ctx, commentID)
	out, _ := args.Get(0).([]*entities.Record)
	return out, args.Error(1)
}

func (m *mockRepository) Update(ctx context.Context, rec *entities.Record) (*entities.Record, error) {
	args := m.Called(ctx, rec)
	out, _ := args.Get(0).(*entities.Record)
	return out, args.Error(1)
}

func (m *mockRepository) Remove(ctx context.Context, id string) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepository) RemoveIfNoReplies(ctx context.Context, id string) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}
