// Package moderation delivers review requests to the moderation hook off the
// request path.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"comments-api/application/ports"
	"comments-api/domain/events"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Review outcomes reported to the Recorder.
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
	OutcomeDropped   = "dropped"
	OutcomePanicked  = "panicked"
)

// Recorder counts review outcomes.
type Recorder interface {
	ObserveReview(outcome string)
}

// Tracer wraps a unit of work in a trace and labels it.
type Tracer interface {
	TraceFunction(ctx context.Context, name string, fn func(context.Context) error) error
	AddAnnotation(ctx context.Context, key, value string)
	AddMetadata(ctx context.Context, key string, value interface{})
}

// Config tunes the dispatcher.
type Config struct {
	Workers       int
	QueueSize     int
	RatePerSecond float64
	Timeout       time.Duration

	// Circuit breaker around the hook
	BreakerMinRequests   uint32
	BreakerFailureRatio  float64
	BreakerOpenTimeout   time.Duration
	BreakerHalfOpenProbe uint32
}

// DefaultConfig returns a configuration suited to a rate limited review API.
func DefaultConfig() Config {
	return Config{
		Workers:              2,
		QueueSize:            256,
		RatePerSecond:        1,
		Timeout:              10 * time.Second,
		BreakerMinRequests:   5,
		BreakerFailureRatio:  0.6,
		BreakerOpenTimeout:   30 * time.Second,
		BreakerHalfOpenProbe: 1,
	}
}

// Dispatcher queues review requests and delivers them to the hook from a
// fixed set of workers. Submit never blocks and never fails; hook errors and
// panics are logged and counted, not propagated.
type Dispatcher struct {
	hook     ports.ModerationHook
	cfg      Config
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	recorder Recorder
	tracer   Tracer
	logger   *zap.Logger

	queue     chan events.ReviewRequested
	stopChan  chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewDispatcher creates a dispatcher. recorder and tracer may be nil.
func NewDispatcher(hook ports.ModerationHook, cfg Config, recorder Recorder, tracer Tracer, logger *zap.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	d := &Dispatcher{
		hook:     hook,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, 1),
		recorder: recorder,
		tracer:   tracer,
		logger:   logger,
		queue:    make(chan events.ReviewRequested, cfg.QueueSize),
		stopChan: make(chan struct{}),
	}
	d.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "moderation-hook",
		MaxRequests: cfg.BreakerHalfOpenProbe,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.BreakerFailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Moderation circuit breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return d
}

// Start launches the workers. Work stops when ctx is cancelled or Stop is
// called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		d.logger.Info("Starting moderation dispatcher",
			zap.Int("workers", d.cfg.Workers),
			zap.Int("queueSize", d.cfg.QueueSize),
		)
		for i := 0; i < d.cfg.Workers; i++ {
			d.wg.Add(1)
			go d.work(ctx)
		}
	})
}

// Stop stops accepting reviews, lets workers drain what is queued and waits
// for them to exit.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.logger.Info("Stopping moderation dispatcher")
		close(d.stopChan)
	})
	d.wg.Wait()
}

// Submit queues review for delivery. A full queue or a stopped dispatcher
// drops the review.
func (d *Dispatcher) Submit(review events.ReviewRequested) {
	select {
	case <-d.stopChan:
		d.drop(review, "dispatcher stopped")
		return
	default:
	}

	select {
	case d.queue <- review:
	default:
		d.drop(review, "queue full")
	}
}

func (d *Dispatcher) drop(review events.ReviewRequested, reason string) {
	d.observe(OutcomeDropped)
	d.logger.Warn("Dropping comment review",
		zap.String("commentID", review.AggregateID),
		zap.String("reason", reason),
	)
}

func (d *Dispatcher) work(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopChan:
			d.drain(ctx)
			return
		case review := <-d.queue:
			d.deliver(ctx, review)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case review := <-d.queue:
			d.deliver(ctx, review)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, review events.ReviewRequested) {
	defer func() {
		if rec := recover(); rec != nil {
			d.observe(OutcomePanicked)
			d.logger.Error("Moderation hook panicked",
				zap.String("commentID", review.AggregateID),
				zap.Any("panic", rec),
			)
		}
	}()

	if err := d.limiter.Wait(ctx); err != nil {
		d.observe(OutcomeDropped)
		d.logger.Warn("Comment review abandoned",
			zap.String("commentID", review.AggregateID),
			zap.Error(err),
		)
		return
	}

	err := d.trace(ctx, review, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
		_, err := d.breaker.Execute(func() (interface{}, error) {
			return nil, d.hook.InitiateReview(callCtx, review)
		})
		return err
	})

	switch {
	case err == nil:
		d.observe(OutcomeDelivered)
		d.logger.Debug("Comment review initiated", zap.String("commentID", review.AggregateID))
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		d.observe(OutcomeRejected)
		d.logger.Warn("Moderation hook unavailable, review skipped",
			zap.String("commentID", review.AggregateID),
			zap.Error(err),
		)
	default:
		d.observe(OutcomeFailed)
		d.logger.Warn("Moderation hook failed",
			zap.String("commentID", review.AggregateID),
			zap.Error(err),
		)
	}
}

func (d *Dispatcher) trace(ctx context.Context, review events.ReviewRequested, fn func(context.Context) error) error {
	if d.tracer == nil {
		return fn(ctx)
	}
	return d.tracer.TraceFunction(ctx, "moderation.review", func(ctx context.Context) error {
		d.tracer.AddAnnotation(ctx, "commentId", review.AggregateID)
		d.tracer.AddAnnotation(ctx, "postId", review.PostID)
		d.tracer.AddMetadata(ctx, "breaker", d.breaker.State().String())
		return fn(ctx)
	})
}

func (d *Dispatcher) observe(outcome string) {
	if d.recorder != nil {
		d.recorder.ObserveReview(outcome)
	}
}

// String describes the dispatcher for logs.
func (d *Dispatcher) String() string {
	return fmt.Sprintf("moderation.Dispatcher(workers=%d, queued=%d/%d, breaker=%s)",
		d.cfg.Workers, len(d.queue), cap(d.queue), d.breaker.State())
}
