package bus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Command represents a command that changes state
type Command interface {
	Validate() error
}

// CommandHandler handles a specific command type
type CommandHandler interface {
	Handle(ctx context.Context, cmd Command) (interface{}, error)
}

// CommandHandlerFunc is an adapter to allow functions to be used as handlers
type CommandHandlerFunc func(ctx context.Context, cmd Command) (interface{}, error)

// Handle implements CommandHandler
func (f CommandHandlerFunc) Handle(ctx context.Context, cmd Command) (interface{}, error) {
	return f(ctx, cmd)
}

// Typed adapts a handler method for one concrete command type.
func Typed[C Command, R any](fn func(context.Context, C) (R, error)) CommandHandler {
	return CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
		c, ok := cmd.(C)
		if !ok {
			return nil, fmt.Errorf("%w: got %T", ErrUnexpectedCommand, cmd)
		}
		return fn(ctx, c)
	})
}

// Middleware defines command middleware
type Middleware func(next CommandHandler) CommandHandler

// CommandBus dispatches commands to their handlers
type CommandBus struct {
	handlers    map[reflect.Type]CommandHandler
	middlewares []Middleware
	mu          sync.RWMutex
}

// NewCommandBus creates a command bus. Middleware wraps every handler
// registered afterwards, outermost first.
func NewCommandBus(middlewares ...Middleware) *CommandBus {
	return &CommandBus{
		handlers:    make(map[reflect.Type]CommandHandler),
		middlewares: middlewares,
	}
}

// Register registers a handler for a command type
func (b *CommandBus) Register(cmdType Command, handler CommandHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := reflect.TypeOf(cmdType)
	if _, exists := b.handlers[t]; exists {
		return fmt.Errorf("handler already registered for command type %s", t.Name())
	}

	for i := len(b.middlewares) - 1; i >= 0; i-- {
		handler = b.middlewares[i](handler)
	}
	b.handlers[t] = handler
	return nil
}

// Send dispatches a command to its handler. Handler errors are returned
// unchanged so callers can match them with errors.Is.
func (b *CommandBus) Send(ctx context.Context, cmd Command) (interface{}, error) {
	b.mu.RLock()
	handler, exists := b.handlers[reflect.TypeOf(cmd)]
	b.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %T", ErrHandlerNotFound, cmd)
	}
	return handler.Handle(ctx, cmd)
}

// Observer receives command outcomes.
type Observer interface {
	ObserveCommand(name string, took time.Duration, err error)
}

// LoggingMiddleware logs command execution
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next CommandHandler) CommandHandler {
		return CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
			cmdType := reflect.TypeOf(cmd).Name()
			logger.Debug("Executing command", zap.String("type", cmdType))

			res, err := next.Handle(ctx, cmd)
			if err != nil {
				logger.Info("Command failed", zap.String("type", cmdType), zap.Error(err))
			}
			return res, err
		})
	}
}

// MetricsMiddleware reports duration and outcome of every command.
func MetricsMiddleware(obs Observer) Middleware {
	return func(next CommandHandler) CommandHandler {
		return CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
			start := time.Now()
			res, err := next.Handle(ctx, cmd)
			obs.ObserveCommand(reflect.TypeOf(cmd).Name(), time.Since(start), err)
			return res, err
		})
	}
}

// ValidationMiddleware rejects invalid commands before they reach a handler.
// The command's error is returned as is.
func ValidationMiddleware() Middleware {
	return func(next CommandHandler) CommandHandler {
		return CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
			if err := cmd.Validate(); err != nil {
				return nil, err
			}
			return next.Handle(ctx, cmd)
		})
	}
}

// Tracer opens a trace around a unit of work and annotates it.
type Tracer interface {
	TraceFunction(ctx context.Context, name string, fn func(context.Context) error) error
	AddAnnotation(ctx context.Context, key, value string)
}

// TracingMiddleware runs each command in its own subsegment, annotated with
// the command name so traces can be filtered by it.
func TracingMiddleware(tracer Tracer) Middleware {
	return func(next CommandHandler) CommandHandler {
		return CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
			name := reflect.TypeOf(cmd).Name()
			var res interface{}
			err := tracer.TraceFunction(ctx, "command."+name, func(ctx context.Context) error {
				tracer.AddAnnotation(ctx, "command", name)
				var err error
				res, err = next.Handle(ctx, cmd)
				return err
			})
			return res, err
		})
	}
}

// Errors
var (
	ErrHandlerNotFound   = errors.New("command handler not found")
	ErrUnexpectedCommand = errors.New("unexpected command type")
)
