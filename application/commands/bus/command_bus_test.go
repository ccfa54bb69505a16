package bus_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"comments-api/application/commands"
	"comments-api/application/commands/bus"
	pkgerrors "comments-api/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTracer struct {
	spans       []string
	annotations map[string]string
}

func (t *recordingTracer) TraceFunction(ctx context.Context, name string, fn func(context.Context) error) error {
	t.spans = append(t.spans, name)
	return fn(ctx)
}

func (t *recordingTracer) AddAnnotation(_ context.Context, key, value string) {
	if t.annotations == nil {
		t.annotations = make(map[string]string)
	}
	t.annotations[key] = value
}

type recordingObserver struct {
	names []string
	errs  []error
}

func (o *recordingObserver) ObserveCommand(name string, _ time.Duration, err error) {
	o.names = append(o.names, name)
	o.errs = append(o.errs, err)
}

func removeHandler(calls *int) bus.CommandHandler {
	return bus.Typed(func(_ context.Context, cmd commands.RemoveCommentCommand) (string, error) {
		*calls++
		return "removed " + cmd.ID, nil
	})
}

func TestCommandBus_SendRoutesByType(t *testing.T) {
	calls := 0
	b := bus.NewCommandBus()
	require.NoError(t, b.Register(commands.RemoveCommentCommand{}, removeHandler(&calls)))

	res, err := b.Send(context.Background(), commands.RemoveCommentCommand{ID: "c1"})

	require.NoError(t, err)
	assert.Equal(t, "removed c1", res)
	assert.Equal(t, 1, calls)
}

func TestCommandBus_RegisterTwice(t *testing.T) {
	calls := 0
	b := bus.NewCommandBus()
	require.NoError(t, b.Register(commands.RemoveCommentCommand{}, removeHandler(&calls)))

	err := b.Register(commands.RemoveCommentCommand{}, removeHandler(&calls))

	assert.Error(t, err)
}

func TestCommandBus_UnknownCommand(t *testing.T) {
	_, err := bus.NewCommandBus().Send(context.Background(), commands.RemoveCommentCommand{ID: "c1"})

	assert.ErrorIs(t, err, bus.ErrHandlerNotFound)
}

func TestTyped_RejectsOtherCommands(t *testing.T) {
	calls := 0
	_, err := removeHandler(&calls).Handle(context.Background(), commands.EditCommentCommand{ID: "c1", Text: "x"})

	assert.ErrorIs(t, err, bus.ErrUnexpectedCommand)
	assert.Zero(t, calls)
}

func TestValidationMiddleware(t *testing.T) {
	tests := []struct {
		name  string
		cmd   bus.Command
		want  error
		calls int
	}{
		{"valid remove", commands.RemoveCommentCommand{ID: "c1"}, nil, 1},
		{"remove without id", commands.RemoveCommentCommand{}, pkgerrors.ErrMissingCommentID, 0},
		{"edit without text", commands.EditCommentCommand{ID: "c1"}, pkgerrors.ErrMissingText, 0},
		{"add with long text", commands.AddCommentCommand{Text: string(make([]byte, commands.MaxTextLength+1))}, pkgerrors.ErrTextTooLong, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			next := bus.CommandHandlerFunc(func(context.Context, bus.Command) (interface{}, error) {
				calls++
				return nil, nil
			})

			_, err := bus.ValidationMiddleware()(next).Handle(context.Background(), tt.cmd)

			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
			assert.Equal(t, tt.calls, calls)
		})
	}
}

func TestTracingMiddleware_AnnotatesCommand(t *testing.T) {
	tracer := &recordingTracer{}
	calls := 0
	b := bus.NewCommandBus(bus.TracingMiddleware(tracer))
	require.NoError(t, b.Register(commands.RemoveCommentCommand{}, removeHandler(&calls)))

	res, err := b.Send(context.Background(), commands.RemoveCommentCommand{ID: "c1"})

	require.NoError(t, err)
	assert.Equal(t, "removed c1", res)
	assert.Equal(t, []string{"command.RemoveCommentCommand"}, tracer.spans)
	assert.Equal(t, "RemoveCommentCommand", tracer.annotations["command"])
}

func TestMetricsMiddleware_ReportsOutcome(t *testing.T) {
	obs := &recordingObserver{}
	boom := errors.New("boom")
	b := bus.NewCommandBus(bus.MetricsMiddleware(obs))
	require.NoError(t, b.Register(commands.RemoveCommentCommand{}, bus.CommandHandlerFunc(
		func(context.Context, bus.Command) (interface{}, error) { return nil, boom })))

	_, err := b.Send(context.Background(), commands.RemoveCommentCommand{ID: "c1"})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"RemoveCommentCommand"}, obs.names)
	assert.Equal(t, []error{boom}, obs.errs)
}
