package observability_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"comments-api/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCloudWatch struct {
	mock.Mock
}

func (m *mockCloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*cloudwatch.PutMetricDataOutput)
	return out, args.Error(1)
}

func datumNames(in *cloudwatch.PutMetricDataInput) []string {
	names := make([]string, 0, len(in.MetricData))
	for _, d := range in.MetricData {
		names = append(names, aws.ToString(d.MetricName))
	}
	return names
}

func TestMetrics_ExportToCloudWatch(t *testing.T) {
	client := new(mockCloudWatch)
	sink := observability.NewCloudWatchSink(client, "Comments/production")
	m := observability.NewMetrics("comments").ExportTo(sink)

	var sent *cloudwatch.PutMetricDataInput
	client.On("PutMetricData", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(*cloudwatch.PutMetricDataInput) }).
		Return(&cloudwatch.PutMetricDataOutput{}, nil).Once()

	m.ObserveHTTP(http.MethodPost, "/comments", http.StatusCreated, 12*time.Millisecond)
	m.ObserveCommand("AddComment", 3*time.Millisecond, errors.New("boom"))
	m.ObserveQuery("ListComments", time.Millisecond, nil)
	m.ObserveReview("delivered")
	assert.Equal(t, 7, sink.Pending())

	require.NoError(t, m.Flush(context.Background()))

	require.NotNil(t, sent)
	assert.Equal(t, "Comments/production", aws.ToString(sent.Namespace))
	assert.Equal(t, []string{
		"HTTPRequests", "HTTPLatency",
		"CommandCount", "CommandExecution",
		"QueryCount", "QueryExecution",
		"ModerationReviews",
	}, datumNames(sent))

	commandCount := sent.MetricData[2]
	require.Len(t, commandCount.Dimensions, 2)
	assert.Equal(t, "Status", aws.ToString(commandCount.Dimensions[1].Name))
	assert.Equal(t, "error", aws.ToString(commandCount.Dimensions[1].Value))
	assert.Equal(t, 12.0, aws.ToFloat64(sent.MetricData[1].Value))
	assert.Equal(t, types.StandardUnitMilliseconds, sent.MetricData[1].Unit)
	assert.Zero(t, sink.Pending())
}

func TestCloudWatchSink_FlushBatches(t *testing.T) {
	client := new(mockCloudWatch)
	sink := observability.NewCloudWatchSink(client, "Comments/test")
	m := observability.NewMetrics("comments").ExportTo(sink)

	var sizes []int
	client.On("PutMetricData", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			sizes = append(sizes, len(args.Get(1).(*cloudwatch.PutMetricDataInput).MetricData))
		}).
		Return(&cloudwatch.PutMetricDataOutput{}, nil)

	for i := 0; i < 1001; i++ {
		m.ObserveReview("delivered")
	}
	require.NoError(t, sink.Flush(context.Background()))

	assert.Equal(t, []int{1000, 1}, sizes)
}

func TestCloudWatchSink_FlushErrorDiscardsBatch(t *testing.T) {
	client := new(mockCloudWatch)
	sink := observability.NewCloudWatchSink(client, "Comments/test")
	m := observability.NewMetrics("comments").ExportTo(sink)
	client.On("PutMetricData", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	m.ObserveReview("failed")
	err := m.Flush(context.Background())

	assert.ErrorContains(t, err, "throttled")
	assert.Zero(t, sink.Pending())
}

func TestCloudWatchSink_EmptyFlushSendsNothing(t *testing.T) {
	client := new(mockCloudWatch)
	sink := observability.NewCloudWatchSink(client, "Comments/test")

	require.NoError(t, sink.Flush(context.Background()))
	client.AssertNotCalled(t, "PutMetricData", mock.Anything, mock.Anything)
}

func TestMetrics_FlushWithoutSink(t *testing.T) {
	assert.NoError(t, observability.NewMetrics("comments").Flush(context.Background()))
}
