package observability

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

const (
	// PutMetricData accepts at most 1000 datums per call.
	maxDatumsPerPut = 1000
	maxPending      = 20 * maxDatumsPerPut
)

// CloudWatchAPI is the subset of the CloudWatch client the sink needs.
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchSink buffers metric datums and sends them on Flush. It serves
// deployments nothing scrapes, such as Lambda, where /metrics is unreachable.
type CloudWatchSink struct {
	namespace string
	client    CloudWatchAPI
	now       func() time.Time

	mu      sync.Mutex
	pending []types.MetricDatum
	dropped int
}

// NewCloudWatchSink creates a sink publishing under namespace.
func NewCloudWatchSink(client CloudWatchAPI, namespace string) *CloudWatchSink {
	return &CloudWatchSink{
		namespace: namespace,
		client:    client,
		now:       time.Now,
	}
}

func (s *CloudWatchSink) record(name string, value float64, unit types.StandardUnit, dims ...string) {
	datum := types.MetricDatum{
		MetricName: aws.String(name),
		Dimensions: dimensions(dims...),
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(s.now()),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) >= maxPending {
		s.dropped++
		return
	}
	s.pending = append(s.pending, datum)
}

// Pending reports how many datums wait for the next Flush.
func (s *CloudWatchSink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Flush sends every buffered datum. Datums in a failed batch are discarded.
func (s *CloudWatchSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	batch := s.pending
	dropped := s.dropped
	s.pending = nil
	s.dropped = 0
	s.mu.Unlock()

	if dropped > 0 {
		batch = append(batch, types.MetricDatum{
			MetricName: aws.String("DroppedDatums"),
			Value:      aws.Float64(float64(dropped)),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(s.now()),
		})
	}

	var errs []error
	for start := 0; start < len(batch); start += maxDatumsPerPut {
		end := min(start+maxDatumsPerPut, len(batch))
		_, err := s.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(s.namespace),
			MetricData: batch[start:end],
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// dimensions pairs up name, value arguments.
func dimensions(kv ...string) []types.Dimension {
	dims := make([]types.Dimension, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		dims = append(dims, types.Dimension{
			Name:  aws.String(kv[i]),
			Value: aws.String(kv[i+1]),
		})
	}
	return dims
}
