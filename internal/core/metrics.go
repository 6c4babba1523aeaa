package core

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metric names and dimensions emitted for API traffic.
const (
	MetricAPILatency      = "APILatency"
	MetricAPIRequestCount = "APIRequestCount"

	DimMethod   = "Method"
	DimEndpoint = "Endpoint"
	DimStatus   = "Status"
)

// maxDatumsPerCall is the PutMetricData batch limit.
const maxDatumsPerCall = 1000

// defaultFlushInterval is how often buffered request metrics are sent.
const defaultFlushInterval = time.Minute

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics implements MetricsCollector. RecordRequest only buffers;
// Run flushes the buffer periodically so request latency never waits on
// CloudWatch.
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
	interval  time.Duration

	mu      sync.Mutex
	pending []cwtypes.MetricDatum
	now     func() time.Time
}

var _ MetricsCollector = (*CloudWatchMetrics)(nil)

// NewCloudWatchMetrics creates a collector publishing to namespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchMetrics {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
		interval:  defaultFlushInterval,
		now:       time.Now,
	}
}

// RecordRequest buffers one latency and one count datum.
func (m *CloudWatchMetrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	dims := []cwtypes.Dimension{
		{Name: aws.String(DimMethod), Value: aws.String(method)},
		{Name: aws.String(DimEndpoint), Value: aws.String(endpoint)},
		{Name: aws.String(DimStatus), Value: aws.String(status)},
	}
	ts := aws.Time(m.now())

	m.mu.Lock()
	m.pending = append(m.pending,
		cwtypes.MetricDatum{
			MetricName: aws.String(MetricAPILatency),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: dims,
			Timestamp:  ts,
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(MetricAPIRequestCount),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
			Timestamp:  ts,
		},
	)
	m.mu.Unlock()
}

// Run flushes on every tick until ctx is done, then flushes once more with a
// fresh short deadline.
func (m *CloudWatchMetrics) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Flush(ctx)
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			m.Flush(final)
			cancel()
			return
		}
	}
}

// Flush sends every buffered datum. Failed batches are logged and dropped.
func (m *CloudWatchMetrics) Flush(ctx context.Context) {
	m.mu.Lock()
	batch := m.pending
	m.pending = nil
	m.mu.Unlock()

	for start := 0; start < len(batch); start += maxDatumsPerCall {
		end := min(start+maxDatumsPerCall, len(batch))
		input := &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(m.namespace),
			MetricData: batch[start:end],
		}
		if _, err := m.client.PutMetricData(ctx, input); err != nil {
			m.logger.Error("failed to publish request metrics",
				"error", err.Error(),
				"datums", end-start,
			)
		}
	}
}
