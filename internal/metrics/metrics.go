package metrics

import (
	"context"

	cw "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"

	"github.com/freshkart/grocery-orderflow/internal/aws"
)

// Metric names emitted by the order workflow.
const (
	MetricOrdersPlaced    = "OrdersPlaced"
	MetricStockConflicts  = "StockConflicts"
	MetricOrdersCancelled = "OrdersCancelled"
)

// Recorder pushes workflow counters to CloudWatch. Emission is best-effort:
// a metric failure is logged and never fails the request.
type Recorder struct {
	client    aws.CloudWatchAPI
	namespace string
	log       *zap.Logger
}

// NewRecorder returns a Recorder. A nil client yields a no-op recorder, used
// in local runs and tests.
func NewRecorder(client aws.CloudWatchAPI, namespace string, log *zap.Logger) *Recorder {
	return &Recorder{
		client:    client,
		namespace: namespace,
		log:       log,
	}
}

// Count emits a unit-count datapoint with optional dimensions.
func (r *Recorder) Count(ctx context.Context, name string, value float64, dims map[string]string) {
	if r == nil || r.client == nil {
		return
	}
	datum := cwtypes.MetricDatum{
		MetricName: &name,
		Value:      &value,
		Unit:       cwtypes.StandardUnitCount,
	}
	for k, v := range dims {
		k, v := k, v
		datum.Dimensions = append(datum.Dimensions, cwtypes.Dimension{Name: &k, Value: &v})
	}
	_, err := r.client.PutMetricData(ctx, &cw.PutMetricDataInput{
		Namespace:  &r.namespace,
		MetricData: []cwtypes.MetricDatum{datum},
	})
	if err != nil && r.log != nil {
		r.log.Warn("put metric data", zap.String("metric", name), zap.Error(err))
	}
}
