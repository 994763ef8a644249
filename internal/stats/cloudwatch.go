package stats

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// CloudWatchSink pushes stage duration and outcome counts to CloudWatch
// custom metrics, dimensioned by stage name.
type CloudWatchSink struct {
	Namespace string
	Client    *cloudwatch.Client
	Logger    *zap.Logger
}

// NewCloudWatchSink returns a sink bound to namespace. A nil client makes
// RecordStage a no-op.
func NewCloudWatchSink(namespace string, client *cloudwatch.Client, logger *zap.Logger) *CloudWatchSink {
	return &CloudWatchSink{Namespace: namespace, Client: client, Logger: logger}
}

func (c *CloudWatchSink) RecordStage(ctx context.Context, stageName string, dur time.Duration, snap Snapshot) {
	if c.Client == nil {
		return
	}
	now := time.Now()
	dim := []types.Dimension{{Name: aws.String("Stage"), Value: aws.String(stageName)}}

	data := []types.MetricDatum{
		{
			MetricName: aws.String("StageDuration"),
			Dimensions: dim,
			Value:      aws.Float64(float64(dur.Milliseconds())),
			Unit:       types.StandardUnitMilliseconds,
			Timestamp:  aws.Time(now),
		},
		{
			MetricName: aws.String("StageProcessed"),
			Dimensions: dim,
			Value:      aws.Float64(float64(snap.Processed)),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(now),
		},
		{
			MetricName: aws.String("StageFailed"),
			Dimensions: dim,
			Value:      aws.Float64(float64(snap.Failed)),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(now),
		},
	}

	input := &cloudwatch.PutMetricDataInput{Namespace: aws.String(c.Namespace), MetricData: data}
	if _, err := c.Client.PutMetricData(ctx, input); err != nil {
		c.Logger.Warn("failed to publish stage metrics", zap.String("stage", stageName), zap.Error(err))
	}
}
