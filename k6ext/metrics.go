// Package k6ext connects drivers to the k6 metrics pipeline.
package k6ext

import (
	"context"
	"time"

	k6metrics "go.k6.io/k6/metrics"

	"github.com/grafana/xk6-acceptance/api"
)

// CustomMetrics are the custom k6 metrics used by xk6-acceptance.
type CustomMetrics struct {
	AcceptanceModalWait    *k6metrics.Metric
	AcceptanceModalMissed  *k6metrics.Metric
	AcceptanceResetDialogs *k6metrics.Metric
}

// RegisterCustomMetrics creates and registers our custom metrics with the k6
// VU Registry and returns our internal struct pointer.
func RegisterCustomMetrics(registry *k6metrics.Registry) *CustomMetrics {
	return &CustomMetrics{
		AcceptanceModalWait: registry.MustNewMetric(
			"acceptance_modal_wait", k6metrics.Trend, k6metrics.Time),
		AcceptanceModalMissed: registry.MustNewMetric(
			"acceptance_modal_missed", k6metrics.Counter),
		AcceptanceResetDialogs: registry.MustNewMetric(
			"acceptance_reset_dialogs", k6metrics.Counter),
	}
}

// PushIfNotDone is a helper function to push a sample to a channel if the
// context is not done. It returns true if the sample was pushed, false if the
// context was done.
func PushIfNotDone(ctx context.Context, output chan<- k6metrics.SampleContainer, sample k6metrics.SampleContainer) bool {
	select {
	case <-ctx.Done():
		return false
	case output <- sample:
		return true
	}
}

// MetricsObserver turns driver notifications into k6 samples.
type MetricsObserver struct {
	ctx     context.Context
	metrics *CustomMetrics
	tags    *k6metrics.TagSet
	output  chan<- k6metrics.SampleContainer
	now     func() time.Time
}

// NewMetricsObserver returns an observer pushing to output until ctx is done.
// Every sample carries tags.
func NewMetricsObserver(
	ctx context.Context, metrics *CustomMetrics, tags *k6metrics.TagSet, output chan<- k6metrics.SampleContainer,
) *MetricsObserver {
	return &MetricsObserver{
		ctx:     ctx,
		metrics: metrics,
		tags:    tags,
		output:  output,
		now:     time.Now,
	}
}

// ModalWaited records the wait of a modal operation, counting the misses.
func (o *MetricsObserver) ModalWaited(kind api.ModalKind, waited time.Duration, found bool) {
	tags := o.tags.With("modal", string(kind))
	now := o.now()

	samples := k6metrics.Samples{
		{
			TimeSeries: k6metrics.TimeSeries{Metric: o.metrics.AcceptanceModalWait, Tags: tags},
			Time:       now,
			Value:      k6metrics.D(waited),
		},
	}
	if !found {
		samples = append(samples, k6metrics.Sample{
			TimeSeries: k6metrics.TimeSeries{Metric: o.metrics.AcceptanceModalMissed, Tags: tags},
			Time:       now,
			Value:      1,
		})
	}
	PushIfNotDone(o.ctx, o.output, samples)
}

// ResetDialogCleared counts a dialog accepted while resetting.
func (o *MetricsObserver) ResetDialogCleared() {
	PushIfNotDone(o.ctx, o.output, k6metrics.Sample{
		TimeSeries: k6metrics.TimeSeries{Metric: o.metrics.AcceptanceResetDialogs, Tags: o.tags},
		Time:       o.now(),
		Value:      1,
	})
}
