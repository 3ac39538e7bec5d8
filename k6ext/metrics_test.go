package k6ext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	k6metrics "go.k6.io/k6/metrics"

	"github.com/grafana/xk6-acceptance/api"
)

func newTestObserver(ctx context.Context, buf int) (*MetricsObserver, *CustomMetrics, chan k6metrics.SampleContainer) {
	registry := k6metrics.NewRegistry()
	metrics := RegisterCustomMetrics(registry)
	out := make(chan k6metrics.SampleContainer, buf)
	o := NewMetricsObserver(ctx, metrics, registry.RootTagSet(), out)
	o.now = func() time.Time { return time.Unix(10, 0) }

	return o, metrics, out
}

func TestMetricsObserverModalWaited(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		found       bool
		wantSamples int
	}{
		{name: "found", found: true, wantSamples: 1},
		{name: "missed", found: false, wantSamples: 2},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			o, metrics, out := newTestObserver(context.Background(), 1)
			o.ModalWaited(api.ModalConfirm, 250*time.Millisecond, tt.found)

			samples := (<-out).GetSamples()
			require.Len(t, samples, tt.wantSamples)
			assert.Equal(t, metrics.AcceptanceModalWait, samples[0].Metric)
			assert.Equal(t, float64(250), samples[0].Value)
			modal, ok := samples[0].Tags.Get("modal")
			require.True(t, ok)
			assert.Equal(t, "confirm", modal)
			if !tt.found {
				assert.Equal(t, metrics.AcceptanceModalMissed, samples[1].Metric)
			}
		})
	}
}

func TestMetricsObserverResetDialogCleared(t *testing.T) {
	t.Parallel()

	o, metrics, out := newTestObserver(context.Background(), 1)
	o.ResetDialogCleared()

	samples := (<-out).GetSamples()
	require.Len(t, samples, 1)
	assert.Equal(t, metrics.AcceptanceResetDialogs, samples[0].Metric)
	assert.Equal(t, float64(1), samples[0].Value)
}

func TestMetricsObserverDoneContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o, _, out := newTestObserver(ctx, 0)

	// an unbuffered output nobody reads would block without the done check
	o.ResetDialogCleared()
	o.ModalWaited(api.ModalAlert, time.Second, true)
	assert.Empty(t, out)
}
