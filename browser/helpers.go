package browser

import (
	"time"

	"github.com/dop251/goja"

	"github.com/grafana/xk6-acceptance/api"
	"github.com/grafana/xk6-acceptance/common"
	"github.com/grafana/xk6-acceptance/k6ext"
)

// gojaValueExists returns true if a given value is not nil and exists
// (defined and not null) in the goja runtime.
func gojaValueExists(v goja.Value) bool {
	return v != nil && !goja.IsUndefined(v) && !goja.IsNull(v)
}

var _ common.DriverObserver = &vuObserver{}

// vuObserver reports driver waits as samples of the VU running the call.
// Notifications outside of a VU iteration are dropped.
type vuObserver struct {
	vu      moduleVU
	metrics *k6ext.CustomMetrics
}

func (o *vuObserver) observer() *k6ext.MetricsObserver {
	st := o.vu.State()
	if st == nil {
		return nil
	}
	return k6ext.NewMetricsObserver(o.vu.Context(), o.metrics, st.Tags.GetCurrentValues().Tags, st.Samples)
}

func (o *vuObserver) ModalWaited(kind api.ModalKind, waited time.Duration, found bool) {
	if mo := o.observer(); mo != nil {
		mo.ModalWaited(kind, waited, found)
	}
}

func (o *vuObserver) ResetDialogCleared() {
	if mo := o.observer(); mo != nil {
		mo.ResetDialogCleared()
	}
}
