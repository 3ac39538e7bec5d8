package common

import (
	"time"

	"github.com/grafana/xk6-acceptance/api"
)

// DriverObserver is notified of the waits a driver goes through.
type DriverObserver interface {
	// ModalWaited reports how long a modal operation waited for its dialog.
	ModalWaited(kind api.ModalKind, waited time.Duration, found bool)
	// ResetDialogCleared reports a dialog accepted while resetting.
	ResetDialogCleared()
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) ModalWaited(api.ModalKind, time.Duration, bool) {}
func (NopObserver) ResetDialogCleared()                            {}
