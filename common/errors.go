package common

import (
	"errors"
	"fmt"

	"github.com/grafana/xk6-acceptance/api"
)

var (
	// ErrModalNotFound matches every error returned when an expected modal
	// never showed up or did not carry the expected text.
	ErrModalNotFound = errors.New("modal not found")

	// ErrNotImplemented is returned by backends for capabilities they lack.
	ErrNotImplemented = errors.New("not implemented by this driver")

	// ErrNoParentFrame is returned when switching to the parent frame while
	// already in the top-level document.
	ErrNoParentFrame = errors.New("no parent frame to switch to")

	// ErrResetExhausted is returned when a reset keeps hitting dialogs after
	// its maximum number of attempts.
	ErrResetExhausted = errors.New("reset gave up clearing dialogs")

	// ErrDriverClosed is returned by a Driver used after Close.
	ErrDriverClosed = errors.New("driver is closed")

	// ErrUnexpectedDialog is api.ErrUnexpectedDialog.
	ErrUnexpectedDialog = api.ErrUnexpectedDialog

	// ErrNoActiveDialog is api.ErrNoActiveDialog.
	ErrNoActiveDialog = api.ErrNoActiveDialog
)

// ModalNotFoundError is returned by modal operations. Text is the expected
// text that did not match, or empty when no dialog appeared at all.
type ModalNotFoundError struct {
	Text string
}

func (e *ModalNotFoundError) Error() string {
	if e.Text == "" {
		return "Unable to find modal dialog"
	}
	return fmt.Sprintf("Unable to find modal dialog with %s", e.Text)
}

// Is lets errors.Is match ErrModalNotFound.
func (e *ModalNotFoundError) Is(target error) bool {
	return target == ErrModalNotFound
}
