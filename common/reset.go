package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/grafana/xk6-acceptance/api"
	"github.com/grafana/xk6-acceptance/log"
)

// ResetRecovery brings a native session back to a blank page, accepting
// any dialog that stands in the way.
type ResetRecovery struct {
	blankURL    string
	maxAttempts int
	pause       time.Duration
	observer    DriverObserver
	logger      *log.Logger
}

// NewResetRecovery returns a ResetRecovery configured from opts.
func NewResetRecovery(opts *DriverOptions, observer DriverObserver, logger *log.Logger) *ResetRecovery {
	if observer == nil {
		observer = NopObserver{}
	}
	return &ResetRecovery{
		blankURL:    opts.BlankURL,
		maxAttempts: opts.ResetMaxAttempts,
		pause:       opts.ResetDialogPause,
		observer:    observer,
		logger:      logger,
	}
}

// Reset navigates session to the blank page.
//
// The navigation is attempted once. Navigating again while dialogs are
// being cleared can raise another unload dialog each time, so later rounds
// only drain dialogs until none blocks the session.
func (r *ResetRecovery) Reset(ctx context.Context, session api.NativeSession) error {
	navigated := false
	for attempt := 1; ; attempt++ {
		if attempt > r.maxAttempts {
			return fmt.Errorf("%w after %d attempts", ErrResetExhausted, r.maxAttempts)
		}

		var err error
		if !navigated {
			navigated = true
			err = session.Navigate(ctx, r.blankURL)
		} else {
			err = checkNoDialog(ctx, session)
		}
		if err == nil {
			r.logger.Debugf("ResetRecovery:Reset", "clear after %d attempts", attempt)
			return nil
		}
		if !errors.Is(err, ErrUnexpectedDialog) {
			return fmt.Errorf("resetting to %q: %w", r.blankURL, err)
		}

		r.logger.Debugf("ResetRecovery:Reset", "attempt:%d blocked by dialog", attempt)
		if err := r.acceptDialog(ctx, session); err != nil {
			return err
		}
	}
}

func checkNoDialog(ctx context.Context, session api.NativeSession) error {
	present, err := session.DialogPresent(ctx)
	if err != nil {
		return err //nolint:wrapcheck
	}
	if present {
		return ErrUnexpectedDialog
	}
	return nil
}

// acceptDialog accepts the showing dialog, if any, and gives the browser a
// moment to act on it.
func (r *ResetRecovery) acceptDialog(ctx context.Context, session api.NativeSession) error {
	dialog, err := session.ActiveDialog(ctx)
	if errors.Is(err, ErrNoActiveDialog) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("getting blocking dialog: %w", err)
	}

	err = dialog.Accept(ctx)
	if errors.Is(err, ErrNoActiveDialog) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("accepting blocking dialog: %w", err)
	}
	r.observer.ResetDialogCleared()

	t := time.NewTimer(r.pause)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("resetting: %w", ctx.Err())
	}
}
