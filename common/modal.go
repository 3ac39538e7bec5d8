/*
 *
 * xk6-acceptance - an acceptance testing driver extension for k6
 * Copyright (C) 2021 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/grafana/xk6-acceptance/api"
	"github.com/grafana/xk6-acceptance/log"
)

// ModalController accepts or dismisses the native dialog raised by a
// caller supplied trigger.
type ModalController struct {
	session      api.NativeSession
	defaultWait  time.Duration
	pollInterval time.Duration
	observer     DriverObserver
	logger       *log.Logger
}

// NewModalController returns a controller waiting on session.
func NewModalController(
	session api.NativeSession, opts *DriverOptions, observer DriverObserver, logger *log.Logger,
) *ModalController {
	if observer == nil {
		observer = NopObserver{}
	}
	return &ModalController{
		session:      session,
		defaultWait:  opts.DefaultMaxWaitTime,
		pollInterval: opts.ModalPollInterval,
		observer:     observer,
		logger:       logger,
	}
}

// Accept runs trigger, waits for the dialog it raises and accepts it,
// typing opts.Response first when set.
func (mc *ModalController) Accept(
	ctx context.Context, kind api.ModalKind, opts api.ModalOptions, trigger func() error,
) error {
	if err := runTrigger(trigger); err != nil {
		return err
	}

	dialog, err := mc.find(ctx, kind, opts)
	if err != nil {
		return err
	}
	if opts.Response != "" {
		if err := dialog.SendKeys(ctx, opts.Response); err != nil {
			return fmt.Errorf("typing modal response: %w", err)
		}
	}
	if err := dialog.Accept(ctx); err != nil {
		return fmt.Errorf("accepting modal: %w", err)
	}
	mc.logger.Debugf("ModalController:Accept", "kind:%s accepted", kind)

	return nil
}

// Dismiss runs trigger, waits for the dialog it raises and dismisses it.
func (mc *ModalController) Dismiss(
	ctx context.Context, kind api.ModalKind, opts api.ModalOptions, trigger func() error,
) error {
	if err := runTrigger(trigger); err != nil {
		return err
	}

	dialog, err := mc.find(ctx, kind, opts)
	if err != nil {
		return err
	}
	if err := dialog.Dismiss(ctx); err != nil {
		return fmt.Errorf("dismissing modal: %w", err)
	}
	mc.logger.Debugf("ModalController:Dismiss", "kind:%s dismissed", kind)

	return nil
}

func runTrigger(trigger func() error) error {
	if trigger == nil {
		return nil
	}
	return trigger()
}

// find polls for a dialog until opts.Wait elapses and checks its message
// contains opts.Text.
func (mc *ModalController) find(
	ctx context.Context, kind api.ModalKind, opts api.ModalOptions,
) (api.Dialog, error) {
	wait := opts.Wait
	if wait <= 0 {
		wait = mc.defaultWait
	}

	start := time.Now()
	found, err := mc.waitForDialog(ctx, wait)
	mc.observer.ModalWaited(kind, time.Since(start), found)
	if err != nil {
		return nil, err
	}
	if !found {
		mc.logger.Debugf("ModalController:find", "kind:%s no dialog after %s", kind, wait)
		return nil, &ModalNotFoundError{}
	}

	dialog, err := mc.session.ActiveDialog(ctx)
	if errors.Is(err, ErrNoActiveDialog) {
		return nil, &ModalNotFoundError{}
	}
	if err != nil {
		return nil, fmt.Errorf("getting active modal: %w", err)
	}
	if k := dialog.Kind(); k != "" && kind != "" && k != kind {
		mc.logger.Debugf("ModalController:find", "expected kind:%s got:%s", kind, k)
	}
	if opts.Text != "" && !strings.Contains(dialog.Message(), opts.Text) {
		return nil, &ModalNotFoundError{Text: opts.Text}
	}

	return dialog, nil
}

func (mc *ModalController) waitForDialog(ctx context.Context, wait time.Duration) (bool, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	ticker := time.NewTicker(mc.pollInterval)
	defer ticker.Stop()

	for {
		present, err := mc.session.DialogPresent(ctx)
		if err != nil {
			return false, fmt.Errorf("checking for modal: %w", err)
		}
		if present {
			return true, nil
		}

		select {
		case <-ticker.C:
		case <-timer.C:
			// one last look so a dialog raised right at the deadline counts.
			present, err := mc.session.DialogPresent(ctx)
			if err != nil {
				return false, fmt.Errorf("checking for modal: %w", err)
			}
			return present, nil
		case <-ctx.Done():
			return false, fmt.Errorf("waiting for modal: %w", ctx.Err())
		}
	}
}
