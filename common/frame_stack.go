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
	"fmt"

	"github.com/grafana/xk6-acceptance/api"
	"github.com/grafana/xk6-acceptance/log"
)

// FrameStack tracks the frames a native session is switched into,
// outermost first.
//
// Engines can only go back to the top-level document or one level deeper,
// so stepping out to the parent is done by resetting to the top and
// replaying every remaining switch.
type FrameStack struct {
	session api.NativeSession
	handles []api.NativeElement
	logger  *log.Logger
}

// NewFrameStack returns an empty stack driving session.
func NewFrameStack(session api.NativeSession, logger *log.Logger) *FrameStack {
	return &FrameStack{
		session: session,
		logger:  logger,
	}
}

// Enter switches into the frame and pushes it once the session accepted
// the switch.
func (fs *FrameStack) Enter(ctx context.Context, handle api.NativeElement) error {
	fs.logger.Debugf("FrameStack:Enter", "depth:%d", len(fs.handles))

	if err := fs.session.SwitchToFrame(ctx, handle); err != nil {
		return fmt.Errorf("switching to frame: %w", err)
	}
	fs.handles = append(fs.handles, handle)

	return nil
}

// ExitToParent pops the innermost frame and restores its parent context.
func (fs *FrameStack) ExitToParent(ctx context.Context) error {
	if len(fs.handles) == 0 {
		return ErrNoParentFrame
	}
	fs.handles = fs.handles[:len(fs.handles)-1]

	fs.logger.Debugf("FrameStack:ExitToParent", "replaying depth:%d", len(fs.handles))

	if err := fs.session.SwitchToDefaultContent(ctx); err != nil {
		return fmt.Errorf("switching to default content: %w", err)
	}
	for i, h := range fs.handles {
		if err := fs.session.SwitchToFrame(ctx, h); err != nil {
			return fmt.Errorf("restoring frame at depth %d: %w", i+1, err)
		}
	}

	return nil
}

// Clear forgets every frame without touching the session.
func (fs *FrameStack) Clear() {
	fs.handles = nil
}

// Depth returns the number of frames switched into.
func (fs *FrameStack) Depth() int {
	return len(fs.handles)
}

// Handles returns a copy of the stack, outermost first.
func (fs *FrameStack) Handles() []api.NativeElement {
	return append([]api.NativeElement(nil), fs.handles...)
}
