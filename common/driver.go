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
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/grafana/xk6-acceptance/api"
	"github.com/grafana/xk6-acceptance/log"
	"github.com/grafana/xk6-acceptance/osext"
	"github.com/grafana/xk6-acceptance/storage"
	acctrace "github.com/grafana/xk6-acceptance/trace"
)

// Ensure Driver implements the api.Driver interface.
var _ api.Driver = &Driver{}

// SessionFactory starts the native session a Driver wraps.
type SessionFactory func(ctx context.Context) (api.NativeSession, error)

// Driver implements api.Driver on top of a native session that is only
// started when an operation first needs it.
type Driver struct {
	id         string
	opts       *DriverOptions
	newSession SessionFactory
	observer   DriverObserver
	tracer     *acctrace.Tracer
	persister  storage.FilePersister
	logger     *log.Logger

	mu       sync.Mutex
	session  api.NativeSession
	frames   *FrameStack
	modals   *ModalController
	resetter *ResetRecovery
	closed   bool

	closeOnce  sync.Once
	closeErr   error
	unregister func()
}

// DriverOption customizes a Driver.
type DriverOption func(*Driver)

// WithObserver reports modal waits and reset drains to o.
func WithObserver(o DriverObserver) DriverOption {
	return func(d *Driver) { d.observer = o }
}

// WithTracer records a span for every driver operation.
func WithTracer(t *acctrace.Tracer) DriverOption {
	return func(d *Driver) { d.tracer = t }
}

// WithFilePersister sets where SavePage writes.
func WithFilePersister(p storage.FilePersister) DriverOption {
	return func(d *Driver) { d.persister = p }
}

// NewDriver returns a driver whose session is created by newSession on
// first use. The driver registers its Close as an exit hook.
func NewDriver(opts *DriverOptions, newSession SessionFactory, logger *log.Logger, options ...DriverOption) *Driver {
	d := &Driver{
		id:         uuid.NewString(),
		opts:       opts,
		newSession: newSession,
		observer:   NopObserver{},
		persister:  &storage.LocalPersister{},
		logger:     logger,
	}
	for _, o := range options {
		o(d)
	}
	if d.tracer == nil {
		d.tracer = acctrace.NewNoopTracer()
	}
	d.resetter = NewResetRecovery(opts, d.observer, logger)
	d.unregister = osext.RegisterExitHook("driver "+d.id, func() {
		_ = d.Close(context.Background())
	})

	return d
}

// ID returns the unique ID of the driver.
func (d *Driver) ID() string {
	return d.id
}

// started returns the session if one was created and the driver is
// still open.
func (d *Driver) started() api.NativeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	return d.session
}

// native returns the session, creating it on first use.
func (d *Driver) native(ctx context.Context) (api.NativeSession, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrDriverClosed
	}
	if d.session != nil {
		return d.session, nil
	}

	d.logger.Debugf("Driver:native", "did:%s starting session", d.id)
	s, err := d.newSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}
	d.session = s
	d.frames = NewFrameStack(s, d.logger)
	d.modals = NewModalController(s, d.opts, d.observer, d.logger)

	return s, nil
}

func (d *Driver) traceCall(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return d.tracer.TraceAPICall(ctx, d.id, name, trace.WithAttributes(attrs...))
}

// Title returns the title of the current page.
func (d *Driver) Title(ctx context.Context) (_ string, err error) {
	ctx, span := d.traceCall(ctx, "driver.title")
	defer func() { acctrace.End(span, err) }()

	s, err := d.native(ctx)
	if err != nil {
		return "", err
	}
	return s.Title(ctx) //nolint:wrapcheck
}

// HTML returns the markup of the current document.
func (d *Driver) HTML(ctx context.Context) (_ string, err error) {
	ctx, span := d.traceCall(ctx, "driver.html")
	defer func() { acctrace.End(span, err) }()

	s, err := d.native(ctx)
	if err != nil {
		return "", err
	}
	return s.Source(ctx) //nolint:wrapcheck
}

// SwitchToFrame enters the frame of ref, or leaves the current frame when
// ref is api.ParentFrame.
func (d *Driver) SwitchToFrame(ctx context.Context, ref api.FrameRef) (err error) {
	ctx, span := d.traceCall(ctx, "driver.switchToFrame", attribute.Bool("parent", ref == api.ParentFrame))
	defer func() { acctrace.End(span, err) }()

	if _, err = d.native(ctx); err != nil {
		return err
	}
	if ref == api.ParentFrame {
		return d.frames.ExitToParent(ctx)
	}
	if ref == nil || ref.Native() == nil {
		return fmt.Errorf("switching to frame: no frame element given")
	}
	return d.frames.Enter(ctx, ref.Native())
}

// Visit navigates to rawURL. A relative URL is resolved against the app
// host when one is configured.
func (d *Driver) Visit(ctx context.Context, rawURL string) (err error) {
	target := d.resolve(rawURL)
	// the visit span stays open as the parent of later calls
	ctx, span := d.tracer.TraceVisit(ctx, d.id, target)
	defer func() { acctrace.RecordError(span, err) }()

	s, err := d.native(ctx)
	if err != nil {
		return err
	}
	// the engine leaves every frame once told to navigate, even when the
	// navigation is blocked or fails
	defer d.frames.Clear()
	if err := s.Navigate(ctx, target); err != nil {
		return fmt.Errorf("visiting %q: %w", target, err)
	}

	return nil
}

func (d *Driver) resolve(rawURL string) string {
	if d.opts.AppHost == "" {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.IsAbs() {
		return rawURL
	}
	return strings.TrimRight(d.opts.AppHost, "/") + "/" + strings.TrimLeft(rawURL, "/")
}

// ExecuteScript runs script in the current frame, discarding its result.
func (d *Driver) ExecuteScript(ctx context.Context, script string) (err error) {
	ctx, span := d.traceCall(ctx, "driver.executeScript")
	defer func() { acctrace.End(span, err) }()

	s, err := d.native(ctx)
	if err != nil {
		return err
	}
	_, err = s.Execute(ctx, script)
	return err //nolint:wrapcheck
}

// EvaluateScript evaluates the expression script and returns its value.
func (d *Driver) EvaluateScript(ctx context.Context, script string) (_ any, err error) {
	ctx, span := d.traceCall(ctx, "driver.evaluateScript")
	defer func() { acctrace.End(span, err) }()

	s, err := d.native(ctx)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, "return "+script) //nolint:wrapcheck
}

// AcceptModal runs trigger and accepts the dialog it opens.
func (d *Driver) AcceptModal(
	ctx context.Context, kind api.ModalKind, opts api.ModalOptions, trigger func() error,
) (err error) {
	ctx, span := d.traceCall(ctx, "driver.acceptModal", attribute.String("kind", string(kind)))
	defer func() { acctrace.End(span, err) }()

	if _, err = d.native(ctx); err != nil {
		return err
	}
	return d.modals.Accept(ctx, kind, opts, trigger)
}

// DismissModal runs trigger and dismisses the dialog it opens.
func (d *Driver) DismissModal(
	ctx context.Context, kind api.ModalKind, opts api.ModalOptions, trigger func() error,
) (err error) {
	ctx, span := d.traceCall(ctx, "driver.dismissModal", attribute.String("kind", string(kind)))
	defer func() { acctrace.End(span, err) }()

	if _, err = d.native(ctx); err != nil {
		return err
	}
	return d.modals.Dismiss(ctx, kind, opts, trigger)
}

// Reset brings the session back to a blank page. It does nothing when no
// session was started.
func (d *Driver) Reset(ctx context.Context) (err error) {
	s := d.started()
	if s == nil {
		return nil
	}

	ctx, span := d.traceCall(ctx, "driver.reset")
	defer func() { acctrace.End(span, err) }()

	// resetting always starts with a navigation
	defer d.frames.Clear()

	return d.resetter.Reset(ctx, s)
}

// FindCSS returns the nodes of the current frame matching the CSS query.
func (d *Driver) FindCSS(ctx context.Context, query string) ([]api.Node, error) {
	return d.find(ctx, api.ByCSS, query)
}

// FindXPath returns the nodes of the current frame matching the XPath query.
func (d *Driver) FindXPath(ctx context.Context, query string) ([]api.Node, error) {
	return d.find(ctx, api.ByXPath, query)
}

func (d *Driver) find(ctx context.Context, by api.SelectorKind, query string) (_ []api.Node, err error) {
	ctx, span := d.traceCall(ctx, "driver.find",
		attribute.String("by", string(by)), attribute.String("query", query))
	defer func() { acctrace.End(span, err) }()

	s, err := d.native(ctx)
	if err != nil {
		return nil, err
	}
	els, err := s.FindElements(ctx, by, query)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	nodes := make([]api.Node, 0, len(els))
	for _, el := range els {
		nodes = append(nodes, NewNode(el))
	}
	return nodes, nil
}

// SavePage writes the markup of the current document to path.
func (d *Driver) SavePage(ctx context.Context, path string) (err error) {
	ctx, span := d.traceCall(ctx, "driver.savePage", attribute.String("path", path))
	defer func() { acctrace.End(span, err) }()

	s, err := d.native(ctx)
	if err != nil {
		return err
	}
	html, err := s.Source(ctx)
	if err != nil {
		return err //nolint:wrapcheck
	}
	return d.persister.Persist(ctx, path, strings.NewReader(html)) //nolint:wrapcheck
}

// FrameDepth returns how many frames deep the driver currently is.
func (d *Driver) FrameDepth() int {
	if d.started() == nil {
		return 0
	}
	return d.frames.Depth()
}

// Close quits the session, if one was started. The driver is unusable
// afterwards. Only the first call has an effect.
func (d *Driver) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.unregister()
		d.tracer.EndLiveSpan(d.id)

		d.mu.Lock()
		s := d.session
		d.closed = true
		d.mu.Unlock()

		if s == nil {
			return
		}
		d.logger.Debugf("Driver:Close", "did:%s quitting session", d.id)
		if err := s.Quit(ctx); err != nil {
			d.closeErr = fmt.Errorf("closing driver: %w", err)
		}
	})

	return d.closeErr
}
