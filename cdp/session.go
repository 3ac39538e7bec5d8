package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto"
	cdppage "github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"

	"github.com/grafana/xk6-acceptance/api"
	"github.com/grafana/xk6-acceptance/cdp/js"
	"github.com/grafana/xk6-acceptance/log"
)

const (
	isolatedWorldName = "__k6_acceptance_world__"
	noDialogMessage   = "No dialog is showing"
)

var _ api.NativeSession = &Session{}

// Session drives a single page target of a browser.
type Session struct {
	ctx     context.Context // carries the CDP session ID
	client  *Client
	logger  *log.Logger
	timeout time.Duration
	onQuit  func(context.Context) error

	targetID    string
	mainFrameID string

	mu       sync.RWMutex
	frameID  string
	contexts map[string]cdpruntime.ExecutionContextID
	dialog   *Dialog
	// dialogShown and loaded are closed and replaced whenever a dialog
	// opens or the main frame finishes loading.
	dialogShown chan struct{}
	loaded      chan struct{}

	cancelEvents func()
	quitOnce     sync.Once
	quitErr      error
}

// SessionOptions configures a Session.
type SessionOptions struct {
	// Timeout bounds a navigation.
	Timeout time.Duration
	// OnQuit runs after the page is closed, e.g. to stop the browser.
	OnQuit func(context.Context) error
}

// NewSession opens a new page in the browser client is connected to and
// returns a session driving it.
func NewSession(ctx context.Context, client *Client, opts SessionOptions, logger *log.Logger) (*Session, error) {
	targetID, err := client.Target.CreateTarget(ctx, "about:blank")
	if err != nil {
		return nil, err
	}
	sid, err := client.Target.AttachToTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ctx:         WithSession(client.ctx, target.SessionID(sid)),
		client:      client,
		logger:      logger,
		timeout:     opts.Timeout,
		onQuit:      opts.OnQuit,
		targetID:    targetID,
		contexts:    make(map[string]cdpruntime.ExecutionContextID),
		dialogShown: make(chan struct{}),
		loaded:      make(chan struct{}),
	}
	if s.timeout <= 0 {
		s.timeout = 30 * time.Second
	}

	events, cancel := client.Subscribe(s.ctx,
		cdproto.EventPageJavascriptDialogOpening,
		cdproto.EventPageJavascriptDialogClosed,
		cdproto.EventPageLoadEventFired,
		cdproto.EventRuntimeExecutionContextCreated,
		cdproto.EventRuntimeExecutionContextDestroyed,
		cdproto.EventRuntimeExecutionContextsCleared,
	)
	s.cancelEvents = cancel
	go s.handleEvents(events)

	if err := s.init(ctx); err != nil {
		cancel()
		return nil, err
	}
	logger.Debugf("Session:NewSession", "tid:%v sid:%v", targetID, sid)

	return s, nil
}

func (s *Session) init(ctx context.Context) error {
	ctx = s.withSession(ctx)
	if err := s.client.Page.Enable(ctx); err != nil {
		return err
	}
	if err := s.client.Runtime.Enable(ctx); err != nil {
		return err
	}
	fid, err := s.client.Page.MainFrameID(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.mainFrameID = fid
	s.frameID = fid
	s.mu.Unlock()

	return nil
}

func (s *Session) withSession(ctx context.Context) context.Context {
	return WithSession(ctx, SessionFrom(s.ctx))
}

func (s *Session) handleEvents(events <-chan *Event) {
	for {
		select {
		case evt := <-events:
			s.onEvent(evt)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Session) onEvent(evt *Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev := evt.Data.(type) {
	case *cdppage.EventJavascriptDialogOpening:
		s.dialog = &Dialog{
			session: s,
			kind:    dialogKind(ev.Type),
			message: ev.Message,
		}
		close(s.dialogShown)
		s.dialogShown = make(chan struct{})
	case *cdppage.EventJavascriptDialogClosed:
		s.dialog = nil
	case *cdppage.EventLoadEventFired:
		close(s.loaded)
		s.loaded = make(chan struct{})
	case *cdpruntime.EventExecutionContextCreated:
		var aux struct {
			FrameID   string `json:"frameId"`
			IsDefault bool   `json:"isDefault"`
		}
		if err := json.Unmarshal(ev.Context.AuxData, &aux); err != nil || !aux.IsDefault {
			return
		}
		s.contexts[aux.FrameID] = ev.Context.ID
	case *cdpruntime.EventExecutionContextDestroyed:
		for fid, id := range s.contexts {
			if id == ev.ExecutionContextID {
				delete(s.contexts, fid)
			}
		}
	case *cdpruntime.EventExecutionContextsCleared:
		s.contexts = make(map[string]cdpruntime.ExecutionContextID)
	}
}

// executionContext returns the main world of frameID, creating an
// isolated world when the main one has not been reported yet.
func (s *Session) executionContext(ctx context.Context, frameID string) (cdpruntime.ExecutionContextID, error) {
	s.mu.RLock()
	id, ok := s.contexts[frameID]
	s.mu.RUnlock()
	if ok {
		return id, nil
	}

	return s.client.Page.CreateIsolatedWorld(s.withSession(ctx), frameID, isolatedWorldName)
}

func (s *Session) currentFrame() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frameID
}

func (s *Session) dialogOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dialog != nil
}

// unlessDialog runs fn until it completes or a dialog opens. A dialog
// suspends the page's scripts, so fn may not return before the dialog is
// handled; it keeps running in the background bound to the session.
func (s *Session) unlessDialog(ctx context.Context, fn func(context.Context) error) (opened bool, err error) {
	s.mu.RLock()
	shown := s.dialogShown
	s.mu.RUnlock()

	errCh := make(chan error, 1)
	go func() { errCh <- fn(s.withSession(s.ctx)) }()

	select {
	case err := <-errCh:
		return false, err
	case <-shown:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Title returns the title of the top-level document.
func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.evaluateInFrame(ctx, s.mainFrameID, "document.title", &title); err != nil {
		return "", fmt.Errorf("getting title: %w", err)
	}
	return title, nil
}

// Source returns the markup of the current frame's document.
func (s *Session) Source(ctx context.Context) (string, error) {
	var html string
	if err := s.evaluateInFrame(ctx, s.currentFrame(), "document.documentElement.outerHTML", &html); err != nil {
		return "", fmt.Errorf("getting source: %w", err)
	}
	return html, nil
}

func (s *Session) evaluateInFrame(ctx context.Context, frameID, expr string, v interface{}) error {
	if s.dialogOpen() {
		return api.ErrUnexpectedDialog
	}
	cid, err := s.executionContext(ctx, frameID)
	if err != nil {
		return err
	}
	res, err := s.client.Runtime.Evaluate(s.withSession(ctx), cid, expr, true)
	if err != nil {
		return err //nolint:wrapcheck
	}
	return decodeValue(res, v)
}

// SwitchToFrame makes the frame hosted by frame the current context.
func (s *Session) SwitchToFrame(ctx context.Context, frame api.NativeElement) error {
	el, ok := frame.(*Element)
	if !ok || el == nil {
		return fmt.Errorf("switching to frame: unsupported element %T", frame)
	}
	fid, err := s.client.DOM.ContentFrameID(s.withSession(ctx), el.objectID)
	if err != nil {
		return fmt.Errorf("switching to frame: %w", err)
	}

	s.mu.Lock()
	s.frameID = fid
	s.mu.Unlock()

	return nil
}

// SwitchToDefaultContent makes the top-level document the current context.
func (s *Session) SwitchToDefaultContent(context.Context) error {
	s.mu.Lock()
	s.frameID = s.mainFrameID
	s.mu.Unlock()

	return nil
}

// Navigate loads url in the top-level frame and waits for its load event.
// If a dialog is showing, or one opens before the page loads, it returns
// api.ErrUnexpectedDialog; the navigation stays queued in the browser and
// resumes once the dialog is handled.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	blocked := s.dialog != nil
	shown, loaded := s.dialogShown, s.loaded
	s.frameID = s.mainFrameID
	s.mu.Unlock()

	type navResult struct {
		loaderID string
		err      error
	}
	navCh := make(chan navResult, 1)
	go func() {
		lid, err := s.client.Page.Navigate(s.withSession(s.ctx), url, "")
		navCh <- navResult{lid, err}
	}()
	if blocked {
		return api.ErrUnexpectedDialog
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	var replied, sawLoad bool
	for {
		select {
		case res := <-navCh:
			if res.err != nil {
				return res.err
			}
			// same-document navigations have no loader and fire no load event
			if res.loaderID == "" || sawLoad {
				return nil
			}
			replied = true
			navCh = nil
		case <-loaded:
			if replied {
				return nil
			}
			sawLoad = true
			s.mu.RLock()
			loaded = s.loaded
			s.mu.RUnlock()
		case <-shown:
			return api.ErrUnexpectedDialog
		case <-timer.C:
			return fmt.Errorf("navigating to %q: timed out after %s", url, s.timeout)
		case <-ctx.Done():
			return fmt.Errorf("navigating to %q: %w", url, ctx.Err())
		}
	}
}

// Execute runs script as a function body in the current frame and returns
// its result. A script that opens a dialog returns nil once the dialog shows.
func (s *Session) Execute(ctx context.Context, script string) (interface{}, error) {
	if s.dialogOpen() {
		return nil, api.ErrUnexpectedDialog
	}
	cid, err := s.executionContext(ctx, s.currentFrame())
	if err != nil {
		return nil, err
	}

	var res *cdpruntime.RemoteObject
	expr := "(function(){\n" + script + "\n})()"
	opened, err := s.unlessDialog(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.client.Runtime.Evaluate(ctx, cid, expr, true)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("executing script: %w", err)
	}
	if opened {
		return nil, nil
	}

	var v interface{}
	if err := decodeValue(res, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// FindElements returns the elements of the current frame matching query.
func (s *Session) FindElements(ctx context.Context, by api.SelectorKind, query string) ([]api.NativeElement, error) {
	if s.dialogOpen() {
		return nil, api.ErrUnexpectedDialog
	}
	fn := js.FindCSSScript
	if by == api.ByXPath {
		fn = js.FindXPathScript
	}
	q, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}
	cid, err := s.executionContext(ctx, s.currentFrame())
	if err != nil {
		return nil, err
	}

	sctx := s.withSession(ctx)
	arr, err := s.client.Runtime.Evaluate(sctx, cid, fmt.Sprintf("(%s)(%s)", fn, q), false)
	if err != nil {
		return nil, fmt.Errorf("finding %s %q: %w", by, query, err)
	}
	defer func() { _ = s.client.Runtime.ReleaseObject(sctx, arr.ObjectID) }()

	lres, err := s.client.Runtime.CallFunctionOn(sctx, arr.ObjectID, "function() { return this.length; }", true)
	if err != nil {
		return nil, fmt.Errorf("finding %s %q: %w", by, query, err)
	}
	var n int
	if err := decodeValue(lres, &n); err != nil {
		return nil, err
	}

	els := make([]api.NativeElement, 0, n)
	for i := 0; i < n; i++ {
		idx, _ := json.Marshal(i)
		item, err := s.client.Runtime.CallFunctionOn(sctx, arr.ObjectID, "function(i) { return this[i]; }", false, idx)
		if err != nil {
			return nil, fmt.Errorf("finding %s %q: %w", by, query, err)
		}
		els = append(els, &Element{session: s, objectID: item.ObjectID})
	}

	return els, nil
}

// DialogPresent reports whether a dialog is showing.
func (s *Session) DialogPresent(context.Context) (bool, error) {
	return s.dialogOpen(), nil
}

// ActiveDialog returns the showing dialog or api.ErrNoActiveDialog.
func (s *Session) ActiveDialog(context.Context) (api.Dialog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dialog == nil {
		return nil, api.ErrNoActiveDialog
	}
	return s.dialog, nil
}

// Quit closes the page and runs the OnQuit hook. Only the first call has
// an effect.
func (s *Session) Quit(ctx context.Context) error {
	s.quitOnce.Do(func() {
		s.cancelEvents()
		err := s.client.Page.Close(s.withSession(ctx))
		if s.onQuit != nil {
			if qerr := s.onQuit(ctx); err == nil {
				err = qerr
			}
		}
		s.quitErr = err
	})

	return s.quitErr
}

func (s *Session) handleDialog(ctx context.Context, d *Dialog, accept bool, promptText string) error {
	s.mu.RLock()
	current := s.dialog
	s.mu.RUnlock()
	if current != d {
		return api.ErrNoActiveDialog
	}

	err := s.client.Page.HandleJavaScriptDialog(s.withSession(ctx), accept, promptText)
	var cerr *cdproto.Error
	if errors.As(err, &cerr) && strings.Contains(cerr.Message, noDialogMessage) {
		err = api.ErrNoActiveDialog
	}
	if err != nil && !errors.Is(err, api.ErrNoActiveDialog) {
		return fmt.Errorf("handling dialog: %w", err)
	}

	s.mu.Lock()
	if s.dialog == d {
		s.dialog = nil
	}
	s.mu.Unlock()

	return err
}

func decodeValue(res *cdpruntime.RemoteObject, v interface{}) error {
	if res == nil || len(res.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.Value, v); err != nil {
		return fmt.Errorf("decoding %s result: %w", res.Type, err)
	}
	return nil
}

func dialogKind(t cdppage.DialogType) api.ModalKind {
	switch t {
	case cdppage.DialogTypeConfirm:
		return api.ModalConfirm
	case cdppage.DialogTypePrompt:
		return api.ModalPrompt
	case cdppage.DialogTypeBeforeunload:
		return api.ModalBeforeUnload
	default:
		return api.ModalAlert
	}
}
