// Package nativefake provides an in-memory api.NativeSession for tests.
//
// The fake models the parts of a browser the driver core cares about: the
// chain of frames currently switched into, the URL, a queue of native
// dialogs where only the head is showing, and navigations that stay pending
// behind a blocking dialog until it is accepted.
package nativefake

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grafana/xk6-acceptance/api"
)

var _ api.NativeSession = &Session{}

// Session is a fake native session. The zero value is not usable, use New.
type Session struct {
	mu sync.Mutex

	url    string
	title  string
	source string
	path   []*Element

	dialogs      []*Dialog
	pendingURL   string
	beforeUnload []DialogSpec
	regenerate   bool

	elements     map[string][]api.NativeElement
	navigateErrs []error
	switchErr    error

	navigations     []string
	scripts         []string
	execResult      any
	defaultSwitches int
	dialogPolls     int
	quits           int
}

// DialogSpec describes a dialog to show.
type DialogSpec struct {
	Kind    api.ModalKind
	Message string
}

// New returns a fake session sitting on an empty page.
func New() *Session {
	return &Session{elements: make(map[string][]api.NativeElement)}
}

// SetPage sets what Title and Source return.
func (s *Session) SetPage(title, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title, s.source = title, source
}

// SetExecResult sets the value Execute returns.
func (s *Session) SetExecResult(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.execResult = v
}

// AddElements registers the elements a query returns.
func (s *Session) AddElements(by api.SelectorKind, query string, els ...api.NativeElement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := string(by) + ":" + query
	s.elements[k] = append(s.elements[k], els...)
}

// SetBeforeUnload makes every navigation away from a loaded page raise
// the given dialogs one after the other. The navigation completes once
// the last one is accepted.
func (s *Session) SetBeforeUnload(specs ...DialogSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeUnload = specs
}

// SetRegenerate makes every accepted dialog spawn an identical one.
func (s *Session) SetRegenerate(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regenerate = on
}

// FailNextNavigation makes the next navigations return errs, in order,
// without touching the page.
func (s *Session) FailNextNavigation(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigateErrs = append(s.navigateErrs, errs...)
}

// FailFrameSwitches makes SwitchToFrame return err. Nil restores it.
func (s *Session) FailFrameSwitches(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.switchErr = err
}

// ShowDialog opens a dialog behind any already showing.
func (s *Session) ShowDialog(kind api.ModalKind, message string) *Dialog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushDialogLocked(DialogSpec{Kind: kind, Message: message})
}

// ShowDialogAfter opens a dialog once d has elapsed.
func (s *Session) ShowDialogAfter(d time.Duration, kind api.ModalKind, message string) {
	time.AfterFunc(d, func() { s.ShowDialog(kind, message) })
}

func (s *Session) pushDialogLocked(ds DialogSpec) *Dialog {
	d := &Dialog{session: s, kind: ds.Kind, message: ds.Message}
	s.dialogs = append(s.dialogs, d)
	return d
}

// URL returns the current page URL.
func (s *Session) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// ActiveContext returns the names of the frames currently switched into,
// outermost first. An empty slice is the top-level document.
func (s *Session) ActiveContext() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.path))
	for _, el := range s.path {
		names = append(names, el.Name)
	}
	return names
}

// Navigations returns every URL a navigation was attempted to.
func (s *Session) Navigations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navigations...)
}

// Scripts returns every script passed to Execute.
func (s *Session) Scripts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.scripts...)
}

// DefaultContentSwitches counts SwitchToDefaultContent calls.
func (s *Session) DefaultContentSwitches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaultSwitches
}

// DialogPolls counts DialogPresent calls.
func (s *Session) DialogPolls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dialogPolls
}

// OpenDialogs returns how many dialogs are queued.
func (s *Session) OpenDialogs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dialogs)
}

// Quits counts Quit calls.
func (s *Session) Quits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quits
}

// Title implements api.NativeSession.
func (s *Session) Title(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title, nil
}

// Source implements api.NativeSession.
func (s *Session) Source(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source, nil
}

// SwitchToFrame implements api.NativeSession.
func (s *Session) SwitchToFrame(_ context.Context, frame api.NativeElement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.switchErr != nil {
		return s.switchErr
	}
	el, ok := frame.(*Element)
	if !ok || el == nil {
		return fmt.Errorf("not a frame element: %v", frame)
	}
	s.path = append(s.path, el)
	return nil
}

// SwitchToDefaultContent implements api.NativeSession.
func (s *Session) SwitchToDefaultContent(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultSwitches++
	s.path = nil
	return nil
}

// Navigate implements api.NativeSession.
func (s *Session) Navigate(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.navigations = append(s.navigations, url)
	// like a browser, a navigation request returns to the top document
	// whatever its outcome
	s.path = nil
	if len(s.navigateErrs) > 0 {
		err := s.navigateErrs[0]
		s.navigateErrs = s.navigateErrs[1:]
		if err != nil {
			return err
		}
	}
	if len(s.dialogs) > 0 {
		s.pendingURL = url
		return api.ErrUnexpectedDialog
	}
	if s.url != "" && len(s.beforeUnload) > 0 {
		for _, ds := range s.beforeUnload {
			s.pushDialogLocked(ds)
		}
		s.pendingURL = url
		return api.ErrUnexpectedDialog
	}
	s.loadLocked(url)
	return nil
}

func (s *Session) loadLocked(url string) {
	s.url = url
	s.path = nil
	s.pendingURL = ""
}

// Execute implements api.NativeSession.
func (s *Session) Execute(_ context.Context, script string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.dialogs) > 0 {
		return nil, api.ErrUnexpectedDialog
	}
	s.scripts = append(s.scripts, script)
	return s.execResult, nil
}

// FindElements implements api.NativeSession.
func (s *Session) FindElements(_ context.Context, by api.SelectorKind, query string) ([]api.NativeElement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("invalid %s selector %q", by, query)
	}
	return append([]api.NativeElement(nil), s.elements[string(by)+":"+query]...), nil
}

// DialogPresent implements api.NativeSession.
func (s *Session) DialogPresent(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialogPolls++
	return len(s.dialogs) > 0, nil
}

// ActiveDialog implements api.NativeSession.
func (s *Session) ActiveDialog(context.Context) (api.Dialog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.dialogs) == 0 {
		return nil, api.ErrNoActiveDialog
	}
	return s.dialogs[0], nil
}

// Quit implements api.NativeSession.
func (s *Session) Quit(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quits++
	return nil
}

// close removes d from the queue, and returns false if it was not showing.
func (s *Session) close(d *Dialog, accepted bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.dialogs) == 0 || s.dialogs[0] != d {
		return false
	}
	s.dialogs = s.dialogs[1:]

	if accepted && s.regenerate {
		s.pushDialogLocked(DialogSpec{Kind: d.kind, Message: d.message})
		return true
	}
	if len(s.dialogs) > 0 || s.pendingURL == "" {
		return true
	}
	if accepted {
		s.loadLocked(s.pendingURL)
	} else {
		s.pendingURL = ""
	}
	return true
}
