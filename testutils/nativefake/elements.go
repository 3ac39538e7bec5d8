package nativefake

import (
	"context"
	"sync"

	"github.com/grafana/xk6-acceptance/api"
)

var (
	_ api.NativeElement = &Element{}
	_ api.Dialog        = &Dialog{}
)

// Element is a fake element. Frame elements are told apart by Name.
type Element struct {
	Name  string
	Value string
	Attrs map[string]string

	mu     sync.Mutex
	clicks int
}

// NewElement returns an element with the given name and text.
func NewElement(name, text string) *Element {
	return &Element{Name: name, Value: text, Attrs: map[string]string{}}
}

// Text implements api.NativeElement.
func (e *Element) Text(context.Context) (string, error) { return e.Value, nil }

// Attribute implements api.NativeElement.
func (e *Element) Attribute(_ context.Context, name string) (string, error) {
	return e.Attrs[name], nil
}

// Click implements api.NativeElement.
func (e *Element) Click(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clicks++
	return nil
}

// Clicks counts Click calls.
func (e *Element) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

// Dialog is a fake native dialog.
type Dialog struct {
	session *Session
	kind    api.ModalKind
	message string

	mu        sync.Mutex
	typed     []string
	accepted  bool
	dismissed bool
}

// Kind implements api.Dialog.
func (d *Dialog) Kind() api.ModalKind { return d.kind }

// Message implements api.Dialog.
func (d *Dialog) Message() string { return d.message }

// Accept implements api.Dialog.
func (d *Dialog) Accept(context.Context) error {
	if !d.session.close(d, true) {
		return api.ErrNoActiveDialog
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accepted = true
	return nil
}

// Dismiss implements api.Dialog.
func (d *Dialog) Dismiss(context.Context) error {
	if !d.session.close(d, false) {
		return api.ErrNoActiveDialog
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dismissed = true
	return nil
}

// SendKeys implements api.Dialog.
func (d *Dialog) SendKeys(_ context.Context, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.accepted || d.dismissed {
		return api.ErrNoActiveDialog
	}
	d.typed = append(d.typed, text)
	return nil
}

// Typed returns everything sent with SendKeys.
func (d *Dialog) Typed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.typed...)
}

// Accepted reports whether the dialog was accepted.
func (d *Dialog) Accepted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.accepted
}

// Dismissed reports whether the dialog was dismissed.
func (d *Dialog) Dismissed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dismissed
}
