package cdp

import (
	"context"
	"encoding/json"
	"fmt"

	cdpruntime "github.com/chromedp/cdproto/runtime"

	"github.com/grafana/xk6-acceptance/api"
	"github.com/grafana/xk6-acceptance/cdp/js"
)

var (
	_ api.NativeElement = &Element{}
	_ api.Dialog        = &Dialog{}
)

// Element is a handle to a DOM element held by the page's runtime.
type Element struct {
	session  *Session
	objectID cdpruntime.RemoteObjectID
}

// Text returns the rendered text of the element.
func (e *Element) Text(ctx context.Context) (string, error) {
	var text string
	err := e.call(ctx, js.ElementTextScript, &text)
	if err != nil {
		return "", fmt.Errorf("getting element text: %w", err)
	}
	return text, nil
}

// Attribute returns the value of the named attribute, or an empty string.
func (e *Element) Attribute(ctx context.Context, name string) (string, error) {
	arg, err := json.Marshal(name)
	if err != nil {
		return "", fmt.Errorf("encoding attribute name: %w", err)
	}
	var value *string
	if err := e.call(ctx, js.ElementAttributeScript, &value, arg); err != nil {
		return "", fmt.Errorf("getting attribute %q: %w", name, err)
	}
	if value == nil {
		return "", nil
	}
	return *value, nil
}

// Click scrolls the element into view and clicks it. A click that opens
// a dialog returns once the dialog shows.
func (e *Element) Click(ctx context.Context) error {
	if e.session.dialogOpen() {
		return api.ErrUnexpectedDialog
	}
	_, err := e.session.unlessDialog(ctx, func(ctx context.Context) error {
		_, err := e.session.client.Runtime.CallFunctionOn(ctx, e.objectID, js.ElementClickScript, true)
		return err //nolint:wrapcheck
	})
	if err != nil {
		return fmt.Errorf("clicking element: %w", err)
	}
	return nil
}

func (e *Element) call(ctx context.Context, fn string, v interface{}, args ...[]byte) error {
	if e.session.dialogOpen() {
		return api.ErrUnexpectedDialog
	}
	res, err := e.session.client.Runtime.CallFunctionOn(e.session.withSession(ctx), e.objectID, fn, true, args...)
	if err != nil {
		return err //nolint:wrapcheck
	}
	return decodeValue(res, v)
}

// Dialog is a JavaScript dialog showing in a page.
type Dialog struct {
	session *Session
	kind    api.ModalKind
	message string
	typed   string
}

// Kind returns the type of the dialog.
func (d *Dialog) Kind() api.ModalKind { return d.kind }

// Message returns the text the dialog shows.
func (d *Dialog) Message() string { return d.message }

// SendKeys sets the text a prompt dialog is accepted with.
func (d *Dialog) SendKeys(_ context.Context, text string) error {
	d.typed += text
	return nil
}

// Accept accepts the dialog with the text sent to it, if any.
func (d *Dialog) Accept(ctx context.Context) error {
	return d.session.handleDialog(ctx, d, true, d.typed)
}

// Dismiss dismisses the dialog.
func (d *Dialog) Dismiss(ctx context.Context) error {
	return d.session.handleDialog(ctx, d, false, "")
}
