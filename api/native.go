package api

import (
	"context"
	"errors"
)

var (
	// ErrUnexpectedDialog is returned by a NativeSession when an operation
	// is blocked by a dialog nobody waited for.
	ErrUnexpectedDialog = errors.New("unexpected dialog present")

	// ErrNoActiveDialog is returned by a NativeSession when acting on a
	// dialog that is no longer showing.
	ErrNoActiveDialog = errors.New("no active dialog")
)

// SelectorKind is the query language of an element lookup.
type SelectorKind string

const (
	ByCSS   SelectorKind = "css"
	ByXPath SelectorKind = "xpath"
)

// NativeSession is the automation engine a Driver wraps.
type NativeSession interface {
	Title(ctx context.Context) (string, error)
	Source(ctx context.Context) (string, error)
	SwitchToFrame(ctx context.Context, frame NativeElement) error
	SwitchToDefaultContent(ctx context.Context) error
	Navigate(ctx context.Context, url string) error
	Execute(ctx context.Context, script string) (any, error)
	FindElements(ctx context.Context, by SelectorKind, query string) ([]NativeElement, error)
	DialogPresent(ctx context.Context) (bool, error)
	ActiveDialog(ctx context.Context) (Dialog, error)
	Quit(ctx context.Context) error
}

// NativeElement is an engine-owned element handle.
type NativeElement interface {
	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, error)
	Click(ctx context.Context) error
}

// Dialog is the native dialog currently showing.
type Dialog interface {
	Kind() ModalKind
	Message() string
	Accept(ctx context.Context) error
	Dismiss(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
}
