package api

import (
	"context"
	"time"
)

// Driver is the capability contract every browser backend exposes to the
// acceptance framework.
type Driver interface {
	Title(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	SwitchToFrame(ctx context.Context, frame FrameRef) error
	Visit(ctx context.Context, url string) error
	ExecuteScript(ctx context.Context, script string) error
	EvaluateScript(ctx context.Context, script string) (any, error)
	AcceptModal(ctx context.Context, kind ModalKind, opts ModalOptions, trigger func() error) error
	DismissModal(ctx context.Context, kind ModalKind, opts ModalOptions, trigger func() error) error
	Reset(ctx context.Context) error
	FindCSS(ctx context.Context, query string) ([]Node, error)
	FindXPath(ctx context.Context, query string) ([]Node, error)
}

// Node is an element located by a Driver.
type Node interface {
	FrameRef

	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, error)
	Click(ctx context.Context) error
}

// FrameRef identifies the frame a Driver should switch into.
// Located nodes are frame references; ParentFrame steps out one level.
type FrameRef interface {
	Native() NativeElement
}

type parentFrame struct{}

func (parentFrame) Native() NativeElement { return nil }

// ParentFrame is the frame reference that steps out of the current frame.
var ParentFrame FrameRef = parentFrame{} //nolint:gochecknoglobals

// ModalKind is the category of a native dialog.
type ModalKind string

const (
	ModalAlert        ModalKind = "alert"
	ModalConfirm      ModalKind = "confirm"
	ModalPrompt       ModalKind = "prompt"
	ModalBeforeUnload ModalKind = "beforeunload"
)

// ModalOptions tune an accept or dismiss modal operation.
//
// Empty Text and Response are treated as unset. A zero Wait falls back to
// the driver's default max wait time.
type ModalOptions struct {
	Text     string
	Response string
	Wait     time.Duration
}
