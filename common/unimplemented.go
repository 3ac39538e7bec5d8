package common

import (
	"context"

	"github.com/grafana/xk6-acceptance/api"
)

// Ensure UnimplementedDriver implements the api.Driver interface.
var _ api.Driver = UnimplementedDriver{}

// UnimplementedDriver can be embedded by drivers that only support part of
// api.Driver. Every operation fails with ErrNotImplemented, except Reset,
// which does nothing.
type UnimplementedDriver struct{}

func (UnimplementedDriver) Title(context.Context) (string, error) { return "", ErrNotImplemented }
func (UnimplementedDriver) HTML(context.Context) (string, error)  { return "", ErrNotImplemented }

func (UnimplementedDriver) SwitchToFrame(context.Context, api.FrameRef) error {
	return ErrNotImplemented
}

func (UnimplementedDriver) Visit(context.Context, string) error { return ErrNotImplemented }

func (UnimplementedDriver) ExecuteScript(context.Context, string) error { return ErrNotImplemented }

func (UnimplementedDriver) EvaluateScript(context.Context, string) (any, error) {
	return nil, ErrNotImplemented
}

func (UnimplementedDriver) AcceptModal(context.Context, api.ModalKind, api.ModalOptions, func() error) error {
	return ErrNotImplemented
}

func (UnimplementedDriver) DismissModal(context.Context, api.ModalKind, api.ModalOptions, func() error) error {
	return ErrNotImplemented
}

func (UnimplementedDriver) Reset(context.Context) error { return nil }

func (UnimplementedDriver) FindCSS(context.Context, string) ([]api.Node, error) {
	return nil, ErrNotImplemented
}

func (UnimplementedDriver) FindXPath(context.Context, string) ([]api.Node, error) {
	return nil, ErrNotImplemented
}
