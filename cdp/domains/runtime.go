package domains

import (
	"context"
	"errors"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	cdpruntime "github.com/chromedp/cdproto/runtime"
)

// Runtime exposes the CDP Runtime domain actions used by sessions.
type Runtime interface {
	Enable(context.Context) error
	Evaluate(
		ctx context.Context, contextID cdpruntime.ExecutionContextID, expr string, byValue bool,
	) (*cdpruntime.RemoteObject, error)
	CallFunctionOn(
		ctx context.Context, objectID cdpruntime.RemoteObjectID, fn string, byValue bool, args ...[]byte,
	) (*cdpruntime.RemoteObject, error)
	ReleaseObject(ctx context.Context, objectID cdpruntime.RemoteObjectID) error
}

var _ Runtime = &runtime{}

type runtime struct {
	exec cdp.Executor
}

// NewRuntime returns a new CDP Runtime domain wrapper.
func NewRuntime(exec cdp.Executor) Runtime {
	return &runtime{exec}
}

func (r *runtime) Enable(ctx context.Context) error {
	action := cdpruntime.Enable()
	if err := action.Do(cdp.WithExecutor(ctx, r.exec)); err != nil {
		return fmt.Errorf("enabling runtime CDP domain: %w", err)
	}

	return nil
}

func (r *runtime) Evaluate(
	ctx context.Context, contextID cdpruntime.ExecutionContextID, expr string, byValue bool,
) (*cdpruntime.RemoteObject, error) {
	action := cdpruntime.Evaluate(expr).
		WithReturnByValue(byValue).
		WithAwaitPromise(true)
	if contextID != 0 {
		action = action.WithContextID(contextID)
	}

	res, exc, err := action.Do(cdp.WithExecutor(ctx, r.exec))
	if err != nil {
		return nil, fmt.Errorf("evaluating script: %w", err)
	}
	if exc != nil {
		return nil, exceptionError(exc)
	}

	return res, nil
}

func (r *runtime) CallFunctionOn(
	ctx context.Context, objectID cdpruntime.RemoteObjectID, fn string, byValue bool, args ...[]byte,
) (*cdpruntime.RemoteObject, error) {
	cargs := make([]*cdpruntime.CallArgument, 0, len(args))
	for _, a := range args {
		cargs = append(cargs, &cdpruntime.CallArgument{Value: a})
	}
	action := cdpruntime.CallFunctionOn(fn).
		WithObjectID(objectID).
		WithArguments(cargs).
		WithReturnByValue(byValue).
		WithAwaitPromise(true)

	res, exc, err := action.Do(cdp.WithExecutor(ctx, r.exec))
	if err != nil {
		return nil, fmt.Errorf("calling function on %q: %w", objectID, err)
	}
	if exc != nil {
		return nil, exceptionError(exc)
	}

	return res, nil
}

func (r *runtime) ReleaseObject(ctx context.Context, objectID cdpruntime.RemoteObjectID) error {
	action := cdpruntime.ReleaseObject(objectID)
	return action.Do(cdp.WithExecutor(ctx, r.exec)) //nolint:wrapcheck
}

func exceptionError(exc *cdpruntime.ExceptionDetails) error {
	msg := exc.Text
	if exc.Exception != nil && exc.Exception.Description != "" {
		msg = exc.Exception.Description
	}
	return errors.New(msg)
}
