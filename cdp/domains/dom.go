package domains

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	cdpdom "github.com/chromedp/cdproto/dom"
	cdpruntime "github.com/chromedp/cdproto/runtime"
)

// DOM exposes the CDP DOM domain actions used by sessions.
type DOM interface {
	ContentFrameID(ctx context.Context, objectID cdpruntime.RemoteObjectID) (string, error)
}

var _ DOM = &dom{}

type dom struct {
	exec cdp.Executor
}

// NewDOM returns a new CDP DOM domain wrapper.
func NewDOM(exec cdp.Executor) DOM {
	return &dom{exec}
}

// ContentFrameID returns the ID of the frame a frame owner element hosts.
func (d *dom) ContentFrameID(ctx context.Context, objectID cdpruntime.RemoteObjectID) (string, error) {
	action := cdpdom.DescribeNode().WithObjectID(objectID)
	node, err := action.Do(cdp.WithExecutor(ctx, d.exec))
	if err != nil {
		return "", fmt.Errorf("describing node: %w", err)
	}
	if node.FrameID == "" {
		return "", fmt.Errorf("element <%s> is not a frame", node.LocalName)
	}

	return node.FrameID.String(), nil
}
