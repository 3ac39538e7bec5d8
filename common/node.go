package common

import (
	"context"

	"github.com/grafana/xk6-acceptance/api"
)

// Ensure Node implements the api.Node interface.
var _ api.Node = &Node{}

// Node is an element found by a Driver. It can be passed back to
// SwitchToFrame when it is a frame element.
type Node struct {
	native api.NativeElement
}

// NewNode wraps a native element.
func NewNode(el api.NativeElement) *Node {
	return &Node{native: el}
}

// Native returns the wrapped engine element.
func (n *Node) Native() api.NativeElement { return n.native }

// Text returns the text of the element.
func (n *Node) Text(ctx context.Context) (string, error) {
	return n.native.Text(ctx) //nolint:wrapcheck
}

// Attribute returns the value of the named attribute.
func (n *Node) Attribute(ctx context.Context, name string) (string, error) {
	return n.native.Attribute(ctx, name) //nolint:wrapcheck
}

// Click clicks the element.
func (n *Node) Click(ctx context.Context) error {
	return n.native.Click(ctx) //nolint:wrapcheck
}
