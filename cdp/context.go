package cdp

import (
	"context"

	"github.com/chromedp/cdproto/target"
)

type sessionKey struct{}

// WithSession routes the commands and event subscriptions made with ctx to
// the page target attached as id. Without one they address the browser.
func WithSession(ctx context.Context, id target.SessionID) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionFrom returns the session ID ctx routes to, or "".
func SessionFrom(ctx context.Context) target.SessionID {
	id, _ := ctx.Value(sessionKey{}).(target.SessionID)
	return id
}
