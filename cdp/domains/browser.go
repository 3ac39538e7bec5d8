package domains

import (
	"context"
	"strings"

	cdpb "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
)

// Version describes the browser on the other end of a connection.
type Version struct {
	Protocol  string
	Product   string
	UserAgent string
}

// Headless reports whether the product is a headless build.
func (v Version) Headless() bool {
	return strings.HasPrefix(v.Product, "HeadlessChrome")
}

// Browser is the CDP Browser domain.
type Browser interface {
	Close(ctx context.Context) error
	Version(ctx context.Context) (Version, error)
}

var _ Browser = &browser{}

type browser struct {
	exec cdp.Executor
}

// NewBrowser returns the Browser domain over exec.
func NewBrowser(exec cdp.Executor) Browser {
	return &browser{exec}
}

func (b *browser) Close(ctx context.Context) error {
	return cdpb.Close().Do(cdp.WithExecutor(ctx, b.exec)) //nolint:wrapcheck
}

func (b *browser) Version(ctx context.Context) (Version, error) {
	protocol, product, _, userAgent, _, err := cdpb.GetVersion().Do(cdp.WithExecutor(ctx, b.exec))
	if err != nil {
		return Version{}, err //nolint:wrapcheck
	}
	return Version{Protocol: protocol, Product: product, UserAgent: userAgent}, nil
}
