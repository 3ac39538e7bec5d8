package domains

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	cdpp "github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
)

// Page exposes the CDP Page domain actions used by sessions.
type Page interface {
	Enable(context.Context) error
	Navigate(ctx context.Context, url, frameID string) (loaderID string, err error)
	MainFrameID(ctx context.Context) (string, error)
	CreateIsolatedWorld(ctx context.Context, frameID, worldName string) (cdpruntime.ExecutionContextID, error)
	HandleJavaScriptDialog(ctx context.Context, accept bool, promptText string) error
	Close(ctx context.Context) error
}

var _ Page = &page{}

type page struct {
	exec cdp.Executor
}

// NewPage returns a new CDP Page domain wrapper.
func NewPage(exec cdp.Executor) Page {
	return &page{exec}
}

func (p *page) Enable(ctx context.Context) error {
	action := cdpp.Enable()
	if err := action.Do(cdp.WithExecutor(ctx, p.exec)); err != nil {
		return fmt.Errorf("enabling page CDP domain: %w", err)
	}

	return nil
}

func (p *page) Navigate(ctx context.Context, url, frameID string) (string, error) {
	action := cdpp.Navigate(url)
	if frameID != "" {
		action = action.WithFrameID(cdp.FrameID(frameID))
	}

	_, loaderID, errorText, err := action.Do(cdp.WithExecutor(ctx, p.exec))
	if err != nil {
		return "", fmt.Errorf("navigating to %q: %w", url, err)
	}
	if errorText != "" {
		return "", fmt.Errorf("navigating to %q: %s", url, errorText)
	}

	return loaderID.String(), nil
}

func (p *page) MainFrameID(ctx context.Context) (string, error) {
	action := cdpp.GetFrameTree()
	tree, err := action.Do(cdp.WithExecutor(ctx, p.exec))
	if err != nil {
		return "", fmt.Errorf("getting frame tree: %w", err)
	}

	return tree.Frame.ID.String(), nil
}

func (p *page) CreateIsolatedWorld(
	ctx context.Context, frameID, worldName string,
) (cdpruntime.ExecutionContextID, error) {
	action := cdpp.CreateIsolatedWorld(cdp.FrameID(frameID)).
		WithWorldName(worldName).
		WithGrantUniveralAccess(true)
	id, err := action.Do(cdp.WithExecutor(ctx, p.exec))
	if err != nil {
		return 0, fmt.Errorf("creating isolated world in frame %q: %w", frameID, err)
	}

	return id, nil
}

func (p *page) HandleJavaScriptDialog(ctx context.Context, accept bool, promptText string) error {
	action := cdpp.HandleJavaScriptDialog(accept)
	if promptText != "" {
		action = action.WithPromptText(promptText)
	}

	return action.Do(cdp.WithExecutor(ctx, p.exec)) //nolint:wrapcheck
}

func (p *page) Close(ctx context.Context) error {
	action := cdpp.Close()
	if err := action.Do(cdp.WithExecutor(ctx, p.exec)); err != nil {
		return fmt.Errorf("closing page: %w", err)
	}

	return nil
}
