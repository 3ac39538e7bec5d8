package tests

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/xk6-acceptance/api"
	"github.com/grafana/xk6-acceptance/common"
)

func TestDriverVisitHTTPBin(t *testing.T) {
	t.Parallel()

	td := newTestDriver(t)
	require.NoError(t, td.Visit(td.ctx(), "/html"))

	html, err := td.HTML(td.ctx())
	require.NoError(t, err)
	assert.Contains(t, html, "Herman Melville")
}

func TestDriverFrames(t *testing.T) {
	t.Parallel()

	td := newTestDriver(t).
		withHTML("/outer", `<html><head><title>Outer</title></head><body>
			<p>outer page</p><iframe id="a" src="/frame-a"></iframe></body></html>`).
		withHTML("/frame-a", `<html><body><p>frame A</p><iframe id="b" src="/frame-b"></iframe></body></html>`).
		withHTML("/frame-b", `<html><body><p>frame B</p></body></html>`)
	ctx := td.ctx()

	require.NoError(t, td.Visit(ctx, "/outer"))

	enter := func(css string) {
		t.Helper()
		require.Eventually(t, func() bool {
			nodes, err := td.FindCSS(ctx, css)
			return err == nil && len(nodes) == 1
		}, 5*time.Second, 50*time.Millisecond)
		nodes, err := td.FindCSS(ctx, css)
		require.NoError(t, err)
		require.NoError(t, td.SwitchToFrame(ctx, nodes[0]))
	}
	htmlContains := func(want string) {
		t.Helper()
		html, err := td.HTML(ctx)
		require.NoError(t, err)
		assert.Contains(t, html, want)
	}

	enter("iframe#a")
	htmlContains("frame A")
	enter("iframe#b")
	htmlContains("frame B")

	require.NoError(t, td.SwitchToFrame(ctx, api.ParentFrame))
	htmlContains("frame A")
	require.NoError(t, td.SwitchToFrame(ctx, api.ParentFrame))
	htmlContains("outer page")
	require.ErrorIs(t, td.SwitchToFrame(ctx, api.ParentFrame), common.ErrNoParentFrame)

	title, err := td.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Outer", title)
}

func TestDriverModals(t *testing.T) {
	t.Parallel()

	td := newTestDriver(t).withHTML("/modals", `<html><body>
		<button id="confirm" onclick="window.answer = confirm('Delete the file?')">confirm</button>
		<button id="prompt" onclick="window.answer = prompt('Your name?')">prompt</button>
		</body></html>`)
	ctx := td.ctx()
	require.NoError(t, td.Visit(ctx, "/modals"))

	click := func(css string) func() error {
		return func() error {
			nodes, err := td.FindCSS(ctx, css)
			if err != nil {
				return err
			}
			return nodes[0].Click(ctx)
		}
	}
	answer := func() any {
		t.Helper()
		v, err := td.EvaluateScript(ctx, "window.answer")
		require.NoError(t, err)
		return v
	}

	require.NoError(t, td.AcceptModal(ctx, api.ModalConfirm, api.ModalOptions{Text: "Delete"}, click("#confirm")))
	assert.Equal(t, true, answer())

	require.NoError(t, td.DismissModal(ctx, api.ModalConfirm, api.ModalOptions{}, click("#confirm")))
	assert.Equal(t, false, answer())

	require.NoError(t, td.AcceptModal(ctx, api.ModalPrompt, api.ModalOptions{Response: "Jane"}, click("#prompt")))
	assert.Equal(t, "Jane", answer())

	err := td.AcceptModal(ctx, api.ModalConfirm, api.ModalOptions{Text: "Other", Wait: time.Second}, click("#confirm"))
	var notFound *common.ModalNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Other", notFound.Text)

	// the mismatched dialog is still showing, reset drains it
	require.NoError(t, td.Reset(ctx))
	html, err := td.HTML(ctx)
	require.NoError(t, err)
	assert.NotContains(t, html, "button")
}
