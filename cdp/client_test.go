package cdp

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/cdproto"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/xk6-acceptance/log"
)

func TestClientExecute(t *testing.T) {
	t.Parallel()

	fb := newFakeBrowser(t)
	fb.handle("Browser.getVersion", func(fakeMsg) fakeReply {
		return fakeReply{result: `{"protocolVersion":"1.3","product":"HeadlessChrome/118","revision":"","userAgent":"","jsVersion":""}`}
	})
	c := connectFake(t, fb)

	v, err := c.Browser.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "HeadlessChrome/118", v.Product)
	assert.Equal(t, "1.3", v.Protocol)
	assert.True(t, v.Headless())
	require.Len(t, fb.sent("Browser.getVersion"), 1)
	assert.Empty(t, fb.sent("Browser.getVersion")[0].SessionID)
}

func TestClientExecuteRoutesSession(t *testing.T) {
	t.Parallel()

	fb := newFakeBrowser(t)
	c := connectFake(t, fb)

	ctx := WithSession(context.Background(), "S9")
	require.NoError(t, c.Page.Enable(ctx))

	msgs := fb.sent("Page.enable")
	require.Len(t, msgs, 1)
	assert.Equal(t, "S9", msgs[0].SessionID)
}

func TestClientExecuteError(t *testing.T) {
	t.Parallel()

	fb := newFakeBrowser(t)
	fb.handle("Page.enable", func(fakeMsg) fakeReply {
		return fakeReply{errMsg: "Page domain unavailable"}
	})
	c := connectFake(t, fb)

	err := c.Page.Enable(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Page domain unavailable")
}

func TestClientSubscribe(t *testing.T) {
	t.Parallel()

	fb := newFakeBrowser(t)
	c := connectFake(t, fb)

	ctx := WithSession(context.Background(), "S1")
	events, cancel := c.Subscribe(ctx, cdproto.EventPageLoadEventFired)
	defer cancel()

	fb.emit("S2", "Page.loadEventFired", `{"timestamp":1}`)
	fb.emit("S1", "Page.loadEventFired", `{"timestamp":2}`)

	select {
	case evt := <-events:
		assert.Equal(t, cdproto.EventPageLoadEventFired, evt.Name)
		assert.IsType(t, &cdppage.EventLoadEventFired{}, evt.Data)
		assert.Equal(t, "S1", string(evt.sessionID))
	case <-time.After(5 * time.Second):
		t.Fatal("event not delivered")
	}
	select {
	case evt := <-events:
		t.Fatalf("unexpected event for session %q", evt.sessionID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClientCloseUnblocksExecute(t *testing.T) {
	t.Parallel()

	fb := newFakeBrowser(t)
	fb.handle("Page.enable", func(fakeMsg) fakeReply {
		return fakeReply{noReply: true}
	})
	c := connectFake(t, fb)

	errCh := make(chan error, 1)
	go func() { errCh <- c.Page.Enable(context.Background()) }()

	require.Eventually(t, func() bool { return len(fb.sent("Page.enable")) == 1 },
		5*time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrClientClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("Execute still blocked after Close")
	}
	assert.NoError(t, c.Close(), "second close")
}

func TestClientConnectFails(t *testing.T) {
	t.Parallel()

	c := NewClient(context.Background(), log.NewNullLogger())
	err := c.Connect(context.Background(), "ws://127.0.0.1:1/devtools/browser")
	require.Error(t, err)
	assert.NoError(t, c.Close())
}
