package cdp

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/xk6-acceptance/api"
	"github.com/grafana/xk6-acceptance/log"
)

func TestSessionNavigate(t *testing.T) {
	t.Parallel()

	fb := newFakeBrowser(t)
	s := newFakeSession(t, fb)

	require.NoError(t, s.Navigate(context.Background(), "http://app.test/"))

	msgs := fb.sent("Page.navigate")
	require.Len(t, msgs, 1)
	assert.Equal(t, "http://app.test/", msgs[0].param(t, "url"))
	assert.Equal(t, fakeSessionID, msgs[0].SessionID)
}

func TestSessionNavigateError(t *testing.T) {
	t.Parallel()

	fb := newFakeBrowser(t)
	fb.handle("Page.navigate", func(fakeMsg) fakeReply {
		return fakeReply{result: `{"frameId":"F1","errorText":"net::ERR_NAME_NOT_RESOLVED"}`}
	})
	s := newFakeSession(t, fb)

	err := s.Navigate(context.Background(), "http://nowhere.test/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_NAME_NOT_RESOLVED")
}

func TestSessionNavigateBlockedByDialog(t *testing.T) {
	t.Parallel()

	fb := newFakeBrowser(t)
	fb.handle("Page.navigate", func(m fakeMsg) fakeReply {
		// the browser holds the reply until the unload dialog is handled
		fb.emit(m.SessionID, "Page.javascriptDialogOpening",
			`{"url":"http://app.test/","message":"Leave site?","type":"beforeunload","hasBrowserHandler":false,"defaultPrompt":""}`)
		return fakeReply{noReply: true}
	})
	s := newFakeSession(t, fb)
	ctx := context.Background()

	err := s.Navigate(ctx, "about:blank")
	require.ErrorIs(t, err, api.ErrUnexpectedDialog)

	present, err := s.DialogPresent(ctx)
	require.NoError(t, err)
	assert.True(t, present)

	d, err := s.ActiveDialog(ctx)
	require.NoError(t, err)
	assert.Equal(t, api.ModalBeforeUnload, d.Kind())
	assert.Equal(t, "Leave site?", d.Message())

	require.NoError(t, d.Accept(ctx))
	present, err = s.DialogPresent(ctx)
	require.NoError(t, err)
	assert.False(t, present)

	msgs := fb.sent("Page.handleJavaScriptDialog")
	require.Len(t, msgs, 1)
	assert.Equal(t, true, msgs[0].param(t, "accept"))

	// acting on a handled dialog
	require.ErrorIs(t, d.Accept(ctx), api.ErrNoActiveDialog)
}

func TestSessionNavigateWithDialogOpen(t *testing.T) {
	t.Parallel()

	fb := newFakeBrowser(t)
	s := newFakeSession(t, fb)
	fb.emit(fakeSessionID, "Page.javascriptDialogOpening",
		`{"url":"","message":"hi","type":"alert","hasBrowserHandler":false,"defaultPrompt":""}`)
	require.Eventually(t, func() bool { return s.dialogOpen() }, 5*time.Second, 5*time.Millisecond)

	err := s.Navigate(context.Background(), "about:blank")
	require.ErrorIs(t, err, api.ErrUnexpectedDialog)
}

func TestSessionPromptAcceptSendsText(t *testing.T) {
	t.Parallel()

	fb := newFakeBrowser(t)
	s := newFakeSession(t, fb)
	fb.emit(fakeSessionID, "Page.javascriptDialogOpening",
		`{"url":"","message":"Name?","type":"prompt","hasBrowserHandler":false,"defaultPrompt":""}`)
	require.Eventually(t, func() bool { return s.dialogOpen() }, 5*time.Second, 5*time.Millisecond)

	ctx := context.Background()
	d, err := s.ActiveDialog(ctx)
	require.NoError(t, err)
	assert.Equal(t, api.ModalPrompt, d.Kind())
	require.NoError(t, d.SendKeys(ctx, "Jane"))
	require.NoError(t, d.Accept(ctx))

	msgs := fb.sent("Page.handleJavaScriptDialog")
	require.Len(t, msgs, 1)
	assert.Equal(t, "Jane", msgs[0].param(t, "promptText"))
}

func TestSessionDialogGoneMapsToNoActiveDialog(t *testing.T) {
	t.Parallel()

	fb := newFakeBrowser(t)
	fb.handle("Page.handleJavaScriptDialog", func(fakeMsg) fakeReply {
		return fakeReply{errMsg: "No dialog is showing"}
	})
	s := newFakeSession(t, fb)
	fb.emit(fakeSessionID, "Page.javascriptDialogOpening",
		`{"url":"","message":"Sure?","type":"confirm","hasBrowserHandler":false,"defaultPrompt":""}`)
	require.Eventually(t, func() bool { return s.dialogOpen() }, 5*time.Second, 5*time.Millisecond)

	d, err := s.ActiveDialog(context.Background())
	require.NoError(t, err)
	require.ErrorIs(t, d.Dismiss(context.Background()), api.ErrNoActiveDialog)
	assert.False(t, s.dialogOpen())
}

func TestSessionActiveDialogNone(t *testing.T) {
	t.Parallel()

	s := newFakeSession(t, newFakeBrowser(t))
	_, err := s.ActiveDialog(context.Background())
	require.ErrorIs(t, err, api.ErrNoActiveDialog)
}

func TestSessionExecute(t *testing.T) {
	t.Parallel()

	fb := newFakeBrowser(t)
	fb.handle("Runtime.evaluate", func(fakeMsg) fakeReply {
		return fakeReply{result: `{"result":{"type":"number","value":2,"description":"2"}}`}
	})
	s := newFakeSession(t, fb)

	v, err := s.Execute(context.Background(), "return 1 + 1")
	require.NoError(t, err)
	assert.Equal(t, float64(2), v)

	msgs := fb.sent("Runtime.evaluate")
	require.Len(t, msgs, 1)
	expr, _ := msgs[0].param(t, "expression").(string)
	assert.Contains(t, expr, "return 1 + 1")
	assert.True(t, strings.HasPrefix(expr, "(function(){"))
	assert.Equal(t, true, msgs[0].param(t, "returnByValue"))
}

func TestSessionExecuteException(t *testing.T) {
	t.Parallel()

	fb := newFakeBrowser(t)
	fb.handle("Runtime.evaluate", func(fakeMsg) fakeReply {
		return fakeReply{result: `{"result":{"type":"object"},"exceptionDetails":{"exceptionId":1,"text":"Uncaught","lineNumber":0,"columnNumber":0,"exception":{"type":"object","description":"ReferenceError: nope is not defined"}}}`}
	})
	s := newFakeSession(t, fb)

	_, err := s.Execute(context.Background(), "return nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ReferenceError")
}

func TestSessionExecuteOpeningDialogReturns(t *testing.T) {
	t.Parallel()

	fb := newFakeBrowser(t)
	fb.handle("Runtime.evaluate", func(m fakeMsg) fakeReply {
		fb.emit(m.SessionID, "Page.javascriptDialogOpening",
			`{"url":"","message":"hello","type":"alert","hasBrowserHandler":false,"defaultPrompt":""}`)
		return fakeReply{noReply: true}
	})
	s := newFakeSession(t, fb)

	v, err := s.Execute(context.Background(), "alert('hello')")
	require.NoError(t, err)
	assert.Nil(t, v)

	present, err := s.DialogPresent(context.Background())
	require.NoError(t, err)
	assert.True(t, present)
}

func TestSessionFindElementsAndFrames(t *testing.T) {
	t.Parallel()

	fb := newFakeBrowser(t)
	fb.handle("Runtime.evaluate", func(m fakeMsg) fakeReply {
		if m.param(t, "returnByValue") == true {
			return fakeReply{result: `{"result":{"type":"string","value":"<html>frame</html>"}}`}
		}
		return fakeReply{result: `{"result":{"type":"object","subtype":"array","objectId":"arr"}}`}
	})
	fb.handle("Runtime.callFunctionOn", func(m fakeMsg) fakeReply {
		fn, _ := m.param(t, "functionDeclaration").(string)
		switch {
		case strings.Contains(fn, "this.length"):
			return fakeReply{result: `{"result":{"type":"number","value":2}}`}
		case strings.Contains(fn, "this[i]"):
			return fakeReply{result: `{"result":{"type":"object","subtype":"node","objectId":"el"}}`}
		default:
			return fakeReply{result: `{"result":{"type":"string","value":"frame A"}}`}
		}
	})
	fb.handle("DOM.describeNode", func(fakeMsg) fakeReply {
		return fakeReply{result: `{"node":{"nodeId":0,"backendNodeId":5,"nodeType":1,"nodeName":"IFRAME","localName":"iframe","nodeValue":"","frameId":"F2"}}`}
	})
	fb.handle("Page.createIsolatedWorld", func(fakeMsg) fakeReply {
		return fakeReply{result: `{"executionContextId":7}`}
	})
	s := newFakeSession(t, fb)
	ctx := context.Background()

	els, err := s.FindElements(ctx, api.ByCSS, "iframe")
	require.NoError(t, err)
	require.Len(t, els, 2)
	expr, _ := fb.sent("Runtime.evaluate")[0].param(t, "expression").(string)
	assert.Contains(t, expr, `querySelectorAll`)
	assert.Contains(t, expr, `"iframe"`)
	assert.Len(t, fb.sent("Runtime.releaseObject"), 1)

	text, err := els[0].Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "frame A", text)

	require.NoError(t, s.SwitchToFrame(ctx, els[0]))
	assert.Equal(t, "F2", s.currentFrame())

	html, err := s.Source(ctx)
	require.NoError(t, err)
	assert.Equal(t, "<html>frame</html>", html)
	assert.Len(t, fb.sent("Page.createIsolatedWorld"), 1, "frame without a known context")

	require.NoError(t, s.SwitchToDefaultContent(ctx))
	assert.Equal(t, fakeFrameID, s.currentFrame())
}

func TestSessionFindXPath(t *testing.T) {
	t.Parallel()

	fb := newFakeBrowser(t)
	fb.handle("Runtime.evaluate", func(fakeMsg) fakeReply {
		return fakeReply{result: `{"result":{"type":"object","subtype":"array","objectId":"arr"}}`}
	})
	fb.handle("Runtime.callFunctionOn", func(fakeMsg) fakeReply {
		return fakeReply{result: `{"result":{"type":"number","value":0}}`}
	})
	s := newFakeSession(t, fb)

	els, err := s.FindElements(context.Background(), api.ByXPath, "//a[@id='x']")
	require.NoError(t, err)
	assert.Empty(t, els)
	expr, _ := fb.sent("Runtime.evaluate")[0].param(t, "expression").(string)
	assert.Contains(t, expr, "document.evaluate")
}

func TestSessionQuit(t *testing.T) {
	t.Parallel()

	fb := newFakeBrowser(t)
	c := connectFake(t, fb)
	quits := 0
	s, err := NewSession(context.Background(), c, SessionOptions{
		OnQuit: func(context.Context) error { quits++; return nil },
	}, log.NewNullLogger())
	require.NoError(t, err)

	require.NoError(t, s.Quit(context.Background()))
	require.NoError(t, s.Quit(context.Background()))
	assert.Equal(t, 1, quits)
	assert.Len(t, fb.sent("Page.close"), 1)
}
