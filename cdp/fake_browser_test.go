package cdp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/grafana/xk6-acceptance/log"
)

type fakeMsg struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"sessionId,omitempty"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params"`
}

func (m fakeMsg) param(t *testing.T, name string) interface{} {
	t.Helper()

	var p map[string]interface{}
	require.NoError(t, json.Unmarshal(m.Params, &p))
	return p[name]
}

type fakeEvent struct {
	method string
	params string
}

type fakeReply struct {
	result  string
	errMsg  string
	noReply bool
	after   []fakeEvent
}

type fakeHandler func(m fakeMsg) fakeReply

// fakeBrowser is a CDP endpoint that answers every command from a table
// of handlers and records what it received.
type fakeBrowser struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	conn     *websocket.Conn
	handlers map[string]fakeHandler
	received []fakeMsg
}

const (
	fakeTargetID  = "T1"
	fakeSessionID = "S1"
	fakeFrameID   = "F1"
)

func newFakeBrowser(t *testing.T) *fakeBrowser {
	t.Helper()

	fb := &fakeBrowser{t: t, handlers: make(map[string]fakeHandler)}
	fb.handle("Target.createTarget", func(fakeMsg) fakeReply {
		return fakeReply{result: `{"targetId":"` + fakeTargetID + `"}`}
	})
	fb.handle("Target.attachToTarget", func(fakeMsg) fakeReply {
		return fakeReply{result: `{"sessionId":"` + fakeSessionID + `"}`}
	})
	fb.handle("Runtime.enable", func(fakeMsg) fakeReply {
		return fakeReply{after: []fakeEvent{{
			method: "Runtime.executionContextCreated",
			params: `{"context":{"id":1,"origin":"","name":"","auxData":{"isDefault":true,"type":"default","frameId":"` + fakeFrameID + `"}}}`,
		}}}
	})
	fb.handle("Page.getFrameTree", func(fakeMsg) fakeReply {
		return fakeReply{result: `{"frameTree":{"frame":{"id":"` + fakeFrameID + `","loaderId":"L1","url":"about:blank","securityOrigin":"","mimeType":"text/html"}}}`}
	})
	fb.handle("Page.navigate", func(fakeMsg) fakeReply {
		return fakeReply{
			result: `{"frameId":"` + fakeFrameID + `","loaderId":"L2"}`,
			after:  []fakeEvent{{method: "Page.loadEventFired", params: `{"timestamp":1}`}},
		}
	})
	fb.handle("Page.handleJavaScriptDialog", func(m fakeMsg) fakeReply {
		return fakeReply{after: []fakeEvent{{
			method: "Page.javascriptDialogClosed",
			params: `{"result":true,"userInput":""}`,
		}}}
	})

	upgrader := websocket.Upgrader{}
	fb.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fb.mu.Lock()
		fb.conn = conn
		fb.mu.Unlock()
		fb.serve(conn)
	}))
	t.Cleanup(fb.srv.Close)

	return fb
}

func (fb *fakeBrowser) wsURL() string {
	return "ws" + strings.TrimPrefix(fb.srv.URL, "http")
}

func (fb *fakeBrowser) handle(method string, h fakeHandler) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.handlers[method] = h
}

func (fb *fakeBrowser) serve(conn *websocket.Conn) {
	defer conn.Close() //nolint:errcheck
	for {
		_, buf, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var m fakeMsg
		if err := json.Unmarshal(buf, &m); err != nil {
			return
		}

		fb.mu.Lock()
		fb.received = append(fb.received, m)
		h := fb.handlers[m.Method]
		fb.mu.Unlock()

		reply := fakeReply{}
		if h != nil {
			reply = h(m)
		}
		if reply.noReply {
			continue
		}
		if reply.result == "" {
			reply.result = "{}"
		}

		out := map[string]interface{}{"id": m.ID}
		if m.SessionID != "" {
			out["sessionId"] = m.SessionID
		}
		if reply.errMsg != "" {
			out["error"] = map[string]interface{}{"code": -32000, "message": reply.errMsg}
		} else {
			out["result"] = json.RawMessage(reply.result)
		}
		fb.write(out)
		for _, evt := range reply.after {
			fb.emit(m.SessionID, evt.method, evt.params)
		}
	}
}

// emit sends an event to the client as if the browser raised it.
func (fb *fakeBrowser) emit(sessionID, method, params string) {
	out := map[string]interface{}{"method": method, "params": json.RawMessage(params)}
	if sessionID != "" {
		out["sessionId"] = sessionID
	}
	fb.write(out)
}

func (fb *fakeBrowser) write(v interface{}) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if fb.conn == nil {
		return
	}
	_ = fb.conn.WriteJSON(v)
}

// sent returns the commands received for method.
func (fb *fakeBrowser) sent(method string) []fakeMsg {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	var msgs []fakeMsg
	for _, m := range fb.received {
		if m.Method == method {
			msgs = append(msgs, m)
		}
	}
	return msgs
}

func connectFake(t *testing.T, fb *fakeBrowser) *Client {
	t.Helper()

	c := NewClient(context.Background(), log.NewNullLogger())
	require.NoError(t, c.Connect(context.Background(), fb.wsURL()))
	t.Cleanup(func() { _ = c.Close() })

	return c
}

func newFakeSession(t *testing.T, fb *fakeBrowser) *Session {
	t.Helper()

	c := connectFake(t, fb)
	s, err := NewSession(context.Background(), c, SessionOptions{}, log.NewNullLogger())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		_, ok := s.contexts[fakeFrameID]
		return ok
	}, 5*time.Second, 5*time.Millisecond, "main frame context not reported")

	return s
}
