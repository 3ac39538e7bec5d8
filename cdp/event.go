package cdp

import (
	"context"
	"sync"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/target"
)

// Event is a CDP event received from the browser.
type Event struct {
	Name      cdproto.MethodType
	Data      interface{}
	sessionID target.SessionID
}

type subscription struct {
	sessionID target.SessionID
	ch        chan *Event
	done      chan struct{}
	once      sync.Once
}

type eventWatcher struct {
	ctx    context.Context
	subsMu sync.RWMutex
	subs   map[cdproto.MethodType][]*subscription
}

func newEventWatcher(ctx context.Context) *eventWatcher {
	return &eventWatcher{
		ctx:  ctx,
		subs: make(map[cdproto.MethodType][]*subscription),
	}
}

// subscribe registers for events of the given session. The returned
// function unsubscribes; the channel is never closed.
func (w *eventWatcher) subscribe(sessionID target.SessionID, events ...cdproto.MethodType) (<-chan *Event, func()) {
	sub := &subscription{
		sessionID: sessionID,
		ch:        make(chan *Event, 64),
		done:      make(chan struct{}),
	}

	w.subsMu.Lock()
	for _, evt := range events {
		w.subs[evt] = append(w.subs[evt], sub)
	}
	w.subsMu.Unlock()

	cancel := func() {
		sub.once.Do(func() { close(sub.done) })

		w.subsMu.Lock()
		defer w.subsMu.Unlock()
		for _, evt := range events {
			subs := w.subs[evt]
			for i, s := range subs {
				if s == sub {
					w.subs[evt] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
		}
	}

	return sub.ch, cancel
}

// notify delivers evt to every matching subscriber. It blocks while a
// subscriber's buffer is full, unless the subscriber goes away.
func (w *eventWatcher) notify(evt *Event) {
	w.subsMu.RLock()
	defer w.subsMu.RUnlock()

	for _, sub := range w.subs[evt.Name] {
		if sub.sessionID != evt.sessionID {
			continue
		}
		select {
		case sub.ch <- evt:
		case <-sub.done:
		case <-w.ctx.Done():
			return
		}
	}
}
