package cdp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
	"github.com/mailru/easyjson"
	"golang.org/x/sync/errgroup"

	"github.com/grafana/xk6-acceptance/cdp/domains"
	"github.com/grafana/xk6-acceptance/log"
)

// ErrClientClosed is returned for messages sent on a closed Client.
var ErrClientClosed = errors.New("CDP client closed")

var _ cdp.Executor = &Client{}

// Client manages CDP communication with the browser.
type Client struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *log.Logger

	Browser domains.Browser
	Page    domains.Page
	Target  domains.Target
	Runtime domains.Runtime
	DOM     domains.DOM

	conn      *connection
	wsURL     string
	msgID     int64
	sendCh    chan *cdproto.Message
	msgSubsMu sync.Mutex
	msgSubs   map[int64]chan *cdproto.Message
	watcher   *eventWatcher

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
	errMu     sync.Mutex
	loopErr   error
}

// NewClient returns a new Client that is unusable until a CDP connection is
// established with Connect().
func NewClient(ctx context.Context, logger *log.Logger) *Client {
	ctx, cancel := context.WithCancel(ctx)
	c := &Client{
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
		sendCh:  make(chan *cdproto.Message, 32), // Buffered to avoid blocking in Execute
		msgSubs: make(map[int64]chan *cdproto.Message),
		watcher: newEventWatcher(ctx),
		done:    make(chan struct{}),
	}

	c.Browser = domains.NewBrowser(c)
	c.Page = domains.NewPage(c)
	c.Target = domains.NewTarget(c)
	c.Runtime = domains.NewRuntime(c)
	c.DOM = domains.NewDOM(c)

	return c
}

// Connect to the browser that exposes a CDP API at wsURL.
func (c *Client) Connect(ctx context.Context, wsURL string) (err error) {
	if c.wsURL != "" {
		return fmt.Errorf("CDP connection already established to %q", c.wsURL)
	}

	if c.conn, err = newConnection(ctx, wsURL, c.logger); err != nil {
		return err
	}
	c.logger.Infof("cdp", "established CDP connection to %q", wsURL)
	c.wsURL = wsURL

	g, gctx := errgroup.WithContext(c.ctx)
	g.Go(c.recvLoop)
	g.Go(func() error { return c.sendLoop(gctx) })
	go func() {
		err := g.Wait()
		c.setErr(err)
		c.cancel()
		close(c.done)
	}()

	return nil
}

// Close disconnects from the browser's CDP API and waits for the
// connection loops to end.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn == nil {
			return
		}
		c.closeErr = c.conn.close()
		<-c.done
	})

	return c.closeErr
}

// Done is closed once the connection to the browser is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the connection loops, if any.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.loopErr
}

func (c *Client) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.loopErr == nil && err != nil && !errors.Is(err, context.Canceled) {
		c.loopErr = err
	}
}

// Execute implements cdp.Executor and performs a synchronous send and
// receive. The message is routed to the target whose session ID is in ctx.
func (c *Client) Execute(ctx context.Context, method string, params easyjson.Marshaler, res easyjson.Unmarshaler) error {
	id := atomic.AddInt64(&c.msgID, 1)
	c.logger.Debugf("Client:Execute", "wsURL:%q id:%d method:%q", c.wsURL, id, method)

	var buf []byte
	if params != nil {
		var err error
		if buf, err = easyjson.Marshal(params); err != nil {
			return fmt.Errorf("encoding %s params: %w", method, err)
		}
	}
	msg := &cdproto.Message{
		ID:        id,
		SessionID: SessionFrom(ctx),
		Method:    cdproto.MethodType(method),
		Params:    buf,
	}

	replyCh := make(chan *cdproto.Message, 1)
	c.msgSubsMu.Lock()
	c.msgSubs[id] = replyCh
	c.msgSubsMu.Unlock()
	defer func() {
		c.msgSubsMu.Lock()
		delete(c.msgSubs, id)
		c.msgSubsMu.Unlock()
	}()

	select {
	case c.sendCh <- msg:
	case <-ctx.Done():
		return fmt.Errorf("sending %s: %w", method, ctx.Err())
	case <-c.done:
		return c.closedErr()
	}

	select {
	case reply := <-replyCh:
		if reply.Error != nil {
			return reply.Error
		}
		if res != nil {
			return easyjson.Unmarshal(reply.Result, res) //nolint:wrapcheck
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s reply: %w", method, ctx.Err())
	case <-c.done:
		return c.closedErr()
	}
}

// Subscribe returns a channel that will be notified when the provided CDP
// events are received for the session in ctx, and a cancellation function
// that unsubscribes.
func (c *Client) Subscribe(ctx context.Context, events ...cdproto.MethodType) (<-chan *Event, func()) {
	return c.watcher.subscribe(SessionFrom(ctx), events...)
}

func (c *Client) closedErr() error {
	if err := c.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrClientClosed, err)
	}
	return ErrClientClosed
}

func (c *Client) recvLoop() error {
	for {
		msg, err := c.conn.readMessage()
		if err != nil {
			if c.ctx.Err() != nil {
				return nil
			}
			c.logger.Errorf("Client:recvLoop", "wsURL:%q err:%v", c.wsURL, err)
			return err
		}

		switch {
		case msg.Method != "":
			evt, err := cdproto.UnmarshalMessage(msg)
			if err != nil {
				c.logger.Debugf("Client:recvLoop", "skipping event %q: %v", msg.Method, err)
				continue
			}
			c.watcher.notify(&Event{
				Name:      msg.Method,
				Data:      evt,
				sessionID: msg.SessionID,
			})
		case msg.ID > 0:
			c.msgSubsMu.Lock()
			ch, ok := c.msgSubs[msg.ID]
			c.msgSubsMu.Unlock()
			if !ok {
				c.logger.Debugf("Client:recvLoop", "no caller waits for reply id:%d", msg.ID)
				continue
			}
			ch <- msg
		default:
			c.logger.Errorf("Client:recvLoop", "ignoring malformed incoming CDP message (missing id or method): %#v", msg)
		}
	}
}

func (c *Client) sendLoop(ctx context.Context) error {
	for {
		select {
		case msg := <-c.sendCh:
			if err := c.conn.writeMessage(msg); err != nil {
				if c.ctx.Err() != nil {
					return nil
				}
				// unblock recvLoop
				_ = c.conn.ws.Close()
				return err
			}
		case <-ctx.Done():
			c.logger.Debugf("Client:sendLoop", "returning, ctx.Err: %q", ctx.Err())
			return nil
		}
	}
}
