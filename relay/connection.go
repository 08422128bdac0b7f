// SPDX-License-Identifier: ice License 1.0

package relay

import (
	"bufio"
	"context"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/nbd-wtf/go-nostr"

	"github.com/nostrich-app/nostrich/model"
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	}

	return "disconnected"
}

type (
	messageSink func(envelope nostr.Envelope, relayURL string)

	// Connection owns one persistent websocket to one relay. Unexpected
	// closes reconnect immediately; an explicit Disconnect suppresses the
	// reconnect for that close only.
	Connection struct {
		url  string
		cfg  *Config
		sink messageSink

		state atomic.Int32

		mx       sync.Mutex
		conn     io.ReadWriteCloser
		identity string
		suppress bool
		pending  []string

		writeMx sync.Mutex

		onState func(url string, state State)
	}
)

func newConnection(url string, cfg *Config, sink messageSink, onState func(url string, state State)) *Connection {
	return &Connection{url: url, cfg: cfg, sink: sink, onState: onState}
}

func (c *Connection) URL() string {
	return c.url
}

func (c *Connection) State() State {
	return State(c.state.Load())
}

// Connect begins an asynchronous handshake. It returns immediately; the
// connectivity event fires once the handshake completes.
func (c *Connection) Connect(ctx context.Context, identity string) {
	c.mx.Lock()
	c.identity = identity
	c.suppress = false
	c.mx.Unlock()

	if !c.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return
	}
	c.setState(StateConnecting)

	go c.run(ctx)
}

// Send queues a text frame. When the connection is down it transparently
// triggers a reconnect instead of failing the caller; the frame goes out
// once the handshake completes.
func (c *Connection) Send(ctx context.Context, message string) {
	if c.State() != StateConnected {
		c.mx.Lock()
		c.pending = append(c.pending, message)
		identity := c.identity
		c.mx.Unlock()
		c.Connect(ctx, identity)

		return
	}

	if err := c.writeText(message); err != nil {
		log.Printf("WARN: failed to send to %v: %v", c.url, err)
		c.mx.Lock()
		c.pending = append(c.pending, message)
		c.mx.Unlock()
	}
}

// Disconnect closes the connection and suppresses the automatic reconnect
// for this close only; a later Connect or Send revives the connection.
func (c *Connection) Disconnect() {
	c.mx.Lock()
	c.suppress = true
	conn := c.conn
	c.mx.Unlock()

	c.state.CompareAndSwap(int32(StateConnected), int32(StateClosing))

	if conn != nil {
		c.writeMx.Lock()
		_ = ws.WriteFrame(conn, ws.MaskFrameInPlace(ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))))
		c.writeMx.Unlock()
		conn.Close()
	}
}

func (c *Connection) run(ctx context.Context) {
	for {
		conn, br, err := c.dial(ctx)
		if err != nil {
			log.Printf("WARN: failed to connect to %v: %v", c.url, err)
			if c.stopRequested(ctx) {
				return
			}
			select {
			case <-ctx.Done():
				c.setState(StateDisconnected)
				return
			case <-time.After(c.cfg.retryInterval()):
			}
			if c.stopRequested(ctx) {
				return
			}

			continue
		}

		// Disconnect may have fired while the dial was in flight.
		if c.stopRequested(ctx) {
			conn.Close()
			return
		}

		c.mx.Lock()
		c.conn = conn
		c.mx.Unlock()
		c.state.Store(int32(StateConnected))
		c.setState(StateConnected)
		c.flushPending()

		stopPing := make(chan struct{})
		go c.pingLoop(conn, stopPing)
		c.readLoop(conn, br)
		close(stopPing)

		c.mx.Lock()
		c.conn = nil
		c.mx.Unlock()

		if c.stopRequested(ctx) {
			return
		}
		// Server-initiated close: reconnect without caller intervention.
		c.state.Store(int32(StateConnecting))
		c.setState(StateConnecting)
	}
}

func (c *Connection) dial(ctx context.Context) (io.ReadWriteCloser, *bufio.Reader, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.connectTimeout())
	defer cancel()

	dialer := ws.Dialer{Timeout: c.cfg.connectTimeout()}
	conn, br, _, err := dialer.Dial(dialCtx, c.url)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "websocket handshake with %v failed", c.url)
	}

	return conn, br, nil
}

func (c *Connection) readLoop(conn io.ReadWriteCloser, br *bufio.Reader) {
	var rw io.ReadWriter = conn
	if br != nil {
		// The dialer may have buffered frames past the handshake.
		rw = struct {
			io.Reader
			io.Writer
		}{io.MultiReader(br, conn), conn}
	}

	for {
		data, op, err := wsutil.ReadServerData(rw)
		if err != nil {
			closed := new(wsutil.ClosedError)
			if errors.As(err, closed) {
				if closed.Code != ws.StatusNormalClosure &&
					closed.Code != ws.StatusGoingAway &&
					closed.Code != ws.StatusAbnormalClosure &&
					closed.Code != ws.StatusNoStatusRcvd {
					log.Printf("WARN: unexpected close from %v: %v", c.url, closed.Code)
				}
			} else if !errors.Is(err, io.EOF) {
				log.Printf("WARN: read from %v failed: %v", c.url, err)
			}
			conn.Close()

			return
		}
		if op != ws.OpText || len(data) == 0 {
			continue
		}

		envelope, err := model.ParseMessage(data)
		if err != nil {
			// Malformed frames are dropped, the connection stays alive.
			log.Printf("WARN: dropping unparseable frame from %v: %v", c.url, err)

			continue
		}
		c.sink(envelope, c.url)
	}
}

// pingLoop keeps the connection warm. A missing pong is not treated as
// fatal; the close handler in the read loop is the sole reconnect trigger,
// which avoids churn on flaky timers.
func (c *Connection) pingLoop(conn io.Writer, stop <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.pingInterval())
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.writeMx.Lock()
			err := wsutil.WriteClientMessage(conn, ws.OpPing, nil)
			c.writeMx.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *Connection) writeText(message string) error {
	c.mx.Lock()
	conn := c.conn
	c.mx.Unlock()
	if conn == nil {
		return errors.New("not connected")
	}

	c.writeMx.Lock()
	defer c.writeMx.Unlock()

	return errors.Wrap(wsutil.WriteClientText(conn, []byte(message)), "failed to write text frame")
}

func (c *Connection) flushPending() {
	c.mx.Lock()
	pending := c.pending
	c.pending = nil
	c.mx.Unlock()

	for _, message := range pending {
		if err := c.writeText(message); err != nil {
			log.Printf("WARN: failed to flush pending message to %v: %v", c.url, err)
		}
	}
}

// stopRequested consumes the one-shot reconnect suppression set by
// Disconnect and parks the state machine when it fires.
func (c *Connection) stopRequested(ctx context.Context) bool {
	c.mx.Lock()
	stop := c.suppress || ctx.Err() != nil
	c.suppress = false
	c.mx.Unlock()

	if stop {
		c.state.Store(int32(StateDisconnected))
		c.setState(StateDisconnected)
	}

	return stop
}

func (c *Connection) setState(state State) {
	if c.onState != nil {
		c.onState(c.url, state)
	}
}
