// Package websocket is the websocket session transport. The gateway dials the
// broker once and exchanges text frames on the resulting connection.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/kvasnica/wspydrone/internal/domain"
	apperrors "github.com/kvasnica/wspydrone/internal/errors"
	"github.com/kvasnica/wspydrone/internal/platform/retry"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	handshakeTimeout  = 10 * time.Second
	defaultBufferSize = 16
)

type Options struct {
	OutboundBuffer int
	Clock          clockwork.Clock
	Logger         *slog.Logger
	Header         http.Header
}

func (o Options) withDefaults() Options {
	if o.OutboundBuffer < 1 {
		o.OutboundBuffer = defaultBufferSize
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// HandshakeError reports a broker that answered the upgrade request with a
// non-101 status.
type HandshakeError struct {
	StatusCode int
	Err        error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("websocket handshake failed with status %d: %v", e.StatusCode, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// Dial connects to url, retrying transient failures according to policy.
// Client errors (4xx other than 429) are not retried.
func Dial(ctx context.Context, url string, policy retry.Policy, opts Options) (*Conn, error) {
	opts = opts.withDefaults()
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}

	if policy.OnRetry == nil {
		policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
			opts.Logger.Warn("Broker dial failed, retrying", "url", url, "attempt", attempt, "backoff", backoff, "error", err)
		}
	}

	connection, err := retry.Do(ctx, policy, classifyDialError, func(ctx context.Context) (*websocket.Conn, error) {
		c, resp, err := dialer.DialContext(ctx, url, opts.Header)
		if err != nil {
			if resp != nil {
				if resp.Body != nil {
					_ = resp.Body.Close()
				}
				return nil, &HandshakeError{StatusCode: resp.StatusCode, Err: err}
			}
			return nil, err
		}
		return c, nil
	})
	if err != nil {
		return nil, apperrors.TransportError("dial broker", err).WithContext("url", url)
	}

	opts.Logger.Info("Connected to broker", "url", url)
	return newConn(connection, opts), nil
}

func classifyDialError(err error) retry.Action {
	var hs *HandshakeError
	if errors.As(err, &hs) && hs.StatusCode >= 400 && hs.StatusCode < 500 && hs.StatusCode != http.StatusTooManyRequests {
		return retry.Stop
	}
	return retry.Retry
}

// Conn is an open session. Outbound payloads go through a bounded queue
// drained by a single writer goroutine.
type Conn struct {
	connection  *websocket.Conn
	clock       clockwork.Clock
	logger      *slog.Logger
	sendChannel chan []byte
	doneChannel chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func newConn(connection *websocket.Conn, opts Options) *Conn {
	c := &Conn{
		connection:  connection,
		clock:       opts.Clock,
		logger:      opts.Logger,
		sendChannel: make(chan []byte, opts.OutboundBuffer),
		doneChannel: make(chan struct{}),
	}
	c.configurePongHandler()
	c.wg.Add(1)
	go c.run()
	return c
}

// ReadMessage returns the next data frame. A close frame from the peer or a
// local Close is reported as domain.ErrSessionClosed.
func (c *Conn) ReadMessage(_ context.Context) ([]byte, error) {
	_, data, err := c.connection.ReadMessage()
	if err == nil {
		c.updateReadDeadline()
		return data, nil
	}
	if c.stopped() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil, domain.ErrSessionClosed
	}
	return nil, apperrors.TransportError("websocket read failed", err)
}

func (c *Conn) TrySend(payload []byte) error {
	if c.stopped() {
		return domain.ErrSessionClosed
	}
	select {
	case c.sendChannel <- payload:
		return nil
	default:
		return domain.ErrOutboundFull
	}
}

// Close sends a normal close frame and releases the connection. It is safe
// to call more than once.
func (c *Conn) Close() error {
	c.stopOnce.Do(func() {
		close(c.doneChannel)

		// The writer must be gone before the close frame is written.
		c.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "gateway closing")
		c.updateWriteDeadline()
		_ = c.connection.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = c.connection.Close()
	})
	return nil
}

func (c *Conn) run() {
	ticker := c.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.wg.Done()

	for {
		select {
		case msg := <-c.sendChannel:
			c.updateWriteDeadline()
			if err := c.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.abort("write failed", err)
				return
			}
		case <-ticker.Chan():
			c.updateWriteDeadline()
			if err := c.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.abort("ping failed", err)
				return
			}
		case <-c.doneChannel:
			return
		}
	}
}

// abort tears down the socket so the blocked reader surfaces the failure.
func (c *Conn) abort(reason string, err error) {
	c.logger.Warn("Websocket writer stopped", "reason", reason, "error", err)
	_ = c.connection.Close()
}

func (c *Conn) stopped() bool {
	select {
	case <-c.doneChannel:
		return true
	default:
		return false
	}
}

func (c *Conn) configurePongHandler() {
	c.updateReadDeadline()
	c.connection.SetPongHandler(func(string) error {
		c.updateReadDeadline()
		return nil
	})
}

func (c *Conn) updateWriteDeadline() {
	_ = c.connection.SetWriteDeadline(c.clock.Now().Add(writeDeadline))
}

func (c *Conn) updateReadDeadline() {
	_ = c.connection.SetReadDeadline(c.clock.Now().Add(pongDeadline))
}
