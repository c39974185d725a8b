package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/evacsim/pkg/streaming"
	ws "github.com/gorilla/websocket"
)

const (
	sendChSize       = 10_000
	ackChSize        = 16
	maxReconnect     = 10
	maxBackoff       = 30 * time.Second
	writeWait        = 10 * time.Second
	ackTimeout       = 10 * time.Second
	handshakeTimeout = 5 * time.Second
)

// connection owns one live socket at a time. A single supervisor goroutine writes, and replaces
// the socket when the reader reports it dead.
type connection struct {
	url    string
	secret string
	dialer *ws.Dialer
	logger *slog.Logger

	out  chan []byte
	acks chan streaming.AckMessage

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu     sync.Mutex
	replay []byte // start_run, resent first on every new socket

	dropped atomic.Uint64
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		out:    make(chan []byte, sendChSize),
		acks:   make(chan streaming.AckMessage, ackChSize),
		done:   make(chan struct{}),
		logger: logger,
		dialer: &ws.Dialer{
			Proxy:             ws.DefaultDialer.Proxy,
			HandshakeTimeout:  handshakeTimeout,
			EnableCompression: true,
		},
	}
}

// dial fails fast on the first attempt; later drops are handled by the supervisor.
func (c *connection) dial(rawURL, secret string) error {
	c.url, c.secret = rawURL, secret

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}
	c.wg.Add(1)
	go c.supervise(conn)
	return nil
}

func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", c.secret)
	u.RawQuery = q.Encode()

	conn, _, err := c.dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

func (c *connection) setReplay(data []byte) {
	c.mu.Lock()
	c.replay = data
	c.mu.Unlock()
}

func (c *connection) replayMsg() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.replay
}

func (c *connection) supervise(conn *ws.Conn) {
	defer c.wg.Done()

	for conn != nil {
		readErr := make(chan error, 1)
		go func(conn *ws.Conn) { readErr <- c.readAcks(conn) }(conn)

		err := c.pump(conn, readErr)
		_ = conn.Close()
		if err == nil {
			return
		}
		c.logger.Warn("WebSocket connection lost", "error", err)
		conn = c.redial()
	}
}

// pump writes queued messages until the socket fails or the connection is closed. On close it
// flushes what is already queued and says goodbye; the return value is then nil.
func (c *connection) pump(conn *ws.Conn, readErr <-chan error) error {
	for {
		select {
		case data := <-c.out:
			if err := write(conn, data); err != nil {
				return err
			}
		case err := <-readErr:
			return err
		case <-c.done:
			for {
				select {
				case data := <-c.out:
					if err := write(conn, data); err != nil {
						return nil
					}
				default:
					_ = conn.WriteControl(ws.CloseMessage,
						ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
						time.Now().Add(writeWait))
					return nil
				}
			}
		}
	}
}

func write(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// readAcks forwards server acks until the socket fails.
func (c *connection) readAcks(conn *ws.Conn) error {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != "ack" {
			c.logger.Debug("Non-ack message received", "raw", string(message))
			continue
		}
		select {
		case c.acks <- ack:
		default:
			c.logger.Debug("Ack channel full, dropping", "for", ack.For)
		}
	}
}

// redial retries with exponential backoff. It returns nil on shutdown or when every attempt
// failed; queued messages then wait until the buffer overflows.
func (c *connection) redial() *ws.Conn {
	backoff := time.Second
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		c.logger.Info("Reconnecting to WebSocket", "attempt", attempt, "backoff", backoff)
		select {
		case <-c.done:
			return nil
		case <-time.After(backoff):
		}

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		if msg := c.replayMsg(); msg != nil {
			if err := write(conn, msg); err != nil {
				c.logger.Warn("Failed to replay start_run after reconnect", "error", err)
				_ = conn.Close()
				continue
			}
		}
		c.logger.Info("WebSocket reconnected", "attempt", attempt)
		return conn
	}

	c.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", maxReconnect)
	return nil
}

// send never blocks; a full buffer drops the message.
func (c *connection) send(data []byte) {
	select {
	case c.out <- data:
	default:
		c.dropped.Add(1)
		c.logger.Warn("WebSocket send channel full, dropping message")
	}
}

// sendAndWait sends data and blocks until the server acks ackFor or the timeout expires.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	c.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case ack := <-c.acks:
			if ack.For == ackFor {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.done:
			return fmt.Errorf("connection closed while waiting for ack of %q", ackFor)
		}
	}
}

// close stops the supervisor after it has flushed the queue. Safe to call more than once.
func (c *connection) close() error {
	c.closeOnce.Do(func() { close(c.done) })
	c.wg.Wait()
	return nil
}
