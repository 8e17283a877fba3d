/*
Package chat owns the lifecycle of one real-time chat connection per open room.

This file defines the Conn struct, the client side of the streaming transport.
It dials the endpoint with the bearer token as a connect header, runs the read
and write pumps with heartbeat deadlines, and redials after a fixed delay when
an established connection drops unexpectedly.
*/
package chat

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"ttlmoa/internal/pkg/errs"
	"ttlmoa/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed to wait for a Pong message from the broker.
	pongWait = 60 * time.Second

	// frequency at which the client sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of an inbound frame.
	maxMessageSize = 8192

	// capacity of the outbound send queue.
	sendQueueSize = 256

	// handshakeTimeout bounds the streaming handshake.
	handshakeTimeout = 10 * time.Second

	// ReconnectDelay is the fixed pause before redialing after an unexpected
	// disconnect. Constant, not exponential.
	ReconnectDelay = 5 * time.Second

	// publishRate and publishBurst bound how fast outbound messages may be published.
	publishRate  rate.Limit = 5
	publishBurst            = 10
)

// redialDelay is ReconnectDelay as a variable, so tests can shorten it.
var redialDelay = ReconnectDelay

// Conn is the handle to one live streaming connection.
// At most one Conn is active process-wide; see the session registry.
type Conn struct {
	url   string
	token string

	// a buffered channel queueing frames waiting to be written.
	send chan []byte

	// deliver is invoked from the read pump for every inbound frame.
	deliver func(Frame)

	// limiter guards outbound publishes against flooding the broker.
	limiter *rate.Limiter

	// closed is closed exactly once when the connection is deactivated.
	closed    chan struct{}
	closeOnce sync.Once

	// mu guards ws and subscribeDest across redials.
	mu            sync.Mutex
	ws            *websocket.Conn
	subscribeDest string

	logger zerolog.Logger
}

// Dial performs the streaming handshake, authenticating with the bearer
// token as a connect header, and starts the connection's pumps. A handshake
// failure is returned to the caller and no Conn is created.
func Dial(wsURL, token string, deliver func(Frame)) (*Conn, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	dialer := &websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	ws, _, err := dialer.Dial(wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("streaming handshake failed: %w", err)
	}

	c := &Conn{
		url:     wsURL,
		token:   token,
		send:    make(chan []byte, sendQueueSize),
		deliver: deliver,
		limiter: rate.NewLimiter(publishRate, publishBurst),
		closed:  make(chan struct{}),
		ws:      ws,
		logger:  logx.Logger().With().Str("component", "ChatConn").Str("ws_url", wsURL).Logger(),
	}

	go c.run(ws)

	return c, nil
}

// Subscribe sends a subscription frame for the given destination and records
// it so the subscription is re-established after a redial.
func (c *Conn) Subscribe(destination string) error {
	c.mu.Lock()
	c.subscribeDest = destination
	c.mu.Unlock()

	return c.enqueue(Frame{
		ID:          uuid.NewString(),
		Type:        FrameSubscribe,
		Destination: destination,
	})
}

// Publish queues an outbound payload for the given destination.
// It is fire-and-forget: a nil return means the frame was queued, not that the
// broker received it.
func (c *Conn) Publish(destination string, payload any) *errs.CustomError {
	select {
	case <-c.closed:
		return errs.NewError(errs.ErrNotConnected)
	default:
	}

	if !c.limiter.Allow() {
		return errs.NewError(errs.ErrPublishRateLimited)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to marshal publish payload")
		return errs.NewError(errs.ErrPublishFailed)
	}

	if err := c.enqueue(Frame{
		ID:          uuid.NewString(),
		Type:        FrameSend,
		Destination: destination,
		Payload:     body,
	}); err != nil {
		return errs.NewError(errs.ErrPublishFailed)
	}

	return nil
}

// IsActive reports whether the connection handle has not been deactivated.
func (c *Conn) IsActive() bool {
	select {
	case <-c.closed:
		return false
	default:
		return true
	}
}

// Deactivate releases the connection. It is idempotent and is the one call
// every exit path must make.
func (c *Conn) Deactivate() {
	c.closeOnce.Do(func() {
		close(c.closed)

		c.mu.Lock()
		if c.ws != nil {
			if err := c.ws.Close(); err != nil {
				c.logger.Warn().Err(err).Msg("Connection close error during deactivate")
			}
		}
		c.mu.Unlock()

		c.logger.Info().Msg("Connection deactivated")
	})
}

// enqueue marshals the frame and places it on the send queue.
func (c *Conn) enqueue(frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	select {
	case c.send <- data:
		return nil
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Send queue full, dropping frame")
		return fmt.Errorf("send queue full")
	}
}

// run drives the connection until it is deactivated. After an unexpected
// drop it waits the fixed ReconnectDelay, redials with the same credentials,
// and re-establishes the recorded subscription.
func (c *Conn) run(ws *websocket.Conn) {
	for {
		err := c.pump(ws)
		ws.Close()

		select {
		case <-c.closed:
			return
		default:
		}

		c.logger.Warn().Err(err).Dur("delay", redialDelay).Msg("Connection dropped unexpectedly. Redialing after fixed delay.")

		ws = c.redial()
		if ws == nil {
			return
		}

		c.mu.Lock()
		c.ws = ws
		dest := c.subscribeDest
		c.mu.Unlock()

		if dest != "" {
			if err := c.enqueue(Frame{ID: uuid.NewString(), Type: FrameSubscribe, Destination: dest}); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to queue re-subscription frame")
			}
		}
	}
}

// redial attempts the handshake every ReconnectDelay until it succeeds or the
// connection is deactivated, in which case it returns nil.
func (c *Conn) redial() *websocket.Conn {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	dialer := &websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	for {
		select {
		case <-c.closed:
			return nil
		case <-time.After(redialDelay):
		}

		ws, _, err := dialer.Dial(c.url, header)
		if err != nil {
			c.logger.Error().Err(err).Msg("Redial failed. Waiting for next attempt.")
			continue
		}

		// a Deactivate may have raced the dial; the fresh socket must not outlive it
		select {
		case <-c.closed:
			ws.Close()
			return nil
		default:
		}

		c.logger.Info().Msg("Connection re-established")
		return ws
	}
}

// pump reads inbound frames until the connection errors, running the write
// loop for the same socket alongside. It returns the read error.
func (c *Conn) pump(ws *websocket.Conn) error {
	done := make(chan struct{})
	go c.writeLoop(ws, done)
	defer close(done)

	ws.SetReadLimit(maxMessageSize)

	if err := ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return err
	}

	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.Warn().Err(err).Bytes("frame_bytes", data).Msg("Broker sent invalid JSON frame")
			continue
		}

		c.deliver(frame)
	}
}

// writeLoop writes queued frames and heartbeat pings to the socket until the
// socket's read pump finishes or the connection is deactivated.
func (c *Conn) writeLoop(ws *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message := <-c.send:
			if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline")
				ws.Close()
				return
			}

			if err := ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error().Err(err).Msg("Error writing frame")
				ws.Close()
				return
			}

		case <-ticker.C:
			if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
				ws.Close()
				return
			}

			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Error().Err(err).Msg("Error writing ping")
				ws.Close()
				return
			}

		case <-c.closed:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")); err != nil {
				c.logger.Warn().Err(err).Msg("Error writing close message")
			}
			return

		case <-done:
			return
		}
	}
}
