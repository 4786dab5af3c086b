package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/tractrelay/domain/entities"
	"github.com/satriahrh/tractrelay/domain/repositories"
)

// DefaultReconnectDelay is the pause between dial attempts.
const DefaultReconnectDelay = 2 * time.Second

// ErrNotConnected is returned by Send while the peer has no connection.
var ErrNotConnected = errors.New("peer not connected")

// MessageHandler consumes inbound text messages from the controller.
type MessageHandler interface {
	HandleMessage(ctx context.Context, raw string) (<-chan error, error)
}

// PeerConfig configures the relay's connection to the controller.
type PeerConfig struct {
	URL            string
	Header         http.Header
	ReconnectDelay time.Duration
}

// Peer is the relay's persistent connection to the controller. Inbound text
// messages are passed to a MessageHandler; outbound messages are written by
// a single writer goroutine so batches never interleave.
type Peer struct {
	cfg    PeerConfig
	dialer *websocket.Dialer
	logger *zap.Logger

	mu   sync.Mutex
	conn *peerConn
}

var _ repositories.Transport = (*Peer)(nil)

// peerConn is the state of one live connection.
type peerConn struct {
	outbox chan batch
	closed chan struct{}
}

// batch is a group of writes that must go out back to back.
type batch struct {
	msgs []WriteData
	done chan error
}

// NewPeer creates a peer; Run connects it.
func NewPeer(cfg PeerConfig, logger *zap.Logger) *Peer {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	return &Peer{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		logger: logger.With(zap.String("component", "peer"), zap.String("url", cfg.URL)),
	}
}

// Connected reports whether the peer currently has a connection.
func (p *Peer) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn != nil
}

// Run keeps the peer connected until ctx is done, redialing after the
// connection drops.
func (p *Peer) Run(ctx context.Context, handler MessageHandler) error {
	for {
		conn, _, err := p.dialer.DialContext(ctx, p.cfg.URL, p.cfg.Header)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Warn("Failed to connect, retrying",
				zap.Duration("delay", p.cfg.ReconnectDelay),
				zap.Error(err))
		} else {
			p.logger.Info("Connected to controller")
			p.serve(ctx, conn, handler)
			p.logger.Info("Disconnected from controller")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(p.cfg.ReconnectDelay):
		}
	}
}

// Send implements repositories.Transport. It returns once every message has
// been written to the connection.
func (p *Peer) Send(ctx context.Context, msgs ...entities.WireMessage) error {
	p.mu.Lock()
	pc := p.conn
	p.mu.Unlock()
	if pc == nil {
		return ErrNotConnected
	}

	b := batch{
		msgs: make([]WriteData, len(msgs)),
		done: make(chan error, 1),
	}
	for i, m := range msgs {
		b.msgs[i] = toWriteData(m)
	}

	select {
	case pc.outbox <- b:
	case <-pc.closed:
		return ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-b.done:
		return err
	case <-pc.closed:
		return ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Peer) serve(ctx context.Context, conn *websocket.Conn, handler MessageHandler) {
	pc := &peerConn{
		outbox: make(chan batch, 16),
		closed: make(chan struct{}),
	}

	p.mu.Lock()
	p.conn = pc
	p.mu.Unlock()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		p.writePump(conn, pc)
	}()

	// Unblock the reader on shutdown.
	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		conn.Close()
	})
	defer stop()

	p.readPump(ctx, conn, handler)

	p.mu.Lock()
	p.conn = nil
	p.mu.Unlock()
	close(pc.closed)
	<-writerDone
	conn.Close()
}

// readPump hands inbound text messages to the handler. Binary messages from
// the controller carry no meaning for the relay and are dropped.
func (p *Peer) readPump(ctx context.Context, conn *websocket.Conn, handler MessageHandler) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				p.logger.Error("WebSocket error", zap.Error(err))
			}
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		// Rejections are logged by the handler; nothing goes back to the
		// controller.
		handler.HandleMessage(ctx, string(message))
	}
}

// writePump is the connection's only writer.
func (p *Peer) writePump(conn *websocket.Conn, pc *peerConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-pc.closed:
			return

		case b := <-pc.outbox:
			var err error
			for _, m := range b.msgs {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err = conn.WriteMessage(m.Type, m.Payload); err != nil {
					break
				}
			}
			b.done <- err
			if err != nil {
				p.logger.Error("Failed to write message", zap.Error(err))
				conn.Close()
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}
