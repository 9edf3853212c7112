package sink

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/ttxfromts/ttxcore/internal/teletext"
)

// connBufferSize bounds each connection's outbound queue, mirroring the
// teacher's media.VideoBufferSize-style per-viewer buffering in
// internal/distribution (a slow client drops frames rather than blocking
// the broadcaster).
const connBufferSize = 256

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WebSocketSink broadcasts RawPacket bytes to every connected client.
// Implements PacketSink. Each accepted connection gets its own outbound
// goroutine and buffered channel, the same decoupled producer/consumer
// shape as internal/distribution's per-viewer session fan-out
// (MoQSession.SendVideo's non-blocking select/default send).
type WebSocketSink struct {
	log *slog.Logger
	g   *errgroup.Group
	ctx context.Context

	mu    sync.RWMutex
	conns map[*wsConn]struct{}

	sent    int64
	dropped int64
}

type wsConn struct {
	conn *websocket.Conn
	out  chan []byte
}

// NewWebSocketSink creates a sink whose per-connection broadcast goroutines
// are supervised by g, joined back at shutdown via g.Wait() (spec.md §5's
// suspension-point isolation for WebSocket sinks).
func NewWebSocketSink(ctx context.Context, g *errgroup.Group, log *slog.Logger) *WebSocketSink {
	if log == nil {
		log = slog.Default()
	}
	return &WebSocketSink{log: log, g: g, ctx: ctx, conns: make(map[*wsConn]struct{})}
}

// Handler upgrades incoming HTTP requests to WebSocket connections and
// registers them for broadcast until the connection closes or ctx is done.
func (s *WebSocketSink) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Warn("websocket upgrade failed", "error", err)
			return
		}
		wc := &wsConn{conn: conn, out: make(chan []byte, connBufferSize)}

		s.mu.Lock()
		s.conns[wc] = struct{}{}
		s.mu.Unlock()

		s.g.Go(func() error {
			defer func() {
				s.mu.Lock()
				delete(s.conns, wc)
				s.mu.Unlock()
				conn.Close()
			}()
			for {
				select {
				case <-s.ctx.Done():
					return nil
				case payload, ok := <-wc.out:
					if !ok {
						return nil
					}
					if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
						return nil
					}
				}
			}
		})
	}
}

// WritePacket enqueues the raw packet bytes to every connected client's
// outbound channel without blocking; a full channel drops the packet for
// that client rather than stalling the decode loop.
func (s *WebSocketSink) WritePacket(p teletext.RawPacket) error {
	payload := append([]byte(nil), p[:]...)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for wc := range s.conns {
		select {
		case wc.out <- payload:
			s.sent++
		default:
			s.dropped++
		}
	}
	return nil
}

// Close closes every connected client's outbound channel, letting their
// broadcast goroutines drain and exit; callers should g.Wait() afterward.
func (s *WebSocketSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for wc := range s.conns {
		close(wc.out)
	}
	return nil
}
