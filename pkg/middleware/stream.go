package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wentam/simbroker/pkg/bus"
	"github.com/wentam/simbroker/pkg/common"
	"github.com/wentam/simbroker/pkg/utility/circular"
)

const (
	streamWriteTimeout = 5 * time.Second
	streamClientBuffer = 256
)

type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

// Stream broadcasts events to websocket clients as {"event": ..., "data": ...} text frames.
// A client that does not keep up loses messages instead of slowing down the replay.
type Stream struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*streamClient]struct{}
	backlog *circular.Buffer[[]byte]
	closed  bool
}

type StreamOption func(*Stream)

// WithBacklog keeps the last n messages and sends them to every client on connect.
func WithBacklog(n int) StreamOption {
	return func(s *Stream) {
		if n > 0 {
			s.backlog = circular.NewBuffer[[]byte](min(n, streamClientBuffer))
		}
	}
}

func NewStream(logger *zap.Logger, options ...StreamOption) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Stream{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*streamClient]struct{}),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &streamClient{
		conn: conn,
		send: make(chan []byte, streamClientBuffer),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	if s.backlog != nil {
		for _, msg := range s.backlog.Items() {
			c.send <- msg
		}
	}
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	s.logger.Debug("stream client connected", zap.String("remote", conn.RemoteAddr().String()))

	go s.write(c)
	go s.read(c)
}

func (s *Stream) write(c *streamClient) {
	defer s.drop(c)
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.logger.Debug("stream write failed", zap.Error(err))
				return
			}
		case <-c.done:
			return
		}
	}
}

// read discards incoming frames; it only exists to notice the client going away.
func (s *Stream) read(c *streamClient) {
	defer s.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Stream) drop(c *streamClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	close(c.done)
	_ = c.conn.Close()
}

// Clients returns the number of connected clients.
func (s *Stream) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close disconnects every client and refuses new ones.
func (s *Stream) Close() error {
	s.mu.Lock()
	s.closed = true
	clients := make([]*streamClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.drop(c)
	}
	return nil
}

func (s *Stream) broadcast(id bus.EventId, data any) {
	s.mu.Lock()
	idle := len(s.clients) == 0 && s.backlog == nil
	s.mu.Unlock()
	if idle {
		return
	}

	msg, err := json.Marshal(envelope{Event: id.String(), Data: data})
	if err != nil {
		s.logger.Warn("unable to encode event", zap.Stringer("event", id), zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backlog != nil {
		s.backlog.Push(msg)
	}
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			s.logger.Debug("stream client too slow, dropping event", zap.Stringer("event", id))
		}
	}
}

func publish[T any](s *Stream, id bus.EventId, handler func(context.Context, T)) func(context.Context, T) {
	return func(ctx context.Context, ev T) {
		s.broadcast(id, ev)
		handler(ctx, ev)
	}
}

func (s *Stream) WithEquity(handler bus.EquityEventHandler) bus.EquityEventHandler {
	return publish[common.Equity](s, bus.EquityEvent, handler)
}

func (s *Stream) WithBalance(handler bus.BalanceEventHandler) bus.BalanceEventHandler {
	return publish[common.Balance](s, bus.BalanceEvent, handler)
}

func (s *Stream) WithOrderAccepted(handler bus.OrderAcceptanceEventHandler) bus.OrderAcceptanceEventHandler {
	return publish[common.OrderAccepted](s, bus.OrderAcceptanceEvent, handler)
}

func (s *Stream) WithOrderRejected(handler bus.OrderRejectionEventHandler) bus.OrderRejectionEventHandler {
	return publish[common.OrderRejected](s, bus.OrderRejectionEvent, handler)
}

func (s *Stream) WithOrderFilled(handler bus.OrderFilledEventHandler) bus.OrderFilledEventHandler {
	return publish[common.OrderFilled](s, bus.OrderFilledEvent, handler)
}

func (s *Stream) WithOrderCancelled(handler bus.OrderCancelEventHandler) bus.OrderCancelEventHandler {
	return publish[common.OrderCancelled](s, bus.OrderCancelEvent, handler)
}

func (s *Stream) WithOrderExpired(handler bus.OrderExpiredEventHandler) bus.OrderExpiredEventHandler {
	return publish[common.OrderExpired](s, bus.OrderExpiredEvent, handler)
}

func (s *Stream) WithMarginCall(handler bus.MarginCallEventHandler) bus.MarginCallEventHandler {
	return publish[common.MarginCall](s, bus.MarginCallEvent, handler)
}

func (s *Stream) WithInterestCharged(handler bus.InterestChargedEventHandler) bus.InterestChargedEventHandler {
	return publish[common.InterestCharged](s, bus.InterestChargedEvent, handler)
}

func (s *Stream) WithPatternDayTrader(handler bus.PatternDayTraderEventHandler) bus.PatternDayTraderEventHandler {
	return publish[common.PatternDayTrader](s, bus.PatternDayTraderEvent, handler)
}
