// Package chat implements the client side of the conversation transport:
// the WebSocket session state machine, inbound frame dispatch, and the REST
// fallback send path.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Hemant07J07/mhchat/internal/token"
)

// ConnState is the connection state of a Session. The session is the only
// mutator.
type ConnState string

// Session connection states.
const (
	StateDisconnected  ConnState = "disconnected"
	StateConnecting    ConnState = "connecting"
	StateOpen          ConnState = "open"
	StateReconnectWait ConnState = "reconnect_wait"
)

// Conn is the minimal connection surface the session needs. Production
// sessions use the WebSocket dialer in ws.go; tests inject their own.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// Dialer opens a connection to a transport URL.
type Dialer func(ctx context.Context, rawURL string) (Conn, error)

const (
	defaultReconnectDelay = 1500 * time.Millisecond
	defaultEventBuffer    = 64
	writeTimeout          = 5 * time.Second
)

// SessionConfig configures a Session.
type SessionConfig struct {
	// BaseURL is the transport base, e.g. "ws://localhost:8000". The session
	// appends /ws/chat/<conversation>/?token=<token>.
	BaseURL string
	// Tokens supplies the bearer credential embedded in the transport URL.
	// Nil means an empty token.
	Tokens token.Source
	// Dial opens connections; defaults to the coder/websocket dialer.
	Dial Dialer
	// ReconnectDelay is the fixed wait before redialing after a drop.
	ReconnectDelay time.Duration
	// PingOnOpen sends a liveness probe frame right after the connection
	// opens.
	PingOnOpen bool
	Logger     *slog.Logger
}

// Session owns at most one live connection to one conversation. It recovers
// from unexpected closure by redialing after a fixed delay, and its Send
// reports failure synchronously so callers can fall back to the REST path.
//
// There are no package-level connection or timer variables: each Session is
// self-contained, so independent sessions can coexist and tests can inject a
// fake network.
type Session struct {
	cfg        SessionConfig
	logger     *slog.Logger
	dispatcher *Dispatcher
	events     chan Event
	done       chan struct{}

	mu     sync.Mutex
	state  ConnState
	convID string
	conn   Conn
	gen    int
	timer  *time.Timer
	closed bool
}

// NewSession creates a disconnected session.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Dial == nil {
		cfg.Dial = DialWebSocket
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	return &Session{
		cfg:        cfg,
		logger:     cfg.Logger,
		dispatcher: NewDispatcher(cfg.Logger),
		events:     make(chan Event, defaultEventBuffer),
		done:       make(chan struct{}),
		state:      StateDisconnected,
	}
}

// Events returns the session's event stream. No events are delivered after
// Close; consumers should select on Done alongside it.
func (s *Session) Events() <-chan Event { return s.events }

// Done is closed when the session is closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// State returns the current connection state.
func (s *Session) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ConversationID returns the conversation the session is bound to, or "".
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.convID
}

// Connect binds the session to a conversation and opens a connection. It is
// idempotent while already open for the same conversation. Binding to a new
// conversation forcibly closes the current connection first. The context
// governs the connection's whole lifetime, reconnects included.
func (s *Session) Connect(ctx context.Context, conversationID string) {
	if conversationID == "" {
		s.logger.Warn("connect requires a conversation id")
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.state == StateOpen && s.convID == conversationID {
		s.mu.Unlock()
		s.logger.Info("session already open", "conversation_id", conversationID)
		return
	}
	s.teardownLocked()
	s.convID = conversationID
	s.gen++
	gen := s.gen
	s.state = StateConnecting
	s.mu.Unlock()

	go s.run(ctx, gen, conversationID)
}

// Send serializes a send_message frame onto the open connection. It reports
// false when the session is not open for conversationID or the write fails;
// the caller is then expected to fall back to the REST path.
func (s *Session) Send(conversationID, text string) bool {
	s.mu.Lock()
	conn := s.conn
	ready := s.state == StateOpen && s.convID == conversationID && conn != nil
	s.mu.Unlock()
	if !ready {
		return false
	}

	if err := writeFrame(conn, outboundFrame{Action: actionSendMessage, Text: text}); err != nil {
		s.logger.Warn("websocket send failed", "conversation_id", conversationID, "error", err)
		return false
	}
	return true
}

// Close shuts the session down permanently: the connection is closed and no
// reconnect is scheduled.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.gen++
	s.teardownLocked()
	s.state = StateDisconnected
	s.mu.Unlock()

	close(s.done)
}

// teardownLocked closes any existing connection (swallowing close errors) and
// cancels a pending reconnect. Callers hold s.mu.
func (s *Session) teardownLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.Debug("close previous connection", "error", err)
		}
		s.conn = nil
	}
}

func (s *Session) run(ctx context.Context, gen int, conversationID string) {
	rawURL := s.transportURL(conversationID)
	conn, err := s.cfg.Dial(ctx, rawURL)
	if err != nil {
		s.logger.Warn("websocket dial failed", "conversation_id", conversationID, "error", err)
		s.scheduleReconnect(ctx, gen, conversationID)
		return
	}

	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.conn = conn
	s.state = StateOpen
	s.mu.Unlock()

	s.logger.Info("websocket open", "conversation_id", conversationID)
	s.emit(ctx, Event{Kind: EventOpened, ConversationID: conversationID})

	if s.cfg.PingOnOpen {
		if err := writeFrame(conn, outboundFrame{Action: actionPing}); err != nil {
			s.logger.Debug("liveness probe failed", "error", err)
		}
	}

	s.readLoop(ctx, gen, conn, conversationID)
}

func (s *Session) readLoop(ctx context.Context, gen int, conn Conn, conversationID string) {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			s.handleDisconnect(ctx, gen, conversationID, err)
			return
		}
		if ev, ok := s.dispatcher.Dispatch(conversationID, data); ok {
			s.emit(ctx, ev)
		}
	}
}

// handleDisconnect treats every abnormal closure and transport error the same
// way: the session moves to reconnect-wait and redials after the fixed delay.
// Nothing is surfaced to the caller beyond the Closed event.
func (s *Session) handleDisconnect(ctx context.Context, gen int, conversationID string, cause error) {
	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.mu.Unlock()

	s.logger.Info("websocket closed", "conversation_id", conversationID, "cause", cause)
	s.emit(ctx, Event{Kind: EventClosed, ConversationID: conversationID, Detail: cause.Error()})
	s.scheduleReconnect(ctx, gen, conversationID)
}

func (s *Session) scheduleReconnect(ctx context.Context, gen int, conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.closed || ctx.Err() != nil {
		return
	}
	s.state = StateReconnectWait
	s.timer = time.AfterFunc(s.cfg.ReconnectDelay, func() {
		s.mu.Lock()
		if gen != s.gen || s.closed {
			s.mu.Unlock()
			return
		}
		s.state = StateConnecting
		s.timer = nil
		s.mu.Unlock()
		s.run(ctx, gen, conversationID)
	})
}

func (s *Session) emit(ctx context.Context, ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	case <-ctx.Done():
	}
}

func (s *Session) transportURL(conversationID string) string {
	tok := ""
	if s.cfg.Tokens != nil {
		tok = s.cfg.Tokens.AccessToken()
	}
	base := strings.TrimRight(s.cfg.BaseURL, "/")
	return fmt.Sprintf("%s/ws/chat/%s/?token=%s", base, conversationID, url.QueryEscape(tok))
}

func writeFrame(conn Conn, frame outboundFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return conn.Write(ctx, data)
}
