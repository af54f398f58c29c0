package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yegors/webchat/internal/session"
	"github.com/yegors/webchat/pkg/logger"
)

// Handler receives protocol events from the transport. The orchestrator
// implements this.
type Handler interface {
	// HandleOpen fires once the socket is connected; the implementation is
	// expected to send the login request from here.
	HandleOpen()
	// HandleNotification processes one notification envelope. A returned
	// error is treated as a fatal protocol violation.
	HandleNotification(env *Envelope) error
	// HandleError processes an error envelope
	HandleError(body *ErrorBody)
	// HandleFatal reports an unrecoverable protocol violation. The
	// transport has already blocked retries and closed the socket.
	HandleFatal(err error)
	// HandleGracefulClose fires on an expected closure with no reconnect
	HandleGracefulClose()
	// HandleSuperseded fires when another tab has taken over the session
	HandleSuperseded()
	// HandleReconnecting fires before each reconnect attempt
	HandleReconnecting(attempt int)
	// HandleReconnectFailed fires once the retry budget is exhausted
	HandleReconnectFailed()
}

// TransportConfig bundles the transport's tunables
type TransportConfig struct {
	PingInterval  time.Duration
	RetryInterval time.Duration
	MaxRetries    int
}

// Transport owns at most one live WebSocket at a time, classifies every
// closure, and runs the bounded reconnect policy. Protocol interpretation
// lives in the handler.
type Transport struct {
	state   *session.State
	timers  *session.Registry
	storage Storage
	handler Handler
	logger  *logger.Logger

	dialer *websocket.Dialer
	config TransportConfig

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	// gen identifies the current connection; handlers from a superseded
	// connection compare against it and bail
	gen     uint64
	opening bool
}

// NewTransport creates a transport bound to one session
func NewTransport(
	state *session.State,
	timers *session.Registry,
	storage Storage,
	config TransportConfig,
	logger *logger.Logger,
) *Transport {
	return &Transport{
		state:   state,
		timers:  timers,
		storage: storage,
		config:  config,
		logger:  logger.Named("transport"),
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// SetHandler wires the protocol handler. Must be called before Open.
func (t *Transport) SetHandler(h Handler) {
	t.handler = h
}

// Open dials the given URL. Returns ErrAlreadyOpen if a connection is
// already live or being established. The dial runs asynchronously; the
// handler's HandleOpen fires once the socket is up.
func (t *Transport) Open(ctx context.Context, url string) error {
	t.mu.Lock()
	if t.conn != nil || t.opening {
		t.mu.Unlock()
		return ErrAlreadyOpen
	}
	t.opening = true
	t.gen++
	gen := t.gen
	t.mu.Unlock()

	t.timers.Cancel(session.TimerReconnect)
	t.state.SetPhase(session.PhaseConnecting)
	t.state.SetSocketURL(url)

	t.logger.Info("Opening connection", logger.String("url", url))

	go t.dial(ctx, url, gen)
	return nil
}

func (t *Transport) dial(ctx context.Context, url string, gen uint64) {
	conn, _, err := t.dialer.DialContext(ctx, url, nil)

	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	t.opening = false
	if err != nil {
		t.mu.Unlock()
		t.logger.Warn("Dial failed", logger.Error(err))
		t.classifyClose(gen, websocket.CloseAbnormalClosure)
		return
	}
	t.conn = conn
	t.mu.Unlock()

	t.logger.Info("Connection established")

	// An explicit close before the dial completed no longer applies
	t.state.SetManualClose(false)

	t.timers.ScheduleRepeating(session.TimerHeartbeat, t.config.PingInterval, func() {
		t.Send(NewRequest(&PingBody{Method: MethodPing}))
	})

	if t.handler != nil {
		t.handler.HandleOpen()
	}

	t.readLoop(ctx, conn, gen)
}

// Send stamps the session auth token into the envelope and transmits it.
// Messages are silently dropped when no socket is live; callers that need
// delivery guarantees only send from HandleOpen onward.
func (t *Transport) Send(env *OutboundEnvelope) {
	_, authToken := t.state.Credentials()
	env.AuthToken = authToken

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		t.logger.Debug("Dropping message, no live connection")
		return
	}

	t.writeMu.Lock()
	err := conn.WriteJSON(env)
	t.writeMu.Unlock()
	if err != nil {
		// Expected on a closing socket; the read loop handles teardown
		t.logger.Debug("Send failed", logger.Error(err))
		return
	}

	if _, isPing := env.Body.(*PingBody); !isPing {
		t.markActivity()
	}
}

// readLoop pumps inbound messages in arrival order until the socket closes
func (t *Transport) readLoop(ctx context.Context, conn *websocket.Conn, gen uint64) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			code := websocket.CloseAbnormalClosure
			if closeErr, ok := err.(*websocket.CloseError); ok {
				code = closeErr.Code
			}
			t.mu.Lock()
			if gen == t.gen && t.conn == conn {
				t.conn = nil
			}
			t.mu.Unlock()
			conn.Close()
			t.timers.Cancel(session.TimerHeartbeat)
			t.classifyClose(gen, code)
			return
		}

		if !t.current(gen) {
			return
		}

		if err := t.dispatch(raw); err != nil {
			t.logger.Error("Protocol violation", logger.Error(err))
			t.state.BlockRetries()
			t.Close()
			if t.handler != nil {
				t.handler.HandleFatal(err)
			}
			return
		}
	}
}

// dispatch routes one raw frame by envelope type. Unknown types and
// malformed JSON are contract violations, returned up rather than dropped.
func (t *Transport) dispatch(raw []byte) error {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("malformed envelope: %w", err)
	}

	switch env.Type {
	case TypeNotification:
		t.markActivity()
		if t.handler != nil {
			if err := t.handler.HandleNotification(&env); err != nil {
				return err
			}
		}
	case TypeError:
		var body ErrorBody
		if err := json.Unmarshal(env.Body, &body); err != nil {
			return fmt.Errorf("malformed error body: %w", err)
		}
		t.logger.Warn("Server error",
			logger.Int("code", body.Code),
			logger.String("message", body.ErrorMessage))
		if t.handler != nil {
			t.handler.HandleError(&body)
		}
	case TypeAck:
		// Delivery confirmations carry no state
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessageType, env.Type)
	}
	return nil
}

// classifyClose decides what a closure means: graceful (expected, no
// reconnect), superseded (another tab took over), or transient (reconnect
// policy applies).
func (t *Transport) classifyClose(gen uint64, code int) {
	if !t.current(gen) {
		return
	}

	switch {
	case !t.state.PreviouslyConnected(),
		t.state.RetryBlocked(),
		code == websocket.CloseNormalClosure,
		code == websocket.CloseNoStatusReceived:
		t.logger.Info("Connection closed", logger.Int("code", code))
		if t.handler != nil {
			t.handler.HandleGracefulClose()
		}

	case (code == websocket.CloseGoingAway || code == websocket.CloseAbnormalClosure) &&
		t.storedActivityNewer():
		t.logger.Info("Session superseded by another tab", logger.Int("code", code))
		if t.handler != nil {
			t.handler.HandleSuperseded()
		}

	default:
		t.logger.Warn("Connection lost", logger.Int("code", code))
		t.scheduleReconnect()
	}
}

// storedActivityNewer reports whether the persisted last-activity stamp is
// newer than this session's own, meaning another tab is driving the session
func (t *Transport) storedActivityNewer() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	value, err := t.storage.Get(ctx, KeyLastActivity)
	if err != nil {
		return false
	}
	stored, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return false
	}
	return stored > t.state.LastActivityMs()
}

// scheduleReconnect arms a single-shot retry timer. Each firing spends one
// attempt from the budget; exhausting the budget is terminal and reported.
func (t *Transport) scheduleReconnect() {
	if t.state.RetryBlocked() {
		return
	}
	t.mu.Lock()
	live := t.conn != nil || t.opening
	t.mu.Unlock()
	if live {
		return
	}

	t.timers.Schedule(session.TimerReconnect, t.config.RetryInterval, func() {
		if t.state.RetryCount() >= t.config.MaxRetries {
			t.logger.Warn("Reconnect attempts exhausted",
				logger.Int("max_retries", t.config.MaxRetries))
			if t.handler != nil {
				t.handler.HandleReconnectFailed()
			}
			return
		}
		attempt := t.state.IncrementRetries()
		t.logger.Info("Reconnecting",
			logger.Int("attempt", attempt),
			logger.Int("max_retries", t.config.MaxRetries))
		if t.handler != nil {
			t.handler.HandleReconnecting(attempt)
		}
		if err := t.Open(context.Background(), t.state.SocketURL()); err != nil {
			t.logger.Warn("Reconnect open failed", logger.Error(err))
		}
	})
}

// ResetAttempts zeroes the retry budget and drops any pending reconnect.
// Called after a confirmed login response.
func (t *Transport) ResetAttempts() {
	t.state.ResetRetries()
	t.timers.Cancel(session.TimerReconnect)
}

// Close idempotently tears down the socket and the timers the transport
// owns. It does not classify; an explicit close is never reconnected.
func (t *Transport) Close() {
	t.timers.Cancel(session.TimerHeartbeat)
	t.timers.Cancel(session.TimerReconnect)

	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.opening = false
	t.gen++
	t.mu.Unlock()

	if conn == nil {
		return
	}

	t.writeMu.Lock()
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	t.writeMu.Unlock()
	conn.Close()
	t.logger.Info("Connection closed by client")
}

// Connected reports whether a socket is currently live
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// current reports whether gen identifies the transport's active connection
func (t *Transport) current(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return gen == t.gen
}

// markActivity stamps the session and the persisted copy with the current
// time, so other tabs can detect takeover
func (t *Transport) markActivity() {
	now := t.state.MarkActivity()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := t.storage.Set(ctx, KeyLastActivity, strconv.FormatInt(now, 10)); err != nil {
		t.logger.Warn("Failed to persist activity stamp", logger.Error(err))
	}
}
