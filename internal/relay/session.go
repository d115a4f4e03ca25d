package relay

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"livewire/backend/pkg/logger"

	"github.com/google/uuid"
)

// State is a session's lifecycle position
type State int32

// Session states. Closed is terminal.
const (
	StateConnecting State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrMalformedTarget is returned by Open for a connection target that does
// not encode a conversation id.
type ErrMalformedTarget struct{ Target string }

func (e *ErrMalformedTarget) Error() string {
	return "malformed conversation target " + strconv.Quote(e.Target)
}

// PersistFunc stores an admitted payload as durable history before it is
// published. Failures are logged, not fatal: the relay itself never owns
// persistence.
type PersistFunc func(ctx context.Context, conversationID, userID uint, payload []byte) error

// Session represents one live client connection's participation in the relay.
// Its two event sources, inbound wire events and broker deliveries, touch
// disjoint state: inbound handling runs on the connection's read goroutine,
// while deliveries only enqueue onto the outbound buffer.
type Session struct {
	ID     string
	UserID uint

	ConversationID uint
	Topic          string

	registry *Registry
	gate     *Gate
	persist  PersistFunc
	log      *logger.Logger

	state atomic.Int32
	send  chan []byte
	done  chan struct{}
	once  sync.Once
}

// NewSession creates a session in the Connecting state for an authenticated
// user. buffer is the outbound queue capacity; a saturated queue drops
// deliveries rather than blocking the broker.
func NewSession(registry *Registry, gate *Gate, userID uint, buffer int, log *logger.Logger) *Session {
	if buffer <= 0 {
		buffer = 256
	}
	return &Session{
		ID:       uuid.NewString(),
		UserID:   userID,
		registry: registry,
		gate:     gate,
		log:      log,
		send:     make(chan []byte, buffer),
		done:     make(chan struct{}),
	}
}

// WithPersist sets the history hook invoked for admitted payloads
func (s *Session) WithPersist(persist PersistFunc) *Session {
	s.persist = persist
	return s
}

// State returns the session's current lifecycle state
func (s *Session) State() State {
	return State(s.state.Load())
}

// Outbound is the channel the transport's write loop drains. Deliveries and
// protocol error frames arrive here.
func (s *Session) Outbound() <-chan []byte {
	return s.send
}

// Done is closed when the session reaches Closed
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Open resolves the conversation id from the connection target and moves the
// session Connecting -> Active by registering it with the registry. A
// malformed target, or a failed broker registration, closes the session.
func (s *Session) Open(ctx context.Context, target string) error {
	if s.State() != StateConnecting {
		s.Close()
		return &ErrMalformedTarget{Target: target}
	}

	id, err := strconv.ParseUint(target, 10, 32)
	if err != nil || id == 0 {
		s.Close()
		return &ErrMalformedTarget{Target: target}
	}

	s.ConversationID = uint(id)
	s.Topic = TopicForConversation(s.ConversationID)

	if err := s.registry.Subscribe(ctx, s.Topic, s); err != nil {
		s.Close()
		return err
	}

	s.state.Store(int32(StateActive))
	activeSessions.Inc()
	return nil
}

// HandleInbound passes a wire payload through the ingress gate and publishes
// it. Payloads arriving while the session is not Active are discarded. A
// rejected payload is answered with a relay.error frame; an authorization
// rejection additionally closes the session, which has nothing else to do.
func (s *Session) HandleInbound(ctx context.Context, payload []byte) {
	if s.State() != StateActive {
		return
	}

	if appErr := s.gate.Admit(ctx, s.ConversationID, s.UserID, payload); appErr != nil {
		s.enqueue(EncodeErrorFrame(appErr.Code, appErr.Message))
		if appErr.StatusCode == http.StatusForbidden {
			s.Close()
		}
		return
	}

	if s.persist != nil {
		if err := s.persist(ctx, s.ConversationID, s.UserID, payload); err != nil {
			s.log.LogError(err, "failed to persist relayed payload",
				"conversation_id", s.ConversationID, "user_id", s.UserID)
		}
	}

	if err := s.registry.Publish(ctx, s.Topic, s.ID, payload); err != nil {
		s.log.LogError(err, "failed to publish relay payload",
			"topic", s.Topic, "session_id", s.ID)
	}
}

// Deliver enqueues a payload for the transport write loop. Non-blocking: if
// the outbound buffer is full the delivery is dropped and counted, never
// stalling the caller. Returns whether the payload was enqueued.
func (s *Session) Deliver(payload []byte) bool {
	if s.State() != StateActive {
		return false
	}
	if s.enqueue(payload) {
		deliveredTotal.Inc()
		return true
	}
	droppedTotal.WithLabelValues("saturated").Inc()
	return false
}

// Close moves the session to Closed and unsubscribes it, exactly once,
// regardless of which path caused the transition. Safe to call repeatedly.
func (s *Session) Close() {
	s.once.Do(func() {
		prev := State(s.state.Swap(int32(StateClosed)))
		if s.Topic != "" {
			s.registry.Unsubscribe(context.Background(), s.Topic, s)
		}
		if prev == StateActive {
			activeSessions.Dec()
		}
		close(s.done)
	})
}

func (s *Session) enqueue(payload []byte) bool {
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}
