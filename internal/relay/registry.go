package relay

import (
	"context"
	"sync"

	"livewire/backend/pkg/logger"
)

// Registry tracks, for this process, which live sessions are subscribed to
// which topics. It owns the local fan-out and keeps exactly one broker
// registration per topic, acquired on the first local subscriber and released
// on the last. The zero value is not usable; construct with NewRegistry and
// attach a broker before subscribing.
type Registry struct {
	mu     sync.RWMutex
	topics map[string]*topicState

	broker   Broker
	selfEcho bool
	log      *logger.Logger
}

// topicState holds one topic's subscriber set and broker registration. Its
// mutex is held across the broker Subscribe/Unsubscribe calls, so concurrent
// subscribers on the same topic wait for an in-flight registration to resolve
// instead of racing its outcome: a failed first registration never strands a
// later subscriber without broker coverage, and a release can never land
// after a newer registration.
type topicState struct {
	mu         sync.Mutex
	sessions   map[*Session]struct{}
	registered bool
	dead       bool
}

// NewRegistry creates an empty registry. selfEcho controls whether a session
// receives its own publishes back.
func NewRegistry(log *logger.Logger, selfEcho bool) *Registry {
	return &Registry{
		topics:   make(map[string]*topicState),
		selfEcho: selfEcho,
		log:      log,
	}
}

// UseBroker attaches the cross-process broker. The broker's handler must be
// this registry's Dispatch.
func (r *Registry) UseBroker(b Broker) {
	r.broker = b
}

// Subscribe adds the session to the topic's subscriber set. Re-subscribing is
// a no-op. The first subscriber on a topic registers this process's interest
// with the broker; the session joins the set only once registration holds, so
// a failed registration after its retry budget returns the error without
// touching the set, since a session that cannot receive cross-process traffic
// should not report itself connected. The next subscriber attempts the
// registration afresh.
func (r *Registry) Subscribe(ctx context.Context, topic string, s *Session) error {
	t := r.lockTopic(topic)
	defer t.mu.Unlock()

	if _, dup := t.sessions[s]; dup {
		return nil
	}
	if !t.registered && r.broker != nil {
		if err := r.broker.Subscribe(ctx, topic); err != nil {
			return err
		}
	}
	t.registered = true
	t.sessions[s] = struct{}{}
	return nil
}

// Unsubscribe removes the session from the topic's subscriber set. Safe to
// call for a session that is not present. Dropping the last subscriber
// releases the broker registration; a failed release is logged, not
// surfaced, since publish to a topic nobody subscribes to is a no-op anyway.
func (r *Registry) Unsubscribe(ctx context.Context, topic string, s *Session) {
	r.mu.RLock()
	t := r.topics[topic]
	r.mu.RUnlock()
	if t == nil {
		return
	}

	t.mu.Lock()
	if _, present := t.sessions[s]; !present {
		t.mu.Unlock()
		return
	}
	delete(t.sessions, s)
	last := len(t.sessions) == 0
	if last && t.registered {
		if r.broker != nil {
			if err := r.broker.Unsubscribe(ctx, topic); err != nil {
				r.log.LogError(err, "failed to release broker registration", "topic", topic)
			}
		}
		t.registered = false
	}
	t.mu.Unlock()

	if last {
		r.reap(topic, t)
	}
}

// Publish wraps the payload in the relay envelope and hands it to the broker.
// origin is the publishing session's id, used for the self-echo policy.
func (r *Registry) Publish(ctx context.Context, topic, origin string, payload []byte) error {
	frame, err := EncodeEnvelope(origin, payload)
	if err != nil {
		return err
	}
	if err := r.broker.Publish(ctx, topic, frame); err != nil {
		return err
	}
	publishedTotal.Inc()
	return nil
}

// Dispatch delivers a broker frame to every local subscriber of the topic.
// It is the Handler wired into the broker. Enqueueing is non-blocking: a
// saturated subscriber misses the payload rather than stalling the rest.
func (r *Registry) Dispatch(topic string, frame []byte) {
	env, err := DecodeEnvelope(frame)
	if err != nil {
		r.log.LogError(err, "discarding undecodable relay frame", "topic", topic)
		return
	}

	r.mu.RLock()
	t := r.topics[topic]
	r.mu.RUnlock()
	if t == nil {
		return
	}

	t.mu.Lock()
	sessions := make([]*Session, 0, len(t.sessions))
	for s := range t.sessions {
		sessions = append(sessions, s)
	}
	t.mu.Unlock()

	for _, s := range sessions {
		if !r.selfEcho && s.ID == env.Origin {
			continue
		}
		s.Deliver(env.Payload)
	}
}

// Subscribers reports the topic's current local subscriber count
func (r *Registry) Subscribers(topic string) int {
	r.mu.RLock()
	t := r.topics[topic]
	r.mu.RUnlock()
	if t == nil {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// lockTopic returns the topic's state with its mutex held, creating the entry
// if needed. Loops because a state reaped between the map lookup and the lock
// must not be revived.
func (r *Registry) lockTopic(topic string) *topicState {
	for {
		r.mu.Lock()
		t, ok := r.topics[topic]
		if !ok {
			t = &topicState{sessions: make(map[*Session]struct{})}
			r.topics[topic] = t
		}
		r.mu.Unlock()

		t.mu.Lock()
		if !t.dead {
			return t
		}
		t.mu.Unlock()
	}
}

// reap drops the topic entry once it has emptied, re-checking under both
// locks: a subscriber may have arrived since the last unsubscribe.
func (r *Registry) reap(topic string, t *topicState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.topics[topic] != t {
		return
	}

	t.mu.Lock()
	if len(t.sessions) == 0 {
		t.dead = true
		delete(r.topics, topic)
	}
	t.mu.Unlock()
}
