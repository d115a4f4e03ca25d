package relay

import (
	"context"
	"time"
)

// Handler receives frames arriving on a subscribed topic. Implementations of
// Broker must invoke it from a single goroutine per topic so that frames
// published by one process are delivered in publish order.
type Handler func(topic string, frame []byte)

// Broker abstracts the cross-process publish/subscribe substrate. Subscribe
// and Unsubscribe register this process's interest in a topic; the Registry
// calls them exactly once per topic, on the first local subscriber and the
// last local unsubscriber. Publish broadcasts a frame to every process with
// at least one subscriber to the topic, including the publishing process.
//
// Publish is at-most-once and is never retried; Subscribe/Unsubscribe are
// retried with backoff by the networked implementations, since a lost
// registration silently breaks fan-out.
type Broker interface {
	Publish(ctx context.Context, topic string, frame []byte) error
	Subscribe(ctx context.Context, topic string) error
	Unsubscribe(ctx context.Context, topic string) error
	Close() error
}

// withRetry runs op up to attempts times with doubling, capped backoff
func withRetry(ctx context.Context, attempts int, backoff time.Duration, op func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	const maxBackoff = 5 * time.Second

	var err error
	for i := 0; i < attempts; i++ {
		if err = op(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return err
}
