package relay

import (
	"fmt"

	"livewire/backend/pkg/config"
	"livewire/backend/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// Runtime owns the relay's process-wide pieces: the registry, the broker
// behind it and the ingress gate. It is constructed by the DI container and
// torn down with it; nothing in this package holds hidden global state.
type Runtime struct {
	Registry *Registry
	Gate     *Gate

	broker Broker
	cfg    *config.Config
	log    *logger.Logger
}

// NewRuntime builds the relay runtime, selecting the broker from
// configuration: "memory" for a single process, "redis" or "nats" for a
// fleet.
func NewRuntime(cfg *config.Config, checker ParticipantChecker, rdb *redis.Client, log *logger.Logger) (*Runtime, error) {
	registry := NewRegistry(log, cfg.Relay.SelfEcho)

	var broker Broker
	switch cfg.Relay.Broker {
	case "memory":
		broker = NewMemoryBroker(registry.Dispatch)
	case "redis":
		broker = NewRedisBroker(rdb, registry.Dispatch, log, cfg.Relay.RegisterRetries, cfg.Relay.RegisterBackoff)
	case "nats":
		var err error
		broker, err = NewNatsBroker(cfg.NATS.URL, registry.Dispatch, log, cfg.Relay.RegisterRetries, cfg.Relay.RegisterBackoff)
		if err != nil {
			return nil, fmt.Errorf("failed to connect relay broker to NATS: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown relay broker %q", cfg.Relay.Broker)
	}
	registry.UseBroker(broker)

	return &Runtime{
		Registry: registry,
		Gate:     NewGate(checker, cfg.Relay.MaxPayload),
		broker:   broker,
		cfg:      cfg,
		log:      log,
	}, nil
}

// NewSession creates a session bound to this runtime
func (rt *Runtime) NewSession(userID uint) *Session {
	return NewSession(rt.Registry, rt.Gate, userID, rt.cfg.Relay.SessionBuffer, rt.log)
}

// Close releases the broker
func (rt *Runtime) Close() error {
	return rt.broker.Close()
}
