package events

import (
	"context"
	"fmt"

	"github.com/cambosugarscan/apiserver/config"
)

// FromConfig connects the configured backend. With no backend configured
// the returned Publisher is disabled.
func FromConfig(ctx context.Context, cfg config.EventsConfig) (*Publisher, error) {
	var (
		transport Transport
		err       error
	)
	switch cfg.Backend {
	case "":
		return NewPublisher(nil, cfg.Channel), nil
	case config.EventsBackendRabbitMQ:
		transport, err = NewRabbitMQTransport(cfg.RabbitMQ)
	case config.EventsBackendPubSub:
		transport, err = NewPubSubTransport(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Backend, err)
	}
	return NewPublisher(transport, cfg.Channel), nil
}
