package events

import (
	"context"
	"errors"
	"strings"
	"sync"

	"cloud.google.com/go/pubsub"
	"github.com/cambosugarscan/apiserver/config"
	"google.golang.org/api/option"
)

// PubSubTransport maps channels to Pub/Sub topics. Messages carry the
// entity ID as ordering key, so changes to one product or user arrive in
// order.
type PubSubTransport struct {
	client             *pubsub.Client
	subscriptionSuffix string

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

func NewPubSubTransport(ctx context.Context, cfg config.PubSubConfig) (*PubSubTransport, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("pubsub project id is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, err
	}

	suffix := cfg.SubscriptionSuffix
	if suffix == "" {
		suffix = "-sub"
	}

	return &PubSubTransport{
		client:             client,
		subscriptionSuffix: suffix,
		topics:             make(map[string]*pubsub.Topic),
	}, nil
}

func (p *PubSubTransport) Send(ctx context.Context, channel string, ev Event) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("pubsub channel is required")
	}
	body, err := encode(ev)
	if err != nil {
		return "", err
	}

	topic, err := p.topic(ctx, channel)
	if err != nil {
		return "", err
	}
	msg := pubsubMessage(ev, body)
	id, err := topic.Publish(ctx, msg).Get(ctx)
	if err != nil && msg.OrderingKey != "" {
		topic.ResumePublish(msg.OrderingKey)
	}
	return id, err
}

// Receive pulls from "<channel><suffix>", creating the subscription if
// needed. Undecodable messages are acked so they are not redelivered.
func (p *PubSubTransport) Receive(ctx context.Context, channel string, fn Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("pubsub channel is required")
	}

	topic, err := p.topic(ctx, channel)
	if err != nil {
		return err
	}
	sub, err := p.subscription(ctx, channel+p.subscriptionSuffix, topic)
	if err != nil {
		return err
	}

	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if dispatch(ctx, msg.Data, msg.Attributes["type"], fn) == settleRequeue {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (p *PubSubTransport) Close() error {
	p.mu.Lock()
	for _, topic := range p.topics {
		topic.Stop()
	}
	p.topics = map[string]*pubsub.Topic{}
	p.mu.Unlock()
	return p.client.Close()
}

// topic returns the cached publisher for name, creating the topic on first
// use.
func (p *PubSubTransport) topic(ctx context.Context, name string) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if topic, ok := p.topics[name]; ok {
		return topic, nil
	}

	topic := p.client.Topic(name)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		if topic, err = p.client.CreateTopic(ctx, name); err != nil {
			return nil, err
		}
	}
	topic.EnableMessageOrdering = true
	p.topics[name] = topic
	return topic, nil
}

func (p *PubSubTransport) subscription(ctx context.Context, name string, topic *pubsub.Topic) (*pubsub.Subscription, error) {
	sub := p.client.Subscription(name)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return p.client.CreateSubscription(ctx, name, pubsub.SubscriptionConfig{
			Topic:                 topic,
			EnableMessageOrdering: true,
		})
	}
	return sub, nil
}

func pubsubMessage(ev Event, body []byte) *pubsub.Message {
	attrs := map[string]string{"type": ev.Type}
	if ev.EntityID != "" {
		attrs["entity_id"] = ev.EntityID
	}
	return &pubsub.Message{
		Data:        body,
		Attributes:  attrs,
		OrderingKey: ev.EntityID,
	}
}
