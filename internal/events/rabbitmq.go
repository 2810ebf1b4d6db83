package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cambosugarscan/apiserver/config"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const jsonContentType = "application/json"

// RabbitMQTransport sends events to a queue named after the channel on the
// default exchange. The AMQP channel runs in confirm mode, so Send returns
// only after the broker has taken the message.
type RabbitMQTransport struct {
	conn            *amqp.Connection
	channel         *amqp.Channel
	queueDurable    bool
	queueAutoDelete bool

	mu       sync.Mutex
	declared map[string]bool
}

func NewRabbitMQTransport(cfg config.RabbitMQConfig) (*RabbitMQTransport, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err == nil && cfg.PrefetchCount > 0 {
		err = ch.Qos(cfg.PrefetchCount, 0, false)
	}
	if err == nil {
		err = ch.Confirm(false)
	}
	if err != nil {
		if ch != nil {
			_ = ch.Close()
		}
		_ = conn.Close()
		return nil, err
	}

	return &RabbitMQTransport{
		conn:            conn,
		channel:         ch,
		queueDurable:    cfg.QueueDurable,
		queueAutoDelete: cfg.QueueAutoDelete,
		declared:        make(map[string]bool),
	}, nil
}

func (r *RabbitMQTransport) Send(ctx context.Context, channel string, ev Event) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}
	body, err := encode(ev)
	if err != nil {
		return "", err
	}
	if err := r.ensureQueue(channel); err != nil {
		return "", err
	}

	msg := rabbitPublishing(ev, body, r.queueDurable)
	confirm, err := r.channel.PublishWithDeferredConfirmWithContext(ctx, "", channel, false, false, msg)
	if err != nil {
		return "", err
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return "", err
	}
	if !acked {
		return "", fmt.Errorf("broker rejected %s", msg.MessageId)
	}
	return msg.MessageId, nil
}

// Receive consumes the queue until ctx is cancelled. Deliveries that fail
// to decode are rejected without requeue; handler failures are requeued.
func (r *RabbitMQTransport) Receive(ctx context.Context, channel string, fn Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}
	if err := r.ensureQueue(channel); err != nil {
		return err
	}

	consumerTag := "sugarscan-tail-" + uuid.NewString()
	deliveries, err := r.channel.ConsumeWithContext(ctx, channel, consumerTag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = r.channel.Cancel(consumerTag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			switch dispatch(ctx, delivery.Body, delivery.Type, fn) {
			case settleAck:
				_ = delivery.Ack(false)
			case settleRequeue:
				_ = delivery.Nack(false, true)
			case settleDiscard:
				_ = delivery.Reject(false)
			}
		}
	}
}

func (r *RabbitMQTransport) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *RabbitMQTransport) ensureQueue(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.declared[name] {
		return nil
	}
	if _, err := r.channel.QueueDeclare(name, r.queueDurable, r.queueAutoDelete, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}
	r.declared[name] = true
	return nil
}

// rabbitPublishing maps an event onto AMQP message properties so consumers
// can route on Type without reading the body.
func rabbitPublishing(ev Event, body []byte, persistent bool) amqp.Publishing {
	mode := amqp.Transient
	if persistent {
		mode = amqp.Persistent
	}
	headers := amqp.Table{}
	if ev.EntityID != "" {
		headers["entity_id"] = ev.EntityID
	}
	return amqp.Publishing{
		ContentType:  jsonContentType,
		DeliveryMode: mode,
		MessageId:    uuid.NewString(),
		Type:         ev.Type,
		Timestamp:    ev.OccurredAt,
		AppId:        "sugarscan",
		Headers:      headers,
		Body:         body,
	}
}
