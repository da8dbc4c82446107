package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

type Exchange string
type Queue string
type BindingKey string

type MessageProducer interface {
	Publish(ctx context.Context, msg []byte, key BindingKey, exchange Exchange) error
}

type MessageConsumer interface {
	Consume(key BindingKey, exchange Exchange, queue Queue) (<-chan amqp.Delivery, error)
}

// Route binds a durable queue to a direct exchange under one routing key.
type Route struct {
	Exchange Exchange
	Queue    Queue
	Key      BindingKey
}

const (
	CommentExchange     Exchange   = "comment_exchange"
	CommentPendingQueue Queue      = "comment_pending_queue"
	CommentPendingKey   BindingKey = "comment.pending"
)

// CommentPendingRoute carries comments held for moderation to the mail worker.
var CommentPendingRoute = Route{Exchange: CommentExchange, Queue: CommentPendingQueue, Key: CommentPendingKey}

// consumerPrefetch bounds the unacknowledged deliveries a consumer holds.
const consumerPrefetch = 10

type MessageBroker struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewMessageBroker(URI string) (*MessageBroker, error) {
	conn, ch, err := connectAMQP(URI)
	if err != nil {
		return nil, err
	}

	return &MessageBroker{
		conn: conn,
		ch:   ch,
	}, nil
}

func connectAMQP(URI string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(URI)
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("could not open channel: %w", err)
	}

	return conn, ch, nil
}

// Close closes the channel and then the connection, reporting both failures.
func (mb *MessageBroker) Close() error {
	return errors.Join(mb.ch.Close(), mb.conn.Close())
}

// DeclareRoute declares the exchange and queue of r and binds them. Redeclaring an existing route is a no-op.
func (mb *MessageBroker) DeclareRoute(r Route) error {
	if err := mb.ch.ExchangeDeclare(string(r.Exchange), "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("could not declare exchange %s: %w", r.Exchange, err)
	}

	if _, err := mb.ch.QueueDeclare(string(r.Queue), true, false, false, false, nil); err != nil {
		return fmt.Errorf("could not declare queue %s: %w", r.Queue, err)
	}

	if err := mb.ch.QueueBind(string(r.Queue), string(r.Key), string(r.Exchange), false, nil); err != nil {
		return fmt.Errorf("could not bind queue %s to %s: %w", r.Queue, r.Key, err)
	}

	return nil
}

func SetupCommentExchange(mb *MessageBroker) error {
	return mb.DeclareRoute(CommentPendingRoute)
}

// Publish sends msg as a persistent JSON message with a fresh message id.
func (mb *MessageBroker) Publish(ctx context.Context, msg []byte, key BindingKey, exchange Exchange) error {
	err := mb.ch.PublishWithContext(ctx, string(exchange), string(key), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         msg,
	})
	if err != nil {
		return fmt.Errorf("could not publish message: %w", err)
	}

	return nil
}

func (mb *MessageBroker) Consume(key BindingKey, exchange Exchange, queue Queue) (<-chan amqp.Delivery, error) {
	if err := mb.ch.Qos(consumerPrefetch, 0, false); err != nil {
		return nil, fmt.Errorf("could not set prefetch: %w", err)
	}

	msgs, err := mb.ch.Consume(string(queue), string(key), false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("could not consume message: %w", err)
	}

	return msgs, nil
}

// PublishJSON encodes event and publishes it on r.
func PublishJSON[T any](ctx context.Context, p MessageProducer, r Route, event T) error {
	msg, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("could not encode %s event: %w", r.Key, err)
	}

	return p.Publish(ctx, msg, r.Key, r.Exchange)
}
