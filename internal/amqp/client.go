package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Handler processes one event. Returning an error requeues the delivery.
type Handler func(ctx context.Context, e *LedgerEvent) error

type Client struct {
	mu           sync.Mutex
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	c := &Client{conn: conn, channel: channel, exchangeName: exchangeName, queueName: queueName}
	if err := c.setup(); err != nil {
		c.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}
	return c, nil
}

// setup declares a durable direct exchange and a queue bound by its own name.
func (c *Client) setup() error {
	if err := c.channel.ExchangeDeclare(c.exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := c.channel.QueueDeclare(c.queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// PublishLedgerEvent sends e as a persistent message.
func (c *Client) PublishLedgerEvent(ctx context.Context, e LedgerEvent) error {
	body, err := e.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	err = c.channel.PublishWithContext(ctx, c.exchangeName, c.queueName, false, false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    e.ID,
			Timestamp:    e.Timestamp,
			Type:         string(e.Kind),
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	slog.DebugContext(ctx, "Published ledger event",
		"id", e.ID,
		"kind", e.Kind,
		"challenge_id", e.ChallengeID,
		"exchange", c.exchangeName)
	return nil
}

// ConsumeLedgerEvents blocks delivering events to handler until ctx ends or
// the channel closes. Undecodable bodies are dropped, handler failures
// requeued.
func (c *Client) ConsumeLedgerEvents(ctx context.Context, handler Handler) error {
	msgs, err := c.channel.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	slog.InfoContext(ctx, "Started consuming ledger events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}
			handleDelivery(ctx, d, handler)
		}
	}
}

// acknowledger is the part of amqp091.Delivery used after handling.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func handleDelivery(ctx context.Context, d amqp091.Delivery, handler Handler) {
	process(ctx, d.Body, &d, handler)
}

func process(ctx context.Context, body []byte, ack acknowledger, handler Handler) {
	e, err := LedgerEventFromJSON(body)
	if err != nil {
		slog.ErrorContext(ctx, "Dropping undecodable ledger event", "error", err)
		ack.Nack(false, false)
		return
	}
	if err := handler(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to handle ledger event", "error", err, "id", e.ID, "kind", e.Kind)
		ack.Nack(false, true)
		return
	}
	ack.Ack(false)
}

// RunConsumer keeps a consumer alive across broker restarts, reconnecting
// with capped exponential backoff on connection errors.
func RunConsumer(ctx context.Context, url, exchange, queue string, handler Handler) error {
	for attempt := 0; ; attempt++ {
		client, err := NewClient(url, exchange, queue)
		if err == nil {
			attempt = 0
			err = client.ConsumeLedgerEvents(ctx, handler)
			client.Close()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isConnectionError(err) {
			return err
		}
		wait := exponentialBackoff(attempt)
		slog.WarnContext(ctx, "AMQP connection lost, reconnecting", "error", err, "retry_in", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func exponentialBackoff(attempt int) time.Duration {
	const maxWait = 30 * time.Second
	if attempt >= 5 {
		return maxWait
	}
	d := time.Second << attempt
	if d > maxWait {
		return maxWait
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "channel closed", "dial"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
