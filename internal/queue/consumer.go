package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	auditQueueName = "parking.audit"
	auditFileName  = "parking.log"
)

// AuditConsumer binds a durable queue to every event on the exchange and
// appends one line per event to <dir>/parking.log.
type AuditConsumer struct {
	url string
	dir string
	log zerolog.Logger
}

func NewAuditConsumer(url, dir string, log zerolog.Logger) *AuditConsumer {
	return &AuditConsumer{url: url, dir: dir, log: log.With().Str("component", "audit-consumer").Logger()}
}

// Run connects to RabbitMQ and consumes until ctx is cancelled.  Broker
// failures are retried with exponential backoff (capped at 30s); a message
// that cannot be handled is rejected without requeue so the loop keeps
// going.
func (c *AuditConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn().Err(err).Dur("retry_in", backoff).Msg("failed to dial broker")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn().Err(err).Msg("consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *AuditConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn().Err(err).Msg("set QoS failed")
	}
	if err := ch.ExchangeDeclare(ExchangeName, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	if _, err := ch.QueueDeclare(auditQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(auditQueueName, "#", ExchangeName, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}

	msgs, err := ch.Consume(auditQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handleMessage(d.Body); err != nil {
				c.log.Error().Err(err).Msg("handle message failed")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *AuditConsumer) handleMessage(body []byte) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" {
		return errors.New("event without type")
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.dir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.dir, auditFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func formatLine(ev Event) string {
	ts := ev.OccurredAt.UTC().Format(time.RFC3339)
	switch ev.Type {
	case EventSlotParked:
		return fmt.Sprintf("[%s] Slot parked | user_id=%d | slot_id=%d | version=%d | charge=%s | balance=%s\n",
			ts, ev.UserID, ev.SlotID, ev.SlotVersion, ev.Amount, ev.BalanceAfter)
	case EventSlotReleased:
		return fmt.Sprintf("[%s] Slot released | user_id=%d | slot_id=%d | version=%d | charge=%s | balance=%s | by=%s\n",
			ts, ev.UserID, ev.SlotID, ev.SlotVersion, ev.Amount, ev.BalanceAfter, ev.Actor)
	case EventWalletRecharged:
		return fmt.Sprintf("[%s] Wallet recharged | user_id=%d | amount=%s | balance=%s | tx=%s\n",
			ts, ev.UserID, ev.Amount, ev.BalanceAfter, ev.TransactionID)
	default:
		return fmt.Sprintf("[%s] %s | user_id=%d\n", ts, ev.Type, ev.UserID)
	}
}
