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
	"github.com/sirupsen/logrus"
)

// StartAuditConsumer connects to RabbitMQ, declares the rewards.events queue
// and appends every message to logPath as one human-readable line.  It keeps
// reconnecting with exponential backoff until ctx is cancelled, at which
// point it returns ctx.Err().  Malformed messages are rejected without
// requeue so a bad payload cannot stall the queue.
func StartAuditConsumer(ctx context.Context, url, logPath string, log *logrus.Logger) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := dial(url, DefaultDialTimeout)
		if err != nil {
			log.WithError(err).WithField("retry_in", backoff.String()).Warn("audit-consumer: dial failed")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, logPath, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.WithError(err).Warn("audit-consumer: consume loop ended, reconnecting")
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

func consumeLoop(ctx context.Context, conn *amqp.Connection, logPath string, log *logrus.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.WithError(err).Warn("audit-consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(EventsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, EventsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := appendLine(logPath, d.Body); err != nil {
			log.WithError(err).Warn("audit-consumer: handle message failed")
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func appendLine(logPath string, body []byte) error {
	line, err := FormatLine(body)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders an event message as a single log line ending in '\n'.
func FormatLine(body []byte) (string, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("unmarshal envelope: %w", err)
	}
	switch env.Type {
	case TypeRewardRedeemed:
		var ev RewardRedeemedEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return "", fmt.Errorf("unmarshal %s: %w", env.Type, err)
		}
		return fmt.Sprintf("[%s] Reward redeemed | resident_id=%d | reward_id=%d | reward=%q | type=%s | points_used=%d | balance=%d | equipped=%t\n",
			ev.RedeemedAt, ev.ResidentID, ev.RewardID, ev.RewardName, ev.RewardType, ev.PointsUsed, ev.NewRedeemablePoints, ev.IsEquipped), nil
	case TypeRewardEquipToggle:
		var ev EquipToggledEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return "", fmt.Errorf("unmarshal %s: %w", env.Type, err)
		}
		return fmt.Sprintf("[%s] Reward %s | resident_id=%d | reward_id=%d | reward=%q | type=%s\n",
			ev.ToggledAt, ev.Action, ev.ResidentID, ev.RewardID, ev.RewardName, ev.RewardType), nil
	}
	return "", fmt.Errorf("unknown event type %q", env.Type)
}
