package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// StartAuditConsumer consumes every booking queue and writes one audit log
// line per event.  It reconnects with exponential backoff and returns only
// when ctx is cancelled.  Malformed messages are rejected without requeue.
func StartAuditConsumer(ctx context.Context, url string, log *zap.Logger) error {
	if url == "" {
		url = DefaultURL
	}
	log = log.Named("audit-consumer")

	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn("dial broker failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("consume loop ended; reconnecting", zap.Error(err))
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

type delivery struct {
	queue string
	amqp.Delivery
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, log *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("set QoS failed", zap.Error(err))
	}

	merged := make(chan delivery)
	done := make(chan struct{})
	defer close(done)
	for _, name := range Queues {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
		msgs, err := ch.Consume(name, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", name, err)
		}
		go func(name string, msgs <-chan amqp.Delivery) {
			for d := range msgs {
				select {
				case merged <- delivery{queue: name, Delivery: d}:
				case <-done:
					return
				}
			}
		}(name, msgs)
	}

	closed := ch.NotifyClose(make(chan *amqp.Error, 1))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-closed:
			if err != nil {
				return err
			}
			return errors.New("channel closed")
		case d := <-merged:
			ev, err := decode(d.Body)
			if err != nil {
				log.Warn("reject message", zap.String("queue", d.queue), zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			log.Info("booking event", auditFields(ev)...)
			_ = d.Ack(false)
		}
	}
}

func decode(body []byte) (BookingEvent, error) {
	var ev BookingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return BookingEvent{}, fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.BookingID == 0 {
		return BookingEvent{}, errors.New("event without type or booking id")
	}
	return ev, nil
}

func auditFields(ev BookingEvent) []zap.Field {
	return []zap.Field{
		zap.String("type", ev.Type),
		zap.Uint64("booking_id", ev.BookingID),
		zap.Uint64("user_id", ev.UserID),
		zap.Uint64("hotel_id", ev.HotelID),
		zap.Uint64("room_id", ev.RoomID),
		zap.Int("rooms_count", ev.RoomsCount),
		zap.String("check_in", ev.CheckIn),
		zap.String("check_out", ev.CheckOut),
		zap.String("amount", ev.Amount),
		zap.String("occurred_at", ev.OccurredAt),
	}
}
