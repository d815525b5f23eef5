package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/pivot-calculator/internal/lib/sl"
)

// ErrDrop сообщает потребителю, что сообщение не нужно возвращать в очередь.
var ErrDrop = errors.New("drop message")

// Handler обрабатывает тело сообщения.
type Handler func(ctx context.Context, body []byte) error

// ConsumerMessage запускает потребителя очереди. Успешно обработанные
// сообщения подтверждаются, при ошибке сообщение возвращается в очередь,
// а при ErrDrop отбрасывается.
func ConsumerMessage(ctx context.Context, log *slog.Logger, ch *amqp.Channel, queueName string, handler Handler) error {
	const op = "rabbitmq.ConsumerMessage"
	log = log.With(slog.String("op", op), slog.String("queue", queueName))

	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	sem := make(chan struct{}, 10)
	go func() {
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					return
				}
				sem <- struct{}{}
				go func(d amqp.Delivery) {
					defer func() { <-sem }()
					settle(log, d, handler(ctx, d.Body))
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func settle(log *slog.Logger, d amqp.Delivery, err error) {
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			log.Error("failed to ack message", sl.Err(ackErr))
		}
	case errors.Is(err, ErrDrop):
		log.Warn("dropping message", sl.Err(err))
		if nackErr := d.Nack(false, false); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
	default:
		log.Error("failed to handle message", sl.Err(err))
		if nackErr := d.Nack(false, true); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
	}
}
