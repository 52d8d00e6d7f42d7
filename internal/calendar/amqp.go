package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/the-spice-must-pay/internal/common"
	"github.com/Veraticus/the-spice-must-pay/internal/service"
	"github.com/rabbitmq/amqp091-go"
)

// ContentType is the MIME type of every rendered document.
const ContentType = "text/calendar; charset=utf-8"

// publisher is the subset of *amqp091.Channel the sink needs.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// AMQPSink publishes documents to a durable direct exchange so another
// process (a CalDAV bridge, a mailer) can forward them.
type AMQPSink struct {
	conn     *amqp091.Connection
	channel  publisher
	closer   func() error
	exchange string
	queue    string
	retry    service.RetryOptions
}

// NewAMQPSink dials url and declares the exchange, queue and binding.
func NewAMQPSink(url, exchange, queue string) (*AMQPSink, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch, exchange, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &AMQPSink{
		conn:     conn,
		channel:  ch,
		closer:   ch.Close,
		exchange: exchange,
		queue:    queue,
		retry:    common.DefaultRetryOptions,
	}, nil
}

func declareTopology(ch *amqp091.Channel, exchange, queue string) error {
	if err := ch.ExchangeDeclare(
		exchange, // name
		"direct", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(queue, queue, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// Deliver publishes body as a persistent message. The file name travels in
// the "filename" header.
func (s *AMQPSink) Deliver(ctx context.Context, name string, body []byte) error {
	msg := amqp091.Publishing{
		ContentType:  ContentType,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Headers:      amqp091.Table{"filename": name},
		Body:         body,
	}

	err := common.WithRetry(ctx, func() error {
		pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		err := s.channel.PublishWithContext(pubCtx, s.exchange, s.queue, false, false, msg)
		if errors.Is(err, amqp091.ErrClosed) {
			return common.Permanent(err)
		}
		return err
	}, s.retry)
	if err != nil {
		return fmt.Errorf("publish calendar document: %w", err)
	}

	slog.Debug("Published calendar document",
		"file", name,
		"exchange", s.exchange,
		"queue", s.queue)
	return nil
}

// Close releases the channel and connection.
func (s *AMQPSink) Close() error {
	if s.closer != nil {
		_ = s.closer()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
