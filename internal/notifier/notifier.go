// Package notifier publishes queue events to an AMQP topic exchange so
// display boards and patient notification channels can follow the live
// queue without polling the API.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-queue-api/internal/models"
	"github.com/noah-isme/clinic-queue-api/pkg/config"
)

// Publisher emits queue events onto a durable topic exchange. A nil
// Publisher is valid and drops every event, so callers never branch on the
// AMQP toggle.
type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

// NewPublisher connects and declares the exchange. Returns (nil, nil) when
// AMQP is disabled in config.
func NewPublisher(cfg config.AMQPConfig, logger *zap.Logger) (*Publisher, error) {
	if !cfg.Enabled {
		logger.Info("amqp disabled, queue events will not be published")
		return nil, nil
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	if err := channel.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("amqp exchange declare: %w", err)
	}

	return &Publisher{conn: conn, channel: channel, exchange: cfg.Exchange, logger: logger}, nil
}

// PublishStatusChange emits one appointment status transition. Routing key:
// clinic.<clinic_id>.doctor.<doctor_id>.<new_status>.
func (p *Publisher) PublishStatusChange(ctx context.Context, change models.StatusChange) error {
	if p == nil {
		return nil
	}

	body, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal status change: %w", err)
	}

	routingKey := fmt.Sprintf("clinic.%s.doctor.%s.%s",
		change.ClinicID, change.DoctorID, strings.ToLower(string(change.NewStatus)))

	err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish status change: %w", err)
	}

	p.logger.Debug("queue event published",
		zap.String("routing_key", routingKey),
		zap.String("appointment_id", change.AppointmentID))
	return nil
}

// Close shuts down the channel and connection.
func (p *Publisher) Close() error {
	if p == nil || p.channel == nil {
		return nil
	}
	if err := p.channel.Close(); err != nil {
		return err
	}
	return p.conn.Close()
}
