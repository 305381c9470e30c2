package services

import (
	"encoding/json"
	"fmt"
	"time"

	"barangay-portal/models"

	"github.com/apex/log"
	"github.com/streadway/amqp"
)

// EventPublisher publishes report lifecycle events to RabbitMQ for
// downstream processors. It is optional; a nil publisher drops events.
type EventPublisher struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
}

// NewEventPublisher connects to RabbitMQ and declares the exchange.
func NewEventPublisher(amqpURL, exchangeName, routingKey string) (*EventPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &EventPublisher{
		conn:       conn,
		channel:    channel,
		exchange:   exchangeName,
		routingKey: routingKey,
	}, nil
}

// PublishReportCreated emits a report.created event.
func (p *EventPublisher) PublishReportCreated(report *models.Report) {
	p.publish(models.ReportEvent{
		Type:      "report.created",
		Report:    report,
		Timestamp: time.Now(),
	})
}

// PublishStatusChanged emits a report.status_changed event.
func (p *EventPublisher) PublishStatusChanged(report *models.Report, oldStatus models.Status) {
	p.publish(models.ReportEvent{
		Type:      "report.status_changed",
		Report:    report,
		OldStatus: oldStatus,
		Timestamp: time.Now(),
	})
}

// publish sends an event; failures are logged, never surfaced to the caller.
// The database write has already committed by the time an event is emitted.
func (p *EventPublisher) publish(event models.ReportEvent) {
	if p == nil {
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Errorf("Failed to marshal report event: %v", err)
		return
	}

	err = p.channel.Publish(
		p.exchange,   // exchange
		p.routingKey, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	if err != nil {
		log.Errorf("Failed to publish report event: %v", err)
	}
}

// Close shuts down the channel and connection.
func (p *EventPublisher) Close() {
	if p == nil {
		return
	}
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
