package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/models"
)

// Reservation lifecycle event types, also used as routing keys.
const (
	EventReservationCreated   = "reservation.created"
	EventReservationConfirmed = "reservation.confirmed"
	EventReservationCheckedIn = "reservation.checked_in"
	EventReservationCancelled = "reservation.cancelled"
	EventReservationNoShow    = "reservation.no_show"
	EventReservationCompleted = "reservation.completed"
)

// ReservationEvent describes one status change.
type ReservationEvent struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	ReservationID uint      `json:"reservation_id"`
	CustomerID    uint      `json:"customer_id"`
	RoomID        uint      `json:"room_id"`
	Status        string    `json:"status"`
	StartAt       time.Time `json:"start_at"`
	EndAt         time.Time `json:"end_at"`
	StaffPhone    string    `json:"staff_phone,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewReservationEvent snapshots r for publishing.
func NewReservationEvent(eventType string, r *models.Reservation, at time.Time) ReservationEvent {
	return ReservationEvent{
		ID:            uuid.NewString(),
		Type:          eventType,
		ReservationID: r.ID,
		CustomerID:    r.CustomerID,
		RoomID:        r.RoomID,
		Status:        r.Status,
		StartAt:       r.StartAt,
		EndAt:         r.EndAt,
		StaffPhone:    r.ConfirmedByStaffPhone,
		OccurredAt:    at,
	}
}

// EventPublisher ships reservation events to other systems.
type EventPublisher interface {
	Publish(ctx context.Context, event ReservationEvent) error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, ReservationEvent) error { return nil }

// AMQPPublisher publishes events as JSON on a topic exchange.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// NewAMQPPublisher dials the broker and declares the exchange.
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, event ReservationEvent) error {
	body, err := sonic.Marshal(event)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, p.exchange, event.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.OccurredAt,
		Body:         body,
	})
}

// Close shuts the channel and connection.
func (p *AMQPPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// PublishEvent is best effort: a broker outage never fails a dialogue turn.
func PublishEvent(ctx context.Context, pub EventPublisher, eventType string, r *models.Reservation, at time.Time) {
	if pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pub.Publish(ctx, NewReservationEvent(eventType, r, at)); err != nil {
		log.Warn().Err(err).Str("event", eventType).Uint("reservation_id", r.ID).Msg("⚠️ Failed to publish reservation event")
	}
}
