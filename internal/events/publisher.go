package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/safar/go-storefront/internal/models"
)

const OrderCreatedQueue = "order.created"

type OrderCreatedLine struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

type OrderCreated struct {
	EventType   string             `json:"event_type"`
	OrderID     int64              `json:"order_id"`
	OrderNumber string             `json:"order_number"`
	UserID      int64              `json:"user_id"`
	TotalAmount string             `json:"total_amount"`
	Items       []OrderCreatedLine `json:"items"`
	Timestamp   time.Time          `json:"timestamp"`
}

// Publisher emits order events to RabbitMQ. A nil *Publisher is a valid
// no-op, so callers never branch on whether messaging is configured.
type Publisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewPublisher(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	// Declare the queue up front so publish never fails on missing infra
	if _, err := ch.QueueDeclare(OrderCreatedQueue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare %s: %w", OrderCreatedQueue, err)
	}

	return &Publisher{conn: conn, ch: ch}, nil
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	if err := p.ch.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}

func (p *Publisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	if p == nil {
		return nil
	}

	ev := OrderCreated{
		EventType:   "OrderCreated",
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount.String(),
		Timestamp:   time.Now().UTC(),
	}
	for _, item := range order.Items {
		ev.Items = append(ev.Items, OrderCreatedLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.String(),
		})
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal OrderCreated: %w", err)
	}

	return p.ch.PublishWithContext(ctx, "", OrderCreatedQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}
