package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"ramen-orders/internal/models"
)

type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{Writer: writer}
}

// Publish writes a single message to the given topic.
func (p *Producer) Publish(topic string, key string, value []byte) error {
	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: value,
		},
	)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// OrderEvent is the envelope for order lifecycle messages.
type OrderEvent struct {
	Type        string    `json:"type"`
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
	OrderType   string    `json:"order_type"`
	Total       float64   `json:"total"`
	Timestamp   time.Time `json:"timestamp"`
}

func (p *Producer) PublishOrderEvent(topic, eventType string, order *models.Order) error {
	event := OrderEvent{
		Type:        eventType,
		OrderID:     order.OrderID,
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		OrderType:   string(order.OrderType),
		Total:       order.Total,
		Timestamp:   time.Now().UTC(),
	}
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.Publish(topic, order.OrderID, msgBytes)
}

// CartEvent is published when a captured cart expires unclaimed.
type CartEvent struct {
	Type      string    `json:"type"`
	CartID    string    `json:"cart_id"`
	Email     string    `json:"email"`
	Subtotal  float64   `json:"subtotal"`
	Timestamp time.Time `json:"timestamp"`
}

func (p *Producer) PublishCartAbandoned(topic string, cart models.Cart) error {
	event := CartEvent{
		Type:      "cart.abandoned",
		CartID:    cart.CartID,
		Email:     cart.Email,
		Subtotal:  cart.Subtotal,
		Timestamp: time.Now().UTC(),
	}
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.Publish(topic, cart.CartID, msgBytes)
}
