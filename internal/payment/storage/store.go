package storage

import (
	"time"

	"ramen-orders/internal/models"
)

// Payment is the row recording one Stripe charge attempt for an order.
type Payment struct {
	PaymentID     string               `json:"payment_id"`
	OrderID       string               `json:"order_id"`
	Status        models.PaymentStatus `json:"status"`
	Amount        float64              `json:"amount"`
	StripeSession string               `json:"stripe_session,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at,omitempty"`
}

// Store is the persistence port for payment records.
type Store interface {
	CreatePayment(p Payment) error
	GetPaymentByOrderID(orderID string) (*Payment, error)
	UpdatePaymentStatus(orderID string, status models.PaymentStatus, stripeSession string) error
}
