package models

import "time"

// CheckoutItem mirrors OrderItem minus the identifiers the server assigns.
type CheckoutItem struct {
	Name                string    `json:"name"`
	Quantity            int       `json:"quantity"`
	UnitPrice           float64   `json:"unit_price"`
	Toppings            []Topping `json:"toppings,omitempty"`
	BrothRichness       string    `json:"broth_richness,omitempty"`
	NoodleFirmness      string    `json:"noodle_firmness,omitempty"`
	SpiceLevel          int       `json:"spice_level"`
	SpecialInstructions string    `json:"special_instructions,omitempty"`
}

type CheckoutRequest struct {
	OrderType     string         `json:"order_type"`
	CustomerName  string         `json:"customer_name"`
	CustomerEmail string         `json:"customer_email"`
	CustomerPhone string         `json:"customer_phone"`
	Street        string         `json:"street,omitempty"`
	City          string         `json:"city,omitempty"`
	PostalCode    string         `json:"postal_code,omitempty"`
	Items         []CheckoutItem `json:"items"`
	PromoCode     string         `json:"promo_code,omitempty"`
	Notes         string         `json:"notes,omitempty"`
	ScheduledAt   *time.Time     `json:"scheduled_at,omitempty"`
	// "card" redirects to Stripe, "on_arrival" confirms immediately.
	PaymentMethod string `json:"payment_method"`
	// Cart capture key released on successful checkout.
	CartID string `json:"cart_id,omitempty"`
}

// CheckoutResponse returns exactly one of PaymentURL or Order.
type CheckoutResponse struct {
	PaymentURL string `json:"paymentUrl,omitempty"`
	Order      *Order `json:"order,omitempty"`
}

// Cart is the pre-checkout snapshot held in Redis for abandonment reminders.
type Cart struct {
	CartID    string         `json:"cart_id"`
	Email     string         `json:"email"`
	Items     []CheckoutItem `json:"items"`
	Subtotal  float64        `json:"subtotal"`
	CreatedAt time.Time      `json:"created_at"`
}

// BulkTransitionRequest drives the admin multi-select action.
type BulkTransitionRequest struct {
	OrderIDs []string `json:"orderIds"`
	Status   string   `json:"status"`
}

// BulkTransitionResult reports per-id outcomes; one failure never aborts the
// batch.
type BulkTransitionResult struct {
	Succeeded []string          `json:"succeeded"`
	Failed    map[string]string `json:"failed"`
}
