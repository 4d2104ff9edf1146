package models

import (
	"time"

	"github.com/uptrace/bun"

	"ramen-orders/internal/status"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	OrderID       string             `bun:"order_id,pk" json:"order_id"`
	OrderNumber   string             `bun:"order_number,notnull,unique" json:"order_number"`
	Status        status.OrderStatus `bun:"status,notnull" json:"status"`
	PaymentStatus PaymentStatus      `bun:"payment_status,notnull" json:"payment_status"`
	OrderType     status.OrderType   `bun:"order_type,notnull" json:"order_type"`

	CustomerName  string `bun:"customer_name,notnull" json:"customer_name"`
	CustomerEmail string `bun:"customer_email,notnull" json:"customer_email"`
	CustomerPhone string `bun:"customer_phone,notnull" json:"customer_phone"`

	// Populated iff OrderType == DELIVERY.
	AddressStreet     *string `bun:"address_street,nullzero" json:"address_street,omitempty"`
	AddressCity       *string `bun:"address_city,nullzero" json:"address_city,omitempty"`
	AddressPostalCode *string `bun:"address_postal_code,nullzero" json:"address_postal_code,omitempty"`

	Subtotal    float64 `bun:"subtotal,notnull" json:"subtotal"`
	DeliveryFee float64 `bun:"delivery_fee,notnull" json:"delivery_fee"`
	Discount    float64 `bun:"discount,notnull" json:"discount"`
	Tax         float64 `bun:"tax,notnull" json:"tax"`
	Total       float64 `bun:"total,notnull" json:"total"`

	PromoCode string `bun:"promo_code,nullzero" json:"promo_code,omitempty"`
	Notes     string `bun:"notes,nullzero" json:"notes,omitempty"`

	// Customer-requested fulfilment time; nil means ASAP.
	ScheduledAt *time.Time `bun:"scheduled_at,nullzero" json:"scheduled_at,omitempty"`

	// Set when the post-delivery feedback request email goes out, so it is
	// only ever sent once.
	FeedbackRequestedAt *time.Time `bun:"feedback_requested_at,nullzero" json:"-"`

	DeletedAt *time.Time `bun:"deleted_at,nullzero" json:"deleted_at,omitempty"`
	CreatedAt time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time  `bun:"updated_at,nullzero" json:"updated_at,omitempty"`

	Items   []OrderItem          `bun:"rel:has-many,join:order_id=order_id" json:"items,omitempty"`
	History []StatusHistoryEntry `bun:"rel:has-many,join:order_id=order_id" json:"status_history,omitempty"`
}

// IsDelivery is a convenience guard used all over the tracking and
// notification paths.
func (o *Order) IsDelivery() bool {
	return o.OrderType == status.Delivery
}

// Topping is a priced add-on captured on the item at order time.
type Topping struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type OrderItem struct {
	bun.BaseModel `bun:"table:order_items"`

	ItemID    string  `bun:"item_id,pk" json:"item_id"`
	OrderID   string  `bun:"order_id,notnull" json:"order_id"`
	Name      string  `bun:"name,notnull" json:"name"`
	Quantity  int     `bun:"quantity,notnull" json:"quantity"`
	UnitPrice float64 `bun:"unit_price,notnull" json:"unit_price"`

	// Customization is a snapshot, not a live reference to the menu.
	Toppings            []Topping `bun:"toppings,type:jsonb" json:"toppings,omitempty"`
	BrothRichness       string    `bun:"broth_richness,nullzero" json:"broth_richness,omitempty"`
	NoodleFirmness      string    `bun:"noodle_firmness,nullzero" json:"noodle_firmness,omitempty"`
	SpiceLevel          int       `bun:"spice_level" json:"spice_level"`
	SpecialInstructions string    `bun:"special_instructions,nullzero" json:"special_instructions,omitempty"`
}

// LineTotal is unit price plus toppings, times quantity.
func (i OrderItem) LineTotal() float64 {
	price := i.UnitPrice
	for _, t := range i.Toppings {
		price += t.Price
	}
	return price * float64(i.Quantity)
}
