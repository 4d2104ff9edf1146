package models

import (
	"time"

	"github.com/uptrace/bun"
)

type DiscountType string

const (
	DiscountPercent DiscountType = "PERCENT"
	DiscountFixed   DiscountType = "FIXED"
)

type PromoCode struct {
	bun.BaseModel `bun:"table:promo_codes"`

	Code          string       `bun:"code,pk" json:"code"`
	DiscountType  DiscountType `bun:"discount_type,notnull" json:"discount_type"`
	DiscountValue float64      `bun:"discount_value,notnull" json:"discount_value"`
	FreeDelivery  bool         `bun:"free_delivery" json:"free_delivery"`
	MinOrderTotal float64      `bun:"min_order_total" json:"min_order_total"`
	Active        bool         `bun:"active,notnull" json:"active"`
	ExpiresAt     *time.Time   `bun:"expires_at,nullzero" json:"expires_at,omitempty"`
}

// DiscountFor computes the discount amount for an order subtotal, never
// exceeding the subtotal itself. The caller is responsible for checking
// validity first.
func (p PromoCode) DiscountFor(subtotal float64) float64 {
	var discount float64
	switch p.DiscountType {
	case DiscountPercent:
		discount = subtotal * p.DiscountValue / 100
	case DiscountFixed:
		discount = p.DiscountValue
	default:
		return 0
	}
	if discount > subtotal {
		return subtotal
	}
	return discount
}

type PromoValidationRequest struct {
	Code       string  `json:"code"`
	OrderTotal float64 `json:"orderTotal"`
}

type PromoValidationResponse struct {
	PromoCode      PromoCode `json:"promoCode"`
	DiscountAmount float64   `json:"discountAmount"`
}
