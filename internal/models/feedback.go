package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Review is the post-delivery feedback row. One per order, enforced at the
// service layer and by a unique index on order_id.
type Review struct {
	bun.BaseModel `bun:"table:reviews"`

	ReviewID  string    `bun:"review_id,pk" json:"review_id"`
	OrderID   string    `bun:"order_id,notnull,unique" json:"order_id"`
	Rating    int       `bun:"rating,notnull" json:"rating"`
	Comment   string    `bun:"comment,nullzero" json:"comment,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

type FeedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

type FeedbackResponse struct {
	Review          *Review `json:"review,omitempty"`
	AlreadyReviewed bool    `json:"alreadyReviewed"`
}
