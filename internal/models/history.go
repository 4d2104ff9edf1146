package models

import (
	"time"

	"github.com/uptrace/bun"

	"ramen-orders/internal/status"
)

// StatusHistoryEntry is the append-only audit record of a status having been
// reached. Rows are never edited or deleted; the tracking timeline is derived
// from them on every read.
type StatusHistoryEntry struct {
	bun.BaseModel `bun:"table:status_history"`

	EntryID   string             `bun:"entry_id,pk" json:"entry_id"`
	OrderID   string             `bun:"order_id,notnull" json:"order_id"`
	Status    status.OrderStatus `bun:"status,notnull" json:"status"`
	Note      string             `bun:"note,nullzero" json:"note,omitempty"`
	ChangedBy string             `bun:"changed_by,nullzero" json:"changed_by,omitempty"`
	CreatedAt time.Time          `bun:"created_at,notnull" json:"created_at"`
}

// OrderNote is staff-only annotation, never surfaced to the customer.
type OrderNote struct {
	bun.BaseModel `bun:"table:order_notes"`

	NoteID    string    `bun:"note_id,pk" json:"note_id"`
	OrderID   string    `bun:"order_id,notnull" json:"order_id"`
	Content   string    `bun:"content,notnull" json:"content"`
	Author    string    `bun:"author,notnull" json:"author"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}
