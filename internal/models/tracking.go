package models

import (
	"time"
)

// TimelineStep is one rung of the customer-facing progress ladder, derived
// from status history on every read.
type TimelineStep struct {
	Label       string     `json:"label"`
	Completed   bool       `json:"completed"`
	Active      bool       `json:"active"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TrackingView is the projection served to the polling tracking page. It is
// recomputed from (order, history, driver, now) and carries no state of its
// own.
type TrackingView struct {
	Progress         int            `json:"progress"`
	Timeline         []TimelineStep `json:"timeline"`
	EstimatedMinutes *EstimateRange `json:"estimated_minutes,omitempty"`
	ArrivingSoon     bool           `json:"arriving_soon"`
	StatusMessage    string         `json:"status_message"`
	Driver           *Driver        `json:"driver,omitempty"`
}

type EstimateRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// TrackingData is the wire shape of GET /api/orders/tracking. PickupQR is a
// base64 PNG, attached at the handler layer once a pickup order is READY.
type TrackingData struct {
	Order    *Order        `json:"order"`
	Tracking *TrackingView `json:"tracking"`
	PickupQR string        `json:"pickup_qr,omitempty"`
}
