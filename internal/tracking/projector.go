package tracking

import (
	"time"

	"ramen-orders/internal/models"
	"ramen-orders/internal/status"
)

// Estimate windows for ASAP orders, in minutes from order creation.
const (
	deliveryWindowMin = 25
	deliveryWindowMax = 35
	pickupWindowMin   = 15
	pickupWindowMax   = 20
)

// Projector derives the customer-facing tracking view. Project is a pure
// function of its inputs and is safe to call on every poll.
type Projector struct{}

func NewProjector() *Projector {
	return &Projector{}
}

// Project builds the tracking view for an order. The history slice must be
// ordered by creation time; driver may be nil.
func (p *Projector) Project(order *models.Order, driver *models.Driver, now time.Time) *models.TrackingView {
	view := &models.TrackingView{
		Progress:      status.Progress(order.Status, order.OrderType),
		Timeline:      buildTimeline(order),
		StatusMessage: status.Message(order.Status),
	}

	view.EstimatedMinutes, view.ArrivingSoon = Estimate(order, now)

	// Driver details are delivery-only and only while the order is staged
	// for or out on delivery.
	if order.IsDelivery() && (order.Status == status.Ready || order.Status == status.OutForDelivery) {
		view.Driver = driver
	}

	return view
}

func buildTimeline(order *models.Order) []models.TimelineStep {
	steps := status.TimelineSteps(order.OrderType)
	timeline := make([]models.TimelineStep, 0, len(steps))

	// Map each step to the first history entry at that status, if reached.
	reachedAt := make(map[status.OrderStatus]time.Time)
	for _, entry := range order.History {
		if _, seen := reachedAt[entry.Status]; !seen {
			reachedAt[entry.Status] = entry.CreatedAt
		}
	}
	// PICKED_UP satisfies the Delivered/terminal rung for pickup orders; its
	// rank already matches in status.AtOrPast.
	current := order.Status

	for _, step := range steps {
		ts := models.TimelineStep{
			Label: status.StepLabel(step, order.OrderType),
		}
		if t, ok := reachedAt[step]; ok {
			tt := t
			ts.CompletedAt = &tt
		}
		switch {
		case current == step || (step == status.Delivered && current == status.PickedUp):
			ts.Active = true
			ts.Completed = status.IsTerminal(current)
		case status.AtOrPast(current, step):
			ts.Completed = true
		}
		// Pickup orders mark READY as the final, active-and-complete rung
		// once picked up.
		if order.OrderType == status.Pickup && step == status.Ready && current == status.PickedUp {
			ts.Completed = true
			ts.Active = false
		}
		timeline = append(timeline, ts)
	}

	return timeline
}

// Estimate returns the remaining-minutes window, or nil with arrivingSoon
// set once the window has elapsed. Completed and cancelled orders get
// neither.
func Estimate(order *models.Order, now time.Time) (*models.EstimateRange, bool) {
	if status.IsTerminal(order.Status) || order.Status == status.Cancelled {
		return nil, false
	}

	// Scheduled orders: minutes until the requested time.
	if order.ScheduledAt != nil {
		remaining := int(order.ScheduledAt.Sub(now).Minutes())
		if remaining <= 0 {
			return nil, true
		}
		return &models.EstimateRange{Min: remaining, Max: remaining}, false
	}

	windowMin, windowMax := pickupWindowMin, pickupWindowMax
	if order.IsDelivery() {
		windowMin, windowMax = deliveryWindowMin, deliveryWindowMax
	}

	elapsed := int(now.Sub(order.CreatedAt).Minutes())
	lo := windowMin - elapsed
	hi := windowMax - elapsed
	if hi <= 0 {
		// Window has passed; never report negative minutes.
		return nil, true
	}
	if lo < 0 {
		lo = 0
	}
	return &models.EstimateRange{Min: lo, Max: hi}, false
}
