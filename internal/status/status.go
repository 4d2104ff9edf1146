package status

// OrderStatus is the closed set of lifecycle states an order moves through.
type OrderStatus string

const (
	Pending        OrderStatus = "PENDING"
	Confirmed      OrderStatus = "CONFIRMED"
	Preparing      OrderStatus = "PREPARING"
	Ready          OrderStatus = "READY"
	OutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	Delivered      OrderStatus = "DELIVERED"
	PickedUp       OrderStatus = "PICKED_UP"
	Cancelled      OrderStatus = "CANCELLED"
	Refunded       OrderStatus = "REFUNDED"
)

// OrderType selects the fulfilment branch: delivery orders go through
// OUT_FOR_DELIVERY, pickup orders end at PICKED_UP.
type OrderType string

const (
	Delivery OrderType = "DELIVERY"
	Pickup   OrderType = "PICKUP"
)

// transitions is the authoritative edge list. A status missing from the map,
// or mapped to an empty slice, is terminal.
var transitions = map[OrderStatus][]OrderStatus{
	Pending:        {Confirmed, Cancelled},
	Confirmed:      {Preparing, Cancelled},
	Preparing:      {Ready, Cancelled},
	Ready:          {OutForDelivery, PickedUp, Cancelled},
	OutForDelivery: {Delivered, Cancelled},
	Delivered:      {},
	PickedUp:       {},
	Cancelled:      {Refunded},
	Refunded:       {},
}

// Valid reports whether s is one of the known statuses.
func Valid(s OrderStatus) bool {
	_, ok := transitions[s]
	return ok
}

// Next returns the legal target statuses from s.
func Next(s OrderStatus) []OrderStatus {
	next := transitions[s]
	out := make([]OrderStatus, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether from -> to is an edge in the graph.
func CanTransition(from, to OrderStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s has no outgoing edges.
func IsTerminal(s OrderStatus) bool {
	return len(transitions[s]) == 0
}

// Message returns the customer-facing line for a status. The switch is
// exhaustive over the enum so a new status fails loudly here.
func Message(s OrderStatus) string {
	switch s {
	case Pending:
		return "We have received your order"
	case Confirmed:
		return "Your order has been confirmed"
	case Preparing:
		return "Your ramen is being prepared"
	case Ready:
		return "Your order is ready"
	case OutForDelivery:
		return "Your order is on its way"
	case Delivered:
		return "Your order has been delivered. Itadakimasu!"
	case PickedUp:
		return "Your order has been picked up. Itadakimasu!"
	case Cancelled:
		return "Your order has been cancelled"
	case Refunded:
		return "Your order has been refunded"
	default:
		return "Unknown order status"
	}
}

// Progress maps a status to a completion percentage for the given order
// type. The mapping is monotonic along the legal path: for delivery
// PENDING < CONFIRMED < PREPARING < READY < OUT_FOR_DELIVERY < DELIVERED,
// for pickup PENDING < CONFIRMED < PREPARING < READY < PICKED_UP.
func Progress(s OrderStatus, t OrderType) int {
	switch s {
	case Pending:
		return 5
	case Confirmed:
		return 20
	case Preparing:
		return 50
	case Ready:
		if t == Pickup {
			return 90
		}
		return 70
	case OutForDelivery:
		return 85
	case Delivered, PickedUp:
		return 100
	case Cancelled, Refunded:
		return 0
	default:
		return 0
	}
}

// TimelineSteps returns the ordered customer-visible steps for an order
// type. The tracking projector marks each as completed, active or pending.
func TimelineSteps(t OrderType) []OrderStatus {
	if t == Pickup {
		return []OrderStatus{Confirmed, Preparing, Ready}
	}
	return []OrderStatus{Confirmed, Preparing, Ready, Delivered}
}

// StepLabel is the display name of a timeline step, which differs between
// fulfilment branches for READY.
func StepLabel(s OrderStatus, t OrderType) string {
	switch s {
	case Confirmed:
		return "Confirmed"
	case Preparing:
		return "Preparing"
	case Ready:
		if t == Pickup {
			return "Ready for Pickup"
		}
		return "Ready"
	case Delivered:
		return "Delivered"
	case PickedUp:
		return "Picked Up"
	default:
		return string(s)
	}
}

// rank orders statuses along the happy path so "history contains an entry at
// or past this step" is a simple comparison. Cancelled/Refunded sit outside
// the path and rank as zero.
func rank(s OrderStatus) int {
	switch s {
	case Pending:
		return 1
	case Confirmed:
		return 2
	case Preparing:
		return 3
	case Ready:
		return 4
	case OutForDelivery:
		return 5
	case Delivered, PickedUp:
		return 6
	default:
		return 0
	}
}

// AtOrPast reports whether reached is at or beyond step on the happy path.
func AtOrPast(reached, step OrderStatus) bool {
	return rank(reached) != 0 && rank(reached) >= rank(step)
}
