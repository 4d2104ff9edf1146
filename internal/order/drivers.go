package order

import (
	"sync"

	"ramen-orders/internal/models"
)

// DriverRoster tracks which driver is out with which order. Assignments are
// ephemeral dispatch state, not part of the order record, so an in-process
// map is all that is needed.
type DriverRoster struct {
	mu      sync.RWMutex
	byOrder map[string]*models.Driver
}

func NewDriverRoster() *DriverRoster {
	return &DriverRoster{byOrder: make(map[string]*models.Driver)}
}

func (r *DriverRoster) Assign(orderID string, driver models.Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := driver
	r.byOrder[orderID] = &d
}

func (r *DriverRoster) Unassign(orderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byOrder, orderID)
}

// DriverFor returns the assigned driver or nil.
func (r *DriverRoster) DriverFor(orderID string) *models.Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.byOrder[orderID]; ok {
		out := *d
		if d.Location != nil {
			loc := *d.Location
			out.Location = &loc
		}
		return &out
	}
	return nil
}

// UpdateLocation records the driver's live position for the tracking view.
func (r *DriverRoster) UpdateLocation(orderID string, loc models.DriverLocation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.byOrder[orderID]; ok {
		d.Location = &loc
	}
}
