package models

// Driver is ephemeral delivery metadata, referenced only while an order is
// READY or OUT_FOR_DELIVERY. It is not owned by the order record.
type Driver struct {
	Name          string          `json:"name"`
	Phone         string          `json:"phone"`
	Vehicle       string          `json:"vehicle"`
	LicensePlate  string          `json:"license_plate"`
	Rating        float64         `json:"rating"`
	DeliveryCount int             `json:"delivery_count"`
	Location      *DriverLocation `json:"location,omitempty"`
}

type DriverLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
