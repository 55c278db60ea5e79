package models

import "time"

// TankInfo is a manually logged fuel/tank calibration event.
type TankInfo struct {
	FuelAdded       *float64 `json:"fuelAdded,omitempty"`       // L
	FuelLevel       *float64 `json:"fuelLevel,omitempty"`       // %, 0-100
	OdometerReading *float64 `json:"odometerReading,omitempty"` // km
	Note            string   `json:"note,omitempty"`
}

// TankEntry wraps a logged payload with its sequential id and creation time.
type TankEntry[T any] struct {
	TankInfo T         `json:"tankInfo"`
	ID       int       `json:"id"`
	Time     time.Time `json:"time"`
}
