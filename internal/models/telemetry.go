package models

import "time"

// Sample holds the raw inputs for a single telemetry sample. Every field is
// optional; nil means the value was not available from the device.
type Sample struct {
	Latitude  *float64
	Longitude *float64
	Elevation *float64 // meters
	Time      *time.Time

	RPM        *int
	FuelRate   *float64 // L/h
	WaterTemp  *int     // °C
	FuelLevel  *float64 // %, 0-100
	EngineLoad *float64 // %

	TankCapacity    *float64 // L, set by user
	OdometerReading *float64 // km, calculated externally
}

// DataPoint is one OBD-II/GPS telemetry sample plus its derived fields.
// Values are built once by NewDataPoint and not modified afterwards.
type DataPoint struct {
	Latitude  *float64   `json:"latitude,omitempty"`
	Longitude *float64   `json:"longitude,omitempty"`
	Elevation *float64   `json:"elevation,omitempty"`
	Time      *time.Time `json:"time,omitempty"`

	RPM        *int     `json:"rpm,omitempty"`
	FuelRate   *float64 `json:"fuelRate,omitempty"`
	WaterTemp  *int     `json:"waterTemp,omitempty"`
	FuelLevel  *float64 `json:"fuelLevel,omitempty"`
	EngineLoad *float64 `json:"engineLoad,omitempty"`

	TankCapacity    *float64 `json:"tankCapacity,omitempty"`
	OdometerReading *float64 `json:"odometerReading,omitempty"`

	// FuelInTank is tankCapacity * fuelLevel / 100 in liters, present only
	// when both inputs were present at construction.
	FuelInTank *float64 `json:"fuelInTank,omitempty"`
}

// NewDataPoint builds a DataPoint from a sample. It never fails.
func NewDataPoint(s Sample) DataPoint {
	d := DataPoint{
		Latitude:        copyFloat(s.Latitude),
		Longitude:       copyFloat(s.Longitude),
		Elevation:       copyFloat(s.Elevation),
		RPM:             copyInt(s.RPM),
		FuelRate:        copyFloat(s.FuelRate),
		WaterTemp:       copyInt(s.WaterTemp),
		FuelLevel:       copyFloat(s.FuelLevel),
		EngineLoad:      copyFloat(s.EngineLoad),
		TankCapacity:    copyFloat(s.TankCapacity),
		OdometerReading: copyFloat(s.OdometerReading),
	}
	if s.Time != nil {
		d.Time = Time(*s.Time)
	}
	if s.TankCapacity != nil && s.FuelLevel != nil {
		d.FuelInTank = Float(*s.TankCapacity * *s.FuelLevel / 100)
	}
	return d
}

// HasTime reports whether the sample carries a timestamp.
func (d DataPoint) HasTime() bool {
	return d.Time != nil
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}

// Time returns a pointer to t.
func Time(t time.Time) *time.Time {
	return &t
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return Float(*v)
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	return Int(*v)
}
