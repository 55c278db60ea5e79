// Package simulate produces synthetic readings so the logs can be exercised
// without an OBD-II adapter attached.
package simulate

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"obd-telemetry-log/internal/models"
)

const (
	maxRPM       = 1800
	rpmStep      = 100
	maxWaterTemp = 120
	waterStep    = 5
	fuelStep     = 0.1
	coordStep    = 0.00001
)

// Recorder accepts readings on the owning goroutine.
type Recorder interface {
	AddReading(models.DataPoint) (bool, error)
}

// Generator sweeps engine values up and down and drains fuel.
type Generator struct {
	Interval     time.Duration
	TankCapacity *float64

	now       func() time.Time
	rpm       int
	rpmDown   bool
	waterTemp int
	waterDown bool
	fuelLevel float64
	latitude  float64
	longitude float64
}

// NewGenerator returns a generator emitting one reading per interval.
func NewGenerator(interval time.Duration, tankCapacity *float64) *Generator {
	return &Generator{
		Interval:     interval,
		TankCapacity: tankCapacity,
		now:          time.Now,
		fuelLevel:    100,
		latitude:     45.5017,
		longitude:    -73.5673,
	}
}

// Next builds the next reading and advances the sweep.
func (g *Generator) Next() models.DataPoint {
	d := models.NewDataPoint(models.Sample{
		Latitude:     models.Float(g.latitude),
		Longitude:    models.Float(g.longitude),
		Time:         models.Time(g.now()),
		RPM:          models.Int(g.rpm),
		FuelRate:     models.Float(float64(g.rpm) / 300),
		WaterTemp:    models.Int(g.waterTemp),
		FuelLevel:    models.Float(g.fuelLevel),
		EngineLoad:   models.Float(float64(g.rpm) * 100 / maxRPM),
		TankCapacity: g.TankCapacity,
	})

	if g.rpmDown {
		g.rpm -= rpmStep
	} else {
		g.rpm += rpmStep
	}
	if g.rpm == maxRPM {
		g.rpmDown = true
	} else if g.rpm == 0 {
		g.rpmDown = false
	}

	if g.waterDown {
		g.waterTemp -= waterStep
	} else {
		g.waterTemp += waterStep
	}
	if g.waterTemp == maxWaterTemp {
		g.waterDown = true
	} else if g.waterTemp == 0 {
		g.waterDown = false
	}

	g.fuelLevel -= fuelStep
	if g.fuelLevel < 0 {
		g.fuelLevel = 100
	}
	g.latitude += coordStep
	g.longitude += coordStep

	return d
}

// Run sends readings on sendChan until ctx is done. Readings are dropped
// when the channel is full. A non-positive Interval sends nothing.
func (g *Generator) Run(ctx context.Context, sendChan chan<- models.DataPoint) {
	if g.Interval <= 0 {
		log.WithField("interval", g.Interval).Error("simulation interval must be positive")
		return
	}
	ticker := time.NewTicker(g.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
		select {
		case sendChan <- g.Next():
		default:
		}
	}
}

// Drain feeds readings from recvChan into rec until ctx is done or recvChan
// is closed. It must run on the goroutine that owns rec.
func Drain(ctx context.Context, recvChan <-chan models.DataPoint, rec Recorder) (accepted, rejected int, err error) {
	for {
		select {
		case <-ctx.Done():
			return accepted, rejected, nil
		case d, ok := <-recvChan:
			if !ok {
				return accepted, rejected, nil
			}
			added, addErr := rec.AddReading(d)
			if addErr != nil {
				return accepted, rejected, addErr
			}
			if added {
				accepted++
			} else {
				rejected++
			}
			log.WithField("accepted", accepted).Debug("simulated reading")
		}
	}
}
