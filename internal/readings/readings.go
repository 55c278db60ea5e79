// Package readings keeps the telemetry readings log, most recent first.
package readings

import (
	"time"

	log "github.com/sirupsen/logrus"

	"obd-telemetry-log/internal/db"
	"obd-telemetry-log/internal/models"
	"obd-telemetry-log/internal/owner"
	"obd-telemetry-log/internal/persist"
)

const (
	// DefaultKey is the store key of the readings log.
	DefaultKey = "readings"

	// Window is the span covered by Past5Minutes.
	Window = 5 * time.Minute
)

// Log is the readings log. Mutations must run on the owning goroutine.
type Log struct {
	log   *persist.Log[models.DataPoint]
	owner *owner.Thread
	now   func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		l.now = now
	}
}

// New returns the readings log stored under key.
func New(store db.Store, key string, th *owner.Thread, opts ...Option) *Log {
	l := &Log{
		log:   persist.NewLog[models.DataPoint](store, key),
		owner: th,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AddReading prepends d when its time is present and not earlier than the
// current most recent reading. Rejected readings are logged and dropped;
// accepted is false and err nil. err is set only when the store read or
// write fails, in which case the stored log is left untouched.
func (l *Log) AddReading(d models.DataPoint) (accepted bool, err error) {
	l.owner.MustOwn("AddReading")

	readings, err := l.log.Read()
	if err != nil {
		return false, err
	}
	mostRecent := time.Unix(0, 0)
	if len(readings) > 0 && readings[0].HasTime() {
		mostRecent = *readings[0].Time
	}
	if !d.HasTime() || d.Time.Before(mostRecent) {
		entry := log.WithField("mostRecent", mostRecent)
		if d.HasTime() {
			entry = entry.WithField("time", *d.Time)
		}
		entry.Warn("ignoring reading with earlier time than previous most recent reading")
		return false, nil
	}

	if err := l.log.Save(append([]models.DataPoint{d}, readings...)); err != nil {
		return false, err
	}
	return true, nil
}

// Readings returns the full log, most recent first.
func (l *Log) Readings() []models.DataPoint {
	return l.log.Load()
}

// Recent returns at most n of the most recent readings. n <= 0 returns all.
func (l *Log) Recent(n int) []models.DataPoint {
	readings := l.log.Load()
	if n <= 0 || n >= len(readings) {
		return readings
	}
	return readings[:n]
}

// Past5Minutes returns the readings taken within Window of now.
func (l *Log) Past5Minutes() []models.DataPoint {
	return l.Within(Window)
}

// Within returns the leading readings whose time is no earlier than
// now - window, most recent first. Readings without a time are skipped; the
// scan stops at the first reading older than the cutoff.
func (l *Log) Within(window time.Duration) []models.DataPoint {
	readings := l.log.Load()
	cutoff := l.now().Add(-window)

	result := []models.DataPoint{}
	for _, r := range readings {
		if !r.HasTime() {
			continue
		}
		if r.Time.Before(cutoff) {
			break
		}
		result = append(result, r)
	}
	return result
}

// Clear empties the log.
func (l *Log) Clear() error {
	l.owner.MustOwn("Clear")
	return l.log.Save([]models.DataPoint{})
}
