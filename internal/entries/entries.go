// Package entries keeps the manually logged tank entries, most recent first.
package entries

import (
	"time"

	log "github.com/sirupsen/logrus"

	"obd-telemetry-log/internal/db"
	"obd-telemetry-log/internal/models"
	"obd-telemetry-log/internal/owner"
	"obd-telemetry-log/internal/persist"
)

// DefaultKey is the store key of the entries log.
const DefaultKey = "entries1"

// Log assigns sequential ids to tank payloads of type T and keeps them in a
// persisted log. Log must run on the owning goroutine.
type Log[T any] struct {
	log   *persist.Log[models.TankEntry[T]]
	owner *owner.Thread
	now   func() time.Time
}

// New returns the entries log stored under key.
func New[T any](store db.Store, key string, th *owner.Thread) *Log[T] {
	return &Log[T]{
		log:   persist.NewLog[models.TankEntry[T]](store, key),
		owner: th,
		now:   time.Now,
	}
}

// LatestID returns the id of the most recent entry, or 0 for an empty log.
func (l *Log[T]) LatestID() int {
	return latestID(l.log.Load())
}

func latestID[T any](entries []models.TankEntry[T]) int {
	if len(entries) == 0 {
		return 0
	}
	return entries[0].ID
}

// Log stamps info with the next id and the current time and prepends it.
func (l *Log[T]) Log(info T) (models.TankEntry[T], error) {
	l.owner.MustOwn("Log")

	entries, err := l.log.Read()
	if err != nil {
		return models.TankEntry[T]{}, err
	}
	entry := models.TankEntry[T]{
		TankInfo: info,
		ID:       latestID(entries) + 1,
		Time:     l.now(),
	}
	if err := l.log.Save(append([]models.TankEntry[T]{entry}, entries...)); err != nil {
		return models.TankEntry[T]{}, err
	}
	log.WithField("id", entry.ID).Debug("logged tank entry")
	return entry, nil
}

// Entries returns every entry, most recent first.
func (l *Log[T]) Entries() []models.TankEntry[T] {
	return l.log.Load()
}
