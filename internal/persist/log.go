package persist

import (
	"encoding/json"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"obd-telemetry-log/internal/db"
)

// Log is a named, ordered sequence of T kept under one key of a durable store.
// The whole sequence is read on Load and rewritten on Save.
type Log[T any] struct {
	key   string
	store db.Store
}

// NewLog returns the log stored under key.
func NewLog[T any](store db.Store, key string) *Log[T] {
	return &Log[T]{key: key, store: store}
}

// Key returns the store key backing the log.
func (l *Log[T]) Key() string {
	return l.key
}

// Load returns the current sequence for read-only use. A key that was never
// set, an unreadable store or an undecodable value all yield an empty
// sequence. Load does not mutate anything and may be called from any
// goroutine.
func (l *Log[T]) Load() []T {
	items, err := l.Read()
	if err != nil {
		log.WithField("key", l.key).WithError(err).Error("unable to read log, using empty sequence")
		return []T{}
	}
	return items
}

// Read returns the current sequence, or the store error when the value cannot
// be fetched. Read-modify-write paths use Read so that a failed fetch never
// overwrites the stored history. An undecodable value still yields an empty
// sequence.
func (l *Log[T]) Read() ([]T, error) {
	raw, ok, err := l.store.Get(l.key)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read log %s", l.key)
	}
	if !ok || len(raw) == 0 {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		log.WithField("key", l.key).WithError(err).Error("unable to decode log, using empty sequence")
		return []T{}, nil
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// Save overwrites the persisted sequence.
func (l *Log[T]) Save(items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return errors.Wrapf(err, "unable to encode log %s", l.key)
	}
	if err := l.store.Set(l.key, raw); err != nil {
		return errors.Wrapf(err, "unable to store log %s", l.key)
	}
	return nil
}
