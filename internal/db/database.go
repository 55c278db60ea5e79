package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// Store is a durable key-value store. Get and Set are atomic for a single key;
// a failed Set leaves the previous value intact.
type Store interface {
	// Get returns the value stored under key. ok is false when the key has
	// never been set.
	Get(key string) (value []byte, ok bool, err error)
	// Set overwrites the value stored under key.
	Set(key string, value []byte) error
}

// Database wraps the SQLite connection
type Database struct {
	conn *sql.DB
}

// New creates a new database connection
func New(dbPath string) (*Database, error) {
	// Enable WAL mode and full fsync on commit via connection string
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=FULL", dbPath)

	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", dbPath)
	}

	// SQLite works best with single writer
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	db := &Database{conn: conn}

	if err := db.initialize(); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to initialize database")
	}

	return db, nil
}

// initialize creates the key-value table
func (db *Database) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.conn.Close()
}

// Get retrieves the value stored under key
func (db *Database) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := db.conn.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to read key %q", key)
	}
	return value, true, nil
}

// Set overwrites the value stored under key in a single statement
func (db *Database) Set(key string, value []byte) error {
	query := `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if value == nil {
		value = []byte{}
	}
	if _, err := db.conn.Exec(query, key, value, time.Now().UTC()); err != nil {
		return errors.Wrapf(err, "failed to write key %q", key)
	}
	return nil
}

// Keys returns every key that has been set, in lexical order
func (db *Database) Keys() ([]string, error) {
	rows, err := db.conn.Query(`SELECT key FROM kv ORDER BY key`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list keys")
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
