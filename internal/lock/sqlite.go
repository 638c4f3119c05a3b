package lock

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const leaseSchema = `
CREATE TABLE IF NOT EXISTS leases (
    name TEXT PRIMARY KEY,
    token TEXT NOT NULL,
    expires_at INTEGER NOT NULL
)`

// SQLite implements Locker with lease rows in a SQLite database. Every
// process that opens the same database file shares the leases.
type SQLite struct {
	db    *sql.DB
	ttl   time.Duration
	clock func() time.Time
}

// NewSQLite creates the lease table in db if needed
func NewSQLite(db *sql.DB, ttl time.Duration) (*SQLite, error) {
	if _, err := db.Exec(leaseSchema); err != nil {
		return nil, fmt.Errorf("create lease table: %w", err)
	}
	return &SQLite{db: db, ttl: ttl, clock: time.Now}, nil
}

func (l *SQLite) TryAcquire(ctx context.Context, name string) (Lease, error) {
	now := l.clock()
	token := uuid.New().String()

	// the upsert only overwrites an expired lease
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO leases (name, token, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET token = excluded.token, expires_at = excluded.expires_at
		WHERE leases.expires_at <= ?`,
		name, token, now.Add(l.ttl).UnixNano(), now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if n == 0 {
		return nil, ErrHeld
	}
	return &sqliteLease{db: l.db, name: name, token: token}, nil
}

type sqliteLease struct {
	db    *sql.DB
	name  string
	token string
}

func (l *sqliteLease) Release(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, "DELETE FROM leases WHERE name = ? AND token = ?", l.name, l.token); err != nil {
		return fmt.Errorf("release lock %s: %w", l.name, err)
	}
	return nil
}
