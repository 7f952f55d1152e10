// Package history persists status samples and power transitions to SQLite
// so operators can inspect what a UPS did while nobody was watching.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/tbarrett/upswatch/internal/status"
)

// Sample is one recorded poll snapshot.
type Sample struct {
	ID             string             `json:"id"`
	Device         string             `json:"device"`
	Power          status.PowerState  `json:"power"`
	Charge         status.ChargeState `json:"charge"`
	Flags          []status.Flag      `json:"flags"`
	BatteryCharge  *float64           `json:"battery_charge,omitempty"`
	Load           *float64           `json:"load,omitempty"`
	RuntimeSeconds *int64             `json:"runtime_seconds,omitempty"`
	SampledAt      time.Time          `json:"sampled_at"`
}

// Transition is one recorded power state change.
type Transition struct {
	ID         string            `json:"id"`
	Device     string            `json:"device"`
	From       status.PowerState `json:"from"`
	To         status.PowerState `json:"to"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Store is the SQLite-backed history log.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database at path, applies the
// recommended pragmas, and runs pending migrations. Use ":memory:" for an
// ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	// SQLite performs best with a single write connection. WAL enables
	// concurrent readers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", path, err)
	}

	// modernc.org/sqlite requires SQL statements, not DSN params.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migration is one schema step. Migrations run in ascending version order
// and are tracked in the _migrations table.
type migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

func migrations() []migration {
	return []migration{
		{
			Version:     1,
			Description: "create samples and transitions tables",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE IF NOT EXISTS samples (
						id              TEXT PRIMARY KEY,
						device          TEXT NOT NULL,
						power           TEXT NOT NULL,
						charge          TEXT NOT NULL,
						flags           TEXT NOT NULL DEFAULT '[]',
						battery_charge  REAL,
						load            REAL,
						runtime_seconds INTEGER,
						sampled_at      DATETIME NOT NULL
					);
					CREATE INDEX IF NOT EXISTS idx_samples_device_time
						ON samples(device, sampled_at DESC);

					CREATE TABLE IF NOT EXISTS transitions (
						id          TEXT PRIMARY KEY,
						device      TEXT NOT NULL,
						from_state  TEXT NOT NULL,
						to_state    TEXT NOT NULL,
						occurred_at DATETIME NOT NULL
					);
					CREATE INDEX IF NOT EXISTS idx_transitions_device_time
						ON transitions(device, occurred_at DESC);
				`)
				return err
			},
		},
	}
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS _migrations (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	for _, m := range migrations() {
		var count int
		err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM _migrations WHERE version = ?", m.Version,
		).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
	}
	return nil
}

func (s *Store) applyMigration(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := m.Up(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO _migrations (version, description) VALUES (?, ?)",
		m.Version, m.Description,
	); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// InsertSample records one status snapshot. A missing ID is generated.
func (s *Store) InsertSample(ctx context.Context, sample *Sample) error {
	if sample.ID == "" {
		sample.ID = uuid.New().String()
	}
	if sample.SampledAt.IsZero() {
		sample.SampledAt = time.Now().UTC()
	}

	flagsJSON, _ := json.Marshal(sample.Flags)
	if sample.Flags == nil {
		flagsJSON = []byte("[]")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO samples (
			id, device, power, charge, flags,
			battery_charge, load, runtime_seconds, sampled_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sample.ID, sample.Device, string(sample.Power), string(sample.Charge), string(flagsJSON),
		sample.BatteryCharge, sample.Load, sample.RuntimeSeconds, sample.SampledAt,
	)
	if err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}

// InsertTransition records one power state change.
func (s *Store) InsertTransition(ctx context.Context, tr *Transition) error {
	if tr.ID == "" {
		tr.ID = uuid.New().String()
	}
	if tr.OccurredAt.IsZero() {
		tr.OccurredAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transitions (id, device, from_state, to_state, occurred_at)
		VALUES (?, ?, ?, ?, ?)`,
		tr.ID, tr.Device, string(tr.From), string(tr.To), tr.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

// ListSamples returns the most recent samples for a device, newest first.
func (s *Store) ListSamples(ctx context.Context, device string, limit int) ([]Sample, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device, power, charge, flags,
			battery_charge, load, runtime_seconds, sampled_at
		FROM samples WHERE device = ?
		ORDER BY sampled_at DESC LIMIT ?`, device, limit)
	if err != nil {
		return nil, fmt.Errorf("list samples: %w", err)
	}
	defer rows.Close()

	samples := []Sample{}
	for rows.Next() {
		var sm Sample
		var power, charge, flagsJSON string
		if err := rows.Scan(
			&sm.ID, &sm.Device, &power, &charge, &flagsJSON,
			&sm.BatteryCharge, &sm.Load, &sm.RuntimeSeconds, &sm.SampledAt,
		); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		sm.Power = status.PowerState(power)
		sm.Charge = status.ChargeState(charge)
		_ = json.Unmarshal([]byte(flagsJSON), &sm.Flags)
		samples = append(samples, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return samples, nil
}

// ListTransitions returns the most recent power transitions for a device,
// newest first.
func (s *Store) ListTransitions(ctx context.Context, device string, limit int) ([]Transition, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device, from_state, to_state, occurred_at
		FROM transitions WHERE device = ?
		ORDER BY occurred_at DESC LIMIT ?`, device, limit)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	transitions := []Transition{}
	for rows.Next() {
		var tr Transition
		var from, to string
		if err := rows.Scan(&tr.ID, &tr.Device, &from, &to, &tr.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		tr.From = status.PowerState(from)
		tr.To = status.PowerState(to)
		transitions = append(transitions, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return transitions, nil
}

// Prune deletes samples and transitions older than cutoff and returns the
// number of rows removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM samples WHERE sampled_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune samples: %w", err)
	}
	n, _ := res.RowsAffected()

	res, err = s.db.ExecContext(ctx,
		"DELETE FROM transitions WHERE occurred_at < ?", cutoff)
	if err != nil {
		return n, fmt.Errorf("prune transitions: %w", err)
	}
	m, _ := res.RowsAffected()
	return n + m, nil
}
