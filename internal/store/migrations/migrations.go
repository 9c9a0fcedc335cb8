package migrations

import (
	"database/sql"
	"fmt"
	"log"
)

// Migration is one schema change with its inverse.
type Migration struct {
	Name string
	Up   string
	Down string
}

// All lists every migration in apply order.
var All = []*Migration{
	HistoricalDelays,
	ServiceStats,
}

// Runner applies migrations against a Postgres handle, recording applied
// names in a schema_migrations table.
type Runner struct {
	db *sql.DB
}

// NewRunner creates a Runner on db.
func NewRunner(db *sql.DB) *Runner {
	return &Runner{db: db}
}

func (r *Runner) ensureTable() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func (r *Runner) applied() (map[string]bool, error) {
	rows, err := r.db.Query(`SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names[name] = true
	}
	return names, rows.Err()
}

func (r *Runner) runInTx(stmt, record string, args ...interface{}) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.Exec(stmt); err != nil {
		return err
	}
	if _, err := tx.Exec(record, args...); err != nil {
		return err
	}
	return tx.Commit()
}

// Apply runs every pending migration in order.
func (r *Runner) Apply(list []*Migration) error {
	if err := r.ensureTable(); err != nil {
		return fmt.Errorf("failed to initialize schema_migrations: %w", err)
	}

	done, err := r.applied()
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	for _, m := range list {
		if done[m.Name] {
			continue
		}
		if err := r.runInTx(m.Up, `INSERT INTO schema_migrations (name) VALUES ($1)`, m.Name); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.Name, err)
		}
		log.Printf("Applied migration: %s", m.Name)
	}
	return nil
}

// Revert rolls back the most recently applied migration from list.
func (r *Runner) Revert(list []*Migration) error {
	done, err := r.applied()
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	for i := len(list) - 1; i >= 0; i-- {
		m := list[i]
		if !done[m.Name] {
			continue
		}
		if err := r.runInTx(m.Down, `DELETE FROM schema_migrations WHERE name = $1`, m.Name); err != nil {
			return fmt.Errorf("failed to revert migration %s: %w", m.Name, err)
		}
		log.Printf("Reverted migration: %s", m.Name)
		return nil
	}
	return fmt.Errorf("no migrations to revert")
}
