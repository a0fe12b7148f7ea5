// Package datasource persists layout state between runs. The position cache
// keys settled node coordinates by dataset generation, so reopening an
// unchanged dataset resumes the last layout instead of re-settling from
// scratch. A changed dataset hashes to a new generation and simply misses.
package datasource

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/siteatlas/pkg/debug"
	"github.com/vanderheijden86/siteatlas/pkg/model"
)

// PositionCache stores node positions in a SQLite database, one row per
// (generation, id) pair.
type PositionCache struct {
	db   *sql.DB
	path string
}

// OpenPositionCache opens the cache database at path, creating the file and
// schema on first use.
func OpenPositionCache(path string) (*PositionCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open position cache: %w", err)
	}

	// PRAGMAs are per-connection; a single connection keeps them applied.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure position cache: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS node_positions (
			generation TEXT    NOT NULL,
			id         TEXT    NOT NULL,
			x          REAL    NOT NULL,
			y          REAL    NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (generation, id)
		)
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create position cache schema: %w", err)
	}

	return &PositionCache{db: db, path: path}, nil
}

// Close closes the database connection.
func (c *PositionCache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Load returns the saved positions for a dataset generation. An unknown
// generation yields an empty map, not an error.
func (c *PositionCache) Load(generation string) (map[string]model.Point, error) {
	rows, err := c.db.Query(
		`SELECT id, x, y FROM node_positions WHERE generation = ?`, generation)
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	defer rows.Close()

	positions := make(map[string]model.Point)
	for rows.Next() {
		var id string
		var x, y float64
		if err := rows.Scan(&id, &x, &y); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions[id] = model.Point{X: x, Y: y}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}

	debug.Log("position cache: %d positions for generation %s", len(positions), generation)
	return positions, nil
}

// Save upserts positions for a generation in a single transaction.
func (c *PositionCache) Save(generation string, positions map[string]model.Point) error {
	if len(positions) == 0 {
		return nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO node_positions (generation, id, x, y, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(generation, id) DO UPDATE SET
			x = excluded.x, y = excluded.y, updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("prepare save: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixNano()
	for id, p := range positions {
		if _, err := stmt.Exec(generation, id, p.X, p.Y, now); err != nil {
			return fmt.Errorf("save position %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}

	debug.Log("position cache: saved %d positions for generation %s", len(positions), generation)
	return nil
}

// Prune drops every generation except the keep most recently saved ones, so
// the cache does not grow without bound across dataset edits.
func (c *PositionCache) Prune(keep int) error {
	if keep < 1 {
		keep = 1
	}
	_, err := c.db.Exec(`
		DELETE FROM node_positions WHERE generation NOT IN (
			SELECT generation FROM node_positions
			GROUP BY generation
			ORDER BY MAX(updated_at) DESC, generation DESC
			LIMIT ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("prune position cache: %w", err)
	}
	return nil
}
