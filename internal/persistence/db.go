// Package persistence stores finished runs in SQLite for later browsing.
// Nothing here is touched while a replicate is stepping.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/forage-sim/internal/engine"
	"github.com/talgya/forage-sim/internal/stats"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// DB wraps a SQLite connection holding stored runs.
type DB struct {
	conn *sqlx.DB
}

// RunRow is one stored replicate.
type RunRow struct {
	ID         string    `db:"id" json:"id"`
	Replicate  int       `db:"replicate" json:"replicate"`
	Seed       int64     `db:"seed" json:"seed"`
	Method     string    `db:"method" json:"method"`
	Steps      int       `db:"steps" json:"steps"`
	Agents     int       `db:"agents" json:"agents"`
	Units      int       `db:"units" json:"units"`
	TotalCatch float64   `db:"total_catch" json:"total_catch"`
	Gini       float64   `db:"gini" json:"gini"`
	FinalStock float64   `db:"final_stock" json:"final_stock"`
	Scenario   string    `db:"scenario" json:"scenario,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// StepRow is the fleet catch and total stock after one step.
type StepRow struct {
	Time       string  `db:"time" json:"time"`
	Catch      float64 `db:"catch" json:"catch"`
	TotalStock float64 `db:"total_stock" json:"total_stock"`
}

// UnitRow is one unit's state after one step.
type UnitRow struct {
	Time         string  `db:"time" json:"time"`
	Unit         string  `db:"unit" json:"unit"`
	Stock        float64 `db:"stock" json:"stock"`
	Visits       int     `db:"visits" json:"visits"`
	Realized     float64 `db:"realized" json:"realized"`
	Hypothetical float64 `db:"hypothetical" json:"hypothetical"`
}

// AgentRow is one agent's totals over a replicate.
type AgentRow struct {
	Agent        string  `db:"agent" json:"agent"`
	Subfleet     string  `db:"subfleet" json:"subfleet"`
	Group        string  `db:"grp" json:"group"`
	Catchability float64 `db:"catchability" json:"catchability"`
	TotalCatch   float64 `db:"total_catch" json:"total_catch"`
	Visits       int     `db:"visits" json:"visits"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		replicate INTEGER NOT NULL,
		seed INTEGER NOT NULL,
		method TEXT NOT NULL,
		steps INTEGER NOT NULL,
		agents INTEGER NOT NULL,
		units INTEGER NOT NULL,
		total_catch REAL NOT NULL,
		gini REAL NOT NULL,
		final_stock REAL NOT NULL,
		scenario TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS step_catch (
		run_id TEXT NOT NULL REFERENCES runs(id),
		time TEXT NOT NULL,
		catch REAL NOT NULL,
		total_stock REAL NOT NULL,
		PRIMARY KEY (run_id, time)
	);

	CREATE TABLE IF NOT EXISTS unit_stock (
		run_id TEXT NOT NULL REFERENCES runs(id),
		time TEXT NOT NULL,
		unit TEXT NOT NULL,
		stock REAL NOT NULL,
		visits INTEGER NOT NULL,
		realized REAL NOT NULL,
		hypothetical REAL NOT NULL,
		PRIMARY KEY (run_id, time, unit)
	);

	CREATE TABLE IF NOT EXISTS agent_totals (
		run_id TEXT NOT NULL REFERENCES runs(id),
		agent TEXT NOT NULL,
		subfleet TEXT NOT NULL,
		grp TEXT NOT NULL,
		catchability REAL NOT NULL,
		total_catch REAL NOT NULL,
		visits INTEGER NOT NULL,
		PRIMARY KEY (run_id, agent)
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveRun stores one replicate in a single transaction and returns its new
// run id.
func (db *DB) SaveRun(res *engine.Result, scenario []byte, created time.Time) (string, error) {
	id := uuid.NewString()
	sum := stats.Summarize(res)

	tx, err := db.conn.Beginx()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO runs
		(id, replicate, seed, method, steps, agents, units, total_catch, gini, final_stock, scenario, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, res.Replicate, res.Seed, res.Method, sum.Steps, sum.Agents, sum.Units,
		sum.TotalCatch, sum.Gini, sum.FinalStock, string(scenario), created.UTC())
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	if err := saveSteps(tx, id, res); err != nil {
		return "", fmt.Errorf("save steps: %w", err)
	}
	if err := saveUnits(tx, id, res); err != nil {
		return "", fmt.Errorf("save units: %w", err)
	}
	if err := saveAgents(tx, id, res); err != nil {
		return "", fmt.Errorf("save agents: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	slog.Info("run saved", "id", id, "replicate", res.Replicate, "steps", sum.Steps)
	return id, nil
}

func saveSteps(tx *sqlx.Tx, id string, res *engine.Result) error {
	stmt, err := tx.Preparex(`INSERT INTO step_catch (run_id, time, catch, total_stock) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range res.Steps {
		total := 0.0
		for _, v := range res.Env.Stock[t] {
			total += v
		}
		if _, err := stmt.Exec(id, string(t), res.Fleet.Catch[t], total); err != nil {
			return err
		}
	}
	return nil
}

func saveUnits(tx *sqlx.Tx, id string, res *engine.Result) error {
	stmt, err := tx.Preparex(`INSERT INTO unit_stock
		(run_id, time, unit, stock, visits, realized, hypothetical)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range res.Steps {
		for _, u := range res.Env.UnitIDs() {
			rec := res.Env.Corrections[t][u]
			_, err := stmt.Exec(id, string(t), string(u), res.Env.Stock[t][u], res.Env.Visits[t][u],
				rec.Realized, rec.Hypothetical)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func saveAgents(tx *sqlx.Tx, id string, res *engine.Result) error {
	stmt, err := tx.Preparex(`INSERT INTO agent_totals
		(run_id, agent, subfleet, grp, catchability, total_catch, visits)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range res.Fleet.Agents {
		visits := 0
		for _, n := range a.UnitVisits {
			visits += n
		}
		if _, err := stmt.Exec(id, string(a.ID), a.Subfleet, a.Group, a.Catchability, a.TotalCatch, visits); err != nil {
			return err
		}
	}
	return nil
}

// ListRuns returns stored runs, newest first, without their scenario text.
func (db *DB) ListRuns(limit int) ([]RunRow, error) {
	var runs []RunRow
	err := db.conn.Select(&runs, `SELECT id, replicate, seed, method, steps, agents, units,
		total_catch, gini, final_stock, '' AS scenario, created_at
		FROM runs ORDER BY created_at DESC, replicate ASC LIMIT ?`, limit)
	return runs, err
}

// GetRun returns one run including its scenario.
func (db *DB) GetRun(id string) (RunRow, error) {
	var run RunRow
	err := db.conn.Get(&run, "SELECT * FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return run, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return run, err
}

// RunSteps returns a run's per-step catch in step order.
func (db *DB) RunSteps(id string) ([]StepRow, error) {
	var rows []StepRow
	err := db.conn.Select(&rows,
		"SELECT time, catch, total_stock FROM step_catch WHERE run_id = ? ORDER BY time", id)
	return rows, err
}

// RunUnits returns a run's per-step unit state in step then unit order.
func (db *DB) RunUnits(id string) ([]UnitRow, error) {
	var rows []UnitRow
	err := db.conn.Select(&rows, `SELECT time, unit, stock, visits, realized, hypothetical
		FROM unit_stock WHERE run_id = ? ORDER BY time, unit`, id)
	return rows, err
}

// RunAgents returns a run's agent totals in agent order.
func (db *DB) RunAgents(id string) ([]AgentRow, error) {
	var rows []AgentRow
	err := db.conn.Select(&rows, `SELECT agent, subfleet, grp, catchability, total_catch, visits
		FROM agent_totals WHERE run_id = ? ORDER BY agent`, id)
	return rows, err
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}
