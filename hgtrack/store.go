// Package hgtrack records experiments in an embedded
// DuckDB database.
//
// A Store holds experiments, each with a list of runs.
// Runs carry parameters, step-indexed metrics and
// artifacts, which are copied into a directory tree next
// to the database.
package hgtrack

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"
)

// DBFile is the name of the database inside a store's
// root directory.
const DBFile = "tracking.duckdb"

// ErrNoRuns is returned when a query matches no runs.
var ErrNoRuns = errors.New("no matching runs")

// A Tracker receives the parameters, metrics and
// artifacts of a single run.
type Tracker interface {
	LogParams(params map[string]string) error
	LogMetric(key string, value float64, step int) error
	LogArtifact(path string) error
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS experiments (
		id BIGINT NOT NULL,
		name VARCHAR NOT NULL,
		created TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS runs (
		id BIGINT NOT NULL,
		uuid VARCHAR NOT NULL,
		experiment_id BIGINT NOT NULL,
		description VARCHAR NOT NULL,
		status VARCHAR NOT NULL,
		started TIMESTAMP NOT NULL,
		ended TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS params (
		run_id BIGINT NOT NULL,
		key VARCHAR NOT NULL,
		value VARCHAR NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS metrics (
		run_id BIGINT NOT NULL,
		key VARCHAR NOT NULL,
		value DOUBLE NOT NULL,
		step BIGINT NOT NULL,
		logged TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS artifacts (
		run_id BIGINT NOT NULL,
		name VARCHAR NOT NULL,
		path VARCHAR NOT NULL
	)`,
}

// A Store is a tracking database rooted at a directory.
type Store struct {
	db   *sql.DB
	root string
}

// Open opens or creates the store in a root directory.
//
// If root is empty, the database lives in memory and
// artifacts cannot be logged.
func Open(root string) (*Store, error) {
	dsn := ""
	if root != "" {
		if err := os.MkdirAll(root, 0755); err != nil {
			return nil, fmt.Errorf("failed to create tracking root: %w", err)
		}
		dsn = filepath.Join(root, DBFile)
	}
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return &Store{db: db, root: root}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Root returns the root directory of the store.
func (s *Store) Root() string {
	return s.root
}

// SetExperiment returns the ID of the named experiment,
// creating it if it does not exist.
func (s *Store) SetExperiment(name string) (int64, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM experiments WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to look up experiment: %w", err)
	}
	if id, err = s.nextID("experiments"); err != nil {
		return 0, err
	}
	_, err = s.db.Exec(`INSERT INTO experiments VALUES (?, ?, ?)`, id, name, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to create experiment: %w", err)
	}
	return id, nil
}

// StartRun starts a run in the named experiment.
// Besides its sequential ID, the run gets a random
// 32-character hex UUID.
func (s *Store) StartRun(experiment, description string) (*Run, error) {
	expID, err := s.SetExperiment(experiment)
	if err != nil {
		return nil, err
	}
	id, err := s.nextID("runs")
	if err != nil {
		return nil, err
	}
	runUUID := strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = s.db.Exec(`INSERT INTO runs VALUES (?, ?, ?, ?, ?, ?, NULL)`, id, runUUID, expID,
		description, StatusRunning, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	return &Run{store: s, ID: id, UUID: runUUID, Experiment: experiment}, nil
}

func (s *Store) nextID(table string) (int64, error) {
	var id int64
	err := s.db.QueryRow(`SELECT COALESCE(MAX(id), 0) + 1 FROM ` + table).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate %s id: %w", table, err)
	}
	return id, nil
}
