package hgtrack

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RunInfo describes a recorded run.
type RunInfo struct {
	ID          int64
	UUID        string
	Experiment  string
	Description string
	Status      string
	Started     time.Time

	// Ended is the zero time for runs that have not ended.
	Ended time.Time

	Params map[string]string
}

// A MetricPoint is one logged metric value.
type MetricPoint struct {
	Key   string
	Value float64
	Step  int
}

// Runs lists the runs of an experiment, oldest first.
func (s *Store) Runs(experiment string) ([]*RunInfo, error) {
	rows, err := s.db.Query(`
		SELECT r.id, r.uuid, r.description, r.status, r.started, r.ended
		FROM runs r JOIN experiments e ON r.experiment_id = e.id
		WHERE e.name = ?
		ORDER BY r.id`, experiment)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	var res []*RunInfo
	for rows.Next() {
		info := &RunInfo{Experiment: experiment}
		var ended sql.NullTime
		if err := rows.Scan(&info.ID, &info.UUID, &info.Description, &info.Status,
			&info.Started, &ended); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if ended.Valid {
			info.Ended = ended.Time
		}
		res = append(res, info)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	rows.Close()

	for _, info := range res {
		if info.Params, err = s.Params(info.ID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Params returns the parameters of a run.
func (s *Store) Params(runID int64) (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM params WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query params: %w", err)
	}
	defer rows.Close()
	res := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan param: %w", err)
		}
		res[key] = value
	}
	return res, rows.Err()
}

// Metrics returns the values logged for a metric of a run,
// ordered by step.
// If key is empty, every metric is returned.
func (s *Store) Metrics(runID int64, key string) ([]MetricPoint, error) {
	query := `SELECT key, value, step FROM metrics WHERE run_id = ?`
	args := []interface{}{runID}
	if key != "" {
		query += ` AND key = ?`
		args = append(args, key)
	}
	rows, err := s.db.Query(query+` ORDER BY key, step, logged`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()
	var res []MetricPoint
	for rows.Next() {
		var p MetricPoint
		var step int64
		if err := rows.Scan(&p.Key, &p.Value, &step); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		p.Step = int(step)
		res = append(res, p)
	}
	return res, rows.Err()
}

// LatestMetrics returns the value logged at the highest
// step of every metric of a run.
func (s *Store) LatestMetrics(runID int64) (map[string]float64, error) {
	points, err := s.Metrics(runID, "")
	if err != nil {
		return nil, err
	}
	res := map[string]float64{}
	for _, p := range points {
		res[p.Key] = p.Value
	}
	return res, nil
}

// BestRun finds the run of an experiment with the lowest
// (or, if maximize is set, highest) latest value of a
// metric.
// Runs that never logged the metric are ignored.
func (s *Store) BestRun(experiment, key string, maximize bool) (*RunInfo, float64, error) {
	runs, err := s.Runs(experiment)
	if err != nil {
		return nil, 0, err
	}
	var best *RunInfo
	var bestValue float64
	for _, run := range runs {
		latest, err := s.LatestMetrics(run.ID)
		if err != nil {
			return nil, 0, err
		}
		value, ok := latest[key]
		if !ok {
			continue
		}
		if best == nil || (maximize && value > bestValue) || (!maximize && value < bestValue) {
			best, bestValue = run, value
		}
	}
	if best == nil {
		return nil, 0, fmt.Errorf("best run for %q: %w", key, ErrNoRuns)
	}
	return best, bestValue, nil
}

// FindRun looks up a run by its UUID.
func (s *Store) FindRun(runUUID string) (*RunInfo, error) {
	var experiment string
	err := s.db.QueryRow(`
		SELECT e.name FROM runs r JOIN experiments e ON r.experiment_id = e.id
		WHERE r.uuid = ?`, runUUID).Scan(&experiment)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find run %s: %w", runUUID, ErrNoRuns)
	} else if err != nil {
		return nil, fmt.Errorf("failed to find run: %w", err)
	}
	runs, err := s.Runs(experiment)
	if err != nil {
		return nil, err
	}
	for _, run := range runs {
		if run.UUID == runUUID {
			return run, nil
		}
	}
	return nil, fmt.Errorf("find run %s: %w", runUUID, ErrNoRuns)
}

// Artifacts returns the stored paths of a run's artifacts.
func (s *Store) Artifacts(runID int64) ([]string, error) {
	rows, err := s.db.Query(`SELECT path FROM artifacts WHERE run_id = ? ORDER BY name`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		res = append(res, path)
	}
	return res, rows.Err()
}
