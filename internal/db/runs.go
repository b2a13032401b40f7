package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/microstate"
	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/version"
)

// ErrNotFound is returned when a run has no stored row.
var ErrNotFound = errors.New("not found")

// MapLevel distinguishes per-recording maps from group maps.
type MapLevel string

const (
	LevelRecording MapLevel = "recording"
	LevelGroup     MapLevel = "group"
)

// Run is one CLI invocation.
type Run struct {
	RunID      string          `json:"run_id"`
	Stage      string          `json:"stage"`
	Version    string          `json:"version"`
	ParamsJSON json.RawMessage `json:"params_json,omitempty"`
	CreatedAt  int64           `json:"created_at"`
	Recordings int             `json:"recordings"`
	Failed     int             `json:"failed"`
}

// Recording is the outcome of processing one recording within a run.
// Error is empty on success.
type Recording struct {
	RecordingID string  `json:"recording_id"`
	RunID       string  `json:"run_id"`
	Name        string  `json:"name"`
	Samples     int     `json:"samples"`
	Electrodes  int     `json:"electrodes"`
	Selected    int     `json:"selected"`
	GEV         float64 `json:"gev"`
	Error       string  `json:"error,omitempty"`
	Transitions [][]int `json:"transitions,omitempty"`
	CreatedAt   int64   `json:"created_at"`
}

// CreateRun stores a new run for stage with its parameters and returns the
// generated run ID.
func (db *DB) CreateRun(stage string, params json.RawMessage) (string, error) {
	id := uuid.New().String()
	var paramsStr interface{}
	if len(params) > 0 {
		paramsStr = string(params)
	}
	err := retryOnBusy(func() error {
		_, err := db.Exec(`
			INSERT INTO runs (run_id, stage, version, params_json, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			id, stage, version.String(), paramsStr, db.clock.Now().UnixNano())
		return err
	})
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// RecordRecording stores rec, one row per (run, name). A later call for
// the same name merges into the existing row: counts and GEV are replaced
// only by non-empty values, the error always by the latest one. rec's
// RecordingID is set to the stored row's ID. GEV is stored as NULL when NaN.
func (db *DB) RecordRecording(rec *Recording) error {
	if rec.RecordingID == "" {
		rec.RecordingID = uuid.New().String()
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = db.clock.Now().UnixNano()
	}
	var errStr interface{}
	if rec.Error != "" {
		errStr = rec.Error
	}
	return retryOnBusy(func() error {
		if _, err := db.Exec(`
			INSERT INTO recordings (
				recording_id, run_id, name, samples, electrodes, selected,
				gev, error, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (run_id, name) DO UPDATE SET
				samples    = CASE WHEN excluded.samples > 0 THEN excluded.samples ELSE samples END,
				electrodes = CASE WHEN excluded.electrodes > 0 THEN excluded.electrodes ELSE electrodes END,
				selected   = CASE WHEN excluded.selected > 0 THEN excluded.selected ELSE selected END,
				gev        = COALESCE(excluded.gev, gev),
				error      = excluded.error`,
			rec.RecordingID, rec.RunID, rec.Name, rec.Samples, rec.Electrodes, rec.Selected,
			nullFloat(rec.GEV), errStr, rec.CreatedAt,
		); err != nil {
			return err
		}
		return db.QueryRow(`SELECT recording_id FROM recordings WHERE run_id = ? AND name = ?`,
			rec.RunID, rec.Name).Scan(&rec.RecordingID)
	})
}

// RecordMaps replaces the maps stored for (runID, level, owner). owner is
// the recording name for LevelRecording and empty for LevelGroup.
func (db *DB) RecordMaps(runID string, level MapLevel, owner string, maps microstate.MapSet) error {
	if level != LevelRecording && level != LevelGroup {
		return fmt.Errorf("unknown map level %q", level)
	}
	return retryOnBusy(func() error {
		return db.withTx(func(tx *sql.Tx) error {
			if _, err := tx.Exec(`DELETE FROM maps WHERE run_id = ? AND level = ? AND owner = ?`,
				runID, level, owner); err != nil {
				return err
			}
			for i := 0; i < maps.K; i++ {
				values, err := json.Marshal(maps.Map(i))
				if err != nil {
					return err
				}
				if _, err := tx.Exec(`
					INSERT INTO maps (run_id, level, owner, map_index, label, values_json)
					VALUES (?, ?, ?, ?, ?, ?)`,
					runID, level, owner, i, microstate.LabelFor(i).String(), string(values)); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// RecordMetrics stores the per-label metrics and transition counts of a
// recording.
func (db *DB) RecordMetrics(recordingID string, m *microstate.Metrics) error {
	trans, err := json.Marshal(m.Transitions)
	if err != nil {
		return err
	}
	return retryOnBusy(func() error {
		return db.withTx(func(tx *sql.Tx) error {
			res, err := tx.Exec(`UPDATE recordings SET transitions_json = ? WHERE recording_id = ?`,
				string(trans), recordingID)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("recording %s: %w", recordingID, ErrNotFound)
			}
			for _, lm := range m.Labels {
				if _, err := tx.Exec(`
					INSERT OR REPLACE INTO metrics (
						recording_id, label, coverage, occurrence, mean_duration, occurrence_rate
					) VALUES (?, ?, ?, ?, ?, ?)`,
					recordingID, lm.Label.String(), lm.Coverage, lm.Occurrence,
					nullFloat(lm.MeanDuration), lm.OccurrenceRate); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

const runColumns = `
	SELECT r.run_id, r.stage, r.version, r.params_json, r.created_at,
	       COUNT(rec.recording_id),
	       COUNT(rec.error)
	FROM runs r
	LEFT JOIN recordings rec ON rec.run_id = r.run_id`

// GetRun returns a run with its recording counts.
func (db *DB) GetRun(runID string) (*Run, error) {
	row := db.QueryRow(runColumns+` WHERE r.run_id = ? GROUP BY r.run_id`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return run, err
}

// ListRuns returns runs newest first. limit <= 0 returns all of them.
func (db *DB) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(runColumns+`
		GROUP BY r.run_id
		ORDER BY r.created_at DESC, r.run_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Recordings returns the recordings of a run in name order.
func (db *DB) Recordings(runID string) ([]*Recording, error) {
	rows, err := db.Query(`
		SELECT recording_id, run_id, name, samples, electrodes, selected,
		       gev, error, transitions_json, created_at
		FROM recordings
		WHERE run_id = ?
		ORDER BY name`, runID)
	if err != nil {
		return nil, fmt.Errorf("query recordings: %w", err)
	}
	defer rows.Close()

	var out []*Recording
	for rows.Next() {
		var rec Recording
		var gev sql.NullFloat64
		var errStr, trans sql.NullString
		if err := rows.Scan(&rec.RecordingID, &rec.RunID, &rec.Name, &rec.Samples, &rec.Electrodes,
			&rec.Selected, &gev, &errStr, &trans, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		rec.GEV = floatOrNaN(gev)
		rec.Error = errStr.String
		if trans.Valid {
			if err := json.Unmarshal([]byte(trans.String), &rec.Transitions); err != nil {
				return nil, fmt.Errorf("recording %s transitions: %w", rec.Name, err)
			}
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Maps returns the maps stored for (runID, level, owner).
func (db *DB) Maps(runID string, level MapLevel, owner string) (microstate.MapSet, error) {
	rows, err := db.Query(`
		SELECT values_json FROM maps
		WHERE run_id = ? AND level = ? AND owner = ?
		ORDER BY map_index`, runID, level, owner)
	if err != nil {
		return microstate.MapSet{}, fmt.Errorf("query maps: %w", err)
	}
	defer rows.Close()

	var maps [][]float64
	for rows.Next() {
		var values string
		if err := rows.Scan(&values); err != nil {
			return microstate.MapSet{}, fmt.Errorf("scan map: %w", err)
		}
		var m []float64
		if err := json.Unmarshal([]byte(values), &m); err != nil {
			return microstate.MapSet{}, fmt.Errorf("decode map: %w", err)
		}
		maps = append(maps, m)
	}
	if err := rows.Err(); err != nil {
		return microstate.MapSet{}, err
	}
	if len(maps) == 0 {
		return microstate.MapSet{}, fmt.Errorf("%s maps for run %s: %w", level, runID, ErrNotFound)
	}
	return microstate.NewMapSet(maps)
}

// GroupMaps returns the group canonical maps of a run.
func (db *DB) GroupMaps(runID string) (microstate.MapSet, error) {
	return db.Maps(runID, LevelGroup, "")
}

// Metrics returns the stored label metrics of a recording in label order.
func (db *DB) Metrics(recordingID string) ([]microstate.LabelMetrics, error) {
	rows, err := db.Query(`
		SELECT label, coverage, occurrence, mean_duration, occurrence_rate
		FROM metrics
		WHERE recording_id = ?
		ORDER BY label`, recordingID)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	var out []microstate.LabelMetrics
	for rows.Next() {
		var lm microstate.LabelMetrics
		var label string
		var dur sql.NullFloat64
		if err := rows.Scan(&label, &lm.Coverage, &lm.Occurrence, &dur, &lm.OccurrenceRate); err != nil {
			return nil, fmt.Errorf("scan metrics: %w", err)
		}
		if len(label) != 1 {
			return nil, fmt.Errorf("bad label %q", label)
		}
		lm.Label = microstate.Label(label[0])
		lm.MeanDuration = floatOrNaN(dur)
		out = append(out, lm)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var params sql.NullString
	if err := row.Scan(&run.RunID, &run.Stage, &run.Version, &params, &run.CreatedAt,
		&run.Recordings, &run.Failed); err != nil {
		return nil, err
	}
	if params.Valid {
		run.ParamsJSON = json.RawMessage(params.String)
	}
	return &run, nil
}

func (db *DB) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nullFloat(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
