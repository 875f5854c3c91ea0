// Package store keeps replay annotations in SQLite so visibility and gaze
// hits can be queried per run and per object.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/nede-neuro/go-nede/pkg/geom"
	"github.com/nede-neuro/go-nede/pkg/protocol"
	"github.com/nede-neuro/go-nede/pkg/store/migrations"
)

// Store is an SQLite annotation store.
type Store struct {
	db *sql.DB
}

// Run describes one replayed log.
type Run struct {
	ID         string
	LogPath    string
	Subject    string
	Session    string
	Level      string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
}

// Annotation is one stored row. Trial counts LOAD TRIAL lines seen so far
// in the run; rows before the first one have trial 0.
type Annotation struct {
	Trial    int
	Kind     string
	Time     int64
	Object   int
	Rect     geom.Rect
	Fraction float64
	GazeHit  bool
	Payload  string
}

// ObjectSummary aggregates the visible lines of one object in one trial.
// Object numbers restart every trial.
type ObjectSummary struct {
	Trial       int
	Object      int
	Frames      int
	GazeHits    int
	MaxFraction float64
	FirstSeen   int64
	LastSeen    int64
}

// Open opens the store at path and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return ErrNotConfigured
	}
	return nil
}

// BeginRun records a new run. An empty ID is filled with a fresh UUID.
func (s *Store) BeginRun(ctx context.Context, run Run) (Run, error) {
	if err := s.ready(ctx); err != nil {
		return Run{}, err
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO runs (id, log_path, subject, session, level, started_at)
VALUES (?, ?, ?, ?, ?, ?)
`,
		run.ID, run.LogPath, run.Subject, run.Session, run.Level,
		run.StartedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return Run{}, fmt.Errorf("begin run: %w", err)
	}
	return run, nil
}

// FinishRun stamps the run as finished.
func (s *Store) FinishRun(ctx context.Context, id string, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET finished_at = ? WHERE id = ?`, at.UTC().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// GetRun loads one run.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	if err := s.ready(ctx); err != nil {
		return Run{}, err
	}
	var (
		run      Run
		started  int64
		finished sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, log_path, subject, session, level, started_at, finished_at
FROM runs WHERE id = ?
`, id).Scan(&run.ID, &run.LogPath, &run.Subject, &run.Session, &run.Level, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	run.StartedAt = time.UnixMilli(started).UTC()
	if finished.Valid {
		run.FinishedAt = time.UnixMilli(finished.Int64).UTC()
	}
	return run, nil
}

// Record stores one annotation entry for a trial of run.
func (s *Store) Record(ctx context.Context, runID string, trial int, e protocol.Entry) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	t := e.Time
	if e.HasAt {
		t = e.At
	}
	hit := 0
	if e.GazeHit {
		hit = 1
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO annotations (
	run_id,
	trial,
	kind,
	tracker_time,
	object,
	rect_x,
	rect_y,
	rect_w,
	rect_h,
	fraction,
	gaze_hit,
	payload
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		runID, trial, e.Kind.String(), t, e.Number,
		e.Rect.X, e.Rect.Y, e.Rect.W, e.Rect.H,
		e.Fraction, hit, e.Payload(),
	)
	if err != nil {
		return fmt.Errorf("record annotation: %w", err)
	}
	return nil
}

// Annotations lists a run's rows in insertion order. Object 0 lists all.
func (s *Store) Annotations(ctx context.Context, runID string, object int) ([]Annotation, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT trial, kind, tracker_time, object, rect_x, rect_y, rect_w, rect_h, fraction, gaze_hit, payload
FROM annotations
WHERE run_id = ? AND (? = 0 OR object = ?)
ORDER BY id
`, runID, object, object)
	if err != nil {
		return nil, fmt.Errorf("list annotations: %w", err)
	}
	defer rows.Close()

	var out []Annotation
	for rows.Next() {
		var (
			a   Annotation
			hit int
		)
		if err := rows.Scan(&a.Trial, &a.Kind, &a.Time, &a.Object, &a.Rect.X, &a.Rect.Y, &a.Rect.W, &a.Rect.H, &a.Fraction, &hit, &a.Payload); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		a.GazeHit = hit != 0
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate annotations: %w", err)
	}
	return out, nil
}

// Summary aggregates visible lines per trial and object, in trial then
// object order.
func (s *Store) Summary(ctx context.Context, runID string) ([]ObjectSummary, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT trial, object, COUNT(*), SUM(gaze_hit), MAX(fraction), MIN(tracker_time), MAX(tracker_time)
FROM annotations
WHERE run_id = ? AND kind = ?
GROUP BY trial, object
ORDER BY trial, object
`, runID, protocol.KindVisible.String())
	if err != nil {
		return nil, fmt.Errorf("summarize run: %w", err)
	}
	defer rows.Close()

	var out []ObjectSummary
	for rows.Next() {
		var o ObjectSummary
		if err := rows.Scan(&o.Trial, &o.Object, &o.Frames, &o.GazeHits, &o.MaxFraction, &o.FirstSeen, &o.LastSeen); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary: %w", err)
	}
	return out, nil
}

// RunSink writes annotations of one run. It satisfies replay.Sink.
// Annotations arrive from the frame loop only.
type RunSink struct {
	ctx   context.Context
	store *Store
	runID string
	trial int
}

// Sink returns a RunSink for runID.
func (s *Store) Sink(ctx context.Context, runID string) *RunSink {
	return &RunSink{ctx: ctx, store: s, runID: runID}
}

// Annotate stores e. A LOAD TRIAL boundary starts the next trial.
func (r *RunSink) Annotate(e protocol.Entry) error {
	if e.Kind == protocol.KindBoundary && e.Boundary == protocol.BoundaryLoad {
		r.trial++
	}
	return r.store.Record(r.ctx, r.runID, r.trial, e)
}

// Trial returns the current trial number.
func (r *RunSink) Trial() int { return r.trial }
