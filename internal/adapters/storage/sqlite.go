package storage

// sqlite.go: journal de ejecuciones del pipeline.
//
// Estrategia:
//   - `pipeline_runs`: una fila por llamada al pipeline, exitosa o no, con el
//     texto crudo. La respuesta HTTP solo lleva los campos extraídos; el texto
//     original queda aquí para auditoría.
//   - Por defecto vive en `:memory:` (muere con el proceso). Con una ruta de
//     fichero sobrevive reinicios.
//   - Prune al arrancar y cada pruneEvery inserts: filas > retention y
//     exceso sobre maxRows.

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/sentinel/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    tip_id       TEXT    NOT NULL,
    user_id      TEXT    NOT NULL,
    tip          TEXT    NOT NULL,
    raw_response TEXT    NOT NULL DEFAULT '',
    error        TEXT    NOT NULL DEFAULT '',
    started_at   INTEGER NOT NULL, -- unix nanos UTC
    duration_ms  INTEGER NOT NULL DEFAULT 0,
    verified     INTEGER NOT NULL DEFAULT 0,
    confidence   INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON pipeline_runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_tip     ON pipeline_runs(tip_id);
`

const (
	defaultRetention = 7 * 24 * time.Hour
	defaultMaxRows   = 10_000
	pruneEvery       = 100
)

// Options tunes retention. Zero values use the defaults.
type Options struct {
	Retention time.Duration
	MaxRows   int
}

// SQLiteJournal implementa ports.Journal usando SQLite (pure Go, sin CGo).
type SQLiteJournal struct {
	db   *sql.DB
	opts Options

	mu      sync.Mutex
	inserts int
}

// NewSQLiteJournal abre (o crea) la base de datos en la ruta dada, aplica el
// schema y limpia filas antiguas. ":memory:" da un journal efímero.
func NewSQLiteJournal(path string, opts Options) (*SQLiteJournal, error) {
	if opts.Retention <= 0 {
		opts.Retention = defaultRetention
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = defaultMaxRows
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteJournal: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer; además :memory: es por conexión
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteJournal: apply schema: %w", err)
	}

	j := &SQLiteJournal{db: db, opts: opts}
	j.prune(context.Background())
	return j, nil
}

// RecordRun inserta una ejecución.
func (j *SQLiteJournal) RecordRun(ctx context.Context, run domain.PipelineRun) error {
	if _, err := j.db.ExecContext(ctx, `
		INSERT INTO pipeline_runs
		    (tip_id, user_id, tip, raw_response, error, started_at, duration_ms, verified, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.TipID, run.UserID, run.Tip, run.RawResponse, run.Err,
		run.StartedAt.UTC().UnixNano(), run.Duration.Milliseconds(),
		boolToInt(run.Verified), run.Confidence,
	); err != nil {
		return fmt.Errorf("storage.RecordRun: insert: %w", err)
	}

	j.mu.Lock()
	j.inserts++
	due := j.inserts%pruneEvery == 0
	j.mu.Unlock()
	if due {
		j.prune(ctx)
	}
	return nil
}

// RecentRuns devuelve las últimas ejecuciones, la más nueva primero.
func (j *SQLiteJournal) RecentRuns(ctx context.Context, limit int) ([]domain.PipelineRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT tip_id, user_id, tip, raw_response, error, started_at, duration_ms, verified, confidence
		FROM pipeline_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentRuns: query: %w", err)
	}
	defer rows.Close()

	var runs []domain.PipelineRun
	for rows.Next() {
		var r domain.PipelineRun
		var startedNs, durMs int64
		var verified int
		if err := rows.Scan(
			&r.TipID, &r.UserID, &r.Tip, &r.RawResponse, &r.Err,
			&startedNs, &durMs, &verified, &r.Confidence,
		); err != nil {
			return nil, fmt.Errorf("storage.RecentRuns: scan row: %w", err)
		}
		r.StartedAt = time.Unix(0, startedNs).UTC()
		r.Duration = time.Duration(durMs) * time.Millisecond
		r.Verified = verified == 1
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// prune elimina filas antiguas y el exceso sobre MaxRows. Best effort.
func (j *SQLiteJournal) prune(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-j.opts.Retention).UnixNano()
	j.db.ExecContext(ctx, `DELETE FROM pipeline_runs WHERE started_at < ?`, cutoff)
	j.db.ExecContext(ctx, `
		DELETE FROM pipeline_runs WHERE id NOT IN (
		    SELECT id FROM pipeline_runs ORDER BY started_at DESC, id DESC LIMIT ?
		)`, j.opts.MaxRows)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
