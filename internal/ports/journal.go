package ports

import (
	"context"

	"github.com/alejandrodnm/sentinel/internal/domain"
)

// Journal keeps the raw pipeline runs for inspection. It is not the ledger:
// entries carry the unparsed text and failed runs too.
type Journal interface {
	// RecordRun persists one pipeline run.
	RecordRun(ctx context.Context, run domain.PipelineRun) error

	// RecentRuns devuelve los últimos runs, el más nuevo primero.
	RecentRuns(ctx context.Context, limit int) ([]domain.PipelineRun, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
