// iface.go defines StoreInterface so the CLI can be tested against a fake
// history.
package store

import (
	"context"

	"github.com/daviddao/northpole/pkg/model"
)

// StoreInterface is the set of history operations the CLI uses.
// The concrete *Store type implements it.
type StoreInterface interface {
	// Close closes the database connection.
	Close() error

	// --- Runs ---

	// SaveRun stores a finished run and its action log.
	SaveRun(ctx context.Context, run *model.Run, actions []model.Action) (int64, error)

	// GetRun retrieves a run by ID.
	GetRun(ctx context.Context, id int64) (*model.Run, error)

	// LatestRun returns the newest run, or ErrNoRuns.
	LatestRun(ctx context.Context) (*model.Run, error)

	// ListRuns returns up to limit runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// DeleteRun removes a run and its actions.
	DeleteRun(ctx context.Context, id int64) error

	// --- Actions ---

	// ListActions returns a run's actions with seq >= sinceSeq.
	ListActions(ctx context.Context, runID, sinceSeq int64, limit int) ([]model.Action, error)

	// CountActions returns how many actions a run logged.
	CountActions(ctx context.Context, runID int64) (int64, error)
}

// Compile-time check that *Store implements StoreInterface.
var _ StoreInterface = (*Store)(nil)
