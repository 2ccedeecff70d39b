package gmv

import (
	"context"
	"fmt"

	"github.com/dvloznov/gmv-etl/internal/logger"
)

// Loader reconciles a freshly computed snapshot with the history table under
// SCD2 semantics: matching current rows are superseded, new rows appended,
// history never physically deleted or rewritten.
type Loader struct {
	table HistoryTable
}

// NewLoader creates a loader over the given history table.
func NewLoader(table HistoryTable) *Loader {
	return &Loader{table: table}
}

// Load writes the snapshot to the destination.
//
// An empty snapshot is a no-op. A missing destination is initialized with the
// snapshot as its first content. An existing destination goes through the
// atomic supersede-and-append merge, guarded by a consistency pre-check: if
// any key already carries more than one is_latest row, the run aborts rather
// than compounding the damage — repair is an explicit, separate operation.
func (l *Loader) Load(ctx context.Context, snapshot []SnapshotRow) error {
	log := logger.FromContext(ctx)

	if len(snapshot) == 0 {
		log.Warn().Msg("No new GMV snapshot to load, skipping load stage")
		return nil
	}

	exists, err := l.table.Exists(ctx)
	if err != nil {
		return fmt.Errorf("Load: checking destination: %w", err)
	}

	if !exists {
		log.Info().Int("rows", len(snapshot)).Msg("History table not found, creating it with the initial snapshot")
		if err := l.table.Initialize(ctx, snapshot); err != nil {
			return fmt.Errorf("Load: initializing destination: %w", err)
		}
		return nil
	}

	duplicates, err := l.table.DuplicateLatestKeys(ctx)
	if err != nil {
		return fmt.Errorf("Load: checking destination consistency: %w", err)
	}
	if len(duplicates) > 0 {
		return fmt.Errorf(
			"Load: destination has %d keys with duplicate is_latest rows (first: %s/%s); run the repair operation before re-running the job",
			len(duplicates), duplicates[0].GMVDate, duplicates[0].Subsidiary)
	}

	log.Info().Int("rows", len(snapshot)).Msg("History table found, merging snapshot")
	if err := l.table.SupersedeAndAppend(ctx, snapshot); err != nil {
		return fmt.Errorf("Load: merging snapshot: %w", err)
	}

	return nil
}
