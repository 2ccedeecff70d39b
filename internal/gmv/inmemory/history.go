package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/gmv-etl/internal/gmv"
)

// Table is an in-memory implementation of gmv.HistoryTable.
// It is safe for concurrent use. Data is lost on restart - for persistence,
// use the BigQuery-backed table.
type Table struct {
	mu      sync.RWMutex
	created bool
	rows    []gmv.SnapshotRow
}

// NewTable creates a new in-memory history table. The table does not exist
// until Initialize (or Seed) is called, mirroring a first-ever run against
// the real destination.
func NewTable() *Table {
	return &Table{}
}

// Exists implements the HistoryTable interface.
func (t *Table) Exists(ctx context.Context) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.created, nil
}

// Initialize implements the HistoryTable interface. It creates the table
// with the snapshot as its verbatim initial content.
func (t *Table) Initialize(ctx context.Context, rows []gmv.SnapshotRow) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.created {
		return fmt.Errorf("Initialize: table already exists")
	}

	t.created = true
	t.rows = append([]gmv.SnapshotRow(nil), rows...)
	return nil
}

// SupersedeAndAppend implements the HistoryTable interface. Both phases run
// under one lock, so no observer can see two is_latest rows for a key.
func (t *Table) SupersedeAndAppend(ctx context.Context, rows []gmv.SnapshotRow) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.created {
		return fmt.Errorf("SupersedeAndAppend: table does not exist")
	}

	incoming := make(map[gmv.GroupKey]bool, len(rows))
	for _, r := range rows {
		incoming[r.Group()] = true
	}

	// Supersede phase: only current rows for keys present in the snapshot.
	for i := range t.rows {
		if t.rows[i].IsLatest && incoming[t.rows[i].Group()] {
			t.rows[i].IsLatest = false
		}
	}

	// Append phase.
	t.rows = append(t.rows, rows...)
	return nil
}

// DuplicateLatestKeys implements the HistoryTable interface.
func (t *Table) DuplicateLatestKeys(ctx context.Context) ([]gmv.GroupKey, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	counts := make(map[gmv.GroupKey]int)
	for _, r := range t.rows {
		if r.IsLatest {
			counts[r.Group()]++
		}
	}

	var keys []gmv.GroupKey
	for key, n := range counts {
		if n > 1 {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// RepairDuplicateLatest implements the HistoryTable interface. For each key
// it keeps the row with the newest calculation timestamp current and
// supersedes the rest.
func (t *Table) RepairDuplicateLatest(ctx context.Context, keys []gmv.GroupKey) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, key := range keys {
		newest := -1
		for i, r := range t.rows {
			if !r.IsLatest || r.Group() != key {
				continue
			}
			if newest < 0 || r.CalculationTS.After(t.rows[newest].CalculationTS) {
				newest = i
			}
		}
		for i, r := range t.rows {
			if r.IsLatest && r.Group() == key && i != newest {
				t.rows[i].IsLatest = false
			}
		}
	}
	return nil
}

// Seed marks the table as existing and appends rows verbatim, bypassing the
// merge discipline. Intended for tests that need to stage a particular
// destination state, including inconsistent ones.
func (t *Table) Seed(rows ...gmv.SnapshotRow) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.created = true
	t.rows = append(t.rows, rows...)
}

// Rows returns a copy of the table content.
func (t *Table) Rows() []gmv.SnapshotRow {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]gmv.SnapshotRow(nil), t.rows...)
}

// Ensure Table implements the HistoryTable interface.
var _ gmv.HistoryTable = (*Table)(nil)
