package gmv_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/gmv-etl/internal/gmv"
	"github.com/dvloznov/gmv-etl/internal/gmv/inmemory"
)

func date(t *testing.T, s string) civil.Date {
	t.Helper()
	d, err := civil.ParseDate(s)
	if err != nil {
		t.Fatalf("Invalid date %q: %v", s, err)
	}
	return d
}

func snapshotRow(d civil.Date, subsidiary string, total float64, calc time.Time, latest bool) gmv.SnapshotRow {
	return gmv.SnapshotRow{
		GMVDate:       d,
		Subsidiary:    subsidiary,
		GMVTotal:      total,
		CalculationTS: calc,
		IsLatest:      latest,
	}
}

func TestLoadEmptySnapshotIsNoop(t *testing.T) {
	d1 := date(t, "2024-05-09")
	table := inmemory.NewTable()
	table.Seed(snapshotRow(d1, "A", 10, time.Now(), true))

	if err := gmv.NewLoader(table).Load(context.Background(), nil); err != nil {
		t.Fatalf("Load of empty snapshot should succeed, got: %v", err)
	}

	if got := len(table.Rows()); got != 1 {
		t.Errorf("Expected destination row count unchanged (1), got %d", got)
	}
}

func TestLoadFirstRunInitializesDestination(t *testing.T) {
	d1 := date(t, "2024-05-09")
	calc := time.Date(2024, time.May, 10, 6, 0, 0, 0, time.UTC)
	table := inmemory.NewTable()

	snapshot := []gmv.SnapshotRow{
		snapshotRow(d1, "A", 10, calc, true),
		snapshotRow(d1, "B", 4, calc, true),
	}

	if err := gmv.NewLoader(table).Load(context.Background(), snapshot); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	rows := table.Rows()
	if len(rows) != 2 {
		t.Fatalf("Expected destination to contain the snapshot verbatim (2 rows), got %d", len(rows))
	}
	for _, r := range rows {
		if !r.IsLatest {
			t.Errorf("Expected every initial row to be is_latest, got %+v", r)
		}
	}
}

func TestLoadSupersedesMatchingCurrentRows(t *testing.T) {
	d1 := date(t, "2024-05-09")
	oldCalc := time.Date(2024, time.May, 10, 6, 0, 0, 0, time.UTC)
	newCalc := oldCalc.Add(2 * time.Hour)

	table := inmemory.NewTable()
	table.Seed(snapshotRow(d1, "A", 10, oldCalc, true))

	snapshot := []gmv.SnapshotRow{snapshotRow(d1, "A", 12, newCalc, true)}
	if err := gmv.NewLoader(table).Load(context.Background(), snapshot); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	rows := table.Rows()
	if len(rows) != 2 {
		t.Fatalf("Expected exactly 2 rows for the key after merge, got %d", len(rows))
	}

	var latestCount int
	for _, r := range rows {
		switch {
		case r.GMVTotal == 10:
			if r.IsLatest {
				t.Error("Expected the old row (total=10) to be superseded")
			}
		case r.GMVTotal == 12:
			if !r.IsLatest {
				t.Error("Expected the new row (total=12) to be current")
			}
		default:
			t.Errorf("Unexpected row: %+v", r)
		}
		if r.IsLatest {
			latestCount++
		}
	}
	if latestCount != 1 {
		t.Errorf("Expected exactly one is_latest row for the key, got %d", latestCount)
	}
}

func TestLoadLeavesUnrelatedKeysUntouched(t *testing.T) {
	d1 := date(t, "2024-05-09")
	calc := time.Date(2024, time.May, 10, 6, 0, 0, 0, time.UTC)

	table := inmemory.NewTable()
	table.Seed(
		snapshotRow(d1, "A", 10, calc, true),
		snapshotRow(d1, "B", 4, calc, true), // no new data for B today
	)

	snapshot := []gmv.SnapshotRow{snapshotRow(d1, "A", 12, calc.Add(time.Hour), true)}
	if err := gmv.NewLoader(table).Load(context.Background(), snapshot); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	for _, r := range table.Rows() {
		if r.Subsidiary == "B" && !r.IsLatest {
			t.Error("Row for subsidiary B must stay current: no new data is not data loss")
		}
	}
}

func TestLoadAbortsWhenDestinationHasDuplicateLatestRows(t *testing.T) {
	d1 := date(t, "2024-05-09")
	calc := time.Date(2024, time.May, 10, 6, 0, 0, 0, time.UTC)

	table := inmemory.NewTable()
	// Damage left by a crash between supersede and append of a
	// non-transactional writer.
	table.Seed(
		snapshotRow(d1, "A", 10, calc, true),
		snapshotRow(d1, "A", 11, calc.Add(time.Hour), true),
	)

	snapshot := []gmv.SnapshotRow{snapshotRow(d1, "A", 12, calc.Add(2*time.Hour), true)}
	err := gmv.NewLoader(table).Load(context.Background(), snapshot)
	if err == nil {
		t.Fatal("Expected Load to abort on duplicate is_latest rows")
	}
	if !strings.Contains(err.Error(), "duplicate is_latest") {
		t.Errorf("Expected a descriptive consistency error, got: %v", err)
	}

	if got := len(table.Rows()); got != 2 {
		t.Errorf("Expected destination untouched after abort, got %d rows", got)
	}
}
