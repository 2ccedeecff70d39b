package gmv

import (
	"context"

	"cloud.google.com/go/civil"
)

// SourceReader loads the raw bronze record sets for one processing date.
// Implementations are read-only over the sources.
type SourceReader interface {
	ReadPurchases(ctx context.Context, date civil.Date) ([]PurchaseRecord, error)
	ReadProductItems(ctx context.Context, date civil.Date) ([]ProductItemRecord, error)
	ReadPurchaseExtraInfo(ctx context.Context, date civil.Date) ([]PurchaseExtraInfo, error)
}

// HistoryTable is the SCD2 destination for daily GMV snapshots.
//
// SupersedeAndAppend must apply both phases atomically: flip is_latest to
// false on every current row whose (gmv_date, subsidiary) appears in rows,
// then append every row with is_latest = true. Rows for keys absent from the
// input are left untouched. The call is not idempotent — retries happen at
// the granularity of the whole run, never by re-invoking the merge alone.
type HistoryTable interface {
	Exists(ctx context.Context) (bool, error)
	Initialize(ctx context.Context, rows []SnapshotRow) error
	SupersedeAndAppend(ctx context.Context, rows []SnapshotRow) error

	// DuplicateLatestKeys reports every business key carrying more than one
	// is_latest = true row, i.e. the damage left by a crash between the
	// supersede and append phases of a non-transactional writer.
	DuplicateLatestKeys(ctx context.Context) ([]GroupKey, error)

	// RepairDuplicateLatest supersedes all but the newest row (by
	// calculation_timestamp) for each of the given keys.
	RepairDuplicateLatest(ctx context.Context, keys []GroupKey) error
}

// SnapshotArchiver persists a copy of a computed snapshot for audit, keyed
// by processing date and run id.
type SnapshotArchiver interface {
	ArchiveSnapshot(ctx context.Context, date civil.Date, runID string, rows []SnapshotRow) error
}
