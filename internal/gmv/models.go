package gmv

import (
	"time"

	"cloud.google.com/go/civil"
)

// StatusApproved is the purchase status required for a purchase to count
// towards GMV. Purchases in any other status are excluded from the sum
// entirely, not zero-valued.
const StatusApproved = "APPROVED"

// RecordKey is the natural key shared by all bronze source tables. Multiple
// raw rows may carry the same key; each one is a successive version of the
// same purchase.
type RecordKey struct {
	PurchaseID string
	Partition  string
}

// Record is implemented by every bronze source row that participates in
// latest-version selection.
type Record interface {
	Key() RecordKey
	Version() time.Time
	Offset() int64
}

// PurchaseRecord is one version of a purchase as captured in bronze.purchase.
type PurchaseRecord struct {
	PurchaseID          string
	Partition           string
	TransactionDatetime time.Time
	// IngestOffset is assigned by the capture layer and is strictly
	// increasing per partition, so it never ties for rows that share a
	// transaction_datetime.
	IngestOffset    int64
	TransactionDate civil.Date
	Status          string
	TotalValue      float64
	Subsidiary      string
}

func (p PurchaseRecord) Key() RecordKey {
	return RecordKey{PurchaseID: p.PurchaseID, Partition: p.Partition}
}

func (p PurchaseRecord) Version() time.Time { return p.TransactionDatetime }

func (p PurchaseRecord) Offset() int64 { return p.IngestOffset }

// PurchaseExtraInfo is one version of the enrichment row for a purchase,
// carrying the financial release date when the purchase has been released.
type PurchaseExtraInfo struct {
	PurchaseID          string
	Partition           string
	TransactionDatetime time.Time
	IngestOffset        int64
	TransactionDate     civil.Date
	ReleaseDate         *civil.Date
}

func (e PurchaseExtraInfo) Key() RecordKey {
	return RecordKey{PurchaseID: e.PurchaseID, Partition: e.Partition}
}

func (e PurchaseExtraInfo) Version() time.Time { return e.TransactionDatetime }

func (e PurchaseExtraInfo) Offset() int64 { return e.IngestOffset }

// ProductItemRecord is one version of a purchased item line. Item detail is
// extracted alongside the other sources for the processing date but does not
// participate in the GMV sum; the measure lives on the purchase itself.
type ProductItemRecord struct {
	PurchaseID          string
	Partition           string
	TransactionDatetime time.Time
	IngestOffset        int64
	TransactionDate     civil.Date
	ProductID           string
	Quantity            int64
	UnitValue           float64
}

func (i ProductItemRecord) Key() RecordKey {
	return RecordKey{PurchaseID: i.PurchaseID, Partition: i.Partition}
}

func (i ProductItemRecord) Version() time.Time { return i.TransactionDatetime }

func (i ProductItemRecord) Offset() int64 { return i.IngestOffset }

// GroupKey identifies one aggregate row: the GMV business key.
type GroupKey struct {
	GMVDate    civil.Date
	Subsidiary string
}

// SnapshotRow is one row of the daily GMV snapshot, and equally one row of
// the silver history table. Within a single run (gmv_date, subsidiary) is
// unique; across the history table at most one row per key has
// IsLatest == true.
type SnapshotRow struct {
	GMVDate       civil.Date `json:"gmv_date"`
	Subsidiary    string     `json:"subsidiary"`
	GMVTotal      float64    `json:"gmv_total_day"`
	CalculationTS time.Time  `json:"calculation_timestamp"`
	IsLatest      bool       `json:"is_latest"`
}

// Group returns the business key of the snapshot row.
func (r SnapshotRow) Group() GroupKey {
	return GroupKey{GMVDate: r.GMVDate, Subsidiary: r.Subsidiary}
}
