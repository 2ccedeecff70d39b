package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/dvloznov/gmv-etl/internal/gmv"
)

type purchaseRow struct {
	PurchaseID          string     `bigquery:"purchase_id"`
	PurchasePartition   string     `bigquery:"purchase_partition"`
	TransactionDatetime time.Time  `bigquery:"transaction_datetime"`
	IngestOffset        int64      `bigquery:"ingest_offset"`
	TransactionDate     civil.Date `bigquery:"transaction_date"`
	PurchaseStatus      string     `bigquery:"purchase_status"`
	PurchaseTotalValue  float64    `bigquery:"purchase_total_value"`
	Subsidiary          string     `bigquery:"subsidiary"`
}

func (r *purchaseRow) toRecord() gmv.PurchaseRecord {
	return gmv.PurchaseRecord{
		PurchaseID:          r.PurchaseID,
		Partition:           r.PurchasePartition,
		TransactionDatetime: r.TransactionDatetime,
		IngestOffset:        r.IngestOffset,
		TransactionDate:     r.TransactionDate,
		Status:              r.PurchaseStatus,
		TotalValue:          r.PurchaseTotalValue,
		Subsidiary:          r.Subsidiary,
	}
}

type productItemRow struct {
	PurchaseID          string     `bigquery:"purchase_id"`
	PurchasePartition   string     `bigquery:"purchase_partition"`
	TransactionDatetime time.Time  `bigquery:"transaction_datetime"`
	IngestOffset        int64      `bigquery:"ingest_offset"`
	TransactionDate     civil.Date `bigquery:"transaction_date"`
	ProductID           string     `bigquery:"product_id"`
	Quantity            int64      `bigquery:"quantity"`
	UnitValue           float64    `bigquery:"unit_value"`
}

func (r *productItemRow) toRecord() gmv.ProductItemRecord {
	return gmv.ProductItemRecord{
		PurchaseID:          r.PurchaseID,
		Partition:           r.PurchasePartition,
		TransactionDatetime: r.TransactionDatetime,
		IngestOffset:        r.IngestOffset,
		TransactionDate:     r.TransactionDate,
		ProductID:           r.ProductID,
		Quantity:            r.Quantity,
		UnitValue:           r.UnitValue,
	}
}

type purchaseExtraInfoRow struct {
	PurchaseID          string            `bigquery:"purchase_id"`
	PurchasePartition   string            `bigquery:"purchase_partition"`
	TransactionDatetime time.Time         `bigquery:"transaction_datetime"`
	IngestOffset        int64             `bigquery:"ingest_offset"`
	TransactionDate     civil.Date        `bigquery:"transaction_date"`
	ReleaseDate         bigquery.NullDate `bigquery:"release_date"`
}

func (r *purchaseExtraInfoRow) toRecord() gmv.PurchaseExtraInfo {
	return gmv.PurchaseExtraInfo{
		PurchaseID:          r.PurchaseID,
		Partition:           r.PurchasePartition,
		TransactionDatetime: r.TransactionDatetime,
		IngestOffset:        r.IngestOffset,
		TransactionDate:     r.TransactionDate,
		ReleaseDate:         nullDateToPtr(r.ReleaseDate),
	}
}

func nullDateToPtr(d bigquery.NullDate) *civil.Date {
	if !d.Valid {
		return nil
	}
	date := d.Date
	return &date
}

// historyRow is the silver history table schema. It doubles as the element
// type of the @rows array parameter in the merge script.
type historyRow struct {
	GMVDate       civil.Date `bigquery:"gmv_date"`
	Subsidiary    string     `bigquery:"subsidiary"`
	GMVTotalDay   float64    `bigquery:"gmv_total_day"`
	CalculationTS time.Time  `bigquery:"calculation_timestamp"`
	IsLatest      bool       `bigquery:"is_latest"`
}

func toHistoryRows(rows []gmv.SnapshotRow) []historyRow {
	out := make([]historyRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, historyRow{
			GMVDate:       r.GMVDate,
			Subsidiary:    r.Subsidiary,
			GMVTotalDay:   r.GMVTotal,
			CalculationTS: r.CalculationTS,
			IsLatest:      r.IsLatest,
		})
	}
	return out
}

// groupKeyRow is the element type of the @keys array parameter used by the
// repair statement.
type groupKeyRow struct {
	GMVDate    civil.Date `bigquery:"gmv_date"`
	Subsidiary string     `bigquery:"subsidiary"`
}

func toGroupKeyRows(keys []gmv.GroupKey) []groupKeyRow {
	out := make([]groupKeyRow, 0, len(keys))
	for _, k := range keys {
		out = append(out, groupKeyRow{GMVDate: k.GMVDate, Subsidiary: k.Subsidiary})
	}
	return out
}
