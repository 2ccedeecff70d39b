package gmv

import (
	"sort"
	"time"

	"cloud.google.com/go/civil"
)

// Aggregate derives the daily GMV snapshot from the latest version of each
// purchase and its enrichment row.
//
// Purchases are left-joined to extra-info on the natural key: enrichment rows
// without a matching purchase contribute nothing, purchases without
// enrichment keep a null release date. A purchase counts towards GMV only
// when its release date is present and its status is StatusApproved; rows
// failing either predicate are excluded from the sum entirely. Eligible rows
// are grouped by (release date, subsidiary) and their total value summed; a
// group whose sum is zero is still emitted.
//
// Every output row is stamped with now and IsLatest = true. The result is
// sorted by (gmv_date, subsidiary) and is empty when no row is eligible —
// an empty snapshot is a valid result the loader must handle, not an error.
func Aggregate(purchases []PurchaseRecord, extraInfo []PurchaseExtraInfo, now time.Time) []SnapshotRow {
	releaseDates := make(map[RecordKey]*civil.Date, len(extraInfo))
	for _, e := range extraInfo {
		releaseDates[e.Key()] = e.ReleaseDate
	}

	totals := make(map[GroupKey]float64)
	for _, p := range purchases {
		releaseDate, matched := releaseDates[p.Key()]
		if !matched || releaseDate == nil {
			continue
		}
		if p.Status != StatusApproved {
			continue
		}
		key := GroupKey{GMVDate: *releaseDate, Subsidiary: p.Subsidiary}
		totals[key] += p.TotalValue
	}

	rows := make([]SnapshotRow, 0, len(totals))
	for key, total := range totals {
		rows = append(rows, SnapshotRow{
			GMVDate:       key.GMVDate,
			Subsidiary:    key.Subsidiary,
			GMVTotal:      total,
			CalculationTS: now,
			IsLatest:      true,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].GMVDate != rows[j].GMVDate {
			return rows[i].GMVDate.Before(rows[j].GMVDate)
		}
		return rows[i].Subsidiary < rows[j].Subsidiary
	})

	return rows
}
