package gmv

import (
	"testing"
	"time"
)

func ts(h, m int) time.Time {
	return time.Date(2024, time.May, 10, h, m, 0, 0, time.UTC)
}

func purchase(id, partition string, version time.Time, offset int64, total float64) PurchaseRecord {
	return PurchaseRecord{
		PurchaseID:          id,
		Partition:           partition,
		TransactionDatetime: version,
		IngestOffset:        offset,
		Status:              StatusApproved,
		TotalValue:          total,
		Subsidiary:          "BR-01",
	}
}

func TestSelectLatestKeepsNewestPerKey(t *testing.T) {
	records := []PurchaseRecord{
		purchase("p1", "a", ts(8, 0), 1, 10),
		purchase("p1", "a", ts(9, 30), 2, 12), // newest version of p1/a
		purchase("p1", "b", ts(8, 15), 3, 7),  // same purchase id, different partition
		purchase("p2", "a", ts(7, 0), 4, 99),
	}

	got := SelectLatest(records)

	if len(got) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(got))
	}
	for _, r := range got {
		if r.PurchaseID == "p1" && r.Partition == "a" && r.TotalValue != 12 {
			t.Errorf("Expected latest p1/a to have total 12, got %v", r.TotalValue)
		}
	}
}

func TestSelectLatestOutputKeysAreUnique(t *testing.T) {
	records := []PurchaseRecord{
		purchase("p1", "a", ts(8, 0), 1, 1),
		purchase("p1", "a", ts(8, 1), 2, 2),
		purchase("p1", "a", ts(8, 2), 3, 3),
		purchase("p2", "a", ts(8, 0), 4, 4),
		purchase("p2", "a", ts(8, 5), 5, 5),
	}

	got := SelectLatest(records)

	seen := make(map[RecordKey]bool)
	for _, r := range got {
		if seen[r.Key()] {
			t.Fatalf("Duplicate key in output: %+v", r.Key())
		}
		seen[r.Key()] = true
	}

	distinct := make(map[RecordKey]bool)
	for _, r := range records {
		distinct[r.Key()] = true
	}
	if len(got) > len(distinct) {
		t.Errorf("Output size %d exceeds distinct key count %d", len(got), len(distinct))
	}
}

func TestSelectLatestEmptyInput(t *testing.T) {
	if got := SelectLatest([]PurchaseRecord{}); len(got) != 0 {
		t.Errorf("Expected empty output for empty input, got %d records", len(got))
	}
	if got := SelectLatest[PurchaseRecord](nil); len(got) != 0 {
		t.Errorf("Expected empty output for nil input, got %d records", len(got))
	}
}

func TestSelectLatestTieBreakIsDeterministic(t *testing.T) {
	// Two versions with an identical version timestamp: the higher ingest
	// offset wins, regardless of input order.
	a := purchase("p1", "a", ts(8, 0), 1, 10)
	b := purchase("p1", "a", ts(8, 0), 2, 20)

	for name, input := range map[string][]PurchaseRecord{
		"a_first": {a, b},
		"b_first": {b, a},
	} {
		got := SelectLatest(input)
		if len(got) != 1 {
			t.Fatalf("%s: expected 1 record, got %d", name, len(got))
		}
		if got[0].IngestOffset != 2 {
			t.Errorf("%s: expected offset 2 to win the tie, got %d", name, got[0].IngestOffset)
		}
	}
}

func TestSelectLatestWorksForExtraInfo(t *testing.T) {
	records := []PurchaseExtraInfo{
		{PurchaseID: "p1", Partition: "a", TransactionDatetime: ts(8, 0), IngestOffset: 1},
		{PurchaseID: "p1", Partition: "a", TransactionDatetime: ts(9, 0), IngestOffset: 2},
	}

	got := SelectLatest(records)
	if len(got) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(got))
	}
	if got[0].IngestOffset != 2 {
		t.Errorf("Expected the newer version (offset 2), got offset %d", got[0].IngestOffset)
	}
}
