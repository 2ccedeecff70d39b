package gmv

import "sort"

// SelectLatest collapses a raw record set to its authoritative state: exactly
// one record per natural key, the one with the newest version timestamp.
//
// Ties on the version timestamp are broken by the capture-layer ingest
// offset, descending, so the result is deterministic regardless of input
// order. An empty input yields an empty output; this is a valid result, not
// an error. The input is never modified.
func SelectLatest[R Record](records []R) []R {
	if len(records) == 0 {
		return nil
	}

	latest := make(map[RecordKey]R, len(records))
	for _, r := range records {
		current, seen := latest[r.Key()]
		if !seen || supersedes(r, current) {
			latest[r.Key()] = r
		}
	}

	out := make([]R, 0, len(latest))
	for _, r := range latest {
		out = append(out, r)
	}

	// Stable output order: callers and tests rely on it.
	sort.Slice(out, func(i, j int) bool {
		ki, kj := out[i].Key(), out[j].Key()
		if ki.PurchaseID != kj.PurchaseID {
			return ki.PurchaseID < kj.PurchaseID
		}
		return ki.Partition < kj.Partition
	})

	return out
}

// supersedes reports whether a is a newer version than b of the same record.
func supersedes[R Record](a, b R) bool {
	av, bv := a.Version(), b.Version()
	if !av.Equal(bv) {
		return av.After(bv)
	}
	return a.Offset() > b.Offset()
}
