package domain

import "time"

// Reshape pivots wide records into long format: a record with K station
// columns yields exactly K long records in column order. Nothing is
// aggregated or deduplicated.
func Reshape(wide []WideRecord) []LongRecord {
	n := 0
	for i := range wide {
		n += len(wide[i].StationIDs)
	}
	out := make([]LongRecord, 0, n)
	for _, w := range wide {
		for i, id := range w.StationIDs {
			var v Value
			if i < len(w.Values) {
				v = w.Values[i]
			}
			out = append(out, LongRecord{
				Timestamp:     w.Timestamp,
				PollutantType: w.PollutantType,
				StationID:     id,
				Value:         v,
				Source:        w.Source,
				Line:          w.Line,
			})
		}
	}
	return out
}

// DedupPolicy controls what happens to repeated (timestamp, pollutant
// type, station id) triples, e.g. from overlapping source files.
type DedupPolicy string

const (
	// DedupKeep preserves every row, duplicates included.
	DedupKeep DedupPolicy = "keep"
	// DedupDrop keeps the first occurrence of each triple.
	DedupDrop DedupPolicy = "drop"
)

type longKey struct {
	ts        time.Time
	pollutant string
	station   string
}

// Deduplicate applies policy to long records and returns the kept records
// and the number dropped. DedupKeep returns the input unchanged.
func Deduplicate(long []LongRecord, policy DedupPolicy) ([]LongRecord, int) {
	if policy != DedupDrop {
		return long, 0
	}
	seen := make(map[longKey]struct{}, len(long))
	out := make([]LongRecord, 0, len(long))
	for _, r := range long {
		k := longKey{ts: r.Timestamp.UTC(), pollutant: r.PollutantType, station: r.StationID}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out, len(long) - len(out)
}
