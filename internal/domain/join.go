package domain

// JoinMissPolicy controls how long rows with unregistered station ids are
// treated.
type JoinMissPolicy string

const (
	// JoinMissDrop drops the rows and counts them.
	JoinMissDrop JoinMissPolicy = "drop"
	// JoinMissFail makes the run fail with a *JoinMissError.
	JoinMissFail JoinMissPolicy = "fail"
)

// JoinReport describes the outcome of a join.
type JoinReport struct {
	Input   int
	Output  int
	Dropped int
	Missing map[string]int // unregistered station id -> dropped rows
}

// Join inner-joins long records to the registry by station id. Records
// whose station id is not registered are excluded and counted per id.
// Output IDs are assigned sequentially from zero in input order.
func Join(long []LongRecord, reg *Registry) ([]Measurement, JoinReport) {
	report := JoinReport{Input: len(long), Missing: make(map[string]int)}
	out := make([]Measurement, 0, len(long))
	for _, r := range long {
		st, ok := reg.Lookup(r.StationID)
		if !ok {
			report.Missing[r.StationID]++
			report.Dropped++
			continue
		}
		out = append(out, Measurement{
			ID:            len(out),
			Timestamp:     r.Timestamp,
			PollutantType: r.PollutantType,
			StationID:     r.StationID,
			Value:         r.Value,
			StationName:   st.Name,
			Longitude:     st.Longitude,
			Latitude:      st.Latitude,
		})
	}
	report.Output = len(out)
	return out, report
}

// Err returns a *JoinMissError when policy is JoinMissFail and rows were dropped.
func (r JoinReport) Err(policy JoinMissPolicy) error {
	if policy != JoinMissFail || r.Dropped == 0 {
		return nil
	}
	missing := make(map[string]int, len(r.Missing))
	for id, n := range r.Missing {
		missing[id] = n
	}
	return &JoinMissError{Missing: missing}
}
