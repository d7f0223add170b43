package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2023, 1, 1, 5, 0, 0, 0, time.UTC)

func TestReshape_OneRowPerStationColumn(t *testing.T) {
	stations := []string{"1345A", "1346A", "9999Z"}
	wide := []WideRecord{
		{Source: testSource, Line: 2, Timestamp: testTime, PollutantType: "PM2.5", StationIDs: stations, Values: []Value{Some(35.2), Missing, Some(7)}},
		{Source: testSource, Line: 3, Timestamp: testTime, PollutantType: "AQI", StationIDs: stations, Values: []Value{Some(41), Some(38), Some(1)}},
	}

	long := Reshape(wide)

	require.Len(t, long, 6)
	for i, w := range wide {
		for j, id := range stations {
			r := long[i*len(stations)+j]
			assert.Equal(t, w.Timestamp, r.Timestamp)
			assert.Equal(t, w.PollutantType, r.PollutantType)
			assert.Equal(t, id, r.StationID)
			assert.Equal(t, w.Values[j], r.Value)
			assert.Equal(t, w.Line, r.Line)
		}
	}
}

func TestReshape_Empty(t *testing.T) {
	assert.Empty(t, Reshape(nil))
}

func TestReshape_KeepsDuplicates(t *testing.T) {
	w := WideRecord{Timestamp: testTime, PollutantType: "CO", StationIDs: []string{"1345A"}, Values: []Value{Some(0.6)}}

	long := Reshape([]WideRecord{w, w})

	assert.Len(t, long, 2)
}

func TestDeduplicate(t *testing.T) {
	r := LongRecord{Timestamp: testTime, PollutantType: "CO", StationID: "1345A", Value: Some(0.6)}
	other := r
	other.StationID = "1346A"
	sameInstant := r
	sameInstant.Timestamp = testTime.In(time.FixedZone("CST", 8*3600))
	sameInstant.Value = Some(9)
	long := []LongRecord{r, other, r, sameInstant}

	t.Run("keep", func(t *testing.T) {
		kept, dropped := Deduplicate(long, DedupKeep)
		assert.Len(t, kept, 4)
		assert.Zero(t, dropped)
	})

	t.Run("drop keeps first occurrence", func(t *testing.T) {
		kept, dropped := Deduplicate(long, DedupDrop)
		require.Len(t, kept, 2)
		assert.Equal(t, 2, dropped)
		assert.Equal(t, Some(0.6), kept[0].Value)
		assert.Equal(t, "1346A", kept[1].StationID)
	})
}
