package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSource = "20230101.csv"

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		date     string
		hour     string
		expected time.Time
		wantErr  bool
	}{
		{"single digit hour padded", "20230101", "5", time.Date(2023, 1, 1, 5, 0, 0, 0, time.UTC), false},
		{"two digit hour", "20230101", "23", time.Date(2023, 1, 1, 23, 0, 0, 0, time.UTC), false},
		{"zero hour", "20230101", "0", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), false},
		{"padded hour", "20231231", "07", time.Date(2023, 12, 31, 7, 0, 0, 0, time.UTC), false},
		{"surrounding space", " 20230101 ", " 5 ", time.Date(2023, 1, 1, 5, 0, 0, 0, time.UTC), false},
		{"hour 24", "20230101", "24", time.Time{}, true},
		{"three digit hour", "20230101", "123", time.Time{}, true},
		{"non-numeric hour", "20230101", "five", time.Time{}, true},
		{"empty hour", "20230101", "", time.Time{}, true},
		{"short date", "2023011", "5", time.Time{}, true},
		{"non-numeric date", "2023Jan1", "5", time.Time{}, true},
		{"impossible day", "20230230", "5", time.Time{}, true},
		{"negative hour", "20230101", "-1", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.date, tt.hour, time.UTC)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseTimestamp_Location(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)

	got, err := ParseTimestamp("20230101", "5", shanghai)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2022, 12, 31, 21, 0, 0, 0, time.UTC), got.UTC())
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in       string
		expected Value
	}{
		{"35.2", Some(35.2)},
		{" 41 ", Some(41)},
		{"0", Some(0)},
		{"-3.5", Some(-3.5)},
		{"", Missing},
		{"—", Missing},
		{"NA", Missing},
		{"-", Missing},
		{"NaN", Missing},
		{"Inf", Missing},
		{"12abc", Missing},
		{"1e3", Some(1000)},
		{"0x1p3", Missing},
		{"-0X10p0", Missing},
		{"0.5", Some(0.5)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseValue(tt.in))
		})
	}
}

func TestValue_JSON(t *testing.T) {
	b, err := json.Marshal([]Value{Some(1.5), Missing})
	require.NoError(t, err)
	assert.JSONEq(t, `[1.5, null]`, string(b))

	var back []Value
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, []Value{Some(1.5), Missing}, back)
}

func TestNormalizer_Normalize(t *testing.T) {
	table := RawTable{
		Source:     testSource,
		StationIDs: []string{"1345A", "1346A"},
		Rows: []RawRow{
			{Line: 2, Date: "20230101", Hour: "5", PollutantType: "PM2.5", Cells: []string{"35.2", "—"}},
			{Line: 3, Date: "20230101", Hour: "xx", PollutantType: "PM2.5", Cells: []string{"1", "2"}},
			{Line: 4, Date: "20230101", Hour: "6", PollutantType: " AQI ", Cells: []string{"40"}},
		},
	}

	wide, report := NewNormalizer(time.UTC).Normalize([]RawTable{table})

	require.Len(t, wide, 2)
	assert.Equal(t, 3, report.Rows)
	assert.Equal(t, 2, report.Normalized)
	assert.Equal(t, 2, report.MissingValues, "one sentinel and one padded cell")

	require.Len(t, report.TimeErrors, 1)
	terr := report.TimeErrors[0]
	assert.Equal(t, testSource, terr.Source)
	assert.Equal(t, 3, terr.Line)
	assert.Contains(t, terr.Error(), `hour="xx"`)

	first := wide[0]
	assert.Equal(t, time.Date(2023, 1, 1, 5, 0, 0, 0, time.UTC), first.Timestamp)
	assert.Equal(t, "PM2.5", first.PollutantType)
	assert.Equal(t, []Value{Some(35.2), Missing}, first.Values)

	second := wide[1]
	assert.Equal(t, "AQI", second.PollutantType)
	assert.Equal(t, []Value{Some(40), Missing}, second.Values)
}

func TestNormalizer_NilLocationDefaultsToUTC(t *testing.T) {
	wide, _ := NewNormalizer(nil).Normalize([]RawTable{{
		StationIDs: []string{"1345A"},
		Rows:       []RawRow{{Date: "20230101", Hour: "1", PollutantType: "CO", Cells: []string{"0.6"}}},
	}})
	require.Len(t, wide, 1)
	assert.Equal(t, time.UTC, wide[0].Timestamp.Location())
}
