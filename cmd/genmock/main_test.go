package main

import (
	"bytes"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/air-quality-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

func TestGenerate_ParsesBack(t *testing.T) {
	var buf bytes.Buffer
	day := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	ids := stationIDs(domain.DefaultStations())
	rng := rand.New(rand.NewPCG(1, 2))

	require.NoError(t, generate(&buf, day, ids, rng, options{missingRate: 0.1, unknownStation: "9999Z"}))
	assert.True(t, strings.HasPrefix(buf.String(), utf8BOM))

	table, err := csvfile.Parse(&buf, "china_sites_20230101.csv")
	require.NoError(t, err)
	assert.Equal(t, append(ids, "9999Z"), table.StationIDs)
	assert.Len(t, table.Rows, 24*len(pollutants))

	first := table.Rows[0]
	assert.Equal(t, "20230101", first.Date)
	assert.Equal(t, "0", first.Hour)
	assert.Equal(t, "AQI", first.PollutantType)

	wide, report := domain.NewNormalizer(time.UTC).Normalize([]domain.RawTable{table})
	assert.Len(t, wide, len(table.Rows))
	assert.Empty(t, report.TimeErrors)
	assert.Positive(t, report.MissingValues)
}

func TestGenerate_Deterministic(t *testing.T) {
	day := time.Date(2023, time.March, 5, 0, 0, 0, 0, time.UTC)
	ids := []string{"1345A", "1346A"}

	var a, b bytes.Buffer
	require.NoError(t, generate(&a, day, ids, rand.New(rand.NewPCG(7, 7)), options{}))
	require.NoError(t, generate(&b, day, ids, rand.New(rand.NewPCG(7, 7)), options{}))
	assert.Equal(t, a.String(), b.String())
}
