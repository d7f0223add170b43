package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

var t0 = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func testSeries(color string, values ...domain.Value) domain.Series {
	pts := make([]domain.Point, len(values))
	for i, v := range values {
		pts[i] = domain.Point{Timestamp: t0.Add(time.Duration(i) * time.Hour), Value: v}
	}
	return domain.Series{PollutantType: "PM2.5", Label: "广雅中学 - PM2.5", Color: color, Points: pts}
}

func countColor(img image.Image, c color.RGBA) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if color.RGBAModel.Convert(img.At(x, y)) == c {
				n++
			}
		}
	}
	return n
}

func TestPNG_LineChart(t *testing.T) {
	q := domain.Query{StationName: "广雅中学", PollutantTypes: []string{"PM2.5"}, ChartKind: domain.ChartLine}
	s := testSeries("#1f77b4", domain.Some(10), domain.Some(30), domain.Missing, domain.Some(20))

	var buf bytes.Buffer
	require.NoError(t, PNG(&buf, q, []domain.Series{s}, DefaultOptions()))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 960, 540), img.Bounds())
	assert.Positive(t, countColor(img, color.RGBA{0x1f, 0x77, 0xb4, 0xff}))
}

func TestDraw_ScatterMarkerPosition(t *testing.T) {
	q := domain.Query{StationName: "市五中", PollutantTypes: []string{"PM2.5"}, ChartKind: domain.ChartScatter, Marker: "s", Size: ptr(36)}
	s := testSeries("#d62728", domain.Some(5), domain.Some(15))

	img, err := Draw(q, []domain.Series{s}, Options{Width: 400, Height: 300})
	require.NoError(t, err)

	red := color.RGBA{0xd6, 0x27, 0x28, 0xff}
	// first point: left edge, bottom of the plot area
	assert.Equal(t, red, img.RGBAAt(marginLeft+1, 300-marginBottom-2))
	// size 36 gives a radius 3 square, so 7x7 per marker plus the legend swatch
	assert.Equal(t, 2*49+100, countColor(img, red))
}

func TestDraw_NoData(t *testing.T) {
	q := domain.Query{StationName: "nowhere", PollutantTypes: []string{"AQI"}, ChartKind: domain.ChartScatter}
	s := testSeries("#2ca02c", domain.Missing, domain.Missing)

	img, err := Draw(q, []domain.Series{s}, DefaultOptions())
	require.NoError(t, err)
	// only the legend swatch carries the series colour
	assert.Equal(t, 100, countColor(img, color.RGBA{0x2c, 0xa0, 0x2c, 0xff}))
}

func TestDraw_Errors(t *testing.T) {
	q := domain.Query{StationName: "x", ChartKind: domain.ChartLine}

	_, err := Draw(q, []domain.Series{testSeries("red", domain.Some(1))}, DefaultOptions())
	require.ErrorIs(t, err, errBadColor)

	_, err = Draw(q, nil, Options{Width: 50, Height: 50})
	require.Error(t, err)
}

func TestDashPattern(t *testing.T) {
	pattern := dashPattern("--")
	var st dashState
	var got []bool
	for range 15 {
		got = append(got, st.on(pattern))
	}
	want := []bool{
		true, true, true, true, true, true, true, true,
		false, false, false, false, false,
		true, true,
	}
	assert.Equal(t, want, got)

	assert.Nil(t, dashPattern("-"))
	assert.True(t, (&dashState{}).on(nil))
}

func TestMarkerRadius(t *testing.T) {
	assert.Equal(t, 3, markerRadius(domain.Query{ChartKind: domain.ChartLine}))
	assert.Equal(t, 2, markerRadius(domain.Query{ChartKind: domain.ChartScatter, Size: ptr(15)}))
	assert.Equal(t, 1, markerRadius(domain.Query{ChartKind: domain.ChartScatter, Size: ptr(1)}))
	assert.Equal(t, 5, markerRadius(domain.Query{ChartKind: domain.ChartScatter, Size: ptr(100)}))
}

func TestParseHex(t *testing.T) {
	c, err := parseHex("#FF7f0e")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{0xff, 0x7f, 0x0e, 0xff}, c)

	for _, bad := range []string{"", "ff7f0e", "#ff7f0", "#gg0000"} {
		_, err := parseHex(bad)
		assert.ErrorIs(t, err, errBadColor, bad)
	}
}
