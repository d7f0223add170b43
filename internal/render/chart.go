// Package render draws query results as PNG charts. It is the output
// boundary of the query surface: it only reads series and never touches the
// dataset or colour state.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"strconv"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

const (
	marginLeft   = 64
	marginRight  = 24
	marginTop    = 40
	marginBottom = 44
	yTicks       = 5
	legendRow    = 16
)

var (
	background = color.RGBA{0xff, 0xff, 0xff, 0xff}
	axisColor  = color.RGBA{0x33, 0x33, 0x33, 0xff}
	gridColor  = color.RGBA{0xe5, 0xe5, 0xe5, 0xff}
)

// Options controls the canvas.
type Options struct {
	Width  int
	Height int
	Title  string // defaults to the station name
}

// DefaultOptions returns a 960x540 canvas.
func DefaultOptions() Options {
	return Options{Width: 960, Height: 540}
}

// PNG draws the chart and encodes it to w.
func PNG(w io.Writer, q domain.Query, series []domain.Series, opts Options) error {
	img, err := Draw(q, series, opts)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// Draw renders series for q. Series with no valid points produce an
// explicit "no data" canvas rather than an error.
func Draw(q domain.Query, series []domain.Series, opts Options) (*image.RGBA, error) {
	if opts.Width < marginLeft+marginRight+10 || opts.Height < marginTop+marginBottom+10 {
		return nil, fmt.Errorf("canvas %dx%d too small", opts.Width, opts.Height)
	}
	q = q.WithDefaults()
	if opts.Title == "" {
		opts.Title = q.StationName
	}

	colors := make([]color.RGBA, len(series))
	for i, s := range series {
		c, err := parseHex(s.Color)
		if err != nil {
			return nil, fmt.Errorf("series %q: %w", s.Label, err)
		}
		colors[i] = c
	}

	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)
	drawText(img, opts.Title, marginLeft, 24, axisColor)

	b, ok := computeBounds(series)
	plot := image.Rect(marginLeft, marginTop, opts.Width-marginRight, opts.Height-marginBottom)
	drawAxes(img, plot)
	if !ok {
		msg := "no data"
		drawText(img, msg, plot.Min.X+plot.Dx()/2-len(msg)*7/2, plot.Min.Y+plot.Dy()/2, axisColor)
		drawLegend(img, plot, series, colors)
		return img, nil
	}
	drawTicks(img, plot, b)

	sc := scaler{plot: plot, b: b}
	radius := markerRadius(q)
	for i, s := range series {
		c := colors[i]
		if q.ChartKind == domain.ChartLine {
			drawPolyline(img, sc, s.Points, c, dashPattern(*q.LineStyle))
		}
		for _, p := range s.Points {
			if !p.Value.Valid {
				continue
			}
			x, y := sc.xy(p.Timestamp, p.Value.Float64)
			drawMarker(img, x, y, radius, q.Marker, c)
		}
	}
	drawLegend(img, plot, series, colors)
	return img, nil
}

type bounds struct {
	tMin, tMax time.Time
	vMin, vMax float64
}

func computeBounds(series []domain.Series) (bounds, bool) {
	var b bounds
	found := false
	for _, s := range series {
		for _, p := range s.Points {
			if !p.Value.Valid {
				continue
			}
			v := p.Value.Float64
			if !found {
				b = bounds{tMin: p.Timestamp, tMax: p.Timestamp, vMin: v, vMax: v}
				found = true
				continue
			}
			if p.Timestamp.Before(b.tMin) {
				b.tMin = p.Timestamp
			}
			if p.Timestamp.After(b.tMax) {
				b.tMax = p.Timestamp
			}
			b.vMin = math.Min(b.vMin, v)
			b.vMax = math.Max(b.vMax, v)
		}
	}
	if found && b.vMin == b.vMax {
		b.vMin--
		b.vMax++
	}
	return b, found
}

type scaler struct {
	plot image.Rectangle
	b    bounds
}

func (s scaler) xy(t time.Time, v float64) (int, int) {
	var fx float64
	if span := s.b.tMax.Sub(s.b.tMin); span > 0 {
		fx = float64(t.Sub(s.b.tMin)) / float64(span)
	} else {
		fx = 0.5
	}
	fy := (v - s.b.vMin) / (s.b.vMax - s.b.vMin)
	x := s.plot.Min.X + int(math.Round(fx*float64(s.plot.Dx()-1)))
	y := s.plot.Max.Y - 1 - int(math.Round(fy*float64(s.plot.Dy()-1)))
	return x, y
}

// markerRadius converts a scatter size (area in points squared) to a pixel
// radius. Line charts use a fixed small marker.
func markerRadius(q domain.Query) int {
	if q.ChartKind != domain.ChartScatter || q.Size == nil {
		return 3
	}
	return max(1, int(math.Round(math.Sqrt(float64(*q.Size))/2)))
}

// dashPattern returns alternating on/off run lengths in pixels. nil is solid.
func dashPattern(style string) []int {
	switch style {
	case "--":
		return []int{8, 5}
	case ":":
		return []int{2, 4}
	case "-.":
		return []int{8, 4, 2, 4}
	default:
		return nil
	}
}

// drawPolyline connects consecutive valid points. A missing value breaks
// the line.
func drawPolyline(img *image.RGBA, sc scaler, pts []domain.Point, c color.RGBA, dash []int) {
	var st dashState
	havePrev := false
	var px, py int
	for _, p := range pts {
		if !p.Value.Valid {
			havePrev = false
			continue
		}
		x, y := sc.xy(p.Timestamp, p.Value.Float64)
		if havePrev {
			drawLine(img, px, py, x, y, c, dash, &st)
		}
		px, py, havePrev = x, y, true
	}
}

type dashState struct {
	seg  int
	left int
}

func (d *dashState) on(pattern []int) bool {
	if len(pattern) == 0 {
		return true
	}
	if d.left == 0 {
		d.left = pattern[d.seg]
	}
	on := d.seg%2 == 0
	d.left--
	if d.left == 0 {
		d.seg = (d.seg + 1) % len(pattern)
	}
	return on
}

// drawLine is Bresenham with a 2px pen.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA, dash []int, st *dashState) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		if st.on(dash) {
			fillRect(img, x0, y0, x0+2, y0+2, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func drawMarker(img *image.RGBA, x, y, r int, marker string, c color.RGBA) {
	switch marker {
	case "s":
		fillRect(img, x-r, y-r, x+r+1, y+r+1, c)
	case "^", "v":
		for dy := -r; dy <= r; dy++ {
			row := dy + r // 0 at the apex
			if marker == "v" {
				row = r - dy
			}
			half := row / 2
			fillRect(img, x-half, y+dy, x+half+1, y+dy+1, c)
		}
	case "+":
		fillRect(img, x-r, y-1, x+r+1, y+1, c)
		fillRect(img, x-1, y-r, x+1, y+r+1, c)
	case "x":
		for d := -r; d <= r; d++ {
			fillRect(img, x+d, y+d, x+d+2, y+d+1, c)
			fillRect(img, x+d, y-d, x+d+2, y-d+1, c)
		}
	case "d":
		for dy := -r; dy <= r; dy++ {
			half := r - abs(dy)
			fillRect(img, x-half, y+dy, x+half+1, y+dy+1, c)
		}
	default: // "o"
		for dy := -r; dy <= r; dy++ {
			half := int(math.Sqrt(float64(r*r - dy*dy)))
			fillRect(img, x-half, y+dy, x+half+1, y+dy+1, c)
		}
	}
}

func drawAxes(img *image.RGBA, plot image.Rectangle) {
	fillRect(img, plot.Min.X-1, plot.Min.Y, plot.Min.X, plot.Max.Y, axisColor)
	fillRect(img, plot.Min.X-1, plot.Max.Y, plot.Max.X, plot.Max.Y+1, axisColor)
}

func drawTicks(img *image.RGBA, plot image.Rectangle, b bounds) {
	for i := 0; i <= yTicks; i++ {
		v := b.vMin + (b.vMax-b.vMin)*float64(i)/yTicks
		y := plot.Max.Y - 1 - int(math.Round(float64(i)/yTicks*float64(plot.Dy()-1)))
		if i > 0 {
			fillRect(img, plot.Min.X, y, plot.Max.X, y+1, gridColor)
		}
		label := strconv.FormatFloat(v, 'g', 4, 64)
		drawText(img, label, plot.Min.X-8-len(label)*7, y+4, axisColor)
	}

	const layout = "2006-01-02 15h"
	drawText(img, b.tMin.Format(layout), plot.Min.X, plot.Max.Y+18, axisColor)
	if b.tMax.After(b.tMin) {
		end := b.tMax.Format(layout)
		drawText(img, end, plot.Max.X-len(end)*7, plot.Max.Y+18, axisColor)
	}
}

func drawLegend(img *image.RGBA, plot image.Rectangle, series []domain.Series, colors []color.RGBA) {
	x := plot.Max.X - 200
	y := plot.Min.Y + 6
	for i, s := range series {
		fillRect(img, x, y+i*legendRow, x+10, y+i*legendRow+10, colors[i])
		drawText(img, s.Label, x+16, y+i*legendRow+10, axisColor)
	}
}

func drawText(img *image.RGBA, s string, x, y int, c color.Color) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func fillRect(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	r := image.Rect(x0, y0, x1, y1).Intersect(img.Bounds())
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

var errBadColor = errors.New("colour must be #rrggbb")

func parseHex(s string) (color.RGBA, error) {
	if len(s) != 7 || s[0] != '#' {
		return color.RGBA{}, fmt.Errorf("%w: %q", errBadColor, s)
	}
	n, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w: %q", errBadColor, s)
	}
	return color.RGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 0xff}, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
