package domain

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
)

var hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// DefaultPalette returns a copy of the ten-colour categorical palette.
func DefaultPalette() []string {
	return []string{
		"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
		"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
	}
}

// ColorAllocator assigns a stable colour to each pollutant type of one
// session. While the palette has unused entries every assignment is a
// distinct palette colour; after that, colours are random 24-bit RGB.
// An assigned type keeps its colour for the life of the allocator.
//
// A ColorAllocator is not safe for concurrent use.
type ColorAllocator struct {
	palette  []string
	assigned map[string]string
	used     map[string]struct{}
	order    []string
	rng      *rand.Rand
	random   int
}

// NewColorAllocator creates an allocator over palette. rng drives the
// fallback colours; nil uses a randomly seeded source.
func NewColorAllocator(palette []string, rng *rand.Rand) *ColorAllocator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	p := make([]string, len(palette))
	for i, c := range palette {
		p[i] = strings.ToLower(c)
	}
	return &ColorAllocator{
		palette:  p,
		assigned: make(map[string]string),
		used:     make(map[string]struct{}),
		rng:      rng,
	}
}

// Assign returns the colour of pollutantType, assigning one on first use:
// the first palette colour not already held by another type, or a random
// colour once the palette is exhausted.
func (a *ColorAllocator) Assign(pollutantType string) string {
	if c, ok := a.assigned[pollutantType]; ok {
		return c
	}
	c, ok := a.nextPaletteColor()
	if !ok {
		c = fmt.Sprintf("#%06x", a.rng.IntN(0x1000000))
		a.random++
	}
	a.record(pollutantType, c)
	return c
}

// AssignAll assigns colours to types in order and returns the mapping
// restricted to them.
func (a *ColorAllocator) AssignAll(types []string) map[string]string {
	out := make(map[string]string, len(types))
	for _, t := range types {
		out[t] = a.Assign(t)
	}
	return out
}

// Pin records a user-chosen colour for a type that has no colour yet.
func (a *ColorAllocator) Pin(pollutantType, color string) error {
	if !hexColorRe.MatchString(color) {
		return fmt.Errorf("%w: %q (want #rrggbb)", ErrInvalidColor, color)
	}
	if c, ok := a.assigned[pollutantType]; ok {
		return fmt.Errorf("%w: %s is %s", ErrColorAssigned, pollutantType, c)
	}
	a.record(pollutantType, strings.ToLower(color))
	return nil
}

// Lookup returns the colour of an already assigned type.
func (a *ColorAllocator) Lookup(pollutantType string) (string, bool) {
	c, ok := a.assigned[pollutantType]
	return c, ok
}

// Assignments returns a copy of the full mapping.
func (a *ColorAllocator) Assignments() map[string]string {
	out := make(map[string]string, len(a.assigned))
	for t, c := range a.assigned {
		out[t] = c
	}
	return out
}

// Restrict returns the mapping for the given types that are assigned.
func (a *ColorAllocator) Restrict(types []string) map[string]string {
	out := make(map[string]string, len(types))
	for _, t := range types {
		if c, ok := a.assigned[t]; ok {
			out[t] = c
		}
	}
	return out
}

// Order returns pollutant types in assignment order.
func (a *ColorAllocator) Order() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// Remaining reports how many palette colours are still unused.
func (a *ColorAllocator) Remaining() int {
	n := 0
	for _, c := range a.palette {
		if _, ok := a.used[c]; !ok {
			n++
		}
	}
	return n
}

// RandomCount reports how many assignments fell back to random colours.
func (a *ColorAllocator) RandomCount() int { return a.random }

func (a *ColorAllocator) nextPaletteColor() (string, bool) {
	for _, c := range a.palette {
		if _, ok := a.used[c]; !ok {
			return c, true
		}
	}
	return "", false
}

func (a *ColorAllocator) record(pollutantType, color string) {
	a.assigned[pollutantType] = color
	a.used[color] = struct{}{}
	a.order = append(a.order, pollutantType)
}
