package domain

import (
	"fmt"
	"strings"
)

// Station is a fixed air-quality monitoring site.
type Station struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`

	// PlaceName is filled by optional reverse geocoding.
	PlaceName string `json:"place_name,omitempty"`
}

// Registry is an immutable lookup table of stations keyed by id and by name.
type Registry struct {
	stations []Station
	byID     map[string]int
	byName   map[string]int
}

// NewRegistry builds a registry. Ids and names must be non-empty and unique.
func NewRegistry(stations []Station) (*Registry, error) {
	r := &Registry{
		stations: make([]Station, 0, len(stations)),
		byID:     make(map[string]int, len(stations)),
		byName:   make(map[string]int, len(stations)),
	}
	for _, s := range stations {
		s.ID = strings.TrimSpace(s.ID)
		s.Name = strings.TrimSpace(s.Name)
		if s.ID == "" || s.Name == "" {
			return nil, fmt.Errorf("station %q: id and name are required", s.ID)
		}
		if _, dup := r.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate station id %q", s.ID)
		}
		if _, dup := r.byName[s.Name]; dup {
			return nil, fmt.Errorf("duplicate station name %q", s.Name)
		}
		r.byID[s.ID] = len(r.stations)
		r.byName[s.Name] = len(r.stations)
		r.stations = append(r.stations, s)
	}
	return r, nil
}

// DefaultRegistry returns the registry of the 21 Guangzhou stations.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultStations())
	if err != nil {
		panic(err) // static table, covered by tests
	}
	return r
}

// Lookup returns the station with the given id.
func (r *Registry) Lookup(id string) (Station, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Station{}, false
	}
	return r.stations[i], true
}

// ByName returns the station with the given display name (exact match).
func (r *Registry) ByName(name string) (Station, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Station{}, false
	}
	return r.stations[i], true
}

// Stations returns a copy of all stations in registration order.
func (r *Registry) Stations() []Station {
	out := make([]Station, len(r.stations))
	copy(out, r.stations)
	return out
}

// Len returns the number of stations.
func (r *Registry) Len() int { return len(r.stations) }

// WithPlaceNames returns a new registry where each station whose id is a key
// of names carries that place name. The receiver is left untouched.
func (r *Registry) WithPlaceNames(names map[string]string) *Registry {
	stations := r.Stations()
	for i := range stations {
		if name, ok := names[stations[i].ID]; ok {
			stations[i].PlaceName = name
		}
	}
	out, err := NewRegistry(stations)
	if err != nil {
		// ids and names are unchanged, so this cannot fail
		panic(err)
	}
	return out
}

// DefaultStations returns a fresh copy of the built-in station table.
func DefaultStations() []Station {
	return []Station{
		{ID: "1345A", Name: "广雅中学", Longitude: 113.2347, Latitude: 23.1423},
		{ID: "1346A", Name: "市五中", Longitude: 113.2612, Latitude: 23.105},
		{ID: "1348A", Name: "广东商学", Longitude: 113.3478, Latitude: 23.0916},
		{ID: "1349A", Name: "市八十六", Longitude: 113.4332, Latitude: 23.1047},
		{ID: "1350A", Name: "番禺中学", Longitude: 113.3505, Latitude: 22.9483},
		{ID: "1351A", Name: "花都师范", Longitude: 113.2146, Latitude: 23.3916},
		{ID: "1352A", Name: "市监测站", Longitude: 113.2597, Latitude: 23.1331},
		{ID: "1353A", Name: "九龙镇镇", Longitude: 113.5618, Latitude: 23.312},
		{ID: "1354A", Name: "越湖", Longitude: 113.2765, Latitude: 23.1544},
		{ID: "1355A", Name: "帽峰山森", Longitude: 113.443, Latitude: 23.3035},
		{ID: "2846A", Name: "体育西", Longitude: 113.3221, Latitude: 23.1322},
		{ID: "3298A", Name: "从化街口", Longitude: 113.5717, Latitude: 23.5491},
		{ID: "3299A", Name: "白云竹科", Longitude: 113.3472, Latitude: 23.3692},
		{ID: "3300A", Name: "白云嘉禾", Longitude: 113.2981, Latitude: 23.237},
		{ID: "3301A", Name: "黄埔科学", Longitude: 113.4256, Latitude: 23.1716},
		{ID: "3302A", Name: "番禺大学", Longitude: 113.3942, Latitude: 23.0483},
		{ID: "3303A", Name: "南沙黄阁", Longitude: 113.4922, Latitude: 22.8168},
		{ID: "3304A", Name: "南沙街", Longitude: 113.5342, Latitude: 22.7896},
		{ID: "3443A", Name: "花都梯面", Longitude: 113.2902, Latitude: 23.5544},
		{ID: "3445A", Name: "从化良口", Longitude: 113.7858, Latitude: 23.7478},
		{ID: "3446A", Name: "增城荔城", Longitude: 113.8051, Latitude: 23.2614},
	}
}
