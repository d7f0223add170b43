package domain

import (
	"context"
	"log/slog"
)

// EnrichStations reverse-geocodes every station and returns a registry that
// carries the resulting place names. If geocoder is nil the registry is
// returned as is; a failed or empty lookup leaves that station without a
// place name (graceful degradation).
func EnrichStations(ctx context.Context, reg *Registry, geocoder Geocoder, logger *slog.Logger) *Registry {
	if geocoder == nil {
		return reg
	}

	names := make(map[string]string, reg.Len())
	for _, st := range reg.Stations() {
		if ctx.Err() != nil {
			break
		}
		result, err := geocoder.ReverseGeocode(ctx, st.Latitude, st.Longitude)
		if err != nil {
			logger.Warn("reverse geocoding failed",
				"station_id", st.ID,
				"lat", st.Latitude,
				"lon", st.Longitude,
				"error", err,
			)
			continue
		}
		name := result.PlaceName
		if name == "" {
			name = result.FormattedAddress
		}
		if name != "" {
			names[st.ID] = name
		}
	}
	return reg.WithPlaceNames(names)
}
