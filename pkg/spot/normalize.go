package spot

import (
	"strconv"
	"strings"
	"time"
)

// bandRange is one row of the frequency-to-band classification table.
// Ranges are closed on both ends; the first matching row wins, which is
// safe because the table's ranges never overlap.
type bandRange struct {
	minMHz float64
	maxMHz float64
	band   string
}

// bandTable is the amateur-radio band plan used to classify a spot's
// frequency, in ascending order.
var bandTable = []bandRange{
	{1.8, 2.0, "160m"},
	{3.5, 4.0, "80m"},
	{5.3, 5.4, "60m"},
	{7.0, 7.3, "40m"},
	{10.1, 10.15, "30m"},
	{14.0, 14.35, "20m"},
	{18.068, 18.168, "17m"},
	{21.0, 21.45, "15m"},
	{24.89, 24.99, "12m"},
	{28.0, 29.7, "10m"},
	{50.0, 54.0, "6m"},
	{144.0, 148.0, "2m"},
	{420.0, 450.0, "70cm"},
}

const otherBand = "other"

// ClassifyBand converts a frequency in kHz to its human-readable band tag.
// Unparseable, NaN, negative, or out-of-range values map to "other".
func ClassifyBand(khz float64) string {
	if khz <= 0 || khz != khz { // khz != khz catches NaN without importing math
		return otherBand
	}
	mhz := khz / 1000.0
	for _, r := range bandTable {
		if mhz >= r.minMHz && mhz <= r.maxMHz {
			return r.band
		}
	}
	return otherBand
}

// ExtractEntity returns the prefix of a park reference before its first
// hyphen, e.g. "K-1234" -> "K", "US-PA-1234" -> "US". A hyphen-less
// reference is returned as-is, e.g. "ABC" -> "ABC". Only an empty first
// segment (empty reference or a leading hyphen) maps to "unknown".
func ExtractEntity(reference string) string {
	idx := strings.Index(reference, "-")
	if idx < 0 {
		idx = len(reference)
	}
	if idx == 0 {
		return "unknown"
	}
	return reference[:idx]
}

// parseFrequencyKHz parses the upstream's string-encoded frequency, falling
// back to 0 on any parse failure.
func parseFrequencyKHz(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// StateResolver resolves a US state code from coordinates or a Maidenhead
// grid square. It is a pure, offline lookup — see pkg/geo for the concrete
// implementation.
type StateResolver interface {
	// ResolveState returns a two-letter US state code, or nil if neither the
	// coordinate table nor the grid table has a match.
	ResolveState(lat, lon float64, grid string) *string
}

// Normalize converts an UpstreamSpot into a NormalizedSpot. capturedAt is
// the collector's capture timestamp (ISO-8601 UTC), stamped by the caller
// rather than derived from the spot itself, since multiple spots in one
// capture share the same capture time.
func Normalize(raw UpstreamSpot, capturedAt time.Time, resolver StateResolver) NormalizedSpot {
	freq := parseFrequencyKHz(raw.Frequency)
	mode := strings.ToUpper(strings.TrimSpace(raw.Mode))
	grid := normalizeGrid(raw.Grid4)

	var state *string
	if resolver != nil {
		state = resolver.ResolveState(raw.Latitude, raw.Longitude, grid)
	}

	return NormalizedSpot{
		CapturedAt:    capturedAt.UTC().Format(time.RFC3339Nano),
		SpotID:        raw.SpotID,
		Activator:     raw.Activator,
		Reference:     raw.Reference,
		FrequencyKHz:  freq,
		Mode:          mode,
		Band:          ClassifyBand(freq),
		Source:        raw.Source,
		Entity:        ExtractEntity(raw.Reference),
		Grid:          grid,
		Latitude:      raw.Latitude,
		Longitude:     raw.Longitude,
		ActivatorName: raw.Name,
		Spotter:       raw.Spotter,
		State:         state,
	}
}

// normalizeGrid upper-cases and truncates a grid square to its 4-character
// field+square component; shorter or empty inputs pass through unchanged so
// downstream state resolution can decide whether they're usable.
func normalizeGrid(grid string) string {
	grid = strings.TrimSpace(strings.ToUpper(grid))
	if len(grid) > 4 {
		return grid[:4]
	}
	return grid
}
