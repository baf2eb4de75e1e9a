// Package geo implements US state resolution from a coordinate pair or a
// Maidenhead grid square as an offline, in-process lookup. Both tables are
// necessarily approximate (a handful of representative bounding boxes and a
// grid-prefix table) rather than a full point-in-polygon dataset.
package geo

import "strings"

// bboxState is one entry of the coordinate lookup table: a coarse lat/lon
// bounding box mapped to the state most of it falls within. Entries are
// checked in order and the first match wins; boxes overlap, so a point that
// lies in more than one box resolves to whichever entry is listed first.
type bboxState struct {
	minLat, maxLat float64
	minLon, maxLon float64
	state          string
}

// coordTable is intentionally coarse: it exists to resolve the common case
// (an activator well inside a state's interior) offline, not to replace a
// real point-in-polygon service at state borders.
var coordTable = []bboxState{
	{24.5, 31.0, -87.6, -80.0, "FL"},
	{30.2, 35.0, -91.7, -81.0, "GA"},
	{32.0, 35.0, -84.3, -78.5, "SC"},
	{33.8, 36.6, -84.4, -75.4, "NC"},
	{36.5, 39.5, -83.7, -75.2, "VA"},
	{37.9, 39.7, -79.5, -75.0, "MD"},
	{38.4, 42.0, -80.5, -74.7, "PA"},
	{40.5, 45.0, -79.8, -71.8, "NY"},
	{42.7, 45.0, -73.5, -71.5, "VT"},
	{42.7, 45.3, -73.5, -70.6, "NH"},
	{42.9, 47.5, -71.1, -66.9, "ME"},
	{41.0, 43.0, -73.6, -69.9, "MA"},
	{41.1, 42.1, -73.8, -71.1, "CT"},
	{41.1, 42.1, -71.9, -71.1, "RI"},
	{38.4, 41.4, -75.8, -74.7, "NJ"},
	{38.4, 39.9, -75.8, -75.0, "DE"},
	{37.2, 39.5, -82.7, -77.6, "WV"},
	{38.4, 42.5, -84.9, -80.5, "OH"},
	{37.7, 42.0, -88.1, -84.8, "IN"},
	{36.9, 42.5, -91.6, -87.0, "IL"},
	{41.7, 47.5, -90.5, -82.1, "MI"},
	{42.4, 47.1, -92.9, -86.2, "WI"},
	{43.4, 49.4, -97.3, -89.5, "MN"},
	{40.3, 43.6, -96.8, -90.0, "IA"},
	{35.9, 40.6, -95.9, -89.0, "MO"},
	{36.9, 43.0, -104.1, -95.3, "NE"},
	{37.0, 40.1, -102.1, -94.6, "KS"},
	{25.8, 36.6, -106.7, -93.5, "TX"},
	{33.6, 37.0, -103.1, -94.4, "OK"},
	{29.0, 33.1, -94.1, -88.9, "LA"},
	{33.0, 35.0, -91.7, -89.6, "MS"},
	{30.1, 35.0, -88.6, -84.9, "AL"},
	{34.9, 39.2, -90.4, -81.6, "TN"},
	{36.5, 39.2, -89.6, -82.0, "KY"},
	{31.3, 37.1, -109.1, -102.9, "NM"},
	{31.3, 37.1, -114.9, -109.0, "AZ"},
	{37.0, 42.0, -114.1, -109.0, "UT"},
	{37.0, 41.1, -109.1, -102.0, "CO"},
	{41.0, 45.1, -111.1, -104.1, "WY"},
	{44.4, 49.1, -111.1, -104.1, "MT"},
	{43.0, 49.1, -104.1, -96.4, "SD"},
	{45.9, 49.1, -104.1, -96.6, "ND"},
	{42.0, 49.1, -117.1, -111.1, "ID"},
	{45.5, 49.1, -124.9, -117.1, "WA"},
	{42.0, 46.4, -124.9, -116.5, "OR"},
	{32.5, 42.1, -124.5, -114.1, "CA"},
	{35.0, 42.1, -120.1, -114.1, "NV"},
	// Alaska and Hawaii are omitted: neither has a compact non-overlapping
	// bounding box in this coarse scheme. gridTable has no entries for them
	// either, so spots there resolve to no state.
}

// ResolveCoord returns the two-letter US state whose bounding box contains
// (lat, lon), or nil if no box matches (non-US or off-table coordinates).
func ResolveCoord(lat, lon float64) *string {
	if lat == 0 && lon == 0 {
		return nil
	}
	for _, b := range coordTable {
		if lat >= b.minLat && lat <= b.maxLat && lon >= b.minLon && lon <= b.maxLon {
			state := b.state
			return &state
		}
	}
	return nil
}

// gridEntry maps a 4-character Maidenhead grid prefix to a state. The
// mapping is not injective in the source data — some grids straddle two
// states — so gridTable intentionally lists duplicate prefixes; ResolveGrid
// takes the first match by declaration order, a deliberate deterministic
// tie-break.
type gridEntry struct {
	prefix string
	state  string
}

var gridTable = []gridEntry{
	{"FN31", "NY"}, {"FN32", "NY"}, {"FN41", "NY"}, {"FN42", "MA"},
	{"FN43", "MA"}, {"FN20", "NJ"}, {"FN21", "NY"}, {"FN30", "PA"},
	{"FM18", "DC"}, {"FM19", "MD"}, {"FM06", "NC"}, {"FM07", "VA"},
	{"FM16", "VA"}, {"FM17", "VA"}, {"FM05", "SC"}, {"FM04", "GA"},
	{"EM73", "GA"}, {"EM70", "FL"}, {"EL98", "FL"}, {"EL87", "FL"},
	{"EM74", "TN"}, {"EM75", "KY"}, {"EM79", "OH"}, {"EN80", "MI"},
	{"EN81", "MI"}, {"EN61", "WI"}, {"EN52", "IL"}, {"EN61", "IL"},
	{"EM69", "AL"}, {"EM60", "MS"}, {"EM31", "TX"}, {"EM12", "TX"},
	{"EM26", "OK"}, {"EM45", "AR"}, {"EM38", "LA"},
	{"CN85", "WA"}, {"CN87", "WA"}, {"CN83", "WA"}, {"CN83", "OR"},
	{"CM88", "CA"}, {"CM97", "CA"}, {"DM04", "CA"}, {"DM13", "AZ"},
	{"DM33", "AZ"}, {"DM43", "NM"}, {"DN70", "CO"}, {"DN40", "UT"},
	{"DN31", "ID"}, {"DN45", "WY"}, {"DN90", "SD"}, {"EN34", "IA"},
	{"EN10", "KS"}, {"EN00", "NE"}, {"EM17", "MO"}, {"EM90", "IN"},
}

// ResolveGrid returns the state mapped from the 4-character grid prefix, or
// nil if grid is shorter than 4 characters or has no table entry.
func ResolveGrid(grid string) *string {
	grid = strings.ToUpper(strings.TrimSpace(grid))
	if len(grid) < 4 {
		return nil
	}
	prefix := grid[:4]
	for _, e := range gridTable {
		if e.prefix == prefix {
			state := e.state
			return &state
		}
	}
	return nil
}

// Resolver implements spot.StateResolver: coordinates take priority, and the
// grid table is the fallback when coordinates don't resolve to a state.
type Resolver struct{}

// ResolveState tries the coordinate table first, then the grid table.
func (Resolver) ResolveState(lat, lon float64, grid string) *string {
	if state := ResolveCoord(lat, lon); state != nil {
		return state
	}
	return ResolveGrid(grid)
}
