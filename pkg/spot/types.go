// Package spot implements the Normalizer: a pure transform from an upstream
// Parks On The Air spot record to a NormalizedSpot, plus the derived
// classification helpers (band, entity, mode) it depends on.
package spot

// UpstreamSpot is the raw shape returned by the upstream spot API. Frequency
// arrives string-encoded; unknown/null fields default to empty string or
// zero per the upstream contract.
type UpstreamSpot struct {
	SpotID    int64   `json:"spotId"`
	Activator string  `json:"activator"`
	Frequency string  `json:"frequency"`
	Mode      string  `json:"mode"`
	Reference string  `json:"reference"`
	SpotTime  string  `json:"spotTime"`
	Spotter   string  `json:"spotter"`
	Source    string  `json:"source"`
	Name      string  `json:"name"`
	Grid4     string  `json:"grid4"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NormalizedSpot is the canonical record persisted to raw/ and consumed only
// as aggregation input; it is never mutated after creation.
type NormalizedSpot struct {
	CapturedAt       string  `json:"capturedAt"`
	SpotID           int64   `json:"spotId"`
	Activator        string  `json:"activator"`
	Reference        string  `json:"reference"`
	FrequencyKHz     float64 `json:"frequencyKhz"`
	Mode             string  `json:"mode"`
	Band             string  `json:"band"`
	Source           string  `json:"source"`
	Entity           string  `json:"entity"`
	Grid             string  `json:"grid"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	ActivatorName    string  `json:"activatorName"`
	Spotter          string  `json:"spotter"`
	State            *string `json:"state"`
}
