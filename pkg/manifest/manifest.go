// Package manifest implements the load-modify-store publisher for the
// single manifest.json object: the index of the newest hourly/daily/monthly
// rollup paths that downstream readers use to discover what to fetch.
package manifest

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/kb9wtx/spotlake/pkg/objectstore"
)

// Level identifies which of the three entry lists an update targets.
type Level string

const (
	Hourly  Level = "hourly"
	Daily   Level = "daily"
	Monthly Level = "monthly"
)

// maxEntries returns the retention cap for a level.
func maxEntries(level Level) int {
	switch level {
	case Hourly:
		return 720
	case Daily:
		return 90
	case Monthly:
		return 24
	default:
		return 720
	}
}

// Entry is one row of a level's list. Only the timestamp field matching its
// level is populated; the others are left zero-valued on the wire via
// omitempty.
type Entry struct {
	Hour  string `json:"hour,omitempty"`
	Day   string `json:"day,omitempty"`
	Month string `json:"month,omitempty"`

	Path             string `json:"path"`
	TotalSpots       int    `json:"total_spots"`
	TotalActivations int    `json:"total_activations"`
}

// timestamp returns the entry's bucket timestamp regardless of level.
func (e Entry) timestamp(level Level) string {
	switch level {
	case Daily:
		return e.Day
	case Monthly:
		return e.Month
	default:
		return e.Hour
	}
}

// Manifest is the top-level document stored at manifest.json.
type Manifest struct {
	UpdatedAt string  `json:"updated_at"`
	HourlyE   []Entry `json:"hourly"`
	DailyE    []Entry `json:"daily"`
	MonthlyE  []Entry `json:"monthly"`
}

// entries returns a pointer to the slice backing level, so callers can
// mutate it in place.
func (m *Manifest) entries(level Level) *[]Entry {
	switch level {
	case Daily:
		return &m.DailyE
	case Monthly:
		return &m.MonthlyE
	default:
		return &m.HourlyE
	}
}

// rawDoc is used to decode a manifest.json payload that may still be in the
// legacy shape: a top-level "hours" array instead of "hourly", and/or
// entries carrying a bare "timestamp" field instead of the level-specific
// one.
type rawDoc struct {
	UpdatedAt string            `json:"updated_at"`
	Hourly    []json.RawMessage `json:"hourly"`
	Hours     []json.RawMessage `json:"hours"`
	Daily     []json.RawMessage `json:"daily"`
	Monthly   []json.RawMessage `json:"monthly"`
}

type rawEntry struct {
	Hour             string `json:"hour"`
	Day              string `json:"day"`
	Month            string `json:"month"`
	Timestamp        string `json:"timestamp"`
	Path             string `json:"path"`
	TotalSpots       int    `json:"total_spots"`
	TotalActivations int    `json:"total_activations"`
}

func migrateEntries(raws []json.RawMessage, level Level) []Entry {
	out := make([]Entry, 0, len(raws))
	for _, r := range raws {
		var re rawEntry
		if err := json.Unmarshal(r, &re); err != nil {
			continue
		}

		ts := re.Timestamp
		switch level {
		case Hourly:
			if re.Hour != "" {
				ts = re.Hour
			}
		case Daily:
			if re.Day != "" {
				ts = re.Day
			}
		case Monthly:
			if re.Month != "" {
				ts = re.Month
			}
		}

		e := Entry{
			Path:             re.Path,
			TotalSpots:       re.TotalSpots,
			TotalActivations: re.TotalActivations,
		}
		switch level {
		case Daily:
			e.Day = ts
		case Monthly:
			e.Month = ts
		default:
			e.Hour = ts
		}
		out = append(out, e)
	}
	return out
}

// parse decodes body into a Manifest, migrating the legacy "hours" list and
// bare "timestamp" fields on the way in. Unknown or unparseable JSON is
// treated as an empty manifest rather than an error, matching the
// publisher's "manifest is disposable, rollups are the source of truth"
// posture.
func parse(body []byte) Manifest {
	var raw rawDoc
	if err := json.Unmarshal(body, &raw); err != nil {
		return Manifest{}
	}

	hourlySrc := raw.Hourly
	if len(hourlySrc) == 0 && len(raw.Hours) > 0 {
		hourlySrc = raw.Hours
	}

	return Manifest{
		UpdatedAt: raw.UpdatedAt,
		HourlyE:   migrateEntries(hourlySrc, Hourly),
		DailyE:    migrateEntries(raw.Daily, Daily),
		MonthlyE:  migrateEntries(raw.Monthly, Monthly),
	}
}

// MarshalJSON emits the always-current field names (hourly/daily/monthly),
// never the legacy "hours" shape.
func (m Manifest) MarshalJSON() ([]byte, error) {
	type wire struct {
		UpdatedAt string  `json:"updated_at"`
		Hourly    []Entry `json:"hourly"`
		Daily     []Entry `json:"daily"`
		Monthly   []Entry `json:"monthly"`
	}
	return json.Marshal(wire{
		UpdatedAt: m.UpdatedAt,
		Hourly:    orEmpty(m.HourlyE),
		Daily:     orEmpty(m.DailyE),
		Monthly:   orEmpty(m.MonthlyE),
	})
}

func orEmpty(entries []Entry) []Entry {
	if entries == nil {
		return []Entry{}
	}
	return entries
}

// Publisher implements updateManifest against a Store, doing a
// load-modify-store round trip on every call. It assumes single-writer per
// level, enforced by the scheduler upstream — no compare-and-swap is used.
type Publisher struct {
	store objectstore.Store
	nowFn func() string
}

// New creates a Publisher backed by store. nowFn supplies the updated_at
// timestamp; production code passes a function returning the current UTC
// time in RFC3339 form, tests pass a fixed string.
func New(store objectstore.Store, nowFn func() string) *Publisher {
	return &Publisher{store: store, nowFn: nowFn}
}

// Load fetches and parses the current manifest, or returns an empty one if
// none exists yet.
func (p *Publisher) Load(ctx context.Context) (Manifest, error) {
	obj, err := p.store.Get(ctx, objectstore.ManifestKey)
	if err != nil {
		return Manifest{}, err
	}
	if obj == nil {
		return Manifest{}, nil
	}
	return parse(obj.Body), nil
}

// Update replaces or inserts the entry for (level, timestamp), re-sorts that
// level's list descending by timestamp, truncates to the level's retention
// cap, and writes the manifest back with a short cache lifetime.
func (p *Publisher) Update(ctx context.Context, level Level, timestamp, path string, totalSpots, totalActivations int) error {
	m, err := p.Load(ctx)
	if err != nil {
		return err
	}

	entry := Entry{Path: path, TotalSpots: totalSpots, TotalActivations: totalActivations}
	switch level {
	case Daily:
		entry.Day = timestamp
	case Monthly:
		entry.Month = timestamp
	default:
		entry.Hour = timestamp
	}

	list := m.entries(level)
	replaced := false
	for i, e := range *list {
		if e.timestamp(level) == timestamp {
			(*list)[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		*list = append(*list, entry)
	}

	sort.Slice(*list, func(i, j int) bool {
		return (*list)[i].timestamp(level) > (*list)[j].timestamp(level)
	})

	limit := maxEntries(level)
	if len(*list) > limit {
		*list = (*list)[:limit]
	}

	m.UpdatedAt = p.nowFn()

	body, err := json.Marshal(m)
	if err != nil {
		return err
	}

	return p.store.Put(ctx, objectstore.ManifestKey, body, objectstore.PutOptions{
		ContentType:  objectstore.ContentTypeJSON,
		CacheControl: objectstore.CacheManifest,
	})
}
