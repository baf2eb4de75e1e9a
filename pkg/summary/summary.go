// Package summary implements the Summary builder: periodic scans of
// manifest-referenced rollups that publish small, fixed-schema JSON reports
// (windowed stats, trends, time-of-day/day-of-week distributions, top
// entities).
package summary

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kb9wtx/spotlake/pkg/aggregate"
	"github.com/kb9wtx/spotlake/pkg/errs"
	"github.com/kb9wtx/spotlake/pkg/manifest"
	"github.com/kb9wtx/spotlake/pkg/metrics"
	"github.com/kb9wtx/spotlake/pkg/objectstore"
)

// Builder scans the manifest and publishes summaries against a Store.
type Builder struct {
	store   objectstore.Store
	pub     *manifest.Publisher
	log     *zap.Logger
	metrics *metrics.Metrics
}

// New creates a Builder. log defaults to zap.L() when nil. m may be nil to
// disable instrumentation.
func New(store objectstore.Store, pub *manifest.Publisher, log *zap.Logger, m *metrics.Metrics) *Builder {
	if log == nil {
		log = zap.L()
	}
	return &Builder{store: store, pub: pub, log: log, metrics: m}
}

// modeCategory classifies a mode into cw/ssb/digital, or "" if it belongs to
// none. Matching is case-insensitive.
func modeCategory(mode string) string {
	switch strings.ToUpper(mode) {
	case "CW":
		return "cw"
	case "SSB", "AM", "FM", "LSB", "USB":
		return "ssb"
	case "FT8", "FT4", "RTTY", "PSK31", "PSK", "JS8", "MFSK", "OLIVIA", "SSTV", "DIGITAL":
		return "digital"
	default:
		return ""
	}
}

// rankedCount is one row of a by_mode/by_band/by_entity ranked list.
type rankedCount struct {
	Key         string `json:"key"`
	SpotCount   int    `json:"spot_count"`
	Activations int    `json:"activations"`
}

type statsReport struct {
	Window           string        `json:"window"`
	TotalSpots       int           `json:"total_spots"`
	TotalActivations int           `json:"total_activations"`
	UniqueActivators int           `json:"unique_activators"`
	UniqueParks      int           `json:"unique_parks"`
	ByMode           []rankedCount `json:"by_mode"`
	ByBand           []rankedCount `json:"by_band"`
	ByEntity         []rankedCount `json:"by_entity"`
}

type allTimeReport struct {
	statsReport
	DataSince string `json:"data_since"`
}

// Run publishes all eight summary files. Each window is built independently
// so a failure computing one doesn't prevent the others from writing; the
// first error encountered is still returned to the caller for logging.
func (b *Builder) Run(ctx context.Context, now time.Time) error {
	start := time.Now()
	err := b.run(ctx, now)
	if b.metrics != nil {
		b.metrics.SummaryRuns.Inc()
		b.metrics.SummaryDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			b.metrics.SummaryErrors.Inc()
		}
	}
	return err
}

func (b *Builder) run(ctx context.Context, now time.Time) error {
	m, err := b.pub.Load(ctx)
	if err != nil {
		return errs.New(errs.ReadError, "load manifest for summary run", err)
	}

	var firstErr error
	record := func(name string, err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if err != nil {
			b.log.Warn("summary publish failed", zap.String("report", name), zap.Error(err))
		}
	}

	hourly24h := selectHourly(m, now.Add(-24*time.Hour))
	daily7d := selectDaily(m, now.AddDate(0, 0, -7))
	daily30d := selectDaily(m, now.AddDate(0, 0, -30))

	rows24h, err := b.loadRows(ctx, entryPaths(hourly24h))
	record("stats_24h", err)
	record("stats_24h", b.publishStats(ctx, "24h", rows24h))

	rows7d, err := b.loadRows(ctx, entryPaths(daily7d))
	record("stats_7d", err)
	record("stats_7d", b.publishStats(ctx, "7d", rows7d))

	rows30d, err := b.loadRows(ctx, entryPaths(daily30d))
	record("stats_30d", err)
	record("stats_30d", b.publishStats(ctx, "30d", rows30d))

	allRows, dataSince, err := b.loadAllTime(ctx, m)
	record("all_time", err)
	record("all_time", b.publishAllTime(ctx, allRows, dataSince))

	record("time_of_day", b.publishTimeOfDay(ctx, m))
	record("day_of_week", b.publishDayOfWeek(ctx, m))
	record("trends", b.publishTrends(ctx, m, now))
	record("top_entities", b.publishTopEntities(ctx, m, now))

	return firstErr
}

func selectHourly(m manifest.Manifest, since time.Time) []manifest.Entry {
	cutoff := since.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	var out []manifest.Entry
	for _, e := range m.HourlyE {
		if e.Hour >= cutoff {
			out = append(out, e)
		}
	}
	return out
}

func selectDaily(m manifest.Manifest, since time.Time) []manifest.Entry {
	cutoff := since.UTC().Format("2006-01-02")
	var out []manifest.Entry
	for _, e := range m.DailyE {
		if e.Day >= cutoff {
			out = append(out, e)
		}
	}
	return out
}

func entryPaths(entries []manifest.Entry) []string {
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	return paths
}

// loadRows fetches and parses every rollup at the given paths, skipping any
// that fail to read or parse.
func (b *Builder) loadRows(ctx context.Context, paths []string) ([]aggregate.Base, error) {
	var rows []aggregate.Base
	for _, p := range paths {
		obj, err := b.store.Get(ctx, p)
		if err != nil {
			b.log.Warn("summary: read rollup failed", zap.String("path", p), zap.Error(err))
			continue
		}
		if obj == nil {
			continue
		}
		parsed, err := parseRows(obj.Body)
		if err != nil {
			b.log.Warn("summary: unparseable rollup", zap.String("path", p), zap.Error(err))
			continue
		}
		rows = append(rows, parsed...)
	}
	return rows, nil
}

func parseRows(body []byte) ([]aggregate.Base, error) {
	var out []aggregate.Base
	for _, line := range splitLines(body) {
		var b aggregate.Base
		if err := json.Unmarshal(line, &b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func splitLines(body []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, c := range body {
		if c == '\n' {
			if i > start {
				lines = append(lines, body[start:i])
			}
			start = i + 1
		}
	}
	if start < len(body) {
		lines = append(lines, body[start:])
	}
	return lines
}

// loadAllTime covers the whole retained history: monthly files for complete
// months, daily files supplementing the months with no monthly rollup yet,
// hourly files supplementing the days with no daily rollup yet. A day or
// month already summed into a coarser rollup is excluded here, or its spots
// would be double- (or triple-) counted once the rows are merged.
func (b *Builder) loadAllTime(ctx context.Context, m manifest.Manifest) ([]aggregate.Base, string, error) {
	rows, err := b.loadRows(ctx, entryPaths(m.MonthlyE))
	if err != nil {
		return nil, "", err
	}

	coveredMonths := map[string]struct{}{}
	for _, e := range m.MonthlyE {
		coveredMonths[e.Month] = struct{}{}
	}
	var uncoveredDaily []manifest.Entry
	coveredDays := map[string]struct{}{}
	for _, e := range m.DailyE {
		coveredDays[e.Day] = struct{}{}
		if _, ok := coveredMonths[dayMonth(e.Day)]; ok {
			continue
		}
		uncoveredDaily = append(uncoveredDaily, e)
	}
	dailyRows, err := b.loadRows(ctx, entryPaths(uncoveredDaily))
	if err != nil {
		return nil, "", err
	}

	var uncoveredHourly []manifest.Entry
	for _, e := range m.HourlyE {
		if _, ok := coveredDays[hourDay(e.Hour)]; ok {
			continue
		}
		uncoveredHourly = append(uncoveredHourly, e)
	}
	hourlyRows, err := b.loadRows(ctx, entryPaths(uncoveredHourly))
	if err != nil {
		return nil, "", err
	}

	rows = append(rows, dailyRows...)
	rows = append(rows, hourlyRows...)

	dataSince := earliestTimestamp(m)
	return rows, dataSince, nil
}

// dayMonth extracts the "YYYY-MM" month prefix from a "YYYY-MM-DD" day key.
func dayMonth(day string) string {
	if len(day) < 7 {
		return day
	}
	return day[:7]
}

// hourDay extracts the "YYYY-MM-DD" day prefix from an hour timestamp.
func hourDay(hour string) string {
	if len(hour) < 10 {
		return hour
	}
	return hour[:10]
}

func earliestTimestamp(m manifest.Manifest) string {
	var earliest string
	consider := func(ts string) {
		if ts == "" {
			return
		}
		if earliest == "" || ts < earliest {
			earliest = ts
		}
	}
	for _, e := range m.MonthlyE {
		consider(e.Month)
	}
	for _, e := range m.DailyE {
		consider(e.Day)
	}
	for _, e := range m.HourlyE {
		consider(e.Hour)
	}
	return earliest
}

func mergeAndTotal(rows []aggregate.Base) (merged []aggregate.Base, totalSpots, totalActivations, uniqueActivators, uniqueParks int) {
	if len(rows) == 0 {
		return nil, 0, 0, 0, 0
	}
	merged = aggregate.Merge(rows...)

	activators := map[string]struct{}{}
	parks := map[string]struct{}{}
	for _, r := range merged {
		totalSpots += r.SpotCount
		totalActivations += r.ActivationCount
		for _, a := range r.Activators {
			activators[a] = struct{}{}
		}
		for _, p := range r.Parks {
			parks[p] = struct{}{}
		}
	}
	return merged, totalSpots, totalActivations, len(activators), len(parks)
}

func rankByMode(rows []aggregate.Base) []rankedCount {
	byKey := map[string]*rankedCount{}
	var order []string
	for _, r := range rows {
		rc, ok := byKey[r.Mode]
		if !ok {
			rc = &rankedCount{Key: r.Mode}
			byKey[r.Mode] = rc
			order = append(order, r.Mode)
		}
		rc.SpotCount += r.SpotCount
		rc.Activations += r.ActivationCount
	}
	return sortRanked(byKey, order, false)
}

func rankByBand(rows []aggregate.Base) []rankedCount {
	byKey := map[string]*rankedCount{}
	var order []string
	for _, r := range rows {
		rc, ok := byKey[r.Band]
		if !ok {
			rc = &rankedCount{Key: r.Band}
			byKey[r.Band] = rc
			order = append(order, r.Band)
		}
		rc.SpotCount += r.SpotCount
		rc.Activations += r.ActivationCount
	}
	return sortRanked(byKey, order, false)
}

func rankByEntity(rows []aggregate.Base, limit int, byActivations bool) []rankedCount {
	byKey := map[string]*rankedCount{}
	var order []string
	for _, r := range rows {
		rc, ok := byKey[r.Entity]
		if !ok {
			rc = &rankedCount{Key: r.Entity}
			byKey[r.Entity] = rc
			order = append(order, r.Entity)
		}
		rc.SpotCount += r.SpotCount
		rc.Activations += r.ActivationCount
	}
	ranked := sortRanked(byKey, order, byActivations)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func sortRanked(byKey map[string]*rankedCount, order []string, byActivations bool) []rankedCount {
	out := make([]rankedCount, 0, len(order))
	for _, k := range order {
		out = append(out, *byKey[k])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if byActivations {
			return out[i].Activations > out[j].Activations
		}
		return out[i].SpotCount > out[j].SpotCount
	})
	return out
}

func (b *Builder) publishStats(ctx context.Context, window string, rows []aggregate.Base) error {
	merged, totalSpots, totalActivations, uniqueActivators, uniqueParks := mergeAndTotal(rows)
	report := statsReport{
		Window:           window,
		TotalSpots:       totalSpots,
		TotalActivations: totalActivations,
		UniqueActivators: uniqueActivators,
		UniqueParks:      uniqueParks,
		ByMode:           rankByMode(merged),
		ByBand:           rankByBand(merged),
		ByEntity:         rankByEntity(merged, 20, true),
	}
	return b.putJSON(ctx, objectstore.SummaryKey("stats_"+window), report)
}

func (b *Builder) publishAllTime(ctx context.Context, rows []aggregate.Base, dataSince string) error {
	merged, totalSpots, totalActivations, uniqueActivators, uniqueParks := mergeAndTotal(rows)
	report := allTimeReport{
		statsReport: statsReport{
			Window:           "all_time",
			TotalSpots:       totalSpots,
			TotalActivations: totalActivations,
			UniqueActivators: uniqueActivators,
			UniqueParks:      uniqueParks,
			ByMode:           rankByMode(merged),
			ByBand:           rankByBand(merged),
			ByEntity:         rankByEntity(merged, 20, true),
		},
		DataSince: dataSince,
	}
	return b.putJSON(ctx, objectstore.SummaryKey("all_time"), report)
}

type hourBucket struct {
	Hour  int `json:"hour"`
	Spots int `json:"spots"`
}

func (b *Builder) publishTimeOfDay(ctx context.Context, m manifest.Manifest) error {
	buckets := make([]hourBucket, 24)
	for i := range buckets {
		buckets[i].Hour = i
	}
	for _, e := range m.HourlyE {
		t, err := time.Parse(time.RFC3339, e.Hour)
		if err != nil {
			continue
		}
		buckets[t.UTC().Hour()].Spots += e.TotalSpots
	}
	return b.putJSON(ctx, objectstore.SummaryKey("time_of_day"), buckets)
}

type dayBucket struct {
	Day   int `json:"day"`
	Spots int `json:"spots"`
}

func (b *Builder) publishDayOfWeek(ctx context.Context, m manifest.Manifest) error {
	buckets := make([]dayBucket, 7)
	for i := range buckets {
		buckets[i].Day = i
	}
	for _, e := range m.DailyE {
		t, err := time.Parse("2006-01-02", e.Day)
		if err != nil {
			continue
		}
		buckets[int(t.Weekday())].Spots += e.TotalSpots
	}
	return b.putJSON(ctx, objectstore.SummaryKey("day_of_week"), buckets)
}

// trendRow is one period's mode-category breakdown in a trends array.
type trendRow struct {
	Period     string `json:"period"`
	Activators int    `json:"activators"`
	CW         int    `json:"cw"`
	SSB        int    `json:"ssb"`
	Digital    int    `json:"digital"`
}

func (b *Builder) publishTrends(ctx context.Context, m manifest.Manifest, now time.Time) error {
	daily := b.trendFromDaily(ctx, m, now, 14)
	weekly := b.trendWeekly(ctx, m, now, 14)
	monthly := b.trendFromMonthly(ctx, m, now, 12)

	out := map[string][]trendRow{
		"daily":   daily,
		"weekly":  weekly,
		"monthly": monthly,
	}
	return b.putJSON(ctx, objectstore.SummaryKey("trends"), out)
}

func (b *Builder) trendFromDaily(ctx context.Context, m manifest.Manifest, now time.Time, days int) []trendRow {
	cutoff := now.AddDate(0, 0, -days).UTC().Format("2006-01-02")
	var rows []trendRow
	for _, e := range m.DailyE {
		if e.Day < cutoff {
			continue
		}
		rows = append(rows, b.trendRowForPath(ctx, e.Day, e.Path))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Period < rows[j].Period })
	return rows
}

func (b *Builder) trendFromMonthly(ctx context.Context, m manifest.Manifest, now time.Time, months int) []trendRow {
	cutoff := now.AddDate(0, -months, 0).UTC().Format("2006-01")
	var rows []trendRow
	for _, e := range m.MonthlyE {
		if e.Month < cutoff {
			continue
		}
		rows = append(rows, b.trendRowForPath(ctx, e.Month, e.Path))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Period < rows[j].Period })
	return rows
}

// trendWeekly buckets daily rollups by the UTC Sunday of the week each day
// falls in, per the fixed (non-configurable) week-start rule. Counts are
// cardinalities of activator sets unioned across every day in the week, not
// a sum of daily counts, or an activator active on multiple days would be
// counted once per day.
func (b *Builder) trendWeekly(ctx context.Context, m manifest.Manifest, now time.Time, weeks int) []trendRow {
	cutoff := now.AddDate(0, 0, -7*weeks)
	byWeek := map[string]*activatorSets{}
	var order []string

	for _, e := range m.DailyE {
		t, err := time.Parse("2006-01-02", e.Day)
		if err != nil || t.Before(cutoff) {
			continue
		}
		weekStart := sundayOf(t)
		key := weekStart.Format("2006-01-02")

		sets, ok := byWeek[key]
		if !ok {
			sets = newActivatorSets()
			byWeek[key] = sets
			order = append(order, key)
		}

		sets.add(b.loadRowsForTrend(ctx, e.Path))
	}

	sort.Strings(order)
	out := make([]trendRow, 0, len(order))
	for _, k := range order {
		out = append(out, byWeek[k].row(k))
	}
	return out
}

// loadRowsForTrend reads and parses a single rollup's rows for trend
// aggregation, returning nil on any read or parse failure.
func (b *Builder) loadRowsForTrend(ctx context.Context, path string) []aggregate.Base {
	if path == "" {
		return nil
	}
	obj, err := b.store.Get(ctx, path)
	if err != nil || obj == nil {
		return nil
	}
	rows, err := parseRows(obj.Body)
	if err != nil {
		return nil
	}
	return rows
}

// sundayOf returns the UTC midnight of the Sunday starting the week
// containing t.
func sundayOf(t time.Time) time.Time {
	t = t.UTC()
	offset := int(t.Weekday())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -offset)
}

// activatorSets accumulates the distinct activators seen for a trend period,
// split by mode category, so a multi-source period (e.g. a week's worth of
// daily rollups) can union sets instead of summing per-source counts.
type activatorSets struct {
	activators map[string]struct{}
	cw         map[string]struct{}
	ssb        map[string]struct{}
	digital    map[string]struct{}
}

func newActivatorSets() *activatorSets {
	return &activatorSets{
		activators: map[string]struct{}{},
		cw:         map[string]struct{}{},
		ssb:        map[string]struct{}{},
		digital:    map[string]struct{}{},
	}
}

func (s *activatorSets) add(rows []aggregate.Base) {
	for _, r := range rows {
		for _, a := range r.Activators {
			s.activators[a] = struct{}{}
			switch modeCategory(r.Mode) {
			case "cw":
				s.cw[a] = struct{}{}
			case "ssb":
				s.ssb[a] = struct{}{}
			case "digital":
				s.digital[a] = struct{}{}
			}
		}
	}
}

func (s *activatorSets) row(period string) trendRow {
	return trendRow{
		Period:     period,
		Activators: len(s.activators),
		CW:         len(s.cw),
		SSB:        len(s.ssb),
		Digital:    len(s.digital),
	}
}

func (b *Builder) trendRowForPath(ctx context.Context, period, path string) trendRow {
	sets := newActivatorSets()
	sets.add(b.loadRowsForTrend(ctx, path))
	return sets.row(period)
}

type entityCount struct {
	Key              string `json:"key"`
	UniqueActivators int    `json:"unique_activators"`
}

func (b *Builder) publishTopEntities(ctx context.Context, m manifest.Manifest, now time.Time) error {
	cutoff := now.AddDate(0, 0, -14).UTC().Format("2006-01-02")
	var paths []string
	for _, e := range m.DailyE {
		if e.Day >= cutoff {
			paths = append(paths, e.Path)
		}
	}
	rows, err := b.loadRows(ctx, paths)
	if err != nil {
		return err
	}
	merged := aggregate.Merge(rows...)

	parkActivators := map[string]map[string]struct{}{}
	stateActivators := map[string]map[string]struct{}{}
	for _, r := range merged {
		for _, p := range r.Parks {
			if parkActivators[p] == nil {
				parkActivators[p] = map[string]struct{}{}
			}
		}
		for _, a := range r.Activations {
			parts := strings.SplitN(a, "|", 2)
			if len(parts) != 2 {
				continue
			}
			activator, park := parts[0], parts[1]
			if parkActivators[park] == nil {
				parkActivators[park] = map[string]struct{}{}
			}
			parkActivators[park][activator] = struct{}{}
		}
		for _, sa := range r.StateActivators {
			parts := strings.SplitN(sa, "|", 2)
			if len(parts) != 2 {
				continue
			}
			state, activator := parts[0], parts[1]
			if stateActivators[state] == nil {
				stateActivators[state] = map[string]struct{}{}
			}
			stateActivators[state][activator] = struct{}{}
		}
	}

	topParks := topN(parkActivators, 10)
	topStates := topN(stateActivators, 10)

	out := map[string][]entityCount{
		"parks":  topParks,
		"states": topStates,
	}
	return b.putJSON(ctx, objectstore.SummaryKey("top_entities"), out)
}

func topN(byKey map[string]map[string]struct{}, n int) []entityCount {
	out := make([]entityCount, 0, len(byKey))
	for k, set := range byKey {
		out = append(out, entityCount{Key: k, UniqueActivators: len(set)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UniqueActivators > out[j].UniqueActivators
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func (b *Builder) putJSON(ctx context.Context, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return errs.New(errs.StorageError, "marshal summary "+key, err)
	}
	if err := b.store.Put(ctx, key, body, objectstore.PutOptions{
		ContentType:  objectstore.ContentTypeJSON,
		CacheControl: objectstore.CacheSummary,
	}); err != nil {
		return errs.New(errs.StorageError, "put summary "+key, err)
	}
	return nil
}
