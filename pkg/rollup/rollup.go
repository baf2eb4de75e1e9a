// Package rollup implements the Aggregator: the three scheduled entry
// points (aggregateHour, aggregateDay, aggregateMonth) that list an input
// layer, merge it into rollup rows, and publish a content-addressed NDJSON
// file plus a sidecar meta file and manifest update.
package rollup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kb9wtx/spotlake/pkg/aggregate"
	"github.com/kb9wtx/spotlake/pkg/errs"
	"github.com/kb9wtx/spotlake/pkg/manifest"
	"github.com/kb9wtx/spotlake/pkg/metrics"
	"github.com/kb9wtx/spotlake/pkg/objectstore"
	"github.com/kb9wtx/spotlake/pkg/spot"
)

// Aggregator runs the three rollup jobs against a Store, publishing through
// a manifest.Publisher.
type Aggregator struct {
	store    objectstore.Store
	manifest *manifest.Publisher
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// New creates an Aggregator. log defaults to zap.L() when nil, matching how
// the rest of the pipeline picks up the global logger. m may be nil to
// disable instrumentation.
func New(store objectstore.Store, mp *manifest.Publisher, log *zap.Logger, m *metrics.Metrics) *Aggregator {
	if log == nil {
		log = zap.L()
	}
	return &Aggregator{store: store, manifest: mp, log: log, metrics: m}
}

// observe wraps a single aggregation level's run with duration and outcome
// instrumentation.
func (a *Aggregator) observe(level manifest.Level, run func() error) error {
	start := time.Now()
	err := run()
	if a.metrics != nil {
		a.metrics.AggregationDuration.WithLabelValues(string(level)).Observe(time.Since(start).Seconds())
		if err != nil {
			kind, ok := errs.KindOf(err)
			if !ok {
				kind = "UNKNOWN"
			}
			a.metrics.AggregationErrors.WithLabelValues(string(level), string(kind)).Inc()
		} else {
			a.metrics.AggregationsRun.WithLabelValues(string(level)).Inc()
		}
	}
	return err
}

// meta is the sidecar object written alongside every rollup file, unhashed
// so it's always discoverable at a fixed key.
type meta struct {
	Timestamp        string    `json:"timestamp"`
	GeneratedAt      time.Time `json:"generatedAt"`
	TotalSpots       int       `json:"totalSpots"`
	FilesProcessed   int       `json:"filesProcessed"`
	TotalActivations int       `json:"totalActivations"`
}

// AggregateHour is the only entry point that consumes raw spots rather than
// child aggregates. It lists raw/YYYY/MM/DD/HH/, reads every capture file in
// parallel, deduplicates by spotId, groups into rows, and publishes.
func (a *Aggregator) AggregateHour(ctx context.Context, t time.Time) error {
	return a.observe(manifest.Hourly, func() error { return a.aggregateHour(ctx, t) })
}

func (a *Aggregator) aggregateHour(ctx context.Context, t time.Time) error {
	prefix := objectstore.RawPrefix(t)
	listed, err := a.store.List(ctx, prefix)
	if err != nil {
		return errs.New(errs.ListError, "list raw captures for "+prefix, err)
	}

	if len(listed) == 0 {
		return a.publish(ctx, manifest.Hourly, objectstore.HourlyKey(t), objectstore.HourlyMetaKey(t),
			hourTimestamp(t), nil, 0)
	}

	spots, filesRead := a.readRawCaptures(ctx, listed)
	deduped := aggregate.Dedup(spots)
	rows := aggregate.FromSpots(deduped)

	return a.publish(ctx, manifest.Hourly, objectstore.HourlyKey(t), objectstore.HourlyMetaKey(t),
		hourTimestamp(t), toHourlyRows(rows, hourTimestamp(t)), filesRead)
}

// readRawCaptures fetches every listed raw object, parsing each NDJSON line
// into a NormalizedSpot. A read failure on one object is logged and that
// object's data is excluded; a malformed line is skipped with a warning.
// Both failure modes leave the batch running rather than aborting it.
func (a *Aggregator) readRawCaptures(ctx context.Context, listed []objectstore.ListedKey) ([]spot.NormalizedSpot, int) {
	type result struct {
		spots []spot.NormalizedSpot
		read  bool
	}
	results := make(chan result, len(listed))

	for _, lk := range listed {
		go func(key string) {
			obj, err := a.store.Get(ctx, key)
			if err != nil {
				a.log.Warn("read raw capture failed", zap.String("key", key), zap.Error(err))
				results <- result{}
				return
			}
			if obj == nil {
				results <- result{}
				return
			}
			results <- result{spots: parseNDJSONSpots(obj.Body, key, a.log), read: true}
		}(lk.Key)
	}

	var all []spot.NormalizedSpot
	filesRead := 0
	for range listed {
		r := <-results
		if r.read {
			filesRead++
		}
		all = append(all, r.spots...)
	}
	return all, filesRead
}

func parseNDJSONSpots(body []byte, key string, log *zap.Logger) []spot.NormalizedSpot {
	var out []spot.NormalizedSpot
	for _, line := range bytes.Split(body, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var s spot.NormalizedSpot
		if err := json.Unmarshal(line, &s); err != nil {
			log.Warn("skipping malformed NDJSON line", zap.String("key", key), zap.Error(err))
			continue
		}
		out = append(out, s)
	}
	return out
}

// AggregateDay merges every hourly rollup under hourly/YYYY/MM/DD/ into the
// day's DailyAggregate rows.
func (a *Aggregator) AggregateDay(ctx context.Context, t time.Time) error {
	return a.observe(manifest.Daily, func() error { return a.aggregateDay(ctx, t) })
}

func (a *Aggregator) aggregateDay(ctx context.Context, t time.Time) error {
	prefix := objectstore.HourlyPrefix(t)
	rows, filesRead, err := a.mergeChildLevel(ctx, prefix)
	if err != nil {
		return err
	}
	return a.publish(ctx, manifest.Daily, objectstore.DailyKey(t), objectstore.DailyMetaKey(t),
		dayTimestamp(t), toDailyRows(rows, dayTimestamp(t)), filesRead)
}

// AggregateMonth merges every daily rollup under daily/YYYY/MM/ into the
// month's MonthlyAggregate rows.
func (a *Aggregator) AggregateMonth(ctx context.Context, t time.Time) error {
	return a.observe(manifest.Monthly, func() error { return a.aggregateMonth(ctx, t) })
}

func (a *Aggregator) aggregateMonth(ctx context.Context, t time.Time) error {
	prefix := objectstore.DailyPrefix(t)
	rows, filesRead, err := a.mergeChildLevel(ctx, prefix)
	if err != nil {
		return err
	}
	return a.publish(ctx, manifest.Monthly, objectstore.MonthlyKey(t), objectstore.MonthlyMetaKey(t),
		monthTimestamp(t), toMonthlyRows(rows, monthTimestamp(t)), filesRead)
}

// mergeChildLevel lists content-addressed rollup files (not their .meta.json
// sidecars) under prefix, reads each, and merges their rows. It skips a
// child it can't read rather than aborting — "the parent uses only what it
// finds" for a missing or unreadable child.
func (a *Aggregator) mergeChildLevel(ctx context.Context, prefix string) ([]aggregate.Base, int, error) {
	listed, err := a.store.List(ctx, prefix)
	if err != nil {
		return nil, 0, errs.New(errs.ListError, "list children under "+prefix, err)
	}

	var children []aggregate.Base
	filesRead := 0
	for _, lk := range listed {
		if isMetaKey(lk.Key) {
			continue
		}
		obj, err := a.store.Get(ctx, lk.Key)
		if err != nil {
			a.log.Warn("read child rollup failed", zap.String("key", lk.Key), zap.Error(err))
			continue
		}
		if obj == nil {
			continue
		}
		rows, parseErr := parseNDJSONRows(obj.Body)
		if parseErr != nil {
			a.log.Warn("skipping unparseable child rollup", zap.String("key", lk.Key), zap.Error(parseErr))
			continue
		}
		children = append(children, rows...)
		filesRead++
	}

	if len(children) == 0 {
		return nil, filesRead, nil
	}
	return aggregate.Merge(children...), filesRead, nil
}

func isMetaKey(key string) bool {
	return len(key) > 10 && key[len(key)-10:] == ".meta.json"
}

func parseNDJSONRows(body []byte) ([]aggregate.Base, error) {
	var out []aggregate.Base
	for _, line := range bytes.Split(body, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var b aggregate.Base
		if err := json.Unmarshal(line, &b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// publish serializes rows as NDJSON, content-addresses the key, writes the
// rollup and its sidecar meta, then updates the manifest. Manifest failure
// is logged but does not fail the aggregation — the rollup itself is
// already durable and a later run can re-link it.
func (a *Aggregator) publish(ctx context.Context, level manifest.Level, unhashedKey, metaKey, timestamp string, lines [][]byte, filesRead int) error {
	body := joinNDJSON(lines)
	hash := objectstore.ShortHash(body)
	key := objectstore.AddHashToFilename(unhashedKey, hash)

	totalSpots, totalActivations := sumTotals(lines)
	generatedAt := time.Now().UTC()

	if err := a.store.Put(ctx, key, body, objectstore.PutOptions{
		ContentType:  objectstore.ContentTypeNDJSON,
		CacheControl: objectstore.CacheImmutable,
		CustomMetadata: map[string]string{
			"timestamp":      timestamp,
			"generatedAt":    generatedAt.Format(time.RFC3339),
			"totalSpots":     fmt.Sprintf("%d", totalSpots),
			"filesProcessed": fmt.Sprintf("%d", filesRead),
		},
	}); err != nil {
		return errs.New(errs.StorageError, "put rollup "+key, err)
	}

	m := meta{
		Timestamp:        timestamp,
		GeneratedAt:      generatedAt,
		TotalSpots:       totalSpots,
		FilesProcessed:   filesRead,
		TotalActivations: totalActivations,
	}
	metaBody, err := json.Marshal(m)
	if err != nil {
		return errs.New(errs.StorageError, "marshal meta for "+metaKey, err)
	}
	if err := a.store.Put(ctx, metaKey, metaBody, objectstore.PutOptions{
		ContentType:  objectstore.ContentTypeJSON,
		CacheControl: objectstore.CacheImmutable,
	}); err != nil {
		return errs.New(errs.StorageError, "put meta "+metaKey, err)
	}

	if a.manifest != nil {
		if err := a.manifest.Update(ctx, level, timestamp, key, totalSpots, totalActivations); err != nil {
			a.log.Warn("manifest update failed", zap.String("level", string(level)), zap.String("timestamp", timestamp), zap.Error(err))
			if a.metrics != nil {
				a.metrics.ManifestUpdateErrors.Inc()
			}
		}
	}

	if a.metrics != nil {
		a.metrics.RollupSpotCount.WithLabelValues(string(level)).Observe(float64(totalSpots))
	}

	return nil
}

func joinNDJSON(lines [][]byte) []byte {
	return bytes.Join(lines, []byte("\n"))
}

func sumTotals(lines [][]byte) (totalSpots, totalActivations int) {
	for _, line := range lines {
		var b aggregate.Base
		if err := json.Unmarshal(line, &b); err != nil {
			continue
		}
		totalSpots += b.SpotCount
		totalActivations += b.ActivationCount
	}
	return
}

func toHourlyRows(rows []aggregate.Base, hour string) [][]byte {
	lines := make([][]byte, 0, len(rows))
	for _, r := range rows {
		line, _ := json.Marshal(aggregate.Hourly{Base: r, Hour: hour})
		lines = append(lines, line)
	}
	return lines
}

func toDailyRows(rows []aggregate.Base, date string) [][]byte {
	lines := make([][]byte, 0, len(rows))
	for _, r := range rows {
		line, _ := json.Marshal(aggregate.Daily{Base: r, Date: date})
		lines = append(lines, line)
	}
	return lines
}

func toMonthlyRows(rows []aggregate.Base, month string) [][]byte {
	lines := make([][]byte, 0, len(rows))
	for _, r := range rows {
		line, _ := json.Marshal(aggregate.Monthly{Base: r, Month: month})
		lines = append(lines, line)
	}
	return lines
}

// hourTimestamp zeroes minutes/seconds/nanos and emits millisecond-precision
// ISO-8601, matching the JS toISOString() form (e.g. "2024-03-15T09:00:00.000Z").
func hourTimestamp(t time.Time) string {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC).Format("2006-01-02T15:04:05.000Z07:00")
}

// dayTimestamp emits YYYY-MM-DD.
func dayTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// monthTimestamp emits YYYY-MM.
func monthTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01")
}
