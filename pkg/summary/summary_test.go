package summary

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kb9wtx/spotlake/pkg/aggregate"
	"github.com/kb9wtx/spotlake/pkg/manifest"
	"github.com/kb9wtx/spotlake/pkg/objectstore"
	"github.com/kb9wtx/spotlake/pkg/objectstore/memory"
)

func TestModeCategoryCaseInsensitive(t *testing.T) {
	assert.Equal(t, "cw", modeCategory("cw"))
	assert.Equal(t, "cw", modeCategory("CW"))
	assert.Equal(t, "ssb", modeCategory("ssb"))
	assert.Equal(t, "ssb", modeCategory("Lsb"))
	assert.Equal(t, "digital", modeCategory("ft8"))
	assert.Equal(t, "digital", modeCategory("FT8"))
	assert.Equal(t, "", modeCategory("RTTYCONTEST"))
	assert.Equal(t, "", modeCategory(""))
}

func TestSundayOfWeekStart(t *testing.T) {
	// 2024-03-15 is a Friday; the week's Sunday is 2024-03-10.
	fri := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	got := sundayOf(fri)
	assert.Equal(t, "2024-03-10", got.Format("2006-01-02"))

	sun := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, sun, sundayOf(sun))
}

func putRollup(t *testing.T, store *memory.Store, key string, rows []aggregate.Base) {
	t.Helper()
	var body []byte
	for i, r := range rows {
		if i > 0 {
			body = append(body, '\n')
		}
		line, err := json.Marshal(r)
		require.NoError(t, err)
		body = append(body, line...)
	}
	require.NoError(t, store.Put(context.Background(), key, body, objectstore.PutOptions{}))
}

func TestPublishStatsAggregatesSelectedRows(t *testing.T) {
	store := memory.New()
	pub := manifest.New(store, func() string { return "2024-03-15T09:00:00Z" })
	ctx := context.Background()

	putRollup(t, store, "hourly/2024/03/15/09-aaa.ndjson", []aggregate.Base{
		{Mode: "SSB", Band: "40m", Entity: "K", SpotCount: 3, ActivationCount: 2, Activators: []string{"W0A", "K1X"}, Parks: []string{"K-1", "K-2"}},
	})
	require.NoError(t, pub.Update(ctx, manifest.Hourly, "2024-03-15T09:00:00Z", "hourly/2024/03/15/09-aaa.ndjson", 3, 2))

	b := New(store, pub, nil, nil)
	m, err := pub.Load(ctx)
	require.NoError(t, err)

	rows, err := b.loadRows(ctx, entryPaths(m.HourlyE))
	require.NoError(t, err)
	require.NoError(t, b.publishStats(ctx, "24h", rows))

	obj, err := store.Get(ctx, "summaries/stats_24h.json")
	require.NoError(t, err)
	require.NotNil(t, obj)
	assert.Equal(t, objectstore.CacheSummary, obj.CacheControl)

	var report statsReport
	require.NoError(t, json.Unmarshal(obj.Body, &report))
	assert.Equal(t, 3, report.TotalSpots)
	assert.Equal(t, 2, report.UniqueActivators)
}

func TestTopEntitiesRanksByUniqueActivators(t *testing.T) {
	store := memory.New()
	pub := manifest.New(store, func() string { return "2024-03-15T00:00:00Z" })
	ctx := context.Background()

	putRollup(t, store, "daily/2024/03/15-aaa.ndjson", []aggregate.Base{
		{
			Mode: "SSB", Band: "40m", Entity: "K",
			Activators:  []string{"W0A", "K1X", "N2Y"},
			Parks:       []string{"K-1"},
			Activations: []string{"W0A|K-1", "K1X|K-1", "N2Y|K-1"},
		},
	})
	require.NoError(t, pub.Update(ctx, manifest.Daily, "2024-03-15", "daily/2024/03/15-aaa.ndjson", 3, 3))

	b := New(store, pub, nil, nil)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, b.Run(ctx, now))

	obj, err := store.Get(ctx, "summaries/top_entities.json")
	require.NoError(t, err)
	require.NotNil(t, obj)

	var out map[string][]entityCount
	require.NoError(t, json.Unmarshal(obj.Body, &out))
	require.NotEmpty(t, out["parks"])
	assert.Equal(t, "K-1", out["parks"][0].Key)
	assert.Equal(t, 3, out["parks"][0].UniqueActivators)
}

func TestRunPublishesAllEightReports(t *testing.T) {
	store := memory.New()
	pub := manifest.New(store, func() string { return "2024-03-15T09:00:00Z" })
	ctx := context.Background()

	putRollup(t, store, "hourly/2024/03/15/09-aaa.ndjson", []aggregate.Base{
		{Mode: "CW", Band: "20m", Entity: "K", SpotCount: 1, ActivationCount: 1, Activators: []string{"W0A"}, Parks: []string{"K-1"}},
	})
	require.NoError(t, pub.Update(ctx, manifest.Hourly, "2024-03-15T09:00:00Z", "hourly/2024/03/15/09-aaa.ndjson", 1, 1))

	b := New(store, pub, nil, nil)
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	require.NoError(t, b.Run(ctx, now))

	for _, name := range []string{"stats_24h", "stats_7d", "stats_30d", "all_time", "time_of_day", "day_of_week", "trends", "top_entities"} {
		obj, err := store.Get(ctx, objectstore.SummaryKey(name))
		require.NoError(t, err)
		assert.NotNilf(t, obj, "expected %s to be published", name)
	}
}
