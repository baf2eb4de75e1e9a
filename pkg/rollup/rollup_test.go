package rollup

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kb9wtx/spotlake/pkg/manifest"
	"github.com/kb9wtx/spotlake/pkg/objectstore"
	"github.com/kb9wtx/spotlake/pkg/objectstore/memory"
	"github.com/kb9wtx/spotlake/pkg/spot"
)

func putRawCapture(t *testing.T, store *memory.Store, at time.Time, spots []spot.NormalizedSpot) {
	t.Helper()
	var lines [][]byte
	for _, s := range spots {
		line, err := json.Marshal(s)
		require.NoError(t, err)
		lines = append(lines, line)
	}
	body := []byte{}
	for i, l := range lines {
		if i > 0 {
			body = append(body, '\n')
		}
		body = append(body, l...)
	}
	key := objectstore.RawKey(at)
	require.NoError(t, store.Put(context.Background(), key, body, objectstore.PutOptions{
		ContentType: objectstore.ContentTypeNDJSON,
	}))
}

func fixedNow() string { return "2024-03-15T09:00:00Z" }

func TestAggregateHourEmptyPrefixPublishesEmptyRollup(t *testing.T) {
	store := memory.New()
	pub := manifest.New(store, fixedNow)
	agg := New(store, pub, nil, nil)

	hour := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	require.NoError(t, agg.AggregateHour(context.Background(), hour))

	m, err := pub.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, m.HourlyE, 1)
	assert.Equal(t, 0, m.HourlyE[0].TotalSpots)
}

func TestAggregateHourScenarioA(t *testing.T) {
	store := memory.New()
	pub := manifest.New(store, fixedNow)
	agg := New(store, pub, nil, nil)

	hour := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	putRawCapture(t, store, hour, []spot.NormalizedSpot{
		{SpotID: 1, Activator: "W0A", Reference: "K-1", Mode: "SSB", Band: "40m", Entity: "K", FrequencyKHz: 7137},
		{SpotID: 2, Activator: "K1X", Reference: "K-2", Mode: "SSB", Band: "40m", Entity: "K", FrequencyKHz: 7200},
	})

	require.NoError(t, agg.AggregateHour(context.Background(), hour))

	m, err := pub.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, m.HourlyE, 1)
	assert.Equal(t, 2, m.HourlyE[0].TotalSpots)
	assert.Equal(t, 2, m.HourlyE[0].TotalActivations)

	obj, err := store.Get(context.Background(), m.HourlyE[0].Path)
	require.NoError(t, err)
	require.NotNil(t, obj)
}

func TestAggregateHourDedupsAcrossCaptures(t *testing.T) {
	store := memory.New()
	pub := manifest.New(store, fixedNow)
	agg := New(store, pub, nil, nil)

	hour := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	capture1 := hour
	capture2 := hour.Add(30 * time.Second)

	spotID := spot.NormalizedSpot{SpotID: 1, Activator: "W0A", Reference: "K-1", Mode: "SSB", Band: "40m", Entity: "K"}
	putRawCapture(t, store, capture1, []spot.NormalizedSpot{spotID})
	putRawCapture(t, store, capture2, []spot.NormalizedSpot{spotID})

	require.NoError(t, agg.AggregateHour(context.Background(), hour))

	m, err := pub.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, m.HourlyE[0].TotalSpots)
}

func TestContentAddressingSameContentSameHash(t *testing.T) {
	store := memory.New()
	pub := manifest.New(store, fixedNow)
	agg := New(store, pub, nil, nil)

	hour := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	putRawCapture(t, store, hour, []spot.NormalizedSpot{
		{SpotID: 1, Activator: "W0A", Reference: "K-1", Mode: "SSB", Band: "40m", Entity: "K"},
	})

	require.NoError(t, agg.AggregateHour(context.Background(), hour))
	m1, _ := pub.Load(context.Background())
	path1 := m1.HourlyE[0].Path

	require.NoError(t, agg.AggregateHour(context.Background(), hour))
	m2, _ := pub.Load(context.Background())
	path2 := m2.HourlyE[0].Path

	assert.Equal(t, path1, path2)
}

func TestContentAddressingDifferentContentDifferentHash(t *testing.T) {
	store := memory.New()
	pub := manifest.New(store, fixedNow)
	agg := New(store, pub, nil, nil)

	hour := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	putRawCapture(t, store, hour, []spot.NormalizedSpot{
		{SpotID: 1, Activator: "W0A", Reference: "K-1", Mode: "SSB", Band: "40m", Entity: "K"},
	})
	require.NoError(t, agg.AggregateHour(context.Background(), hour))
	m1, _ := pub.Load(context.Background())
	path1 := m1.HourlyE[0].Path

	// Different content: add a second spot under the same raw prefix.
	putRawCapture(t, store, hour.Add(time.Second), []spot.NormalizedSpot{
		{SpotID: 2, Activator: "K1X", Reference: "K-2", Mode: "SSB", Band: "40m", Entity: "K"},
	})
	require.NoError(t, agg.AggregateHour(context.Background(), hour))
	m2, _ := pub.Load(context.Background())
	path2 := m2.HourlyE[0].Path

	assert.NotEqual(t, path1, path2)
}

func TestAggregateDayMergesHourlyChildren(t *testing.T) {
	store := memory.New()
	pub := manifest.New(store, fixedNow)
	agg := New(store, pub, nil, nil)
	ctx := context.Background()

	hour09 := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	hour10 := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	putRawCapture(t, store, hour09, []spot.NormalizedSpot{
		{SpotID: 1, Activator: "W0A", Reference: "K-1", Mode: "SSB", Band: "40m", Entity: "K"},
		{SpotID: 2, Activator: "K1X", Reference: "K-5", Mode: "SSB", Band: "40m", Entity: "K"},
	})
	putRawCapture(t, store, hour10, []spot.NormalizedSpot{
		{SpotID: 3, Activator: "W0A", Reference: "K-9", Mode: "SSB", Band: "40m", Entity: "K"},
	})

	require.NoError(t, agg.AggregateHour(ctx, hour09))
	require.NoError(t, agg.AggregateHour(ctx, hour10))
	require.NoError(t, agg.AggregateDay(ctx, hour09))

	m, err := pub.Load(ctx)
	require.NoError(t, err)
	require.Len(t, m.DailyE, 1)
	assert.Equal(t, 3, m.DailyE[0].TotalSpots)

	obj, err := store.Get(ctx, m.DailyE[0].Path)
	require.NoError(t, err)
	require.NotNil(t, obj)
}

func TestAggregateMonthMergesDailyChildren(t *testing.T) {
	store := memory.New()
	pub := manifest.New(store, fixedNow)
	agg := New(store, pub, nil, nil)
	ctx := context.Background()

	day15 := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	day16 := time.Date(2024, 3, 16, 9, 0, 0, 0, time.UTC)

	putRawCapture(t, store, day15, []spot.NormalizedSpot{
		{SpotID: 1, Activator: "W0A", Reference: "K-1", Mode: "SSB", Band: "40m", Entity: "K"},
	})
	putRawCapture(t, store, day16, []spot.NormalizedSpot{
		{SpotID: 2, Activator: "K1X", Reference: "K-2", Mode: "SSB", Band: "40m", Entity: "K"},
	})

	require.NoError(t, agg.AggregateHour(ctx, day15))
	require.NoError(t, agg.AggregateHour(ctx, day16))
	require.NoError(t, agg.AggregateDay(ctx, day15))
	require.NoError(t, agg.AggregateDay(ctx, day16))
	require.NoError(t, agg.AggregateMonth(ctx, day15))

	m, err := pub.Load(ctx)
	require.NoError(t, err)
	require.Len(t, m.MonthlyE, 1)
	assert.Equal(t, 2, m.MonthlyE[0].TotalSpots)
}

func TestListFailureAbortsAggregation(t *testing.T) {
	failing := failingStore{err: assert.AnError}
	pub := manifest.New(memory.New(), fixedNow)
	agg := New(failing, pub, nil, nil)

	err := agg.AggregateHour(context.Background(), time.Now())
	require.Error(t, err)
}

type failingStore struct {
	err error
}

func (f failingStore) List(ctx context.Context, prefix string) ([]objectstore.ListedKey, error) {
	return nil, f.err
}
func (f failingStore) Get(ctx context.Context, key string) (*objectstore.Object, error) {
	return nil, nil
}
func (f failingStore) Put(ctx context.Context, key string, body []byte, opts objectstore.PutOptions) error {
	return nil
}
