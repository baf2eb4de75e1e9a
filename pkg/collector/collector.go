// Package collector implements the Collector: the once-a-minute job that
// fetches the upstream spot snapshot, normalizes it, and writes one raw
// NDJSON capture file.
package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kb9wtx/spotlake/pkg/errs"
	"github.com/kb9wtx/spotlake/pkg/metrics"
	"github.com/kb9wtx/spotlake/pkg/objectstore"
	"github.com/kb9wtx/spotlake/pkg/spot"
)

const userAgent = "spotlake-collector/1.0 (+https://pota.app)"

// Collector fetches the upstream snapshot and writes it as one raw capture
// object. It does not retry within a tick: a failed tick is logged and
// abandoned, and the next scheduled tick simply tries again — the
// aggregation layer's spotId dedup makes missed minutes harmless.
type Collector struct {
	client      *http.Client
	upstreamURL string
	store       objectstore.Store
	resolver    spot.StateResolver
	log         *zap.Logger
	metrics     *metrics.Metrics
}

// New creates a Collector against upstreamURL, writing into store. resolver
// may be nil, in which case every normalized spot gets a nil state. m may be
// nil to disable instrumentation.
func New(upstreamURL string, store objectstore.Store, resolver spot.StateResolver, log *zap.Logger, m *metrics.Metrics) *Collector {
	if log == nil {
		log = zap.L()
	}
	return &Collector{
		client:      &http.Client{Timeout: 15 * time.Second},
		upstreamURL: upstreamURL,
		store:       store,
		resolver:    resolver,
		log:         log,
		metrics:     m,
	}
}

// Collect runs one tick: fetch, normalize, write. Returns the tagged error
// on failure so the scheduler can log and count it; Collect itself never
// retries.
func (c *Collector) Collect(ctx context.Context) error {
	start := time.Now()
	err := c.collect(ctx, start)
	if c.metrics != nil {
		c.metrics.CollectDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			if kind, ok := errs.KindOf(err); ok {
				c.metrics.CollectErrors.WithLabelValues(string(kind)).Inc()
			}
		}
	}
	return err
}

func (c *Collector) collect(ctx context.Context, capturedAt time.Time) error {
	raw, err := c.fetch(ctx)
	if err != nil {
		return err
	}

	capturedAt = capturedAt.UTC()
	normalized := make([]spot.NormalizedSpot, 0, len(raw))
	for _, r := range raw {
		normalized = append(normalized, spot.Normalize(r, capturedAt, c.resolver))
	}

	body, err := serializeNDJSON(normalized)
	if err != nil {
		return errs.New(errs.ParseError, "serialize normalized spots", err)
	}

	key := objectstore.RawKey(capturedAt)
	if err := c.store.Put(ctx, key, body, objectstore.PutOptions{
		ContentType: objectstore.ContentTypeNDJSON,
		CustomMetadata: map[string]string{
			"spotCount":  fmt.Sprintf("%d", len(normalized)),
			"capturedAt": capturedAt.Format(time.RFC3339Nano),
		},
	}); err != nil {
		return errs.New(errs.StorageError, "put raw capture "+key, err)
	}

	if c.metrics != nil {
		c.metrics.SpotsCollected.Add(float64(len(normalized)))
	}

	c.log.Info("collected spots",
		zap.Int("spotCount", len(normalized)),
		zap.String("key", key))
	return nil
}

// fetch issues the upstream HTTP GET and decodes the JSON array response.
func (c *Collector) fetch(ctx context.Context) ([]spot.UpstreamSpot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.upstreamURL, nil)
	if err != nil {
		return nil, errs.New(errs.FetchError, "build upstream request", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errs.New(errs.FetchError, "fetch upstream spots", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errs.New(errs.FetchError, fmt.Sprintf("upstream returned status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.New(errs.FetchError, "read upstream response body", err)
	}

	var spots []spot.UpstreamSpot
	if err := json.Unmarshal(body, &spots); err != nil {
		return nil, errs.New(errs.ParseError, "upstream payload is not a JSON array", err)
	}
	return spots, nil
}

// serializeNDJSON writes one JSON object per line, LF-joined, no trailing
// newline.
func serializeNDJSON(spots []spot.NormalizedSpot) ([]byte, error) {
	var buf bytes.Buffer
	for i, s := range spots {
		if i > 0 {
			buf.WriteByte('\n')
		}
		line, err := json.Marshal(s)
		if err != nil {
			return nil, err
		}
		buf.Write(line)
	}
	return buf.Bytes(), nil
}
