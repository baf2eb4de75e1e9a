// Package objectstore defines the Store contract every pipeline component
// depends on and the path/hash helpers shared across rollup levels. It is
// deliberately the narrowest possible surface — list, get, put — mirroring
// tinyobs's storage.Storage pattern of one small interface with swappable
// backends (memory for tests, an HTTP-backed implementation in production).
package objectstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Object is the result of a Get: its body plus the metadata the pipeline
// relies on for dedup, cache headers, and audit fields.
type Object struct {
	Key            string
	Body           []byte
	ContentType    string
	CacheControl   string
	CustomMetadata map[string]string
}

// ListedKey is one row of a List result. Object stores generally return more
// than a bare key (size, etag, last-modified); the pipeline only ever needs
// the key itself, so that's all this type carries.
type ListedKey struct {
	Key string
}

// PutOptions carries the headers and custom metadata a Put should attach.
// CacheControl and CustomMetadata are per-write because rollups (immutable,
// year-long cache) and the manifest (mutable, 60s cache) share one Store.
type PutOptions struct {
	ContentType    string
	CacheControl   string
	CustomMetadata map[string]string
}

// Store is the object-store contract: list-by-prefix, get, put-with-metadata.
// Every write in the pipeline — raw captures, rollups, sidecars, manifest,
// summaries — goes through this interface so backends are swappable without
// touching business logic.
type Store interface {
	// List returns keys under prefix in lexicographic order. An empty
	// result (nil, nil) means the prefix has no objects, not an error.
	List(ctx context.Context, prefix string) ([]ListedKey, error)

	// Get fetches one object. A missing key returns (nil, nil) — callers
	// distinguish "not found" from a transport failure by the nil error.
	Get(ctx context.Context, key string) (*Object, error)

	// Put writes body to key with the given options, overwriting any
	// existing object at that key.
	Put(ctx context.Context, key string, body []byte, opts PutOptions) error
}

// ContentTypeNDJSON is the media type every rollup and raw capture file is
// written with.
const ContentTypeNDJSON = "application/x-ndjson"

// ContentTypeJSON is used for the manifest and summary files.
const ContentTypeJSON = "application/json"

// CacheImmutable is the cache-control header for content-addressed rollup
// and sidecar objects: they never change once written.
const CacheImmutable = "public, max-age=31536000, immutable"

// CacheManifest is the cache-control header for the mutable manifest.
const CacheManifest = "max-age=60"

// CacheSummary is the cache-control header for overwrite-in-place summary
// files.
const CacheSummary = "public, max-age=300"

// ShortHash returns the first 8 hex characters of the SHA-256 digest of
// body. Two different bodies collide only with probability ~2^-32, which is
// the content-addressing guarantee the rollup layer relies on.
func ShortHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])[:8]
}

// AddHashToFilename inserts "-<hash>" immediately before the final "." in
// key, or appends it if key has no dot.
func AddHashToFilename(key, hash string) string {
	idx := strings.LastIndex(key, ".")
	if idx < 0 {
		return key + "-" + hash
	}
	return key[:idx] + "-" + hash + key[idx:]
}

// TimestampDashed replaces ":" and "." in an RFC3339Nano timestamp with "-",
// producing the filename-safe form the Collector uses for raw capture keys.
func TimestampDashed(t time.Time) string {
	s := t.UTC().Format(time.RFC3339Nano)
	s = strings.ReplaceAll(s, ":", "-")
	s = strings.ReplaceAll(s, ".", "-")
	return s
}

// RawKey returns the raw capture object key for a captured-at timestamp:
// raw/YYYY/MM/DD/HH/spots-<tsdash>.ndjson.
func RawKey(t time.Time) string {
	t = t.UTC()
	return "raw/" + t.Format("2006/01/02/15") + "/spots-" + TimestampDashed(t) + ".ndjson"
}

// RawPrefix returns the raw/ prefix covering every capture within the hour
// containing t.
func RawPrefix(t time.Time) string {
	t = t.UTC()
	return "raw/" + t.Format("2006/01/02/15") + "/"
}

// HourlyKey returns the (unhashed) hourly rollup key for the hour containing t.
func HourlyKey(t time.Time) string {
	t = t.UTC()
	return "hourly/" + t.Format("2006/01/02/15") + ".ndjson"
}

// HourlyMetaKey returns the sidecar meta key for the hourly rollup covering t.
func HourlyMetaKey(t time.Time) string {
	t = t.UTC()
	return "hourly/" + t.Format("2006/01/02/15") + ".meta.json"
}

// HourlyPrefix returns the hourly/ prefix covering every hour within the day
// containing t, the input layer for daily aggregation.
func HourlyPrefix(t time.Time) string {
	t = t.UTC()
	return "hourly/" + t.Format("2006/01/02") + "/"
}

// DailyKey returns the (unhashed) daily rollup key for the day containing t.
func DailyKey(t time.Time) string {
	t = t.UTC()
	return "daily/" + t.Format("2006/01/02") + ".ndjson"
}

// DailyMetaKey returns the sidecar meta key for the daily rollup covering t.
func DailyMetaKey(t time.Time) string {
	t = t.UTC()
	return "daily/" + t.Format("2006/01/02") + ".meta.json"
}

// DailyPrefix returns the daily/ prefix covering every day within the month
// containing t, the input layer for monthly aggregation.
func DailyPrefix(t time.Time) string {
	t = t.UTC()
	return "daily/" + t.Format("2006/01") + "/"
}

// MonthlyKey returns the (unhashed) monthly rollup key for the month
// containing t.
func MonthlyKey(t time.Time) string {
	t = t.UTC()
	return "monthly/" + t.Format("2006/01") + ".ndjson"
}

// MonthlyMetaKey returns the sidecar meta key for the monthly rollup
// covering t.
func MonthlyMetaKey(t time.Time) string {
	t = t.UTC()
	return "monthly/" + t.Format("2006/01") + ".meta.json"
}

// ManifestKey is the single mutable manifest object's key.
const ManifestKey = "manifest.json"

// SummaryKey returns the object key for a named summary window/report.
func SummaryKey(name string) string {
	return "summaries/" + name + ".json"
}
