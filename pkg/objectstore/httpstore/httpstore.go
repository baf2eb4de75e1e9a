// Package httpstore implements objectstore.Store against an S3-compatible
// object store's REST surface (list-by-prefix, get, put), the production
// backend behind the Store interface. It is modeled on tinyobs's
// sdk/transport HTTPTransport: a thin *http.Client wrapper with a fixed
// timeout, no retry of its own (retry lives one layer up, in pkg/scheduler).
package httpstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kb9wtx/spotlake/pkg/errs"
	"github.com/kb9wtx/spotlake/pkg/objectstore"
)

// Store talks to an object-store HTTP gateway that exposes:
//
//	GET  {baseURL}/{key}                 -> object body, with
//	                                         X-Amz-Meta-* / custom headers
//	GET  {baseURL}/?list-type=2&prefix=  -> JSON {keys: []string}
//	PUT  {baseURL}/{key}                 -> write body, honoring
//	                                         Content-Type / Cache-Control /
//	                                         X-Amz-Meta-* request headers
//
// This is the minimal contract spotlake needs; it does not attempt to be a
// general S3 client.
type Store struct {
	baseURL   string
	client    *http.Client
	userAgent string
}

// New creates a Store that issues requests against baseURL (no trailing
// slash) with a 30s per-request timeout.
func New(baseURL string) *Store {
	return &Store{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		userAgent: "spotlake/1.0",
	}
}

type listResponse struct {
	Keys []string `json:"keys"`
}

// List returns keys under prefix in lexicographic order, as returned by the
// gateway (assumed already sorted, matching a standard list-objects call).
func (s *Store) List(ctx context.Context, prefix string) ([]objectstore.ListedKey, error) {
	u := s.baseURL + "/?list-type=2&prefix=" + url.QueryEscape(prefix)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errs.New(errs.ListError, "build list request", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errs.New(errs.ListError, "list "+prefix, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errs.New(errs.ListError, fmt.Sprintf("list %s: status %d", prefix, resp.StatusCode), nil)
	}

	var parsed listResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errs.New(errs.ListError, "decode list response", err)
	}
	if len(parsed.Keys) == 0 {
		return nil, nil
	}

	out := make([]objectstore.ListedKey, len(parsed.Keys))
	for i, k := range parsed.Keys {
		out[i] = objectstore.ListedKey{Key: k}
	}
	return out, nil
}

const metaHeaderPrefix = "X-Amz-Meta-"

// Get fetches one object. A 404 response is treated as "not found" and
// returns (nil, nil), matching the memory backend's contract.
func (s *Store) Get(ctx context.Context, key string) (*objectstore.Object, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/"+key, nil)
	if err != nil {
		return nil, errs.New(errs.ReadError, "build get request for "+key, err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errs.New(errs.ReadError, "get "+key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errs.New(errs.ReadError, fmt.Sprintf("get %s: status %d", key, resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.New(errs.ReadError, "read body for "+key, err)
	}

	meta := map[string]string{}
	for header := range resp.Header {
		if strings.HasPrefix(header, metaHeaderPrefix) {
			name := strings.ToLower(strings.TrimPrefix(header, metaHeaderPrefix))
			meta[name] = resp.Header.Get(header)
		}
	}

	return &objectstore.Object{
		Key:            key,
		Body:           body,
		ContentType:    resp.Header.Get("Content-Type"),
		CacheControl:   resp.Header.Get("Cache-Control"),
		CustomMetadata: meta,
	}, nil
}

// Put writes body to key, overwriting any existing object at that key.
func (s *Store) Put(ctx context.Context, key string, body []byte, opts objectstore.PutOptions) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.baseURL+"/"+key, bytes.NewReader(body))
	if err != nil {
		return errs.New(errs.StorageError, "build put request for "+key, err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	if opts.ContentType != "" {
		req.Header.Set("Content-Type", opts.ContentType)
	}
	if opts.CacheControl != "" {
		req.Header.Set("Cache-Control", opts.CacheControl)
	}
	for k, v := range opts.CustomMetadata {
		req.Header.Set(metaHeaderPrefix+k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return errs.New(errs.StorageError, "put "+key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errs.New(errs.StorageError, fmt.Sprintf("put %s: status %d", key, resp.StatusCode), nil)
	}
	return nil
}
