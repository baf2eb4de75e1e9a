package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kb9wtx/spotlake/pkg/errs"
	"github.com/kb9wtx/spotlake/pkg/objectstore"
	"github.com/kb9wtx/spotlake/pkg/objectstore/memory"
)

func TestCollectHappyPathWritesOneRawObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		json.NewEncoder(w).Encode([]map[string]any{
			{"spotId": 1, "activator": "W0A", "frequency": "7137", "mode": "ssb", "reference": "K-1"},
			{"spotId": 2, "activator": "K1X", "frequency": "14000", "mode": "CW", "reference": "K-2"},
		})
	}))
	defer srv.Close()

	store := memory.New()
	c := New(srv.URL, store, nil, nil, nil)

	err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}

func TestCollectNonArrayPayloadIsParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"an array"}`))
	}))
	defer srv.Close()

	store := memory.New()
	c := New(srv.URL, store, nil, nil, nil)

	err := c.Collect(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.ParseError))
	assert.Equal(t, 0, store.Len())
}

func TestCollectNon2xxIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	store := memory.New()
	c := New(srv.URL, store, nil, nil, nil)

	err := c.Collect(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.FetchError))
}

func TestCollectWritesNDJSONWithoutTrailingNewline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"spotId": 1, "activator": "W0A", "frequency": "7137", "mode": "ssb", "reference": "K-1"},
			{"spotId": 2, "activator": "K1X", "frequency": "14000", "mode": "CW", "reference": "K-2"},
		})
	}))
	defer srv.Close()

	store := memory.New()
	c := New(srv.URL, store, nil, nil, nil)
	require.NoError(t, c.Collect(context.Background()))

	listed, err := store.List(context.Background(), "raw/")
	require.NoError(t, err)
	require.Len(t, listed, 1)

	obj, err := store.Get(context.Background(), listed[0].Key)
	require.NoError(t, err)
	assert.False(t, bytes.HasSuffix(obj.Body, []byte("\n")))
	assert.Equal(t, 2, bytes.Count(obj.Body, []byte("\n"))+1)
	assert.Equal(t, objectstore.ContentTypeNDJSON, obj.ContentType)
	assert.Equal(t, "2", obj.CustomMetadata["spotCount"])
}
