package httpstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kb9wtx/spotlake/pkg/errs"
	"github.com/kb9wtx/spotlake/pkg/objectstore"
)

func TestPutThenGetRoundTrip(t *testing.T) {
	objects := map[string][]byte{}
	headers := map[string]http.Header{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path[1:]
		switch r.Method {
		case http.MethodPut:
			buf := make([]byte, r.ContentLength)
			r.Body.Read(buf)
			objects[key] = buf
			headers[key] = r.Header.Clone()
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			body, ok := objects[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			for k, vs := range headers[key] {
				for _, v := range vs {
					w.Header().Add(k, v)
				}
			}
			w.WriteHeader(http.StatusOK)
			w.Write(body)
		}
	}))
	defer srv.Close()

	s := New(srv.URL)
	ctx := context.Background()

	err := s.Put(ctx, "hourly/2025/01/01/00-abc12345.ndjson", []byte(`{"mode":"SSB"}`), objectstore.PutOptions{
		ContentType:    objectstore.ContentTypeNDJSON,
		CacheControl:   objectstore.CacheImmutable,
		CustomMetadata: map[string]string{"totalspots": "1"},
	})
	require.NoError(t, err)

	obj, err := s.Get(ctx, "hourly/2025/01/01/00-abc12345.ndjson")
	require.NoError(t, err)
	require.NotNil(t, obj)
	assert.Equal(t, `{"mode":"SSB"}`, string(obj.Body))
	assert.Equal(t, "1", obj.CustomMetadata["totalspots"])
}

func TestGetMissingReturnsNilNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := New(srv.URL)
	obj, err := s.Get(context.Background(), "missing.json")
	assert.NoError(t, err)
	assert.Nil(t, obj)
}

func TestGetServerErrorIsReadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := New(srv.URL)
	_, err := s.Get(context.Background(), "anything")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.ReadError))
}

func TestListDecodesKeys(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string][]string{
			"keys": {"raw/2025/01/01/00/spots-a.ndjson", "raw/2025/01/01/00/spots-b.ndjson"},
		})
	}))
	defer srv.Close()

	s := New(srv.URL)
	listed, err := s.List(context.Background(), "raw/2025/01/01/00/")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "raw/2025/01/01/00/spots-a.ndjson", listed[0].Key)
}

func TestListErrorStatusIsListError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := New(srv.URL)
	_, err := s.List(context.Background(), "raw/")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.ListError))
}

func TestPutErrorStatusIsStorageError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := New(srv.URL)
	err := s.Put(context.Background(), "manifest.json", []byte("{}"), objectstore.PutOptions{})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.StorageError))
}
