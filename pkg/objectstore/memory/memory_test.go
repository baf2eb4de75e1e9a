package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kb9wtx/spotlake/pkg/objectstore"
)

func TestPutGetRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.Put(ctx, "raw/2025/01/01/00/spots-a.ndjson", []byte(`{"spotId":1}`), objectstore.PutOptions{
		ContentType:  objectstore.ContentTypeNDJSON,
		CacheControl: objectstore.CacheImmutable,
	})
	require.NoError(t, err)

	obj, err := s.Get(ctx, "raw/2025/01/01/00/spots-a.ndjson")
	require.NoError(t, err)
	require.NotNil(t, obj)
	assert.Equal(t, `{"spotId":1}`, string(obj.Body))
	assert.Equal(t, objectstore.ContentTypeNDJSON, obj.ContentType)
}

func TestGetMissingReturnsNilNil(t *testing.T) {
	s := New()
	obj, err := s.Get(context.Background(), "does/not/exist")
	assert.NoError(t, err)
	assert.Nil(t, obj)
}

func TestListLexicographicByPrefix(t *testing.T) {
	s := New()
	ctx := context.Background()
	keys := []string{
		"raw/2025/01/01/00/spots-c.ndjson",
		"raw/2025/01/01/00/spots-a.ndjson",
		"raw/2025/01/01/00/spots-b.ndjson",
		"hourly/2025/01/01/00.ndjson",
	}
	for _, k := range keys {
		require.NoError(t, s.Put(ctx, k, []byte("x"), objectstore.PutOptions{}))
	}

	listed, err := s.List(ctx, "raw/2025/01/01/00/")
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, "raw/2025/01/01/00/spots-a.ndjson", listed[0].Key)
	assert.Equal(t, "raw/2025/01/01/00/spots-b.ndjson", listed[1].Key)
	assert.Equal(t, "raw/2025/01/01/00/spots-c.ndjson", listed[2].Key)
}

func TestListEmptyPrefixReturnsNilNotError(t *testing.T) {
	s := New()
	listed, err := s.List(context.Background(), "nothing/here/")
	assert.NoError(t, err)
	assert.Nil(t, listed)
}

func TestPutOverwritesExisting(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "manifest.json", []byte("v1"), objectstore.PutOptions{}))
	require.NoError(t, s.Put(ctx, "manifest.json", []byte("v2"), objectstore.PutOptions{}))

	obj, err := s.Get(ctx, "manifest.json")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(obj.Body))
	assert.Equal(t, 1, s.Len())
}
