package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWrapsCauseAndKind(t *testing.T) {
	cause := errors.New("connection refused")
	err := New(FetchError, "fetch upstream spots", cause)

	require.Error(t, err)
	assert.Equal(t, FetchError, err.Kind)
	assert.Contains(t, err.Error(), "FETCH_ERROR")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestKindOfFindsWrappedError(t *testing.T) {
	inner := New(ReadError, "read raw object", errors.New("not found"))
	outer := fmt.Errorf("aggregate hour: %w", inner)

	kind, ok := KindOf(outer)
	require.True(t, ok)
	assert.Equal(t, ReadError, kind)
}

func TestKindOfReturnsFalseForPlainError(t *testing.T) {
	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestIsKind(t *testing.T) {
	err := New(StorageError, "put object", errors.New("disk full"))
	assert.True(t, IsKind(err, StorageError))
	assert.False(t, IsKind(err, ListError))
}
