package dbtypes

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	idA = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	idB = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

func TestValueRoundTrip(t *testing.T) {
	t.Parallel()

	original := UUIDArray{idA, idB}
	value, err := original.Value()
	require.NoError(t, err)
	assert.Equal(t, "{"+idA.String()+","+idB.String()+"}", value)

	var scanned UUIDArray
	require.NoError(t, scanned.Scan(value))
	assert.Equal(t, original, scanned)
}

func TestScanEmptyAndNil(t *testing.T) {
	t.Parallel()

	var a UUIDArray
	require.NoError(t, a.Scan("{}"))
	assert.Empty(t, a)

	require.NoError(t, a.Scan(nil))
	assert.Empty(t, a)

	require.NoError(t, a.Scan([]byte(`{"`+idA.String()+`"}`)))
	assert.Equal(t, UUIDArray{idA}, a)
}

func TestScanRejectsBadInput(t *testing.T) {
	t.Parallel()

	var a UUIDArray
	assert.Error(t, a.Scan("{not-a-uuid}"))
	assert.Error(t, a.Scan(42))
}

func TestNormalizedSortsWithoutMutating(t *testing.T) {
	t.Parallel()

	original := UUIDArray{idB, idA}
	normalized := original.Normalized()

	assert.Equal(t, UUIDArray{idA, idB}, normalized)
	assert.Equal(t, UUIDArray{idB, idA}, original)
}

func TestKeyIsOrderIndependent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, UUIDArray{idA, idB}.Key(), UUIDArray{idB, idA}.Key())
	assert.Equal(t, idA.String()+","+idB.String(), UUIDArray{idB, idA}.Key())
	assert.Equal(t, "", UUIDArray{}.Key())
}
