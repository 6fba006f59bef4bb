package heater

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catherinevee/prodflow/pkg/prminer"
)

func TestMarshalUnmarshalPayload_RoundTrips(t *testing.T) {
	b := prminer.PRBundle{
		Times: prminer.Timestamps{Created: at(0), Merged: at(10)},
		Size:  prminer.Size{Additions: 12, Deletions: 3, FilesChanged: 2},
	}

	data, err := marshalTimestamps(b)
	require.NoError(t, err)

	times, size, err := unmarshalPayload(data)
	require.NoError(t, err)
	assert.Equal(t, b.Times, times)
	assert.Equal(t, b.Size, size)
}

func TestIsCI_ReflectsRealEnvironment(t *testing.T) {
	// isCI just wraps os.Getenv("CI") != ""; assert it agrees with whatever
	// the ambient environment holds.
	assert.Equal(t, os.Getenv("CI") != "", isCI())
}
