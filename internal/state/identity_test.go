package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venomqa/venomqa/internal/core"
)

func obs(t *testing.T, system string, data map[string]any) core.Observation {
	t.Helper()
	o, err := core.NewObservation(system, data, nil)
	require.NoError(t, err)
	return o
}

func TestCanonicalID_PermutationInvariant(t *testing.T) {
	a := obs(t, "db", map[string]any{"orders": 1})
	b := obs(t, "cache", map[string]any{"hits": 2})

	id1 := CanonicalID([]core.Observation{a, b})
	id2 := CanonicalID([]core.Observation{b, a})
	assert.Equal(t, id1, id2)
}

func TestCanonicalID_DifferentDataDiffers(t *testing.T) {
	a := obs(t, "db", map[string]any{"orders": 1})
	b := obs(t, "db", map[string]any{"orders": 2})
	assert.NotEqual(t, CanonicalID([]core.Observation{a}), CanonicalID([]core.Observation{b}))
}

func TestCanonicalID_MetadataExcluded(t *testing.T) {
	a, err := core.NewObservation("db", map[string]any{"orders": 1}, map[string]any{"latency_ms": 5})
	require.NoError(t, err)
	b, err := core.NewObservation("db", map[string]any{"orders": 1}, map[string]any{"latency_ms": 500})
	require.NoError(t, err)
	assert.Equal(t, CanonicalID([]core.Observation{a}), CanonicalID([]core.Observation{b}))
}

func TestCanonicalID_Is16HexChars(t *testing.T) {
	id := CanonicalID(nil)
	assert.Len(t, id, 16)
}
