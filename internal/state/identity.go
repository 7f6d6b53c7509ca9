// Package state computes canonical State identity from a list of Observations:
// sort, canonicalize, hash — the same shape a label-fingerprinting
// deduplication scheme uses to derive a stable identity from unordered data,
// applied here to identify a reachable API state instead of an alert group.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"github.com/venomqa/venomqa/internal/core"
)

// CanonicalID computes the 16-hex-character truncated SHA-256 over the sorted
// list of (system, canonical data) pairs drawn from obs. The data is encoded
// with core.Value.Canonical (sorted keys, type-tagged scalars), not as JSON.
// Permutation-invariant: any reordering of obs yields the same ID, because the
// observations are always sorted by system name before hashing.
func CanonicalID(obs []core.Observation) string {
	sorted := make([]core.Observation, len(obs))
	copy(sorted, obs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].System < sorted[j].System })

	h := sha256.New()
	for _, o := range sorted {
		h.Write([]byte(o.System))
		h.Write([]byte{0})
		h.Write([]byte(core.Map(o.Data).Canonical()))
		h.Write([]byte{0})
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)[:16]
}

// NewState builds a canonical State from an observation list, computing its ID
// via CanonicalID. Checkpoint is attached separately by the caller (the Agent
// loop) once a World checkpoint has been taken for this state.
func NewState(obs []core.Observation) core.State {
	return core.State{
		ID:           CanonicalID(obs),
		Observations: obs,
		CreatedAt:    time.Now(),
	}
}
