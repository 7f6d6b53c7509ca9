package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_SetGetDeleteHasKeys(t *testing.T) {
	c := NewContext()
	c.Set("a", Int(1))
	c.Set("b", Int(2))

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, int64(1), mustInt(v))
	assert.True(t, c.Has("b"))
	assert.Equal(t, []string{"a", "b"}, c.Keys())

	c.Delete("a")
	assert.False(t, c.Has("a"))
	assert.Equal(t, []string{"b"}, c.Keys())
}

func TestContext_SnapshotRestoreRoundTrip(t *testing.T) {
	c := NewContext()
	c.Set("order_id", String("ord-1"))
	c.RecordExecuted("create_order", ActionOK)

	snap := c.Snapshot()

	c.Set("order_id", String("ord-2"))
	c.RecordExecuted("refund_order", ActionOK)
	assert.True(t, c.HasExecuted("refund_order"))

	c.Restore(snap)
	assert.False(t, c.HasExecuted("refund_order"))
	v, _ := c.Get("order_id")
	s, _ := v.AsString()
	assert.Equal(t, "ord-1", s)
}

func TestContext_SnapshotIsDeepCopy(t *testing.T) {
	c := NewContext()
	c.Set("list", List(Int(1), Int(2)))
	snap := c.Snapshot()

	v, _ := c.Get("list")
	l, _ := v.AsList()
	l[0] = Int(999) // mutate the live context's list in place

	snapV, _ := snap.Get("list")
	snapL, _ := snapV.AsList()
	assert.Equal(t, int64(1), mustInt(snapL[0]))
}

func TestContext_RestoreReplacesEntireContents(t *testing.T) {
	base := NewContext()
	base.Set("keep", Int(1))
	snap := base.Snapshot()

	live := NewContext()
	live.Set("unrelated", Int(42))
	live.Restore(snap)

	assert.False(t, live.Has("unrelated"))
	assert.True(t, live.Has("keep"))
}

func TestContext_SkippedActionsExcludedFromHistory(t *testing.T) {
	c := NewContext()
	c.RecordExecuted("noop", ActionSkipped)
	assert.False(t, c.HasExecuted("noop"))
	assert.Empty(t, c.History)
}

func TestContext_Equal(t *testing.T) {
	a := NewContext()
	a.Set("x", Int(1))
	a.RecordExecuted("create", ActionOK)

	b := a.Snapshot()
	assert.True(t, a.Equal(b))

	b.Set("x", Int(2))
	assert.False(t, a.Equal(b))
}
