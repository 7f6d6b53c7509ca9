package memmock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venomqa/venomqa/internal/core"
)

func TestAdapter_RollbackRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := New("queue", nil)
	a.Put("order-1", core.String("queued"))

	before, err := a.Observe(ctx)
	require.NoError(t, err)

	cp, err := a.Checkpoint(ctx, "cp1")
	require.NoError(t, err)

	a.Put("order-2", core.String("queued"))
	a.Delete("order-1")
	assert.Equal(t, 1, a.Len())

	require.NoError(t, a.Rollback(ctx, cp))

	after, err := a.Observe(ctx)
	require.NoError(t, err)
	assert.True(t, before.Equal(after))
}

func TestAdapter_CheckpointIsIndependentCopy(t *testing.T) {
	ctx := context.Background()
	a := New("mail", nil)
	a.Put("k", core.String("v1"))

	cp, err := a.Checkpoint(ctx, "cp")
	require.NoError(t, err)

	a.Put("k", core.String("v2"))

	require.NoError(t, a.Rollback(ctx, cp))
	v, ok := a.Get("k")
	require.True(t, ok)
	s, _ := v.AsString()
	assert.Equal(t, "v1", s)
}

func TestAdapter_RollbackWrongHandleType(t *testing.T) {
	a := New("x", nil)
	err := a.Rollback(context.Background(), fakeHandle{})
	assert.Error(t, err)
}

type fakeHandle struct{}

func (fakeHandle) Opaque() any { return nil }
