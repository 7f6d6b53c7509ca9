package apirecorder_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/venomqa/venomqa/adapter/apirecorder"
)

func newTestAdapter(t *testing.T) (*apirecorder.Adapter, context.Context) {
	t.Helper()
	ctx := context.Background()
	addr := fmt.Sprintf("127.0.0.1:%d", 20000+time.Now().Nanosecond()%10000)
	a := apirecorder.New("thirdparty", addr, nil)
	require.NoError(t, a.Begin(ctx))
	t.Cleanup(func() { a.End(ctx) })
	a.RegisterStub(apirecorder.Stub{Method: http.MethodGet, Path: "/charge", StatusCode: http.StatusOK, Body: map[string]string{"status": "ok"}})
	return a, ctx
}

func TestAdapter_RollbackRoundTrip(t *testing.T) {
	a, ctx := newTestAdapter(t)

	before, err := a.Observe(ctx)
	require.NoError(t, err)

	h, err := a.Checkpoint(ctx, "before-call")
	require.NoError(t, err)

	a.RegisterStub(apirecorder.Stub{Method: http.MethodGet, Path: "/charge", StatusCode: http.StatusServiceUnavailable})
	resp, err := http.Get("http://" + addrOf(a) + "/charge")
	require.NoError(t, err)
	resp.Body.Close()

	mutated, err := a.Observe(ctx)
	require.NoError(t, err)
	require.False(t, before.Equal(mutated))

	require.NoError(t, a.Rollback(ctx, h))
	after, err := a.Observe(ctx)
	require.NoError(t, err)
	require.True(t, before.Equal(after))
}

func addrOf(a *apirecorder.Adapter) string {
	return a.AddrForTest()
}

func TestAdapter_JournalRecordsCallIDs(t *testing.T) {
	a, _ := newTestAdapter(t)

	resp, err := http.Get("http://" + addrOf(a) + "/charge")
	require.NoError(t, err)
	resp.Body.Close()

	journal := a.Journal()
	require.Len(t, journal, 1)
	require.Equal(t, http.MethodGet, journal[0].Method)
	require.Equal(t, "/charge", journal[0].Path)
	require.NotEmpty(t, journal[0].CallID)
	require.Equal(t, journal[0].CallID, resp.Header.Get("X-Call-ID"),
		"the stub must echo the journaled call ID back to the caller")
}

func TestAdapter_RollbackTruncatesJournal(t *testing.T) {
	a, ctx := newTestAdapter(t)

	resp, err := http.Get("http://" + addrOf(a) + "/charge")
	require.NoError(t, err)
	resp.Body.Close()

	h, err := a.Checkpoint(ctx, "one-call")
	require.NoError(t, err)

	resp, err = http.Get("http://" + addrOf(a) + "/charge")
	require.NoError(t, err)
	resp.Body.Close()
	require.Len(t, a.Journal(), 2)

	require.NoError(t, a.Rollback(ctx, h))
	require.Len(t, a.Journal(), 1)
}
