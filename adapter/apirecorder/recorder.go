// Package apirecorder implements the external-API recorder Rollbackable
// adapter: Checkpoint captures the current stub set and request journal;
// Rollback resets stubs and truncates the journal to the checkpointed length.
// It stands in for a third-party service the System Under Test calls out to, so
// the SUT's own outbound calls can be stubbed and rolled back like any other
// adapter.
//
// The stub server is routed with gorilla/mux so stubs can be registered and
// reset by path pattern.
package apirecorder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/venomqa/venomqa/internal/core"
	"github.com/venomqa/venomqa/pkg/logger"
)

// RecordedRequest is one inbound call the stub server observed. CallID ties
// the journal entry to the matching log line and to the X-Call-ID header the
// stub echoed back; it stays out of Observe's identity data since it is
// freshly minted per call.
type RecordedRequest struct {
	CallID string
	Method string
	Path   string
	Body   string
}

// Stub is a canned response for a method+path pattern.
type Stub struct {
	Method     string
	Path       string
	StatusCode int
	Body       any
}

// Adapter runs a stub HTTP server and implements core.Rollbackable over its
// stub set and request journal. Supports arbitrary restore order: each
// checkpoint is a self-contained copy of both.
type Adapter struct {
	name   string
	addr   string
	logger *slog.Logger

	mu      sync.Mutex
	stubs   map[string]Stub // keyed by "METHOD path"
	journal []RecordedRequest

	router *mux.Router
	server *http.Server
}

func New(name, listenAddr string, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	a := &Adapter{
		name:   name,
		addr:   listenAddr,
		logger: log.With("adapter", name),
		stubs:  make(map[string]Stub),
	}
	router := mux.NewRouter()
	router.PathPrefix("/").HandlerFunc(a.handle)
	a.router = router
	return a
}

func (a *Adapter) Name() string                      { return a.name }
func (a *Adapter) Discipline() core.RestoreDiscipline { return core.ArbitraryOrder }

// Begin starts the stub HTTP server listening on the configured address.
func (a *Adapter) Begin(ctx context.Context) error {
	a.server = &http.Server{Addr: a.addr, Handler: a.router}
	ln, err := net.Listen("tcp", a.addr)
	if err != nil {
		return fmt.Errorf("apirecorder adapter %q: listen: %w", a.name, err)
	}
	go a.server.Serve(ln)
	a.logger.Info("apirecorder adapter begun", "addr", a.addr)
	return nil
}

func (a *Adapter) End(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	err := a.server.Shutdown(ctx)
	a.server = nil
	return err
}

// RegisterStub installs or replaces a canned response for method+path. Actions
// and test fixtures call this to describe how the third-party service should
// currently respond.
func (a *Adapter) RegisterStub(s Stub) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stubs[stubKey(s.Method, s.Path)] = s
}

func (a *Adapter) handle(w http.ResponseWriter, r *http.Request) {
	callID := logger.NewCallID()
	body, _ := io.ReadAll(r.Body)

	a.mu.Lock()
	a.journal = append(a.journal, RecordedRequest{
		CallID: callID,
		Method: r.Method,
		Path:   r.URL.Path,
		Body:   string(body),
	})
	s, ok := a.stubs[stubKey(r.Method, r.URL.Path)]
	a.mu.Unlock()

	a.logger.Info("recorded third-party call",
		"call_id", callID,
		"method", r.Method,
		"path", r.URL.Path,
		"stubbed", ok,
	)

	w.Header().Set("X-Call-ID", callID)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(s.StatusCode)
	json.NewEncoder(w).Encode(s.Body)
}

type stubSnapshotHandle struct {
	stubs      map[string]Stub
	journalLen int
}

func (h *stubSnapshotHandle) Opaque() any { return h }

// Checkpoint captures the current stub set and request-journal length.
func (a *Adapter) Checkpoint(ctx context.Context, name string) (core.SystemCheckpoint, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	stubs := make(map[string]Stub, len(a.stubs))
	for k, v := range a.stubs {
		stubs[k] = v
	}
	return &stubSnapshotHandle{stubs: stubs, journalLen: len(a.journal)}, nil
}

// Rollback resets stubs and truncates the journal to the checkpointed length.
func (a *Adapter) Rollback(ctx context.Context, handle core.SystemCheckpoint) error {
	h, ok := handle.(*stubSnapshotHandle)
	if !ok {
		return fmt.Errorf("apirecorder adapter %q: rollback handle of wrong type", a.name)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stubs = make(map[string]Stub, len(h.stubs))
	for k, v := range h.stubs {
		a.stubs[k] = v
	}
	if h.journalLen > len(a.journal) {
		return fmt.Errorf("apirecorder adapter %q: checkpoint journal length exceeds current journal", a.name)
	}
	a.journal = a.journal[:h.journalLen]
	return nil
}

// Observe summarizes the journal as an ordered list of "METHOD path" strings —
// deterministic and cheap.
func (a *Adapter) Observe(ctx context.Context) (core.Observation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	calls := make([]any, len(a.journal))
	for i, r := range a.journal {
		calls[i] = fmt.Sprintf("%s %s", r.Method, r.Path)
	}
	return core.NewObservation(a.name, map[string]any{"calls": calls}, nil)
}

// Journal returns a copy of every call recorded since the last rollback
// truncation, for invariants that assert on the SUT's outbound traffic.
func (a *Adapter) Journal() []RecordedRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]RecordedRequest, len(a.journal))
	copy(out, a.journal)
	return out
}

func stubKey(method, path string) string { return method + " " + path }

// AddrForTest returns the stub server's listen address, for tests that need to
// issue real HTTP requests against it.
func (a *Adapter) AddrForTest() string { return a.addr }

var _ core.Rollbackable = (*Adapter)(nil)
