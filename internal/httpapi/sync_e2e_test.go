package httpapi

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"meshgraph/internal/audit"
	"meshgraph/internal/bus"
	"meshgraph/internal/config"
	"meshgraph/internal/graph"
	"meshgraph/internal/registry"
	"meshgraph/internal/resolver"
	"meshgraph/internal/store"
	"meshgraph/internal/syncengine"
)

// staticAddresses is a minimal AddressBook for tests that don't need the
// full registry.
type staticAddresses map[string]string

func (a staticAddresses) Address(iid string) (string, bool) {
	addr, ok := a[iid]
	return addr, ok
}

func testSyncCfg() func() config.SyncConfig {
	return func() config.SyncConfig {
		return config.SyncConfig{
			Enabled: true, MaxConcurrentSyncs: 3, MaxRetries: 0,
			Strategy:           config.SyncStrategyConfig{IncrementalThreshold: 0.3},
			ConflictResolution: config.ConflictResolutionConfig{Strategy: config.StrategyMerge, AutoMerge: true},
		}
	}
}

// TestFullSyncSessionOverHTTP wires two instances end-to-end: instance A
// initiates a sync session against B purely over HTTP (no direct Go call
// between the two Engines), exercising Client, Dispatcher, and Server
// together exactly as cmd/meshd would use them.
func TestFullSyncSessionOverHTTP(t *testing.T) {
	stA, err := store.Open("g1", "A", "")
	if err != nil {
		t.Fatalf("open A: %v", err)
	}
	stB, err := store.Open("g1", "B", "")
	if err != nil {
		t.Fatalf("open B: %v", err)
	}
	if err := stA.UpsertNode(&graph.Node{NodeID: "from-a", NodeType: "person"}); err != nil {
		t.Fatalf("seed A: %v", err)
	}
	if err := stB.UpsertNode(&graph.Node{NodeID: "from-b", NodeType: "person"}); err != nil {
		t.Fatalf("seed B: %v", err)
	}

	busA := bus.New(0, 0)
	busB := bus.New(0, 0)

	regA := registry.New(func() config.MeshConfig { return config.MeshConfig{} }, audit.NoopRecorder{})
	regB := registry.New(func() config.MeshConfig { return config.MeshConfig{} }, audit.NoopRecorder{})

	srvA := NewServer("A", regA, busA)
	srvB := NewServer("B", regB, busB)
	tsA := httptest.NewServer(srvA.Handler())
	defer tsA.Close()
	tsB := httptest.NewServer(srvB.Handler())
	defer tsB.Close()

	addresses := staticAddresses{"A": tsA.URL, "B": tsB.URL}

	clientA := NewClient("A", addresses, busA)
	engineA := syncengine.New("g1", stA, clientA, resolver.DefaultCollator, testSyncCfg(), audit.NoopRecorder{})
	engineB := syncengine.New("g1", stB, nil, resolver.DefaultCollator, testSyncCfg(), audit.NoopRecorder{})

	dispatcherB := NewDispatcher("B", busB, addresses, func(graphID string) (SyncResponder, bool) {
		if graphID != "g1" {
			return nil, false
		}
		return engineB, true
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcherB.Run(ctx)

	sessionCtx, sessionCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer sessionCancel()
	stats, err := engineA.Sync(sessionCtx, "B")
	if err != nil {
		t.Fatalf("Sync over HTTP failed: %v", err)
	}
	if stats.Outcome != graph.SyncSucceeded {
		t.Fatalf("expected success, got %+v", stats)
	}

	if _, ok := stA.GetNode("from-b"); !ok {
		t.Fatalf("expected A to have learned from-b")
	}
	if _, ok := stB.GetNode("from-a"); !ok {
		t.Fatalf("expected B to have learned from-a")
	}
}
