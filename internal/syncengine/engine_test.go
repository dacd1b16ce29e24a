package syncengine

import (
	"context"
	"testing"

	"meshgraph/internal/audit"
	"meshgraph/internal/config"
	"meshgraph/internal/errors"
	"meshgraph/internal/graph"
	"meshgraph/internal/resolver"
	"meshgraph/internal/store"
	"meshgraph/internal/vectorclock"
)

// fakeTransport simulates a peer: Hello reports peerClock, and Full/Delta
// ignore the payload they are handed and answer with remoteNode (when
// set) and peerClock.
type fakeTransport struct {
	peerClock   vectorclock.Clock
	remoteNode  *graph.Node
	helloCalls  int
	failedCalls int
}

func (f *fakeTransport) Hello(ctx context.Context, peerIID string, hello SyncHello) (SyncHello, error) {
	f.helloCalls++
	return SyncHello{Version: ProtocolVersion, GraphID: hello.GraphID, LocalClock: f.peerClock}, nil
}

func (f *fakeTransport) Full(ctx context.Context, peerIID string, payload SyncPayloadFull) (SyncPayloadFull, error) {
	nodes := []graph.Node{}
	if f.remoteNode != nil {
		nodes = append(nodes, *f.remoteNode)
	}
	return SyncPayloadFull{Version: ProtocolVersion, GraphID: payload.GraphID, Nodes: nodes, Clock: f.peerClock}, nil
}

func (f *fakeTransport) Delta(ctx context.Context, peerIID string, payload SyncPayloadDelta) (SyncPayloadDelta, error) {
	nodes := []graph.Node{}
	if f.remoteNode != nil {
		nodes = append(nodes, *f.remoteNode)
	}
	return SyncPayloadDelta{Version: ProtocolVersion, GraphID: payload.GraphID, Nodes: nodes, Clock: f.peerClock}, nil
}

func (f *fakeTransport) Ack(ctx context.Context, peerIID string, ack SyncAck) error { return nil }
func (f *fakeTransport) Failed(ctx context.Context, peerIID string, failed SyncFailed) error {
	f.failedCalls++
	return nil
}

func testCfg() func() config.SyncConfig {
	return func() config.SyncConfig {
		return config.SyncConfig{
			Enabled:            true,
			MaxConcurrentSyncs: 3,
			MaxRetries:         0,
			RetryIntervalSecs:  0,
			Strategy:           config.SyncStrategyConfig{IncrementalThreshold: 0.3},
			ConflictResolution: config.ConflictResolutionConfig{Strategy: config.StrategyMerge, AutoMerge: true},
		}
	}
}

func TestSyncEmptyClockForcesFullTransferAndApplies(t *testing.T) {
	st, err := store.Open("g1", "local-iid", "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	remote := &graph.Node{NodeID: "remote1", NodeType: "person", Clock: vectorclock.FromMap(map[string]uint64{"peer": 1})}
	ft := &fakeTransport{peerClock: vectorclock.FromMap(map[string]uint64{"peer": 1}), remoteNode: remote}

	e := New("g1", st, ft, resolver.DefaultCollator, testCfg(), audit.NoopRecorder{})
	stats, err := e.Sync(context.Background(), "peer-iid")
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if stats.Outcome != graph.SyncSucceeded {
		t.Fatalf("expected success, got %+v", stats)
	}
	if _, ok := st.GetNode("remote1"); !ok {
		t.Fatalf("expected remote1 to be applied to the local store")
	}
	if ft.helloCalls != 1 {
		t.Fatalf("expected exactly one hello exchange")
	}
}

func TestSyncRejectsDuplicateConcurrentSession(t *testing.T) {
	st, _ := store.Open("g1", "local-iid", "")
	ft := &fakeTransport{peerClock: vectorclock.FromMap(map[string]uint64{"peer": 1})}
	e := New("g1", st, ft, resolver.DefaultCollator, testCfg(), audit.NoopRecorder{})

	if !e.tryClaim("peer-iid") {
		t.Fatalf("expected first claim to succeed")
	}
	if e.tryClaim("peer-iid") {
		t.Fatalf("expected second concurrent claim on the same peer to be rejected")
	}
	e.release("peer-iid")
	if !e.tryClaim("peer-iid") {
		t.Fatalf("expected claim to succeed again after release")
	}
}

func TestSyncDisabledReturnsPreconditionFailed(t *testing.T) {
	st, _ := store.Open("g1", "local-iid", "")
	ft := &fakeTransport{}
	cfgFn := func() config.SyncConfig { return config.SyncConfig{Enabled: false} }
	e := New("g1", st, ft, resolver.DefaultCollator, cfgFn, audit.NoopRecorder{})

	_, err := e.Sync(context.Background(), "peer-iid")
	if err == nil {
		t.Fatalf("expected error when sync is disabled")
	}
	if !errors.Is(err, errors.CategoryPrecondition) {
		t.Fatalf("expected a PreconditionFailed error, got %v", err)
	}
}

func TestDanglingEdgeDiscardedWhenEndpointMissing(t *testing.T) {
	st, _ := store.Open("g1", "local-iid", "")
	e := New("g1", st, &fakeTransport{}, resolver.DefaultCollator, testCfg(), audit.NoopRecorder{})

	edges := []graph.Edge{{EdgeID: "e1", SourceID: "missing-a", TargetID: "missing-b"}}
	kept := e.quarantineEdges(edges)
	if len(kept) != 0 {
		t.Fatalf("expected dangling edge to be discarded, got %+v", kept)
	}
}
