package registry

import (
	"testing"
	"time"

	"meshgraph/internal/audit"
	"meshgraph/internal/config"
)

func cfg() func() config.MeshConfig {
	return func() config.MeshConfig {
		return config.MeshConfig{Enabled: true, HeartbeatIntervalSecs: 30, StaleTimeoutSecs: 90, LeaderElection: true}
	}
}

func TestFirstRegistrantBecomesLeader(t *testing.T) {
	r := New(cfg(), audit.NoopRecorder{})
	leader, peers := r.Register(Info{IID: "a"})
	if leader != "a" {
		t.Fatalf("expected a to be leader, got %q", leader)
	}
	if len(peers) != 1 {
		t.Fatalf("expected one peer, got %d", len(peers))
	}

	leader, _ = r.Register(Info{IID: "b"})
	if leader != "a" {
		t.Fatalf("expected leader to remain a, got %q", leader)
	}
}

func TestHeartbeatUnknownPeerNotAcked(t *testing.T) {
	r := New(cfg(), audit.NoopRecorder{})
	ack, _, _ := r.Heartbeat("ghost", "ok", nil)
	if ack {
		t.Fatalf("expected heartbeat from unregistered iid to be rejected")
	}
}

func TestHeartbeatHintExcludesSelfAndStale(t *testing.T) {
	r := New(cfg(), audit.NoopRecorder{})
	r.Register(Info{IID: "a"})
	r.Register(Info{IID: "b"})
	r.Register(Info{IID: "c"})
	r.Register(Info{IID: "d"})
	r.mu.Lock()
	r.peers["d"].Status = StatusStale
	r.mu.Unlock()

	_, _, hint := r.Heartbeat("a", "ok", nil)
	for _, h := range hint {
		if h == "a" {
			t.Fatalf("expected hint to exclude the caller, got %v", hint)
		}
		if h == "d" {
			t.Fatalf("expected hint to exclude the stale peer d, got %v", hint)
		}
	}
	if len(hint) != 2 {
		t.Fatalf("expected hint to include the two other peers, got %v", hint)
	}
}

func TestSweepMarksStaleThenRemoves(t *testing.T) {
	r := New(cfg(), audit.NoopRecorder{})
	r.Register(Info{IID: "a"})

	r.mu.Lock()
	r.peers["a"].LastHeartbeat = time.Now().Add(-100 * time.Second)
	r.mu.Unlock()
	r.Sweep(time.Now())

	peers := r.ListPeers(nil)
	if len(peers) != 1 || peers[0].Status != StatusStale {
		t.Fatalf("expected peer a to be marked Stale, got %+v", peers)
	}

	r.mu.Lock()
	r.peers["a"].LastHeartbeat = time.Now().Add(-200 * time.Second)
	r.mu.Unlock()
	r.Sweep(time.Now())

	if len(r.ListPeers(nil)) != 0 {
		t.Fatalf("expected peer a to be removed after extended staleness")
	}
}

func TestLeaderFailoverToSmallestLiveIID(t *testing.T) {
	r := New(cfg(), audit.NoopRecorder{})
	r.Register(Info{IID: "m-leader"})
	r.Register(Info{IID: "a-peer"})
	r.Register(Info{IID: "z-peer"})

	if r.Leader() != "m-leader" {
		t.Fatalf("expected m-leader to be leader initially")
	}

	r.mu.Lock()
	r.peers["m-leader"].Status = StatusStale
	r.mu.Unlock()
	r.Sweep(time.Now())

	if r.Leader() != "a-peer" {
		t.Fatalf("expected a-peer (lexicographically smallest live) to take over, got %q", r.Leader())
	}
}

func TestDeregisterClearsLeaderAndTriggersElection(t *testing.T) {
	r := New(cfg(), audit.NoopRecorder{})
	r.Register(Info{IID: "a"})
	r.Register(Info{IID: "b"})

	r.Deregister("a")
	if r.Leader() != "b" {
		t.Fatalf("expected b to become leader after a deregisters, got %q", r.Leader())
	}
}

func TestDegradationScoreZeroBeforeMinSamples(t *testing.T) {
	r := New(cfg(), audit.NoopRecorder{})
	r.Register(Info{IID: "a"})
	if score := r.DegradationScore("a"); score != 0 {
		t.Fatalf("expected 0 before min samples, got %v", score)
	}
	if score := r.DegradationScore("unknown"); score != 0 {
		t.Fatalf("expected 0 for unknown peer, got %v", score)
	}
}
