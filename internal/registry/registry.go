/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package registry tracks live mesh instances, their heartbeats, and the
// advisory leader, per spec.md's Mesh Registry component.
package registry

import (
	"sort"
	"sync"
	"time"

	"meshgraph/internal/audit"
	"meshgraph/internal/config"
	"meshgraph/internal/logging"
)

var log = logging.NewLogger("registry")

// Status is the lifecycle state of a tracked peer.
type Status string

const (
	StatusActive Status = "Active"
	StatusStale  Status = "Stale"
)

// Peer is everything the registry knows about one mesh instance.
type Peer struct {
	IID           string            `json:"iid"`
	Address       string            `json:"address"`
	Capabilities  []string          `json:"capabilities"`
	AgentProfiles []string          `json:"profiles"`
	Status        Status            `json:"status"`
	JoinedAt      time.Time         `json:"joined_at"`
	LastHeartbeat time.Time         `json:"last_heartbeat"`
	Metrics       map[string]string `json:"metrics,omitempty"`
}

func (p Peer) clone() Peer {
	cp := p
	cp.Capabilities = append([]string(nil), p.Capabilities...)
	cp.AgentProfiles = append([]string(nil), p.AgentProfiles...)
	if p.Metrics != nil {
		cp.Metrics = make(map[string]string, len(p.Metrics))
		for k, v := range p.Metrics {
			cp.Metrics[k] = v
		}
	}
	return cp
}

// Info is what a prospective instance presents to register.
type Info struct {
	IID           string
	Address       string
	Capabilities  []string
	AgentProfiles []string
}

// Registry is the in-memory membership table for one instance's view of
// the mesh. It has no consensus: every instance runs its own Registry and
// reconciles eventually via register/heartbeat calls against peers,
// exactly as spec.md's "eventually consistent across peers" note expects.
type Registry struct {
	mu        sync.RWMutex
	cfg       func() config.MeshConfig
	peers     map[string]*Peer
	detectors map[string]*PhiAccrualDetector
	leaderID  string
	order     []string // registration order, for "first registrant becomes leader"
	recorder  audit.Recorder
}

// New creates an empty Registry. cfgFn supplies live MeshConfig so the
// heartbeat interval and stale timeout can be changed without restarting.
// recorder may be audit.NoopRecorder{} if no audit trail is wanted.
func New(cfgFn func() config.MeshConfig, recorder audit.Recorder) *Registry {
	if recorder == nil {
		recorder = audit.NoopRecorder{}
	}
	return &Registry{
		cfg:       cfgFn,
		peers:     make(map[string]*Peer),
		detectors: make(map[string]*PhiAccrualDetector),
		recorder:  recorder,
	}
}

// Register admits info as a live peer (or refreshes it, if iid is already
// known) and returns the current leader and the full peer list snapshot.
func (r *Registry) Register(info Info) (leaderID string, peers []Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if _, exists := r.peers[info.IID]; !exists {
		r.order = append(r.order, info.IID)
		r.detectors[info.IID] = NewPhiAccrualDetector(8.0, 2, 64)
	}
	r.peers[info.IID] = &Peer{
		IID:           info.IID,
		Address:       info.Address,
		Capabilities:  append([]string(nil), info.Capabilities...),
		AgentProfiles: append([]string(nil), info.AgentProfiles...),
		Status:        StatusActive,
		JoinedAt:      now,
		LastHeartbeat: now,
	}
	r.detectors[info.IID].Heartbeat()
	r.recorder.LogEvent(audit.Event{EventType: audit.EventTypeNodeJoin, PeerIID: info.IID, Detail: info.Address})

	if r.leaderID == "" && r.cfg().LeaderElection {
		r.leaderID = info.IID
		log.Info("leader elected", "iid", info.IID, "reason", "first_registrant")
		r.recorder.LogEvent(audit.Event{EventType: audit.EventTypeLeaderElection, PeerIID: info.IID, Detail: "first_registrant"})
	}
	return r.leaderID, r.snapshotLocked(nil)
}

// Heartbeat refreshes iid's liveness and returns the ack plus a
// should-sync hint: every other currently Active peer, letting the sync
// engine's own per-peer AlreadySyncing gate and admission semaphore
// absorb any redundancy. The registry does not track per-peer sync
// history, so it cannot do better than this coarse hint; a future
// revision could narrow it by graph clock divergence once the registry
// is handed the Store's GraphClock.
func (r *Registry) Heartbeat(iid, status string, metrics map[string]string) (ack bool, peers []Peer, shouldSync []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[iid]
	if !ok {
		return false, nil, nil
	}
	p.LastHeartbeat = time.Now()
	p.Status = StatusActive
	if status != "" {
		p.Metrics = metrics
	}
	if d, ok := r.detectors[iid]; ok {
		d.Heartbeat()
	}

	if iid == r.leaderID {
		log.Debug("leader term renewed", "iid", iid)
	}
	r.maybeElectLeaderLocked()

	hint := make([]string, 0, len(r.peers))
	for other, peer := range r.peers {
		if other == iid || peer.Status != StatusActive {
			continue
		}
		hint = append(hint, other)
	}
	sort.Strings(hint)
	return true, r.snapshotLocked(nil), hint
}

// Deregister removes iid from the membership table immediately (a
// graceful leave, distinct from staleness-driven eviction).
func (r *Registry) Deregister(iid string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.peers, iid)
	delete(r.detectors, iid)
	for i, id := range r.order {
		if id == iid {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.recorder.LogEvent(audit.Event{EventType: audit.EventTypeNodeLeave, PeerIID: iid})
	if r.leaderID == iid {
		r.leaderID = ""
		r.maybeElectLeaderLocked()
	}
}

// ListPeers returns peers matching filter (nil matches everything),
// sorted by IID for deterministic output.
func (r *Registry) ListPeers(filter func(Peer) bool) []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked(filter)
}

func (r *Registry) snapshotLocked(filter func(Peer) bool) []Peer {
	out := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		if filter != nil && !filter(*p) {
			continue
		}
		out = append(out, p.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IID < out[j].IID })
	return out
}

// Leader returns the current advisory leader IID, or "" if none.
func (r *Registry) Leader() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.leaderID
}

// Sweep marks instances stale or dead relative to now, per the staleness
// rule in spec.md §4.5: Stale after stale_timeout with no heartbeat,
// removed entirely after a second stale_timeout window with still no
// heartbeat. It should be called periodically (e.g. once per heartbeat
// interval) by the owning daemon.
func (r *Registry) Sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	staleTimeout := time.Duration(r.cfg().StaleTimeoutSecs) * time.Second
	if staleTimeout <= 0 {
		return
	}
	for iid, p := range r.peers {
		age := now.Sub(p.LastHeartbeat)
		switch {
		case age > 2*staleTimeout:
			delete(r.peers, iid)
			delete(r.detectors, iid)
			log.Warn("peer removed after extended staleness", "iid", iid, "age_secs", age.Seconds())
		case age > staleTimeout:
			if p.Status != StatusStale {
				log.Warn("peer marked stale", "iid", iid, "age_secs", age.Seconds())
			}
			p.Status = StatusStale
		}
	}
	r.maybeElectLeaderLocked()
}

// maybeElectLeaderLocked applies the deterministic failover rule: if the
// current leader is gone or stale, the live peer with the
// lexicographically smallest IID takes over. Caller holds r.mu.
func (r *Registry) maybeElectLeaderLocked() {
	if !r.cfg().LeaderElection {
		return
	}
	if leader, ok := r.peers[r.leaderID]; ok && leader.Status == StatusActive {
		return
	}
	var smallest string
	for iid, p := range r.peers {
		if p.Status != StatusActive {
			continue
		}
		if smallest == "" || iid < smallest {
			smallest = iid
		}
	}
	if smallest != "" && smallest != r.leaderID {
		log.Info("leader elected", "iid", smallest, "reason", "predecessor_stale", "previous", r.leaderID)
		r.recorder.LogEvent(audit.Event{EventType: audit.EventTypeLeaderElection, PeerIID: smallest, Detail: "predecessor_stale"})
		r.leaderID = smallest
	}
}

// DegradationScore returns the phi-accrual suspicion level for iid: 0 if
// unknown or insufficient samples, rising without bound as the instance
// overruns its expected heartbeat cadence.
func (r *Registry) DegradationScore(iid string) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.detectors[iid]
	if !ok {
		return 0
	}
	return d.Phi()
}
