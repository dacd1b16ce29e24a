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

/*
Package syncengine drives a sync session with a chosen peer (spec.md
§4.4): negotiation, full-vs-incremental decision, applying received
records through the resolver, and finalization. Concurrency is bounded
by a golang.org/x/sync/semaphore admission gate, grounded on the
teacher's internal/sdk connection-pool Acquire/Release idiom but backed
by a real weighted semaphore rather than a hand-rolled channel pool.
*/
package syncengine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"meshgraph/internal/audit"
	"meshgraph/internal/config"
	"meshgraph/internal/errors"
	"meshgraph/internal/graph"
	"meshgraph/internal/ids"
	"meshgraph/internal/logging"
	"meshgraph/internal/resolver"
	"meshgraph/internal/store"
	"meshgraph/internal/vectorclock"
)

var log = logging.NewLogger("syncengine")

// Engine executes sync sessions for one graph's Store against peers
// reachable through a Transport.
type Engine struct {
	graphID   string
	st        *store.Store
	transport Transport
	collator  resolver.Collator
	cfg       func() config.SyncConfig
	recorder  audit.Recorder

	admission *semaphore.Weighted

	mu      sync.Mutex
	active  map[string]bool // key: peer IID, at most one session per peer
}

// New creates an Engine for graphID backed by st, using transport for
// peer communication and cfgFn to read the live sync configuration on
// each session (so config changes take effect without restarting).
// recorder may be audit.NoopRecorder{} if no audit trail is wanted.
func New(graphID string, st *store.Store, transport Transport, collator resolver.Collator, cfgFn func() config.SyncConfig, recorder audit.Recorder) *Engine {
	maxConcurrent := cfgFn().MaxConcurrentSyncs
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	if recorder == nil {
		recorder = audit.NoopRecorder{}
	}
	return &Engine{
		graphID:   graphID,
		st:        st,
		transport: transport,
		collator:  collator,
		cfg:       cfgFn,
		recorder:  recorder,
		admission: semaphore.NewWeighted(int64(maxConcurrent)),
		active:    make(map[string]bool),
	}
}

// Sync runs one sync session against peerIID, retrying transient
// failures with exponential backoff up to max_retries (spec.md §4.4).
func (e *Engine) Sync(ctx context.Context, peerIID string) (*graph.SyncStats, error) {
	cfg := e.cfg()
	if !cfg.Enabled {
		return nil, errors.NewPreconditionFailed("sync is disabled")
	}

	var lastErr error
	backoff := time.Duration(cfg.RetryIntervalSecs) * time.Second
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		stats, err := e.runSession(ctx, peerIID, cfg)
		if err == nil {
			return stats, nil
		}
		lastErr = err

		me, ok := err.(*errors.MeshError)
		if !ok || !me.Retryable() || attempt == maxRetries {
			return stats, err
		}

		log.Warn("sync session failed, retrying", "peer_iid", peerIID, "attempt", attempt+1, "error", err.Error())
		select {
		case <-ctx.Done():
			return stats, errors.NewCancelled("sync cancelled during backoff").WithCause(ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, lastErr
}

// runSession executes exactly one attempt of the full state machine.
func (e *Engine) runSession(ctx context.Context, peerIID string, cfg config.SyncConfig) (*graph.SyncStats, error) {
	if !e.tryClaim(peerIID) {
		return nil, errors.NewPreconditionFailed("AlreadySyncing").WithDetail(peerIID)
	}
	defer e.release(peerIID)

	if err := e.admission.Acquire(ctx, 1); err != nil {
		return nil, errors.NewCapacityExceeded("max_concurrent_syncs exhausted").WithCause(err)
	}
	defer e.admission.Release(1)

	sessionID := ids.NewSessionID()
	started := time.Now()
	stats := &graph.SyncStats{SessionID: sessionID, PeerIID: peerIID, StartedAt: started, ConflictsByOutcome: make(map[graph.ConflictOutcome]int)}
	e.recorder.LogEvent(audit.Event{EventType: audit.EventTypeSyncStarted, GraphID: e.graphID, PeerIID: peerIID, TargetID: sessionID})

	state := StateIdle
	transition := func(next State) error {
		if !CanTransition(state, next) {
			return errors.NewProtocolError(fmt.Sprintf("illegal session transition %s -> %s", state, next))
		}
		state = next
		return nil
	}
	fail := func(kind string, cause error) (*graph.SyncStats, error) {
		state = StateFailed
		stats.Outcome = graph.SyncFailedOutcome
		stats.FailureKind = kind
		if cause != nil {
			stats.FailureDetail = cause.Error()
		}
		stats.EndedAt = time.Now()
		stats.WallTime = stats.EndedAt.Sub(started)
		_ = e.st.RecordSyncStats(sessionID, *stats)
		_ = e.transport.Failed(ctx, peerIID, SyncFailed{Version: ProtocolVersion, GraphID: e.graphID, Kind: kind, Detail: stats.FailureDetail})
		e.recorder.LogEvent(audit.Event{EventType: audit.EventTypeSyncFailed, GraphID: e.graphID, PeerIID: peerIID, TargetID: sessionID, Detail: kind})
		var me *errors.MeshError
		if m, ok := cause.(*errors.MeshError); ok {
			me = m
		} else {
			me = errors.NewStoreError(kind).WithCause(cause)
		}
		return stats, me
	}

	if err := transition(StateNegotiating); err != nil {
		return fail("invalid_transition", err)
	}
	localClock := e.st.GraphClock()
	peerHello, err := e.transport.Hello(ctx, peerIID, SyncHello{Version: ProtocolVersion, GraphID: e.graphID, LocalClock: localClock})
	if err != nil {
		return fail("negotiation_failed", errors.NewTransportError("hello exchange failed").WithCause(err))
	}
	if peerHello.Version != ProtocolVersion {
		return fail("protocol_mismatch", errors.NewProtocolError("peer sync protocol version mismatch"))
	}
	peerClock := peerHello.LocalClock

	useFull := e.shouldUseFull(localClock, peerClock, cfg)

	if useFull {
		if err := transition(StateFullTransfer); err != nil {
			return fail("invalid_transition", err)
		}
		scan := e.st.ScanFull()
		nodes, edges := splitScan(scan)
		local := SyncPayloadFull{Version: ProtocolVersion, GraphID: e.graphID, Nodes: nodes, Edges: edges, Clock: localClock}
		remote, err := e.transport.Full(ctx, peerIID, local)
		if err != nil {
			return fail("transfer_failed", errors.NewTransportError("full transfer failed").WithCause(err))
		}
		if err := transition(StateApplying); err != nil {
			return fail("invalid_transition", err)
		}
		if err := e.applyFull(remote, stats); err != nil {
			return fail("apply_failed", err)
		}
		stats.NodesSent, stats.EdgesSent = len(nodes), len(edges)
		peerClock = remote.Clock
	} else {
		if err := transition(StateIncrementalTransfer); err != nil {
			return fail("invalid_transition", err)
		}
		changelog := e.st.ScanChangelogSince(peerClock)
		nodes, edges := e.materializeChangelog(changelog)
		local := SyncPayloadDelta{Version: ProtocolVersion, GraphID: e.graphID, ChangelogSince: changelog, Nodes: nodes, Edges: edges, Clock: localClock}
		remote, err := e.transport.Delta(ctx, peerIID, local)
		if err != nil {
			return fail("transfer_failed", errors.NewTransportError("incremental transfer failed").WithCause(err))
		}
		if err := transition(StateApplying); err != nil {
			return fail("invalid_transition", err)
		}
		if err := e.applyDelta(remote, stats); err != nil {
			return fail("apply_failed", err)
		}
		stats.NodesSent, stats.EdgesSent = len(nodes), len(edges)
		peerClock = remote.Clock
	}

	if err := transition(StateFinalizing); err != nil {
		return fail("invalid_transition", err)
	}
	e.st.MergeGraphClock(peerClock)
	finalClock := e.st.GraphClock()
	if err := e.transport.Ack(ctx, peerIID, SyncAck{Version: ProtocolVersion, GraphID: e.graphID, FinalClock: finalClock}); err != nil {
		return fail("ack_failed", errors.NewTransportError("ack delivery failed").WithCause(err))
	}

	stats.Outcome = graph.SyncSucceeded
	stats.EndedAt = time.Now()
	stats.WallTime = stats.EndedAt.Sub(started)
	if err := e.st.RecordSyncStats(sessionID, *stats); err != nil {
		return fail("stats_record_failed", err)
	}

	if err := transition(StateIdle); err != nil {
		return fail("invalid_transition", err)
	}
	e.recorder.LogEvent(audit.Event{EventType: audit.EventTypeSyncSucceeded, GraphID: e.graphID, PeerIID: peerIID, TargetID: sessionID})
	return stats, nil
}

func (e *Engine) tryClaim(peerIID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active[peerIID] {
		return false
	}
	e.active[peerIID] = true
	return true
}

func (e *Engine) release(peerIID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.active, peerIID)
}

// shouldUseFull implements the negotiation rule of spec.md §4.4: empty
// clock on either side, a changed-id count over incremental_threshold *
// node_count, or a peer clock that does not dominate the oldest retained
// changelog entry (the peer predates or diverges from the retained
// window) all force a full transfer.
func (e *Engine) shouldUseFull(localClock, peerClock vectorclock.Clock, cfg config.SyncConfig) bool {
	if localClock.IsEmpty() || peerClock.IsEmpty() {
		return true
	}
	if oldest, ok := e.st.OldestChangelogEntry(); ok {
		if !vectorclock.Dominates(peerClock, oldest.ClockAtChange) {
			return true
		}
	}
	changed := e.st.ScanChangelogSince(peerClock)
	distinct := make(map[string]bool, len(changed))
	for _, c := range changed {
		distinct[fmt.Sprintf("%s:%s", c.TargetKind, c.TargetID)] = true
	}
	nodeCount := e.st.NodeCount()
	if nodeCount == 0 {
		return len(distinct) > 0
	}
	return float64(len(distinct)) > cfg.Strategy.IncrementalThreshold*float64(nodeCount)
}

func splitScan(results []store.ScanResult) ([]graph.Node, []graph.Edge) {
	nodes := make([]graph.Node, 0)
	edges := make([]graph.Edge, 0)
	for _, r := range results {
		if r.Kind == graph.KindNode {
			nodes = append(nodes, *r.Node)
		} else {
			edges = append(edges, *r.Edge)
		}
	}
	return nodes, edges
}

// materializeChangelog resolves each distinct changed target id in
// entries to its current record (live or tombstoned), for inclusion in
// an outgoing delta payload.
func (e *Engine) materializeChangelog(entries []graph.ChangelogEntry) ([]graph.Node, []graph.Edge) {
	seenNode := make(map[string]bool)
	seenEdge := make(map[string]bool)
	nodes := make([]graph.Node, 0)
	edges := make([]graph.Edge, 0)
	for _, c := range entries {
		switch c.TargetKind {
		case graph.KindNode:
			if seenNode[c.TargetID] {
				continue
			}
			seenNode[c.TargetID] = true
			if n, ok := e.st.GetNodeAny(c.TargetID); ok {
				nodes = append(nodes, *n)
			}
		case graph.KindEdge:
			if seenEdge[c.TargetID] {
				continue
			}
			seenEdge[c.TargetID] = true
			if ed, ok := e.st.GetEdgeAny(c.TargetID); ok {
				edges = append(edges, *ed)
			}
		}
	}
	return nodes, edges
}

// applyFull applies a full payload: nodes before edges, tombstones
// before live upserts of the same id, resolving each record through the
// pure resolver and writing through the Store.
func (e *Engine) applyFull(payload SyncPayloadFull, stats *graph.SyncStats) error {
	nodes := append([]graph.Node(nil), payload.Nodes...)
	sortTombstonesFirst(nodes)
	for i := range nodes {
		if err := e.applyRemoteNode(&nodes[i], stats); err != nil {
			return err
		}
	}
	pending := e.quarantineEdges(payload.Edges)
	edges := append([]graph.Edge(nil), pending...)
	sortEdgeTombstonesFirst(edges)
	for i := range edges {
		if err := e.applyRemoteEdge(&edges[i], stats); err != nil {
			return err
		}
	}
	stats.NodesReceived = len(payload.Nodes)
	stats.EdgesReceived = len(payload.Edges)
	return nil
}

// applyDelta applies an incremental payload using the same ordering
// rules as applyFull.
func (e *Engine) applyDelta(payload SyncPayloadDelta, stats *graph.SyncStats) error {
	nodes := append([]graph.Node(nil), payload.Nodes...)
	sortTombstonesFirst(nodes)
	for i := range nodes {
		if err := e.applyRemoteNode(&nodes[i], stats); err != nil {
			return err
		}
	}
	pending := e.quarantineEdges(payload.Edges)
	edges := append([]graph.Edge(nil), pending...)
	sortEdgeTombstonesFirst(edges)
	for i := range edges {
		if err := e.applyRemoteEdge(&edges[i], stats); err != nil {
			return err
		}
	}
	stats.NodesReceived = len(payload.Nodes)
	stats.EdgesReceived = len(payload.Edges)
	return nil
}

// quarantineEdges discards edges whose endpoints are not present
// locally (not yet arrived in this or an earlier session), per spec.md
// §4.4's "discard any still-dangling" rule at end-of-payload.
func (e *Engine) quarantineEdges(edges []graph.Edge) []graph.Edge {
	out := make([]graph.Edge, 0, len(edges))
	for _, ed := range edges {
		if _, ok := e.st.GetNodeAny(ed.SourceID); !ok {
			log.Warn("discarding dangling edge, source not found", "edge_id", ed.EdgeID, "source_id", ed.SourceID)
			continue
		}
		if _, ok := e.st.GetNodeAny(ed.TargetID); !ok {
			log.Warn("discarding dangling edge, target not found", "edge_id", ed.EdgeID, "target_id", ed.TargetID)
			continue
		}
		out = append(out, ed)
	}
	return out
}

func sortTombstonesFirst(nodes []graph.Node) {
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].Tombstone && !nodes[j].Tombstone })
}

func sortEdgeTombstonesFirst(edges []graph.Edge) {
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].Tombstone && !edges[j].Tombstone })
}

func (e *Engine) applyRemoteNode(remote *graph.Node, stats *graph.SyncStats) error {
	local, _ := e.st.GetNodeAny(remote.NodeID)
	decision := resolver.ResolveNode(local, remote, e.cfg().ConflictResolution, e.collator)
	stats.ConflictsByOutcome[decision.Outcome]++

	switch decision.Outcome {
	case graph.OutcomeAcceptRemote:
		return e.writeNode(remote)
	case graph.OutcomeMerged:
		stats.NodesMerged++
		e.recorder.LogEvent(audit.Event{EventType: audit.EventTypeConflictResolved, GraphID: e.graphID, TargetID: remote.NodeID, Detail: "node merged"})
		return e.writeNode(decision.MergedNode)
	case graph.OutcomeKeepLocal:
		return nil
	case graph.OutcomeRequiresManualReview:
		log.Warn("node conflict requires manual review", "node_id", remote.NodeID)
		e.recorder.LogEvent(audit.Event{EventType: audit.EventTypeConflictManualReview, GraphID: e.graphID, TargetID: remote.NodeID})
		return nil
	default:
		return nil
	}
}

func (e *Engine) applyRemoteEdge(remote *graph.Edge, stats *graph.SyncStats) error {
	local, _ := e.st.GetEdgeAny(remote.EdgeID)
	decision := resolver.ResolveEdge(local, remote, e.cfg().ConflictResolution, e.collator)
	stats.ConflictsByOutcome[decision.Outcome]++

	switch decision.Outcome {
	case graph.OutcomeAcceptRemote:
		return e.writeEdge(remote)
	case graph.OutcomeMerged:
		stats.EdgesMerged++
		e.recorder.LogEvent(audit.Event{EventType: audit.EventTypeConflictResolved, GraphID: e.graphID, TargetID: remote.EdgeID, Detail: "edge merged"})
		return e.writeEdge(decision.MergedEdge)
	case graph.OutcomeKeepLocal:
		return nil
	case graph.OutcomeRequiresManualReview:
		log.Warn("edge conflict requires manual review", "edge_id", remote.EdgeID)
		e.recorder.LogEvent(audit.Event{EventType: audit.EventTypeConflictManualReview, GraphID: e.graphID, TargetID: remote.EdgeID})
		return nil
	default:
		return nil
	}
}

func (e *Engine) writeNode(n *graph.Node) error {
	if n.Tombstone {
		return e.st.TombstoneNode(n.NodeID, n.Clock)
	}
	return e.st.UpsertNode(n)
}

func (e *Engine) writeEdge(ed *graph.Edge) error {
	if ed.Tombstone {
		return e.st.TombstoneEdge(ed.EdgeID, ed.Clock)
	}
	return e.st.UpsertEdge(ed)
}
