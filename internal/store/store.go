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
Package store implements the Graph Store (spec.md §4.1): durable
persistence of nodes, edges, the append-only changelog, tombstones and
the per-graph aggregate vector clock, plus an in-memory history of
per-session sync statistics.

Concurrency follows the single-writer-per-graph discipline the spec
allows: one RWMutex serializes mutations while readers (GetNode,
ScanFull, ScanChangelogSince) proceed concurrently with each other.
Every node/edge upsert and tombstone appends a WAL record before
updating in-memory state, so a crash between the two always leaves a
replayable log; the changelog and graph clock are rebuilt from those
records on replay. MergeGraphClock, RecordSyncStats and GC write
nothing to the WAL.
*/
package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"meshgraph/internal/errors"
	"meshgraph/internal/graph"
	"meshgraph/internal/logging"
	"meshgraph/internal/vectorclock"
)

var log = logging.NewLogger("store")

// Store is the Graph Store for a single graph.
type Store struct {
	mu sync.RWMutex

	graphID string
	iid     string
	wal     *WAL

	nodes map[string]*graph.Node
	edges map[string]*graph.Edge

	changelog []graph.ChangelogEntry
	sequence  uint64

	clock vectorclock.Clock

	syncStats []graph.SyncStats
}

// Open creates a Store for graphID, owned by instance iid, durable to the
// WAL at walPath (pass "" for an in-memory-only store). Existing WAL
// contents are replayed to rebuild in-memory state before returning.
func Open(graphID, iid, walPath string) (*Store, error) {
	w, err := OpenWAL(walPath)
	if err != nil {
		return nil, errors.NewStoreError("open WAL").WithCause(err)
	}
	s := &Store{
		graphID: graphID,
		iid:     iid,
		wal:     w,
		nodes:   make(map[string]*graph.Node),
		edges:   make(map[string]*graph.Edge),
		clock:   vectorclock.New(),
	}
	if err := s.replay(); err != nil {
		return nil, errors.NewStoreError("replay WAL").WithCause(err)
	}
	return s, nil
}

func (s *Store) replay() error {
	return s.wal.Replay(func(rec WALRecord) error {
		switch rec.Type {
		case WALUpsertNode:
			var n graph.Node
			if err := json.Unmarshal(rec.Payload, &n); err != nil {
				return err
			}
			s.applyUpsertNode(&n)
		case WALUpsertEdge:
			var e graph.Edge
			if err := json.Unmarshal(rec.Payload, &e); err != nil {
				return err
			}
			s.applyUpsertEdge(&e)
		case WALTombstoneNode:
			var t tombstoneRecord
			if err := json.Unmarshal(rec.Payload, &t); err != nil {
				return err
			}
			s.applyTombstoneNode(t.ID, t.Clock)
		case WALTombstoneEdge:
			var t tombstoneRecord
			if err := json.Unmarshal(rec.Payload, &t); err != nil {
				return err
			}
			s.applyTombstoneEdge(t.ID, t.Clock)
		}
		return nil
	})
}

type tombstoneRecord struct {
	ID    string            `json:"id"`
	Clock vectorclock.Clock `json:"clock"`
}

// UpsertNode writes node, appending a changelog entry and merging its
// clock into the graph's aggregate clock.
func (s *Store) UpsertNode(n *graph.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(n)
	if err != nil {
		return errors.NewStoreError("marshal node").WithCause(err)
	}
	if err := s.wal.Append(WALRecord{Type: WALUpsertNode, Payload: payload}); err != nil {
		return errors.NewStoreError("append WAL").WithCause(err)
	}
	s.applyUpsertNode(n)
	return nil
}

func (s *Store) applyUpsertNode(n *graph.Node) {
	cp := *n
	s.nodes[n.NodeID] = &cp
	s.clock = s.clock.Merge(n.Clock)
	s.appendChangelog(graph.KindNode, n.NodeID, graph.OpUpsert, n.Clock,
		graph.PayloadHash(graph.KindNode, n.NodeID, n.Properties, n.Tombstone))
}

// UpsertEdge writes edge, appending a changelog entry and merging its
// clock into the graph's aggregate clock.
func (s *Store) UpsertEdge(e *graph.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(e)
	if err != nil {
		return errors.NewStoreError("marshal edge").WithCause(err)
	}
	if err := s.wal.Append(WALRecord{Type: WALUpsertEdge, Payload: payload}); err != nil {
		return errors.NewStoreError("append WAL").WithCause(err)
	}
	s.applyUpsertEdge(e)
	return nil
}

func (s *Store) applyUpsertEdge(e *graph.Edge) {
	cp := *e
	s.edges[e.EdgeID] = &cp
	s.clock = s.clock.Merge(e.Clock)
	s.appendChangelog(graph.KindEdge, e.EdgeID, graph.OpUpsert, e.Clock,
		graph.PayloadHash(graph.KindEdge, e.EdgeID, e.Properties, e.Tombstone))
}

// TombstoneNode marks id deleted at clock. Idempotent: on a record that is
// already tombstoned, a call whose clock is not strictly After the
// record's clock (Equal, Before or Concurrent) is a no-op.
func (s *Store) TombstoneNode(id string, clock vectorclock.Clock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.nodes[id]; ok && existing.Tombstone {
		if vectorclock.Compare(clock, existing.Clock) != vectorclock.After {
			return nil
		}
	}
	payload, err := json.Marshal(tombstoneRecord{ID: id, Clock: clock})
	if err != nil {
		return errors.NewStoreError("marshal tombstone").WithCause(err)
	}
	if err := s.wal.Append(WALRecord{Type: WALTombstoneNode, Payload: payload}); err != nil {
		return errors.NewStoreError("append WAL").WithCause(err)
	}
	s.applyTombstoneNode(id, clock)
	return nil
}

func (s *Store) applyTombstoneNode(id string, clock vectorclock.Clock) {
	n, ok := s.nodes[id]
	if !ok {
		n = &graph.Node{NodeID: id, Clock: vectorclock.New(), CreatedAt: time.Now()}
		s.nodes[id] = n
	}
	n.Tombstone = true
	n.Clock = n.Clock.Merge(clock)
	n.UpdatedAt = time.Now()
	s.clock = s.clock.Merge(clock)
	s.appendChangelog(graph.KindNode, id, graph.OpDelete, n.Clock,
		graph.PayloadHash(graph.KindNode, id, n.Properties, true))
}

// TombstoneEdge marks id deleted at clock. Idempotent under the same rule
// as TombstoneNode.
func (s *Store) TombstoneEdge(id string, clock vectorclock.Clock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.edges[id]; ok && existing.Tombstone {
		if vectorclock.Compare(clock, existing.Clock) != vectorclock.After {
			return nil
		}
	}
	payload, err := json.Marshal(tombstoneRecord{ID: id, Clock: clock})
	if err != nil {
		return errors.NewStoreError("marshal tombstone").WithCause(err)
	}
	if err := s.wal.Append(WALRecord{Type: WALTombstoneEdge, Payload: payload}); err != nil {
		return errors.NewStoreError("append WAL").WithCause(err)
	}
	s.applyTombstoneEdge(id, clock)
	return nil
}

func (s *Store) applyTombstoneEdge(id string, clock vectorclock.Clock) {
	e, ok := s.edges[id]
	if !ok {
		e = &graph.Edge{EdgeID: id, Clock: vectorclock.New(), CreatedAt: time.Now()}
		s.edges[id] = e
	}
	e.Tombstone = true
	e.Clock = e.Clock.Merge(clock)
	e.UpdatedAt = time.Now()
	s.clock = s.clock.Merge(clock)
	s.appendChangelog(graph.KindEdge, id, graph.OpDelete, e.Clock,
		graph.PayloadHash(graph.KindEdge, id, e.Properties, true))
}

func (s *Store) appendChangelog(kind graph.TargetKind, targetID string, op graph.Operation, clock vectorclock.Clock, hash string) {
	s.sequence++
	s.changelog = append(s.changelog, graph.ChangelogEntry{
		Sequence:      s.sequence,
		IID:           s.iid,
		TargetKind:    kind,
		TargetID:      targetID,
		Operation:     op,
		ClockAtChange: clock,
		Timestamp:     time.Now(),
		PayloadHash:   hash,
	})
}

// GetNode returns the live node for id, or (nil, false) if absent or
// tombstoned.
func (s *Store) GetNode(id string) (*graph.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok || n.Tombstone {
		return nil, false
	}
	cp := *n
	return &cp, true
}

// GetEdge returns the live edge for id, or (nil, false) if absent or
// tombstoned.
func (s *Store) GetEdge(id string) (*graph.Edge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.edges[id]
	if !ok || e.Tombstone {
		return nil, false
	}
	cp := *e
	return &cp, true
}

// GetNodeAny returns the node for id regardless of tombstone state, for
// callers (the sync engine's resolver step, quarantine checks) that need
// to see tombstoned versions too.
func (s *Store) GetNodeAny(id string) (*graph.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, false
	}
	cp := *n
	return &cp, true
}

// GetEdgeAny returns the edge for id regardless of tombstone state.
func (s *Store) GetEdgeAny(id string) (*graph.Edge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.edges[id]
	if !ok {
		return nil, false
	}
	cp := *e
	return &cp, true
}

// MergeGraphClock merges c into the aggregate graph clock without
// touching any node/edge record, used by the sync engine to fold in a
// peer's final clock at session finalization.
func (s *Store) MergeGraphClock(c vectorclock.Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = s.clock.Merge(c)
}

// NodeCount returns the number of live nodes, used by the sync engine's
// incremental-vs-full threshold calculation.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, node := range s.nodes {
		if !node.Tombstone {
			n++
		}
	}
	return n
}

// OldestChangelogEntry returns the changelog entry with the smallest
// sequence still retained, or (zero, false) if the changelog is empty.
func (s *Store) OldestChangelogEntry() (graph.ChangelogEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.changelog) == 0 {
		return graph.ChangelogEntry{}, false
	}
	oldest := s.changelog[0]
	for _, e := range s.changelog[1:] {
		if e.Sequence < oldest.Sequence {
			oldest = e
		}
	}
	return oldest, true
}

// ScanResult is one record produced by ScanFull: exactly one of Node or
// Edge is populated, matching Kind.
type ScanResult struct {
	Kind graph.TargetKind
	Node *graph.Node
	Edge *graph.Edge
}

// ScanFull returns every live node then every live edge, ordered
// ascending by (kind, id), as the spec requires. The snapshot is taken
// under the read lock and then iterated outside it, so the result is a
// finite, restartable sequence as of the call.
func (s *Store) ScanFull() []ScanResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodeIDs := make([]string, 0, len(s.nodes))
	for id, n := range s.nodes {
		if !n.Tombstone {
			nodeIDs = append(nodeIDs, id)
		}
	}
	sort.Strings(nodeIDs)

	edgeIDs := make([]string, 0, len(s.edges))
	for id, e := range s.edges {
		if !e.Tombstone {
			edgeIDs = append(edgeIDs, id)
		}
	}
	sort.Strings(edgeIDs)

	out := make([]ScanResult, 0, len(nodeIDs)+len(edgeIDs))
	for _, id := range nodeIDs {
		cp := *s.nodes[id]
		out = append(out, ScanResult{Kind: graph.KindNode, Node: &cp})
	}
	for _, id := range edgeIDs {
		cp := *s.edges[id]
		out = append(out, ScanResult{Kind: graph.KindEdge, Edge: &cp})
	}
	return out
}

// ScanChangelogSince returns changelog entries whose ClockAtChange is not
// dominated by since, ordered ascending by Sequence.
func (s *Store) ScanChangelogSince(since vectorclock.Clock) []graph.ChangelogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]graph.ChangelogEntry, 0)
	for _, e := range s.changelog {
		if !vectorclock.Dominates(since, e.ClockAtChange) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

// GraphClock returns the current aggregate vector clock for the graph.
func (s *Store) GraphClock() vectorclock.Clock {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clock
}

// RecordSyncStats appends a session's sync statistics to the in-memory
// history. The statistics are not written to the WAL, so the history
// does not survive a restart.
func (s *Store) RecordSyncStats(sessionID string, stats graph.SyncStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats.SessionID = sessionID
	s.syncStats = append(s.syncStats, stats)
	log.Info("sync stats recorded", "session_id", sessionID, "peer_iid", stats.PeerIID, "outcome", stats.Outcome)
	return nil
}

// SyncStatsHistory returns a copy of all recorded sync statistics, most
// recent last.
func (s *Store) SyncStatsHistory() []graph.SyncStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]graph.SyncStats, len(s.syncStats))
	copy(out, s.syncStats)
	return out
}

// GC removes changelog entries whose timestamp is older than now minus
// retention, then removes tombstoned records whose UpdatedAt is older
// than that cutoff, except that a tombstoned record is kept while any
// changelog entry for the same target survives the sweep. It returns the
// number of changelog entries and records removed.
func (s *Store) GC(now time.Time, retention time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-retention)

	kept := make([]graph.ChangelogEntry, 0, len(s.changelog))
	removed := 0
	for _, e := range s.changelog {
		if e.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.changelog = kept

	survivingTargets := make(map[string]bool)
	for _, e := range kept {
		survivingTargets[targetKey(e.TargetKind, e.TargetID)] = true
	}

	for id, n := range s.nodes {
		if n.Tombstone && n.UpdatedAt.Before(cutoff) && !survivingTargets[targetKey(graph.KindNode, id)] {
			delete(s.nodes, id)
			removed++
		}
	}
	for id, e := range s.edges {
		if e.Tombstone && e.UpdatedAt.Before(cutoff) && !survivingTargets[targetKey(graph.KindEdge, id)] {
			delete(s.edges, id)
			removed++
		}
	}
	if removed > 0 {
		log.Info("gc swept records", "graph_id", s.graphID, "removed", removed)
	}
	return removed
}

func targetKey(kind graph.TargetKind, id string) string {
	return fmt.Sprintf("%s:%s", kind, id)
}

// Close releases the underlying WAL file handle.
func (s *Store) Close() error {
	return s.wal.Close()
}
