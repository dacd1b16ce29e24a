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
Package resolver implements the pure conflict-resolution function of
spec.md §4.3: given a local and a remote version of the same node or
edge, decide whether to accept the remote version, keep the local one,
merge them, or escalate for manual review. The resolver performs no I/O;
all side effects (logging, storage) are the caller's responsibility.
*/
package resolver

import (
	"time"

	"meshgraph/internal/config"
	"meshgraph/internal/graph"
	"meshgraph/internal/vectorclock"
)

// Decision is the full result of resolving one pair of versions.
type Decision struct {
	Outcome graph.ConflictOutcome
	// MergedNode/MergedEdge are populated only when Outcome is Merged,
	// the one matching the kind being resolved.
	MergedNode *graph.Node
	MergedEdge *graph.Edge
}

// baseOutcome applies the first seven rows of the decision table, which
// are identical for nodes and edges and don't require semantic merge.
// It returns (outcome, true) when a row matched and no semantic merge is
// needed; (_, false) means the caller must attempt a semantic merge
// (rows 8/9).
func baseOutcome(lPresent, rPresent, lTomb, rTomb bool, lClock, rClock vectorclock.Clock) (graph.ConflictOutcome, bool) {
	switch {
	case !lPresent && rPresent && !rTomb:
		// Case 1
		return graph.OutcomeAcceptRemote, true
	case !rPresent && lPresent:
		// Case 2
		return graph.OutcomeKeepLocal, true
	}

	cmp := vectorclock.Compare(lClock, rClock)

	if lTomb {
		// Case 3
		if cmp == vectorclock.Equal || cmp == vectorclock.After {
			return graph.OutcomeKeepLocal, true
		}
	}
	if rTomb {
		// Case 4: R wins iff R.clock dominates-or-equals L.clock, i.e.
		// compare(L.clock, R.clock) is Equal or Before.
		if cmp == vectorclock.Equal || cmp == vectorclock.Before {
			return graph.OutcomeAcceptRemote, true
		}
	}

	switch cmp {
	case vectorclock.Before:
		// Case 5
		return graph.OutcomeAcceptRemote, true
	case vectorclock.After:
		// Case 6
		return graph.OutcomeKeepLocal, true
	case vectorclock.Equal:
		// Case 7
		return graph.OutcomeKeepLocal, true
	}

	// Concurrent: caller must attempt semantic merge (rows 8/9).
	return graph.ConflictOutcome(-1), false
}

// ResolveNode resolves a local/remote pair of node versions. Either may
// be nil (absent).
func ResolveNode(local, remote *graph.Node, cfg config.ConflictResolutionConfig, collator Collator) Decision {
	lPresent, rPresent := local != nil, remote != nil
	var lClock, rClock vectorclock.Clock
	var lTomb, rTomb bool
	if lPresent {
		lClock, lTomb = local.Clock, local.Tombstone
	}
	if rPresent {
		rClock, rTomb = remote.Clock, remote.Tombstone
	}

	if outcome, matched := baseOutcome(lPresent, rPresent, lTomb, rTomb, lClock, rClock); matched {
		return Decision{Outcome: outcome}
	}

	if !lPresent || !rPresent {
		return Decision{Outcome: graph.OutcomeRequiresManualReview}
	}

	if semanticMergeApplicableNode(local, remote) {
		merged := mergeNodes(local, remote, cfg, collator)
		return Decision{Outcome: graph.OutcomeMerged, MergedNode: merged}
	}
	return Decision{Outcome: graph.OutcomeRequiresManualReview}
}

// ResolveEdge resolves a local/remote pair of edge versions. Either may
// be nil (absent).
func ResolveEdge(local, remote *graph.Edge, cfg config.ConflictResolutionConfig, collator Collator) Decision {
	lPresent, rPresent := local != nil, remote != nil
	var lClock, rClock vectorclock.Clock
	var lTomb, rTomb bool
	if lPresent {
		lClock, lTomb = local.Clock, local.Tombstone
	}
	if rPresent {
		rClock, rTomb = remote.Clock, remote.Tombstone
	}

	if outcome, matched := baseOutcome(lPresent, rPresent, lTomb, rTomb, lClock, rClock); matched {
		return Decision{Outcome: outcome}
	}

	if !lPresent || !rPresent {
		return Decision{Outcome: graph.OutcomeRequiresManualReview}
	}

	if semanticMergeApplicableEdge(local, remote) {
		merged := mergeEdges(local, remote, cfg, collator)
		return Decision{Outcome: graph.OutcomeMerged, MergedEdge: merged}
	}
	return Decision{Outcome: graph.OutcomeRequiresManualReview}
}

func semanticMergeApplicableNode(l, r *graph.Node) bool {
	return l.NodeID == r.NodeID && l.NodeType == r.NodeType
}

func semanticMergeApplicableEdge(l, r *graph.Edge) bool {
	return l.EdgeID == r.EdgeID && l.EdgeType == r.EdgeType &&
		l.SourceID == r.SourceID && l.TargetID == r.TargetID
}

// resolveTombstone decides the merged tombstone flag when exactly one (or
// both) side(s) of a Concurrent pair is tombstoned. Per spec.md §4.3,
// tombstone = false iff neither side is tombstoned. The one exception is
// last_write_wins: when only one side is tombstoned (§4.3 scenario 2),
// that strategy breaks the tie using updated_at as a deterministic
// (non-causal) signal.
func resolveTombstone(lTomb, rTomb bool, lUpdated, rUpdated time.Time, strategy config.ConflictStrategy) bool {
	if lTomb && rTomb {
		return true
	}
	if !lTomb && !rTomb {
		return false
	}
	if strategy == config.StrategyLastWriteWins {
		if lTomb {
			return !rUpdated.After(lUpdated)
		}
		return !lUpdated.After(rUpdated)
	}
	// merge/manual default: a one-sided tombstone is preserved for
	// suppression and wins over a concurrent live edit.
	return true
}

func mergeNodes(l, r *graph.Node, cfg config.ConflictResolutionConfig, collator Collator) *graph.Node {
	merged := *l
	merged.Clock = l.Clock.Merge(r.Clock)
	merged.Tombstone = resolveTombstone(l.Tombstone, r.Tombstone, l.UpdatedAt, r.UpdatedAt, cfg.Strategy)
	if !merged.Tombstone {
		merged.Properties = mergeProperties(l.Properties, r.Properties, cfg, collator)
		merged.Label = tieBreakString(l.Label, r.Label, collator)
	}
	merged.UpdatedAt = laterOf(l.UpdatedAt, r.UpdatedAt)
	return &merged
}

func mergeEdges(l, r *graph.Edge, cfg config.ConflictResolutionConfig, collator Collator) *graph.Edge {
	merged := *l
	merged.Clock = l.Clock.Merge(r.Clock)
	merged.Tombstone = resolveTombstone(l.Tombstone, r.Tombstone, l.UpdatedAt, r.UpdatedAt, cfg.Strategy)
	if !merged.Tombstone {
		merged.Properties = mergeProperties(l.Properties, r.Properties, cfg, collator)
		if l.Weight != r.Weight {
			merged.Weight = (l.Weight + r.Weight) / 2
		}
	}
	merged.UpdatedAt = laterOf(l.UpdatedAt, r.UpdatedAt)
	return &merged
}

// mergeProperties applies the key-wise merge rule from spec.md §4.3: take
// the present side when only one has the key, take the shared value when
// equal, and otherwise defer to the tie-break in resolveProperty. The
// configured conflict strategy does not change this tie-break; it only
// affects tombstone precedence (see resolveTombstone).
func mergeProperties(l, r graph.PropertySet, cfg config.ConflictResolutionConfig, collator Collator) graph.PropertySet {
	out := graph.NewPropertySet()
	seen := make(map[string]bool)

	for _, k := range l.Keys() {
		lv, _ := l.Get(k)
		if rv, ok := r.Get(k); ok {
			out.Set(k, resolveProperty(lv, rv, cfg, collator))
		} else {
			out.Set(k, lv)
		}
		seen[k] = true
	}
	for _, k := range r.Keys() {
		if seen[k] {
			continue
		}
		rv, _ := r.Get(k)
		out.Set(k, rv)
	}
	return out
}

func resolveProperty(l, r graph.PropertyValue, cfg config.ConflictResolutionConfig, collator Collator) graph.PropertyValue {
	if l.Equal(r) {
		return l
	}
	_ = cfg // strategy only changes tombstone precedence, not property tie-break
	ls, lok := l.AsString()
	rs, rok := r.AsString()
	if lok && rok {
		if collator.Greater(ls, rs) {
			return l
		}
		return r
	}
	// Non-string divergent values: keep local, which is deterministic
	// given a fixed local/remote assignment. (Edge weight is averaged
	// separately in mergeEdges; the string label is tie-broken in
	// mergeNodes.)
	return l
}

func tieBreakString(l, r string, collator Collator) string {
	if l == r {
		return l
	}
	if collator.Greater(l, r) {
		return l
	}
	return r
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
