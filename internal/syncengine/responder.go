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

package syncengine

import (
	"fmt"

	"meshgraph/internal/errors"
	"meshgraph/internal/graph"
)

// RespondHello answers an incoming SyncHello with this instance's own
// graph clock. It is the passive counterpart of runSession's own Hello
// call: every sync session has one side initiating (Engine.Sync) and one
// side responding (these Respond* methods), both against the same Store.
func (e *Engine) RespondHello(hello SyncHello) (SyncHello, error) {
	if hello.Version != ProtocolVersion {
		return SyncHello{}, errors.NewProtocolError(fmt.Sprintf("unsupported sync protocol version %d", hello.Version))
	}
	return SyncHello{Version: ProtocolVersion, GraphID: e.graphID, LocalClock: e.st.GraphClock()}, nil
}

// RespondFull applies the initiator's full snapshot and answers with this
// instance's own full snapshot, taken after the apply so both sides
// converge to the same union in one round trip.
func (e *Engine) RespondFull(payload SyncPayloadFull) (SyncPayloadFull, error) {
	stats := &graph.SyncStats{ConflictsByOutcome: make(map[graph.ConflictOutcome]int)}
	if err := e.applyFull(payload, stats); err != nil {
		return SyncPayloadFull{}, err
	}
	e.st.MergeGraphClock(payload.Clock)

	scan := e.st.ScanFull()
	nodes, edges := splitScan(scan)
	return SyncPayloadFull{Version: ProtocolVersion, GraphID: e.graphID, Nodes: nodes, Edges: edges, Clock: e.st.GraphClock()}, nil
}

// RespondDelta applies the initiator's incremental payload and answers
// with this instance's own delta relative to the clock the initiator
// just sent.
func (e *Engine) RespondDelta(payload SyncPayloadDelta) (SyncPayloadDelta, error) {
	stats := &graph.SyncStats{ConflictsByOutcome: make(map[graph.ConflictOutcome]int)}
	if err := e.applyDelta(payload, stats); err != nil {
		return SyncPayloadDelta{}, err
	}
	e.st.MergeGraphClock(payload.Clock)

	changelog := e.st.ScanChangelogSince(payload.Clock)
	nodes, edges := e.materializeChangelog(changelog)
	return SyncPayloadDelta{Version: ProtocolVersion, GraphID: e.graphID, ChangelogSince: changelog, Nodes: nodes, Edges: edges, Clock: e.st.GraphClock()}, nil
}

// RespondAck records that the initiator finished its side of the session
// successfully, merging its final clock into ours for good measure (it
// should already be a subset of what we merged in RespondFull/Delta).
func (e *Engine) RespondAck(ack SyncAck) error {
	e.st.MergeGraphClock(ack.FinalClock)
	return nil
}

// RespondFailed records that the initiator's session failed after it had
// already sent us data; no rollback is needed since applied records are
// resolved independently and are safe to keep.
func (e *Engine) RespondFailed(failed SyncFailed) error {
	log.Warn("peer reported sync session failure", "kind", failed.Kind, "detail", failed.Detail)
	return nil
}
