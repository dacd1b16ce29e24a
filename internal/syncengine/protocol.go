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
Sync session wire payloads. spec.md §6 mandates JSON envelopes rather
than the teacher's binary TLV protocol.go framing, so these are plain
JSON-tagged structs rather than a byte-level header — but the version
field and its mismatch handling are carried over directly from
protocol.go's Header.Version / ErrInvalidVersion, and MaxPayloadSize
plays the same role as protocol.go's MaxMessageSize.
*/
package syncengine

import (
	"meshgraph/internal/graph"
	"meshgraph/internal/vectorclock"
)

// ProtocolVersion is the sync wire protocol version this engine speaks.
// A peer on a different version fails negotiation with a ProtocolError,
// mirroring protocol.go's ErrInvalidVersion check.
const ProtocolVersion = 1

// MaxPayloadSize names a size bound for a single SyncPayload message,
// playing the role of protocol.go's MaxMessageSize for the JSON wire
// format. Neither the engine nor the HTTP transport checks payloads
// against it.
const MaxPayloadSize = 16 * 1024 * 1024

// SyncHello opens a session: the initiator's view of the graph clock.
type SyncHello struct {
	Version    int               `json:"version"`
	GraphID    string            `json:"graph_id"`
	LocalClock vectorclock.Clock `json:"local_clock"`
}

// SyncPayloadFull carries a complete snapshot of one side's live nodes
// and edges, for the FullTransfer branch. GraphID is repeated on every
// message (not just Hello) so a stateless dispatcher sitting between the
// bus and the per-graph Engine can route each message without tracking
// session state itself.
type SyncPayloadFull struct {
	Version int               `json:"version"`
	GraphID string            `json:"graph_id"`
	Nodes   []graph.Node      `json:"nodes"`
	Edges   []graph.Edge      `json:"edges"`
	Clock   vectorclock.Clock `json:"clock"`
}

// SyncPayloadDelta carries the changelog entries since the peer's
// last-seen clock and the current records (live or tombstoned) they
// reference, for the IncrementalTransfer branch.
type SyncPayloadDelta struct {
	Version        int                    `json:"version"`
	GraphID        string                 `json:"graph_id"`
	ChangelogSince []graph.ChangelogEntry `json:"changelog_since"`
	Nodes          []graph.Node           `json:"nodes"`
	Edges          []graph.Edge           `json:"edges"`
	Clock          vectorclock.Clock      `json:"clock"`
}

// SyncAck finalizes a successful session.
type SyncAck struct {
	Version    int               `json:"version"`
	GraphID    string            `json:"graph_id"`
	FinalClock vectorclock.Clock `json:"final_clock"`
}

// SyncFailed reports a session-ending failure to the peer.
type SyncFailed struct {
	Version int    `json:"version"`
	GraphID string `json:"graph_id"`
	Kind    string `json:"kind"`
	Detail  string `json:"detail"`
}
