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
Package bus implements the mesh message bus (spec.md §4.5): a typed
envelope delivered at-least-once between instances, deduplicated by
message_id at the recipient, queued per-recipient in a bounded
drop-oldest FIFO, and purged past a retention window.

Routing here is local: an instance's Bus holds the inbox for that
instance. Cross-instance transport is the caller's responsibility (see
internal/httpapi), mirroring the teacher's MultiplexConn, which also
separates framing/queuing (this package) from the underlying connection
(the transport).
*/
package bus

import (
	"sync"
	"time"

	"meshgraph/internal/logging"
)

// Kind is the category of a bus envelope, per spec.md §4.5's table.
type Kind string

const (
	KindQuery           Kind = "Query"
	KindResponse        Kind = "Response"
	KindNotification    Kind = "Notification"
	KindTaskDelegation  Kind = "TaskDelegation"
	KindTaskResult      Kind = "TaskResult"
	KindSyncHello        Kind = "SyncHello"
	KindSyncPayloadFull  Kind = "SyncPayloadFull"
	KindSyncPayloadDelta Kind = "SyncPayloadDelta"
	KindSyncAck          Kind = "SyncAck"
	KindSyncFailed       Kind = "SyncFailed"
)

// Broadcast is the sentinel DestIID meaning "deliver to every instance".
const Broadcast = ""

// Envelope is one bus message.
type Envelope struct {
	MessageID string          `json:"message_id"`
	SourceIID string          `json:"source_iid"`
	DestIID   string          `json:"dest_iid,omitempty"`
	Kind      Kind            `json:"kind"`
	Payload   []byte          `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

const (
	defaultQueueCapacity = 1000
	defaultRetention     = time.Hour
)

type queuedEnvelope struct {
	env      Envelope
	enqueued time.Time
	acked    bool
}

// Bus is one instance's local inbox: a bounded per-recipient FIFO with
// at-least-once delivery semantics and message_id dedup.
type Bus struct {
	mu sync.Mutex

	queueCapacity int
	retention     time.Duration

	// queue is a single append-only slice shared across all sources. FIFO
	// order for a given source falls out naturally from filtering it in
	// insertion order — no per-source index is needed.
	queue []*queuedEnvelope
	seen  map[string]bool

	log *logging.Logger
}

// New creates a Bus with spec.md §4.5's defaults (1000-message bounded
// queue, 3600s retention). Zero values select the defaults.
func New(queueCapacity int, retention time.Duration) *Bus {
	if queueCapacity <= 0 {
		queueCapacity = defaultQueueCapacity
	}
	if retention <= 0 {
		retention = defaultRetention
	}
	return &Bus{
		queueCapacity: queueCapacity,
		retention:     retention,
		seen:          make(map[string]bool),
		log:           logging.NewLogger("bus"),
	}
}

// Publish enqueues env for local delivery. A duplicate message_id
// (already seen, whether or not still queued) is accepted idempotently
// per the at-least-once contract and does not requeue. When the queue is
// at capacity, the oldest entry is dropped with a logged warning.
func (b *Bus) Publish(env Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.seen[env.MessageID] {
		return
	}
	b.seen[env.MessageID] = true

	if len(b.queue) >= b.queueCapacity {
		dropped := b.queue[0]
		b.queue = b.queue[1:]
		b.log.Warn("queue full, dropping oldest message", "dropped_message_id", dropped.env.MessageID, "capacity", b.queueCapacity)
	}
	b.queue = append(b.queue, &queuedEnvelope{env: env, enqueued: time.Now()})
}

// Pending returns the unacknowledged envelopes addressed to dest (or
// broadcast), preserving per-source FIFO order (spec.md §4.5).
func (b *Bus) Pending(dest string) []Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Envelope, 0)
	for _, qe := range b.queue {
		if qe.acked {
			continue
		}
		if qe.env.DestIID == dest || qe.env.DestIID == Broadcast {
			out = append(out, qe.env)
		}
	}
	return out
}

// Ack marks the given message ids acknowledged, returning how many were
// found and newly acked. Acked messages remain queued (for retention
// bookkeeping) until Purge removes them.
func (b *Bus) Ack(messageIDs []string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	want := make(map[string]bool, len(messageIDs))
	for _, id := range messageIDs {
		want[id] = true
	}
	acked := 0
	for _, qe := range b.queue {
		if want[qe.env.MessageID] && !qe.acked {
			qe.acked = true
			acked++
		}
	}
	return acked
}

// Purge removes envelopes older than the retention window, whether or
// not they were acknowledged (an unacknowledged message ages out rather
// than being retried forever). Returns the count removed.
func (b *Bus) Purge(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := now.Add(-b.retention)
	kept := b.queue[:0:0]
	removed := 0
	for _, qe := range b.queue {
		if qe.enqueued.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, qe)
	}
	b.queue = kept
	return removed
}

// Len returns the current queue depth, including acknowledged-but-not-
// yet-purged entries.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}
