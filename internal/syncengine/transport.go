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

import "context"

// Transport abstracts the request/reply exchange with a peer instance
// over the mesh message bus, so the engine's state machine can be tested
// without a real network. A concrete implementation (internal/httpapi)
// sends each request as a bus envelope of the matching Kind and blocks
// for the peer's envelope in reply, returning an error on failure or
// timeout, which the engine wraps as a TransportError.
type Transport interface {
	// Hello exchanges SyncHello so both sides learn the other's clock.
	Hello(ctx context.Context, peerIID string, hello SyncHello) (SyncHello, error)

	// Full exchanges a full snapshot in both directions.
	Full(ctx context.Context, peerIID string, payload SyncPayloadFull) (SyncPayloadFull, error)

	// Delta exchanges an incremental changelog-based payload in both
	// directions.
	Delta(ctx context.Context, peerIID string, payload SyncPayloadDelta) (SyncPayloadDelta, error)

	// Ack notifies the peer the session finished successfully.
	Ack(ctx context.Context, peerIID string, ack SyncAck) error

	// Failed notifies the peer the session ended in failure.
	Failed(ctx context.Context, peerIID string, failed SyncFailed) error
}
