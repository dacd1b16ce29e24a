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

package httpapi

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"meshgraph/internal/bus"
	"meshgraph/internal/syncengine"
)

// SyncResponder is the passive side of a sync session: it applies an
// incoming payload to one graph's Store and answers with this instance's
// own state. *syncengine.Engine satisfies this directly.
type SyncResponder interface {
	RespondHello(syncengine.SyncHello) (syncengine.SyncHello, error)
	RespondFull(syncengine.SyncPayloadFull) (syncengine.SyncPayloadFull, error)
	RespondDelta(syncengine.SyncPayloadDelta) (syncengine.SyncPayloadDelta, error)
	RespondAck(syncengine.SyncAck) error
	RespondFailed(syncengine.SyncFailed) error
}

// Dispatcher drains an instance's own inbox for incoming sync-session
// envelopes, routes each to the Engine owning the named graph, and
// replies to the envelope's source over HTTP. It is the passive-side
// complement of Client: Client deposits RPCs into a peer's inbox and
// polls for the reply, Dispatcher is what empties that inbox on the
// peer's end and sends the reply back.
type Dispatcher struct {
	selfIID    string
	bus        *bus.Bus
	addresses  AddressBook
	responders func(graphID string) (SyncResponder, bool)
	client     *Client
	pollEvery  time.Duration
}

// NewDispatcher creates a Dispatcher. responders resolves a graph_id
// from an incoming payload to the Engine that owns it (an instance may
// host more than one graph).
func NewDispatcher(selfIID string, b *bus.Bus, addresses AddressBook, responders func(graphID string) (SyncResponder, bool)) *Dispatcher {
	return &Dispatcher{
		selfIID:    selfIID,
		bus:        b,
		addresses:  addresses,
		responders: responders,
		client:     NewClient(selfIID, addresses, b),
		pollEvery:  50 * time.Millisecond,
	}
}

// Run drains the inbox until ctx is done. It is meant to run for the
// lifetime of the daemon in its own goroutine.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.drainOnce(ctx)
		}
	}
}

func (d *Dispatcher) drainOnce(ctx context.Context) {
	for _, env := range d.bus.Pending(d.selfIID) {
		switch env.Kind {
		case bus.KindSyncHello, bus.KindSyncPayloadFull, bus.KindSyncPayloadDelta, bus.KindSyncAck, bus.KindSyncFailed:
			d.handle(ctx, env)
			d.bus.Ack([]string{env.MessageID})
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, env bus.Envelope) {
	switch env.Kind {
	case bus.KindSyncHello:
		var hello syncengine.SyncHello
		if json.Unmarshal(env.Payload, &hello) != nil {
			return
		}
		r, ok := d.responders(hello.GraphID)
		if !ok {
			log.Warn("sync hello for unknown graph", "graph_id", hello.GraphID, "peer", env.SourceIID)
			return
		}
		reply, err := r.RespondHello(hello)
		if err != nil {
			log.Error("failed to respond to sync hello", "err", err, "peer", env.SourceIID)
			return
		}
		d.reply(ctx, env.SourceIID, bus.KindSyncHello, reply)

	case bus.KindSyncPayloadFull:
		var payload syncengine.SyncPayloadFull
		if json.Unmarshal(env.Payload, &payload) != nil {
			return
		}
		r, ok := d.responders(payload.GraphID)
		if !ok {
			return
		}
		reply, err := r.RespondFull(payload)
		if err != nil {
			log.Error("failed to respond to sync full transfer", "err", err, "peer", env.SourceIID)
			return
		}
		d.reply(ctx, env.SourceIID, bus.KindSyncPayloadFull, reply)

	case bus.KindSyncPayloadDelta:
		var payload syncengine.SyncPayloadDelta
		if json.Unmarshal(env.Payload, &payload) != nil {
			return
		}
		r, ok := d.responders(payload.GraphID)
		if !ok {
			return
		}
		reply, err := r.RespondDelta(payload)
		if err != nil {
			log.Error("failed to respond to sync delta transfer", "err", err, "peer", env.SourceIID)
			return
		}
		d.reply(ctx, env.SourceIID, bus.KindSyncPayloadDelta, reply)

	case bus.KindSyncAck:
		var ack syncengine.SyncAck
		if json.Unmarshal(env.Payload, &ack) != nil {
			return
		}
		if r, ok := d.responders(ack.GraphID); ok {
			_ = r.RespondAck(ack)
		}

	case bus.KindSyncFailed:
		var failed syncengine.SyncFailed
		if json.Unmarshal(env.Payload, &failed) != nil {
			return
		}
		if r, ok := d.responders(failed.GraphID); ok {
			_ = r.RespondFailed(failed)
		}
	}
}

func (d *Dispatcher) reply(ctx context.Context, destIID string, kind bus.Kind, payload any) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		log.Error("failed to encode sync reply", "err", err)
		return
	}
	env := bus.Envelope{
		MessageID: uuid.NewString(),
		SourceIID: d.selfIID,
		DestIID:   destIID,
		Kind:      kind,
		Payload:   encoded,
		Timestamp: time.Now(),
	}
	if err := d.client.post(ctx, destIID, env); err != nil {
		log.Error("failed to deliver sync reply", "err", err, "dest_iid", destIID)
	}
}
