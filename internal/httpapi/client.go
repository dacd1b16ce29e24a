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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"meshgraph/internal/bus"
	"meshgraph/internal/syncengine"
)

// AddressBook resolves a peer IID to the base URL of its HTTP surface.
// A *registry.Registry satisfies this via RegistryAddressBook
// (addressbook.go), since the registry already tracks each peer's
// advertised address.
type AddressBook interface {
	Address(peerIID string) (string, bool)
}

// Client implements syncengine.Transport over the HTTP surface of
// spec.md §6: each RPC is carried as a bus envelope of the matching
// Kind, POSTed into the peer's inbox via /messages/send, with the reply
// collected by polling this instance's own inbox. Polling (rather than a
// push callback) is the pragmatic fit for the pull-style bus model of
// spec.md §4.5, and is safe here because the engine's own AlreadySyncing
// rule guarantees at most one in-flight session per peer, so a Kind+
// source match is unambiguous.
type Client struct {
	selfIID    string
	addresses  AddressBook
	bus        *bus.Bus
	httpClient *http.Client
	pollEvery  time.Duration
}

// NewClient creates a Client that deposits outgoing session RPCs into
// peer inboxes and resolves replies via the local bus b (the same Bus an
// httpapi.Server for this instance is publishing into).
func NewClient(selfIID string, addresses AddressBook, b *bus.Bus) *Client {
	return &Client{
		selfIID:    selfIID,
		addresses:  addresses,
		bus:        b,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		pollEvery:  50 * time.Millisecond,
	}
}

func (c *Client) post(ctx context.Context, peerIID string, env bus.Envelope) error {
	addr, ok := c.addresses.Address(peerIID)
	if !ok {
		return fmt.Errorf("httpapi: no known address for peer %q", peerIID)
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/messages/send/%s", addr, c.selfIID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("httpapi: peer %q rejected envelope: status %d", peerIID, resp.StatusCode)
	}
	return nil
}

// exchange sends payload as a bus envelope of kind to peerIID and blocks
// until a same-kind reply from peerIID lands in the local inbox, or ctx
// is done.
func (c *Client) exchange(ctx context.Context, peerIID string, kind bus.Kind, payload any, out any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	env := bus.Envelope{
		MessageID: uuid.NewString(),
		SourceIID: c.selfIID,
		DestIID:   peerIID,
		Kind:      kind,
		Payload:   encoded,
		Timestamp: time.Now(),
	}
	if err := c.post(ctx, peerIID, env); err != nil {
		return err
	}

	ticker := time.NewTicker(c.pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, pending := range c.bus.Pending(c.selfIID) {
				if pending.Kind != kind || pending.SourceIID != peerIID {
					continue
				}
				c.bus.Ack([]string{pending.MessageID})
				return json.Unmarshal(pending.Payload, out)
			}
		}
	}
}

func (c *Client) Hello(ctx context.Context, peerIID string, hello syncengine.SyncHello) (syncengine.SyncHello, error) {
	var out syncengine.SyncHello
	err := c.exchange(ctx, peerIID, bus.KindSyncHello, hello, &out)
	return out, err
}

func (c *Client) Full(ctx context.Context, peerIID string, payload syncengine.SyncPayloadFull) (syncengine.SyncPayloadFull, error) {
	var out syncengine.SyncPayloadFull
	err := c.exchange(ctx, peerIID, bus.KindSyncPayloadFull, payload, &out)
	return out, err
}

func (c *Client) Delta(ctx context.Context, peerIID string, payload syncengine.SyncPayloadDelta) (syncengine.SyncPayloadDelta, error) {
	var out syncengine.SyncPayloadDelta
	err := c.exchange(ctx, peerIID, bus.KindSyncPayloadDelta, payload, &out)
	return out, err
}

func (c *Client) Ack(ctx context.Context, peerIID string, ack syncengine.SyncAck) error {
	encoded, err := json.Marshal(ack)
	if err != nil {
		return err
	}
	return c.post(ctx, peerIID, bus.Envelope{
		MessageID: uuid.NewString(), SourceIID: c.selfIID, DestIID: peerIID,
		Kind: bus.KindSyncAck, Payload: encoded, Timestamp: time.Now(),
	})
}

func (c *Client) Failed(ctx context.Context, peerIID string, failed syncengine.SyncFailed) error {
	encoded, err := json.Marshal(failed)
	if err != nil {
		return err
	}
	return c.post(ctx, peerIID, bus.Envelope{
		MessageID: uuid.NewString(), SourceIID: c.selfIID, DestIID: peerIID,
		Kind: bus.KindSyncFailed, Payload: encoded, Timestamp: time.Now(),
	})
}

var _ syncengine.Transport = (*Client)(nil)
