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

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"meshgraph/internal/registry"
)

// adminClient is a thin HTTP client against one meshd instance's
// spec.md §6 registry endpoints, used by meshctl's operator commands.
type adminClient struct {
	baseURL string
	http    *http.Client
}

func newAdminClient(baseURL string) *adminClient {
	return &adminClient{baseURL: baseURL, http: &http.Client{Timeout: 10 * time.Second}}
}

func (c *adminClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error != "" {
			return fmt.Errorf("meshctl: %s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("meshctl: %s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type registerRequest struct {
	IID           string   `json:"iid"`
	Address       string   `json:"address"`
	Capabilities  []string `json:"capabilities"`
	AgentProfiles []string `json:"profiles"`
}

type registerResponse struct {
	IID      string          `json:"iid"`
	LeaderID string          `json:"leader_id"`
	Peers    []registry.Peer `json:"peers"`
}

func (c *adminClient) register(ctx context.Context, req registerRequest) (*registerResponse, error) {
	var resp registerResponse
	if err := c.doJSON(ctx, http.MethodPost, "/registry/register", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *adminClient) listPeers(ctx context.Context) ([]registry.Peer, error) {
	var peers []registry.Peer
	if err := c.doJSON(ctx, http.MethodGet, "/registry/agents", nil, &peers); err != nil {
		return nil, err
	}
	return peers, nil
}

type heartbeatResponse struct {
	Ack        bool            `json:"ack"`
	Peers      []registry.Peer `json:"peers,omitempty"`
	ShouldSync []string        `json:"should_sync"`
}

func (c *adminClient) heartbeat(ctx context.Context, iid string) (*heartbeatResponse, error) {
	var resp heartbeatResponse
	if err := c.doJSON(ctx, http.MethodPost, "/registry/heartbeat/"+iid, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *adminClient) deregister(ctx context.Context, iid string) error {
	return c.doJSON(ctx, http.MethodDelete, "/registry/deregister/"+iid, nil, nil)
}
