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
)

type registerRequest struct {
	IID           string   `json:"iid"`
	Address       string   `json:"address"`
	Capabilities  []string `json:"capabilities"`
	AgentProfiles []string `json:"profiles"`
}

// registerWithPeer POSTs this instance's info to a known peer's
// /registry/register endpoint, the bootstrap step that lets a freshly
// started instance join a mesh it has one address for.
func registerWithPeer(ctx context.Context, peerAddr, selfIID, selfAddress string, graphIDs []string) error {
	body, err := json.Marshal(registerRequest{IID: selfIID, Address: selfAddress, Capabilities: graphIDs})
	if err != nil {
		return err
	}
	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, peerAddr+"/registry/register", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("meshd: bootstrap registration rejected: status %d", resp.StatusCode)
	}
	return nil
}
