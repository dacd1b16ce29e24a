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

// Package httpapi exposes the bit-exact HTTP surface of spec.md §6 over
// the registry and the message bus, and implements syncengine.Transport
// as an HTTP client against a peer's surface.
package httpapi

import (
	"encoding/json"
	"net/http"

	"meshgraph/internal/bus"
	"meshgraph/internal/logging"
	"meshgraph/internal/registry"
)

var log = logging.NewLogger("httpapi")

// Server exposes one instance's registry and bus endpoints.
type Server struct {
	selfIID string
	reg     *registry.Registry
	bus     *bus.Bus
	mux     *http.ServeMux
}

// NewServer wires handlers for every path in spec.md §6's table.
func NewServer(selfIID string, reg *registry.Registry, b *bus.Bus) *Server {
	s := &Server{selfIID: selfIID, reg: reg, bus: b, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /registry/register", s.handleRegister)
	s.mux.HandleFunc("GET /registry/agents", s.handleAgents)
	s.mux.HandleFunc("POST /registry/heartbeat/{iid}", s.handleHeartbeat)
	s.mux.HandleFunc("DELETE /registry/deregister/{iid}", s.handleDeregister)
	s.mux.HandleFunc("POST /messages/send/{source_iid}", s.handleMessagesSend)
	s.mux.HandleFunc("GET /messages/{iid}", s.handleMessagesGet)
	s.mux.HandleFunc("POST /messages/ack/{iid}", s.handleMessagesAck)
	return s
}

// Handler returns the http.Handler to mount (directly, or behind your
// own middleware chain).
func (s *Server) Handler() http.Handler { return s.mux }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
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

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IID == "" {
		writeError(w, http.StatusBadRequest, "invalid instance info")
		return
	}
	leader, peers := s.reg.Register(registry.Info{
		IID: req.IID, Address: req.Address,
		Capabilities: req.Capabilities, AgentProfiles: req.AgentProfiles,
	})
	writeJSON(w, http.StatusOK, registerResponse{IID: req.IID, LeaderID: leader, Peers: peers})
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reg.ListPeers(nil))
}

type heartbeatRequest struct {
	Status  string            `json:"status"`
	Metrics map[string]string `json:"metrics"`
}

type heartbeatResponse struct {
	Ack        bool            `json:"ack"`
	Peers      []registry.Peer `json:"peers,omitempty"`
	ShouldSync []string        `json:"should_sync"`
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	iid := r.PathValue("iid")
	var req heartbeatRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	ack, peers, shouldSync := s.reg.Heartbeat(iid, req.Status, req.Metrics)
	if !ack {
		writeError(w, http.StatusNotFound, "unknown instance")
		return
	}
	writeJSON(w, http.StatusOK, heartbeatResponse{Ack: ack, Peers: peers, ShouldSync: shouldSync})
}

func (s *Server) handleDeregister(w http.ResponseWriter, r *http.Request) {
	s.reg.Deregister(r.PathValue("iid"))
	writeJSON(w, http.StatusOK, map[string]bool{"ack": true})
}

type sendResponse struct {
	MessageID string `json:"message_id"`
}

func (s *Server) handleMessagesSend(w http.ResponseWriter, r *http.Request) {
	var env bus.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil || env.MessageID == "" {
		writeError(w, http.StatusBadRequest, "invalid envelope")
		return
	}
	if env.SourceIID == "" {
		env.SourceIID = r.PathValue("source_iid")
	}
	s.bus.Publish(env)
	writeJSON(w, http.StatusAccepted, sendResponse{MessageID: env.MessageID})
}

func (s *Server) handleMessagesGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.bus.Pending(r.PathValue("iid")))
}

type ackResponse struct {
	Acked int `json:"acked"`
}

func (s *Server) handleMessagesAck(w http.ResponseWriter, r *http.Request) {
	var ids []string
	if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
		writeError(w, http.StatusBadRequest, "invalid message id list")
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Acked: s.bus.Ack(ids)})
}
