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

package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{DEBUG, "DEBUG"},
		{INFO, "INFO"},
		{WARN, "WARN"},
		{ERROR, "ERROR"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("Level.String() = %v, want %v", got, tt.expected)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"DEBUG", DEBUG},
		{"debug", DEBUG},
		{"INFO", INFO},
		{"info", INFO},
		{"WARN", WARN},
		{"warn", WARN},
		{"WARNING", WARN},
		{"ERROR", ERROR},
		{"error", ERROR},
		{"unknown", INFO}, // default
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

// TestComponentLoggersAreIndependentlyScoped mirrors how meshd's
// registry, store, and sync engine each open their own NewLogger
// rather than sharing one, so log lines can be filtered by component.
func TestComponentLoggersAreIndependentlyScoped(t *testing.T) {
	var buf bytes.Buffer
	SetGlobalOutput(&buf)
	SetGlobalLevel(DEBUG)
	SetJSONMode(false)

	registryLog := NewLogger("registry")
	storeLog := NewLogger("store")
	engineLog := NewLogger("syncengine")

	registryLog.Info("peer registered", "iid", "agent-7")
	storeLog.Warn("wal fsync slow", "graph_id", "g1")
	engineLog.Error("sync session failed", "peer_iid", "agent-3")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 log lines, got %d: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "[registry]") || !strings.Contains(lines[0], "iid=agent-7") {
		t.Errorf("registry log line missing component/field: %s", lines[0])
	}
	if !strings.Contains(lines[1], "[store]") || !strings.Contains(lines[1], "graph_id=g1") {
		t.Errorf("store log line missing component/field: %s", lines[1])
	}
	if !strings.Contains(lines[2], "[syncengine]") || !strings.Contains(lines[2], "peer_iid=agent-3") {
		t.Errorf("syncengine log line missing component/field: %s", lines[2])
	}
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	SetGlobalOutput(&buf)
	SetGlobalLevel(DEBUG)
	SetJSONMode(true)

	logger := NewLogger("registry")
	logger.Info("leader elected", "iid", "agent-1")

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse JSON output: %v", err)
	}

	if entry.Level != "INFO" {
		t.Errorf("Expected level INFO, got: %s", entry.Level)
	}
	if entry.Component != "registry" {
		t.Errorf("Expected component 'registry', got: %s", entry.Component)
	}
	if entry.Message != "leader elected" {
		t.Errorf("Expected message 'leader elected', got: %s", entry.Message)
	}
	if entry.Fields["iid"] != "agent-1" {
		t.Errorf("Expected field iid=agent-1, got: %v", entry.Fields)
	}

	SetJSONMode(false)
}

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetGlobalOutput(&buf)
	SetGlobalLevel(WARN)
	SetJSONMode(false)

	logger := NewLogger("syncengine")
	logger.Debug("dialing peer")
	logger.Info("session started")
	logger.Warn("retrying after transport error")
	logger.Error("session aborted")

	output := buf.String()
	if strings.Contains(output, "dialing peer") {
		t.Error("DEBUG message should be filtered out")
	}
	if strings.Contains(output, "session started") {
		t.Error("INFO message should be filtered out")
	}
	if !strings.Contains(output, "retrying after transport error") {
		t.Error("WARN message should be present")
	}
	if !strings.Contains(output, "session aborted") {
		t.Error("ERROR message should be present")
	}

	SetGlobalLevel(INFO)
}

// TestWithCarriesFieldsIntoChildLogger mirrors the sync engine scoping a
// per-session logger via With so every line for one session carries its
// graph/peer identity without repeating it at each call site.
func TestWithCarriesFieldsIntoChildLogger(t *testing.T) {
	var buf bytes.Buffer
	SetGlobalOutput(&buf)
	SetGlobalLevel(DEBUG)
	SetJSONMode(false)

	base := NewLogger("syncengine")
	sessionLog := base.With("graph_id", "g1", "peer_iid", "agent-9")
	sessionLog.Info("hello received")

	output := buf.String()
	if !strings.Contains(output, "graph_id=g1") {
		t.Errorf("Expected 'graph_id=g1' in output, got: %s", output)
	}
	if !strings.Contains(output, "peer_iid=agent-9") {
		t.Errorf("Expected 'peer_iid=agent-9' in output, got: %s", output)
	}
	if !strings.Contains(output, "[syncengine]") {
		t.Errorf("Expected component tag to carry through With, got: %s", output)
	}
}
