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

package config

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Mesh.HeartbeatIntervalSecs != 30 {
		t.Errorf("expected heartbeat interval 30, got %d", cfg.Mesh.HeartbeatIntervalSecs)
	}
	if cfg.Mesh.StaleTimeoutSecs != 90 {
		t.Errorf("expected stale timeout 90, got %d", cfg.Mesh.StaleTimeoutSecs)
	}
	if cfg.Sync.MaxConcurrentSyncs != 3 {
		t.Errorf("expected max concurrent syncs 3, got %d", cfg.Sync.MaxConcurrentSyncs)
	}
	if cfg.Sync.Strategy.IncrementalThreshold != 0.3 {
		t.Errorf("expected incremental threshold 0.3, got %v", cfg.Sync.Strategy.IncrementalThreshold)
	}
	if cfg.Sync.Strategy.ChangelogRetentionDays != 7 {
		t.Errorf("expected changelog retention 7 days, got %d", cfg.Sync.Strategy.ChangelogRetentionDays)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero heartbeat", func(c *Config) { c.Mesh.HeartbeatIntervalSecs = 0 }},
		{"stale below heartbeat", func(c *Config) { c.Mesh.StaleTimeoutSecs = c.Mesh.HeartbeatIntervalSecs }},
		{"zero admission gate", func(c *Config) { c.Sync.MaxConcurrentSyncs = 0 }},
		{"threshold over 1", func(c *Config) { c.Sync.Strategy.IncrementalThreshold = 1.5 }},
		{"unknown strategy", func(c *Config) { c.Sync.ConflictResolution.Strategy = "bogus" }},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestGraphParticipates(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.GraphParticipates("g1") {
		t.Fatalf("expected default-enabled graph to participate")
	}

	cfg.Sync.SyncEnabledByDefault = false
	if cfg.GraphParticipates("g1") {
		t.Fatalf("expected graph to be excluded when default is off and not listed")
	}

	cfg.Sync.SyncGraphs = []string{"g1"}
	if !cfg.GraphParticipates("g1") {
		t.Fatalf("expected explicitly listed graph to participate")
	}
	if cfg.GraphParticipates("g2") {
		t.Fatalf("expected unlisted graph to be excluded when SyncGraphs is non-empty")
	}

	cfg.Sync.ExcludeFromSync = []string{"g1"}
	if cfg.GraphParticipates("g1") {
		t.Fatalf("expected exclusion list to take precedence")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv(EnvSyncMaxConcurrentSyncs, "7")
	t.Setenv(EnvMeshEnabled, "false")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()

	if cfg.Sync.MaxConcurrentSyncs != 7 {
		t.Errorf("expected env override to set max concurrent syncs to 7, got %d", cfg.Sync.MaxConcurrentSyncs)
	}
	if cfg.Mesh.Enabled {
		t.Errorf("expected env override to disable mesh")
	}
}
