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
meshd is the mesh instance daemon: it opens one Graph Store per
configured graph, serves spec.md §6's HTTP surface over them, and runs
the periodic heartbeat/sync loop against the rest of the mesh.

Usage:

	meshd --address :8080 --graphs g1,g2 --data-dir ./data
	meshd --address :8081 --graphs g1 --bootstrap http://localhost:8080
	meshd --address :8082 --graphs g1 --advertise --discover
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"meshgraph/internal/audit"
	"meshgraph/internal/bus"
	"meshgraph/internal/config"
	"meshgraph/internal/httpapi"
	"meshgraph/internal/ids"
	"meshgraph/internal/logging"
	"meshgraph/internal/registry"
	"meshgraph/internal/resolver"
	"meshgraph/internal/store"
	"meshgraph/internal/syncengine"
)

const version = "0.1.0"

var log = logging.NewLogger("meshd")

func main() {
	iid := flag.String("iid", "", "instance id (default: auto-generated hostname-uuid)")
	address := flag.String("address", ":8080", "HTTP listen address")
	advertiseAddr := flag.String("advertise-address", "", "address advertised to peers (default: http://localhost<address>)")
	graphsFlag := flag.String("graphs", "", "comma-separated graph ids this instance hosts (required)")
	dataDir := flag.String("data-dir", "./data", "directory for WAL files")
	bootstrap := flag.String("bootstrap", "", "a known peer's base HTTP URL to register against at startup")
	advertise := flag.Bool("advertise", false, "advertise this instance over mDNS")
	discover := flag.Bool("discover", false, "bootstrap via mDNS discovery if --bootstrap is not set")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	logJSON := flag.Bool("log-json", false, "emit structured JSON log lines")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("meshd version %s\n", version)
		return
	}

	logging.SetGlobalLevel(logging.ParseLevel(*logLevel))
	logging.SetJSONMode(*logJSON)

	graphIDs := splitNonEmpty(*graphsFlag)
	if len(graphIDs) == 0 {
		fmt.Fprintln(os.Stderr, "meshd: --graphs is required")
		os.Exit(1)
	}

	if *iid == "" {
		*iid = ids.NewIID()
	}
	selfAddress := *advertiseAddr
	if selfAddress == "" {
		selfAddress = "http://localhost" + *address
	}

	cfg := config.DefaultConfig()
	cfg.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "meshd: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	printBanner(*iid, selfAddress, graphIDs)

	auditCfg := audit.DefaultConfig()
	auditCfg.LogConflicts = cfg.Sync.ConflictResolution.LogConflicts
	auditCfg.RetentionDays = cfg.Sync.ConflictResolution.ConflictLogRetentionDays
	if auditCfg.RetentionDays <= 0 {
		auditCfg.RetentionDays = 30
	}
	recorder, err := audit.NewManager(filepath.Join(*dataDir, "audit.wal"), auditCfg)
	if err != nil {
		log.Error("failed to open audit trail", "err", err)
		os.Exit(1)
	}
	defer recorder.Close()

	meshBus := bus.New(0, 0)
	reg := registry.New(func() config.MeshConfig { return cfg.Mesh }, recorder)
	addresses := httpapi.RegistryAddressBook{Registry: reg}
	client := httpapi.NewClient(*iid, addresses, meshBus)

	engines := make(map[string]*syncengine.Engine, len(graphIDs))
	for _, graphID := range graphIDs {
		if err := os.MkdirAll(*dataDir, 0o755); err != nil {
			log.Error("failed to create data dir", "err", err, "dir", *dataDir)
			os.Exit(1)
		}
		walPath := filepath.Join(*dataDir, fmt.Sprintf("%s.wal", graphID))
		st, err := store.Open(graphID, *iid, walPath)
		if err != nil {
			log.Error("failed to open graph store", "err", err, "graph_id", graphID)
			os.Exit(1)
		}
		engines[graphID] = syncengine.New(graphID, st, client, resolver.DefaultCollator, func() config.SyncConfig { return cfg.Sync }, recorder)
		log.Info("graph store opened", "graph_id", graphID, "wal", walPath)
	}

	server := httpapi.NewServer(*iid, reg, meshBus)
	dispatcher := httpapi.NewDispatcher(*iid, meshBus, addresses, func(graphID string) (httpapi.SyncResponder, bool) {
		e, ok := engines[graphID]
		return e, ok
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	httpServer := &http.Server{Addr: *address, Handler: server.Handler()}
	go func() {
		log.Info("http surface listening", "address", *address)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
		}
	}()
	go dispatcher.Run(ctx)

	var advertised *registry.Advertised
	if *advertise {
		port, _ := portFromAddress(*address)
		advertised, err = registry.Advertise(*iid, port)
		if err != nil {
			log.Warn("mdns advertise failed", "err", err)
		} else {
			log.Info("advertising over mdns", "iid", *iid, "port", port)
			defer advertised.Close()
		}
	}

	peerAddr := *bootstrap
	if peerAddr == "" && *discover {
		peerAddr = discoverPeer(ctx, *iid)
	}
	if peerAddr != "" {
		if err := registerWithPeer(ctx, peerAddr, *iid, selfAddress, graphIDs); err != nil {
			log.Warn("initial registration with bootstrap peer failed", "err", err, "peer", peerAddr)
		} else {
			log.Info("registered with bootstrap peer", "peer", peerAddr)
		}
	} else {
		reg.Register(registry.Info{IID: *iid, Address: selfAddress, Capabilities: graphIDs})
	}

	go heartbeatLoop(ctx, reg, client, *iid, cfg)
	go syncLoop(ctx, engines, reg, *iid, cfg)

	waitForShutdown()
	log.Info("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

func printBanner(iid, address string, graphIDs []string) {
	fmt.Println()
	fmt.Printf("  meshgraph daemon v%s\n", version)
	fmt.Printf("  instance: %s\n", iid)
	fmt.Printf("  address:  %s\n", address)
	fmt.Printf("  graphs:   %s\n\n", strings.Join(graphIDs, ", "))
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func portFromAddress(addr string) (int, error) {
	_, portStr, ok := strings.Cut(addr, ":")
	if !ok {
		return 0, fmt.Errorf("meshd: no port in address %q", addr)
	}
	return strconv.Atoi(portStr)
}

func discoverPeer(ctx context.Context, selfIID string) string {
	discoverCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	found, err := registry.Discover(discoverCtx)
	if err != nil {
		log.Warn("mdns discovery failed", "err", err)
		return ""
	}
	for _, d := range found {
		if d.IID != selfIID && d.Address != "" {
			return fmt.Sprintf("http://%s:%d", d.Address, d.Port)
		}
	}
	return ""
}

func heartbeatLoop(ctx context.Context, reg *registry.Registry, client *httpapi.Client, selfIID string, cfg *config.Config) {
	interval := time.Duration(cfg.Mesh.HeartbeatIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reg.Sweep(time.Now())
			reg.Heartbeat(selfIID, "Active", nil)
		}
	}
}

func syncLoop(ctx context.Context, engines map[string]*syncengine.Engine, reg *registry.Registry, selfIID string, cfg *config.Config) {
	interval := time.Duration(cfg.Sync.SyncIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, peers, shouldSync := reg.Heartbeat(selfIID, "Active", nil)
			_ = peers
			for graphID, engine := range engines {
				if !cfg.GraphParticipates(graphID) {
					continue
				}
				for _, peerIID := range shouldSync {
					if _, err := engine.Sync(ctx, peerIID); err != nil {
						log.Debug("periodic sync failed", "graph_id", graphID, "peer_iid", peerIID, "err", err)
					}
				}
			}
		}
	}
}

func waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}
