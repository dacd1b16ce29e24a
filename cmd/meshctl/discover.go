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
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"meshgraph/internal/registry"
	"meshgraph/pkg/cli"
)

// runDiscover scans the local network for meshd instances over mDNS,
// the same bootstrap mechanism meshd itself uses with --discover.
func runDiscover(timeoutSecs int, jsonOutput, quiet bool) int {
	var spinner *cli.Spinner
	if !quiet && !jsonOutput {
		spinner = cli.NewSpinner(fmt.Sprintf("Scanning for mesh instances on the network (timeout: %ds)...", timeoutSecs))
		spinner.Start()
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)
	defer cancel()
	found, err := registry.Discover(ctx)
	if err != nil {
		if spinner != nil {
			spinner.StopWithError(fmt.Sprintf("Discovery failed: %v", err))
		} else if !quiet {
			cli.PrintError("Discovery failed: %v", err)
		}
		return 1
	}

	if len(found) == 0 {
		if spinner != nil {
			spinner.StopWithWarning("No mesh instances found on the network.")
			fmt.Println()
			fmt.Println(cli.Highlight("TROUBLESHOOTING"))
			fmt.Println("  Common issues:")
			fmt.Println("    - meshd is not running with --advertise")
			fmt.Println("    - mDNS/Bonjour is blocked by a firewall (UDP port 5353)")
			fmt.Println("    - instances are on a different network segment")
		}
		return 0
	}

	if spinner != nil {
		spinner.Stop()
	}

	switch {
	case jsonOutput:
		data, _ := json.MarshalIndent(found, "", "  ")
		fmt.Println(string(data))
	case quiet:
		addrs := make([]string, len(found))
		for i, d := range found {
			addrs[i] = fmt.Sprintf("%s:%d", d.Address, d.Port)
		}
		fmt.Println(strings.Join(addrs, ","))
	default:
		cli.PrintSuccess("Found %d mesh instance(s)", len(found))
		fmt.Println()
		for i, d := range found {
			fmt.Printf("  [%d] %s\n", i+1, cli.Highlight(d.IID))
			cli.KeyValue("Address", fmt.Sprintf("%s:%d", d.Address, d.Port), 10)
			fmt.Println()
		}
	}
	return 0
}
