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
meshctl is the operator CLI for the mesh/sync core: it talks to a
meshd instance's spec.md §6 HTTP surface to inspect and manage
membership, and can discover instances on the local network over mDNS.

Usage:

	meshctl --server http://localhost:8080 peers
	meshctl --server http://localhost:8080 register myinstance http://localhost:9090
	meshctl --server http://localhost:8080 deregister myinstance
	meshctl discover --timeout 5
	meshctl --server http://localhost:8080 shell
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"meshgraph/pkg/cli"
)

const version = "0.1.0"

func main() {
	server := flag.String("server", "http://localhost:8080", "base URL of a meshd instance's HTTP surface")
	format := flag.String("format", "table", "output format for list commands: table, json, plain")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("meshctl version %s\n", version)
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	outputFormat := cli.ParseOutputFormat(*format)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd, rest := args[0], args[1:]
	var exitCode int
	switch cmd {
	case "peers", "ls":
		exitCode = cmdPeers(ctx, *server, outputFormat)
	case "register":
		exitCode = cmdRegister(ctx, *server, rest)
	case "heartbeat":
		exitCode = cmdHeartbeat(ctx, *server, rest)
	case "deregister", "rm":
		exitCode = cmdDeregister(ctx, *server, rest)
	case "discover":
		exitCode = cmdDiscover(rest)
	case "shell":
		exitCode = runShell(*server)
	case "help", "-h", "--help":
		printUsage()
		exitCode = 0
	default:
		cli.ErrInvalidCommand(cmd).Print()
		exitCode = 1
	}
	os.Exit(exitCode)
}

func printUsage() {
	h := cli.NewHelpFormatter("meshctl", version)
	h.AddCommand(cli.Command{Name: "peers", Aliases: []string{"ls"}, Description: "List known mesh instances", Usage: "meshctl peers"})
	h.AddCommand(cli.Command{Name: "register", Description: "Register an instance with the mesh", Usage: "meshctl register <iid> <address>"})
	h.AddCommand(cli.Command{Name: "heartbeat", Description: "Send a heartbeat for an instance", Usage: "meshctl heartbeat <iid>"})
	h.AddCommand(cli.Command{Name: "deregister", Aliases: []string{"rm"}, Description: "Remove an instance from the registry", Usage: "meshctl deregister <iid>"})
	h.AddCommand(cli.Command{Name: "discover", Description: "Discover instances on the local network via mDNS", Usage: "meshctl discover [--timeout 5]"})
	h.AddCommand(cli.Command{Name: "shell", Description: "Start an interactive shell", Usage: "meshctl shell"})
	h.PrintUsage()
}

func cmdPeers(ctx context.Context, server string, format cli.OutputFormat) int {
	client := newAdminClient(server)
	peers, err := client.listPeers(ctx)
	if err != nil {
		cli.ErrConnectionFailed(server, err).Print()
		return 1
	}
	table := cli.PeerTable(peers)
	table.SetFormat(format)
	table.Print()
	return 0
}

func cmdRegister(ctx context.Context, server string, args []string) int {
	if len(args) < 2 {
		cli.ErrMissingArgument("iid, address", "meshctl register <iid> <address>").Print()
		return 1
	}
	client := newAdminClient(server)
	resp, err := client.register(ctx, registerRequest{IID: args[0], Address: args[1]})
	if err != nil {
		cli.ErrConnectionFailed(server, err).Print()
		return 1
	}
	cli.PrintSuccess("registered %s (leader: %s, %d known peers)", args[0], resp.LeaderID, len(resp.Peers))
	return 0
}

func cmdHeartbeat(ctx context.Context, server string, args []string) int {
	if len(args) < 1 {
		cli.ErrMissingArgument("iid", "meshctl heartbeat <iid>").Print()
		return 1
	}
	client := newAdminClient(server)
	resp, err := client.heartbeat(ctx, args[0])
	if err != nil {
		cli.ErrUnknownPeer(args[0]).Print()
		return 1
	}
	cli.PrintSuccess("heartbeat acked, should_sync=%v", resp.ShouldSync)
	return 0
}

func cmdDeregister(ctx context.Context, server string, args []string) int {
	if len(args) < 1 {
		cli.ErrMissingArgument("iid", "meshctl deregister <iid>").Print()
		return 1
	}
	client := newAdminClient(server)
	if err := client.deregister(ctx, args[0]); err != nil {
		cli.ErrConnectionFailed(server, err).Print()
		return 1
	}
	cli.PrintSuccess("deregistered %s", args[0])
	return 0
}

func cmdDiscover(args []string) int {
	fs := flag.NewFlagSet("discover", flag.ExitOnError)
	timeout := fs.Int("timeout", 5, "discovery timeout in seconds")
	jsonOutput := fs.Bool("json", false, "output as JSON")
	quiet := fs.Bool("quiet", false, "only output addresses")
	fs.Parse(args)
	return runDiscover(*timeout, *jsonOutput, *quiet)
}
