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
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"meshgraph/pkg/cli"
)

// runShell starts an interactive operator shell against the meshd
// instance at server, resolving "\h"-style commands the way an
// operator would type them one at a time instead of via flags.
func runShell(server string) int {
	cli.PrintInfo("Connected to %s", server)
	fmt.Println("Type \\h for help, \\q to quit.")
	fmt.Println()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          promptFor(server),
		HistoryFile:     "",
		InterruptPrompt: "^C",
		EOFPrompt:       "\\q",
		AutoComplete:    shellCompleter(),
	})
	if err != nil {
		cli.PrintError("Failed to start shell: %v", err)
		return 1
	}
	defer rl.Close()

	client := newAdminClient(server)
	help := shellHelp()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		cmd := fields[0]
		args := fields[1:]

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		switch cmd {
		case "\\q", "\\quit", "exit":
			cancel()
			return 0
		case "\\h", "\\help", "help":
			help.PrintUsage()
		case "\\peers", "peers":
			cmdPeers(ctx, server, cli.FormatTable)
		case "\\register", "register":
			if len(args) < 2 {
				cli.ErrMissingArgument("iid, address", "\\register <iid> <address>").Print()
				break
			}
			cmdRegister(ctx, server, args)
		case "\\heartbeat", "heartbeat":
			if len(args) < 1 {
				cli.ErrMissingArgument("iid", "\\heartbeat <iid>").Print()
				break
			}
			cmdHeartbeat(ctx, server, args)
		case "\\deregister", "deregister":
			if len(args) < 1 {
				cli.ErrMissingArgument("iid", "\\deregister <iid>").Print()
				break
			}
			if !cli.ConfirmDestructive(fmt.Sprintf("This will remove %s from the registry.", args[0]), args[0]) {
				cli.PrintWarning("Aborted.")
				break
			}
			if err := client.deregister(ctx, args[0]); err != nil {
				cli.ErrConnectionFailed(server, err).Print()
			} else {
				cli.PrintSuccess("deregistered %s", args[0])
			}
		default:
			cli.ErrInvalidCommand(cmd).Print()
		}
		cancel()
	}
	return 0
}

func promptFor(server string) string {
	return cli.Highlight("meshctl") + " (" + cli.Info(server) + ")> "
}

func shellHelp() *cli.HelpFormatter {
	h := cli.NewHelpFormatter("meshctl shell", version)
	h.AddCommand(cli.Command{Name: "\\peers", Description: "List known mesh instances"})
	h.AddCommand(cli.Command{Name: "\\register", Description: "Register an instance", Usage: "\\register <iid> <address>"})
	h.AddCommand(cli.Command{Name: "\\heartbeat", Description: "Send a heartbeat", Usage: "\\heartbeat <iid>"})
	h.AddCommand(cli.Command{Name: "\\deregister", Description: "Remove an instance (asks for confirmation)", Usage: "\\deregister <iid>"})
	h.AddCommand(cli.Command{Name: "\\help", Description: "Show this help"})
	h.AddCommand(cli.Command{Name: "\\quit", Description: "Exit the shell"})
	return h
}

func shellCompleter() readline.AutoCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("\\peers"),
		readline.PcItem("\\register"),
		readline.PcItem("\\heartbeat"),
		readline.PcItem("\\deregister"),
		readline.PcItem("\\help"),
		readline.PcItem("\\quit"),
	)
}
