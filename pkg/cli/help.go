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

package cli

import "fmt"

// Command is one entry in a flat command listing: meshctl has no
// nested subcommands, per-command flags, or worked examples, so unlike
// a richer SQL client's help text this only needs a name, its aliases,
// and a one-line usage/description pair.
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
}

// HelpFormatter prints the top-level `meshctl help` / usage-error
// listing for a flat set of commands.
type HelpFormatter struct {
	AppName    string
	AppVersion string
	Commands   []Command
}

// NewHelpFormatter creates a new help formatter.
func NewHelpFormatter(appName, version string) *HelpFormatter {
	return &HelpFormatter{
		AppName:    appName,
		AppVersion: version,
		Commands:   make([]Command, 0),
	}
}

// AddCommand adds a command to the help formatter.
func (h *HelpFormatter) AddCommand(cmd Command) {
	h.Commands = append(h.Commands, cmd)
}

// PrintUsage prints the command listing, including each command's
// aliases (e.g. "peers, ls") so operators can see the shorthand without
// a separate lookup.
func (h *HelpFormatter) PrintUsage() {
	fmt.Printf("\n%s\n", Highlight(h.AppName+" - mesh/sync core command line interface"))
	fmt.Printf("Version: %s\n\n", h.AppVersion)

	fmt.Printf("%s\n", Highlight("USAGE:"))
	fmt.Printf("  %s [flags] <command> [args]\n\n", h.AppName)

	if len(h.Commands) == 0 {
		return
	}
	fmt.Printf("%s\n", Highlight("COMMANDS:"))
	nameWidth := 0
	for _, cmd := range h.Commands {
		name := cmd.Name
		if len(cmd.Aliases) > 0 {
			name += ", " + joinStrings(cmd.Aliases, ", ")
		}
		if len(name) > nameWidth {
			nameWidth = len(name)
		}
	}
	for _, cmd := range h.Commands {
		name := cmd.Name
		if len(cmd.Aliases) > 0 {
			name += ", " + joinStrings(cmd.Aliases, ", ")
		}
		fmt.Printf("  %-*s  %s\n", nameWidth+2, name, cmd.Description)
		if cmd.Usage != "" {
			fmt.Printf("  %s%s\n", repeatSpace(nameWidth+4), Dimmed(cmd.Usage))
		}
	}
	fmt.Println()
}

func joinStrings(items []string, sep string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += sep
		}
		out += s
	}
	return out
}

func repeatSpace(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}
