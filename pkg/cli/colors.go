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
Package cli renders meshctl's operator output: peer tables, registry
errors with actionable suggestions, and the status lines and prompts of
the interactive shell. It only carries the handful of colors, the
table/peer formatting, the help listing, and the destructive-action
confirmation that meshctl's commands actually use — not a
general-purpose terminal toolkit.
*/
package cli

import (
	"fmt"
	"os"
)

// ANSI codes for the subset of styling meshctl's output actually uses:
// success/warning/error/info status lines and bolded headers.
const (
	Reset = "\033[0m"
	Bold  = "\033[1m"
	Dim   = "\033[2m"

	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
)

// colorsEnabled controls whether colors are output. It is disabled when
// NO_COLOR is set or stdout isn't a terminal, so piping `meshctl peers`
// into another tool doesn't carry escape codes.
var colorsEnabled = true

func init() {
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
	}
	if fileInfo, _ := os.Stdout.Stat(); (fileInfo.Mode() & os.ModeCharDevice) == 0 {
		colorsEnabled = false
	}
}

func colorize(color, text string) string {
	if !colorsEnabled {
		return text
	}
	return color + text + Reset
}

// Success formats text as a success message (green), used for
// confirmations like a completed registration or deregistration.
func Success(text string) string {
	return colorize(Green, text)
}

// Error formats text as an error message (red).
func Error(text string) string {
	return colorize(Red, text)
}

// Warning formats text as a warning message (yellow), used for
// recoverable operator-facing conditions like "no instances found".
func Warning(text string) string {
	return colorize(Yellow, text)
}

// Info formats text as an info message (cyan), used for the shell
// prompt's server address and progress narration.
func Info(text string) string {
	return colorize(Cyan, text)
}

// Highlight formats text as bold, used for peer IIDs and section
// headers in help and discovery output.
func Highlight(text string) string {
	return colorize(Bold, text)
}

// Dimmed formats text as dimmed, used for the detail line under a
// CLIError's message.
func Dimmed(text string) string {
	return colorize(Dim, text)
}

// SuccessIcon returns a green checkmark.
func SuccessIcon() string {
	return colorize(Green, "✓")
}

// ErrorIcon returns a red X.
func ErrorIcon() string {
	return colorize(Red, "✗")
}

// WarningIcon returns a yellow warning sign.
func WarningIcon() string {
	return colorize(Yellow, "⚠")
}

// InfoIcon returns a cyan info icon.
func InfoIcon() string {
	return colorize(Cyan, "ℹ")
}

// PrintSuccess prints a success message with icon, e.g. a completed
// register/heartbeat/deregister against a mesh instance.
func PrintSuccess(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Printf("%s %s\n", SuccessIcon(), Success(msg))
}

// PrintError prints an error message with icon.
func PrintError(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Printf("%s %s\n", ErrorIcon(), Error(msg))
}

// PrintWarning prints a warning message with icon.
func PrintWarning(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Printf("%s %s\n", WarningIcon(), Warning(msg))
}

// PrintInfo prints an info message with icon.
func PrintInfo(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Printf("%s %s\n", InfoIcon(), Info(msg))
}
