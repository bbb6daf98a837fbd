// Package agents keeps bk's machine-readable output clean when it runs under
// scripts and agent runners.
package agents

import (
	"os"
	"strings"
)

// Flags whose run never starts the browser. The export wizard is a huh form
// and keeps the terminal.
var (
	headlessPrefixes = []string{"robot-", "export-"}
	headlessFlags    = map[string]bool{"version": true, "help": true, "h": true, "list-recipes": true}
	interactiveFlags = map[string]bool{"export-wizard": true}
)

// Lipgloss asks the terminal for its background colour on first use. Inside a
// capturing PTY the OSC/DSR query lands on stdout, in the middle of the
// --robot-query document or an export summary. termenv skips the query
// when CI is set, so headless runs set it before any package that renders
// is initialised.
func init() {
	if os.Getenv("CI") != "" {
		return
	}
	if headlessEnv() || headless(os.Args[1:]) {
		_ = os.Setenv("CI", "1")
	}
}

// headlessEnv reports whether the environment marks the process as
// non-interactive: BK_ROBOT=1 from scripts, BK_TEST_MODE from the test suites.
func headlessEnv() bool {
	return os.Getenv("BK_ROBOT") == "1" || os.Getenv("BK_TEST_MODE") != ""
}

// headless reports whether args select a mode that prints and exits. Flags
// are read the way package flag reads them: one or two dashes, an optional
// =value, and nothing after a bare "--".
func headless(args []string) bool {
	for _, arg := range args {
		if arg == "--" {
			return false
		}
		name, ok := flagName(arg)
		if !ok || interactiveFlags[name] {
			continue
		}
		if headlessFlags[name] {
			return true
		}
		for _, p := range headlessPrefixes {
			if strings.HasPrefix(name, p) {
				return true
			}
		}
	}
	return false
}

// flagName strips the dashes and any value from a flag argument.
func flagName(arg string) (string, bool) {
	if !strings.HasPrefix(arg, "-") {
		return "", false
	}
	name := strings.TrimPrefix(strings.TrimPrefix(arg, "-"), "-")
	name, _, _ = strings.Cut(name, "=")
	return name, name != ""
}
