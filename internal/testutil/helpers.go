// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package testutil

import (
	"os"
	"testing"
)

// RequireVM skips the test unless MACWALL_VM_TEST is set. Tests that touch the
// host packet filter only run inside a disposable VM or network namespace.
func RequireVM(t *testing.T) {
	t.Helper()
	if os.Getenv("MACWALL_VM_TEST") == "" {
		t.Skip("Skipping test: requires MACWALL_VM_TEST environment")
	}
}

// RequireRoot skips the test when not running as root.
func RequireRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("Skipping test: requires root")
	}
}
