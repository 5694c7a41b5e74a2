// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"flag"
	"fmt"
	"os"
	"syscall"
	"time"

	"grimm.is/macwall/internal/brand"
	"grimm.is/macwall/internal/install"
)

// RunStop signals the running daemon to shut down and waits for its PID file to go away.
func RunStop(args []string) error {
	flags := flag.NewFlagSet("stop", flag.ContinueOnError)
	pidFile := flags.String("pid-file", install.GetPIDFile(), "PID file written by serve")
	wait := flags.Duration("wait", 5*time.Second, "How long to wait for shutdown")
	if err := flags.Parse(args); err != nil {
		return err
	}

	pid, err := readPIDFile(*pidFile)
	if err != nil {
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("process not found: %w", err)
	}

	Printer.Printf("Stopping %s (PID: %d)...\n", brand.Name, pid)
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM: %w", err)
	}

	// Wait for PID file to disappear (daemon should remove it)
	deadline := time.Now().Add(*wait)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(*pidFile); os.IsNotExist(err) {
			Printer.Println("Stopped.")
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	Printer.Println("Warning: PID file still exists. Process might be stuck or slow to shutdown.")
	return nil
}
