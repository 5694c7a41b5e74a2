// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"os"

	"grimm.is/macwall/cmd"
	"grimm.is/macwall/internal/brand"
)

func main() {
	if len(os.Args) < 2 {
		run("serve", cmd.RunServe, nil)
		return
	}

	sub, args := os.Args[1], os.Args[2:]
	switch sub {
	case "serve":
		run(sub, cmd.RunServe, args)
	case "stop":
		run(sub, cmd.RunStop, args)
	case "send":
		run(sub, cmd.RunSend, args)
	case "audit":
		run(sub, cmd.RunAudit, args)
	case "check-config":
		run(sub, cmd.RunCheckConfig, args)
	case "version", "-v", "--version":
		cmd.RunVersion()
	case "help", "-h", "--help":
		help()
	default:
		// Flags without a subcommand go to serve.
		if len(sub) > 0 && sub[0] == '-' {
			run("serve", cmd.RunServe, os.Args[1:])
			return
		}
		cmd.Printer.Fprintf(os.Stderr, "Unknown command: %s\n\n", sub)
		help()
		os.Exit(1)
	}
}

func run(name string, fn func([]string) error, args []string) {
	if err := fn(args); err != nil {
		cmd.Printer.Fprintf(os.Stderr, "%s error: %v\n", name, err)
		os.Exit(1)
	}
}

func help() {
	cmd.Printer.Printf("%s - %s\n\n", brand.Name, brand.Description)
	cmd.Printer.Printf("Usage: %s <command> [flags]\n\n", brand.BinaryName)
	cmd.Printer.Println("Commands:")
	cmd.Printer.Println("  serve         Run the blocklist daemon (default)")
	cmd.Printer.Println("  stop          Stop a running daemon")
	cmd.Printer.Println("  send          Send commands to a running daemon")
	cmd.Printer.Println("  audit         Show recent audit events")
	cmd.Printer.Println("  check-config  Validate a configuration file")
	cmd.Printer.Println("  version       Print version information")
}
