// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"grimm.is/macwall/internal/audit"
	"grimm.is/macwall/internal/config"
	"grimm.is/macwall/internal/install"
)

// RunAudit prints the most recent audit events.
func RunAudit(args []string) error {
	flags := flag.NewFlagSet("audit", flag.ContinueOnError)
	configFile := flags.String("config", install.GetConfigFile(), "Configuration file")
	dbPath := flags.String("db", "", "Audit database (overrides config)")
	limit := flags.Int("n", 20, "Number of events")
	mac := flags.String("mac", "", "Only show events for this address")
	if err := flags.Parse(args); err != nil {
		return err
	}

	path := *dbPath
	if path == "" {
		cfg, err := config.LoadOrDefault(*configFile)
		if err != nil {
			return err
		}
		path = cfg.Audit.Path
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("audit database not found at %s (is audit enabled?)", path)
	}

	store, err := audit.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := store.Recent(context.Background(), *limit, *mac)
	if err != nil {
		return err
	}
	return printEvents(os.Stdout, events)
}

func printEvents(out io.Writer, events []audit.Event) error {
	if len(events) == 0 {
		Printer.Fprintln(out, "No audit events.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	Printer.Fprintln(w, "TIME\tTYPE\tMAC\tRESULT\tPEER\tDETAIL")
	for _, e := range events {
		Printer.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format(time.DateTime),
			e.Type, dash(e.MAC), dash(e.Result), dash(e.Peer), e.Detail)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	Printer.Fprintf(out, "%d events\n", len(events))
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
