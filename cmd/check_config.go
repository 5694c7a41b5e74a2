// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"flag"
	"fmt"
	"os"

	"grimm.is/macwall/internal/config"
	"grimm.is/macwall/internal/install"
)

// RunCheckConfig loads and validates a configuration file.
func RunCheckConfig(args []string) error {
	flags := flag.NewFlagSet("check-config", flag.ContinueOnError)
	print := flags.Bool("print", false, "Print the effective configuration as HCL")
	if err := flags.Parse(args); err != nil {
		return err
	}

	path := install.GetConfigFile()
	if flags.NArg() > 0 {
		path = flags.Arg(0)
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	Printer.Printf("Configuration OK: %s\n", path)

	if *print {
		os.Stdout.Write(config.EncodeHCL(cfg))
	}
	return nil
}
