// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import "grimm.is/macwall/internal/brand"

// RunVersion prints version information.
func RunVersion() {
	Printer.Println(brand.VersionString())
}
