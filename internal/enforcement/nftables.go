// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package enforcement

import (
	"grimm.is/macwall/internal/brand"
	"grimm.is/macwall/internal/logging"
)

// NFTablesOptions configures the native netlink gateway.
type NFTablesOptions struct {
	Family string
	Table  string
	Chain  string
	Logger *logging.Logger
}

// ruleTag marks rules owned by this daemon so unblock can find them again.
func ruleTag(mac string) []byte {
	return []byte(brand.RuleTag + ":" + mac)
}
