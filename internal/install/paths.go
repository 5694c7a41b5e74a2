// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package install

import (
	"os"
	"path/filepath"

	"grimm.is/macwall/internal/brand"
)

// Exported variables for convenience
var (
	DefaultConfigDir string
	DefaultStateDir  string
	DefaultLogDir    string
	DefaultRunDir    string

	// Build-time path overrides (set via -ldflags)
	BuildDefaultConfigDir = ""
	BuildDefaultStateDir  = ""
	BuildDefaultLogDir    = ""
	BuildDefaultRunDir    = ""
)

func init() {
	b := brand.Get()
	DefaultConfigDir = pick(BuildDefaultConfigDir, b.DefaultConfigDir)
	DefaultStateDir = pick(BuildDefaultStateDir, b.DefaultStateDir)
	DefaultLogDir = pick(BuildDefaultLogDir, b.DefaultLogDir)
	DefaultRunDir = pick(BuildDefaultRunDir, b.DefaultRunDir)
}

func pick(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}

// resolve applies the lookup order shared by every directory:
// <PREFIX>_<NAME>_DIR > <PREFIX>_PREFIX/<sub> > fallback.
func resolve(name, sub, fallback string) string {
	if dir := os.Getenv(brand.ConfigEnvPrefix + "_" + name + "_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(brand.ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, sub)
	}
	return fallback
}

// GetStateDir returns the state directory.
// Priority: MACWALL_STATE_DIR > MACWALL_PREFIX/state > DefaultStateDir
func GetStateDir() string {
	return resolve("STATE", "state", DefaultStateDir)
}

// GetLogDir returns the log directory.
// Priority: MACWALL_LOG_DIR > MACWALL_PREFIX/log > DefaultLogDir
func GetLogDir() string {
	return resolve("LOG", "log", DefaultLogDir)
}

// GetConfigDir returns the config directory.
// Priority: MACWALL_CONFIG_DIR > MACWALL_PREFIX/config > DefaultConfigDir
func GetConfigDir() string {
	return resolve("CONFIG", "config", DefaultConfigDir)
}

// GetRunDir returns the runtime directory for PID files.
// Priority: MACWALL_RUN_DIR > MACWALL_PREFIX/run > DefaultRunDir
func GetRunDir() string {
	return resolve("RUN", "run", DefaultRunDir)
}

// GetConfigFile returns the default configuration file path.
func GetConfigFile() string {
	return filepath.Join(GetConfigDir(), brand.ConfigFileName)
}

// GetBlocklistPath returns the default location of the persisted blocklist record.
func GetBlocklistPath() string {
	return filepath.Join(GetStateDir(), brand.BlocklistFileName)
}

// GetAuditPath returns the default location of the audit database.
func GetAuditPath() string {
	return filepath.Join(GetStateDir(), brand.AuditFileName)
}

// GetPIDFile returns the PID file written by `macwall serve`.
func GetPIDFile() string {
	return filepath.Join(GetRunDir(), brand.LowerName+".pid")
}
