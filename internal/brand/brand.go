// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package brand holds the product identity loaded from brand.json at compile time.
// Directory defaults live here; internal/install resolves them against the environment.
package brand

import (
	_ "embed"
	"encoding/json"
)

//go:embed brand.json
var brandJSON []byte

// Brand holds all branding information
type Brand struct {
	Name              string `json:"name"`
	LowerName         string `json:"lowerName"`
	Vendor            string `json:"vendor"`
	Description       string `json:"description"`
	Tagline           string `json:"tagline"`
	ConfigEnvPrefix   string `json:"configEnvPrefix"`
	DefaultConfigDir  string `json:"defaultConfigDir"`
	DefaultStateDir   string `json:"defaultStateDir"`
	DefaultLogDir     string `json:"defaultLogDir"`
	DefaultRunDir     string `json:"defaultRunDir"`
	BinaryName        string `json:"binaryName"`
	ConfigFileName    string `json:"configFileName"`
	BlocklistFileName string `json:"blocklistFileName"`
	AuditFileName     string `json:"auditFileName"`
	RuleTag           string `json:"ruleTag"`
	Copyright         string `json:"copyright"`
	License           string `json:"license"`
}

var b Brand

func init() {
	if err := json.Unmarshal(brandJSON, &b); err != nil {
		panic("failed to parse brand.json: " + err.Error())
	}

	Name = b.Name
	LowerName = b.LowerName
	Vendor = b.Vendor
	Description = b.Description
	Tagline = b.Tagline
	ConfigEnvPrefix = b.ConfigEnvPrefix
	BinaryName = b.BinaryName
	ConfigFileName = b.ConfigFileName
	BlocklistFileName = b.BlocklistFileName
	AuditFileName = b.AuditFileName
	RuleTag = b.RuleTag
	Copyright = b.Copyright
	License = b.License
}

// Exported variables for convenience
var (
	Name              string
	LowerName         string
	Vendor            string
	Description       string
	Tagline           string
	ConfigEnvPrefix   string
	BinaryName        string
	ConfigFileName    string
	BlocklistFileName string
	AuditFileName     string
	RuleTag           string
	Copyright         string
	License           string

	// Version is set at build time via -ldflags
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Get returns the full Brand struct
func Get() Brand {
	return b
}

// VersionString returns the human readable version line printed by `macwall version`.
func VersionString() string {
	return Name + " " + Version + " (commit " + GitCommit + ", built " + BuildTime + ")"
}
