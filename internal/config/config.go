// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config defines the daemon configuration and loads it from HCL, JSON or YAML.
package config

import (
	"time"

	"grimm.is/macwall/internal/install"
)

// CurrentSchemaVersion is written by EncodeHCL and accepted by Validate.
const CurrentSchemaVersion = "1.0"

// Enforcement backends.
const (
	BackendExec     = "exec"
	BackendNFTables = "nftables"
	BackendNone     = "none"
)

// Defaults matching the historical daemon.
const (
	DefaultHost           = "127.0.0.1"
	DefaultPort           = 9000
	DefaultShell          = "sh"
	DefaultBlockCommand   = "nft add rule inet filter input ether saddr {mac} drop"
	DefaultUnblockCommand = "nft delete rule inet filter input ether saddr {mac} drop"
	DefaultTimeout        = "5s"
	DefaultFamily         = "inet"
	DefaultTable          = "filter"
	DefaultChain          = "input"
	DefaultMaxLineBytes   = 64 * 1024
	DefaultMetricsListen  = "127.0.0.1:9100"
)

// Config is the top-level daemon configuration.
type Config struct {
	SchemaVersion string `hcl:"schema_version,optional" json:"schema_version,omitempty" yaml:"schema_version,omitempty"`
	PIDFile       string `hcl:"pid_file,optional" json:"pid_file,omitempty" yaml:"pid_file,omitempty"`

	Listen      *ListenConfig      `hcl:"listen,block" json:"listen,omitempty" yaml:"listen,omitempty"`
	Blocklist   *BlocklistConfig   `hcl:"blocklist,block" json:"blocklist,omitempty" yaml:"blocklist,omitempty"`
	Enforcement *EnforcementConfig `hcl:"enforcement,block" json:"enforcement,omitempty" yaml:"enforcement,omitempty"`
	Session     *SessionConfig     `hcl:"session,block" json:"session,omitempty" yaml:"session,omitempty"`
	Logging     *LoggingConfig     `hcl:"logging,block" json:"logging,omitempty" yaml:"logging,omitempty"`
	Metrics     *MetricsConfig     `hcl:"metrics,block" json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Audit       *AuditConfig       `hcl:"audit,block" json:"audit,omitempty" yaml:"audit,omitempty"`
}

// ListenConfig is the TCP command endpoint.
type ListenConfig struct {
	Host string `hcl:"host,optional" json:"host,omitempty" yaml:"host,omitempty"`
	Port int    `hcl:"port,optional" json:"port,omitempty" yaml:"port,omitempty"`
}

// BlocklistConfig locates the persisted record.
type BlocklistConfig struct {
	Path string `hcl:"path,optional" json:"path,omitempty" yaml:"path,omitempty"`
}

// EnforcementConfig selects how blocks reach the packet filter.
//
// The exec backend runs BlockCommand/UnblockCommand through Shell with {mac}
// substituted. The nftables backend talks netlink directly and uses Family,
// Table and Chain.
type EnforcementConfig struct {
	Backend        string `hcl:"backend,optional" json:"backend,omitempty" yaml:"backend,omitempty"`
	Shell          string `hcl:"shell,optional" json:"shell,omitempty" yaml:"shell,omitempty"`
	BlockCommand   string `hcl:"block_command,optional" json:"block_command,omitempty" yaml:"block_command,omitempty"`
	UnblockCommand string `hcl:"unblock_command,optional" json:"unblock_command,omitempty" yaml:"unblock_command,omitempty"`
	Timeout        string `hcl:"timeout,optional" json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Family         string `hcl:"family,optional" json:"family,omitempty" yaml:"family,omitempty"`
	Table          string `hcl:"table,optional" json:"table,omitempty" yaml:"table,omitempty"`
	Chain          string `hcl:"chain,optional" json:"chain,omitempty" yaml:"chain,omitempty"`
}

// SessionConfig tunes per-connection handling.
type SessionConfig struct {
	// DrainTimeout bounds how long shutdown waits for open sessions. Zero means no wait.
	DrainTimeout string `hcl:"drain_timeout,optional" json:"drain_timeout,omitempty" yaml:"drain_timeout,omitempty"`
	MaxLineBytes int    `hcl:"max_line_bytes,optional" json:"max_line_bytes,omitempty" yaml:"max_line_bytes,omitempty"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level  string        `hcl:"level,optional" json:"level,omitempty" yaml:"level,omitempty"`
	Format string        `hcl:"format,optional" json:"format,omitempty" yaml:"format,omitempty"`
	Syslog *SyslogConfig `hcl:"syslog,block" json:"syslog,omitempty" yaml:"syslog,omitempty"`
}

// SyslogConfig mirrors logging.SyslogConfig for file decoding.
type SyslogConfig struct {
	Enabled  bool   `hcl:"enabled,optional" json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Host     string `hcl:"host,optional" json:"host,omitempty" yaml:"host,omitempty"`
	Port     int    `hcl:"port,optional" json:"port,omitempty" yaml:"port,omitempty"`
	Protocol string `hcl:"protocol,optional" json:"protocol,omitempty" yaml:"protocol,omitempty"`
	Tag      string `hcl:"tag,optional" json:"tag,omitempty" yaml:"tag,omitempty"`
	Facility int    `hcl:"facility,optional" json:"facility,omitempty" yaml:"facility,omitempty"`
}

// MetricsConfig enables the HTTP status listener (/metrics, /healthz, /api/v1).
type MetricsConfig struct {
	Enabled bool   `hcl:"enabled,optional" json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Listen  string `hcl:"listen,optional" json:"listen,omitempty" yaml:"listen,omitempty"`
}

// AuditConfig enables the SQLite audit trail.
type AuditConfig struct {
	Enabled bool   `hcl:"enabled,optional" json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Path    string `hcl:"path,optional" json:"path,omitempty" yaml:"path,omitempty"`
}

// DefaultConfig returns a fully populated configuration.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset field. Booleans are left alone.
func (c *Config) ApplyDefaults() {
	if c.SchemaVersion == "" {
		c.SchemaVersion = CurrentSchemaVersion
	}
	if c.PIDFile == "" {
		c.PIDFile = install.GetPIDFile()
	}

	if c.Listen == nil {
		c.Listen = &ListenConfig{}
	}
	if c.Listen.Host == "" {
		c.Listen.Host = DefaultHost
	}
	if c.Listen.Port == 0 {
		c.Listen.Port = DefaultPort
	}

	if c.Blocklist == nil {
		c.Blocklist = &BlocklistConfig{}
	}
	if c.Blocklist.Path == "" {
		c.Blocklist.Path = install.GetBlocklistPath()
	}

	if c.Enforcement == nil {
		c.Enforcement = &EnforcementConfig{}
	}
	e := c.Enforcement
	if e.Backend == "" {
		e.Backend = BackendExec
	}
	if e.Shell == "" {
		e.Shell = DefaultShell
	}
	if e.BlockCommand == "" {
		e.BlockCommand = DefaultBlockCommand
	}
	if e.UnblockCommand == "" {
		e.UnblockCommand = DefaultUnblockCommand
	}
	if e.Timeout == "" {
		e.Timeout = DefaultTimeout
	}
	if e.Family == "" {
		e.Family = DefaultFamily
	}
	if e.Table == "" {
		e.Table = DefaultTable
	}
	if e.Chain == "" {
		e.Chain = DefaultChain
	}

	if c.Session == nil {
		c.Session = &SessionConfig{}
	}
	if c.Session.DrainTimeout == "" {
		c.Session.DrainTimeout = "0s"
	}
	if c.Session.MaxLineBytes == 0 {
		c.Session.MaxLineBytes = DefaultMaxLineBytes
	}

	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	if c.Metrics == nil {
		c.Metrics = &MetricsConfig{}
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = DefaultMetricsListen
	}

	if c.Audit == nil {
		c.Audit = &AuditConfig{}
	}
	if c.Audit.Path == "" {
		c.Audit.Path = install.GetAuditPath()
	}
}

// TimeoutDuration returns the per-invocation enforcement timeout.
func (e *EnforcementConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(e.Timeout)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultTimeout)
	}
	return d
}

// DrainDuration returns the shutdown drain bound; zero disables draining.
func (s *SessionConfig) DrainDuration() time.Duration {
	d, err := time.ParseDuration(s.DrainTimeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}
