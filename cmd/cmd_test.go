// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"grimm.is/macwall/internal/audit"
	"grimm.is/macwall/internal/blocklist"
	"grimm.is/macwall/internal/config"
	"grimm.is/macwall/internal/enforcement"
	"grimm.is/macwall/internal/logging"
	"grimm.is/macwall/internal/metrics"
	"grimm.is/macwall/internal/session"
)

func quietLogger() *logging.Logger {
	cfg := logging.DefaultConfig()
	cfg.Output = &bytes.Buffer{}
	return logging.New(cfg)
}

func TestPIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "macwall.pid")
	require.NoError(t, writePIDFile(path))

	pid, err := readPIDFile(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestReadPIDFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := readPIDFile(filepath.Join(dir, "missing.pid"))
	assert.ErrorContains(t, err, "is daemon running")

	bad := filepath.Join(dir, "bad.pid")
	require.NoError(t, os.WriteFile(bad, []byte("abc"), 0o644))
	_, err = readPIDFile(bad)
	assert.ErrorContains(t, err, "invalid PID")
}

func TestLocaleTag(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")

	t.Setenv("LANG", "de_DE.UTF-8")
	assert.Equal(t, language.MustParse("de-DE"), localeTag())

	t.Setenv("LANG", "")
	assert.Equal(t, language.English, localeTag())

	t.Setenv("LC_ALL", "fr_FR@euro")
	assert.Equal(t, language.MustParse("fr-FR"), localeTag())
}

func TestLoadServeConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	opts := ServeOptions{
		ConfigFile: filepath.Join(dir, "absent.hcl"),
		Host:       "0.0.0.0",
		Port:       9100,
		Blocklist:  filepath.Join(dir, "list.json"),
		Backend:    config.BackendNone,
	}

	cfg, err := loadServeConfig(opts)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Listen.Host)
	assert.Equal(t, 9100, cfg.Listen.Port)
	assert.Equal(t, opts.Blocklist, cfg.Blocklist.Path)
	assert.Equal(t, config.BackendNone, cfg.Enforcement.Backend)
}

func TestLoadServeConfigExplicitMissing(t *testing.T) {
	_, err := loadServeConfig(ServeOptions{
		ConfigFile: filepath.Join(t.TempDir(), "absent.hcl"),
		Explicit:   true,
	})
	assert.Error(t, err)
}

func TestLoadServeConfigRejectsBadOverride(t *testing.T) {
	_, err := loadServeConfig(ServeOptions{
		ConfigFile: filepath.Join(t.TempDir(), "absent.hcl"),
		Port:       70000,
	})
	assert.Error(t, err)
}

func TestBuildGatewayFallsBackToUnavailable(t *testing.T) {
	cfg := config.DefaultConfig().Enforcement
	cfg.Backend = "bogus"

	g := buildGateway(cfg, quietLogger(), metrics.New())
	assert.Equal(t, enforcement.Unavailable{Backend: "bogus"}, g)
	assert.Equal(t, enforcement.ToolUnavailable, g.Block(context.Background(), "aa:bb:cc:dd:ee:ff"))
}

func TestBuildGatewayNone(t *testing.T) {
	cfg := config.DefaultConfig().Enforcement
	cfg.Backend = config.BackendNone

	g := buildGateway(cfg, quietLogger(), nil)
	assert.Equal(t, config.BackendNone, g.Name())
}

// startDaemon serves real sessions on a loopback listener.
func startDaemon(t *testing.T) string {
	t.Helper()
	logger := quietLogger()
	reg := blocklist.NewRegistry(blocklist.Options{
		Store:   blocklist.NewFileStore(filepath.Join(t.TempDir(), "blocked_macs.json"), nil),
		Gateway: enforcement.Noop{},
		Logger:  logger,
	})
	h := session.NewHandler(session.Options{Registry: reg, Logger: logger})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go h.Serve(context.Background(), conn)
		}
	}()
	return ln.Addr().String()
}

func TestSendLines(t *testing.T) {
	addr := startDaemon(t)
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	in := strings.NewReader("AA:BB:CC:DD:EE:FF\n\nCHECK aa:bb:cc:dd:ee:ff\nLIST\nnot-a-mac\n")
	var out bytes.Buffer
	require.NoError(t, sendLines(conn, in, &out, ""))

	assert.Equal(t,
		"Blocked MAC: AA:BB:CC:DD:EE:FF\n"+
			"MAC aa:bb:cc:dd:ee:ff: BLOCKED\n"+
			"Blocked MACs (1): aa:bb:cc:dd:ee:ff\n"+
			"Invalid MAC address format: not-a-mac\n",
		out.String())
}

func TestSendLinesPrompt(t *testing.T) {
	addr := startDaemon(t)
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	var out bytes.Buffer
	require.NoError(t, sendLines(conn, strings.NewReader("LIST\n"), &out, "> "))
	assert.Equal(t, "> Blocked MACs (0): \n> ", out.String())
}

func TestSendLinesClosedConnection(t *testing.T) {
	client, srv := net.Pipe()
	srv.Close()
	defer client.Close()

	err := sendLines(client, strings.NewReader("LIST\n"), &bytes.Buffer{}, "")
	assert.Error(t, err)
}

func TestPrintEvents(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printEvents(&out, nil))
	assert.Equal(t, "No audit events.\n", out.String())

	out.Reset()
	events := []audit.Event{
		{Timestamp: time.Now(), Type: audit.EventBlock, MAC: "aa:bb:cc:dd:ee:ff", Result: "added", Peer: "127.0.0.1:5000"},
		{Timestamp: time.Now(), Type: audit.EventSystemStart, Detail: "listen=127.0.0.1:9000"},
	}
	require.NoError(t, printEvents(&out, events))

	text := out.String()
	assert.Contains(t, text, "aa:bb:cc:dd:ee:ff")
	assert.Contains(t, text, "listen=127.0.0.1:9000")
	assert.Contains(t, text, "2 events")
}

func TestCheckConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "macwall.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
listen {
  host = "127.0.0.1"
  port = 9000
}
`), 0o644))
	assert.NoError(t, RunCheckConfig([]string{path}))

	bad := filepath.Join(t.TempDir(), "bad.hcl")
	require.NoError(t, os.WriteFile(bad, []byte(`listen { port = 70000 }`), 0o644))
	assert.Error(t, RunCheckConfig([]string{bad}))
}
