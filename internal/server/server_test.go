// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package server

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/macwall/internal/blocklist"
	"grimm.is/macwall/internal/enforcement"
	"grimm.is/macwall/internal/logging"
	"grimm.is/macwall/internal/session"
)

// syncBuffer lets the test read log output while the server writes it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	srv      *Server
	registry *blocklist.Registry
	path     string
	logs     *syncBuffer
	cancel   context.CancelFunc
	done     chan error
}

func startServer(t *testing.T, path string, drain time.Duration) *harness {
	t.Helper()
	logs := &syncBuffer{}
	logger := logging.New(logging.Config{Output: logs, Level: logging.LevelDebug, Format: logging.FormatLogfmt, NoTimestamp: true})

	reg := blocklist.NewRegistry(blocklist.Options{
		Store:   blocklist.NewFileStore(path, nil),
		Gateway: enforcement.Noop{},
		Logger:  logger,
	})
	srv := New(Options{
		Addr:         "127.0.0.1:0",
		Registry:     reg,
		Handler:      session.NewHandler(session.Options{Registry: reg, Logger: logger}),
		Logger:       logger,
		DrainTimeout: drain,
	})

	ctx, cancel := context.WithCancel(context.Background())
	srv.load()
	require.NoError(t, srv.Listen())

	h := &harness{srv: srv, registry: reg, path: path, logs: logs, cancel: cancel, done: make(chan error, 1)}
	go func() { h.done <- srv.Serve(ctx) }()
	t.Cleanup(func() { h.stop(t) })
	return h
}

func (h *harness) stop(t *testing.T) {
	t.Helper()
	h.cancel()
	select {
	case err, ok := <-h.done:
		if ok {
			assert.NoError(t, err)
			close(h.done)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func dial(t *testing.T, h *harness) (net.Conn, *bufio.Reader) {
	t.Helper()
	conn, err := net.Dial("tcp", h.srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, bufio.NewReader(conn)
}

func roundTrip(t *testing.T, conn net.Conn, r *bufio.Reader, line string) string {
	t.Helper()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	_, err := fmt.Fprintf(conn, "%s\n", line)
	require.NoError(t, err)
	resp, err := r.ReadString('\n')
	require.NoError(t, err)
	return resp
}

func TestServer_Scenario(t *testing.T) {
	h := startServer(t, filepath.Join(t.TempDir(), "blocked_macs.json"), 0)
	conn, r := dial(t, h)

	assert.Equal(t, "Blocked MAC: AA:BB:CC:DD:EE:FF\n", roundTrip(t, conn, r, "AA:BB:CC:DD:EE:FF"))
	assert.Equal(t, "Blocked MACs (1): aa:bb:cc:dd:ee:ff\n", roundTrip(t, conn, r, "LIST"))
	assert.Equal(t, "MAC aa:bb:cc:dd:ee:ff: BLOCKED\n", roundTrip(t, conn, r, "CHECK aa:bb:cc:dd:ee:ff"))
	assert.Equal(t, "Removed aa:bb:cc:dd:ee:ff from blocklist\n", roundTrip(t, conn, r, "UNBLOCK aa:bb:cc:dd:ee:ff"))
	assert.Equal(t, "Blocked MACs (0): \n", roundTrip(t, conn, r, "LIST"))
}

func TestServer_ConcurrentClients(t *testing.T) {
	h := startServer(t, filepath.Join(t.TempDir(), "blocked_macs.json"), 0)

	const clients = 20
	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, err := net.Dial("tcp", h.srv.Addr().String())
			if !assert.NoError(t, err) {
				return
			}
			defer conn.Close()
			_ = conn.SetDeadline(time.Now().Add(10 * time.Second))
			r := bufio.NewReader(conn)

			mac := fmt.Sprintf("02:00:00:00:00:%02x", i)
			fmt.Fprintf(conn, "%s\n", mac)
			resp, err := r.ReadString('\n')
			assert.NoError(t, err)
			assert.Equal(t, "Blocked MAC: "+mac+"\n", resp)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, clients, h.registry.Count())

	stored, err := blocklist.NewFileStore(h.path, nil).Load()
	require.NoError(t, err)
	assert.ElementsMatch(t, h.registry.List(), stored)
}

func TestServer_ShutdownSavesAndLogsStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocked_macs.json")
	h := startServer(t, path, 0)
	conn, r := dial(t, h)
	roundTrip(t, conn, r, "aa:bb:cc:dd:ee:ff")

	// Remove the record so the final save is observable.
	require.NoError(t, os.Remove(path))
	h.stop(t)

	assert.Contains(t, h.logs.String(), "Final stats: 1 MACs blocked")
	assert.Contains(t, h.logs.String(), "sessions_served=1")
	stored, err := blocklist.NewFileStore(path, nil).Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"aa:bb:cc:dd:ee:ff"}, stored)

	_, err = net.DialTimeout("tcp", h.srv.Addr().String(), time.Second)
	assert.Error(t, err, "listener must be closed after shutdown")
}

func TestServer_ShutdownClosesOpenSessions(t *testing.T) {
	h := startServer(t, filepath.Join(t.TempDir(), "blocked_macs.json"), 0)
	conn, r := dial(t, h)
	roundTrip(t, conn, r, "LIST")

	h.stop(t)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err := r.ReadString('\n')
	assert.Error(t, err, "open session should be closed by shutdown")
}

func TestServer_DrainWaitsForSessions(t *testing.T) {
	h := startServer(t, filepath.Join(t.TempDir(), "blocked_macs.json"), 5*time.Second)
	conn, r := dial(t, h)
	roundTrip(t, conn, r, "LIST")

	h.cancel()

	// The session still answers during the drain window.
	assert.Equal(t, "Blocked MAC: aa:bb:cc:dd:ee:ff\n", roundTrip(t, conn, r, "aa:bb:cc:dd:ee:ff"))
	conn.Close()

	h.stop(t)
	assert.Contains(t, h.logs.String(), "Final stats: 1 MACs blocked")
}

func TestServer_LoadsExistingBlocklist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocked_macs.json")
	require.NoError(t, blocklist.NewFileStore(path, nil).Save([]string{"11:22:33:44:55:66"}))

	h := startServer(t, path, 0)
	conn, r := dial(t, h)
	assert.Equal(t, "MAC 11:22:33:44:55:66: BLOCKED\n", roundTrip(t, conn, r, "CHECK 11:22:33:44:55:66"))
}

func TestServer_CorruptBlocklistStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocked_macs.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	h := startServer(t, path, 0)
	conn, r := dial(t, h)
	assert.Equal(t, "Blocked MACs (0): \n", roundTrip(t, conn, r, "LIST"))
	assert.Contains(t, h.logs.String(), "Failed to load blocklist")
}

func TestServer_ListenFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	reg := blocklist.NewRegistry(blocklist.Options{Store: blocklist.NewFileStore(filepath.Join(t.TempDir(), "b.json"), nil)})
	srv := New(Options{Addr: ln.Addr().String(), Registry: reg, Logger: logging.New(logging.Config{Output: &bytes.Buffer{}})})
	assert.Error(t, srv.Run(context.Background()))
}

func TestServer_ServeBeforeListen(t *testing.T) {
	srv := New(Options{Registry: blocklist.NewRegistry(blocklist.Options{})})
	assert.Error(t, srv.Serve(context.Background()))
}
