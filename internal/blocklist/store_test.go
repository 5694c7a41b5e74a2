// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package blocklist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/macwall/internal/clock"
	"grimm.is/macwall/internal/errors"
)

func TestFileStore_MissingFile(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "none", "blocked_macs.json"), nil)
	macs, err := s.Load()
	assert.NoError(t, err)
	assert.Empty(t, macs)
}

func TestFileStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "blocked_macs.json")
	clk := clock.NewMockClock(time.Date(2026, 3, 4, 5, 6, 7, 0, time.Local))
	s := NewFileStore(path, clk)

	require.NoError(t, s.Save([]string{"bb:bb:bb:bb:bb:bb", "aa:aa:aa:aa:aa:aa"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var rec Record
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, []string{"aa:aa:aa:aa:aa:aa", "bb:bb:bb:bb:bb:bb"}, rec.BlockedMACs)
	assert.Equal(t, 2, rec.TotalBlocked)
	assert.Equal(t, "2026-03-04 05:06:07", rec.LastUpdated)

	macs, err := s.Load()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"aa:aa:aa:aa:aa:aa", "bb:bb:bb:bb:bb:bb"}, macs)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestFileStore_EmptyListIsArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocked_macs.json")
	s := NewFileStore(path, nil)
	require.NoError(t, s.Save(nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"blocked_macs": []`)
	assert.Contains(t, string(data), `"total_blocked": 0`)
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocked_macs.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	macs, err := NewFileStore(path, nil).Load()
	assert.Empty(t, macs)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindPersistence))
}

func TestFileStore_IgnoresMetadataOnLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocked_macs.json")
	doc := `{"blocked_macs": ["aa:bb:cc:dd:ee:ff"], "last_updated": "garbage", "total_blocked": 99}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	macs, err := NewFileStore(path, nil).Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"aa:bb:cc:dd:ee:ff"}, macs)
}

func TestFileStore_SaveFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	// Parent is a regular file, so the directory cannot be created.
	err := NewFileStore(filepath.Join(blocker, "blocked_macs.json"), nil).Save([]string{"aa:bb:cc:dd:ee:ff"})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindPersistence))
}
