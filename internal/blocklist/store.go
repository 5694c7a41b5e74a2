// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package blocklist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"grimm.is/macwall/internal/clock"
	"grimm.is/macwall/internal/errors"
)

// Record is the on-disk blocklist document.
// LastUpdated and TotalBlocked are written for operators and ignored on load.
type Record struct {
	BlockedMACs  []string `json:"blocked_macs"`
	LastUpdated  string   `json:"last_updated"`
	TotalBlocked int      `json:"total_blocked"`
}

// Store persists the address set.
type Store interface {
	// Load returns the stored addresses. A missing record is (nil, nil).
	Load() ([]string, error)
	// Save replaces the stored record with macs.
	Save(macs []string) error
}

// FileStore keeps the record as pretty-printed JSON at a fixed path.
type FileStore struct {
	path  string
	clock clock.Clock
}

// NewFileStore returns a store for path. A nil clk uses the process clock.
func NewFileStore(path string, clk clock.Clock) *FileStore {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &FileStore{path: path, clock: clk}
}

// Path returns the record location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindPersistence, "failed to read blocklist %s", s.path)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrapf(err, errors.KindPersistence, "failed to parse blocklist %s", s.path)
	}
	return rec.BlockedMACs, nil
}

// Save writes the record through a temp file and rename, so readers never see a torn file.
func (s *FileStore) Save(macs []string) error {
	sorted := append(make([]string, 0, len(macs)), macs...)
	sort.Strings(sorted)

	rec := Record{
		BlockedMACs:  sorted,
		LastUpdated:  s.clock.Now().Format(time.DateTime),
		TotalBlocked: len(sorted),
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.KindPersistence, "failed to serialize blocklist")
	}

	if err := writeFileAtomic(s.path, data, 0o644); err != nil {
		return errors.Wrapf(err, errors.KindPersistence, "failed to write blocklist %s", s.path)
	}
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
