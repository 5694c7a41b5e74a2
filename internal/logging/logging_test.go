// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierrors "grimm.is/macwall/internal/errors"
)

func TestLogger_FieldsAndComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf, Level: LevelDebug, Format: FormatJSON, NoTimestamp: true})

	logger.WithComponent("registry").
		WithFields(map[string]any{"mac": "aa:bb:cc:dd:ee:ff", "total": 1}).
		Info("Blocked MAC")

	out := buf.String()
	assert.Contains(t, out, "Blocked MAC")
	assert.Contains(t, out, "registry")
	assert.Contains(t, out, "aa:bb:cc:dd:ee:ff")
}

func TestLogger_WithError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf, Level: LevelInfo, Format: FormatLogfmt, NoTimestamp: true})

	logger.WithError(errors.New("disk full")).Warn("Failed to save blocklist")
	assert.Contains(t, buf.String(), "disk full")

	buf.Reset()
	logger.WithError(nil).Info("no error attached")
	assert.NotContains(t, buf.String(), "error=")
}

func TestLogger_WithErrorKind(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf, Level: LevelInfo, Format: FormatLogfmt, NoTimestamp: true})

	err := ierrors.Wrap(errors.New("exit status 1"), ierrors.KindEnforcement, "nft add rule")
	logger.WithError(err).Warn("Enforcement command did not apply")
	assert.Contains(t, buf.String(), "kind=enforcement")
	assert.Contains(t, buf.String(), "nft add rule: exit status 1")

	buf.Reset()
	logger.WithError(errors.New("plain")).Warn("untagged")
	assert.NotContains(t, buf.String(), "kind=")
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf, Level: LevelError, NoTimestamp: true})

	logger.Info("hidden")
	logger.Warn("hidden too")
	assert.Empty(t, buf.String())

	logger.Error("shown")
	assert.True(t, strings.Contains(buf.String(), "shown"))
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{
		"debug":   LevelDebug,
		"":        LevelInfo,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestSetDefault(t *testing.T) {
	prev := Default()
	defer SetDefault(prev)

	var buf bytes.Buffer
	SetDefault(New(Config{Output: &buf, NoTimestamp: true}))
	Info("from package level", "key", "value")
	assert.Contains(t, buf.String(), "from package level")

	SetDefault(nil)
	assert.NotNil(t, Default())
}
