package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew_WritesJSONWithServiceFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	log, err := New(&Config{
		Level:   "debug",
		Format:  "json",
		Output:  path,
		Service: "invoicing-backend",
		Env:     "testing",
	})
	require.NoError(t, err)

	log.Info("invoice created", zap.String("invoice_number", "INV-2026-0001"))
	log.Debug("counter allocated", zap.Int64("seq", 1))
	require.NoError(t, log.Sync())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	require.Len(t, entries, 2)

	assert.Equal(t, "invoice created", entries[0]["msg"])
	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, "INV-2026-0001", entries[0]["invoice_number"])
	assert.Equal(t, "invoicing-backend", entries[0]["service"])
	assert.Equal(t, "testing", entries[0]["env"])
	assert.Equal(t, "debug", entries[1]["level"])
}

func TestNew_Defaults(t *testing.T) {
	log, err := New(nil)
	require.NoError(t, err)
	assert.NotNil(t, log)

	log, err = New(&Config{Format: "console", Output: "stderr"})
	require.NoError(t, err)
	assert.NotNil(t, log)
}

func TestNew_UnwritableFile(t *testing.T) {
	_, err := New(&Config{Output: filepath.Join(t.TempDir(), "missing", "app.log")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open log file")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"fatal", zapcore.FatalLevel},
		{"verbose", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.level))
		})
	}
}
