package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRollingFileRotatesAndPrunes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")

	rf, err := newRollingFile(path, 64, 2, 1)
	require.NoError(t, err)
	clock := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	rf.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	t.Cleanup(func() { _ = rf.Close() })

	line := bytes.Repeat([]byte("x"), 40)
	for i := 0; i < 5; i++ {
		_, err := rf.Write(line)
		require.NoError(t, err)
	}

	require.Len(t, rf.backups(), 2)
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, int64(40), info.Size())
}

func TestInitWritesAuditToFile(t *testing.T) {
	dir := t.TempDir()
	auditPath := filepath.Join(dir, "audit", "dispatch.log")
	logPath := filepath.Join(dir, "app.log")

	require.NoError(t, Init(Config{
		Level:       "debug",
		Format:      "json",
		OutputPaths: []string{logPath},
		Audit:       AuditConfig{Enabled: true, Path: auditPath},
	}))
	t.Cleanup(func() {
		_ = Sync()
		Use(nil, nil)
	})

	Named("test").Debug("hello")
	Audit().Info("dispatch", slog.String("intent", "balance"))
	require.NoError(t, Sync())

	raw, err := os.ReadFile(auditPath)
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(raw), &entry))
	require.Equal(t, "balance", entry["intent"])
	require.Equal(t, "audit", entry["stream"])

	appLog, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.Contains(t, string(appLog), `"component":"test"`)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, parseLevel("warning"))
	require.Equal(t, slog.LevelError, parseLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}
