package logging_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procrastinator/procrastinator/internal/logging"
)

func TestNewWritesJSONLinesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")

	logger := logging.New(logging.Options{FilePath: path, Level: slog.LevelInfo})
	logger.Info("hello", "queue", "jobs")

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(contents), `"msg":"hello"`)
	assert.Contains(t, string(contents), `"queue":"jobs"`)
}

func TestNewDefaultsToStderrOnly(t *testing.T) {
	logger := logging.New(logging.Options{Level: slog.LevelInfo})
	assert.NotNil(t, logger)
}
