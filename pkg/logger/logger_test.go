package logger_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Astemirdum/library-catalog/pkg/logger"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_Sink(t *testing.T) {
	sink := filepath.Join(t.TempDir(), "library.log")
	log := logger.NewLogger(logger.Log{LogLevel: zapcore.InfoLevel, Sink: sink}, "library")

	log.Debug("hidden")
	log.Info("book added")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(sink)
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"book added"`)
	require.Contains(t, string(data), `"logger":"library"`)
	require.NotContains(t, string(data), "hidden")
}
