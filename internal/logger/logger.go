// Package logger provides Arcana's process-wide ANSI/file logger, an
// arbor-backed singleton shared across the whole pipeline.
package logger

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"
	arborcommon "github.com/ternarybob/arbor/common"
	"github.com/ternarybob/arbor/models"
)

var (
	globalLogger arbor.ILogger
	loggerMutex  sync.RWMutex
)

// GetLogger returns the global logger instance. If Setup() hasn't been
// called yet, returns a fallback console logger so that log calls made
// before CLI argument parsing completes are never silently dropped.
func GetLogger() arbor.ILogger {
	loggerMutex.RLock()
	if globalLogger != nil {
		loggerMutex.RUnlock()
		return globalLogger
	}
	loggerMutex.RUnlock()

	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	if globalLogger == nil {
		globalLogger = arbor.NewLogger().WithConsoleWriter(consoleConfig())
		globalLogger.Warn().Msg("Using fallback logger - Setup() should be called during startup")
	}
	return globalLogger
}

// Init stores the provided logger as the global singleton instance.
func Init(l arbor.ILogger) {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	globalLogger = l
}

// Setup configures the global logger for a run: console output unless
// silent, plus a rotating file under .arcana/logs when workDir is
// writable, at debug level when debug is true and otherwise info,
// raised to warn-and-above when silent is true.
func Setup(workDir string, debug, silent bool) arbor.ILogger {
	l := arbor.NewLogger()

	logsDir := filepath.Join(workDir, ".arcana", "logs")
	if err := os.MkdirAll(logsDir, 0o755); err == nil {
		l = l.WithFileWriter(fileConfig(filepath.Join(logsDir, "arcana.log")))
	}

	if !silent {
		l = l.WithConsoleWriter(consoleConfig())
	}

	l = l.WithMemoryWriter(models.WriterConfiguration{Type: models.LogWriterTypeMemory})

	level := "info"
	if debug {
		level = "debug"
	}
	if silent {
		level = "warn"
	}
	l = l.WithLevelFromString(level)

	Init(l)
	return l
}

func consoleConfig() models.WriterConfiguration {
	return models.WriterConfiguration{
		Type:       models.LogWriterTypeConsole,
		TimeFormat: "15:04:05.000",
		OutputType: models.OutputFormatLogfmt,
	}
}

func fileConfig(path string) models.WriterConfiguration {
	return models.WriterConfiguration{
		Type:       models.LogWriterTypeFile,
		FileName:   path,
		TimeFormat: "15:04:05.000",
		OutputType: models.OutputFormatJSON,
		MaxSize:    100 * 1024 * 1024,
		MaxBackups: 5,
	}
}

// Stop flushes any remaining context logs before application shutdown.
func Stop() {
	arborcommon.Stop()
}
