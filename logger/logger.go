package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log 在 Init 之前是一个 no-op logger，测试和库代码可以直接使用
var Log = zap.NewNop().Sugar()

// Init builds the production logger at the given level ("debug", "info", "warn", "error").
func Init(level string) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		panic("invalid log level " + level + ": " + err.Error())
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		panic("failed to initialize zap logger: " + err.Error())
	}
	Log = logger.Sugar()
}

// Sync flushes buffered entries, ignoring the error zap returns for stdout/stderr.
func Sync() {
	_ = Log.Sync()
}
