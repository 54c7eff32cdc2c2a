package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu  sync.RWMutex
	Log = zap.NewNop().Sugar()
)

// Init installs the global logger at the given level. CHATTERBOX_ENV=dev
// switches to a human readable console encoder; anything else logs JSON.
func Init(level string) {
	lvl := parseLevel(level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if strings.EqualFold(os.Getenv("CHATTERBOX_ENV"), "dev") {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stdout), lvl)
	l := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()

	mu.Lock()
	Log = l
	mu.Unlock()
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func get() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return Log
}

func Debug(msg string, kv ...interface{}) { get().Debugw(msg, kv...) }
func Info(msg string, kv ...interface{})  { get().Infow(msg, kv...) }
func Warn(msg string, kv ...interface{})  { get().Warnw(msg, kv...) }
func Error(msg string, kv ...interface{}) { get().Errorw(msg, kv...) }

// LogConfigSummary prints a titled block of "key: value" lines at info level.
func LogConfigSummary(title string, items []string) {
	get().Infow(title, "items", items)
}

// Sync flushes buffered entries. Errors from syncing stdout are ignored.
func Sync() {
	_ = get().Sync()
}
