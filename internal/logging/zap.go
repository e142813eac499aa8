package logging

import (
	"fmt"
	"os"

	"github.com/arloliu/jetpush/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapConfig configures a zap logger built by NewZapFromConfig.
type ZapConfig struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string `yaml:"level" envconfig:"LOG_LEVEL" default:"info"`

	// Format is json or console. Defaults to json.
	Format string `yaml:"format" envconfig:"LOG_FORMAT" default:"json"`

	// OutputPath is stdout, stderr or a file path. Defaults to stdout.
	OutputPath string `yaml:"outputPath" envconfig:"LOG_OUTPUT_PATH" default:"stdout"`
}

// ZapLogger implements types.Logger on top of zap.SugaredLogger.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// Compile-time assertion that ZapLogger implements Logger.
var _ types.Logger = (*ZapLogger)(nil)

// NewZap wraps an existing zap logger.
//
// Parameters:
//   - logger: The zap logger to wrap; nil selects zap.NewNop()
//
// Returns:
//   - *ZapLogger: Logger forwarding to logger.Sugar()
func NewZap(logger *zap.Logger) *ZapLogger {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ZapLogger{sugar: logger.Sugar()}
}

// NewZapFromConfig builds a zap logger from cfg.
//
// Parameters:
//   - cfg: Level, format and output settings
//
// Returns:
//   - *ZapLogger: Configured logger
//   - error: Invalid level or unopenable output file
func NewZapFromConfig(cfg ZapConfig) (*ZapLogger, error) {
	levelName := cfg.Level
	if levelName == "" {
		levelName = "info"
	}
	level, err := zapcore.ParseLevel(levelName)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	var output zapcore.WriteSyncer
	switch cfg.OutputPath {
	case "stdout", "":
		output = zapcore.AddSync(os.Stdout)
	case "stderr":
		output = zapcore.AddSync(os.Stderr)
	default:
		file, err := os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = zapcore.AddSync(file)
	}

	core := zapcore.NewCore(encoder, output, level)

	return NewZap(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))), nil
}

// Debug logs a debug-level message with optional key-value pairs.
func (l *ZapLogger) Debug(msg string, keysAndValues ...any) {
	l.sugar.Debugw(msg, keysAndValues...)
}

// Info logs an info-level message with optional key-value pairs.
func (l *ZapLogger) Info(msg string, keysAndValues ...any) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Warn logs a warning-level message with optional key-value pairs.
func (l *ZapLogger) Warn(msg string, keysAndValues ...any) {
	l.sugar.Warnw(msg, keysAndValues...)
}

// Error logs an error-level message with optional key-value pairs.
func (l *ZapLogger) Error(msg string, keysAndValues ...any) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// Fatal logs a fatal-level message and exits.
func (l *ZapLogger) Fatal(msg string, keysAndValues ...any) {
	l.sugar.Fatalw(msg, keysAndValues...)
}

// Sync flushes buffered log entries.
func (l *ZapLogger) Sync() error {
	return l.sugar.Sync()
}
