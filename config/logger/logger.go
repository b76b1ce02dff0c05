// Package logger assembles the process wide zap logger: one encoder, info
// and error streams split across stdout and stderr, and a level that can be
// retuned on a running process through config file edits.
package logger

import (
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	config "github.com/fogsched/fogsched/config/utils"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// level backs every core; SetLevel retunes it without a rebuild.
var level zap.AtomicLevel

// Build constructs the logger, installs it as the zap global and arms the
// config watcher so logger.level changes take effect live.
func Build(cfg *config.Logger) *zap.Logger {
	parsed, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		log.Fatalf("Bad logger.level %q: %v", cfg.Level, err)
	}
	level = parsed

	encoder := newEncoder(cfg)

	// Errors always reach stderr; everything below travels on stdout and
	// obeys the tunable level.
	errors := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= zapcore.ErrorLevel
	})
	routine := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l < zapcore.ErrorLevel && level.Enabled(l)
	})

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), routine),
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), errors),
	)

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}
	if !cfg.DisableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	built := zap.New(core, opts...)
	zap.ReplaceGlobals(built)

	viper.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&fsnotify.Create == 0 {
			SetLevel(viper.GetString("logger.level"))
		}
	})
	viper.WatchConfig()

	return built
}

func newEncoder(cfg *config.Logger) zapcore.Encoder {
	if cfg.Encoding == "console" {
		return zapcore.NewConsoleEncoder(cfg.EncoderConfig)
	}
	return zapcore.NewJSONEncoder(cfg.EncoderConfig)
}

// SetLevel retunes the shared level; unparseable input keeps the current one.
func SetLevel(value string) {
	parsed, err := zapcore.ParseLevel(value)
	if err != nil {
		zap.L().Error("Couldn't parse logger level", zap.String("value", value), zap.Error(err))
		return
	}
	level.SetLevel(parsed)
	zap.L().Info("Logger level updated", zap.String("value", value))
}
