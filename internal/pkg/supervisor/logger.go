package supervisor

import (
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// CustomLog represents a custom logger configuration.
type CustomLog struct {
	Level    string `yaml:"level,omitempty" json:"level,omitempty"`
	Path     string `yaml:"path,omitempty" json:"path,omitempty"`
	RollSize int    `yaml:"rollSize,omitempty" json:"rollSize,omitempty"`
	RollKeep int    `yaml:"rollKeep,omitempty" json:"rollKeep,omitempty"`

	writer io.Writer

	core         zapcore.Core
	encoder      zapcore.Encoder
	dynamicLevel zap.AtomicLevel
}

func (l *CustomLog) provision() error {
	var err error
	l.dynamicLevel, err = zap.ParseAtomicLevel(l.Level)
	if err != nil {
		return err
	}

	// stdout carries the child's output, supervisor logs never go there
	if l.writer == nil {
		if l.Path != "" {
			l.writer = &lumberjack.Logger{
				Filename:   l.Path,
				MaxSize:    l.RollSize,
				MaxBackups: l.RollKeep,
				LocalTime:  true,
				Compress:   false,
			}
		} else {
			l.writer = os.Stderr
		}
	}

	if l.encoder == nil {
		l.encoder = newDefaultLogEncoder()
	}

	l.core = zapcore.NewCore(l.encoder, zapcore.Lock(zapcore.AddSync(l.writer)), l.dynamicLevel)
	return nil
}

// Logging is the supervisor's own logger.
type Logging struct {
	CustomLog `yaml:",inline" json:",inline"`
	logger    *zap.Logger
}

// Provision builds the zap logger described by the configuration.
func (l *Logging) Provision() error {
	if err := l.CustomLog.provision(); err != nil {
		return err
	}

	logger := zap.New(l.CustomLog.core)

	// capture logs from other libraries which
	// may not be using zap logging directly
	_ = zap.RedirectStdLog(logger)

	l.logger = logger
	return nil
}

// Logger returns the provisioned logger, or a no-op logger before Provision.
func (l *Logging) Logger() *zap.Logger {
	if l == nil || l.logger == nil {
		return zap.NewNop()
	}
	return l.logger
}

// SetLevel changes the level of the running logger.
func (l *Logging) SetLevel(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return err
	}
	l.dynamicLevel.SetLevel(lvl)
	return nil
}

// CurrentLevel returns the level the running logger filters on.
func (l *Logging) CurrentLevel() zapcore.Level {
	return l.dynamicLevel.Level()
}

// Close flushes the logger and releases a rotated log file.
func (l *Logging) Close() error {
	if l == nil || l.logger == nil {
		return nil
	}

	_ = l.logger.Sync()
	if c, ok := l.writer.(io.Closer); ok && l.writer != os.Stderr {
		return c.Close()
	}
	return nil
}

func newDefaultLogEncoder() zapcore.Encoder {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = func(ts time.Time, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(ts.Local().Format("2006/01/02 15:04:05.000"))
	}
	return zapcore.NewConsoleEncoder(encCfg)
}
