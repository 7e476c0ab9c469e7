package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns the process logger. Debug and info entries go to stdout,
// warn and above go to stderr.
func New(mode string) *zap.Logger {
	dev := strings.EqualFold(mode, "dev") || strings.EqualFold(mode, "development")

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encCfg)
	if dev {
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}

	minLevel := zapcore.InfoLevel
	if dev {
		minLevel = zapcore.DebugLevel
	}

	lowLevels := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= minLevel && l < zapcore.WarnLevel
	})
	highLevels := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= zapcore.WarnLevel
	})

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), lowLevels),
		zapcore.NewCore(encoder.Clone(), zapcore.Lock(os.Stderr), highLevels),
	)
	return zap.New(core, zap.AddCaller())
}

// AuditLog is the append-only record of stage transitions, one JSON line each.
type AuditLog struct {
	log   *zap.Logger
	close func()
}

// OpenAuditLog opens (or creates) the audit file in append mode.
func OpenAuditLog(path string) (*AuditLog, error) {
	sink, closeFn, err := zap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log %q: %w", path, err)
	}
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		MessageKey:     "event",
		LevelKey:       "level",
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		LineEnding:     zapcore.DefaultLineEnding,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, zapcore.InfoLevel)
	return &AuditLog{log: zap.New(core), close: closeFn}, nil
}

// NewAuditLog wraps an existing logger; used where the caller owns the sink.
func NewAuditLog(l *zap.Logger) *AuditLog {
	return &AuditLog{log: l, close: func() {}}
}

// Transition records that filename entered stage.
func (a *AuditLog) Transition(fileID, filename, stage string) {
	a.log.Info("transition",
		zap.String("stage", stage),
		zap.String("filename", filename),
		zap.String("file_id", fileID),
		zap.Time("at", time.Now()),
	)
}

// Failure records a stage error.
func (a *AuditLog) Failure(fileID, filename, stage string, err error) {
	a.log.Error("stage_failed",
		zap.String("stage", stage),
		zap.String("filename", filename),
		zap.String("file_id", fileID),
		zap.Time("at", time.Now()),
		zap.Error(err),
	)
}

func (a *AuditLog) Close() error {
	err := a.log.Sync()
	a.close()
	return err
}
