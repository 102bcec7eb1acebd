package nakama

import (
	"github.com/heroiclabs/nakama-common/runtime"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewRuntimeLogger returns a zap logger whose entries are written through the logger
// Nakama hands to the module, so they follow the server's log configuration.
func NewRuntimeLogger(logger runtime.Logger) *zap.Logger {
	return zap.New(&runtimeCore{LevelEnabler: zapcore.DebugLevel, logger: logger})
}

type runtimeCore struct {
	zapcore.LevelEnabler
	logger runtime.Logger
	fields []zapcore.Field
}

func (c *runtimeCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = append(append(make([]zapcore.Field, 0, len(c.fields)+len(fields)), c.fields...), fields...)
	return &clone
}

func (c *runtimeCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *runtimeCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	if ent.LoggerName != "" {
		enc.Fields["logger"] = ent.LoggerName
	}

	logger := c.logger
	if len(enc.Fields) > 0 {
		logger = logger.WithFields(enc.Fields)
	}
	switch {
	case ent.Level >= zapcore.ErrorLevel:
		logger.Error("%s", ent.Message)
	case ent.Level == zapcore.WarnLevel:
		logger.Warn("%s", ent.Message)
	case ent.Level == zapcore.InfoLevel:
		logger.Info("%s", ent.Message)
	default:
		logger.Debug("%s", ent.Message)
	}
	return nil
}

func (c *runtimeCore) Sync() error { return nil }
