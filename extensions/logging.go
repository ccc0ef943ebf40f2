package extensions

import (
	"context"
	"time"

	features "github.com/pumped-fn/pumped-features"
	"go.uber.org/zap"
)

// LoggingExtension logs all operations
type LoggingExtension struct {
	features.BaseExtension
	logger *zap.Logger
}

// NewLoggingExtension creates a new logging extension
func NewLoggingExtension(logger *zap.Logger) *LoggingExtension {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingExtension{
		BaseExtension: features.NewBaseExtension("logging"),
		logger:        logger,
	}
}

func (e *LoggingExtension) Wrap(ctx context.Context, next func() (any, error), op *features.Operation) (any, error) {
	start := time.Now()
	fields := operationFields(op)
	e.logger.Debug(string(op.Kind)+" starting", fields...)

	result, err := next()

	fields = append(fields, zap.Duration("duration", time.Since(start)))
	if err != nil {
		e.logger.Debug(string(op.Kind)+" failed", append(fields, zap.Error(err))...)
	} else {
		e.logger.Debug(string(op.Kind)+" completed", fields...)
	}

	return result, err
}

func (e *LoggingExtension) OnError(err error, op *features.Operation, session *features.Session) {
	e.logger.Error(string(op.Kind)+" failed", append(operationFields(op), zap.Error(err))...)
}

func operationFields(op *features.Operation) []zap.Field {
	fields := make([]zap.Field, 0, 5)
	fields = append(fields, zap.String("operation", string(op.Kind)))
	if op.Entity != nil {
		fields = append(fields,
			zap.String("entity_type", op.Entity.Type().Name()),
			zap.String("entity", op.Entity.Name()),
		)
	}
	if op.Feature != nil {
		fields = append(fields, zap.String("feature", op.Feature.Name()))
	}
	if op.Source != nil {
		fields = append(fields, zap.String("source", op.Source.Name()))
	}
	return fields
}
