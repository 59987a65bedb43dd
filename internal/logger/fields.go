package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Field keys shared by every package that logs about the model or a resume.
const (
	FieldProvider = "ai_provider"
	FieldModel    = "ai_model"
	FieldDocument = "document"
	FieldUniqueID = "unique_id"
)

type StringField struct {
	Key   string
	Value string
}

// StringFields builds zap string fields, skipping pairs whose key or value is
// blank after trimming.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		key, value := strings.TrimSpace(f.Key), strings.TrimSpace(f.Value)
		if key == "" || value == "" {
			continue
		}
		result = append(result, zap.String(key, value))
	}
	return result
}

// WithFields is log.With that tolerates a nil logger.
func WithFields(log *zap.Logger, fields ...zap.Field) *zap.Logger {
	if log == nil {
		log = zap.NewNop()
	}
	if len(fields) == 0 {
		return log
	}
	return log.With(fields...)
}

func CommonFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// WithCommonFields tags log with the provider and model of an AI adapter.
func WithCommonFields(log *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(log, CommonFields(provider, model)...)
}

// DocumentFields tags a resume file and the unique id it was given. Either
// may be empty.
func DocumentFields(path, uniqueID string) []zap.Field {
	return StringFields(
		StringField{Key: FieldDocument, Value: path},
		StringField{Key: FieldUniqueID, Value: uniqueID},
	)
}
