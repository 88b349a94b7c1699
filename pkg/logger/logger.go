// Package logger emits structured JSON log events. Every call site passes an
// event name plus a flat field map so log lines stay grep- and ingest-friendly.
package logger

import (
	"log/slog"
	"os"
)

var log *slog.Logger

func Init() {
	level := slog.LevelInfo
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok && v == "debug" {
		level = slog.LevelDebug
	}
	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)
}

func fields(data map[string]interface{}) []any {
	attrs := make([]any, 0, len(data)*2)
	for key, value := range data {
		attrs = append(attrs, key, value)
	}
	return attrs
}

func Info(event string, data map[string]interface{}) {
	if log == nil {
		Init()
	}
	log.Info(event, fields(data)...)
}

func Warn(event string, data map[string]interface{}) {
	if log == nil {
		Init()
	}
	log.Warn(event, fields(data)...)
}

func Error(event string, err error, data map[string]interface{}) {
	if log == nil {
		Init()
	}
	attrs := fields(data)
	if err != nil {
		attrs = append(attrs, "error", err.Error())
	}
	log.Error(event, attrs...)
}

func InfoWithUser(userID, event string, data map[string]interface{}) {
	if log == nil {
		Init()
	}
	attrs := append(fields(data), "user_id", userID)
	log.Info(event, attrs...)
}

func WarnWithUser(userID, event string, data map[string]interface{}) {
	if log == nil {
		Init()
	}
	attrs := append(fields(data), "user_id", userID)
	log.Warn(event, attrs...)
}
