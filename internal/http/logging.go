package http

import (
	"context"
	"log/slog"

	"github.com/example/site-roster/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// handlerLogger prefers the request logger stored by RequestLogger and tags
// records with the handler, the operation and the addressed history session.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	pairs := make([]any, 0, 6+len(attrs))
	pairs = append(pairs, "handler", handlerName)
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if sessionID, ok := HistorySessionIDFromContext(ctx); ok {
		pairs = append(pairs, "history_session", sessionID)
	}
	pairs = append(pairs, attrs...)
	return logging.FromContextOr(ctx, fallback).With(pairs...)
}
