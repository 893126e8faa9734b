package http

import (
	"context"
	"log/slog"

	"github.com/example/site-roster/internal/logging"
)

type contextKey string

const (
	siteIDContextKey    contextKey = "site_id"
	sessionIDContextKey contextKey = "history_session_id"
)

// ContextWithLogger attaches a request scoped logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext returns the request scoped logger, if any.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}

// ContextWithSiteID injects the site identifier resolved from the request path.
func ContextWithSiteID(ctx context.Context, siteID string) context.Context {
	return context.WithValue(ctx, siteIDContextKey, siteID)
}

// SiteIDFromContext extracts a site identifier previously associated with the context.
func SiteIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(siteIDContextKey).(string)
	return id, ok
}

// ContextWithHistorySessionID injects the history session resolved from the request path.
func ContextWithHistorySessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDContextKey, sessionID)
}

// HistorySessionIDFromContext extracts a history session identifier.
func HistorySessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDContextKey).(string)
	return id, ok
}
