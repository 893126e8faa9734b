package application

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultStorageTimeout    = 5 * time.Second
	defaultRecurrenceWorkers = 4
	defaultWorkerListLimit   = 200
	defaultUsageThreshold    = 10
	suggestionLimit          = 200
)

var tracer = otel.Tracer("github.com/example/site-roster/internal/application")

// Settings tunes the services. Zero values fall back to defaults.
type Settings struct {
	// Location is the zone calendar days and anchor months are evaluated in.
	Location *time.Location
	// StorageTimeout bounds every storage call made on behalf of one request.
	StorageTimeout time.Duration
	// RecurrenceWorkers bounds parallel assignment creation during auto-fill.
	RecurrenceWorkers int
	// WorkerListLimit caps the rows of a grid view.
	WorkerListLimit int
	Logger          *slog.Logger
	IDGenerator     func() string
	Now             func() time.Time
}

func (s Settings) withDefaults() Settings {
	if s.Location == nil {
		s.Location = time.Local
	}
	if s.StorageTimeout <= 0 {
		s.StorageTimeout = defaultStorageTimeout
	}
	if s.RecurrenceWorkers <= 0 {
		s.RecurrenceWorkers = defaultRecurrenceWorkers
	}
	if s.WorkerListLimit <= 0 {
		s.WorkerListLimit = defaultWorkerListLimit
	}
	s.Logger = defaultLogger(s.Logger)
	if s.IDGenerator == nil {
		s.IDGenerator = func() string { return "" }
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return s
}

// storageContext bounds the storage calls of one operation.
func (s Settings) storageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.StorageTimeout)
}

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorKind(err))
	}
	span.End()
}
