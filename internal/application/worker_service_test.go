package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/example/site-roster/internal/application"
)

func TestCreateWorker(t *testing.T) {
	t.Parallel()

	env := newRosterEnv(t)
	ctx := context.Background()

	worker, err := env.roster.Workers.CreateWorker(ctx, application.WorkerInput{Name: " Sato ", Email: "Sato@Example.com"})
	if err != nil {
		t.Fatalf("CreateWorker: %v", err)
	}
	if worker.Name != "Sato" || worker.Email != "sato@example.com" {
		t.Fatalf("unexpected worker %+v", worker)
	}

	_, err = env.roster.Workers.CreateWorker(ctx, application.WorkerInput{Name: "", Email: "not-an-address"})
	assertFieldError(t, err, "name")
	assertFieldError(t, err, "email")

	if _, err := env.roster.Workers.CreateWorker(ctx, application.WorkerInput{Name: "Sato", Email: "sato@example.com"}); !errors.Is(err, application.ErrConflict) {
		t.Fatalf("expected ErrConflict for a duplicate email, got %v", err)
	}

	workers, err := env.roster.Workers.ListWorkers(ctx)
	if err != nil {
		t.Fatalf("ListWorkers: %v", err)
	}
	if len(workers) != 2 || workers[1].ID != worker.ID {
		t.Fatalf("unexpected workers %+v", workers)
	}
}
