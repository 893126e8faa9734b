package testfixtures

import (
	"context"
	"testing"

	"github.com/example/site-roster/internal/application"
)

func TestServiceFactoryNewRoster(t *testing.T) {
	factory := NewServiceFactory()
	store := NewMemoryStore()
	roster := factory.NewRoster(RosterDeps{Store: store})

	worker, err := roster.Workers.CreateWorker(context.Background(), application.WorkerInput{Name: "Sato"})
	if err != nil {
		t.Fatalf("CreateWorker returned error: %v", err)
	}
	if worker.ID != "id-1" {
		t.Fatalf("expected generated ID id-1, got %q", worker.ID)
	}
	if !worker.CreatedAt.Equal(factory.Clock.Now()) {
		t.Fatalf("expected timestamp %v, got %v", factory.Clock.Now(), worker.CreatedAt)
	}

	result, err := roster.Cells.Apply(context.Background(), application.CellRequest{
		WorkerID: worker.ID,
		Day:      MustDay("2025-12-24"),
		Action:   application.ActionToggle,
		SiteName: "Harbor Tower",
	})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if !result.Changed || len(store.Sites()) != 1 {
		t.Fatalf("expected the toggle to create a site and an assignment, got %+v", result)
	}
	if store.Calls("CreateSlot") != 1 {
		t.Fatalf("CreateSlot calls = %d", store.Calls("CreateSlot"))
	}
}
