package testfixtures

import (
	"context"
	"testing"
)

func TestSQLiteHarnessSeeds(t *testing.T) {
	harness := NewSQLiteHarness(t)
	worker := NewWorkerFixture()
	site := NewSiteFixture(WithSiteCompany("Kanto Build"))
	day := MustDay("2025-12-24")

	harness.SeedWorker(t, worker)
	harness.SeedSite(t, site)
	harness.SeedAssignment(t, NewAssignmentFixture(worker.ID, day, site))

	got, err := harness.Sites.GetSite(context.Background(), site.ID)
	if err != nil {
		t.Fatalf("GetSite: %v", err)
	}
	if got.CompanyName == nil || *got.CompanyName != "Kanto Build" {
		t.Fatalf("unexpected site %+v", got)
	}

	cell, err := harness.Assignments.ListCell(context.Background(), worker.ID, day)
	if err != nil {
		t.Fatalf("ListCell: %v", err)
	}
	if len(cell) != 1 || cell[0].SiteName != site.Name {
		t.Fatalf("unexpected cell %+v", cell)
	}
	if err := harness.Storage.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
