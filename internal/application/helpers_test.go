package application_test

import (
	"errors"
	"testing"

	"github.com/example/site-roster/internal/application"
	"github.com/example/site-roster/internal/history"
	"github.com/example/site-roster/internal/testfixtures"
)

type rosterEnv struct {
	factory *testfixtures.ServiceFactory
	store   *testfixtures.MemoryStore
	roster  testfixtures.Roster
	worker  testfixtures.WorkerFixture
}

func newRosterEnv(t *testing.T) *rosterEnv {
	t.Helper()
	factory := testfixtures.NewServiceFactory()
	store := testfixtures.NewMemoryStore()
	worker := testfixtures.NewWorkerFixture()
	store.AddWorker(worker.Application())
	return &rosterEnv{
		factory: factory,
		store:   store,
		roster:  factory.NewRoster(testfixtures.RosterDeps{Store: store}),
		worker:  worker,
	}
}

func (e *rosterEnv) addSite(opts ...testfixtures.SiteOption) testfixtures.SiteFixture {
	site := testfixtures.NewSiteFixture(opts...)
	e.store.AddSite(site.Application())
	return site
}

func assertFieldError(t *testing.T, err error, field string) {
	t.Helper()
	var vErr *application.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := vErr.FieldErrors[field]; !ok {
		t.Fatalf("expected field error for %q, got %v", field, vErr.FieldErrors)
	}
}

func assertSlots(t *testing.T, got history.Slots, want ...string) {
	t.Helper()
	var expected history.Slots
	for i, label := range want {
		if label == "" {
			continue
		}
		l := label
		expected[i] = &l
	}
	if !got.Equal(expected) {
		t.Fatalf("slots = %s, want %q", describeSlots(got), want)
	}
}

func describeSlots(s history.Slots) string {
	out := "["
	for i, label := range s {
		if i > 0 {
			out += " "
		}
		if label == nil {
			out += "<nil>"
			continue
		}
		out += *label
	}
	return out + "]"
}
