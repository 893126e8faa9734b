package testfixtures

import (
	"sync"
	"testing"
)

func TestIDGeneratorProducesSequentialIDs(t *testing.T) {
	gen := NewIDGenerator("site")

	first := gen.Next()
	second := gen.Next()

	if first != "site-1" || second != "site-2" {
		t.Fatalf("unexpected identifiers: %q, %q", first, second)
	}
	if gen.Issued() != 2 {
		t.Fatalf("Issued() = %d, want 2", gen.Issued())
	}
}

func TestIDGeneratorIsUniqueUnderConcurrency(t *testing.T) {
	gen := NewIDGenerator("")
	next := gen.NextFunc()

	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				id := next()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != 200 || gen.Issued() != 200 {
		t.Fatalf("expected 200 unique ids, got %d (issued %d)", len(seen), gen.Issued())
	}
	if !seen["id-200"] {
		t.Fatal("default prefix should be id")
	}
}
