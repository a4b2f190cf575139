package refs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// Two CAS updates racing from the same expected value: exactly one wins, the
// other observes ErrRefCASMismatch, and the final ref value belongs to the
// winner.
func TestSetDirectConcurrentCASSingleWinner(t *testing.T) {
	s := newTestRefStore(t)
	base := fakeHash("base")

	if err := s.SetDirect("refs/heads/main", base); err != nil {
		t.Fatalf("SetDirect(base): %v", err)
	}

	const racers = 8
	winners := make(chan int, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.SetDirect("refs/heads/main", fakeHash(fmt.Sprintf("cand-%d", i)), base)
			if err == nil {
				winners <- i
				return
			}
			if !errors.Is(err, ErrRefCASMismatch) {
				t.Errorf("racer %d: unexpected error: %v", i, err)
			}
		}(i)
	}
	wg.Wait()
	close(winners)

	var winnerIDs []int
	for id := range winners {
		winnerIDs = append(winnerIDs, id)
	}
	if len(winnerIDs) != 1 {
		t.Fatalf("winners = %v, want exactly one", winnerIDs)
	}

	got, err := s.Resolve("refs/heads/main")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != fakeHash(fmt.Sprintf("cand-%d", winnerIDs[0])) {
		t.Errorf("final value %s does not match winner %d", got, winnerIDs[0])
	}
}

// Unconditional concurrent updates all succeed; the ref ends on one of the
// written values and the reflog records every update.
func TestSetDirectConcurrentUnconditional(t *testing.T) {
	s := newTestRefStore(t)

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.SetDirect("refs/heads/main", fakeHash(fmt.Sprintf("w-%d", i))); err != nil {
				t.Errorf("writer %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	got, err := s.Resolve("refs/heads/main")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	found := false
	for i := 0; i < writers; i++ {
		if got == fakeHash(fmt.Sprintf("w-%d", i)) {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("final value %s written by no one", got)
	}

	entries, err := s.Log("refs/heads/main", 0)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(entries) != writers {
		t.Errorf("reflog entries = %d, want %d", len(entries), writers)
	}
}

// The lock file must not outlive a failed CAS attempt, or every later update
// would stall until the lock timeout.
func TestCASFailureReleasesLock(t *testing.T) {
	s := newTestRefStore(t)
	h1 := fakeHash("c1")
	h2 := fakeHash("c2")

	if err := s.SetDirect("refs/heads/main", h1); err != nil {
		t.Fatalf("SetDirect: %v", err)
	}
	if err := s.SetDirect("refs/heads/main", h2, fakeHash("stale")); !errors.Is(err, ErrRefCASMismatch) {
		t.Fatalf("stale CAS = %v, want ErrRefCASMismatch", err)
	}

	lockPath := filepath.Join(s.dir, "refs", "heads", "main.lock")
	if _, err := os.Stat(lockPath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("lock file left behind after CAS failure: %v", err)
	}

	// A follow-up update must succeed promptly.
	if err := s.SetDirect("refs/heads/main", h2, h1); err != nil {
		t.Errorf("update after failed CAS: %v", err)
	}
}
