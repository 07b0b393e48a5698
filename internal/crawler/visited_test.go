package crawler

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func TestVisitedSet(t *testing.T) {
	t.Parallel()

	t.Run("claim succeeds only the first time", func(t *testing.T) {
		t.Parallel()

		v := NewVisitedSet()
		if !v.Claim("a") {
			t.Error("expected first claim to succeed")
		}
		if v.Claim("a") {
			t.Error("expected second claim to fail")
		}
		if !v.Seen("a") {
			t.Error("expected a to be seen")
		}
		if v.Seen("b") {
			t.Error("expected b not to be seen")
		}
		if v.Len() != 1 {
			t.Errorf("expected 1 entry, got %d", v.Len())
		}
	})

	t.Run("exactly one concurrent claimer wins", func(t *testing.T) {
		t.Parallel()

		v := NewVisitedSet()
		var wins atomic.Int64
		var wg sync.WaitGroup
		for range 100 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if v.Claim("https://example.com/") {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		if wins.Load() != 1 {
			t.Errorf("expected exactly 1 winner, got %d", wins.Load())
		}
	})

	t.Run("concurrent claims of distinct URLs all succeed", func(t *testing.T) {
		t.Parallel()

		v := NewVisitedSet()
		var wg sync.WaitGroup
		for i := range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if !v.Claim(fmt.Sprintf("u%d", i)) {
					t.Errorf("claim of u%d failed", i)
				}
			}()
		}
		wg.Wait()

		if v.Len() != 50 {
			t.Errorf("expected 50 entries, got %d", v.Len())
		}
	})
}
