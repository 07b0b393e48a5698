package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/gowget/internal/model"
)

// mockHarvester records the seeds it is asked to crawl.
type mockHarvester struct {
	delay   time.Duration
	fail    map[string]error
	running atomic.Int32
	peak    atomic.Int32
}

func (m *mockHarvester) Harvest(ctx context.Context, seed string) (*model.RunReport, error) {
	cur := m.running.Add(1)
	defer m.running.Add(-1)
	for {
		old := m.peak.Load()
		if cur <= old || m.peak.CompareAndSwap(old, cur) {
			break
		}
	}

	if err, ok := m.fail[seed]; ok {
		return nil, err
	}

	select {
	case <-ctx.Done():
	case <-time.After(m.delay):
	}

	report := model.NewRunReport(seed, 1)
	report.Finish(ctx.Err() != nil)
	return report, nil
}

func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(&mockHarvester{})
		if bp.concurrency != 1 {
			t.Errorf("expected concurrency 1, got %d", bp.concurrency)
		}
		if bp.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(&mockHarvester{}, WithConcurrency(0))
		if bp.concurrency != 1 {
			t.Errorf("expected concurrency 1, got %d", bp.concurrency)
		}
	})
}

// collectReports runs the batch and returns the reports in seed order.
func collectReports(ctx context.Context, bp *BatchProcessor, seeds []string) ([]*model.RunReport, error) {
	reports := make([]*model.RunReport, len(seeds))
	err := bp.ProcessBatchWithCallback(ctx, seeds, func(report *model.RunReport, index int) {
		reports[index] = report
	})
	return reports, err
}

func TestBatchProcessorReports(t *testing.T) {
	t.Parallel()

	seeds := []string{
		"https://a.example/",
		"https://b.example/",
		"https://c.example/",
		"https://d.example/",
	}

	t.Run("returns reports in seed order", func(t *testing.T) {
		t.Parallel()

		h := &mockHarvester{delay: 10 * time.Millisecond}
		bp := NewBatchProcessor(h, WithConcurrency(2))

		reports, err := collectReports(context.Background(), bp, seeds)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(reports) != len(seeds) {
			t.Fatalf("expected %d reports, got %d", len(seeds), len(reports))
		}
		for i, r := range reports {
			if r == nil || r.Seed != seeds[i] {
				t.Errorf("report %d: unexpected %+v", i, r)
			}
		}
		if peak := h.peak.Load(); peak > 2 {
			t.Errorf("expected at most 2 concurrent crawls, got %d", peak)
		}
	})

	t.Run("a failing seed does not stop the others", func(t *testing.T) {
		t.Parallel()

		h := &mockHarvester{fail: map[string]error{seeds[1]: errors.New("database locked")}}
		bp := NewBatchProcessor(h, WithConcurrency(4))

		reports, err := collectReports(context.Background(), bp, seeds)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reports[1] != nil {
			t.Error("failed seed should have no report")
		}
		for _, i := range []int{0, 2, 3} {
			if reports[i] == nil {
				t.Errorf("seed %d should have a report", i)
			}
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		bp := NewBatchProcessor(&mockHarvester{})
		_, err := collectReports(ctx, bp, seeds)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}

func TestBatchProcessorProcessBatchWithCallback(t *testing.T) {
	t.Parallel()

	seeds := []string{"https://a.example/", "https://b.example/", "https://c.example/"}

	var mu sync.Mutex
	got := make(map[int]string)

	bp := NewBatchProcessor(&mockHarvester{}, WithConcurrency(3))
	err := bp.ProcessBatchWithCallback(context.Background(), seeds, func(report *model.RunReport, index int) {
		mu.Lock()
		defer mu.Unlock()
		got[index] = report.Seed
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, seed := range seeds {
		if got[i] != seed {
			t.Errorf("index %d: expected %q, got %q", i, seed, got[i])
		}
	}
}
