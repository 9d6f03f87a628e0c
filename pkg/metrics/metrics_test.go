package metrics

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestRecorder(t *testing.T) {
	t.Run("Record", func(t *testing.T) {
		rec := NewRecorder()
		boom := errors.New("boom")

		if err := rec.Record("Decode", MDecode, func() error { return nil }); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		if err := rec.Record("Decode", MDecode, func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("Record() should pass through the operation error, got %v", err)
		}

		s, ok := rec.Series("Decode")
		if !ok {
			t.Fatalf("series not recorded")
		}
		if len(s.Samples) != 2 || s.Failures != 1 || s.Type != MDecode {
			t.Errorf("unexpected series %+v", s)
		}
	})

	t.Run("Concurrent", func(t *testing.T) {
		rec := NewRecorder()
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					rec.Inc("frames")
					_ = rec.Record("Sample", MHardwareRead, func() error { return nil })
				}
			}()
		}
		wg.Wait()
		if got := rec.Count("frames"); got != 400 {
			t.Errorf("Count = %d, want 400", got)
		}
		s, _ := rec.Series("Sample")
		if len(s.Samples) != 400 {
			t.Errorf("samples = %d, want 400", len(s.Samples))
		}
	})

	t.Run("PrintSummary", func(t *testing.T) {
		rec := NewRecorder()
		_ = rec.Record("Render", MLogic, func() error { return nil })
		rec.Inc("scan.frames")
		var buf bytes.Buffer
		rec.PrintSummary(&buf)
		if !strings.Contains(buf.String(), "Render") || !strings.Contains(buf.String(), "scan.frames") {
			t.Errorf("summary missing entries: %q", buf.String())
		}
	})
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name  string
		in    []time.Duration
		count int
		p50   time.Duration
		min   time.Duration
		max   time.Duration
	}{
		{"empty", nil, 0, 0, 0, 0},
		{"single", []time.Duration{5 * time.Millisecond}, 1, 5 * time.Millisecond, 5 * time.Millisecond, 5 * time.Millisecond},
		{"unsorted", []time.Duration{3 * time.Millisecond, 1 * time.Millisecond, 2 * time.Millisecond}, 3, 2 * time.Millisecond, time.Millisecond, 3 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(tt.in)
			if got.Count != tt.count || got.P50 != tt.p50 || got.Min != tt.min || got.Max != tt.max {
				t.Errorf("Summarize() = %+v", got)
			}
		})
	}
}
