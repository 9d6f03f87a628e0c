package metrics

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// MeasurementType defines the measurement observed.
type MeasurementType uint

const (
	MLogic MeasurementType = iota
	MHardwareRead
	MHardwareWrite
	MDiskRead
	MDiskWrite
	MDecode
)

func (mt MeasurementType) String() string {
	switch mt {
	case MLogic:
		return "Logic"
	case MHardwareRead:
		return "HardwareRead"
	case MHardwareWrite:
		return "HardwareWrite"
	case MDiskRead:
		return "DiskRead"
	case MDiskWrite:
		return "DiskWrite"
	case MDecode:
		return "Decode"
	default:
		return "Unknown"
	}
}

// Series holds every wall-clock sample recorded under one component name.
type Series struct {
	Component string
	Type      MeasurementType
	Samples   []time.Duration
	Failures  int
}

// Recorder collects measurements for a single run. It is safe for use by the
// scan loop goroutine and the caller at the same time.
type Recorder struct {
	mu       sync.Mutex
	series   map[string]*Series
	counters map[string]uint64
}

// NewRecorder creates a new, empty recorder for a single run.
func NewRecorder() *Recorder {
	return &Recorder{
		series:   make(map[string]*Series),
		counters: make(map[string]uint64),
	}
}

// Record measures the wall-clock time of f under the given component name.
// The error returned by f is passed through unchanged.
func (r *Recorder) Record(name string, mType MeasurementType, f func() error) error {
	start := time.Now()
	err := f()
	elapsed := time.Since(start)

	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.series[name]
	if !ok {
		s = &Series{Component: name, Type: mType}
		r.series[name] = s
	}
	s.Samples = append(s.Samples, elapsed)
	if err != nil {
		s.Failures++
	}
	return err
}

// Inc adds one to the named counter.
func (r *Recorder) Inc(name string) {
	r.mu.Lock()
	r.counters[name]++
	r.mu.Unlock()
}

// Count returns the current value of the named counter.
func (r *Recorder) Count(name string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[name]
}

// Series returns a copy of the samples recorded under name.
func (r *Recorder) Series(name string) (Series, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.series[name]
	if !ok {
		return Series{}, false
	}
	cp := *s
	cp.Samples = append([]time.Duration(nil), s.Samples...)
	return cp, true
}

// AllSeries returns copies of every series, sorted by component name.
func (r *Recorder) AllSeries() []Series {
	r.mu.Lock()
	names := make([]string, 0, len(r.series))
	for name := range r.series {
		names = append(names, name)
	}
	r.mu.Unlock()

	sort.Strings(names)
	out := make([]Series, 0, len(names))
	for _, name := range names {
		s, _ := r.Series(name)
		out = append(out, s)
	}
	return out
}

// PrintSummary writes one line per component with its statistics, followed
// by the counters.
func (r *Recorder) PrintSummary(w io.Writer) {
	fmt.Fprintln(w, "--- Measurements ---")
	for _, s := range r.AllSeries() {
		sum := Summarize(s.Samples)
		fmt.Fprintf(w, "%-28s (%s) n=%d fail=%d mean=%s p50=%s p95=%s max=%s\n",
			s.Component, s.Type, sum.Count, s.Failures,
			sum.Mean, sum.P50, sum.P95, sum.Max)
	}

	r.mu.Lock()
	names := make([]string, 0, len(r.counters))
	for name := range r.counters {
		names = append(names, name)
	}
	r.mu.Unlock()
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%-28s %d\n", name, r.Count(name))
	}
}
