// Package stats summarizes latencies of repeated requests using an HDR
// histogram.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	// histogram range in microseconds: 1µs to 1 hour
	histogramMin     = 1
	histogramMax     = 3600000000
	histogramSigFigs = 3
)

// Recorder collects request outcomes.
//
// Recorder is safe for concurrent use. Counters use atomic operations and
// the histogram is mutex protected.
type Recorder struct {
	hist   *hdrhistogram.Histogram
	histMu sync.Mutex

	statusMu sync.Mutex
	statuses map[int]int64

	total  atomic.Int64
	failed atomic.Int64
	bytes  atomic.Int64

	startTime time.Time
}

// Summary is a snapshot of a Recorder.
type Summary struct {
	Requests    int64
	Failed      int64
	Bytes       int64
	StatusCodes map[int]int64
	Elapsed     time.Duration

	Min  time.Duration
	Max  time.Duration
	Mean time.Duration
	P50  time.Duration
	P90  time.Duration
	P95  time.Duration
	P99  time.Duration
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		hist:      hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs),
		statuses:  make(map[int]int64),
		startTime: time.Now(),
	}
}

// RecordResponse records a request that produced a response with the given
// status, whatever its class.
func (r *Recorder) RecordResponse(status int, latency time.Duration, bytes int64) {
	r.total.Add(1)
	r.bytes.Add(bytes)
	r.recordLatency(latency)

	r.statusMu.Lock()
	r.statuses[status]++
	r.statusMu.Unlock()
}

// RecordFailure records a request that never produced a response.
func (r *Recorder) RecordFailure(latency time.Duration) {
	r.total.Add(1)
	r.failed.Add(1)
	r.recordLatency(latency)
}

func (r *Recorder) recordLatency(latency time.Duration) {
	micros := latency.Microseconds()
	if micros < histogramMin {
		micros = histogramMin
	}
	if micros > histogramMax {
		micros = histogramMax
	}

	// RecordValue is not thread-safe
	r.histMu.Lock()
	_ = r.hist.RecordValue(micros)
	r.histMu.Unlock()
}

// Summary returns the current statistics.
func (r *Recorder) Summary() Summary {
	s := Summary{
		Requests:    r.total.Load(),
		Failed:      r.failed.Load(),
		Bytes:       r.bytes.Load(),
		StatusCodes: make(map[int]int64),
		Elapsed:     time.Since(r.startTime),
	}

	r.statusMu.Lock()
	for code, n := range r.statuses {
		s.StatusCodes[code] = n
	}
	r.statusMu.Unlock()

	r.histMu.Lock()
	defer r.histMu.Unlock()

	if r.hist.TotalCount() == 0 {
		return s
	}

	s.Min = time.Duration(r.hist.Min()) * time.Microsecond
	s.Max = time.Duration(r.hist.Max()) * time.Microsecond
	s.Mean = time.Duration(r.hist.Mean() * float64(time.Microsecond))
	s.P50 = time.Duration(r.hist.ValueAtQuantile(50)) * time.Microsecond
	s.P90 = time.Duration(r.hist.ValueAtQuantile(90)) * time.Microsecond
	s.P95 = time.Duration(r.hist.ValueAtQuantile(95)) * time.Microsecond
	s.P99 = time.Duration(r.hist.ValueAtQuantile(99)) * time.Microsecond

	return s
}

// String renders the summary for terminal output.
func (s Summary) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Requests: %d (%d failed)\n", s.Requests, s.Failed)

	codes := make([]int, 0, len(s.StatusCodes))
	for code := range s.StatusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	if len(codes) > 0 {
		parts := make([]string, 0, len(codes))
		for _, code := range codes {
			parts = append(parts, fmt.Sprintf("%d x%d", code, s.StatusCodes[code]))
		}
		fmt.Fprintf(&b, "Statuses: %s\n", strings.Join(parts, ", "))
	}

	fmt.Fprintf(&b, "Latency:  min=%s mean=%s max=%s\n", round(s.Min), round(s.Mean), round(s.Max))
	fmt.Fprintf(&b, "          p50=%s p90=%s p95=%s p99=%s\n", round(s.P50), round(s.P90), round(s.P95), round(s.P99))

	return b.String()
}

func round(d time.Duration) time.Duration {
	if d > time.Millisecond {
		return d.Round(10 * time.Microsecond)
	}
	return d
}
