package main

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// levels in severity order.
var levels = []string{"low", "medium", "high", "extreme"}

// Report accumulates benchmark results. It is safe for concurrent use.
type Report struct {
	mu sync.Mutex

	Processed int64
	Errors    int64
	Labelled  int64
	Agreed    int64

	// Levels counts responses per risk level.
	Levels map[string]int64

	// Matrix counts expected level -> returned level for labelled rows.
	Matrix map[string]map[string]int64

	TotalLatency time.Duration
	MaxLatency   time.Duration
	Duration     time.Duration
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{
		Levels: make(map[string]int64),
		Matrix: make(map[string]map[string]int64),
	}
}

// Record adds one response.
func (r *Report) Record(expected string, result *assessResponse, err error, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Processed++
	r.TotalLatency += elapsed
	r.MaxLatency = max(r.MaxLatency, elapsed)

	if err != nil {
		r.Errors++
		return
	}

	r.Levels[result.RiskLevel]++
	if expected == "" {
		return
	}

	r.Labelled++
	if expected == result.RiskLevel {
		r.Agreed++
	}
	if r.Matrix[expected] == nil {
		r.Matrix[expected] = make(map[string]int64)
	}
	r.Matrix[expected][result.RiskLevel]++
}

// Agreement returns the share of labelled rows whose level matched.
func (r *Report) Agreement() float64 {
	if r.Labelled == 0 {
		return 0
	}
	return float64(r.Agreed) / float64(r.Labelled)
}

// Print writes the report to w.
func (r *Report) Print(w io.Writer) {
	fmt.Fprintln(w, "\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║                      BENCHMARK RESULTS                        ║")
	fmt.Fprintln(w, "╚═══════════════════════════════════════════════════════════════╝")

	fmt.Fprintf(w, "\n📊 DATASET STATISTICS\n")
	fmt.Fprintf(w, "   Total Processed:  %d\n", r.Processed)
	fmt.Fprintf(w, "   Labelled:         %d\n", r.Labelled)
	fmt.Fprintf(w, "   Errors:           %d\n", r.Errors)

	fmt.Fprintf(w, "\n📈 RISK LEVEL DISTRIBUTION\n")
	scored := r.Processed - r.Errors
	for _, l := range levels {
		share := float64(0)
		if scored > 0 {
			share = 100 * float64(r.Levels[l]) / float64(scored)
		}
		fmt.Fprintf(w, "   %-8s %8d  (%.2f%%)\n", l, r.Levels[l], share)
	}

	if r.Labelled > 0 {
		fmt.Fprintf(w, "\n🎯 AGREEMENT WITH LABELS\n")
		fmt.Fprintf(w, "   %-10s", "expected")
		for _, l := range levels {
			fmt.Fprintf(w, " %8s", l)
		}
		fmt.Fprintln(w)
		for _, e := range levels {
			fmt.Fprintf(w, "   %-10s", e)
			for _, l := range levels {
				fmt.Fprintf(w, " %8d", r.Matrix[e][l])
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "   Agreement:  %.4f  (%d / %d)\n", r.Agreement(), r.Agreed, r.Labelled)
	}

	fmt.Fprintf(w, "\n⏱️  PERFORMANCE\n")
	fmt.Fprintf(w, "   Total Duration:   %v\n", r.Duration.Round(time.Millisecond))
	if r.Processed > 0 {
		avgMs := float64(r.TotalLatency.Microseconds()) / 1000 / float64(r.Processed)
		fmt.Fprintf(w, "   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Fprintf(w, "   Max Latency:      %v\n", r.MaxLatency.Round(time.Microsecond))
		if r.Duration > 0 {
			fmt.Fprintf(w, "   Throughput:       %.2f req/sec\n", float64(r.Processed)/r.Duration.Seconds())
		}
	}

	fmt.Fprintln(w)
}
