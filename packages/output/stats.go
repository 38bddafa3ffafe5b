package output

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/abdul-hamid-achik/hitbox/packages/http"
)

// Histogram range: 1us to 60s, 3 significant digits
const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

// Stats summarizes latency and status codes over a set of exchanges.
type Stats struct {
	Count       int           `json:"count"`
	Min         time.Duration `json:"min"`
	Max         time.Duration `json:"max"`
	Mean        time.Duration `json:"mean"`
	P50         time.Duration `json:"p50"`
	P95         time.Duration `json:"p95"`
	P99         time.Duration `json:"p99"`
	StatusCodes map[int]int   `json:"statusCodes"`
}

// ComputeStats records each exchange's duration in microseconds. Durations
// outside the histogram range are clamped.
func ComputeStats(exchanges []*http.Exchange) *Stats {
	histogram := hdrhistogram.New(minLatencyUs, maxLatencyUs, 3)
	stats := &Stats{StatusCodes: make(map[int]int)}

	for _, e := range exchanges {
		latencyUs := e.Duration().Microseconds()
		if latencyUs < minLatencyUs {
			latencyUs = minLatencyUs
		}
		if latencyUs > maxLatencyUs {
			latencyUs = maxLatencyUs
		}
		_ = histogram.RecordValue(latencyUs)
		stats.StatusCodes[e.Response.StatusCode]++
	}

	stats.Count = int(histogram.TotalCount())
	if stats.Count == 0 {
		return stats
	}
	stats.Min = time.Duration(histogram.Min()) * time.Microsecond
	stats.Max = time.Duration(histogram.Max()) * time.Microsecond
	stats.Mean = time.Duration(histogram.Mean()) * time.Microsecond
	stats.P50 = time.Duration(histogram.ValueAtQuantile(50)) * time.Microsecond
	stats.P95 = time.Duration(histogram.ValueAtQuantile(95)) * time.Microsecond
	stats.P99 = time.Duration(histogram.ValueAtQuantile(99)) * time.Microsecond
	return stats
}
