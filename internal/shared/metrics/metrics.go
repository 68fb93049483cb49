package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	sessionsCreatedTotal atomic.Uint64
	sessionsExpiredTotal atomic.Uint64
	sessionsActive       atomic.Int64

	operations = newOutcomeCounter()

	operationDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000})
)

// IncSessionCreated counts a new session.
func IncSessionCreated() {
	sessionsCreatedTotal.Add(1)
}

// IncSessionsExpired counts sessions removed by the sweeper.
func IncSessionsExpired(n int) {
	if n > 0 {
		sessionsExpiredTotal.Add(uint64(n))
	}
}

// SetSessionsActive records the number of live sessions.
func SetSessionsActive(n int) {
	sessionsActive.Store(int64(n))
}

// IncOperation counts a session operation ("parse", "chat", "regenerate")
// by outcome kind ("success" or an error kind).
func IncOperation(op, outcome string) {
	operations.Inc(op, outcome)
}

// ObserveOperationDurationMs records a session operation's duration in milliseconds.
func ObserveOperationDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	operationDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "sessions_created_total", "Total sessions created", sessionsCreatedTotal.Load())
	writeCounter(&buf, "sessions_expired_total", "Total sessions expired by the sweeper", sessionsExpiredTotal.Load())
	writeGauge(&buf, "sessions_active", "Live sessions in the registry", sessionsActive.Load())
	writeOutcomes(&buf, "session_operations_total", "Session operations by outcome", operations.Snapshot())
	writeHistogram(&buf, "session_operation_duration_ms", "Session operation duration in milliseconds", operationDuration.Snapshot())
	return buf.String()
}

type outcomeKey struct {
	op      string
	outcome string
}

type outcomeCounter struct {
	mu     sync.Mutex
	counts map[outcomeKey]uint64
}

func newOutcomeCounter() *outcomeCounter {
	return &outcomeCounter{counts: make(map[outcomeKey]uint64)}
}

func (c *outcomeCounter) Inc(op, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[outcomeKey{op: op, outcome: outcome}]++
}

type outcomeSample struct {
	key   outcomeKey
	value uint64
}

func (c *outcomeCounter) Snapshot() []outcomeSample {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]outcomeSample, 0, len(c.counts))
	for k, v := range c.counts {
		out = append(out, outcomeSample{key: k, value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].key.op != out[j].key.op {
			return out[i].key.op < out[j].key.op
		}
		return out[i].key.outcome < out[j].key.outcome
	})
	return out
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe counts value in the first bucket whose bound is not below it.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeGauge(buf *bytes.Buffer, name, help string, value int64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s gauge\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeOutcomes(buf *bytes.Buffer, name, help string, samples []outcomeSample) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	for _, s := range samples {
		fmt.Fprintf(buf, "%s{op=%q,outcome=%q} %d\n", name, s.key.op, s.key.outcome, s.value)
	}
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
