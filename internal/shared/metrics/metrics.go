// Package metrics keeps process-local counters for the resume workflow and
// renders them in Prometheus text exposition format.
package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	generationStartedTotal   atomic.Uint64
	generationCompletedTotal atomic.Uint64
	generationFailedTotal    atomic.Uint64
	previewUploadedTotal     atomic.Uint64
	previewUploadFailedTotal atomic.Uint64
	cacheHitTotal            atomic.Uint64
	cacheMissTotal           atomic.Uint64

	generationDuration = newHistogram([]float64{500, 1000, 2500, 5000, 10000, 20000, 30000, 60000, 120000})
)

func IncGenerationStarted()   { generationStartedTotal.Add(1) }
func IncGenerationCompleted() { generationCompletedTotal.Add(1) }
func IncGenerationFailed()    { generationFailedTotal.Add(1) }
func IncPreviewUploaded()     { previewUploadedTotal.Add(1) }
func IncPreviewUploadFailed() { previewUploadFailedTotal.Add(1) }
func IncCacheHit()            { cacheHitTotal.Add(1) }
func IncCacheMiss()           { cacheMissTotal.Add(1) }

// ObserveGenerationDurationMs records a generation call duration in milliseconds.
func ObserveGenerationDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	generationDuration.Observe(value)
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
	writeCounter(&buf, "resume_generation_started_total", "Generation calls started", generationStartedTotal.Load())
	writeCounter(&buf, "resume_generation_completed_total", "Generation calls that produced content", generationCompletedTotal.Load())
	writeCounter(&buf, "resume_generation_failed_total", "Generation calls that failed", generationFailedTotal.Load())
	writeHistogram(&buf, "resume_generation_duration_ms", "Generation call duration in milliseconds", generationDuration.Snapshot())
	writeCounter(&buf, "resume_preview_uploaded_total", "Preview images stored", previewUploadedTotal.Load())
	writeCounter(&buf, "resume_preview_upload_failed_total", "Preview image uploads that failed", previewUploadFailedTotal.Load())
	writeCounter(&buf, "resume_cache_hit_total", "Resume cache hits", cacheHitTotal.Load())
	writeCounter(&buf, "resume_cache_miss_total", "Resume cache misses", cacheMissTotal.Load())
	return buf.String()
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

// Observe counts value in the first bucket whose bound covers it. Cumulative
// totals are computed at render time.
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
