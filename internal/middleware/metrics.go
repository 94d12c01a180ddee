package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores application counters.
type Metrics struct {
	RequestsTotal   uint64
	RequestsSuccess uint64
	RequestsFailed  uint64
	ScansTotal      uint64
	ScansRejected   uint64
	ScansFailed     uint64
	CacheHits       uint64
	StartTime       time.Time
}

var globalMetrics = &Metrics{
	StartTime: time.Now(),
}

// IncrementScans counts a submitted scan.
func IncrementScans() { atomic.AddUint64(&globalMetrics.ScansTotal, 1) }

// IncrementScansRejected counts a scan refused by the quota or state guard.
func IncrementScansRejected() { atomic.AddUint64(&globalMetrics.ScansRejected, 1) }

// IncrementScansFailed counts a scan that failed past the guard.
func IncrementScansFailed() { atomic.AddUint64(&globalMetrics.ScansFailed, 1) }

// GetMetrics snapshots all counters plus runtime stats.
func GetMetrics() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"requests_total":   atomic.LoadUint64(&globalMetrics.RequestsTotal),
		"requests_success": atomic.LoadUint64(&globalMetrics.RequestsSuccess),
		"requests_failed":  atomic.LoadUint64(&globalMetrics.RequestsFailed),
		"scans_total":      atomic.LoadUint64(&globalMetrics.ScansTotal),
		"scans_rejected":   atomic.LoadUint64(&globalMetrics.ScansRejected),
		"scans_failed":     atomic.LoadUint64(&globalMetrics.ScansFailed),
		"uptime_seconds":   time.Since(globalMetrics.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes": m.Alloc,
			"sys_bytes":   m.Sys,
			"num_gc":      m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tracks request counts and outcomes.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddUint64(&globalMetrics.RequestsTotal, 1)

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			atomic.AddUint64(&globalMetrics.RequestsSuccess, 1)
		} else {
			atomic.AddUint64(&globalMetrics.RequestsFailed, 1)
		}
	})
}

// MetricsHandler returns metrics as JSON.
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GetMetrics())
}
