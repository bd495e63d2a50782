package gateway

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics holds gateway-local counters. Operation counts come from the
// event bus.
type Metrics struct {
	wsClients     atomic.Int64
	rpcCalls      atomic.Int64
	framesDropped atomic.Int64
}

// handleMetrics writes counters in the Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	ops := s.operationCounts()
	fmt.Fprintf(w, "# HELP filedeck_operations_total Operations completed, by event type.\n")
	fmt.Fprintf(w, "# TYPE filedeck_operations_total counter\n")
	for _, typ := range sortedKeys(ops) {
		fmt.Fprintf(w, "filedeck_operations_total{event=%q} %d\n", typ, ops[typ])
	}

	fmt.Fprintf(w, "# HELP filedeck_websocket_clients Connected WebSocket clients.\n")
	fmt.Fprintf(w, "# TYPE filedeck_websocket_clients gauge\n")
	fmt.Fprintf(w, "filedeck_websocket_clients %d\n", s.metrics.wsClients.Load())

	fmt.Fprintf(w, "# HELP filedeck_rpc_calls_total WebSocket RPC requests received.\n")
	fmt.Fprintf(w, "# TYPE filedeck_rpc_calls_total counter\n")
	fmt.Fprintf(w, "filedeck_rpc_calls_total %d\n", s.metrics.rpcCalls.Load())

	fmt.Fprintf(w, "# HELP filedeck_websocket_frames_dropped_total Frames dropped for slow clients.\n")
	fmt.Fprintf(w, "# TYPE filedeck_websocket_frames_dropped_total counter\n")
	fmt.Fprintf(w, "filedeck_websocket_frames_dropped_total %d\n", s.metrics.framesDropped.Load())

	fmt.Fprintf(w, "# HELP filedeck_uptime_seconds Seconds since the server started.\n")
	fmt.Fprintf(w, "# TYPE filedeck_uptime_seconds gauge\n")
	fmt.Fprintf(w, "filedeck_uptime_seconds %.0f\n", time.Since(s.started).Seconds())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	fmt.Fprintf(w, "# HELP go_goroutines Number of goroutines.\n")
	fmt.Fprintf(w, "# TYPE go_goroutines gauge\n")
	fmt.Fprintf(w, "go_goroutines %d\n", runtime.NumGoroutine())

	fmt.Fprintf(w, "# HELP go_memstats_alloc_bytes Bytes of allocated heap objects.\n")
	fmt.Fprintf(w, "# TYPE go_memstats_alloc_bytes gauge\n")
	fmt.Fprintf(w, "go_memstats_alloc_bytes %d\n", mem.Alloc)

	fmt.Fprintf(w, "# HELP go_memstats_sys_bytes Total bytes of memory obtained from the OS.\n")
	fmt.Fprintf(w, "# TYPE go_memstats_sys_bytes gauge\n")
	fmt.Fprintf(w, "go_memstats_sys_bytes %d\n", mem.Sys)
}
