package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Ingestion metrics
	RecordsIngestedTotal int64
	RecordsFailedTotal   int64
	RecordsSkippedTotal  int64
	LoaderRunsTotal      int64
	LoaderRunErrors      int64
	lastRunDuration      time.Duration

	// Routing metrics
	ItemsRoutedTotal   int64
	ItemsUnroutedTotal int64
	ItemsHeldTotal     int64

	// Session metrics
	StateTransitionsTotal    int64
	ReservationTimeoutsTotal int64
	ItemsAssignedTotal       int64
	ItemsCompletedTotal      int64

	// WebSocket metrics
	WebSocketConnectionsTotal    int64
	WebSocketDisconnectionsTotal int64
	WebSocketMessagesTotal       int64
	WebSocketErrorsTotal         int64
	activeConnections            int64

	// Session distribution
	sessionsByState map[string]int
	totalSessions   int

	// HTTP metrics
	httpRequestsTotal    map[string]map[int]int64 // endpoint -> status -> count
	httpRequestDurations map[string][]float64     // endpoint -> durations

	// Timing
	startTime time.Time
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			sessionsByState:      make(map[string]int),
			httpRequestsTotal:    make(map[string]map[int]int64),
			httpRequestDurations: make(map[string][]float64),
			startTime:            time.Now(),
		}
	})
	return instance
}

// RecordIngested adds to the ingestion counters
func (m *Metrics) RecordIngested(processed, failed, skipped int) {
	m.mu.Lock()
	m.RecordsIngestedTotal += int64(processed)
	m.RecordsFailedTotal += int64(failed)
	m.RecordsSkippedTotal += int64(skipped)
	m.mu.Unlock()
}

// RecordLoaderRun records one completed loader run
func (m *Metrics) RecordLoaderRun(duration time.Duration, failed bool) {
	m.mu.Lock()
	m.LoaderRunsTotal++
	if failed {
		m.LoaderRunErrors++
	}
	m.lastRunDuration = duration
	m.mu.Unlock()
}

// RecordRouted increments the counter for the routing outcome
func (m *Metrics) RecordRouted(status string) {
	m.mu.Lock()
	switch status {
	case "routed":
		m.ItemsRoutedTotal++
	case "held":
		m.ItemsHeldTotal++
	default:
		m.ItemsUnroutedTotal++
	}
	m.mu.Unlock()
}

// RecordStateTransition increments the transition counter
func (m *Metrics) RecordStateTransition() {
	m.mu.Lock()
	m.StateTransitionsTotal++
	m.mu.Unlock()
}

// RecordReservationTimeout increments the timeout counter
func (m *Metrics) RecordReservationTimeout() {
	m.mu.Lock()
	m.ReservationTimeoutsTotal++
	m.mu.Unlock()
}

// RecordItemAssigned increments the assignment counter
func (m *Metrics) RecordItemAssigned() {
	m.mu.Lock()
	m.ItemsAssignedTotal++
	m.mu.Unlock()
}

// RecordItemCompleted increments the completion counter
func (m *Metrics) RecordItemCompleted() {
	m.mu.Lock()
	m.ItemsCompletedTotal++
	m.mu.Unlock()
}

// RecordWebSocketConnect increments connection counters
func (m *Metrics) RecordWebSocketConnect() {
	m.mu.Lock()
	m.WebSocketConnectionsTotal++
	m.activeConnections++
	m.mu.Unlock()
}

// RecordWebSocketDisconnect increments disconnection counter
func (m *Metrics) RecordWebSocketDisconnect() {
	m.mu.Lock()
	m.WebSocketDisconnectionsTotal++
	m.activeConnections--
	m.mu.Unlock()
}

// RecordWebSocketMessage increments message counter
func (m *Metrics) RecordWebSocketMessage() {
	m.mu.Lock()
	m.WebSocketMessagesTotal++
	m.mu.Unlock()
}

// RecordWebSocketError increments WebSocket error counter
func (m *Metrics) RecordWebSocketError() {
	m.mu.Lock()
	m.WebSocketErrorsTotal++
	m.mu.Unlock()
}

// UpdateSessionStats updates session distribution metrics
func (m *Metrics) UpdateSessionStats(byState map[string]int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessionsByState = make(map[string]int, len(byState))
	total := 0
	for state, count := range byState {
		m.sessionsByState[state] = count
		total += count
	}
	m.totalSessions = total
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint string, statusCode int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpRequestsTotal[endpoint] == nil {
		m.httpRequestsTotal[endpoint] = make(map[int]int64)
	}
	m.httpRequestsTotal[endpoint][statusCode]++

	// Keep last 100 durations for percentile calculation
	if len(m.httpRequestDurations[endpoint]) >= 100 {
		m.httpRequestDurations[endpoint] = m.httpRequestDurations[endpoint][1:]
	}
	m.httpRequestDurations[endpoint] = append(m.httpRequestDurations[endpoint], duration.Seconds())
}

// GetActiveConnections returns current WebSocket connections
func (m *Metrics) GetActiveConnections() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeConnections
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		// Helper to write metric
		write := func(name string, value interface{}, labels ...string) {
			labelStr := ""
			if len(labels) > 0 {
				labelStr = "{"
				for i := 0; i < len(labels); i += 2 {
					if i > 0 {
						labelStr += ","
					}
					labelStr += labels[i] + "=\"" + labels[i+1] + "\""
				}
				labelStr += "}"
			}

			switch v := value.(type) {
			case int:
				w.Write([]byte(name + labelStr + " " + strconv.Itoa(v) + "\n"))
			case int64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatInt(v, 10) + "\n"))
			case float64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatFloat(v, 'f', 6, 64) + "\n"))
			}
		}

		// System metrics
		write("taskhub_uptime_seconds", time.Since(m.startTime).Seconds())

		// Ingestion metrics
		write("taskhub_records_ingested_total", m.RecordsIngestedTotal)
		write("taskhub_records_failed_total", m.RecordsFailedTotal)
		write("taskhub_records_skipped_total", m.RecordsSkippedTotal)
		write("taskhub_loader_runs_total", m.LoaderRunsTotal)
		write("taskhub_loader_run_errors_total", m.LoaderRunErrors)
		write("taskhub_loader_run_duration_seconds", m.lastRunDuration.Seconds())

		// Routing metrics
		write("taskhub_items_routed_total", m.ItemsRoutedTotal)
		write("taskhub_items_unrouted_total", m.ItemsUnroutedTotal)
		write("taskhub_items_held_total", m.ItemsHeldTotal)

		// Session metrics
		write("taskhub_state_transitions_total", m.StateTransitionsTotal)
		write("taskhub_reservation_timeouts_total", m.ReservationTimeoutsTotal)
		write("taskhub_items_assigned_total", m.ItemsAssignedTotal)
		write("taskhub_items_completed_total", m.ItemsCompletedTotal)

		// WebSocket metrics
		write("taskhub_websocket_connections_total", m.WebSocketConnectionsTotal)
		write("taskhub_websocket_disconnections_total", m.WebSocketDisconnectionsTotal)
		write("taskhub_websocket_active_connections", m.activeConnections)
		write("taskhub_websocket_messages_total", m.WebSocketMessagesTotal)
		write("taskhub_websocket_errors_total", m.WebSocketErrorsTotal)

		// Session distribution
		write("taskhub_sessions_total", m.totalSessions)
		for state, count := range m.sessionsByState {
			write("taskhub_sessions_by_state", count, "state", state)
		}

		// HTTP metrics
		for endpoint, statusCodes := range m.httpRequestsTotal {
			for status, count := range statusCodes {
				write("taskhub_http_requests_total", count, "endpoint", endpoint, "status", strconv.Itoa(status))
			}
		}
	}
}
