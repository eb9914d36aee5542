package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters for requests, engine outcomes
// and scheduler cycles.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[string]int64
	errorCount    map[string]int64
	rejections    map[string]int64
	cycles        int64
	cycleFailures int64
	ticketsMoved  map[string]int64
	lastCycle     time.Time
	lastDuration  time.Duration
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Requests      map[string]int64 `json:"requests"`
	Errors        map[string]int64 `json:"errors"`
	Rejections    map[string]int64 `json:"admission_rejections"`
	Cycles        int64            `json:"cycles"`
	CycleFailures int64            `json:"cycle_failures"`
	TicketsMoved  map[string]int64 `json:"tickets_moved"`
	LastCycleAt   *time.Time       `json:"last_cycle_at,omitempty"`
	LastCycleMs   int64            `json:"last_cycle_ms"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		rejections:   make(map[string]int64),
		ticketsMoved: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordRejection counts an admission rejection by reason code.
func (m *Metrics) RecordRejection(code string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejections[code]++
}

// RecordCycle counts one scheduler cycle and the tickets it moved per sweep.
func (m *Metrics) RecordCycle(senderMoved, grabberMoved int, duration time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles++
	if failed {
		m.cycleFailures++
	}
	m.ticketsMoved["sender"] += int64(senderMoved)
	m.ticketsMoved["grabber"] += int64(grabberMoved)
	m.lastCycle = time.Now().UTC()
	m.lastDuration = duration
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := Snapshot{
		Requests:      copyCounts(m.requestCount),
		Errors:        copyCounts(m.errorCount),
		Rejections:    copyCounts(m.rejections),
		Cycles:        m.cycles,
		CycleFailures: m.cycleFailures,
		TicketsMoved:  copyCounts(m.ticketsMoved),
		LastCycleMs:   m.lastDuration.Milliseconds(),
	}
	if !m.lastCycle.IsZero() {
		last := m.lastCycle
		snap.LastCycleAt = &last
	}
	return snap
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
