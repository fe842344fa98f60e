package resources

import (
	"sync"
	"time"

	"github.com/edgevec/schedcore/model"
)

// ServiceTimeTable maps (deviceType, service) to the execution time a
// processing RSU of that device type needs to run one job of that
// service at full compute resources. It is the Go counterpart of the
// original source's BandManager device-type/service exec-time table
// (src/mecrt/common/BandManager.cc).
type ServiceTimeTable struct {
	mu    sync.RWMutex
	table map[model.DeviceType]map[model.ServiceKind]time.Duration
}

// NewServiceTimeTable constructs an empty table.
func NewServiceTimeTable() *ServiceTimeTable {
	return &ServiceTimeTable{table: make(map[model.DeviceType]map[model.ServiceKind]time.Duration)}
}

// Set records the execution time for a (deviceType, service) pair.
func (t *ServiceTimeTable) Set(dt model.DeviceType, svc model.ServiceKind, exeTime time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.table[dt]
	if !ok {
		m = make(map[model.ServiceKind]time.Duration)
		t.table[dt] = m
	}
	m[svc] = exeTime
}

// Lookup returns the execution time and true if deviceType supports
// service; otherwise it returns the "unsupported" sentinel (zero,
// false) — the caller treats this as infinite delay, not an error.
func (t *ServiceTimeTable) Lookup(dt model.DeviceType, svc model.ServiceKind) (time.Duration, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.table[dt]
	if !ok {
		return 0, false
	}
	exe, ok := m[svc]
	return exe, ok
}
