// Package resources implements the Resource Registry: per-RSU capacity,
// the currently available RBs/CUs after outstanding grants, and the
// backhaul reachability map. Capacity mutation is serialized with a
// mutex guarding a per-RSU two-counter (RB, CU) fail-closed
// commit/release discipline.
package resources

import (
	"fmt"
	"sync"

	"github.com/edgevec/schedcore/model"
)

// RSU is an edge server node's static registration.
type RSU struct {
	ID          model.NodeID
	Bands       int
	CmpUnits    int
	CmpCapacity float64
	DeviceType  model.DeviceType
	// Reachable maps every RSU reachable from this one (including
	// itself, with hop-count 0) to its backhaul hop-count. Stable per
	// epoch; supplied by boundary infrastructure.
	Reachable map[model.NodeID]int
}

type rsuState struct {
	spec       RSU
	availBands int
	availCU    int
	active     bool
}

// Registry holds per-RSU state. It is the sole owner of RSU records and
// their available counters.
type Registry struct {
	mu      sync.Mutex
	rsus    map[model.NodeID]*rsuState
	SvcTime *ServiceTimeTable
}

// NewRegistry constructs an empty Resource Registry backed by svcTime for
// execution-time lookups during candidate generation.
func NewRegistry(svcTime *ServiceTimeTable) *Registry {
	if svcTime == nil {
		svcTime = NewServiceTimeTable()
	}
	return &Registry{rsus: make(map[model.NodeID]*rsuState), SvcTime: svcTime}
}

// Register adds or replaces an RSU, initializing its available counters
// to full capacity and marking it active.
func (r *Registry) Register(rsu RSU) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rsus[rsu.ID] = &rsuState{spec: rsu, availBands: rsu.Bands, availCU: rsu.CmpUnits, active: true}
}

// SetActive marks an RSU active or inactive. An inactive RSU is dropped
// from Snapshot and cannot accept new grants.
func (r *Registry) SetActive(id model.NodeID, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.rsus[id]; ok {
		s.active = active
	}
}

// IsActive reports whether id is currently registered and active.
func (r *Registry) IsActive(id model.NodeID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rsus[id]
	return ok && s.active
}

// Snapshot is a point-in-time, read-only view the Candidate Generator
// enumerates over. It never observes concurrent commits.
type Snapshot struct {
	RSUIDs      []model.NodeID
	RBCapacity  map[model.NodeID]int
	RBAvailable map[model.NodeID]int
	CUCapacity  map[model.NodeID]int
	CUAvailable map[model.NodeID]int
	DeviceType  map[model.NodeID]model.DeviceType
	CmpCapacity map[model.NodeID]float64
	Reachable   map[model.NodeID]map[model.NodeID]int
	SvcTime     *ServiceTimeTable
}

// Snapshot returns the current state of all active RSUs. Inactive RSUs
// are dropped so downstream enumeration never sees a dead RSU.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		RBCapacity:  make(map[model.NodeID]int),
		RBAvailable: make(map[model.NodeID]int),
		CUCapacity:  make(map[model.NodeID]int),
		CUAvailable: make(map[model.NodeID]int),
		DeviceType:  make(map[model.NodeID]model.DeviceType),
		CmpCapacity: make(map[model.NodeID]float64),
		Reachable:   make(map[model.NodeID]map[model.NodeID]int),
		SvcTime:     r.SvcTime,
	}
	for id, s := range r.rsus {
		if !s.active {
			continue
		}
		snap.RSUIDs = append(snap.RSUIDs, id)
		snap.RBCapacity[id] = s.spec.Bands
		snap.RBAvailable[id] = s.availBands
		snap.CUCapacity[id] = s.spec.CmpUnits
		snap.CUAvailable[id] = s.availCU
		snap.DeviceType[id] = s.spec.DeviceType
		snap.CmpCapacity[id] = s.spec.CmpCapacity
		reach := make(map[model.NodeID]int, len(s.spec.Reachable))
		for dst, hop := range s.spec.Reachable {
			reach[dst] = hop
		}
		snap.Reachable[id] = reach
	}
	return snap
}

// ExeDelay computes the execution delay on RSU proc for running service
// svc on cus compute units, or returns ok=false if proc's device type has
// no execution-time entry for svc (the UnsupportedService case — treated
// as infinite delay by the caller, not a hard error).
func (s Snapshot) ExeDelay(proc model.NodeID, svc model.ServiceKind, cus int) (float64, bool) {
	if cus <= 0 {
		return 0, false
	}
	dt, ok := s.DeviceType[proc]
	if !ok {
		return 0, false
	}
	exe, ok := s.SvcTime.Lookup(dt, svc)
	if !ok {
		return 0, false
	}
	cmp := s.CmpCapacity[proc]
	return exe.Seconds() * cmp / float64(cus), true
}

// CommitGrant atomically subtracts RBs from offRsu and CUs from procRsu.
// It fails with model.ErrCapacityExceeded if either side would go
// negative, or model.ErrRSUInactive if either RSU is not active — callers
// must have already tested capacity via a Snapshot, but this call is the
// authoritative, serialized check against live state.
func (r *Registry) CommitGrant(offRsu, procRsu model.NodeID, rbs, cus int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	off, ok := r.rsus[offRsu]
	if !ok || !off.active {
		return fmt.Errorf("commit grant on offload rsu %d: %w", offRsu, model.ErrRSUInactive)
	}
	proc, ok := r.rsus[procRsu]
	if !ok || !proc.active {
		return fmt.Errorf("commit grant on processing rsu %d: %w", procRsu, model.ErrRSUInactive)
	}
	if off.availBands-rbs < 0 {
		return fmt.Errorf("commit grant: %w: rsu %d has %d RBs available, need %d", model.ErrCapacityExceeded, offRsu, off.availBands, rbs)
	}
	if proc.availCU-cus < 0 {
		return fmt.Errorf("commit grant: %w: rsu %d has %d CUs available, need %d", model.ErrCapacityExceeded, procRsu, proc.availCU, cus)
	}
	off.availBands -= rbs
	proc.availCU -= cus
	return nil
}

// ReleaseGrant symmetrically returns RBs/CUs previously committed. It is
// a no-op for an RSU no longer registered (e.g. decommissioned).
func (r *Registry) ReleaseGrant(offRsu, procRsu model.NodeID, rbs, cus int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if off, ok := r.rsus[offRsu]; ok {
		off.availBands += rbs
		if off.availBands > off.spec.Bands {
			off.availBands = off.spec.Bands
		}
	}
	if proc, ok := r.rsus[procRsu]; ok {
		proc.availCU += cus
		if proc.availCU > proc.spec.CmpUnits {
			proc.availCU = proc.spec.CmpUnits
		}
	}
}
