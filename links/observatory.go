// Package links implements the Link Observatory: per-(vehicle, RSU)
// radio feedback, freshness filtering, and the vehicle's access set. Its
// per-key staleness bookkeeping is a per-key mutable state map guarded
// by a single mutex, pruned lazily on read.
package links

import (
	"sync"
	"time"

	"github.com/edgevec/schedcore/model"
)

// Sample is one radio feedback reading.
type Sample struct {
	Rate      float64 // achievable bytes per TTI
	UpdatedAt time.Time
}

// Observatory holds, per vehicle, the set of RSUs currently considered
// reachable (the access set) and the latest sample for each.
type Observatory struct {
	mu         sync.Mutex
	freshness  time.Duration
	accessSets map[string]map[model.NodeID]Sample
}

// NewObservatory constructs an Observatory that treats a sample as usable
// only while now-updatedAt <= freshness and rate > 0.
func NewObservatory(freshness time.Duration) *Observatory {
	return &Observatory{freshness: freshness, accessSets: make(map[string]map[model.NodeID]Sample)}
}

// Report records a radio feedback sample, arriving asynchronously at any
// rate. A zero or negative rate still registers — it is pruned on the
// next Prune call, consistent with the ZeroRate error kind
// being link-local, not a hard error here.
func (o *Observatory) Report(vehID string, rsu model.NodeID, bytesPerTTI float64, now time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	m, ok := o.accessSets[vehID]
	if !ok {
		m = make(map[model.NodeID]Sample)
		o.accessSets[vehID] = m
	}
	m[rsu] = Sample{Rate: bytesPerTTI, UpdatedAt: now}
}

// usable reports whether sample s is usable at time now: fresh and
// positive-rate.
func (o *Observatory) usable(s Sample, now time.Time) bool {
	return s.Rate > 0 && now.Sub(s.UpdatedAt) <= o.freshness
}

// Prune drops stale or zero-rate entries from vehID's access set (a side
// effect — the Observatory is authoritative for access-set membership
// going forward) and returns the surviving, usable RSU set.
func (o *Observatory) Prune(vehID string, now time.Time) []model.NodeID {
	o.mu.Lock()
	defer o.mu.Unlock()
	m, ok := o.accessSets[vehID]
	if !ok {
		return nil
	}
	out := make([]model.NodeID, 0, len(m))
	for rsu, s := range m {
		if o.usable(s, now) {
			out = append(out, rsu)
		} else {
			delete(m, rsu)
		}
	}
	return out
}

// Rate returns the most recently reported rate for (vehID, rsu) and
// whether it is currently usable, evaluated against the wall clock.
func (o *Observatory) Rate(vehID string, rsu model.NodeID) (float64, bool) {
	return o.RateAt(vehID, rsu, time.Now())
}

// RateAt is Rate evaluated against an explicit instant, so a single
// epoch's enumeration judges every link against the same "now" used by
// its Prune call.
func (o *Observatory) RateAt(vehID string, rsu model.NodeID, now time.Time) (float64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	m, ok := o.accessSets[vehID]
	if !ok {
		return 0, false
	}
	s, ok := m[rsu]
	if !ok {
		return 0, false
	}
	return s.Rate, o.usable(s, now)
}
