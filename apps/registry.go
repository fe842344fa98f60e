// Package apps implements the Application Registry: a pure container of
// pending vehicular applications, copied into a dense epoch-local slice
// at the start of each scheduling epoch so downstream components reason
// in integer indices rather than map lookups. No LRU/spillover
// machinery — applications are small, in-memory records with nothing
// to spill.
package apps

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/edgevec/schedcore/model"
)

// Application is a pending vehicular application's static attributes.
type Application struct {
	ID           model.AppID
	VehID        string
	Period       time.Duration
	InputSize    int64
	OutputSize   int64
	Service      model.ServiceKind
	Energy       float64
	OffloadPower float64
	StopTime     time.Time
}

// Registry holds pending applications keyed by AppID. It imposes no
// scheduling policy.
type Registry struct {
	mu   sync.RWMutex
	apps map[model.AppID]Application
}

// NewRegistry constructs an empty Application Registry.
func NewRegistry() *Registry {
	return &Registry{apps: make(map[model.AppID]Application)}
}

// Enroll adds an application. Fails with model.ErrInvalidApplication if
// period <= 0.
func (r *Registry) Enroll(app Application) error {
	if app.Period <= 0 {
		return fmt.Errorf("enroll app %d: %w", app.ID, model.ErrInvalidApplication)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apps[app.ID] = app
	return nil
}

// Retire removes an application. Retiring an application that is not
// enrolled is a no-op.
func (r *Registry) Retire(id model.AppID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.apps, id)
}

// Get returns the application for id, if enrolled.
func (r *Registry) Get(id model.AppID) (Application, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.apps[id]
	return a, ok
}

// Snapshot returns currently pending applications in a stable iteration
// order (ascending AppID) so downstream epoch processing is
// deterministic given unchanged enrollment.
func (r *Registry) Snapshot() []Application {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Application, 0, len(r.apps))
	for _, a := range r.apps {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len reports the number of currently enrolled applications.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.apps)
}
