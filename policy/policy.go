// Package policy defines the Scheduler Core's pluggable algorithm
// interface and the provisional capacity bookkeeping every policy shares
// while it selects candidates within one epoch. Concrete families live
// in the greedy, graphmatch and quicklr subpackages; the facade
// (schedcore.go) composes whichever one config.Config.Policy names via
// Registry, picking an algorithm at runtime instead of compiling one in.
package policy

import (
	"context"
	"fmt"

	"github.com/edgevec/schedcore/candidates"
	"github.com/edgevec/schedcore/config"
	"github.com/edgevec/schedcore/model"
	"github.com/edgevec/schedcore/resources"
)

// Pick is one accepted candidate instance, carried forward to the Grant
// Issuer without re-deriving delay or utility.
type Pick struct {
	candidates.Instance
}

// Selection is a policy's complete output for one epoch.
type Selection struct {
	Picks     []Pick
	TotalUtil float64
}

// Scheduler selects a feasible, capacity-respecting subset of a
// candidate Set. Implementations must not mutate res; they track
// provisional reservations in a Capacity value seeded from res.
type Scheduler interface {
	Name() string
	Select(ctx context.Context, set *candidates.Set, res resources.Snapshot, cfg config.Config) (Selection, error)
}

// Registry maps a config.Policy name to the Scheduler implementing it.
type Registry struct {
	schedulers map[config.Policy]Scheduler
}

// NewRegistry constructs an empty policy registry.
func NewRegistry() *Registry {
	return &Registry{schedulers: make(map[config.Policy]Scheduler)}
}

// Register adds or replaces the Scheduler for a policy name.
func (r *Registry) Register(name config.Policy, s Scheduler) {
	r.schedulers[name] = s
}

// Get returns the Scheduler registered for name.
func (r *Registry) Get(name config.Policy) (Scheduler, error) {
	s, ok := r.schedulers[name]
	if !ok {
		return nil, fmt.Errorf("policy %q: %w", name, model.ErrPolicyNotImplemented)
	}
	return s, nil
}

// Capacity is a provisional, in-memory working copy of a resources.Snapshot's
// available RBs/CUs, reserved and released as a policy walks candidates
// within one epoch. The authoritative commit against the live Resource
// Registry happens later, once, in the Grant Issuer — this tracker only
// has to agree with that later commit, never replace it.
type Capacity struct {
	rb map[model.NodeID]int
	cu map[model.NodeID]int
}

// NewCapacity seeds a tracker from a resource snapshot's available counts.
func NewCapacity(res resources.Snapshot) *Capacity {
	c := &Capacity{rb: make(map[model.NodeID]int), cu: make(map[model.NodeID]int)}
	for id, v := range res.RBAvailable {
		c.rb[id] = v
	}
	for id, v := range res.CUAvailable {
		c.cu[id] = v
	}
	return c
}

// Fits reports whether rbs are still available at offRSU and cus at
// procRSU.
func (c *Capacity) Fits(offRSU, procRSU model.NodeID, rbs, cus int) bool {
	return c.rb[offRSU] >= rbs && c.cu[procRSU] >= cus
}

// Reserve provisionally deducts rbs/cus. Callers must have checked Fits
// first; Reserve does not itself validate.
func (c *Capacity) Reserve(offRSU, procRSU model.NodeID, rbs, cus int) {
	c.rb[offRSU] -= rbs
	c.cu[procRSU] -= cus
}

// Release returns previously reserved rbs/cus. None of the greedy,
// graphmatch or quicklr schedulers calls it; they never undo a
// reservation.
func (c *Capacity) Release(offRSU, procRSU model.NodeID, rbs, cus int) {
	c.rb[offRSU] += rbs
	c.cu[procRSU] += cus
}

// RBAvailable returns the current provisional RB balance at id.
func (c *Capacity) RBAvailable(id model.NodeID) int { return c.rb[id] }

// CUAvailable returns the current provisional CU balance at id.
func (c *Capacity) CUAvailable(id model.NodeID) int { return c.cu[id] }
