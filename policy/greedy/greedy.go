// Package greedy implements the efficiency-ranked baseline scheduler:
// sort all candidates by efficiency descending, admit each in turn if
// capacity allows, skip it otherwise — no iterative refinement, one
// deterministic pass, following the original scheduler's
// SchemeFwdGreedy.
package greedy

import (
	"context"
	"sort"

	"github.com/edgevec/schedcore/candidates"
	"github.com/edgevec/schedcore/config"
	"github.com/edgevec/schedcore/policy"
	"github.com/edgevec/schedcore/resources"
)

// Name is the config.Policy value this scheduler is registered under.
const Name = config.PolicyGreedy

// Scheduler is the greedy policy implementation.
type Scheduler struct{}

// New constructs a greedy Scheduler.
func New() *Scheduler { return &Scheduler{} }

// Name returns the policy name.
func (s *Scheduler) Name() string { return string(Name) }

// efficiency ranks a candidate by utility per unit of relative resource
// pressure it places on its RSUs: utility / ((RBs/rbAvailable) *
// (CUs/cuAvailable)), zero if either RSU currently has no available
// capacity. This is SchemeFwdGreedy.cc's instEfficiency, not raw
// Instance.Utility.
func efficiency(inst candidates.Instance, res resources.Snapshot) float64 {
	rbAvail := res.RBAvailable[inst.OffRSU]
	cuAvail := res.CUAvailable[inst.ProcRSU]
	if rbAvail <= 0 || cuAvail <= 0 {
		return 0
	}
	rbLoad := float64(inst.RBs) / float64(rbAvail)
	cuLoad := float64(inst.CUs) / float64(cuAvail)
	if rbLoad <= 0 || cuLoad <= 0 {
		return 0
	}
	return inst.Utility / (rbLoad * cuLoad)
}

// Select ranks candidates by efficiency descending and admits each
// greedily while capacity allows, with at most one pick per application
// (the first, highest-efficiency instance for that application to be
// admitted).
func (s *Scheduler) Select(_ context.Context, set *candidates.Set, res resources.Snapshot, cfg config.Config) (policy.Selection, error) {
	eff := make([]float64, len(set.Instances))
	for i, inst := range set.Instances {
		eff[i] = efficiency(inst, res)
	}

	order := make([]int, len(set.Instances))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		if eff[ia] != eff[ib] {
			return eff[ia] > eff[ib]
		}
		// deterministic tie-break: lower AppID, then lower array index
		if set.Instances[ia].AppID != set.Instances[ib].AppID {
			return set.Instances[ia].AppID < set.Instances[ib].AppID
		}
		return ia < ib
	})

	avail := policy.NewCapacity(res)
	admittedApp := make(map[int]bool, len(set.Apps))
	var sel policy.Selection

	for _, idx := range order {
		inst := set.Instances[idx]
		if admittedApp[inst.AppIdx] {
			continue
		}
		if !avail.Fits(inst.OffRSU, inst.ProcRSU, inst.RBs, inst.CUs) {
			continue
		}
		avail.Reserve(inst.OffRSU, inst.ProcRSU, inst.RBs, inst.CUs)
		admittedApp[inst.AppIdx] = true
		sel.Picks = append(sel.Picks, policy.Pick{Instance: inst})
		sel.TotalUtil += inst.Utility
	}

	_ = cfg
	return sel, nil
}
