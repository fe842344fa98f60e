// Package quicklr implements the categorical local-ratio approximation:
// candidates are split into four RB/CU "load categories" (low/low,
// low/high, high/low, high/high relative to the candidate's RSU
// capacity), partitioned into two disjoint families that each run a
// local-ratio reduction once, and the larger of the two resulting
// selections is kept. Registered under both the energy-oriented quickLR
// name and the accuracy-oriented fastSA name (SchemeFwdQuickLR and
// SchemeFwdFastSA in the original scheduler share this same structure).
package quicklr

import (
	"context"

	"github.com/edgevec/schedcore/candidates"
	"github.com/edgevec/schedcore/config"
	"github.com/edgevec/schedcore/model"
	"github.com/edgevec/schedcore/policy"
	"github.com/edgevec/schedcore/resources"
)

// category is one of the four RB/CU load classes a candidate instance
// falls into, relative to half its RSU's capacity.
type category int

const (
	catLL category = iota // low RB, low CU
	catLH                 // low RB, high CU
	catHL                 // high RB, low CU
	catHH                 // high RB, high CU
)

func classify(inst candidates.Instance, res resources.Snapshot) category {
	rbHigh := inst.RBs*2 > res.RBCapacity[inst.OffRSU]
	cuHigh := inst.CUs*2 > res.CUCapacity[inst.ProcRSU]
	switch {
	case !rbHigh && !cuHigh:
		return catLL
	case !rbHigh && cuHigh:
		return catLH
	case rbHigh && !cuHigh:
		return catHL
	default:
		return catHH
	}
}

// Scheduler is the quickLR/fastSA policy implementation. policyName
// distinguishes only the registered policy name; the algorithm is
// identical for both.
type Scheduler struct {
	policyName config.Policy
}

// New constructs a Scheduler registered under name (PolicyQuickLR or
// PolicyFastSA).
func New(name config.Policy) *Scheduler {
	return &Scheduler{policyName: name}
}

// Name returns the registered policy name.
func (s *Scheduler) Name() string { return string(s.policyName) }

// reduced is a candidate instance plus its effective (reduced) utility
// score for one family's local-ratio pass.
type reduced struct {
	idx   int
	score float64
}

// Select runs the dual-family local-ratio reduction and keeps the
// larger-total-utility result.
func (s *Scheduler) Select(_ context.Context, set *candidates.Set, res resources.Snapshot, cfg config.Config) (policy.Selection, error) {
	cats := make([]category, len(set.Instances))
	for i, inst := range set.Instances {
		cats[i] = classify(inst, res)
	}

	// Family B ("ForType"): designated category HL runs its own pass;
	// Family A ("ExcludeType"): the remaining three categories run
	// together. This asymmetric split, and the asymmetric coefficient
	// placement in effectiveUtility below, are both taken verbatim from
	// the original scheduler; they are not simplified to a symmetric form.
	var familyB, familyA []int
	for i, c := range cats {
		if c == catHL {
			familyB = append(familyB, i)
		} else {
			familyA = append(familyA, i)
		}
	}

	selB := s.runFamily(familyB, true, set, res)
	selA := s.runFamily(familyA, false, set, res)

	if selB.TotalUtil >= selA.TotalUtil {
		return selB, nil
	}
	return selA, nil
}

// runFamily runs one local-ratio reduction pass over the given candidate
// indices. forType selects which of the two asymmetric coefficient
// placements effectiveUtility applies.
//
// The reduction itself is a single forward pass over indices in the
// order given (candidateGenerateForType/candidateGenerateExcludeType in
// the original scheduler never rescan or re-rank the remaining
// candidates; they walk the category array once). Five accumulators are
// carried across the pass: redApp/redOff/redProc are the running
// reduction totals per application and per RSU, and redOffApp/redProcApp
// are each application's own prior contribution to redOff/redProc at a
// specific RSU. A candidate's score is computed against redOff/redProc
// with that candidate's own application's prior contribution at the
// same RSU subtracted back out first (reductRbPerRsuIndex -
// reductRbAppInRsu / reductCuPerRsuIndex - reductCuAppInRsu in the
// original), so a second candidate of the same application at the same
// RSU is not penalized for reductions it itself already caused.
func (s *Scheduler) runFamily(indices []int, forType bool, set *candidates.Set, res resources.Snapshot) policy.Selection {
	avail := policy.NewCapacity(res)

	redApp := make(map[int]float64)
	redOff := make(map[model.NodeID]float64)
	redProc := make(map[model.NodeID]float64)
	redOffApp := make(map[int]map[model.NodeID]float64)
	redProcApp := make(map[int]map[model.NodeID]float64)

	order := make([]int, len(indices))
	copy(order, indices)

	for _, idx := range order {
		inst := set.Instances[idx]
		rbUtil := float64(inst.RBs) / float64(maxInt(res.RBCapacity[inst.OffRSU], 1))
		cuUtil := float64(inst.CUs) / float64(maxInt(res.CUCapacity[inst.ProcRSU], 1))

		redOffRsu := redOff[inst.OffRSU] - redOffApp[inst.AppIdx][inst.OffRSU]
		redProcRsu := redProc[inst.ProcRSU] - redProcApp[inst.AppIdx][inst.ProcRSU]

		score := effectiveUtility(inst, redApp[inst.AppIdx], redOffRsu, redProcRsu, rbUtil, cuUtil, forType)

		redApp[inst.AppIdx] += score
		redOff[inst.OffRSU] += score * rbUtil
		redProc[inst.ProcRSU] += score * cuUtil

		if redOffApp[inst.AppIdx] == nil {
			redOffApp[inst.AppIdx] = make(map[model.NodeID]float64)
		}
		if redProcApp[inst.AppIdx] == nil {
			redProcApp[inst.AppIdx] = make(map[model.NodeID]float64)
		}
		redOffApp[inst.AppIdx][inst.OffRSU] += score * rbUtil
		redProcApp[inst.AppIdx][inst.ProcRSU] += score * cuUtil
	}

	var sel policy.Selection
	admittedApp := make(map[int]bool)
	for i := len(order) - 1; i >= 0; i-- {
		idx := order[i]
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
	return sel
}

// effectiveUtility computes the reduced score for a candidate given its
// accumulated reductions and current RB/CU utilization ratios. The
// coefficient placement is asymmetric between families: Family B
// ("ForType") weights the offload-side reduction twice and the
// processing-side once; Family A ("ExcludeType") does the reverse. This
// mirrors the original scheduler's candidateGenerateForType /
// candidateGenerateExcludeType split exactly.
func effectiveUtility(inst candidates.Instance, redApp, redOff, redProc, rbUtil, cuUtil float64, forType bool) float64 {
	if forType {
		return inst.Utility - redApp - 2*redOff*rbUtil - redProc*cuUtil
	}
	return inst.Utility - redApp - redOff*rbUtil - 2*redProc*cuUtil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
