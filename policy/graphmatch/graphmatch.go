// Package graphmatch implements the LP-relaxation / local-ratio
// scheduler: a fractional LP relaxation over candidate instances,
// expanded into per-RSU rank copies on the offload and processing side
// independently, merged into app-level hyperedges over the two sides
// jointly, relaxed again as a tripartite degree-constrained matching LP,
// and rounded to an integral selection by a fractional local-ratio pass.
// All intermediate structures are addressed by slice index, never by
// pointer.
package graphmatch

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/edgevec/schedcore/candidates"
	"github.com/edgevec/schedcore/config"
	"github.com/edgevec/schedcore/model"
	"github.com/edgevec/schedcore/policy"
	"github.com/edgevec/schedcore/resources"
)

// Name is the config.Policy value this scheduler is registered under.
const Name = config.PolicyGraphMatch

// Scheduler is the GraphMatch policy implementation.
type Scheduler struct {
	Solver LPSolver
}

// New constructs a GraphMatch Scheduler backed by solver. Pass nil to
// use the default gonum-backed solver.
func New(solver LPSolver) *Scheduler {
	if solver == nil {
		solver = GonumSolver{}
	}
	return &Scheduler{Solver: solver}
}

// Name returns the policy name.
func (s *Scheduler) Name() string { return string(Name) }

// rankSlot is one unit-capacity rank copy of an RSU on one side
// (offload or processing) — RSU r's rank copies are implicitly
// numbered 0..ceil(S_r)-1, where S_r is the total Phase-1 LP weight
// routed through r on that side; the rank index a piece lands in is
// however far the running fractional sweep had advanced when it was
// placed, never an explicit count.
type rankSlot struct {
	rsu  model.NodeID
	rank int
}

// split is one candidate instance's fractional LP weight confined to a
// single rank slot on one side, produced by phase2Side's sweep.
type split struct {
	slot   rankSlot
	length float64
}

// piece is one (offRank, procRank) combination a candidate instance's
// LP weight is divided across, after intersecting its independent
// offload-side and processing-side splits.
type piece struct {
	offSlot  rankSlot
	procSlot rankSlot
	weight   float64
}

// hyperedge is a Phase-3 tripartite unit: one application's pieces at a
// given (offRank, procRank) pair, merged into a single demand entry.
type hyperedge struct {
	appIdx      int
	instIdx     int
	offSlot     rankSlot
	procSlot    rankSlot
	offRSU      model.NodeID
	procRSU     model.NodeID
	rbDemand    int
	cuDemand    int
	utilOrig    float64 // Phase-1 candidate utility, preserved unchanged
	utilPhase3  float64 // accumulated from the merged pieces' LP-weight share
	neighborSum float64 // not set or read; phase5 keeps its ordering keys in a local slice
}

// Select runs the five-phase GraphMatch procedure and returns the
// integral selection Phase 5 admits.
func (s *Scheduler) Select(ctx context.Context, set *candidates.Set, res resources.Snapshot, cfg config.Config) (policy.Selection, error) {
	if len(set.Instances) == 0 {
		return policy.Selection{}, nil
	}

	weights, err := s.phase1(ctx, set, res, cfg)
	if err != nil {
		if errors.Is(err, model.ErrLPSolverException) {
			return policy.Selection{}, nil
		}
		return policy.Selection{}, err
	}

	offSplits := phase2Side(weights, set, func(inst candidates.Instance) model.NodeID { return inst.OffRSU })
	procSplits := phase2Side(weights, set, func(inst candidates.Instance) model.NodeID { return inst.ProcRSU })

	instPieces := make(map[int][]piece, len(set.Instances))
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		instPieces[i] = mergePieces(offSplits[i], procSplits[i])
	}

	edges := phase3(set, instPieces)

	relaxed, err := s.phase4(ctx, edges, cfg)
	if err != nil {
		if errors.Is(err, model.ErrLPSolverException) {
			return policy.Selection{}, nil
		}
		return policy.Selection{}, err
	}

	return phase5(set, edges, relaxed, res), nil
}

// phase1 builds and solves the candidate-level LP relaxation: maximize
// total utility subject to a per-RSU RB/CU capacity bound and a
// per-application at-most-one-instance constraint, with each variable
// boxed to [0,1]. The capacity bound is not the raw available count but
// ceil(available * (1 - fairFactor)): fairFactor reserves a fraction of
// each RSU's headroom that this LP relaxation may never claim. Phase-5
// admission afterward checks against the full available counts, not
// this reduced bound.
func (s *Scheduler) phase1(ctx context.Context, set *candidates.Set, res resources.Snapshot, cfg config.Config) ([]float64, error) {
	n := len(set.Instances)
	p := NewLPProblem(n)

	for i, inst := range set.Instances {
		p.SetObjective(i, inst.Utility)
	}

	headroom := 1 - cfg.FairFactor
	// bound absorbs float rounding in avail*headroom (10*(1-0.7) is
	// 3.0000000000000004, whose plain ceil would be 4, not 3).
	bound := func(avail int) float64 { return math.Ceil(float64(avail)*headroom - 1e-9) }

	for rsu, capAvail := range res.RBAvailable {
		row := make([]float64, n)
		any := false
		for i, inst := range set.Instances {
			if inst.OffRSU == rsu {
				row[i] = float64(inst.RBs)
				any = true
			}
		}
		if any {
			p.AddLE(row, bound(capAvail))
		}
	}
	for rsu, capAvail := range res.CUAvailable {
		row := make([]float64, n)
		any := false
		for i, inst := range set.Instances {
			if inst.ProcRSU == rsu {
				row[i] = float64(inst.CUs)
				any = true
			}
		}
		if any {
			p.AddLE(row, bound(capAvail))
		}
	}
	for _, idxs := range set.ByApp {
		row := make([]float64, n)
		for _, i := range idxs {
			row[i] = 1
		}
		p.AddLE(row, 1)
	}

	return s.Solver.Solve(ctx, p, cfg.LPTimeLimit)
}

// phase2Side expands every candidate's Phase-1 LP weight into rank-copy
// splits on one side (offload RSU or processing RSU, picked by rsuOf):
// candidates routed through the same RSU are laid end to end, by
// descending weight, along a running fractional sum; whichever integer
// rank boundary [0,1), [1,2), ... a candidate's interval falls in (or
// crosses) becomes the rank slot(s) its weight is assigned to. A
// candidate's weight is always in [0,1], so its interval crosses at
// most one boundary, producing at most two splits.
func phase2Side(weights []float64, set *candidates.Set, rsuOf func(candidates.Instance) model.NodeID) map[int][]split {
	byRSU := make(map[model.NodeID][]int)
	for i, inst := range set.Instances {
		if weights[i] <= 0 {
			continue
		}
		r := rsuOf(inst)
		byRSU[r] = append(byRSU[r], i)
	}

	result := make(map[int][]split)
	for _, idxs := range byRSU {
		sort.Slice(idxs, func(a, b int) bool {
			if weights[idxs[a]] != weights[idxs[b]] {
				return weights[idxs[a]] > weights[idxs[b]]
			}
			return idxs[a] < idxs[b]
		})

		var cum float64
		for _, idx := range idxs {
			w := weights[idx]
			rsu := rsuOf(set.Instances[idx])
			start := cum
			end := cum + w
			startRank := int(math.Floor(start))
			endRank := int(math.Floor(end))
			if endRank > startRank && end == math.Trunc(end) {
				endRank-- // land exactly-on-boundary weight in the lower rank
			}
			if startRank == endRank {
				result[idx] = append(result[idx], split{slot: rankSlot{rsu: rsu, rank: startRank}, length: w})
			} else {
				boundary := float64(startRank + 1)
				result[idx] = append(result[idx],
					split{slot: rankSlot{rsu: rsu, rank: startRank}, length: boundary - start},
					split{slot: rankSlot{rsu: rsu, rank: endRank}, length: end - boundary},
				)
			}
			cum = end
		}
	}
	return result
}

// mergePieces intersects one candidate's independently computed
// offload-side and processing-side splits (each partitioning the same
// [0, weight) interval, just at different breakpoints) into the joint
// (offRank, procRank) pieces that interval decomposes into.
func mergePieces(off, proc []split) []piece {
	if len(off) == 0 || len(proc) == 0 {
		return nil
	}
	var out []piece
	oi, pi := 0, 0
	var oPos, pPos float64
	const eps = 1e-9
	for oi < len(off) && pi < len(proc) {
		oRemain := off[oi].length - oPos
		pRemain := proc[pi].length - pPos
		step := math.Min(oRemain, pRemain)
		if step > eps {
			out = append(out, piece{offSlot: off[oi].slot, procSlot: proc[pi].slot, weight: step})
		}
		oPos += step
		pPos += step
		if oPos >= off[oi].length-eps {
			oi++
			oPos = 0
		}
		if pPos >= proc[pi].length-eps {
			pi++
			pPos = 0
		}
	}
	return out
}

// phase3 merges every candidate's pieces sharing the same (app, offRank,
// procRank) into a single tripartite hyperedge. utilOrig is the
// Phase-1 candidate utility, preserved unchanged from the first piece
// that creates the hyperedge; utilPhase3 accumulates each merged
// piece's share of its source candidate's utility (utility scales
// linearly with LP weight, so a piece of weight w contributes
// instance.Utility * w) — the two are kept as separate fields rather
// than collapsed into one (see DESIGN.md's Open Question notes).
func phase3(set *candidates.Set, instPieces map[int][]piece) []hyperedge {
	type key struct {
		app  int
		off  rankSlot
		proc rankSlot
	}
	merged := make(map[key]*hyperedge)
	var order []key

	for instIdx := 0; instIdx < len(set.Instances); instIdx++ {
		pieces, ok := instPieces[instIdx]
		if !ok {
			continue
		}
		inst := set.Instances[instIdx]
		for _, pc := range pieces {
			k := key{app: inst.AppIdx, off: pc.offSlot, proc: pc.procSlot}
			he, ok := merged[k]
			if !ok {
				he = &hyperedge{
					appIdx: inst.AppIdx, instIdx: instIdx,
					offSlot: pc.offSlot, procSlot: pc.procSlot,
					offRSU: pc.offSlot.rsu, procRSU: pc.procSlot.rsu,
					utilOrig: inst.Utility,
				}
				merged[k] = he
				order = append(order, k)
			}
			he.rbDemand += int(math.Round(float64(inst.RBs) * pc.weight))
			he.cuDemand += int(math.Round(float64(inst.CUs) * pc.weight))
			he.utilPhase3 += inst.Utility * pc.weight
		}
	}

	sort.Slice(order, func(a, b int) bool {
		ka, kb := order[a], order[b]
		if ka.app != kb.app {
			return ka.app < kb.app
		}
		if ka.off.rsu != kb.off.rsu {
			return ka.off.rsu < kb.off.rsu
		}
		if ka.off.rank != kb.off.rank {
			return ka.off.rank < kb.off.rank
		}
		if ka.proc.rsu != kb.proc.rsu {
			return ka.proc.rsu < kb.proc.rsu
		}
		return ka.proc.rank < kb.proc.rank
	})

	out := make([]hyperedge, 0, len(order))
	for _, k := range order {
		he := merged[k]
		if he.rbDemand <= 0 || he.cuDemand <= 0 {
			continue
		}
		out = append(out, *he)
	}
	return out
}

// phase4 relaxes the merged hyperedges into a second LP: a tripartite
// matching relaxation maximizing total utility subject to each rank
// copy (offload-side or processing-side) and each application being
// claimed by at most one unit of fractional weight across all incident
// hyperedges, one variable per hyperedge boxed to [0,1]. Unlike phase1,
// this is a degree constraint over rank copies, not a capacity bound
// over raw RB/CU counts — rank copies already encode capacity via how
// many of them phase2Side created.
func (s *Scheduler) phase4(ctx context.Context, edges []hyperedge, cfg config.Config) ([]float64, error) {
	n := len(edges)
	if n == 0 {
		return nil, nil
	}
	p := NewLPProblem(n)
	for i, e := range edges {
		p.SetObjective(i, e.utilPhase3)
	}

	offRows := make(map[rankSlot][]int)
	procRows := make(map[rankSlot][]int)
	appRows := make(map[int][]int)
	for i, e := range edges {
		offRows[e.offSlot] = append(offRows[e.offSlot], i)
		procRows[e.procSlot] = append(procRows[e.procSlot], i)
		appRows[e.appIdx] = append(appRows[e.appIdx], i)
	}
	addDegreeConstraint := func(idxs []int) {
		row := make([]float64, n)
		for _, i := range idxs {
			row[i] = 1
		}
		p.AddLE(row, 1)
	}
	for _, idxs := range offRows {
		addDegreeConstraint(idxs)
	}
	for _, idxs := range procRows {
		addDegreeConstraint(idxs)
	}
	for _, idxs := range appRows {
		addDegreeConstraint(idxs)
	}

	return s.Solver.Solve(ctx, p, cfg.LPTimeLimit)
}

// phase5 performs fractional local-ratio rounding: hyperedges are
// ordered by descending neighborhood-sum (the sum of the relaxed weights
// of every hyperedge sharing an RSU with it), then admitted in reverse
// order, re-checking live capacity and positive utility at admission
// time — the forward pass only establishes elimination order, the
// reverse pass is what actually selects.
func phase5(set *candidates.Set, edges []hyperedge, relaxed []float64, res resources.Snapshot) policy.Selection {
	if len(edges) == 0 {
		return policy.Selection{}
	}

	neighborSum := make([]float64, len(edges))
	for i, e := range edges {
		var sum float64
		for j, o := range edges {
			if i == j {
				continue
			}
			if o.offRSU == e.offRSU || o.procRSU == e.procRSU {
				sum += relaxed[j]
			}
		}
		neighborSum[i] = sum
	}

	order := make([]int, len(edges))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		if neighborSum[order[a]] != neighborSum[order[b]] {
			return neighborSum[order[a]] > neighborSum[order[b]]
		}
		return order[a] < order[b]
	})

	avail := policy.NewCapacity(res)
	admittedApp := make(map[int]bool)
	var sel policy.Selection

	for i := len(order) - 1; i >= 0; i-- {
		e := edges[order[i]]
		if admittedApp[e.appIdx] {
			continue
		}
		if e.utilOrig <= 0 {
			continue
		}
		if !avail.Fits(e.offRSU, e.procRSU, e.rbDemand, e.cuDemand) {
			continue
		}
		inst := set.Instances[e.instIdx]
		avail.Reserve(e.offRSU, e.procRSU, e.rbDemand, e.cuDemand)
		admittedApp[e.appIdx] = true
		sel.Picks = append(sel.Picks, policy.Pick{Instance: inst})
		sel.TotalUtil += inst.Utility
	}
	return sel
}
