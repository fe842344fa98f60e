package graphmatch

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/edgevec/schedcore/candidates"
	"github.com/edgevec/schedcore/config"
	"github.com/edgevec/schedcore/model"
	"github.com/edgevec/schedcore/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSnap() resources.Snapshot {
	reg := resources.NewRegistry(resources.NewServiceTimeTable())
	reg.Register(resources.RSU{ID: 1, Bands: 10, CmpUnits: 10, CmpCapacity: 1.0, DeviceType: "gpu-edge"})
	reg.Register(resources.RSU{ID: 2, Bands: 10, CmpUnits: 10, CmpCapacity: 1.0, DeviceType: "cpu-edge"})
	return reg.Snapshot()
}

// fakeSolver returns a fixed weight vector regardless of the problem,
// so tests can exercise phase2-phase5 without depending on gonum's
// numeric output.
type fakeSolver struct{ weights []float64 }

func (f fakeSolver) Solve(_ context.Context, p *LPProblem, _ time.Duration) ([]float64, error) {
	if f.weights != nil {
		return f.weights, nil
	}
	out := make([]float64, p.n)
	for i := range out {
		out[i] = 1
	}
	return out, nil
}

// capturingSolver records the last LPProblem it was asked to solve, so
// tests can inspect the constraint rows a phase actually built, and
// otherwise behaves like fakeSolver.
type capturingSolver struct {
	got     **LPProblem
	weights []float64
}

func (c capturingSolver) Solve(_ context.Context, p *LPProblem, _ time.Duration) ([]float64, error) {
	*c.got = p
	if c.weights != nil {
		return c.weights, nil
	}
	out := make([]float64, p.n)
	for i := range out {
		out[i] = 1
	}
	return out, nil
}

func TestPhase1ScalesCapacityBoundByFairFactor(t *testing.T) {
	set := &candidates.Set{
		Instances: []candidates.Instance{
			{AppIdx: 0, OffRSU: 1, ProcRSU: 1, RBs: 1, CUs: 1, Utility: 1.0},
		},
		ByApp: map[int][]int{0: {0}},
	}
	res := resources.Snapshot{
		RSUIDs:      []model.NodeID{1},
		RBAvailable: map[model.NodeID]int{1: 10},
		CUAvailable: map[model.NodeID]int{1: 10},
	}
	cfg := config.Defaults()
	cfg.FairFactor = 0.7 // headroom 0.3 -> bound ceil(10*0.3) = 3

	var got *LPProblem
	s := New(capturingSolver{got: &got})
	_, err := s.phase1(context.Background(), set, res, cfg)
	require.NoError(t, err)

	require.NotNil(t, got)
	for _, rhs := range got.b {
		if rhs != 1 { // skip the per-application at-most-one row
			assert.Equal(t, 3.0, rhs)
		}
	}
}

func TestPhase2SideSplitsOnRankBoundaryCrossing(t *testing.T) {
	set := &candidates.Set{
		Instances: []candidates.Instance{
			{AppIdx: 0, OffRSU: 1},
			{AppIdx: 1, OffRSU: 1},
		},
	}
	weights := []float64{0.7, 0.6}

	splits := phase2Side(weights, set, func(inst candidates.Instance) model.NodeID { return inst.OffRSU })

	require.Len(t, splits[0], 1, "the first, higher-weight candidate fits inside rank 0 without crossing a boundary")
	assert.Equal(t, 0, splits[0][0].slot.rank)
	assert.InDelta(t, 0.7, splits[0][0].length, 1e-9)

	require.Len(t, splits[1], 2, "the second candidate's interval [0.7,1.3) crosses the rank-0/rank-1 boundary")
	assert.Equal(t, 0, splits[1][0].slot.rank)
	assert.Equal(t, 1, splits[1][1].slot.rank)
	total := splits[1][0].length + splits[1][1].length
	assert.InDelta(t, 0.6, total, 1e-9)
}

func TestPhase2SideSkipsZeroWeightCandidates(t *testing.T) {
	set := &candidates.Set{
		Instances: []candidates.Instance{
			{AppIdx: 0, OffRSU: 1},
			{AppIdx: 1, OffRSU: 1},
		},
	}
	weights := []float64{0, 0.4}
	splits := phase2Side(weights, set, func(inst candidates.Instance) model.NodeID { return inst.OffRSU })
	assert.Empty(t, splits[0])
	assert.NotEmpty(t, splits[1])
}

func TestMergePiecesPreservesTotalWeightAndIntersectsSlots(t *testing.T) {
	slotA := rankSlot{rsu: 1, rank: 0}
	slotB := rankSlot{rsu: 1, rank: 1}
	slotC := rankSlot{rsu: 2, rank: 0}
	slotD := rankSlot{rsu: 2, rank: 1}

	off := []split{{slot: slotA, length: 0.4}, {slot: slotB, length: 0.3}}
	proc := []split{{slot: slotC, length: 0.5}, {slot: slotD, length: 0.2}}

	pieces := mergePieces(off, proc)

	var total float64
	for _, pc := range pieces {
		total += pc.weight
	}
	assert.InDelta(t, 0.7, total, 1e-9)

	// every piece's weight must come from a valid intersection of one
	// off-side split and one proc-side split.
	for _, pc := range pieces {
		found := false
		for _, o := range off {
			if o.slot == pc.offSlot {
				found = true
			}
		}
		assert.True(t, found, "piece off slot must match one of the off splits")
		_ = proc
	}
}

func TestPhase3AccumulatesUtilityLinearlyAndMergesSameKey(t *testing.T) {
	set := &candidates.Set{
		Instances: []candidates.Instance{
			{AppIdx: 0, OffRSU: 1, ProcRSU: 2, RBs: 10, CUs: 10, Utility: 2.0},
		},
	}
	slot0 := rankSlot{rsu: 1, rank: 0}
	slot1 := rankSlot{rsu: 2, rank: 0}
	instPieces := map[int][]piece{
		0: {
			{offSlot: slot0, procSlot: slot1, weight: 0.25},
			{offSlot: slot0, procSlot: slot1, weight: 0.25},
		},
	}

	edges := phase3(set, instPieces)
	require.Len(t, edges, 1, "both pieces share the same (app, offSlot, procSlot) key and must merge")
	e := edges[0]
	assert.Equal(t, model.NodeID(1), e.offRSU)
	assert.Equal(t, model.NodeID(2), e.procRSU)
	assert.Equal(t, 2.0, e.utilOrig)
	assert.InDelta(t, 1.0, e.utilPhase3, 1e-9) // 2.0*0.25 + 2.0*0.25
	assert.Equal(t, 6, e.rbDemand)             // round(10*0.25) + round(10*0.25) = 3+3
}

func TestPhase3DropsHyperedgesWithZeroDemand(t *testing.T) {
	set := &candidates.Set{
		Instances: []candidates.Instance{
			{AppIdx: 0, OffRSU: 1, ProcRSU: 2, RBs: 1, CUs: 1, Utility: 2.0},
		},
	}
	slot0 := rankSlot{rsu: 1, rank: 0}
	slot1 := rankSlot{rsu: 2, rank: 0}
	instPieces := map[int][]piece{
		0: {{offSlot: slot0, procSlot: slot1, weight: 0.01}}, // rounds to 0 RBs/CUs
	}
	edges := phase3(set, instPieces)
	assert.Empty(t, edges)
}

func TestPhase4BuildsDegreeConstraintPerRankSlotAndApp(t *testing.T) {
	edges := []hyperedge{
		{appIdx: 0, offSlot: rankSlot{1, 0}, procSlot: rankSlot{2, 0}, utilPhase3: 1},
		{appIdx: 0, offSlot: rankSlot{1, 0}, procSlot: rankSlot{2, 1}, utilPhase3: 1},
		{appIdx: 1, offSlot: rankSlot{1, 1}, procSlot: rankSlot{2, 0}, utilPhase3: 1},
	}
	// distinct offSlots: {1,0},{1,1} = 2; distinct procSlots: {2,0},{2,1} = 2; apps: 0,1 = 2.
	var got *LPProblem
	s := New(capturingSolver{got: &got})
	_, err := s.phase4(context.Background(), edges, config.Defaults())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.a, 6)
	for _, row := range got.a {
		var sum float64
		for _, v := range row {
			sum += v
		}
		assert.GreaterOrEqual(t, sum, 1.0, "every degree row must constrain at least one edge")
	}
}

func TestPhase4ReturnsNilForNoEdges(t *testing.T) {
	s := New(fakeSolver{})
	weights, err := s.phase4(context.Background(), nil, config.Defaults())
	require.NoError(t, err)
	assert.Nil(t, weights)
}

func TestSelectReturnsEmptyWhenNoCandidates(t *testing.T) {
	s := New(fakeSolver{})
	sel, err := s.Select(context.Background(), &candidates.Set{}, buildSnap(), config.Defaults())
	require.NoError(t, err)
	assert.Empty(t, sel.Picks)
}

func TestSelectEndToEndWithFakeSolver(t *testing.T) {
	set := &candidates.Set{
		Instances: []candidates.Instance{
			{AppIdx: 0, AppID: 1, OffRSU: 1, ProcRSU: 1, RBs: 4, CUs: 4, Utility: 2.0},
			{AppIdx: 1, AppID: 2, OffRSU: 2, ProcRSU: 2, RBs: 4, CUs: 4, Utility: 1.0},
		},
		ByApp: map[int][]int{0: {0}, 1: {1}},
	}
	// phase1 and phase4 both ask the solver to solve; the fake returns
	// full weight for every variable passed to it regardless of phase.
	s := New(fakeSolver{})
	sel, err := s.Select(context.Background(), set, buildSnap(), config.Defaults())
	require.NoError(t, err)

	seen := make(map[model.AppID]bool)
	for _, p := range sel.Picks {
		assert.False(t, seen[p.AppID], "at most one pick per application")
		seen[p.AppID] = true
	}
}

type errSolver struct{ err error }

func (e errSolver) Solve(context.Context, *LPProblem, time.Duration) ([]float64, error) {
	return nil, e.err
}

func TestSelectTreatsLPSolverExceptionAsEmptySelection(t *testing.T) {
	set := &candidates.Set{
		Instances: []candidates.Instance{
			{AppIdx: 0, AppID: 1, OffRSU: 1, ProcRSU: 1, RBs: 4, CUs: 4, Utility: 2.0},
		},
		ByApp: map[int][]int{0: {0}},
	}
	s := New(errSolver{err: model.ErrLPSolverException})
	sel, err := s.Select(context.Background(), set, buildSnap(), config.Defaults())
	require.NoError(t, err)
	assert.Empty(t, sel.Picks)
}

func TestSelectPropagatesOtherSolverErrors(t *testing.T) {
	set := &candidates.Set{
		Instances: []candidates.Instance{
			{AppIdx: 0, AppID: 1, OffRSU: 1, ProcRSU: 1, RBs: 4, CUs: 4, Utility: 2.0},
		},
		ByApp: map[int][]int{0: {0}},
	}
	boom := assert.AnError
	s := New(errSolver{err: boom})
	_, err := s.Select(context.Background(), set, buildSnap(), config.Defaults())
	require.Error(t, err)
}

func TestSelectRespectsLowFairFactorWithRealSolver(t *testing.T) {
	// A single candidate whose RB demand exceeds the fair-factor-scaled
	// bound (but not raw capacity) must be admitted at a reduced LP
	// weight rather than the full candidate demand, proving fairFactor
	// actually constrains phase1 rather than being dead config.
	set := &candidates.Set{
		Instances: []candidates.Instance{
			{AppIdx: 0, AppID: 1, OffRSU: 1, ProcRSU: 1, RBs: 8, CUs: 8, Utility: 1.0},
		},
		ByApp: map[int][]int{0: {0}},
	}
	res := resources.Snapshot{
		RSUIDs:      []model.NodeID{1},
		RBAvailable: map[model.NodeID]int{1: 10},
		CUAvailable: map[model.NodeID]int{1: 10},
	}
	cfg := config.Defaults()
	cfg.FairFactor = 0.8 // headroom 0.2 -> bound ceil(10*0.2) = 2, candidate needs 8

	s := New(nil) // real gonum solver
	weights, err := s.phase1(context.Background(), set, res, cfg)
	require.NoError(t, err)
	require.Len(t, weights, 1)
	assert.LessOrEqual(t, weights[0], math.Ceil(10*0.2)/8+1e-6)
}
