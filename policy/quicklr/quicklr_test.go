package quicklr

import (
	"context"
	"testing"

	"github.com/edgevec/schedcore/candidates"
	"github.com/edgevec/schedcore/config"
	"github.com/edgevec/schedcore/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectRespectsCapacityAndPicksOneFamily(t *testing.T) {
	reg := resources.NewRegistry(resources.NewServiceTimeTable())
	reg.Register(resources.RSU{ID: 1, Bands: 10, CmpUnits: 10, CmpCapacity: 1.0, DeviceType: "gpu-edge"})
	snap := reg.Snapshot()

	set := &candidates.Set{
		Instances: []candidates.Instance{
			{AppIdx: 0, AppID: 1, OffRSU: 1, ProcRSU: 1, RBs: 2, CUs: 2, Utility: 1.0},
			{AppIdx: 1, AppID: 2, OffRSU: 1, ProcRSU: 1, RBs: 8, CUs: 2, Utility: 1.5},
		},
		ByApp: map[int][]int{0: {0}, 1: {1}},
	}

	sched := New(config.PolicyQuickLR)
	sel, err := sched.Select(context.Background(), set, snap, config.Defaults())
	require.NoError(t, err)
	assert.Equal(t, string(config.PolicyQuickLR), sched.Name())

	for _, p := range sel.Picks {
		assert.LessOrEqual(t, p.RBs, 10)
		assert.LessOrEqual(t, p.CUs, 10)
	}
}

func TestRunFamilyAdmitsInReverseOfArrayOrder(t *testing.T) {
	// Index 0 lands in category LL and index 1 in LH, both in family A
	// (the non-HL family), so they run through the same local-ratio pass
	// together. Capacity
	// only fits one: the forward pass walks candidates in plain array
	// order (index 0, then index 1) and accumulates reductions as it
	// goes; the reverse admission walk then tries index 1 first (the
	// last one the forward pass touched), admitting it, leaving index 0
	// rejected for lack of remaining CmpUnits.
	reg := resources.NewRegistry(resources.NewServiceTimeTable())
	reg.Register(resources.RSU{ID: 1, Bands: 5, CmpUnits: 4, CmpCapacity: 1.0, DeviceType: "gpu-edge"})
	snap := reg.Snapshot()

	set := &candidates.Set{
		Instances: []candidates.Instance{
			{AppIdx: 0, AppID: 1, OffRSU: 1, ProcRSU: 1, RBs: 1, CUs: 1, Utility: 1.0},
			{AppIdx: 1, AppID: 2, OffRSU: 1, ProcRSU: 1, RBs: 1, CUs: 4, Utility: 10.0},
		},
		ByApp: map[int][]int{0: {0}, 1: {1}},
	}

	sched := New(config.PolicyQuickLR)
	sel := sched.runFamily([]int{0, 1}, false, set, snap)

	require.Len(t, sel.Picks, 1)
	assert.Equal(t, 10.0, sel.TotalUtil)
	assert.Equal(t, set.Instances[1].AppID, sel.Picks[0].AppID)
}

func TestClassifyCategories(t *testing.T) {
	reg := resources.NewRegistry(resources.NewServiceTimeTable())
	reg.Register(resources.RSU{ID: 1, Bands: 10, CmpUnits: 10, CmpCapacity: 1.0, DeviceType: "gpu-edge"})
	snap := reg.Snapshot()

	ll := candidates.Instance{OffRSU: 1, ProcRSU: 1, RBs: 2, CUs: 2}
	lh := candidates.Instance{OffRSU: 1, ProcRSU: 1, RBs: 2, CUs: 8}
	hl := candidates.Instance{OffRSU: 1, ProcRSU: 1, RBs: 8, CUs: 2}
	hh := candidates.Instance{OffRSU: 1, ProcRSU: 1, RBs: 8, CUs: 8}

	assert.Equal(t, catLL, classify(ll, snap))
	assert.Equal(t, catLH, classify(lh, snap))
	assert.Equal(t, catHL, classify(hl, snap))
	assert.Equal(t, catHH, classify(hh, snap))
}
