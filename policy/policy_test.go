package policy

import (
	"context"
	"testing"

	"github.com/edgevec/schedcore/candidates"
	"github.com/edgevec/schedcore/config"
	"github.com/edgevec/schedcore/model"
	"github.com/edgevec/schedcore/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubScheduler struct{ name string }

func (s stubScheduler) Name() string { return s.name }
func (s stubScheduler) Select(context.Context, *candidates.Set, resources.Snapshot, config.Config) (Selection, error) {
	return Selection{}, nil
}

func TestRegistryGetUnknownPolicy(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get(config.PolicyGameTheory)
	require.ErrorIs(t, err, model.ErrPolicyNotImplemented)
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(config.PolicyGreedy, stubScheduler{name: "greedy"})

	s, err := r.Get(config.PolicyGreedy)
	require.NoError(t, err)
	assert.Equal(t, "greedy", s.Name())
}

func TestCapacityReserveAndRelease(t *testing.T) {
	reg := resources.NewRegistry(resources.NewServiceTimeTable())
	reg.Register(resources.RSU{ID: 1, Bands: 10, CmpUnits: 10, CmpCapacity: 1.0, DeviceType: "gpu-edge"})
	snap := reg.Snapshot()

	avail := NewCapacity(snap)
	assert.True(t, avail.Fits(1, 1, 5, 5))
	avail.Reserve(1, 1, 5, 5)
	assert.False(t, avail.Fits(1, 1, 6, 1))
	assert.Equal(t, 5, avail.RBAvailable(1))

	avail.Release(1, 1, 5, 5)
	assert.Equal(t, 10, avail.RBAvailable(1))
	assert.Equal(t, 10, avail.CUAvailable(1))
}
