package links

import (
	"testing"
	"time"

	"github.com/edgevec/schedcore/model"
	"github.com/stretchr/testify/assert"
)

func TestPruneDropsStaleAndZeroRateSamples(t *testing.T) {
	o := NewObservatory(10 * time.Millisecond)
	base := time.Now()

	o.Report("veh-a", 1, 100, base)
	o.Report("veh-a", 2, 0, base)
	o.Report("veh-a", 3, 50, base)

	surviving := o.Prune("veh-a", base.Add(5*time.Millisecond))
	assert.ElementsMatch(t, []uint32{1, 3}, toUint32s(surviving))

	// RSU 3's sample is now stale relative to a later "now"
	surviving = o.Prune("veh-a", base.Add(50*time.Millisecond))
	assert.Empty(t, surviving)
}

func TestRateAtReflectsFreshnessAtGivenInstant(t *testing.T) {
	o := NewObservatory(10 * time.Millisecond)
	now := time.Now()
	o.Report("veh-a", 1, 100, now)

	rate, usable := o.RateAt("veh-a", 1, now.Add(5*time.Millisecond))
	assert.Equal(t, 100.0, rate)
	assert.True(t, usable)

	rate, usable = o.RateAt("veh-a", 1, now.Add(50*time.Millisecond))
	assert.Equal(t, 100.0, rate)
	assert.False(t, usable)
}

func TestRateAtUnknownPairReturnsFalse(t *testing.T) {
	o := NewObservatory(time.Second)
	_, usable := o.RateAt("veh-x", 99, time.Now())
	assert.False(t, usable)
}

func toUint32s(ids []model.NodeID) []uint32 {
	out := make([]uint32, len(ids))
	for i, id := range ids {
		out[i] = uint32(id)
	}
	return out
}
