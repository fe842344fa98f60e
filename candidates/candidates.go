// Package candidates implements the Candidate Generator: per-epoch
// enumeration of feasible service instances into one dense slice of
// Instance records (not separate per-field arrays) plus secondary
// indices, never persisted across epochs. It composes a
// validated candidate set from independently-supplied apps/resources/
// links snapshots rather than mutating any one of them in place.
package candidates

import (
	"time"

	"github.com/edgevec/schedcore/apps"
	"github.com/edgevec/schedcore/config"
	"github.com/edgevec/schedcore/model"
	"github.com/edgevec/schedcore/resources"
)

// tti is the fixed radio transmission-time-interval duration a reported
// link rate (bytes/TTI) is measured against. It is a physical-layer
// constant inherited from the original simulator (src/mecrt/nic/mac),
// not a tunable parameter, so it is not part of config.Config.
const tti = time.Millisecond

// UtilityFunc scores a candidate instance. The default (energy) variant
// and the accuracy variant both implement this signature so the
// generator stays agnostic to which is active.
type UtilityFunc func(app apps.Application, offloadDelay time.Duration, cus int, svc model.ServiceKind, deviceType model.DeviceType) float64

// EnergyUtility is the default utility: energy saved per unit period,
// (localEnergy - offloadPower*offloadDelay) / period.
func EnergyUtility(app apps.Application, offloadDelay time.Duration, _ int, _ model.ServiceKind, _ model.DeviceType) float64 {
	saved := app.Energy - app.OffloadPower*offloadDelay.Seconds()
	return saved / app.Period.Seconds()
}

// AccuracyTable scores (service, deviceType, CUs) tuples for the
// accuracy-oriented utility variant. A missing entry scores zero, which
// the generator discards like any non-positive utility (skip, not
// break).
type AccuracyTable struct {
	scores map[model.ServiceKind]map[model.DeviceType]map[int]float64
}

// NewAccuracyTable constructs an empty accuracy score table.
func NewAccuracyTable() *AccuracyTable {
	return &AccuracyTable{scores: make(map[model.ServiceKind]map[model.DeviceType]map[int]float64)}
}

// Set records the accuracy score achieved running svc on a dt-class RSU
// with cus compute units.
func (t *AccuracyTable) Set(svc model.ServiceKind, dt model.DeviceType, cus int, score float64) {
	byDT, ok := t.scores[svc]
	if !ok {
		byDT = make(map[model.DeviceType]map[int]float64)
		t.scores[svc] = byDT
	}
	byCU, ok := byDT[dt]
	if !ok {
		byCU = make(map[int]float64)
		byDT[dt] = byCU
	}
	byCU[cus] = score
}

// UtilityFunc returns an accuracy-variant UtilityFunc closed over t: an
// accuracy-per-period score derived from (service, deviceType, CUs).
func (t *AccuracyTable) UtilityFunc() UtilityFunc {
	return func(app apps.Application, _ time.Duration, cus int, svc model.ServiceKind, dt model.DeviceType) float64 {
		byDT, ok := t.scores[svc]
		if !ok {
			return 0
		}
		byCU, ok := byDT[dt]
		if !ok {
			return 0
		}
		return byCU[cus] / app.Period.Seconds()
	}
}

// Instance is a candidate service instance: a concrete feasible choice of
// (app, offload RSU, processing RSU, RBs, CUs), addressed by its index
// in a Set's Instances slice, never by pointer.
type Instance struct {
	AppIdx     int
	AppID      model.AppID
	OffRSU     model.NodeID
	ProcRSU    model.NodeID
	RBs        int
	CUs        int
	Utility    float64
	OffloadDelay time.Duration
	FwdDelay     time.Duration
	ExeDelay     time.Duration
	MaxOffTime   time.Duration
}

// Set holds one epoch's enumerated candidates: a single Instances slice
// (one struct per candidate, not per-field arrays) plus three secondary
// indices (byOffRsu, byProcRsu, byApp) of positions in that slice.
type Set struct {
	Apps []apps.Application

	Instances []Instance

	ByOffRSU  map[model.NodeID][]int
	ByProcRSU map[model.NodeID][]int
	ByApp     map[int][]int
}

func newSet(appList []apps.Application) *Set {
	return &Set{
		Apps:      appList,
		ByOffRSU:  make(map[model.NodeID][]int),
		ByProcRSU: make(map[model.NodeID][]int),
		ByApp:     make(map[int][]int),
	}
}

func (s *Set) add(inst Instance) {
	idx := len(s.Instances)
	s.Instances = append(s.Instances, inst)
	s.ByOffRSU[inst.OffRSU] = append(s.ByOffRSU[inst.OffRSU], idx)
	s.ByProcRSU[inst.ProcRSU] = append(s.ByProcRSU[inst.ProcRSU], idx)
	s.ByApp[inst.AppIdx] = append(s.ByApp[inst.AppIdx], idx)
}

// floorFrac computes floor(x*frac) as a non-negative int.
func floorFrac(x int, frac float64) int {
	if x <= 0 || frac <= 0 {
		return 0
	}
	v := int(float64(x) * frac)
	if v > x {
		v = x
	}
	return v
}

// Generate enumerates feasible service instances for every application
// in appList. accessSet returns, for a vehicle, the RSUs currently in
// its (already-pruned) access set;
// rateAt returns the achievable bytes/TTI for (vehID, rsu); res is a
// point-in-time Resource Registry snapshot; utilFn scores each candidate.
func Generate(
	cfg config.Config,
	appList []apps.Application,
	accessSet func(vehID string) []model.NodeID,
	rateAt func(vehID string, rsu model.NodeID) (float64, bool),
	res resources.Snapshot,
	utilFn UtilityFunc,
) *Set {
	set := newSet(appList)
	if utilFn == nil {
		utilFn = EnergyUtility
	}

	for ai, app := range appList {
		if app.Period <= 0 {
			continue // InvalidApplication: skipped, stays enrolled
		}
		if app.Period <= cfg.OffloadOverhead {
			continue // no candidates possible once overhead alone exceeds the period
		}

		for _, offRSU := range accessSet(app.VehID) {
			rate, ok := rateAt(app.VehID, offRSU)
			if !ok || rate <= 0 {
				continue // StaleLink/ZeroRate: already pruned from the access set
			}
			bandsTotal := res.RBCapacity[offRSU]
			if bandsTotal <= 0 {
				continue
			}
			rbAvail := res.RBAvailable[offRSU]
			maxRB := floorFrac(rbAvail, cfg.FairFactor)
			perRB := rate / float64(bandsTotal)

			reachable := res.Reachable[offRSU]

			for rbs := maxRB; rbs >= 1; rbs -= cfg.RBStep {
				throughput := perRB * float64(rbs)
				if throughput <= 0 {
					break
				}
				offloadDelay := time.Duration(float64(app.InputSize) / throughput * float64(tti))
				if offloadDelay+cfg.OffloadOverhead > app.Period {
					// offloadDelay is nondecreasing as rbs decreases: break.
					break
				}

				for procRSU, hop := range reachable {
					dt, ok := res.DeviceType[procRSU]
					if !ok {
						continue
					}
					if _, ok := res.SvcTime.Lookup(dt, app.Service); !ok {
						continue // UnsupportedService: infinite delay, no instance
					}

					fwdDelay := time.Duration(float64(app.InputSize) / cfg.VirtualLinkRate * float64(hop) * float64(time.Second))
					if offloadDelay+fwdDelay+cfg.OffloadOverhead > app.Period {
						continue // skip this procRSU, do not break the RB loop
					}

					cuAvail := res.CUAvailable[procRSU]
					maxCU := floorFrac(cuAvail, cfg.FairFactor)
					cmpCapacity := res.CmpCapacity[procRSU]

					for cus := maxCU; cus >= 1; cus -= cfg.CUStep {
						exeSeconds, ok := res.ExeDelay(procRSU, app.Service, cus)
						if !ok {
							break // unsupported regardless of CUs; same for every cus
						}
						exeDelay := time.Duration(exeSeconds * float64(time.Second))
						total := offloadDelay + fwdDelay + exeDelay + cfg.OffloadOverhead
						if total > app.Period {
							// exeDelay is nondecreasing as cus decreases: break.
							break
						}

						utility := utilFn(app, offloadDelay, cus, app.Service, dt)
						if utility <= 0 {
							continue // a non-positive utility here doesn't imply the next cus is also non-positive
						}

						set.add(Instance{
							AppIdx:       ai,
							AppID:        app.ID,
							OffRSU:       offRSU,
							ProcRSU:      procRSU,
							RBs:          rbs,
							CUs:          cus,
							Utility:      utility,
							OffloadDelay: offloadDelay,
							FwdDelay:     fwdDelay,
							ExeDelay:     exeDelay,
							MaxOffTime:   app.Period - fwdDelay - exeDelay - cfg.OffloadOverhead,
						})

						_ = cmpCapacity
					}
				}
			}
		}
	}

	return set
}
