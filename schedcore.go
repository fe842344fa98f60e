// Package schedcore composes the scheduling core's six components
// behind a single facade: one struct holding every subsystem, one entry
// point driving a full cycle, with telemetry wired in rather than
// bolted on per call site.
package schedcore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgevec/schedcore/apps"
	"github.com/edgevec/schedcore/candidates"
	"github.com/edgevec/schedcore/config"
	"github.com/edgevec/schedcore/grants"
	"github.com/edgevec/schedcore/internal/telemetry/logging"
	"github.com/edgevec/schedcore/internal/telemetry/metrics"
	"github.com/edgevec/schedcore/internal/telemetry/tracing"
	"github.com/edgevec/schedcore/links"
	"github.com/edgevec/schedcore/model"
	"github.com/edgevec/schedcore/policy"
	"github.com/edgevec/schedcore/policy/greedy"
	"github.com/edgevec/schedcore/policy/graphmatch"
	"github.com/edgevec/schedcore/policy/quicklr"
	"github.com/edgevec/schedcore/resources"
	"github.com/google/uuid"
)

// Options configures a Core at construction time.
type Options struct {
	Config        config.Config
	Logger        *slog.Logger
	TracerNew     func() *tracing.Tracer
	MetricsOpts   metrics.Options
	UtilityFunc   candidates.UtilityFunc
	AccessSet     func(vehID string) []model.NodeID
	RateAt        func(vehID string, rsu model.NodeID) (float64, bool)
}

// Core composes the six scheduling components into one facade.
type Core struct {
	cfg config.Config

	Apps      *apps.Registry
	Resources *resources.Registry
	Links     *links.Observatory
	Policies  *policy.Registry
	Grants    *grants.Issuer

	log     logging.Logger
	tracer  *tracing.Tracer
	metrics *metrics.Recorder

	utilFn    candidates.UtilityFunc
	accessSet func(vehID string) []model.NodeID
	rateAt    func(vehID string, rsu model.NodeID) (float64, bool)
}

// New constructs a Core. appsReg, resReg and obs are supplied so callers
// who already track enrollment/RSU state elsewhere can reuse it; nil
// constructs fresh empty instances.
func New(opts Options, appsReg *apps.Registry, resReg *resources.Registry, obs *links.Observatory) (*Core, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if appsReg == nil {
		appsReg = apps.NewRegistry()
	}
	if resReg == nil {
		resReg = resources.NewRegistry(nil)
	}
	if obs == nil {
		obs = links.NewObservatory(opts.Config.FreshnessHorizon)
	}

	rec, err := metrics.New(opts.MetricsOpts)
	if err != nil {
		return nil, fmt.Errorf("construct metrics recorder: %w", err)
	}

	var tr *tracing.Tracer
	if opts.TracerNew != nil {
		tr = opts.TracerNew()
	} else {
		tr = tracing.New(nil)
	}

	policies := policy.NewRegistry()
	policies.Register(config.PolicyGreedy, greedy.New())
	policies.Register(config.PolicyGraphMatch, graphmatch.New(nil))
	policies.Register(config.PolicyQuickLR, quicklr.New(config.PolicyQuickLR))
	policies.Register(config.PolicyFastSA, quicklr.New(config.PolicyFastSA))

	accessSet := opts.AccessSet
	rateAt := opts.RateAt
	if accessSet == nil {
		accessSet = func(vehID string) []model.NodeID { return obs.Prune(vehID, time.Now()) }
	}
	if rateAt == nil {
		rateAt = obs.Rate
	}

	return &Core{
		cfg:       opts.Config,
		Apps:      appsReg,
		Resources: resReg,
		Links:     obs,
		Policies:  policies,
		Grants:    grants.NewIssuer(resReg),
		log:       logging.New(opts.Logger),
		tracer:    tr,
		metrics:   rec,
		utilFn:    opts.UtilityFunc,
		accessSet: accessSet,
		rateAt:    rateAt,
	}, nil
}

// SetConfig replaces the active configuration, validating it first.
// Intended to be called with each value from the changes channel that
// configwatch.Watcher.WatchChanges returns.
func (c *Core) SetConfig(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

// EpochResult is one RunEpoch call's outcome.
type EpochResult struct {
	EpochID      string
	Grants       []grants.Grant
	Rejected     int
	CandidateSet *candidates.Set
	TotalUtility float64
	Policy       string
}

// RunEpoch performs one full scheduling cycle: snapshot the Resource
// Registry, enumerate candidates, run the configured policy, commit
// accepted picks as grants. It is the sole place per-epoch state is
// mutated; Core itself is not safe to call RunEpoch concurrently from
// two goroutines, by design — every subsystem it touches is internally
// serialized against concurrent readers/writers, but an epoch's
// snapshot-enumerate-select-commit sequence must run as one unit.
func (c *Core) RunEpoch(ctx context.Context) (EpochResult, error) {
	epochID := uuid.NewString()
	ctx, span := c.tracer.StartEpoch(ctx, epochID)
	defer span.End()

	start := time.Now()
	c.log.InfoCtx(ctx, "epoch starting", "epoch_id", epochID, "policy", string(c.cfg.Policy))

	appList := c.Apps.Snapshot()
	resSnap := c.Resources.Snapshot()

	for _, id := range resSnap.RSUIDs {
		c.metrics.SetRBAvailable(fmt.Sprint(id), float64(resSnap.RBAvailable[id]))
		c.metrics.SetCUAvailable(fmt.Sprint(id), float64(resSnap.CUAvailable[id]))
	}

	_, candSpan := c.tracer.StartComponent(ctx, "candidates")
	set := candidates.Generate(c.cfg, appList, c.accessSet, c.rateAt, resSnap, c.utilFn)
	candSpan.End()
	c.metrics.AddCandidatesGenerated(len(set.Instances))

	sched, err := c.Policies.Get(c.cfg.Policy)
	if err != nil {
		c.metrics.ObservePolicyError(string(c.cfg.Policy))
		return EpochResult{}, err
	}

	policyCtx, policySpan := c.tracer.StartComponent(ctx, "policy")
	sel, err := sched.Select(policyCtx, set, resSnap, c.cfg)
	policySpan.End()
	if err != nil {
		c.metrics.ObservePolicyError(string(c.cfg.Policy))
		c.log.ErrorCtx(ctx, "policy selection failed", "policy", sched.Name(), "error", err)
		return EpochResult{}, err
	}

	_, grantSpan := c.tracer.StartComponent(ctx, "grants")
	result := EpochResult{EpochID: epochID, CandidateSet: set, Policy: sched.Name()}
	for _, pick := range sel.Picks {
		ratePerRB := c.ratePerRB(set, pick, resSnap)
		g, err := c.Grants.Issue(epochID, pick, ratePerRB, time.Now())
		if err != nil {
			result.Rejected++
			c.log.WarnCtx(ctx, "grant rejected", "app_id", pick.AppID, "error", err)
			continue
		}
		result.Grants = append(result.Grants, g)
		result.TotalUtility += pick.Utility
	}
	grantSpan.End()
	c.metrics.AddGrantsIssued(len(result.Grants))

	c.metrics.ObserveEpochDuration(time.Since(start).Seconds())
	c.log.InfoCtx(ctx, "epoch complete", "epoch_id", epochID, "grants", len(result.Grants), "rejected", result.Rejected)

	return result, nil
}

// ratePerRB returns the offload link's current bytes/TTI for one
// resource block at pick.OffRSU, the same normalization the Candidate
// Generator applies (rate / bandsTotal) before scaling by RBs. A stale
// or missing link sample yields zero, which the Grant Issuer then
// reflects as a zero BytePerTTI rather than failing the grant outright.
func (c *Core) ratePerRB(set *candidates.Set, pick policy.Pick, res resources.Snapshot) float64 {
	bandsTotal := res.RBCapacity[pick.OffRSU]
	if bandsTotal <= 0 || pick.AppIdx < 0 || pick.AppIdx >= len(set.Apps) {
		return 0
	}
	vehID := set.Apps[pick.AppIdx].VehID
	rate, ok := c.rateAt(vehID, pick.OffRSU)
	if !ok || rate <= 0 {
		return 0
	}
	return rate / float64(bandsTotal)
}

// Revoke releases a previously issued grant's resources.
func (c *Core) Revoke(g grants.Grant) grants.Revocation {
	c.metrics.AddGrantsRevoked(1)
	return c.Grants.Revoke(g, time.Now())
}
