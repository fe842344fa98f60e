// Package grants implements the Grant Issuer: it turns a policy's
// provisional picks into authoritative commits against the Resource
// Registry and the grant records a downstream RSU actually acts on. It
// is the one place in an epoch that calls resources.Registry.CommitGrant,
// centralizing the capacity check behind one method rather than letting
// callers mutate counters directly.
package grants

import (
	"fmt"
	"time"

	"github.com/edgevec/schedcore/model"
	"github.com/edgevec/schedcore/policy"
	"github.com/edgevec/schedcore/resources"
)

// Grant is one committed resource allocation for an application: the
// (appId, offRsuId, procRsuId, RBs, CUs, maxOffloadTime, exeDelay,
// utility) tuple a downstream RSU acts on, plus the bookkeeping fields
// (EpochID, IssuedAt) this core needs to track it.
type Grant struct {
	EpochID        string
	AppID          model.AppID
	OffRSU         model.NodeID
	ProcRSU        model.NodeID
	RBs            int
	CUs            int
	MaxOffloadTime time.Duration
	ExeDelay       time.Duration
	Utility        float64
	// BytePerTTI is the offload link's achievable bytes per TTI at the
	// granted RB count: ratePerRB (the current link rate for this
	// vehicle/RSU pair, already normalized to one RB) times RBs.
	BytePerTTI float64
	IssuedAt   time.Time
}

// Revocation records a previously issued grant being released.
type Revocation struct {
	Grant
	RevokedAt time.Time
}

// Issuer commits policy picks to the live Resource Registry and produces
// Grant records.
type Issuer struct {
	res *resources.Registry
}

// NewIssuer constructs an Issuer bound to res, the authoritative
// Resource Registry.
func NewIssuer(res *resources.Registry) *Issuer {
	return &Issuer{res: res}
}

// Issue commits pick's RB/CU demand to the live Resource Registry and
// returns the resulting Grant. ratePerRB is the current offload link's
// achievable bytes/TTI for one resource block (the same per-RB rate the
// Candidate Generator derived the pick's throughput from); Issue scales
// it by the granted RB count to produce the Grant's BytePerTTI, the
// figure the downstream RSU schedules its radio transmission against.
// Issue rejects a pick whose maxOffloadTime would be non-positive
// (fwdDelay+exeDelay+overhead already consumes the whole period) without
// touching the registry, and propagates model.ErrCapacityExceeded /
// model.ErrRSUInactive if the authoritative commit disagrees with the
// policy's provisional capacity tracking.
func (iss *Issuer) Issue(epochID string, pick policy.Pick, ratePerRB float64, now time.Time) (Grant, error) {
	if pick.MaxOffTime <= 0 {
		return Grant{}, fmt.Errorf("issue grant for app %d: max offload time non-positive", pick.AppID)
	}

	if err := iss.res.CommitGrant(pick.OffRSU, pick.ProcRSU, pick.RBs, pick.CUs); err != nil {
		return Grant{}, fmt.Errorf("issue grant for app %d: %w", pick.AppID, err)
	}

	return Grant{
		EpochID:        epochID,
		AppID:          pick.AppID,
		OffRSU:         pick.OffRSU,
		ProcRSU:        pick.ProcRSU,
		RBs:            pick.RBs,
		CUs:            pick.CUs,
		MaxOffloadTime: pick.MaxOffTime,
		ExeDelay:       pick.ExeDelay,
		Utility:        pick.Utility,
		BytePerTTI:     ratePerRB * float64(pick.RBs),
		IssuedAt:       now,
	}, nil
}

// Revoke releases a previously issued grant's resources back to the
// Resource Registry.
func (iss *Issuer) Revoke(g Grant, now time.Time) Revocation {
	iss.res.ReleaseGrant(g.OffRSU, g.ProcRSU, g.RBs, g.CUs)
	return Revocation{Grant: g, RevokedAt: now}
}
