// Package model holds the domain identifiers and error kinds shared across
// the scheduling core's components, so that apps, resources, links,
// candidates, policy and grants can refer to the same vocabulary without
// importing one another.
package model

import "errors"

// AppID identifies a pending vehicular application.
type AppID uint32

// NodeID identifies an RSU (edge server node).
type NodeID uint32

// ServiceKind enumerates the kind of workload an application runs; it
// drives which RSUs can execute it (device-type/service-time lookup).
type ServiceKind string

// DeviceType enumerates an RSU's hardware class, keyed into the
// per-device-type service-execution-time table.
type DeviceType string

// Error kinds shared across the scheduling core, exported so tests and
// logs can identify the condition with errors.Is. ErrOutOfRangeConfig is
// returned by config validation. ErrCapacityExceeded and ErrRSUInactive
// are returned by resources.Registry.CommitGrant; within an epoch
// RunEpoch counts such a grant as rejected and continues.
// ErrLPSolverException is absorbed by GraphMatch into an empty
// selection. ErrUnsupportedService, ErrStaleLink and ErrZeroRate are not
// returned by any function: the candidate generator and the link
// observatory skip those cases silently.
var (
	// ErrInvalidApplication: non-positive period. apps.Registry.Enroll
	// returns it and does not enroll the application; the candidate
	// generator separately skips any application with a non-positive
	// period without an error.
	ErrInvalidApplication = errors.New("schedcore: invalid application")

	// ErrUnsupportedService: the processing RSU's device type has no
	// execution-time entry for the requested service.
	ErrUnsupportedService = errors.New("schedcore: unsupported service for device type")

	// ErrStaleLink: the link sample is older than the freshness horizon.
	ErrStaleLink = errors.New("schedcore: stale link sample")

	// ErrZeroRate: the link sample reports a non-positive rate.
	ErrZeroRate = errors.New("schedcore: zero or negative link rate")

	// ErrCapacityExceeded: a commit would drive an RSU's available RBs or
	// CUs negative.
	ErrCapacityExceeded = errors.New("schedcore: capacity exceeded")

	// ErrLPSolverException: the LP relaxation phase failed or exceeded its
	// time budget. Not fatal — the caller treats it as an empty result.
	ErrLPSolverException = errors.New("schedcore: LP solver exception")

	// ErrRSUInactive: a grant targets an RSU currently marked inactive.
	ErrRSUInactive = errors.New("schedcore: RSU inactive")

	// ErrOutOfRangeConfig: a construction-time hard error (e.g. fairFactor
	// outside [0,1]).
	ErrOutOfRangeConfig = errors.New("schedcore: configuration parameter out of range")

	// ErrPolicyNotImplemented: no Scheduler is registered in
	// policy.Registry for the configured policy name (the gameTheory
	// family is a valid config value with no registered Scheduler).
	ErrPolicyNotImplemented = errors.New("schedcore: policy not implemented")
)
