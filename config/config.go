// Package config holds the scheduler core's closed set of tunable
// parameters, their defaults, and YAML (de)serialization: a plain
// struct with Defaults()/Validate() and no hidden global state.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/edgevec/schedcore/model"
	"gopkg.in/yaml.v3"
)

// Policy names the scheduling algorithm family to run each epoch.
type Policy string

const (
	PolicyGreedy     Policy = "greedy"
	PolicyGraphMatch Policy = "graphMatch"
	PolicyQuickLR    Policy = "quickLR"
	PolicyFastSA     Policy = "fastSA"
	PolicyGameTheory Policy = "gameTheory"
)

// Config is the closed set of tunable parameters. Fields are exported so
// the host simulator can construct one directly; Validate enforces the
// invariants the core relies on.
type Config struct {
	// FairFactor limits a single candidate's resource take to this
	// fraction of RSU capacity, and complementarily caps GraphMatch's LP
	// feasible region to capacity*(1-FairFactor).
	FairFactor float64 `yaml:"fair_factor" json:"fair_factor"`

	// RBStep, CUStep are the enumeration step sizes for the Candidate
	// Generator's RB/CU loops.
	RBStep int `yaml:"rb_step" json:"rb_step"`
	CUStep int `yaml:"cu_step" json:"cu_step"`

	// OffloadOverhead is the fixed per-job setup delay added to every
	// candidate's total delay.
	OffloadOverhead time.Duration `yaml:"offload_overhead" json:"offload_overhead"`

	// VirtualLinkRate is the backhaul bandwidth per hop, in bytes/second.
	VirtualLinkRate float64 `yaml:"virtual_link_rate" json:"virtual_link_rate"`

	// FreshnessHorizon is the maximum age of a usable link sample.
	FreshnessHorizon time.Duration `yaml:"freshness_horizon" json:"freshness_horizon"`

	// LPTimeLimit is the wall-clock cap per LP solve (GraphMatch only).
	LPTimeLimit time.Duration `yaml:"lp_time_limit" json:"lp_time_limit"`

	// Policy selects which of {greedy, graphMatch, quickLR, fastSA,
	// gameTheory} runs each epoch.
	Policy Policy `yaml:"policy" json:"policy"`
}

// Defaults returns a Config with conservative, commonly-useful defaults.
func Defaults() Config {
	return Config{
		FairFactor:       1.0,
		RBStep:           1,
		CUStep:           1,
		OffloadOverhead:  time.Millisecond,
		VirtualLinkRate:  1e9 / 8, // 1 Gbps backhaul expressed in bytes/sec
		FreshnessHorizon: 100 * time.Millisecond,
		LPTimeLimit:      2 * time.Second,
		Policy:           PolicyGreedy,
	}
}

// Validate enforces the one construction-time hard error the core
// recognizes: OutOfRangeConfig. Everything else about a misconfigured
// epoch is handled locally downstream.
func (c Config) Validate() error {
	if c.FairFactor < 0 || c.FairFactor > 1 {
		return fmt.Errorf("%w: fair_factor %v not in [0,1]", model.ErrOutOfRangeConfig, c.FairFactor)
	}
	if c.RBStep <= 0 {
		return fmt.Errorf("%w: rb_step must be positive, got %d", model.ErrOutOfRangeConfig, c.RBStep)
	}
	if c.CUStep <= 0 {
		return fmt.Errorf("%w: cu_step must be positive, got %d", model.ErrOutOfRangeConfig, c.CUStep)
	}
	if c.OffloadOverhead < 0 {
		return fmt.Errorf("%w: offload_overhead must be non-negative", model.ErrOutOfRangeConfig)
	}
	if c.VirtualLinkRate <= 0 {
		return fmt.Errorf("%w: virtual_link_rate must be positive", model.ErrOutOfRangeConfig)
	}
	if c.FreshnessHorizon <= 0 {
		return fmt.Errorf("%w: freshness_horizon must be positive", model.ErrOutOfRangeConfig)
	}
	if c.LPTimeLimit <= 0 {
		return fmt.Errorf("%w: lp_time_limit must be positive", model.ErrOutOfRangeConfig)
	}
	switch c.Policy {
	case PolicyGreedy, PolicyGraphMatch, PolicyQuickLR, PolicyFastSA, PolicyGameTheory:
	default:
		return fmt.Errorf("%w: unknown policy %q", model.ErrOutOfRangeConfig, c.Policy)
	}
	return nil
}

// Load reads and validates a Config from a YAML file, starting from
// Defaults() so a partial file only overrides what it sets.
func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
