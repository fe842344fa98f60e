// Command schedcore-demo wires schedcore.Core over a small static
// vehicular scenario and runs one scheduling epoch, printing the grants
// issued: minimal flag parsing, construct the facade, run it, report
// the outcome.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/edgevec/schedcore"
	"github.com/edgevec/schedcore/apps"
	"github.com/edgevec/schedcore/config"
	"github.com/edgevec/schedcore/links"
	"github.com/edgevec/schedcore/model"
	"github.com/edgevec/schedcore/resources"
)

func main() {
	var (
		policyName string
		configPath string
	)
	flag.StringVar(&policyName, "policy", string(config.PolicyGreedy), "scheduling policy: greedy, graphMatch, quickLR, fastSA")
	flag.StringVar(&configPath, "config", "", "optional YAML config file overriding defaults")
	flag.Parse()

	cfg := config.Defaults()
	cfg.Policy = config.Policy(policyName)
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	appsReg, resReg, obs := buildScenario(cfg)

	core, err := schedcore.New(schedcore.Options{
		Config: cfg,
		Logger: slog.New(slog.NewTextHandler(os.Stdout, nil)),
	}, appsReg, resReg, obs)
	if err != nil {
		log.Fatalf("construct scheduling core: %v", err)
	}

	result, err := core.RunEpoch(context.Background())
	if err != nil {
		log.Fatalf("run epoch: %v", err)
	}

	fmt.Printf("epoch %s: policy=%s candidates=%d grants=%d rejected=%d total_utility=%.4f\n",
		result.EpochID, result.Policy, len(result.CandidateSet.Instances), len(result.Grants), result.Rejected, result.TotalUtility)
	for _, g := range result.Grants {
		fmt.Printf("  app=%d off_rsu=%d proc_rsu=%d rbs=%d cus=%d max_offload=%s\n",
			g.AppID, g.OffRSU, g.ProcRSU, g.RBs, g.CUs, g.MaxOffloadTime)
	}
}

// buildScenario constructs a small fixed scenario: two RSUs reachable
// from each other at one hop, two vehicles each running one application,
// and a service-time table covering both RSUs' device types.
func buildScenario(cfg config.Config) (*apps.Registry, *resources.Registry, *links.Observatory) {
	svcTime := resources.NewServiceTimeTable()
	svcTime.Set("gpu-edge", "object-detection", 8*time.Millisecond)
	svcTime.Set("cpu-edge", "object-detection", 20*time.Millisecond)

	resReg := resources.NewRegistry(svcTime)
	resReg.Register(resources.RSU{
		ID: 1, Bands: 20, CmpUnits: 8, CmpCapacity: 1.0, DeviceType: "gpu-edge",
		Reachable: map[model.NodeID]int{1: 0, 2: 1},
	})
	resReg.Register(resources.RSU{
		ID: 2, Bands: 20, CmpUnits: 8, CmpCapacity: 1.0, DeviceType: "cpu-edge",
		Reachable: map[model.NodeID]int{1: 1, 2: 0},
	})

	appsReg := apps.NewRegistry()
	_ = appsReg.Enroll(apps.Application{
		ID: 1, VehID: "veh-a", Period: 100 * time.Millisecond,
		InputSize: 1_000_000, OutputSize: 10_000, Service: "object-detection",
		Energy: 5.0, OffloadPower: 1.5,
	})
	_ = appsReg.Enroll(apps.Application{
		ID: 2, VehID: "veh-b", Period: 80 * time.Millisecond,
		InputSize: 800_000, OutputSize: 8_000, Service: "object-detection",
		Energy: 4.0, OffloadPower: 1.2,
	})

	obs := links.NewObservatory(cfg.FreshnessHorizon)
	now := time.Now()
	obs.Report("veh-a", 1, 50_000, now)
	obs.Report("veh-a", 2, 30_000, now)
	obs.Report("veh-b", 2, 60_000, now)

	return appsReg, resReg, obs
}
