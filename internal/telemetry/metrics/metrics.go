// Package metrics provides the scheduling core's Prometheus metrics: a
// concrete, fixed instrument set rather than a pluggable-backend
// abstraction, since this core has a known, closed set of metrics to
// emit. FQ-name validation and per-label cardinality tracking guard
// against accidentally unbounded per-RSU label values.
package metrics

import (
	"fmt"
	"net/http"
	"regexp"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var metricNameRE = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)

const namespace = "schedcore"

// Recorder is the scheduling core's fixed metrics surface.
type Recorder struct {
	reg *prom.Registry

	rbAvailable *prom.GaugeVec
	cuAvailable *prom.GaugeVec

	candidatesGenerated prom.Counter
	grantsIssued        prom.Counter
	grantsRevoked       prom.Counter
	policyErrors        *prom.CounterVec

	epochDuration  prom.Histogram
	lpSolveSeconds *prom.HistogramVec

	mu           sync.Mutex
	cardinality  map[string]map[string]struct{}
	cardLimit    int
	exceededOnce map[string]struct{}
	cardWarnings *prom.CounterVec

	handler http.Handler
}

// Options configures a Recorder. A zero value is valid: a fresh registry
// and a cardinality warning threshold of 100 distinct label values.
type Options struct {
	Registry         *prom.Registry
	CardinalityLimit int
}

// New constructs a Recorder and registers every instrument against its
// registry (a fresh one, if opts.Registry is nil).
func New(opts Options) (*Recorder, error) {
	reg := opts.Registry
	if reg == nil {
		reg = prom.NewRegistry()
	}
	limit := opts.CardinalityLimit
	if limit <= 0 {
		limit = 100
	}

	r := &Recorder{
		reg:          reg,
		cardinality:  make(map[string]map[string]struct{}),
		cardLimit:    limit,
		exceededOnce: make(map[string]struct{}),
		handler:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}

	must := func(name, help string) prom.Opts {
		fq := namespace + "_" + name
		if !metricNameRE.MatchString(fq) {
			panic(fmt.Sprintf("invalid metric name %q", fq))
		}
		return prom.Opts{Name: fq, Help: help}
	}

	r.rbAvailable = prom.NewGaugeVec(prom.GaugeOpts(must("rb_available", "currently available resource blocks per RSU")), []string{"rsu"})
	r.cuAvailable = prom.NewGaugeVec(prom.GaugeOpts(must("cu_available", "currently available compute units per RSU")), []string{"rsu"})
	r.candidatesGenerated = prom.NewCounter(prom.CounterOpts(must("candidates_generated_total", "candidate service instances enumerated")))
	r.grantsIssued = prom.NewCounter(prom.CounterOpts(must("grants_issued_total", "grants committed to the resource registry")))
	r.grantsRevoked = prom.NewCounter(prom.CounterOpts(must("grants_revoked_total", "grants released back to the resource registry")))
	r.policyErrors = prom.NewCounterVec(prom.CounterOpts(must("policy_errors_total", "policy selection errors by policy name")), []string{"policy"})
	r.epochDuration = prom.NewHistogram(prom.HistogramOpts(must("epoch_duration_seconds", "wall-clock time to run one scheduling epoch")))
	r.lpSolveSeconds = prom.NewHistogramVec(prom.HistogramOpts(must("lp_solve_seconds", "wall-clock time spent in an LP relaxation solve")), []string{"phase"})
	r.cardWarnings = prom.NewCounterVec(prom.CounterOpts(must("label_cardinality_exceeded_total", "count of metrics whose observed label cardinality exceeded the configured limit")), []string{"metric"})

	for _, c := range []prom.Collector{r.rbAvailable, r.cuAvailable, r.candidatesGenerated, r.grantsIssued, r.grantsRevoked, r.policyErrors, r.epochDuration, r.lpSolveSeconds, r.cardWarnings} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return r, nil
}

// Handler returns the Prometheus scrape HTTP handler.
func (r *Recorder) Handler() http.Handler { return r.handler }

// trackCardinality records metric/label and warns (once per metric) if
// the limit is exceeded. It never refuses the underlying observation —
// Prometheus itself will bound it eventually; this is an early warning.
func (r *Recorder) trackCardinality(metric, label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.cardinality[metric]
	if !ok {
		set = make(map[string]struct{})
		r.cardinality[metric] = set
	}
	set[label] = struct{}{}
	if len(set) > r.cardLimit {
		if _, warned := r.exceededOnce[metric]; !warned {
			r.exceededOnce[metric] = struct{}{}
			r.cardWarnings.WithLabelValues(metric).Inc()
		}
	}
}

// SetRBAvailable records the current available RB count for an RSU.
func (r *Recorder) SetRBAvailable(rsu string, v float64) {
	r.trackCardinality("rb_available", rsu)
	r.rbAvailable.WithLabelValues(rsu).Set(v)
}

// SetCUAvailable records the current available CU count for an RSU.
func (r *Recorder) SetCUAvailable(rsu string, v float64) {
	r.trackCardinality("cu_available", rsu)
	r.cuAvailable.WithLabelValues(rsu).Set(v)
}

// AddCandidatesGenerated increments the candidate-enumeration counter.
func (r *Recorder) AddCandidatesGenerated(n int) { r.candidatesGenerated.Add(float64(n)) }

// AddGrantsIssued increments the grants-issued counter.
func (r *Recorder) AddGrantsIssued(n int) { r.grantsIssued.Add(float64(n)) }

// AddGrantsRevoked increments the grants-revoked counter.
func (r *Recorder) AddGrantsRevoked(n int) { r.grantsRevoked.Add(float64(n)) }

// ObservePolicyError records a policy selection failure.
func (r *Recorder) ObservePolicyError(policy string) { r.policyErrors.WithLabelValues(policy).Inc() }

// ObserveEpochDuration records one epoch's wall-clock runtime in seconds.
func (r *Recorder) ObserveEpochDuration(seconds float64) { r.epochDuration.Observe(seconds) }

// ObserveLPSolve records one LP relaxation phase's wall-clock runtime.
func (r *Recorder) ObserveLPSolve(phase string, seconds float64) {
	r.lpSolveSeconds.WithLabelValues(phase).Observe(seconds)
}
