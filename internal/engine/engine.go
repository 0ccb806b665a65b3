// Package engine runs one surveillance pass: triage, constraint derivation
// and violation detection over a fixed snapshot of propositions and prices.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/hetulpatel/surveillance/internal/constraint"
	"github.com/hetulpatel/surveillance/internal/detect"
	"github.com/hetulpatel/surveillance/internal/logging"
	"github.com/hetulpatel/surveillance/internal/prices"
	"github.com/hetulpatel/surveillance/internal/proposition"
	"github.com/hetulpatel/surveillance/internal/triage"
)

type Config struct {
	Venue string
	Date  string
	// Threshold routes propositions with lower confidence to review.
	Threshold float64
	Policy    detect.Policy
	Workers   int
	// Now stamps review items; defaults to time.Now.
	Now func() time.Time
}

// PassResult is everything one pass produces.
type PassResult struct {
	Violations  []detect.Violation      `json:"violations"`
	ReviewDelta []triage.ReviewItem     `json:"review_delta"`
	Diagnostics []detect.Diagnostic     `json:"diagnostics"`
	Constraints []constraint.Constraint `json:"constraints"`
	Summary     Summary                 `json:"summary"`
}

type Engine struct {
	cfg      Config
	detector *detect.Detector
}

func New(cfg Config) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Policy.Tolerances == nil {
		cfg.Policy = detect.DefaultPolicy()
	}
	return &Engine{cfg: cfg, detector: detect.New(cfg.Policy, cfg.Workers)}
}

// Threshold is the review threshold passes route on.
func (e *Engine) Threshold() float64 { return e.cfg.Threshold }

// RunPass triages props, derives ladders from the accepted ones, merges the
// supplied constraints and checks everything against surface. Violations
// are identical for identical inputs.
func (e *Engine) RunPass(props []proposition.Proposition, supplied []constraint.Constraint, surface prices.Surface) PassResult {
	now := e.cfg.Now().UTC()
	accepted, review := triage.Split(props, e.cfg.Threshold, now)

	catalog := constraint.NewCatalog(constraint.Derive(accepted)...)
	catalog.Add(supplied...)
	constraints := catalog.All()

	rep := e.detector.Detect(constraints, surface)
	res := PassResult{
		Violations:  rep.Violations,
		ReviewDelta: review,
		Diagnostics: rep.Diagnostics,
		Constraints: constraints,
	}
	res.Summary = summarize(e.cfg, now, props, accepted, catalog, surface, rep)

	logging.Infof("[engine] %s %s: %d propositions, %d to review, %d constraints, %d violations, %d diagnostics",
		e.cfg.Venue, e.cfg.Date, len(props), len(review), len(constraints), len(rep.Violations), len(rep.Diagnostics))
	return res
}

// RunPass is a one-off pass with the default policy and threshold.
func RunPass(props []proposition.Proposition, supplied []constraint.Constraint, surface prices.Surface) PassResult {
	return New(Config{Threshold: triage.DefaultThreshold}).RunPass(props, supplied, surface)
}

// Sink receives pass results.
type Sink interface {
	Emit(ctx context.Context, res PassResult) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, res PassResult) error

func (f SinkFunc) Emit(ctx context.Context, res PassResult) error { return f(ctx, res) }

// Fanout emits to every sink and joins their errors. One failing sink does
// not stop the others.
func Fanout(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, res PassResult) error {
		var errs []error
		for _, s := range sinks {
			if s == nil {
				continue
			}
			if err := s.Emit(ctx, res); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
