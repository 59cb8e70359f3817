// Package pipeline runs the three rule-based stages in order: analysis,
// compliance and routing. Stages are pure; the pipeline only sequences them
// and measures how long each took.
package pipeline

import (
	"time"

	"mercator-hq/quorum/pkg/pipeline/analyzer"
	"mercator-hq/quorum/pkg/pipeline/compliance"
	"mercator-hq/quorum/pkg/pipeline/routing"
	"mercator-hq/quorum/pkg/policy"
	"mercator-hq/quorum/pkg/proposal"
)

// Stage names a pipeline stage.
type Stage string

const (
	StageAnalysis   Stage = "analysis"
	StageCompliance Stage = "compliance"
	StageRouting    Stage = "routing"
)

// Stages lists the stages in execution order.
var Stages = []Stage{StageAnalysis, StageCompliance, StageRouting}

// Input is the pipeline input.
type Input struct {
	Proposal *proposal.Proposal
	Now      time.Time
	History  []*proposal.Proposal
}

// Result holds every stage output of one run.
type Result struct {
	Analysis   proposal.Analysis
	Compliance proposal.Compliance
	Route      *routing.Route
	Durations  map[Stage]time.Duration
}

// Run evaluates the proposal against table. The proposal is not modified;
// call Result.ApplyTo to record the outcome.
func Run(table *policy.Table, in Input) (*Result, error) {
	res := &Result{Durations: make(map[Stage]time.Duration, len(Stages))}

	start := time.Now()
	a, err := analyzer.Analyze(table, in.Proposal)
	if err != nil {
		return nil, err
	}
	res.Durations[StageAnalysis] = time.Since(start)

	start = time.Now()
	c, err := compliance.Validate(table, compliance.Input{
		Proposal: in.Proposal,
		Analysis: a,
		Now:      in.Now,
		History:  in.History,
	})
	if err != nil {
		return nil, err
	}
	res.Durations[StageCompliance] = time.Since(start)

	start = time.Now()
	route, err := routing.Compute(table, in.Proposal, a, c)
	if err != nil {
		return nil, err
	}
	a.RoutingPath = route.Path
	a.RoutingExplanation = route.Explain(in.Proposal, a)
	res.Durations[StageRouting] = time.Since(start)

	res.Analysis = a
	res.Compliance = c
	res.Route = route
	return res, nil
}

// ApplyTo writes the analysis and compliance outcome onto p.
func (r *Result) ApplyTo(p *proposal.Proposal) {
	p.Analysis = r.Analysis
	p.Compliance = r.Compliance
}
