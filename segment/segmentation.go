package segment

import (
	"math"

	"golang.org/x/sync/errgroup"
)

//SearchStrategy selects how cutoffs are searched for a candidate bin count.
type SearchStrategy int

const (
	//SearchQuantile runs the local quantile-seeded optimization.
	SearchQuantile SearchStrategy = iota
	//SearchGlobal runs the population-based global optimization.
	SearchGlobal
)

//Result is the outcome of a segmentation run. Cutoffs includes the outer 0 and
//1 bounds, so its length is NBins+1. A no-solution result carries zero bins,
//no cutoffs and -Inf revenue.
type Result struct {
	NBins   int
	Cutoffs []float64
	Revenue float64
}

//noSolution is the sentinel for configurations that cannot be segmented, such
//as a bin count exceeding the number of observations.
func noSolution() Result {
	return Result{NBins: 0, Cutoffs: nil, Revenue: math.Inf(-1)}
}

//SearchParams collects the arguments of FindOptimalBins.
type SearchParams struct {
	Propensities  []float64
	Predictions   []float64
	NBins         int      // target bin count, or the sweep's upper limit
	RevenueFn     BinValue // nil selects DefaultRevenueFunction
	CostFn        BinValue // nil selects DefaultCostFunction
	PenaltyFactor float64
	MinSamples    int
	Strategy      SearchStrategy
	Sweep         bool   // try every bin count in [2, NBins] instead of NBins alone
	Seed          uint64 // random source of the global search; 0 selects a fixed default
}

func (params *SearchParams) fillDefaults() {
	if params.RevenueFn == nil {
		params.RevenueFn = DefaultRevenueFunction
	}
	if params.CostFn == nil {
		params.CostFn = DefaultCostFunction
	}
	if params.Seed == 0 {
		params.Seed = defaultSeed
	}
}

//searchCutoffs dispatches to the configured strategy.
func (params SearchParams) searchCutoffs(nBins int, seed uint64) ([]float64, error) {
	if params.Strategy == SearchGlobal {
		return globalSearch(nBins, params.Propensities, params.Predictions, params.PenaltyFactor, params.RevenueFn, params.CostFn, seed)
	}
	return OptimizeCutoffsWithQuantiles(nBins, params.Propensities, params.Predictions, params.PenaltyFactor, params.RevenueFn, params.CostFn)
}

//evaluateCandidate runs the search-merge-score pipeline for one bin count.
//A bin count exceeding the observation count is reported as no solution without
//searching.
func (params SearchParams) evaluateCandidate(nBins int, seed uint64) (Result, error) {
	if len(params.Propensities) == 0 || nBins > len(params.Propensities) {
		return noSolution(), nil
	}

	cutoffs, err := params.searchCutoffs(nBins, seed)
	if err != nil {
		return noSolution(), err
	}

	merged := MergeBins(cutoffs, params.Propensities, params.Predictions, params.MinSamples)
	revenue := TotalRevenueWithPenalty(merged, params.Propensities, params.Predictions, params.PenaltyFactor, params.RevenueFn, params.CostFn)

	full := make([]float64, 0, len(merged)+1)
	full = append(full, 0)
	full = append(full, merged...)
	return Result{NBins: len(full) - 1, Cutoffs: full, Revenue: revenue}, nil
}

//FindOptimalBins searches for the revenue-maximizing segmentation. In fixed
//mode it evaluates params.NBins alone; with Sweep set it tries every bin count
//from 2 through params.NBins and keeps the best, breaking ties in favor of the
//lowest bin count. Degenerate inputs (for instance empty data) yield the
//no-solution sentinel rather than an error.
func FindOptimalBins(params SearchParams) (Result, error) {
	params.fillDefaults()

	if !params.Sweep {
		return params.evaluateCandidate(params.NBins, params.Seed)
	}

	if params.NBins < 2 {
		return noSolution(), nil
	}
	candidates := make([]Result, params.NBins+1)
	var group errgroup.Group
	for nBins := 2; nBins <= params.NBins; nBins++ {
		nBins := nBins
		group.Go(func() error {
			// Each candidate draws from its own derived source, so the
			// parallel sweep reproduces a sequential run exactly.
			candidate, err := params.evaluateCandidate(nBins, params.Seed+uint64(nBins))
			if err != nil {
				return err
			}
			candidates[nBins] = candidate
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return noSolution(), err
	}

	// Ascending scan with a strict comparison keeps the lowest bin count on
	// revenue ties. A candidate whose merge collapsed to a single bin never
	// outranks a real segmentation; it is kept only as a fallback for when no
	// candidate holds two bins together.
	best := noSolution()
	collapsed := noSolution()
	for nBins := 2; nBins <= params.NBins; nBins++ {
		candidate := candidates[nBins]
		switch {
		case candidate.NBins >= 2 && candidate.Revenue > best.Revenue:
			best = candidate
		case candidate.NBins == 1 && candidate.Revenue > collapsed.Revenue:
			collapsed = candidate
		}
	}
	if best.NBins == 0 && collapsed.NBins > 0 {
		return collapsed, nil
	}
	return best, nil
}
