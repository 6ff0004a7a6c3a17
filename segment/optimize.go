package segment

import (
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

//ErrInvalidBinCount is returned by the cutoff searches when fewer than two bins
//are requested: with one bin there is no interior cutoff left to optimize.
var ErrInvalidBinCount = errors.New("bin count must be at least 2")

//defaultSeed fixes the random source of the global search when the caller does
//not supply one, keeping repeated runs bit-identical.
const defaultSeed uint64 = 1

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

//negRevenueObjective builds the function both searches minimize: total net
//revenue, negated. Candidate coordinates are clamped into [0,1] before scoring,
//which emulates box bounds for the unconstrained gonum methods.
func negRevenueObjective(propensities, predictions []float64, penaltyFactor float64, revenueFn, costFn BinValue) func(x []float64) float64 {
	return func(x []float64) float64 {
		clamped := make([]float64, len(x))
		for i, v := range x {
			clamped[i] = clamp01(v)
		}
		return -TotalRevenueWithPenalty(clamped, propensities, predictions, penaltyFactor, revenueFn, costFn)
	}
}

//initialCutoffs seeds nBins-1 interior cutoffs at the quantile positions of the
//propensity distribution, falling back to an even spacing when there is no data
//to take quantiles of.
func initialCutoffs(nBins int, propensities []float64) []float64 {
	grid := floats.Span(make([]float64, nBins+1), 0, 1)
	seed := make([]float64, nBins-1)
	copy(seed, grid[1:nBins])

	if len(propensities) == 0 {
		return seed
	}

	sorted := make([]float64, len(propensities))
	copy(sorted, propensities)
	sort.Float64s(sorted)
	for i := range seed {
		seed[i] = stat.Quantile(grid[i+1], stat.LinInterp, sorted, nil)
	}
	return seed
}

//finishCutoffs clamps an optimizer solution into [0,1] and sorts it ascending.
func finishCutoffs(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = clamp01(v)
	}
	sort.Float64s(out)
	return out
}

//OptimizeCutoffsWithQuantiles searches for revenue-maximizing cutoffs with a
//local quasi-Newton descent seeded at the propensity quantiles. It converges to
//a local optimum near the seed: fast, but not guaranteed global. The returned
//nBins-1 cutoffs are sorted and lie in [0,1].
func OptimizeCutoffsWithQuantiles(nBins int, propensities, predictions []float64, penaltyFactor float64, revenueFn, costFn BinValue) ([]float64, error) {
	if nBins < 2 {
		return nil, errors.Wrapf(ErrInvalidBinCount, "quantile search with %d bins", nBins)
	}

	f := negRevenueObjective(propensities, predictions, penaltyFactor, revenueFn, costFn)
	problem := optimize.Problem{
		Func: f,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, f, x, nil)
		},
	}

	seed := initialCutoffs(nBins, propensities)
	// Non-convergence is not an error condition: the best candidate found so
	// far (or the seed itself) is still a valid solution.
	result, _ := optimize.Minimize(problem, seed, nil, &optimize.BFGS{})
	if result == nil {
		return finishCutoffs(seed), nil
	}
	return finishCutoffs(result.X), nil
}

//OptimizeCutoffsWithGlobalSearch searches the full [0,1]^(nBins-1) space with a
//population-based derivative-free strategy (CMA-ES), which tolerates the step
//discontinuities the objective develops as observations cross bin boundaries.
//More expensive than the quantile search and more robust to multiple local
//optima. The run is deterministic: the internal random source is fixed.
func OptimizeCutoffsWithGlobalSearch(nBins int, propensities, predictions []float64, penaltyFactor float64, revenueFn, costFn BinValue) ([]float64, error) {
	return globalSearch(nBins, propensities, predictions, penaltyFactor, revenueFn, costFn, defaultSeed)
}

func globalSearch(nBins int, propensities, predictions []float64, penaltyFactor float64, revenueFn, costFn BinValue, seed uint64) ([]float64, error) {
	if nBins < 2 {
		return nil, errors.Wrapf(ErrInvalidBinCount, "global search with %d bins", nBins)
	}

	f := negRevenueObjective(propensities, predictions, penaltyFactor, revenueFn, costFn)
	problem := optimize.Problem{Func: f}

	dim := nBins - 1
	initMean := make([]float64, dim)
	for i := range initMean {
		initMean[i] = 0.5
	}

	method := &optimize.CmaEsChol{
		InitStepSize: 0.25,
		Src:          rand.NewSource(seed),
	}
	settings := &optimize.Settings{FuncEvaluations: 20000}

	result, _ := optimize.Minimize(problem, initMean, settings, method)
	if result == nil {
		return finishCutoffs(initMean), nil
	}
	return finishCutoffs(result.X), nil
}
