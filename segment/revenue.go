package segment

import "math"

//BinValue maps a 0-based bin index to a real value. Revenue and cost models are
//injected through this type so callers can substitute their own economics
//without touching the solver.
type BinValue func(binIndex int) float64

//DefaultRevenueFunction grows revenue exponentially with the bin index,
//rewarding the higher-propensity bins.
func DefaultRevenueFunction(binIndex int) float64 {
	return math.Pow(3, float64(binIndex))
}

//DefaultCostFunction grows cost exponentially with the bin index.
func DefaultCostFunction(binIndex int) float64 {
	return math.Pow(2, float64(binIndex))
}

//fullCutoffs prepends the 0 bound and appends the 1 bound to a sequence of
//interior cutoffs.
func fullCutoffs(interior []float64) []float64 {
	full := make([]float64, 0, len(interior)+2)
	full = append(full, 0)
	full = append(full, interior...)
	full = append(full, 1)
	return full
}

//inBin reports whether a propensity belongs to the bin [lo, hi). The last bin
//additionally includes its upper bound, so a propensity of exactly 1 lands in
//the final bin.
func inBin(propensity, lo, hi float64, last bool) bool {
	if propensity < lo {
		return false
	}
	if propensity < hi {
		return true
	}
	return last && propensity == hi
}

//binStats gathers the sample count and conversion rate of a single bin.
func binStats(propensities, predictions []float64, lo, hi float64, last bool) (size int, rate float64) {
	sum := 0.0
	for p, propensity := range propensities {
		if inBin(propensity, lo, hi, last) {
			size++
			sum += predictions[p]
		}
	}
	if size > 0 {
		rate = sum / float64(size)
	}
	return size, rate
}

//TotalRevenueWithPenalty scores a set of interior cutoffs against the data.
//Each non-empty bin contributes revenueFn(i)*size*rate - costFn(i)*size minus a
//penalty proportional to how close its conversion rate sits to the previous
//non-empty bin's rate. Empty bins contribute nothing and do not update the
//previous rate. The function is pure: it may be called concurrently on shared
//input slices.
func TotalRevenueWithPenalty(interior, propensities, predictions []float64, penaltyFactor float64, revenueFn, costFn BinValue) float64 {
	cutoffs := fullCutoffs(interior)

	total := 0.0
	prevRate := math.NaN()
	for i := 0; i < len(cutoffs)-1; i++ {
		last := i == len(cutoffs)-2
		size, rate := binStats(propensities, predictions, cutoffs[i], cutoffs[i+1], last)
		if size == 0 {
			continue
		}

		revenue := revenueFn(i) * float64(size) * rate
		cost := costFn(i) * float64(size)
		penalty := 0.0
		if !math.IsNaN(prevRate) {
			penalty = math.Abs(prevRate - rate)
		}

		total += revenue - cost - penaltyFactor*penalty
		prevRate = rate
	}
	return total
}
