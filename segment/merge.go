package segment

//MergeBins repairs a tentative set of interior cutoffs so that every resulting
//bin holds at least minSamples observations, merging under-populated bins into
//the accumulation running from the left. The returned cutoffs always end with
//the 1 bound and never include the leading 0 bound; the repair is best-effort,
//driven by a single left-to-right pass rather than a globally optimal merge.
//
//Callers must special-case empty input data before merging: with no
//observations at all no bin can ever satisfy the minimum.
func MergeBins(interior, propensities, predictions []float64, minSamples int) []float64 {
	cutoffs := fullCutoffs(interior)
	merged := make([]float64, 0, len(interior)+1)

	accumSize := 0
	accumRate := 0.0
	for i := 0; i < len(cutoffs)-1; i++ {
		last := i == len(cutoffs)-2
		size, rate := binStats(propensities, predictions, cutoffs[i], cutoffs[i+1], last)

		if size >= minSamples {
			if accumSize > 0 {
				merged = append(merged, cutoffs[i])
			}
			accumSize = size
			accumRate = rate
			continue
		}

		// Fold the short bin into the running accumulation; the rate becomes
		// the size-weighted average of both parts. An empty bin leaves the
		// accumulated rate untouched.
		accumSize += size
		if size > 0 && accumSize > 0 {
			accumRate = (accumRate*float64(accumSize-size) + rate*float64(size)) / float64(accumSize)
		}
	}

	merged = append(merged, cutoffs[len(cutoffs)-1])
	return merged
}
