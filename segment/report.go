package segment

//BinSummary describes one labeled bin of a final segmentation.
type BinSummary struct {
	Index          int     `json:"index"`
	Lo             float64 `json:"lo"`
	Hi             float64 `json:"hi"`
	Size           int     `json:"size"`
	ConversionRate float64 `json:"conversion_rate"`
}

//SummarizeBins labels each bin of a full cutoff sequence (with 0 and 1 bounds)
//with its sample count and conversion rate, using the same membership
//convention as the revenue evaluator. Intended for presentation layers that
//turn cutoffs into reports.
func SummarizeBins(cutoffs, propensities, predictions []float64) []BinSummary {
	if len(cutoffs) < 2 {
		return nil
	}

	summaries := make([]BinSummary, 0, len(cutoffs)-1)
	for i := 0; i < len(cutoffs)-1; i++ {
		last := i == len(cutoffs)-2
		size, rate := binStats(propensities, predictions, cutoffs[i], cutoffs[i+1], last)
		summaries = append(summaries, BinSummary{
			Index:          i,
			Lo:             cutoffs[i],
			Hi:             cutoffs[i+1],
			Size:           size,
			ConversionRate: rate,
		})
	}
	return summaries
}
