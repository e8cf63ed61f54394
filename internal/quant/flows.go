package quant

import "sort"

// PeriodFlow is an external cash flow attributed to one index of a value series
type PeriodFlow struct {
	Index  int
	Amount float64
}

// PeriodFlows is an ordered association from series index to flow amount.
// Indices without an entry carry no flow.
type PeriodFlows []PeriodFlow

// NewPeriodFlows sorts flows by index and sums amounts that share an index
func NewPeriodFlows(flows ...PeriodFlow) PeriodFlows {
	if len(flows) == 0 {
		return nil
	}

	sorted := make([]PeriodFlow, len(flows))
	copy(sorted, flows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Index < sorted[j].Index
	})

	merged := make(PeriodFlows, 0, len(sorted))
	for _, f := range sorted {
		if n := len(merged); n > 0 && merged[n-1].Index == f.Index {
			merged[n-1].Amount += f.Amount
			continue
		}
		merged = append(merged, f)
	}
	return merged
}

// At returns the flow at index i, or 0 if none. The receiver must be ordered,
// as produced by NewPeriodFlows.
func (f PeriodFlows) At(i int) float64 {
	j := sort.Search(len(f), func(k int) bool { return f[k].Index >= i })
	if j < len(f) && f[j].Index == i {
		return f[j].Amount
	}
	return 0
}

// Total returns the sum of all flows
func (f PeriodFlows) Total() float64 {
	total := 0.0
	for _, p := range f {
		total += p.Amount
	}
	return total
}
