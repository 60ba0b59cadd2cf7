package lightgbm

import (
	"math"
	"sort"
)

// binMapper assigns feature values to histogram bins. upper[k] is the
// inclusive upper bound of bin k; the last bound is +Inf.
type binMapper struct {
	upper []float64
}

// newBinMapper uses one bin per distinct value when there are at most maxBin
// of them, otherwise bins of equal distinct-value count.
func newBinMapper(values []float64, maxBin int) binMapper {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	unique := sorted[:0]
	for _, v := range sorted {
		if len(unique) == 0 || v != unique[len(unique)-1] {
			unique = append(unique, v)
		}
	}
	if len(unique) == 0 {
		return binMapper{upper: []float64{math.Inf(1)}}
	}

	var upper []float64
	if len(unique) <= maxBin {
		upper = make([]float64, 0, len(unique))
		for i := 0; i < len(unique)-1; i++ {
			upper = append(upper, (unique[i]+unique[i+1])/2)
		}
	} else {
		step := float64(len(unique)) / float64(maxBin)
		upper = make([]float64, 0, maxBin)
		for k := 1; k < maxBin; k++ {
			i := int(float64(k) * step)
			b := (unique[i-1] + unique[i]) / 2
			if len(upper) == 0 || b > upper[len(upper)-1] {
				upper = append(upper, b)
			}
		}
	}
	return binMapper{upper: append(upper, math.Inf(1))}
}

func (m binMapper) numBins() int { return len(m.upper) }

func (m binMapper) bin(v float64) int { return sort.SearchFloat64s(m.upper, v) }

// histogramBin accumulates gradient statistics for one bin
type histogramBin struct {
	sumGrad float64
	sumHess float64
	count   int
}

// splitInfo contains information about the best split of a leaf
type splitInfo struct {
	feature   int // -1 when the leaf cannot be split
	bin       int
	threshold float64
	gain      float64
	leftCount int
}

func noSplit() splitInfo {
	return splitInfo{feature: -1, gain: math.Inf(-1)}
}

// histogram builds the per-bin statistics of feature over indices
func (t *Trainer) histogram(feature int, indices []int) []histogramBin {
	hist := make([]histogramBin, t.mappers[feature].numBins())
	col := t.bins[feature]
	for _, i := range indices {
		b := &hist[col[i]]
		b.sumGrad += t.gradients[i]
		b.sumHess += t.hessians[i]
		b.count++
	}
	return hist
}

// findBestSplit scans the histograms of the sampled features
func (t *Trainer) findBestSplit(l *leafState, features []int) splitInfo {
	best := noSplit()
	minData := t.params.MinDataInLeaf
	if t.params.MaxDepth > 0 && l.depth >= t.params.MaxDepth {
		return best
	}
	if len(l.indices) < 2*minData {
		return best
	}

	parent := t.params.leafGain(l.sumGrad, l.sumHess)
	for _, f := range features {
		hist := t.histogram(f, l.indices)
		var leftGrad, leftHess float64
		leftCount := 0
		for k := 0; k < len(hist)-1; k++ {
			leftGrad += hist[k].sumGrad
			leftHess += hist[k].sumHess
			leftCount += hist[k].count
			rightCount := len(l.indices) - leftCount
			if rightCount < minData {
				break
			}
			if leftCount < minData {
				continue
			}
			rightGrad, rightHess := l.sumGrad-leftGrad, l.sumHess-leftHess
			if leftHess < t.params.MinSumHessian || rightHess < t.params.MinSumHessian {
				continue
			}

			gain := t.params.leafGain(leftGrad, leftHess) + t.params.leafGain(rightGrad, rightHess) - parent
			if gain > best.gain {
				best = splitInfo{
					feature:   f,
					bin:       k,
					threshold: t.mappers[f].upper[k],
					gain:      gain,
					leftCount: leftCount,
				}
			}
		}
	}
	return best
}
