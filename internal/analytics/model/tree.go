package model

import (
	"math"
	"sort"
)

// binMapper maps raw feature values to histogram bins.
// Bin 0 holds missing values; bin k>0 holds values in (upper[k-2], upper[k-1]].
type binMapper struct {
	upper []float64
}

func newBinMapper(column []float64, maxBin int) binMapper {
	distinct := make([]float64, 0, len(column))
	for _, v := range column {
		if !math.IsNaN(v) {
			distinct = append(distinct, v)
		}
	}
	sort.Float64s(distinct)
	distinct = compactSorted(distinct)

	if len(distinct) <= 1 {
		return binMapper{upper: []float64{math.Inf(1)}}
	}

	var upper []float64
	if len(distinct) <= maxBin {
		upper = make([]float64, 0, len(distinct))
		for k := 0; k < len(distinct)-1; k++ {
			upper = append(upper, (distinct[k]+distinct[k+1])/2)
		}
	} else {
		upper = make([]float64, 0, maxBin)
		for k := 1; k < maxBin; k++ {
			idx := k * len(distinct) / maxBin
			upper = append(upper, (distinct[idx-1]+distinct[idx])/2)
		}
	}
	upper = append(upper, math.Inf(1))
	return binMapper{upper: upper}
}

// numBins is the number of non-missing bins
func (b binMapper) numBins() int {
	return len(b.upper)
}

func (b binMapper) bin(v float64) uint16 {
	if math.IsNaN(v) {
		return 0
	}
	return uint16(sort.SearchFloat64s(b.upper, v) + 1)
}

func (b binMapper) binColumn(column []float64) []uint16 {
	out := make([]uint16, len(column))
	for i, v := range column {
		out[i] = b.bin(v)
	}
	return out
}

func compactSorted(s []float64) []float64 {
	if len(s) == 0 {
		return s
	}
	out := s[:1]
	for _, v := range s[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

type node struct {
	leaf        bool
	value       float64
	feature     int
	threshold   float64
	missingLeft bool
	left, right int
}

type tree struct {
	nodes []node
}

func (t *tree) predict(row []float64) float64 {
	i := 0
	for !t.nodes[i].leaf {
		nd := &t.nodes[i]
		v := row[nd.feature]
		switch {
		case math.IsNaN(v):
			if nd.missingLeft {
				i = nd.left
			} else {
				i = nd.right
			}
		case v <= nd.threshold:
			i = nd.left
		default:
			i = nd.right
		}
	}
	return t.nodes[i].value
}

type split struct {
	valid       bool
	gain        float64
	feature     int
	bin         int
	missingLeft bool
}

type leafCandidate struct {
	node  int
	rows  []int
	depth int
	sumG  float64
	sumH  float64
	best  split
}

type histBin struct {
	g, h float64
	n    int
}

// grower builds one tree per call on the current gradients (hessian = 1 for L2)
type grower struct {
	params  GBMParams
	mappers []binMapper
	binned  [][]uint16
	grad    []float64
	hist    []histBin
}

func (g *grower) grow(feats []int) (*tree, []int) {
	n := len(g.grad)
	rows := make([]int, n)
	sumG := 0.0
	for i := range rows {
		rows[i] = i
		sumG += g.grad[i]
	}

	tr := &tree{nodes: []node{{leaf: true}}}
	root := &leafCandidate{node: 0, rows: rows, depth: 0, sumG: sumG, sumH: float64(n)}
	root.best = g.findSplit(root, feats)
	leaves := []*leafCandidate{root}

	for len(leaves) < g.params.NumLeaves {
		pick := -1
		for i, lc := range leaves {
			if !lc.best.valid {
				continue
			}
			if pick < 0 || lc.best.gain > leaves[pick].best.gain {
				pick = i
			}
		}
		if pick < 0 {
			break
		}

		parent := leaves[pick]
		left, right := g.partition(parent)

		li := len(tr.nodes)
		tr.nodes = append(tr.nodes, node{leaf: true}, node{leaf: true})
		tr.nodes[parent.node] = node{
			feature:     parent.best.feature,
			threshold:   g.mappers[parent.best.feature].upper[parent.best.bin-1],
			missingLeft: parent.best.missingLeft,
			left:        li,
			right:       li + 1,
		}
		left.node, right.node = li, li+1
		left.depth, right.depth = parent.depth+1, parent.depth+1
		left.best = g.findSplit(left, feats)
		right.best = g.findSplit(right, feats)

		leaves[pick] = left
		leaves = append(leaves, right)
	}

	leafOf := make([]int, n)
	for _, lc := range leaves {
		tr.nodes[lc.node].value = g.leafValue(lc.sumG, lc.sumH)
		for _, r := range lc.rows {
			leafOf[r] = lc.node
		}
	}
	return tr, leafOf
}

func (g *grower) partition(parent *leafCandidate) (*leafCandidate, *leafCandidate) {
	s := parent.best
	col := g.binned[s.feature]
	left := &leafCandidate{}
	right := &leafCandidate{}
	for _, r := range parent.rows {
		b := int(col[r])
		goLeft := b != 0 && b <= s.bin
		if b == 0 {
			goLeft = s.missingLeft
		}
		if goLeft {
			left.rows = append(left.rows, r)
			left.sumG += g.grad[r]
		} else {
			right.rows = append(right.rows, r)
			right.sumG += g.grad[r]
		}
	}
	left.sumH = float64(len(left.rows))
	right.sumH = float64(len(right.rows))
	return left, right
}

func (g *grower) findSplit(lc *leafCandidate, feats []int) split {
	best := split{}
	if g.params.MaxDepth > 0 && lc.depth >= g.params.MaxDepth {
		return best
	}
	if len(lc.rows) < 2*max(1, g.params.MinDataInLeaf) {
		return best
	}

	parentScore := g.score(lc.sumG, lc.sumH)
	for _, f := range feats {
		nb := g.mappers[f].numBins()
		if nb < 2 {
			continue
		}
		if cap(g.hist) < nb+1 {
			g.hist = make([]histBin, nb+1)
		}
		hist := g.hist[:nb+1]
		clear(hist)
		col := g.binned[f]
		for _, r := range lc.rows {
			hb := &hist[col[r]]
			hb.g += g.grad[r]
			hb.h++
			hb.n++
		}

		miss := hist[0]
		directions := []bool{false}
		if miss.n > 0 {
			directions = []bool{false, true}
		}

		var cg, ch float64
		var cn int
		for t := 1; t < nb; t++ {
			cg += hist[t].g
			ch += hist[t].h
			cn += hist[t].n
			for _, ml := range directions {
				lg, lh, ln := cg, ch, cn
				if ml {
					lg += miss.g
					lh += miss.h
					ln += miss.n
				}
				rg, rh, rn := lc.sumG-lg, lc.sumH-lh, len(lc.rows)-ln
				if ln < g.params.MinDataInLeaf || rn < g.params.MinDataInLeaf || ln == 0 || rn == 0 {
					continue
				}
				if lh < g.params.MinChildWeight || rh < g.params.MinChildWeight {
					continue
				}
				gain := g.score(lg, lh) + g.score(rg, rh) - parentScore
				if gain <= g.params.MinSplitGain {
					continue
				}
				if !best.valid || gain > best.gain {
					best = split{valid: true, gain: gain, feature: f, bin: t, missingLeft: ml}
				}
			}
		}
	}
	return best
}

func (g *grower) score(sumG, sumH float64) float64 {
	tg := thresholdL1(sumG, g.params.LambdaL1)
	return tg * tg / (sumH + g.params.LambdaL2)
}

func (g *grower) leafValue(sumG, sumH float64) float64 {
	return -thresholdL1(sumG, g.params.LambdaL1) / (sumH + g.params.LambdaL2) * g.params.LearningRate
}

func thresholdL1(s, l1 float64) float64 {
	switch {
	case s > l1:
		return s - l1
	case s < -l1:
		return s + l1
	default:
		return 0
	}
}
