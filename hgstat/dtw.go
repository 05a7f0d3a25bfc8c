package hgstat

import "math"

// DTW computes the dynamic time warping distance between
// two sequences, using the absolute difference as the
// local cost.
func DTW(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return math.Inf(1)
	}
	prev := make([]float64, len(b)+1)
	cur := make([]float64, len(b)+1)
	for j := 1; j <= len(b); j++ {
		prev[j] = math.Inf(1)
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = math.Inf(1)
		for j := 1; j <= len(b); j++ {
			cost := math.Abs(a[i-1] - b[j-1])
			cur[j] = cost + math.Min(prev[j], math.Min(cur[j-1], prev[j-1]))
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// FastDTW approximates DTW in linear time by refining a
// warp path found at half resolution.
//
// The radius is the number of cells around the projected
// path that are searched at each resolution.
// Larger radii are slower but more accurate.
func FastDTW(a, b []float64, radius int) float64 {
	if len(a) == 0 || len(b) == 0 {
		return math.Inf(1)
	}
	if radius < 0 {
		radius = 0
	}
	dist, _ := fastDTW(a, b, radius)
	return dist
}

type cell struct {
	i, j int
}

func fastDTW(a, b []float64, radius int) (float64, []cell) {
	minSize := radius + 2
	if len(a) < minSize || len(b) < minSize {
		return windowedDTW(a, b, nil)
	}
	_, path := fastDTW(reduceByHalf(a), reduceByHalf(b), radius)
	return windowedDTW(a, b, expandWindow(path, len(a), len(b), radius))
}

func reduceByHalf(x []float64) []float64 {
	res := make([]float64, 0, len(x)/2)
	for i := 0; i+1 < len(x); i += 2 {
		res = append(res, (x[i]+x[i+1])/2)
	}
	return res
}

func expandWindow(path []cell, lenA, lenB, radius int) []cell {
	around := map[cell]bool{}
	for _, c := range path {
		for di := -radius; di <= radius; di++ {
			for dj := -radius; dj <= radius; dj++ {
				around[cell{c.i + di, c.j + dj}] = true
			}
		}
	}
	scaled := map[cell]bool{}
	for c := range around {
		for _, d := range []cell{{0, 0}, {0, 1}, {1, 0}, {1, 1}} {
			scaled[cell{c.i*2 + d.i, c.j*2 + d.j}] = true
		}
	}

	var window []cell
	startJ := 0
	for i := 0; i < lenA; i++ {
		newStart := -1
		for j := startJ; j < lenB; j++ {
			if scaled[cell{i, j}] {
				window = append(window, cell{i, j})
				if newStart < 0 {
					newStart = j
				}
			} else if newStart >= 0 {
				break
			}
		}
		if newStart >= 0 {
			startJ = newStart
		}
	}
	return window
}

type dtwEntry struct {
	cost float64
	prev cell
}

// windowedDTW runs DTW over the cells of a window, or
// over every cell if the window is nil.
// It returns the distance and the warp path.
func windowedDTW(a, b []float64, window []cell) (float64, []cell) {
	if window == nil {
		for i := range a {
			for j := range b {
				window = append(window, cell{i, j})
			}
		}
	}
	table := map[cell]dtwEntry{{0, 0}: {}}
	lookup := func(c cell) float64 {
		if e, ok := table[c]; ok {
			return e.cost
		}
		return math.Inf(1)
	}
	for _, w := range window {
		i, j := w.i+1, w.j+1
		cost := math.Abs(a[i-1] - b[j-1])
		best := dtwEntry{cost: lookup(cell{i - 1, j}) + cost, prev: cell{i - 1, j}}
		for _, p := range []cell{{i, j - 1}, {i - 1, j - 1}} {
			if c := lookup(p) + cost; c < best.cost {
				best = dtwEntry{cost: c, prev: p}
			}
		}
		table[cell{i, j}] = best
	}

	end := cell{len(a), len(b)}
	var path []cell
	for c := end; c != (cell{0, 0}); {
		path = append(path, cell{c.i - 1, c.j - 1})
		e, ok := table[c]
		if !ok {
			return math.Inf(1), nil
		}
		c = e.prev
	}
	for i := 0; i < len(path)/2; i++ {
		path[i], path[len(path)-1-i] = path[len(path)-1-i], path[i]
	}
	return table[end].cost, path
}
