package optimizer

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/Alias1177/Allocator/internal/dataset"
)

// hierarchicalRiskParity allocates by recursive bisection of the
// single-linkage leaf order, splitting each cluster's budget inversely to the
// risk of its two halves.
func hierarchicalRiskParity(ds *dataset.Dataset) []float64 {
	n := ds.NumAssets()
	order := singleLinkageOrder(correlationDistance(ds.Correlation()))
	cov := ds.Covariance()

	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1
	}

	queue := [][]int{order}
	for len(queue) > 0 {
		cluster := queue[0]
		queue = queue[1:]
		if len(cluster) < 2 {
			continue
		}

		mid := len(cluster) / 2
		left, right := cluster[:mid], cluster[mid:]
		leftRisk := clusterRisk(cov, left)
		rightRisk := clusterRisk(cov, right)

		alpha := 0.5
		if total := leftRisk + rightRisk; total > 0 {
			alpha = 1 - leftRisk/total
		}
		for _, i := range left {
			weights[i] *= alpha
		}
		for _, i := range right {
			weights[i] *= 1 - alpha
		}
		queue = append(queue, left, right)
	}
	return normalize(weights)
}

// clusterRisk is the volatility of an equally weighted portfolio of the members
func clusterRisk(cov mat.Symmetric, members []int) float64 {
	w := 1 / float64(len(members))
	var variance float64
	for _, i := range members {
		for _, j := range members {
			variance += w * w * cov.At(i, j)
		}
	}
	if variance <= 0 {
		return 0
	}
	return math.Sqrt(variance)
}

// correlationDistance maps correlations to d = sqrt((1-ρ)/2)
func correlationDistance(corr mat.Symmetric) [][]float64 {
	n := corr.SymmetricDim()
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		for j := range dist[i] {
			if i == j {
				continue
			}
			dist[i][j] = math.Sqrt(math.Max(0, 0.5*(1-corr.At(i, j))))
		}
	}
	return dist
}

type linkNode struct {
	left, right int // child ids, -1 for leaves
}

// singleLinkageOrder clusters with single linkage and returns the leaves in
// dendrogram order. Leaves have ids 0..n-1 and the k-th merge creates id n+k.
// Each merge puts the child with the smaller id on the left, and the order is
// a left-first walk from the root.
func singleLinkageOrder(dist [][]float64) []int {
	n := len(dist)
	if n == 0 {
		return nil
	}

	nodes := make([]linkNode, n, 2*n-1)
	for i := range nodes {
		nodes[i] = linkNode{left: -1, right: -1}
	}

	// active[k] is the node id of the k-th live cluster; d holds the
	// single-linkage distance between live clusters by position.
	active := make([]int, n)
	d := make([][]float64, n)
	for i := range active {
		active[i] = i
		d[i] = append([]float64(nil), dist[i]...)
	}

	for len(active) > 1 {
		bi, bj := 0, 1
		best := math.Inf(1)
		for i := 0; i < len(active); i++ {
			for j := i + 1; j < len(active); j++ {
				if d[i][j] < best {
					best = d[i][j]
					bi, bj = i, j
				}
			}
		}

		a, b := active[bi], active[bj]
		if a > b {
			a, b = b, a
		}
		id := len(nodes)
		nodes = append(nodes, linkNode{left: a, right: b})

		// merged cluster takes position bi; position bj is dropped
		for k := range active {
			if k == bi || k == bj {
				continue
			}
			m := math.Min(d[bi][k], d[bj][k])
			d[bi][k], d[k][bi] = m, m
		}
		active[bi] = id
		active = append(active[:bj], active[bj+1:]...)
		d = append(d[:bj], d[bj+1:]...)
		for k := range d {
			d[k] = append(d[k][:bj], d[k][bj+1:]...)
		}
	}

	order := make([]int, 0, n)
	stack := []int{active[0]}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id < n {
			order = append(order, id)
			continue
		}
		stack = append(stack, nodes[id].right, nodes[id].left)
	}
	return order
}
