package decimate

import (
	"container/heap"
)

// edgeCollapse greedily collapses the cheapest edges until the index count
// reaches targetCount or the next cheapest collapse would exceed
// opts.TargetError (when TargetError > 0). Collapsing a vertex b into a can
// only ever reduce the index count, so the result never exceeds the
// original — satisfying the decimator's monotonicity invariant by
// construction.
func edgeCollapse(m *mesh, targetCount int, opts Options) {
	if targetCount <= 0 || len(m.idx) <= targetCount {
		return
	}

	// union-find style remap: collapsed[v] points to the surviving vertex.
	collapsed := make([]int32, len(m.verts))
	for i := range collapsed {
		collapsed[i] = int32(i)
	}
	var resolve func(v int32) int32
	resolve = func(v int32) int32 {
		for collapsed[v] != v {
			collapsed[v] = collapsed[collapsed[v]]
			v = collapsed[v]
		}
		return v
	}

	// Build the candidate edge set (unique undirected pairs) with a cost.
	seen := make(map[[2]int32]struct{})
	pq := &edgeHeap{}
	heap.Init(pq)

	addEdge := func(a, b int32) {
		if a == b {
			return
		}
		if a > b {
			a, b = b, a
		}
		key := [2]int32{a, b}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		heap.Push(pq, collapseEdge{a, b, collapseCost(m.verts[a], m.verts[b], opts)})
	}

	triCount := len(m.idx) / 3
	for i := 0; i < triCount; i++ {
		a, b, c := m.idx[i*3], m.idx[i*3+1], m.idx[i*3+2]
		addEdge(a, b)
		addEdge(b, c)
		addEdge(c, a)
	}

	currentCount := len(m.idx)

	for pq.Len() > 0 && currentCount > targetCount {
		e := heap.Pop(pq).(collapseEdge)
		if opts.TargetError > 0 && e.cost > opts.TargetError {
			break // further collapses would violate the error budget
		}
		a, b := resolve(e.a), resolve(e.b)
		if a == b {
			continue
		}
		// Collapse b into a.
		collapsed[b] = a

		removed := removeDegenerateTriangles(m, collapsed)
		currentCount -= removed
	}

	applyCollapseRemap(m, collapsed)
}

// collapseCost approximates the edge-collapse error metric: Euclidean
// distance between endpoints, plus a 0.5-weighted per-component penalty for
// normal and UV divergence when those attributes are preserved.
func collapseCost(a, b vertex, opts Options) float32 {
	cost := a.pos.Sub(b.pos).Length()
	if opts.PreserveNormals && a.hasNormal && b.hasNormal {
		d := a.normal.Sub(b.normal)
		cost += 0.5 * (absf(d.X) + absf(d.Y) + absf(d.Z))
	}
	if opts.PreserveUVs && a.hasUV && b.hasUV {
		cost += 0.5 * (absf(a.uv.X-b.uv.X) + absf(a.uv.Y-b.uv.Y))
	}
	return cost
}

func absf(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}

// removeDegenerateTriangles drops any triangle in which two or more of its
// indices resolve to the same vertex under the current collapse map and returns how many
// index slots were freed (3 per dropped triangle). Triangles are rewritten
// in place; the mesh's index slice shrinks.
func removeDegenerateTriangles(m *mesh, collapsed []int32) int {
	resolve := func(v int32) int32 {
		for collapsed[v] != v {
			v = collapsed[v]
		}
		return v
	}

	write := 0
	removedSlots := 0
	for read := 0; read+2 < len(m.idx); read += 3 {
		a := resolve(m.idx[read])
		b := resolve(m.idx[read+1])
		c := resolve(m.idx[read+2])
		if a == b || b == c || c == a {
			removedSlots += 3
			continue
		}
		m.idx[write] = m.idx[read]
		m.idx[write+1] = m.idx[read+1]
		m.idx[write+2] = m.idx[read+2]
		write += 3
	}
	m.idx = m.idx[:write]
	return removedSlots
}

// applyCollapseRemap rewrites every index through the final collapse map,
// collapsing chains to their root.
func applyCollapseRemap(m *mesh, collapsed []int32) {
	resolve := func(v int32) int32 {
		for collapsed[v] != v {
			v = collapsed[v]
		}
		return v
	}
	for i, v := range m.idx {
		m.idx[i] = resolve(v)
	}
}

// collapseEdge is a candidate edge collapse with its precomputed cost.
type collapseEdge struct {
	a, b int32
	cost float32
}

// edgeHeap is a container/heap of candidate collapse edges ordered by
// ascending cost.
type edgeHeap []collapseEdge

func (h edgeHeap) Len() int           { return len(h) }
func (h edgeHeap) Less(i, j int) bool { return h[i].cost < h[j].cost }
func (h edgeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *edgeHeap) Push(x interface{}) {
	*h = append(*h, x.(collapseEdge))
}
func (h *edgeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}
