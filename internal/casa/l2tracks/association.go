package l2tracks

import "github.com/you112ef/Sky-CASA/internal/casa/l1detections"

// associate returns, for each detection of frame, the index into t.Tracks
// of the track it extends, or -1 when it starts a new track. Only tracks
// not yet extended in this frame are eligible, which also excludes tracks
// born in it.
func (t *Tracker) associate(frame l1detections.Frame) []int {
	switch t.Config.Association {
	case AssociationHungarian:
		return t.associateHungarian(frame)
	case AssociationNearest:
		return t.associateSequential(frame, t.nearestTrack)
	default:
		return t.associateSequential(frame, t.firstTrack)
	}
}

// associateSequential matches detections one at a time in input order; a
// track claimed by an earlier detection is no longer eligible.
func (t *Tracker) associateSequential(frame l1detections.Frame, pick func(Point, int, []bool) int) []int {
	assignments := make([]int, len(frame.Detections))
	claimed := make([]bool, len(t.Tracks))
	for di, det := range frame.Detections {
		idx := pick(Point{X: det.X, Y: det.Y}, frame.Index, claimed)
		assignments[di] = idx
		if idx >= 0 {
			claimed[idx] = true
		}
	}
	return assignments
}

func (t *Tracker) eligible(idx, frameIndex int, claimed []bool) bool {
	track := t.Tracks[idx]
	return track.State == TrackOpen && track.EndFrame != frameIndex && !claimed[idx]
}

// firstTrack returns the first-created eligible track inside the gate.
func (t *Tracker) firstTrack(p Point, frameIndex int, claimed []bool) int {
	for idx, track := range t.Tracks {
		if t.eligible(idx, frameIndex, claimed) && withinGate(track.Last(), p, t.Config.GatingDistancePx) {
			return idx
		}
	}
	return -1
}

// nearestTrack returns the closest eligible track inside the gate. Strict
// comparison keeps the lower ID on ties.
func (t *Tracker) nearestTrack(p Point, frameIndex int, claimed []bool) int {
	best := -1
	bestDist := 0.0
	for idx, track := range t.Tracks {
		if !t.eligible(idx, frameIndex, claimed) {
			continue
		}
		last := track.Last()
		if !withinGate(last, p, t.Config.GatingDistancePx) {
			continue
		}
		if d := last.Distance(p); best < 0 || d < bestDist {
			best, bestDist = idx, d
		}
	}
	return best
}

// associateHungarian minimises total Euclidean distance over gated
// detection-track pairs. The gated pairs form a bipartite graph whose
// connected components are independent, so each component is solved on
// its own; a frame costs O(D·T) for gating plus the cube of its largest
// component rather than of every open track.
func (t *Tracker) associateHungarian(frame l1detections.Frame) []int {
	nd := len(frame.Detections)
	assignments := make([]int, nd)
	for i := range assignments {
		assignments[i] = -1
	}
	if nd == 0 {
		return assignments
	}

	claimed := make([]bool, len(t.Tracks))
	var eligible []int
	for idx := range t.Tracks {
		if t.eligible(idx, frame.Index, claimed) {
			eligible = append(eligible, idx)
		}
	}

	// Node ids: detections 0..nd-1, gated tracks nd.. in first-seen order.
	var edges [][2]int
	var trackOf []int
	nodeOf := map[int]int{}
	points := make([]Point, nd)
	for di, det := range frame.Detections {
		p := Point{X: det.X, Y: det.Y}
		points[di] = p
		for _, idx := range eligible {
			if !withinGate(t.Tracks[idx].Last(), p, t.Config.GatingDistancePx) {
				continue
			}
			node, ok := nodeOf[idx]
			if !ok {
				node = nd + len(trackOf)
				nodeOf[idx] = node
				trackOf = append(trackOf, idx)
			}
			edges = append(edges, [2]int{di, node})
		}
	}
	if len(edges) == 0 {
		return assignments
	}

	uf := newUnionFind(nd + len(trackOf))
	for _, e := range edges {
		uf.union(e[0], e[1])
	}

	type component struct {
		dets   []int
		tracks []int
	}
	byRoot := map[int]*component{}
	var order []*component
	for _, e := range edges {
		root := uf.find(e[0])
		if byRoot[root] == nil {
			byRoot[root] = &component{}
			order = append(order, byRoot[root])
		}
	}
	for di := 0; di < nd; di++ {
		if c := byRoot[uf.find(di)]; c != nil {
			c.dets = append(c.dets, di)
		}
	}
	for _, idx := range eligible {
		if node, ok := nodeOf[idx]; ok {
			c := byRoot[uf.find(node)]
			c.tracks = append(c.tracks, idx)
		}
	}

	for _, c := range order {
		if len(c.dets) == 1 && len(c.tracks) == 1 {
			assignments[c.dets[0]] = c.tracks[0]
			continue
		}
		cost := make([][]float64, len(c.dets))
		for ri, di := range c.dets {
			row := make([]float64, len(c.tracks))
			for ci, idx := range c.tracks {
				last := t.Tracks[idx].Last()
				if withinGate(last, points[di], t.Config.GatingDistancePx) {
					row[ci] = last.Distance(points[di])
				} else {
					row[ci] = forbiddenCost
				}
			}
			cost[ri] = row
		}
		for ri, ci := range hungarianAssign(cost) {
			if ci >= 0 {
				assignments[c.dets[ri]] = c.tracks[ci]
			}
		}
	}
	return assignments
}

// unionFind groups the nodes of the gated association graph.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	if ra, rb := u.find(a), u.find(b); ra != rb {
		u.parent[rb] = ra
	}
}
