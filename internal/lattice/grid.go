package lattice

// NodeAnchor locates a node in the grid: the slot it starts at and the
// number of slots it spans. AccumulatedScore is filled in by the decoder.
type NodeAnchor struct {
	Node             *Node
	Location         int
	SpanningLength   int
	AccumulatedScore float64
}

// span holds the nodes starting at one slot, keyed by spanning length.
type span struct {
	nodes     map[int]*Node
	maxLength int
}

func (s *span) insert(length int, node *Node) {
	if s.nodes == nil {
		s.nodes = make(map[int]*Node)
	}
	s.nodes[length] = node
	if length > s.maxLength {
		s.maxLength = length
	}
}

func (s *span) nodeOfLength(length int) *Node {
	return s.nodes[length]
}

func (s *span) removeNodesLongerThan(length int) {
	for l := range s.nodes {
		if l > length {
			delete(s.nodes, l)
		}
	}
	s.maxLength = 0
	for l := range s.nodes {
		if l > s.maxLength {
			s.maxLength = l
		}
	}
}

// Grid is the slot-indexed node lattice. Width equals the number of
// reading slots; a node at location p with spanning length q covers slots
// [p, p+q).
type Grid struct {
	spans []span
	seq   int
}

// Width returns the number of reading slots.
func (g *Grid) Width() int { return len(g.spans) }

// Clear removes all slots and nodes.
func (g *Grid) Clear() {
	g.spans = nil
	g.seq = 0
}

// InsertNode places a node at (location, spanningLength), stamping it with
// the grid-wide construction sequence.
func (g *Grid) InsertNode(node *Node, location, spanningLength int) {
	if location >= len(g.spans) {
		return
	}
	node.seq = g.seq
	g.seq++
	g.spans[location].insert(spanningLength, node)
}

// HasMatchedNode reports whether a node with the given key already exists
// at (location, spanningLength).
func (g *Grid) HasMatchedNode(location, spanningLength int, key string) bool {
	if location >= len(g.spans) {
		return false
	}
	n := g.spans[location].nodeOfLength(spanningLength)
	return n != nil && n.key == key
}

// ExpandGridByOneAt opens a new slot at location. Nodes that previously
// spanned across the insertion point depend on a reading sequence that no
// longer exists and are dropped.
func (g *Grid) ExpandGridByOneAt(location int) {
	g.spans = append(g.spans, span{})
	copy(g.spans[location+1:], g.spans[location:])
	g.spans[location] = span{}

	if location == 0 || location == len(g.spans)-1 {
		return
	}
	for i := 0; i < location; i++ {
		g.spans[i].removeNodesLongerThan(location - i)
	}
}

// ShrinkGridByOneAt removes the slot at location along with every node
// spanning it.
func (g *Grid) ShrinkGridByOneAt(location int) {
	if location >= len(g.spans) {
		return
	}
	g.spans = append(g.spans[:location], g.spans[location+1:]...)
	for i := 0; i < location; i++ {
		g.spans[i].removeNodesLongerThan(location - i)
	}
}

// NodesCrossingOrEndingAt returns the anchors of all nodes that either end
// exactly at location or span across it, in construction order.
func (g *Grid) NodesCrossingOrEndingAt(location int) []NodeAnchor {
	var anchors []NodeAnchor
	for p := 0; p < len(g.spans) && p < location; p++ {
		s := &g.spans[p]
		for length := 1; length <= s.maxLength; length++ {
			if p+length < location {
				continue
			}
			if n := s.nodeOfLength(length); n != nil {
				anchors = append(anchors, NodeAnchor{Node: n, Location: p, SpanningLength: length})
			}
		}
	}
	sortAnchorsBySeq(anchors)
	return anchors
}

// nodesEndingAt returns the anchors of nodes whose span ends exactly at
// location, in construction order.
func (g *Grid) nodesEndingAt(location int) []NodeAnchor {
	var anchors []NodeAnchor
	for p := 0; p < len(g.spans) && p < location; p++ {
		s := &g.spans[p]
		if n := s.nodeOfLength(location - p); n != nil {
			anchors = append(anchors, NodeAnchor{Node: n, Location: p, SpanningLength: location - p})
		}
	}
	sortAnchorsBySeq(anchors)
	return anchors
}

func sortAnchorsBySeq(anchors []NodeAnchor) {
	for i := 1; i < len(anchors); i++ {
		for j := i; j > 0 && anchors[j].Node.seq < anchors[j-1].Node.seq; j-- {
			anchors[j], anchors[j-1] = anchors[j-1], anchors[j]
		}
	}
}

// FixNodeSelectedCandidate locates, among the nodes crossing or ending at
// location, the first one whose candidate set contains value, fixes its
// selection, and returns its anchor. Other nodes at the location have
// their selections reset so a single node dominates. The boolean reports
// whether any node matched.
func (g *Grid) FixNodeSelectedCandidate(location int, value string) (NodeAnchor, bool) {
	var selected NodeAnchor
	found := false
	for _, anchor := range g.NodesCrossingOrEndingAt(location) {
		if anchor.Node.indexOfCandidate(value) < 0 {
			continue
		}
		if !found {
			anchor.Node.SelectCandidate(value)
			selected = anchor
			found = true
			continue
		}
		anchor.Node.ResetCandidate()
	}
	return selected, found
}

// OverrideNodeScore nudges the node holding value at location to the given
// floating score without structurally fixing it. Competing nodes at the
// location are reset.
func (g *Grid) OverrideNodeScore(location int, value string, score float64) {
	for _, anchor := range g.NodesCrossingOrEndingAt(location) {
		if anchor.Node.indexOfCandidate(value) >= 0 {
			anchor.Node.SelectFloatingCandidate(value, score)
		} else {
			anchor.Node.ResetCandidate()
		}
	}
}
