package lattice

// Walk computes the maximum-total-score path covering the grid from slot 0
// to its full width and returns it in forward order. The spanning lengths
// of the returned anchors sum exactly to the grid width.
//
// The decode is a forward dynamic program: best[0] = 0 and
// best[i] = max over nodes N ending at i of best[i-N.span] + N.score, with
// backpointers for reconstruction. Ties are broken deterministically: a
// candidate replaces the incumbent only on a strict improvement, and nodes
// ending at a slot are visited in construction order, so among equal-score
// alternatives the node constructed first always wins. Walk must be re-run
// after any structural or score mutation.
func (g *Grid) Walk() []NodeAnchor {
	width := g.Width()
	if width == 0 {
		return nil
	}

	best := make([]float64, width+1)
	back := make([]NodeAnchor, width+1)
	reached := make([]bool, width+1)
	reached[0] = true

	for i := 1; i <= width; i++ {
		for _, anchor := range g.nodesEndingAt(i) {
			from := i - anchor.SpanningLength
			if !reached[from] {
				continue
			}
			total := best[from] + anchor.Node.Score()
			if !reached[i] || total > best[i] {
				best[i] = total
				anchor.AccumulatedScore = total
				back[i] = anchor
				reached[i] = true
			}
		}
	}

	if !reached[width] {
		return nil
	}

	var reversed []NodeAnchor
	for i := width; i > 0; {
		anchor := back[i]
		reversed = append(reversed, anchor)
		i -= anchor.SpanningLength
	}

	path := make([]NodeAnchor, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, reversed[i])
	}
	return path
}
