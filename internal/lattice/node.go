// Package lattice holds the reading grid, its candidate nodes, and the
// maximum-score path decoder.
//
// The grid is an ordered sequence of reading slots. Every span of 1..k
// contiguous slots may host one Node carrying scored candidate phrases for
// the concatenated readings of that span. The decoder selects the
// node sequence covering the whole grid with the maximum total score.
package lattice

import (
	"sort"

	"tonegrid/internal/langmodel"
)

// SelectedCandidateScore is the dominant score given to a candidate fixed
// by explicit user selection. It exceeds any log-likelihood score the
// language model produces, so the decoder always keeps a fixed node.
const SelectedCandidateScore = 99.0

// Candidate is one (key, value) pair a node can select.
type Candidate struct {
	Key   string
	Value string
}

// Node is a candidate phrase spanning one or more reading slots. Its
// candidates are ordered by descending unigram score; the selected
// candidate starts as the highest-scoring one.
type Node struct {
	key        string
	unigrams   []langmodel.Unigram
	candidates []Candidate
	scores     map[string]float64

	selected int
	fixed    bool
	score    float64

	// seq is the grid-wide construction order, used for deterministic
	// tie-breaking in the decoder.
	seq int
}

// NewNode creates a node for key from its unigram list. The list is
// reordered by descending score (stable, so equal scores keep model
// order).
func NewNode(key string, unigrams []langmodel.Unigram) *Node {
	sorted := make([]langmodel.Unigram, len(unigrams))
	copy(sorted, unigrams)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	n := &Node{
		key:        key,
		unigrams:   sorted,
		candidates: make([]Candidate, 0, len(sorted)),
		scores:     make(map[string]float64, len(sorted)),
	}
	for _, u := range sorted {
		n.candidates = append(n.candidates, Candidate{Key: u.Key, Value: u.Value})
		if _, ok := n.scores[u.Value]; !ok {
			n.scores[u.Value] = u.Score
		}
	}
	if len(sorted) > 0 {
		n.score = sorted[0].Score
	}
	return n
}

// Key returns the reading key the node was built for.
func (n *Node) Key() string { return n.key }

// Candidates returns the ordered candidate list.
func (n *Node) Candidates() []Candidate { return n.candidates }

// Score returns the node's current effective score as seen by the decoder.
func (n *Node) Score() float64 { return n.score }

// IsCandidateFixed reports whether the selection was forced by pinning.
func (n *Node) IsCandidateFixed() bool { return n.fixed }

// CurrentValue returns the selected candidate's value, or "" for a node
// with no candidates.
func (n *Node) CurrentValue() string {
	if n.selected >= len(n.candidates) {
		return ""
	}
	return n.candidates[n.selected].Value
}

// HighestUnigramScore returns the best raw unigram score, 0 if empty.
func (n *Node) HighestUnigramScore() float64 {
	if len(n.unigrams) == 0 {
		return 0
	}
	return n.unigrams[0].Score
}

// ScoreForCandidate returns the raw unigram score for a candidate value,
// 0 if the node has no such candidate.
func (n *Node) ScoreForCandidate(value string) float64 {
	return n.scores[value]
}

// indexOfCandidate returns the position of value, or -1.
func (n *Node) indexOfCandidate(value string) int {
	for i, c := range n.candidates {
		if c.Value == value {
			return i
		}
	}
	return -1
}

// SelectCandidate fixes the selection on value with the dominant score.
// It reports whether the node had the candidate.
func (n *Node) SelectCandidate(value string) bool {
	i := n.indexOfCandidate(value)
	if i < 0 {
		return false
	}
	n.selected = i
	n.fixed = true
	n.score = SelectedCandidateScore
	return true
}

// SelectFloatingCandidate moves the selection to value with an explicit
// score, without marking the node fixed. Used for override-model bias.
func (n *Node) SelectFloatingCandidate(value string, score float64) bool {
	i := n.indexOfCandidate(value)
	if i < 0 {
		return false
	}
	n.selected = i
	n.fixed = false
	n.score = score
	return true
}

// ResetCandidate restores the highest-scoring selection.
func (n *Node) ResetCandidate() {
	n.selected = 0
	n.fixed = false
	n.score = n.HighestUnigramScore()
}
