package lattice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tonegrid/internal/langmodel"
)

func testModel() langmodel.StaticModel {
	return langmodel.StaticModel{
		"a1": {{Key: "a1", Value: "A", Score: -1}},
		"b2": {{Key: "b2", Value: "B", Score: -1}, {Key: "b2", Value: "b", Score: -2}},
		"c3": {{Key: "c3", Value: "C", Score: -1}},
		"a1-b2": {
			{Key: "a1-b2", Value: "AB", Score: -1.5},
			{Key: "a1-b2", Value: "ab", Score: -3},
		},
	}
}

func pathValues(path []NodeAnchor) []string {
	out := make([]string, 0, len(path))
	for _, a := range path {
		out = append(out, a.Node.CurrentValue())
	}
	return out
}

func TestBuilderInsertAndWidth(t *testing.T) {
	b := NewBuilder(testModel(), "-")
	b.InsertReadingAtCursor("a1")
	b.InsertReadingAtCursor("b2")

	assert.Equal(t, 2, b.Length())
	assert.Equal(t, 2, b.Grid().Width())
	assert.Equal(t, 2, b.Cursor())
}

func TestWalkPrefersJointPhrase(t *testing.T) {
	b := NewBuilder(testModel(), "-")
	b.InsertReadingAtCursor("a1")
	b.InsertReadingAtCursor("b2")

	path := b.Grid().Walk()
	require.Len(t, path, 1)
	// AB scores -1.5, beating A+B at -2.
	assert.Equal(t, []string{"AB"}, pathValues(path))
}

func TestWalkSpansSumToWidth(t *testing.T) {
	b := NewBuilder(testModel(), "-")
	for _, r := range []string{"a1", "b2", "c3", "a1", "b2"} {
		b.InsertReadingAtCursor(r)
	}
	path := b.Grid().Walk()
	total := 0
	for _, a := range path {
		total += a.SpanningLength
	}
	assert.Equal(t, b.Grid().Width(), total)
}

func TestWalkDeterministic(t *testing.T) {
	b := NewBuilder(testModel(), "-")
	for _, r := range []string{"a1", "b2", "c3"} {
		b.InsertReadingAtCursor(r)
	}
	first := pathValues(b.Grid().Walk())
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, pathValues(b.Grid().Walk()))
	}
}

// With equal total scores the node constructed first must win. The
// two-slot node a1-b2 is built before the single-slot b2 node during the
// second insertion, so it is preferred when both paths total the same.
func TestWalkTieBreakPrefersFirstConstructed(t *testing.T) {
	model := langmodel.StaticModel{
		"a1": {{Key: "a1", Value: "A", Score: -1}},
		"b2": {{Key: "b2", Value: "B", Score: -1}},
		"a1-b2": {
			{Key: "a1-b2", Value: "AB", Score: -2}, // ties A+B exactly
		},
	}
	b := NewBuilder(model, "-")
	b.InsertReadingAtCursor("a1")
	b.InsertReadingAtCursor("b2")

	path := b.Grid().Walk()
	require.Len(t, path, 1)
	assert.Equal(t, "AB", path[0].Node.CurrentValue())
}

func TestDeleteReadingBeforeCursor(t *testing.T) {
	b := NewBuilder(testModel(), "-")
	b.InsertReadingAtCursor("a1")
	b.InsertReadingAtCursor("b2")

	require.True(t, b.DeleteReadingBeforeCursor())
	assert.Equal(t, 1, b.Length())
	assert.Equal(t, []string{"A"}, pathValues(b.Grid().Walk()))

	require.True(t, b.DeleteReadingBeforeCursor())
	assert.False(t, b.DeleteReadingBeforeCursor())
	assert.Zero(t, b.Length())
}

func TestDeleteReadingAfterCursor(t *testing.T) {
	b := NewBuilder(testModel(), "-")
	b.InsertReadingAtCursor("a1")
	b.InsertReadingAtCursor("b2")
	b.SetCursor(0)

	require.True(t, b.DeleteReadingAfterCursor())
	assert.Equal(t, []string{"b2"}, b.Readings())

	b.SetCursor(1)
	assert.False(t, b.DeleteReadingAfterCursor())
}

func TestRemoveHeadReadings(t *testing.T) {
	b := NewBuilder(testModel(), "-")
	for _, r := range []string{"a1", "b2", "c3"} {
		b.InsertReadingAtCursor(r)
	}
	b.RemoveHeadReadings(2)
	assert.Equal(t, 1, b.Length())
	assert.Equal(t, 1, b.Cursor())
	assert.Equal(t, []string{"C"}, pathValues(b.Grid().Walk()))
}

func TestNodesCrossingOrEndingAt(t *testing.T) {
	b := NewBuilder(testModel(), "-")
	b.InsertReadingAtCursor("a1")
	b.InsertReadingAtCursor("b2")

	keys := func(anchors []NodeAnchor) []string {
		out := make([]string, 0, len(anchors))
		for _, a := range anchors {
			out = append(out, a.Node.Key())
		}
		return out
	}

	// Slot boundary 1: the a1 node ends here, a1-b2 crosses.
	assert.ElementsMatch(t, []string{"a1", "a1-b2"}, keys(b.Grid().NodesCrossingOrEndingAt(1)))
	// Slot boundary 2: both the b2 node and a1-b2 end here.
	assert.ElementsMatch(t, []string{"b2", "a1-b2"}, keys(b.Grid().NodesCrossingOrEndingAt(2)))
}

func TestFixNodeSelectedCandidate(t *testing.T) {
	b := NewBuilder(testModel(), "-")
	b.InsertReadingAtCursor("a1")
	b.InsertReadingAtCursor("b2")

	anchor, ok := b.Grid().FixNodeSelectedCandidate(2, "b")
	require.True(t, ok)
	assert.Equal(t, "b2", anchor.Node.Key())
	assert.True(t, anchor.Node.IsCandidateFixed())
	assert.Equal(t, SelectedCandidateScore, anchor.Node.Score())
	// The raw score is still queryable for learning-floor checks.
	assert.Equal(t, -2.0, anchor.Node.ScoreForCandidate("b"))

	path := b.Grid().Walk()
	require.Len(t, path, 2)
	assert.Equal(t, []string{"A", "b"}, pathValues(path))
}

func TestFixUnknownCandidate(t *testing.T) {
	b := NewBuilder(testModel(), "-")
	b.InsertReadingAtCursor("a1")

	_, ok := b.Grid().FixNodeSelectedCandidate(1, "nope")
	assert.False(t, ok)
}

func TestOverrideNodeScoreBiasesWithoutFixing(t *testing.T) {
	b := NewBuilder(testModel(), "-")
	b.InsertReadingAtCursor("a1")
	b.InsertReadingAtCursor("b2")

	// Bias toward the A+B split; a tiny positive score beats AB's -1.5.
	b.Grid().OverrideNodeScore(2, "b", 0.000001)
	path := b.Grid().Walk()
	require.Len(t, path, 2)
	assert.Equal(t, []string{"A", "b"}, pathValues(path))
	assert.False(t, path[1].Node.IsCandidateFixed())
}

func TestNodeCandidateOrdering(t *testing.T) {
	n := NewNode("b2", testModel()["b2"])
	require.Len(t, n.Candidates(), 2)
	assert.Equal(t, "B", n.CurrentValue())
	assert.Equal(t, -1.0, n.HighestUnigramScore())

	require.True(t, n.SelectCandidate("b"))
	assert.Equal(t, "b", n.CurrentValue())

	n.ResetCandidate()
	assert.Equal(t, "B", n.CurrentValue())
	assert.Equal(t, -1.0, n.Score())
}
