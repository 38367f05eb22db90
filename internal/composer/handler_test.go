package composer

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tonegrid/internal/langmodel"
	"tonegrid/internal/reading"
)

func testModel() langmodel.StaticModel {
	return langmodel.StaticModel{
		"ㄇㄚˇ": {
			{Key: "ㄇㄚˇ", Value: "馬", Score: -3},
			{Key: "ㄇㄚˇ", Value: "瑪", Score: -4},
		},
		"ㄌㄨˋ": {
			{Key: "ㄌㄨˋ", Value: "路", Score: -3.5},
		},
		"ㄇㄚˇ-ㄌㄨˋ": {
			{Key: "ㄇㄚˇ-ㄌㄨˋ", Value: "馬路", Score: -2},
		},
		"ㄍㄠ": {
			{Key: "ㄍㄠ", Value: "高", Score: -3},
		},
		"ㄙㄨˋ": {
			{Key: "ㄙㄨˋ", Value: "速", Score: -3.2},
			{Key: "ㄙㄨˋ", Value: "遬", Score: -9},
		},
		"ㄍㄠ-ㄙㄨˋ": {
			{Key: "ㄍㄠ-ㄙㄨˋ", Value: "G", Score: -1},
		},
		"_punctuation_!": {
			{Key: "_punctuation_!", Value: "！", Score: -1},
		},
		"_punctuation_<": {
			{Key: "_punctuation_<", Value: "<", Score: -1},
		},
		"_punctuation_standard_<": {
			{Key: "_punctuation_standard_<", Value: "，", Score: -1},
		},
		"_punctuation_list": {
			{Key: "_punctuation_list", Value: "，", Score: -1},
			{Key: "_punctuation_list", Value: "。", Score: -1.1},
		},
	}
}

type phraseRecorder struct {
	reading string
	phrase  string
}

func (r *phraseRecorder) AddUserPhrase(reading, phrase string) error {
	r.reading = reading
	r.phrase = phrase
	return nil
}

func newTestHandler() *Handler {
	return NewHandler(testModel(), &phraseRecorder{}, nil)
}

// press feeds one key and returns the resulting state, falling back to the
// previous state when the event produced none.
func press(h *Handler, state State, key Key) State {
	res := h.Handle(key, state)
	if len(res.States) > 0 {
		return res.States[len(res.States)-1]
	}
	return state
}

func typeKeys(h *Handler, state State, keys string) State {
	for _, r := range keys {
		state = press(h, state, PrintableKey(r))
	}
	return state
}

func TestReadingKeysAccumulate(t *testing.T) {
	h := newTestHandler()
	state := typeKeys(h, &Empty{}, "a8")

	inputting, ok := state.(*Inputting)
	require.True(t, ok)
	assert.Equal(t, "ㄇㄚ", inputting.Buffer)
	assert.Equal(t, len("ㄇㄚ"), inputting.CursorIndex)
}

func TestToneKeyComposesSyllable(t *testing.T) {
	h := newTestHandler()
	state := typeKeys(h, &Empty{}, "a83")

	inputting, ok := state.(*Inputting)
	require.True(t, ok)
	assert.Equal(t, "馬", inputting.Buffer)
	assert.Equal(t, len("馬"), inputting.CursorIndex)
	assert.Empty(t, inputting.EvictedText)
}

func TestSpaceComposesWithUnmarkedTone(t *testing.T) {
	h := newTestHandler()
	state := typeKeys(h, &Empty{}, "el ")

	inputting, ok := state.(*Inputting)
	require.True(t, ok)
	assert.Equal(t, "高", inputting.Buffer)
}

func TestJointPhrasePreferredOverSingles(t *testing.T) {
	h := newTestHandler()
	state := typeKeys(h, &Empty{}, "a83xj4")

	inputting, ok := state.(*Inputting)
	require.True(t, ok)
	assert.Equal(t, "馬路", inputting.Buffer)
}

func TestUnknownSyllableSignalsError(t *testing.T) {
	h := newTestHandler()
	state := typeKeys(h, &Empty{}, "u")
	res := h.Handle(PrintableKey('4'), state)

	assert.True(t, res.Consumed)
	assert.True(t, res.ErrorSignaled)
	require.Len(t, res.States, 1)
	inputting, ok := res.States[0].(*Inputting)
	require.True(t, ok)
	assert.Empty(t, inputting.Buffer)
}

func TestSpaceOpensCandidatePanel(t *testing.T) {
	h := newTestHandler()
	state := typeKeys(h, &Empty{}, "a83")
	res := h.Handle(PrintableKey(' '), state)

	require.True(t, res.Consumed)
	require.Len(t, res.States, 1)
	choosing, ok := res.States[0].(*ChoosingCandidate)
	require.True(t, ok)
	assert.Equal(t, []string{"馬", "瑪"}, choosing.Candidates)
	assert.Equal(t, "馬", choosing.Buffer)
}

func TestCandidatesListLongerPhrasesFirst(t *testing.T) {
	h := newTestHandler()
	state := typeKeys(h, &Empty{}, "a83xj4")
	res := h.Handle(NamedKey(KeySpace), state)

	require.Len(t, res.States, 1)
	choosing, ok := res.States[0].(*ChoosingCandidate)
	require.True(t, ok)
	assert.Equal(t, []string{"馬路", "路"}, choosing.Candidates)
}

func TestCandidateSelectedPinsValue(t *testing.T) {
	h := newTestHandler()
	typeKeys(h, &Empty{}, "a83")
	inputting := h.CandidateSelected("瑪")

	assert.Equal(t, "瑪", inputting.Buffer)
}

func TestCandidatePanelCancelledKeepsBuffer(t *testing.T) {
	h := newTestHandler()
	typeKeys(h, &Empty{}, "a83")
	inputting := h.CandidatePanelCancelled()

	assert.Equal(t, "馬", inputting.Buffer)
}

func TestSelectionIsLearnedForSameContext(t *testing.T) {
	h := newTestHandler()
	typeKeys(h, &Empty{}, "a83")
	h.CandidateSelected("瑪")
	h.Reset()

	state := typeKeys(h, &Empty{}, "a83")
	inputting, ok := state.(*Inputting)
	require.True(t, ok)
	assert.Equal(t, "瑪", inputting.Buffer)
}

func TestRarePhraseSelectionIsNotLearned(t *testing.T) {
	h := newTestHandler()
	typeKeys(h, &Empty{}, "nj4")
	inputting := h.CandidateSelected("遬")
	assert.Equal(t, "遬", inputting.Buffer)
	h.Reset()

	state := typeKeys(h, &Empty{}, "nj4")
	inputting, ok := state.(*Inputting)
	require.True(t, ok)
	assert.Equal(t, "速", inputting.Buffer)
}

func TestLearnedOverrideDecaysButNeverVanishes(t *testing.T) {
	h := newTestHandler()
	base := time.Now()
	h.SetClock(func() time.Time { return base })
	typeKeys(h, &Empty{}, "a83")
	h.CandidateSelected("瑪")
	h.Reset()

	// Far past the half-life the suggestion weight is tiny, yet the bias
	// still beats the plain unigram ordering because scores are floored
	// at zero before the bias is applied.
	h.SetClock(func() time.Time { return base.Add(1000 * OverrideModelHalfLife) })
	state := typeKeys(h, &Empty{}, "a83")
	inputting, ok := state.(*Inputting)
	require.True(t, ok)
	assert.Equal(t, "瑪", inputting.Buffer)
}

func TestEvictionBeyondBufferBound(t *testing.T) {
	h := newTestHandler()
	state := State(&Empty{})
	for i := 0; i < 10; i++ {
		state = typeKeys(h, state, "el ")
	}
	res := h.Handle(PrintableKey('e'), state)
	state = res.States[0]
	state = typeKeys(h, state, "l")
	res = h.Handle(PrintableKey(' '), state)

	require.Len(t, res.States, 1)
	inputting, ok := res.States[0].(*Inputting)
	require.True(t, ok)
	assert.Equal(t, "高", inputting.EvictedText)
	assert.Equal(t, strings.Repeat("高", 10), inputting.Buffer)
}

func TestCursorMovesByByteOffsets(t *testing.T) {
	h := newTestHandler()
	state := typeKeys(h, &Empty{}, "a83xj4")
	state = press(h, state, NamedKey(KeyLeft))

	inputting, ok := state.(*Inputting)
	require.True(t, ok)
	assert.Equal(t, "馬路", inputting.Buffer)
	assert.Equal(t, len("馬"), inputting.CursorIndex)
	assert.Empty(t, inputting.Tooltip)

	state = press(h, state, NamedKey(KeyHome))
	inputting = state.(*Inputting)
	assert.Equal(t, 0, inputting.CursorIndex)

	state = press(h, state, NamedKey(KeyEnd))
	inputting = state.(*Inputting)
	assert.Equal(t, len("馬路"), inputting.CursorIndex)
}

func TestCursorAtEdgeSignalsError(t *testing.T) {
	h := newTestHandler()
	state := typeKeys(h, &Empty{}, "a83")
	res := h.Handle(NamedKey(KeyRight), state)

	assert.True(t, res.Consumed)
	assert.True(t, res.ErrorSignaled)
}

func TestTooltipWhenCursorSplitsPhrase(t *testing.T) {
	h := newTestHandler()
	state := typeKeys(h, &Empty{}, "el nj4")

	inputting, ok := state.(*Inputting)
	require.True(t, ok)
	require.Equal(t, "G", inputting.Buffer)

	state = press(h, state, NamedKey(KeyLeft))
	inputting = state.(*Inputting)
	assert.Equal(t, "Cursor is between syllables ㄍㄠ and ㄙㄨˋ", inputting.Tooltip)
	assert.Equal(t, len("G"), inputting.CursorIndex)
}

func TestBackspaceInsidePendingSyllable(t *testing.T) {
	h := newTestHandler()
	state := typeKeys(h, &Empty{}, "a8")
	state = press(h, state, NamedKey(KeyBackspace))

	inputting, ok := state.(*Inputting)
	require.True(t, ok)
	assert.Equal(t, "ㄇ", inputting.Buffer)

	state = press(h, state, NamedKey(KeyBackspace))
	_, ok = state.(*EmptyIgnoringPrevious)
	assert.True(t, ok)
}

func TestDeleteRemovesSlotAfterCursor(t *testing.T) {
	h := newTestHandler()
	state := typeKeys(h, &Empty{}, "a83xj4")
	state = press(h, state, NamedKey(KeyHome))
	state = press(h, state, NamedKey(KeyDelete))

	inputting, ok := state.(*Inputting)
	require.True(t, ok)
	assert.Equal(t, "路", inputting.Buffer)
}

func TestBackspaceAtStartSignalsError(t *testing.T) {
	h := newTestHandler()
	state := typeKeys(h, &Empty{}, "a83")
	state = press(h, state, NamedKey(KeyHome))
	res := h.Handle(NamedKey(KeyBackspace), state)

	assert.True(t, res.Consumed)
	assert.True(t, res.ErrorSignaled)
}

func TestEscClearsPendingSyllable(t *testing.T) {
	h := newTestHandler()
	state := typeKeys(h, &Empty{}, "a8")
	state = press(h, state, NamedKey(KeyEsc))
	_, ok := state.(*Empty)
	assert.True(t, ok)

	state = typeKeys(h, &Empty{}, "a83x")
	state = press(h, state, NamedKey(KeyEsc))
	inputting, ok := state.(*Inputting)
	require.True(t, ok)
	assert.Equal(t, "馬", inputting.Buffer)
}

func TestEnterCommitsAndResets(t *testing.T) {
	h := newTestHandler()
	state := typeKeys(h, &Empty{}, "a83xj4")
	res := h.Handle(NamedKey(KeyReturn), state)

	require.Len(t, res.States, 1)
	committing, ok := res.States[0].(*Committing)
	require.True(t, ok)
	assert.Equal(t, "馬路", committing.Text)

	state = typeKeys(h, &Empty{}, "el ")
	inputting, ok := state.(*Inputting)
	require.True(t, ok)
	assert.Equal(t, "高", inputting.Buffer)
}

func TestEnterWithPendingSyllableSignalsError(t *testing.T) {
	h := newTestHandler()
	state := typeKeys(h, &Empty{}, "a83x")
	res := h.Handle(NamedKey(KeyReturn), state)

	assert.True(t, res.Consumed)
	assert.True(t, res.ErrorSignaled)
}

func TestMarkingTooShort(t *testing.T) {
	h := newTestHandler()
	state := typeKeys(h, &Empty{}, "a83xj4")
	state = press(h, state, ShiftedKey(KeyLeft))

	marking, ok := state.(*Marking)
	require.True(t, ok)
	assert.Equal(t, "路", marking.Marked)
	assert.False(t, marking.Acceptable)
	assert.Contains(t, marking.Tooltip, "2 syllables required")
	assert.Equal(t, 2, marking.MarkStartCursorIndex)
}

func TestMarkingExistingPhraseRejected(t *testing.T) {
	h := newTestHandler()
	state := typeKeys(h, &Empty{}, "a83xj4")
	state = press(h, state, ShiftedKey(KeyHome))

	marking, ok := state.(*Marking)
	require.True(t, ok)
	assert.Equal(t, "馬路", marking.Marked)
	assert.False(t, marking.Acceptable)
	assert.Contains(t, marking.Tooltip, "phrase already exists")
}

func TestMarkingTooLong(t *testing.T) {
	h := newTestHandler()
	state := State(&Empty{})
	for i := 0; i < 7; i++ {
		state = typeKeys(h, state, "el ")
	}
	state = press(h, state, ShiftedKey(KeyHome))

	marking, ok := state.(*Marking)
	require.True(t, ok)
	assert.False(t, marking.Acceptable)
	assert.Contains(t, marking.Tooltip, "6 syllables maximum")
}

func TestMarkingAcceptedAddsUserPhrase(t *testing.T) {
	recorder := &phraseRecorder{}
	h := NewHandler(testModel(), recorder, nil)
	state := typeKeys(h, &Empty{}, "a83el ")
	state = press(h, state, ShiftedKey(KeyHome))

	marking, ok := state.(*Marking)
	require.True(t, ok)
	assert.Equal(t, "馬高", marking.Marked)
	assert.Equal(t, "ㄇㄚˇ-ㄍㄠ", marking.Reading)
	assert.True(t, marking.Acceptable)
	assert.Contains(t, marking.Tooltip, "press Enter to add the phrase")
	assert.Empty(t, marking.Head)
	assert.Empty(t, marking.Tail)

	res := h.Handle(NamedKey(KeyReturn), state)
	require.True(t, res.Consumed)
	assert.False(t, res.ErrorSignaled)
	assert.Equal(t, "ㄇㄚˇ-ㄍㄠ", recorder.reading)
	assert.Equal(t, "馬高", recorder.phrase)
	_, ok = res.States[0].(*Inputting)
	assert.True(t, ok)
}

func TestMarkingRejectedOnEnterSignalsError(t *testing.T) {
	h := newTestHandler()
	state := typeKeys(h, &Empty{}, "a83xj4")
	state = press(h, state, ShiftedKey(KeyLeft))
	res := h.Handle(NamedKey(KeyReturn), state)

	assert.True(t, res.Consumed)
	assert.True(t, res.ErrorSignaled)
	_, ok := res.States[0].(*Marking)
	assert.True(t, ok)
}

func TestGenericPunctuation(t *testing.T) {
	h := newTestHandler()
	state := typeKeys(h, &Empty{}, "!")

	inputting, ok := state.(*Inputting)
	require.True(t, ok)
	assert.Equal(t, "！", inputting.Buffer)
}

func TestLayoutPunctuationPreferredOverGeneric(t *testing.T) {
	h := newTestHandler()
	state := typeKeys(h, &Empty{}, "<")

	inputting, ok := state.(*Inputting)
	require.True(t, ok)
	assert.Equal(t, "，", inputting.Buffer)
}

func TestPunctuationListOnBacktick(t *testing.T) {
	h := newTestHandler()
	res := h.Handle(PrintableKey('`'), &Empty{})

	require.True(t, res.Consumed)
	require.Len(t, res.States, 2)
	_, ok := res.States[0].(*Inputting)
	assert.True(t, ok)
	choosing, ok := res.States[1].(*ChoosingCandidate)
	require.True(t, ok)
	assert.Equal(t, []string{"，", "。"}, choosing.Candidates)
}

func TestBacktickWithPendingSyllableSignalsError(t *testing.T) {
	h := newTestHandler()
	state := typeKeys(h, &Empty{}, "a8")
	res := h.Handle(PrintableKey('`'), state)

	assert.True(t, res.Consumed)
	assert.True(t, res.ErrorSignaled)
	assert.Empty(t, res.States)
}

func TestUnhandledKeyPassesThroughWhenEmpty(t *testing.T) {
	h := newTestHandler()
	res := h.Handle(PrintableKey('Z'), &Empty{})

	assert.False(t, res.Consumed)
	assert.Empty(t, res.States)
}

func TestUnhandledKeySwallowedMidComposition(t *testing.T) {
	h := newTestHandler()
	state := typeKeys(h, &Empty{}, "a83")
	res := h.Handle(PrintableKey('Z'), state)

	assert.True(t, res.Consumed)
	assert.True(t, res.ErrorSignaled)
	require.Len(t, res.States, 1)
	inputting, ok := res.States[0].(*Inputting)
	require.True(t, ok)
	assert.Equal(t, "馬", inputting.Buffer)
}

func TestSelectPhraseAfterCursorOption(t *testing.T) {
	h := newTestHandler()
	state := typeKeys(h, &Empty{}, "a83xj4")
	state = press(h, state, NamedKey(KeyLeft))

	res := h.Handle(NamedKey(KeySpace), state)
	choosing := res.States[0].(*ChoosingCandidate)
	assert.Contains(t, choosing.Candidates, "馬")
	assert.NotContains(t, choosing.Candidates, "路")

	h.SetSelectPhraseAfterCursor(true)
	res = h.Handle(NamedKey(KeySpace), res.States[0])
	choosing = res.States[0].(*ChoosingCandidate)
	assert.Contains(t, choosing.Candidates, "路")
}

func TestMoveCursorAfterSelectionOption(t *testing.T) {
	h := newTestHandler()
	h.SetMoveCursorAfterSelection(true)
	state := typeKeys(h, &Empty{}, "a83xj4")
	press(h, state, NamedKey(KeyHome))

	inputting := h.CandidateSelected("瑪")
	assert.Equal(t, "瑪路", inputting.Buffer)
	assert.Equal(t, len("瑪"), inputting.CursorIndex)
}

func TestHanyuPinyinLayout(t *testing.T) {
	model := langmodel.StaticModel{
		"ma3": {{Key: "ma3", Value: "馬", Score: -3}},
	}
	h := NewHandler(model, nil, nil)
	h.SetKeyboardLayout(reading.LayoutHanyuPinyin)

	state := typeKeys(h, &Empty{}, "ma3")
	inputting, ok := state.(*Inputting)
	require.True(t, ok)
	assert.Equal(t, "馬", inputting.Buffer)
}

func TestResetDropsEverything(t *testing.T) {
	h := newTestHandler()
	typeKeys(h, &Empty{}, "a83x")
	h.Reset()

	res := h.Handle(PrintableKey('Z'), &Empty{})
	assert.False(t, res.Consumed)
}
