package composer

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"tonegrid/internal/langmodel"
	"tonegrid/internal/lattice"
	"tonegrid/internal/override"
	"tonegrid/internal/reading"
)

const (
	// JoinSeparator joins syllables into multi-syllable reading keys.
	JoinSeparator = "-"

	punctuationListKey   = "_punctuation_list"
	punctuationKeyPrefix = "_punctuation_"

	minMarkingReadingCount = 2
	maxMarkingReadingCount = 6

	// composingBufferSize bounds the reading-slot count; slots beyond it
	// are evicted from the head as committed text.
	composingBufferSize = 10

	// noOverrideThreshold excludes rare phrases from the override model.
	// A selection whose raw score is at or below it is still pinned for
	// this session but never learned.
	noOverrideThreshold = -8.0

	epsilon = 0.000001

	// OverrideModelCapacity is the default learned-override capacity.
	OverrideModelCapacity = 500

	// OverrideModelHalfLife is the default decay half-life for learned
	// overrides.
	OverrideModelHalfLife = 5400 * time.Second
)

// UserPhraseAdder persists a phrase the user taught via marking. The
// reading is a join-separated syllable sequence.
type UserPhraseAdder interface {
	AddUserPhrase(reading, phrase string) error
}

// Result is the outcome of handling one input event. Consumed reports
// whether the event was swallowed; an unconsumed event should be passed
// through by the caller. States lists the presentation states to apply in
// order. ErrorSignaled asks the caller to signal the error (typically a
// beep) independently of consumption.
type Result struct {
	Consumed      bool
	States        []State
	ErrorSignaled bool
}

func consumed(states ...State) Result {
	return Result{Consumed: true, States: states}
}

func errorSignal(states ...State) Result {
	return Result{Consumed: true, States: states, ErrorSignaled: true}
}

// Handler is the composing state machine. It owns the syllable assembler,
// the lattice builder, the walked path, and the override model. A Handler
// is single-threaded: callers serialize all access.
type Handler struct {
	model     langmodel.Model
	phrases   UserPhraseAdder
	builder   *lattice.Builder
	walked    []lattice.NodeAnchor
	assembler *reading.Assembler
	overrides *override.Model

	selectPhraseAfterCursor  bool
	moveCursorAfterSelection bool

	now func() time.Time
	log *slog.Logger
}

// NewHandler makes a handler over the given language model. phrases may be
// nil when marking-to-learn persistence is unavailable.
func NewHandler(model langmodel.Model, phrases UserPhraseAdder, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		model:     model,
		phrases:   phrases,
		builder:   lattice.NewBuilder(model, JoinSeparator),
		assembler: reading.NewAssembler(reading.LayoutStandard),
		overrides: override.NewModel(OverrideModelCapacity, OverrideModelHalfLife),
		now:       time.Now,
		log:       logger,
	}
}

// SetKeyboardLayout switches the syllable layout and clears any pending
// keys.
func (h *Handler) SetKeyboardLayout(layout reading.Layout) {
	h.assembler.SetLayout(layout)
}

// KeyboardLayout returns the active syllable layout.
func (h *Handler) KeyboardLayout() reading.Layout { return h.assembler.Layout() }

// SetSelectPhraseAfterCursor controls whether candidate lookup anchors on
// the slot after the cursor instead of the one before it.
func (h *Handler) SetSelectPhraseAfterCursor(v bool) { h.selectPhraseAfterCursor = v }

// SetMoveCursorAfterSelection controls whether selecting a candidate moves
// the cursor past the selected phrase.
func (h *Handler) SetMoveCursorAfterSelection(v bool) { h.moveCursorAfterSelection = v }

// SetClock replaces the time source used for override observations.
func (h *Handler) SetClock(now func() time.Time) { h.now = now }

// ConfigureLearning replaces the override model with one of the given
// capacity and half-life, dropping anything already learned.
func (h *Handler) ConfigureLearning(capacity int, halfLife time.Duration) {
	h.overrides = override.NewModel(capacity, halfLife)
}

// OverrideSnapshot exports the learned overrides for persistence.
func (h *Handler) OverrideSnapshot() []override.Record { return h.overrides.Export() }

// RestoreOverrides seeds the override model from a persisted snapshot.
func (h *Handler) RestoreOverrides(records []override.Record) { h.overrides.Restore(records) }

// Reset drops all composing state.
func (h *Handler) Reset() {
	h.assembler.Clear()
	h.builder.Clear()
	h.walked = nil
}

// Handle processes one input event against the current state and returns
// the transition to apply.
func (h *Handler) Handle(key Key, state State) Result {
	char := key.Rune

	// Reading keys accumulate into the assembler. Space only counts as a
	// tone key when a syllable is already pending; otherwise it opens the
	// candidate panel below.
	if char != 0 && h.assembler.IsValidKey(char) && !(key.isSpace() && h.assembler.IsEmpty()) {
		h.assembler.CombineKey(char)
		if !h.assembler.HasToneMarker() {
			return consumed(h.buildInputting())
		}
	}

	// A tone marker, or space over a pending syllable, composes the
	// syllable into the lattice.
	if h.assembler.HasToneMarker() || (!h.assembler.IsEmpty() && key.isSpace()) {
		return h.composeSyllable()
	}

	if key.isSpace() && isNotEmpty(state) && h.assembler.IsEmpty() {
		ne := state.(NotEmpty)
		return consumed(h.buildChoosingCandidate(ne.ComposingBuffer(), ne.ComposingCursor()))
	}

	if key.Name == KeyEsc {
		return h.handleEsc(state)
	}

	if key.isCursorKey() {
		return h.handleCursorKeys(key, state)
	}

	if key.isDeleteKey() {
		return h.handleDeleteKeys(key, state)
	}

	if key.Name == KeyReturn {
		return h.handleReturn(state)
	}

	if char == '`' && h.model.HasUnigramsForKey(punctuationListKey) {
		if !h.assembler.IsEmpty() {
			return errorSignal()
		}
		h.builder.InsertReadingAtCursor(punctuationListKey)
		evicted := h.popEvictedTextAndWalk()
		inputting := h.buildInputting()
		inputting.EvictedText = evicted
		choosing := h.buildChoosingCandidate(inputting.Buffer, inputting.CursorIndex)
		return consumed(inputting, choosing)
	}

	if char != 0 {
		layoutKey := punctuationKeyPrefix + h.assembler.Layout().String() + "_" + string(char)
		if res, ok := h.handlePunctuation(layoutKey); ok {
			return res
		}
		if res, ok := h.handlePunctuation(punctuationKeyPrefix + string(char)); ok {
			return res
		}
	}

	// Unrecognized key with active composition: swallow it and signal, so
	// stray characters never leak into the application mid-composition.
	if isNotEmpty(state) {
		h.log.Debug("unhandled key with active composition", "rune", string(char), "name", int(key.Name))
		return errorSignal(h.buildInputting())
	}
	return Result{}
}

func (h *Handler) composeSyllable() Result {
	syllable := h.assembler.Syllable()
	h.assembler.Clear()

	if !h.model.HasUnigramsForKey(syllable) {
		h.log.Debug("syllable not in model", "syllable", syllable)
		return errorSignal(h.buildInputting())
	}

	h.builder.InsertReadingAtCursor(syllable)
	evicted := h.popEvictedTextAndWalk()

	if suggestion, ok := h.overrides.Suggest(h.walked, h.builder.Cursor(), h.now()); ok {
		cursorIndex := h.actualCandidateCursorIndex()
		anchors := h.builder.Grid().NodesCrossingOrEndingAt(cursorIndex)
		h.builder.Grid().OverrideNodeScore(cursorIndex, suggestion.Value, suggestion.Weight*highestAnchorScore(anchors))
		h.walk()
	}

	inputting := h.buildInputting()
	inputting.EvictedText = evicted
	return consumed(inputting)
}

// highestAnchorScore floors the best unigram score at zero so the override
// bias stays a small positive nudge against log-probability scores while
// never competing with a fixed selection.
func highestAnchorScore(anchors []lattice.NodeAnchor) float64 {
	highest := 0.0
	for _, anchor := range anchors {
		if anchor.Node == nil {
			continue
		}
		if s := anchor.Node.HighestUnigramScore(); s > highest {
			highest = s
		}
	}
	return highest + epsilon
}

func (h *Handler) handleEsc(state State) Result {
	if !isNotEmpty(state) {
		return Result{}
	}
	if !h.assembler.IsEmpty() {
		h.assembler.Clear()
		if h.builder.Length() == 0 {
			return consumed(&Empty{})
		}
	}
	return consumed(h.buildInputting())
}

func (h *Handler) handleCursorKeys(key Key, state State) Result {
	markBegin := h.builder.Cursor()
	switch s := state.(type) {
	case *Inputting:
	case *Marking:
		markBegin = s.MarkStartCursorIndex
	default:
		return Result{}
	}

	if !h.assembler.IsEmpty() {
		return errorSignal(h.buildInputting())
	}

	moved := false
	switch key.Name {
	case KeyLeft:
		if h.builder.Cursor() > 0 {
			h.builder.SetCursor(h.builder.Cursor() - 1)
			moved = true
		}
	case KeyRight:
		if h.builder.Cursor() < h.builder.Length() {
			h.builder.SetCursor(h.builder.Cursor() + 1)
			moved = true
		}
	case KeyHome:
		h.builder.SetCursor(0)
		moved = true
	case KeyEnd:
		h.builder.SetCursor(h.builder.Length())
		moved = true
	}

	res := Result{Consumed: true, ErrorSignaled: !moved}
	if key.Shift && h.builder.Cursor() != markBegin {
		res.States = []State{h.buildMarking(markBegin)}
	} else {
		res.States = []State{h.buildInputting()}
	}
	return res
}

func (h *Handler) handleDeleteKeys(key Key, state State) Result {
	if !isNotEmpty(state) {
		return Result{}
	}

	errorSignaled := false
	if h.assembler.IsEmpty() {
		deleted := false
		if key.Name == KeyBackspace {
			deleted = h.builder.DeleteReadingBeforeCursor()
		} else {
			deleted = h.builder.DeleteReadingAfterCursor()
		}
		if !deleted {
			return errorSignal(h.buildInputting())
		}
		h.walk()
	} else {
		if key.Name == KeyBackspace {
			h.assembler.Backspace()
		} else {
			// Delete has no meaning inside a pending syllable.
			errorSignaled = true
		}
	}

	if h.assembler.IsEmpty() && h.builder.Length() == 0 {
		return Result{Consumed: true, States: []State{&EmptyIgnoringPrevious{}}, ErrorSignaled: errorSignaled}
	}
	return Result{Consumed: true, States: []State{h.buildInputting()}, ErrorSignaled: errorSignaled}
}

func (h *Handler) handleReturn(state State) Result {
	if !isNotEmpty(state) {
		return Result{}
	}
	if !h.assembler.IsEmpty() {
		return errorSignal(h.buildInputting())
	}

	if marking, ok := state.(*Marking); ok {
		if !marking.Acceptable {
			return errorSignal(h.buildMarking(marking.MarkStartCursorIndex))
		}
		if h.phrases != nil {
			if err := h.phrases.AddUserPhrase(marking.Reading, marking.Marked); err != nil {
				h.log.Error("adding user phrase", "reading", marking.Reading, "error", err)
			}
		}
		return consumed(h.buildInputting())
	}

	inputting := h.buildInputting()
	h.Reset()
	return consumed(&Committing{Text: inputting.Buffer})
}

func (h *Handler) handlePunctuation(key string) (Result, bool) {
	if !h.model.HasUnigramsForKey(key) {
		return Result{}, false
	}
	if !h.assembler.IsEmpty() {
		return errorSignal(h.buildInputting()), true
	}
	h.builder.InsertReadingAtCursor(key)
	evicted := h.popEvictedTextAndWalk()
	inputting := h.buildInputting()
	inputting.EvictedText = evicted
	return consumed(inputting), true
}

// CandidateSelected pins the chosen candidate at the resolved cursor slot
// and returns the refreshed inputting state.
func (h *Handler) CandidateSelected(candidate string) *Inputting {
	h.pinNode(candidate)
	return h.buildInputting()
}

// CandidatePanelCancelled dismisses the panel without changing the lattice.
func (h *Handler) CandidatePanelCancelled() *Inputting {
	return h.buildInputting()
}

func (h *Handler) walk() {
	h.walked = h.builder.Grid().Walk()
}

// actualCandidateCursorIndex resolves the slot index candidate lookup and
// pinning operate on. The raw cursor sits between slots; the resolved
// index always names a slot boundary inside the buffer.
func (h *Handler) actualCandidateCursorIndex() int {
	cursor := h.builder.Cursor()
	if h.selectPhraseAfterCursor {
		if cursor < h.builder.Length() {
			cursor++
		}
		return cursor
	}
	if cursor == 0 && h.builder.Length() > 0 {
		cursor = 1
	}
	return cursor
}

// popEvictedTextAndWalk rewalks the lattice and, when the buffer exceeds
// its bound, evicts the first walked phrase as committed text.
func (h *Handler) popEvictedTextAndWalk() string {
	evicted := ""
	if h.builder.Grid().Width() > composingBufferSize {
		h.walk()
		if len(h.walked) > 0 && h.walked[0].Node != nil {
			anchor := h.walked[0]
			evicted = anchor.Node.CurrentValue()
			h.builder.RemoveHeadReadings(anchor.SpanningLength)
		}
	}
	h.walk()
	return evicted
}

func (h *Handler) pinNode(candidate string) {
	cursorIndex := h.actualCandidateCursorIndex()
	anchor, ok := h.builder.Grid().FixNodeSelectedCandidate(cursorIndex, candidate)
	if !ok {
		return
	}
	if anchor.Node.ScoreForCandidate(candidate) > noOverrideThreshold {
		h.overrides.Observe(h.walked, cursorIndex, candidate, h.now())
	}
	h.walk()

	if h.moveCursorAfterSelection {
		next := 0
		for _, a := range h.walked {
			if next >= cursorIndex {
				break
			}
			next += a.SpanningLength
		}
		if next <= h.builder.Length() {
			h.builder.SetCursor(next)
		}
	}
}

// composedString splits the walked path's text at the given slot cursor
// into a head and tail of byte-aligned strings. When the cursor falls
// inside a phrase whose value has fewer codepoints than its slot span, the
// split is proportional and a tooltip describes the ambiguity.
func (h *Handler) composedString(slotCursor int) (head, tail, tooltip string) {
	var composed strings.Builder
	runningCursor := 0
	byteCursor := 0

	for _, anchor := range h.walked {
		if anchor.Node == nil {
			continue
		}
		value := anchor.Node.CurrentValue()
		composed.WriteString(value)

		if runningCursor >= slotCursor {
			continue
		}
		span := anchor.SpanningLength
		if runningCursor+span <= slotCursor {
			byteCursor += len(value)
			runningCursor += span
			continue
		}

		distance := slotCursor - runningCursor
		runes := []rune(value)
		n := distance
		if n > len(runes) {
			n = len(runes)
		}
		byteCursor += len(string(runes[:n]))
		runningCursor += distance

		if utf8.RuneCountInString(value) < span {
			readings := h.builder.Readings()
			tooltip = fmt.Sprintf("Cursor is between syllables %s and %s",
				readings[slotCursor-1], readings[slotCursor])
		}
	}

	all := composed.String()
	return all[:byteCursor], all[byteCursor:], tooltip
}

func (h *Handler) buildInputting() *Inputting {
	head, tail, tooltip := h.composedString(h.builder.Cursor())
	pending := h.assembler.Syllable()
	return &Inputting{
		Buffer:      head + pending + tail,
		CursorIndex: len(head) + len(pending),
		Tooltip:     tooltip,
	}
}

func (h *Handler) buildChoosingCandidate(buffer string, cursorIndex int) *ChoosingCandidate {
	anchors := h.builder.Grid().NodesCrossingOrEndingAt(h.actualCandidateCursorIndex())

	// Longer phrases first; construction order breaks ties within a length.
	sort.SliceStable(anchors, func(i, j int) bool {
		return len(anchors[i].Node.Key()) > len(anchors[j].Node.Key())
	})

	var candidates []string
	for _, anchor := range anchors {
		for _, c := range anchor.Node.Candidates() {
			candidates = append(candidates, c.Value)
		}
	}
	return &ChoosingCandidate{Buffer: buffer, CursorIndex: cursorIndex, Candidates: candidates}
}

func (h *Handler) buildMarking(markBegin int) *Marking {
	cursorHead, cursorTail, _ := h.composedString(h.builder.Cursor())
	buffer := cursorHead + cursorTail
	cursorIndex := len(cursorHead)

	fromIndex, toIndex := markBegin, h.builder.Cursor()
	if fromIndex > toIndex {
		fromIndex, toIndex = toIndex, fromIndex
	}
	head, _, _ := h.composedString(fromIndex)
	endHead, tail, _ := h.composedString(toIndex)
	marked := endHead[len(head):]

	readings := h.builder.Readings()[fromIndex:toIndex]
	readingKey := strings.Join(readings, JoinSeparator)
	readingUI := strings.Join(readings, " ")

	acceptable := false
	var status string
	switch {
	case len(readings) < minMarkingReadingCount:
		status = fmt.Sprintf("%d syllables required", minMarkingReadingCount)
	case len(readings) > maxMarkingReadingCount:
		status = fmt.Sprintf("%d syllables maximum", maxMarkingReadingCount)
	case h.markedPhraseExists(readingKey, marked):
		status = "phrase already exists"
	default:
		status = "press Enter to add the phrase"
		acceptable = true
	}

	return &Marking{
		Buffer:               buffer,
		CursorIndex:          cursorIndex,
		Tooltip:              fmt.Sprintf("Marked: %s, syllables: %s, %s", marked, readingUI, status),
		MarkStartCursorIndex: markBegin,
		Head:                 head,
		Marked:               marked,
		Tail:                 tail,
		Reading:              readingKey,
		Acceptable:           acceptable,
	}
}

func (h *Handler) markedPhraseExists(readingKey, phrase string) bool {
	if !h.model.HasUnigramsForKey(readingKey) {
		return false
	}
	for _, u := range h.model.UnigramsForKey(readingKey) {
		if u.Value == phrase {
			return true
		}
	}
	return false
}
