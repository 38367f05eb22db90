// Package composer implements the composing state machine that turns
// abstract input events into lattice mutations, decodes, and presentation
// states. It owns the cursor, the bounded-buffer eviction, and the
// marking-to-learn workflow.
package composer

// State is the closed set of presentation states the composer emits.
// Exactly one state is current per session; a state is immutable once
// emitted and replaced wholesale by the next transition.
type State interface {
	isState()
}

// Empty is the resting state with nothing composed.
type Empty struct{}

// EmptyIgnoringPrevious is emitted when deletion empties the session; the
// caller should clear any residual composition instead of re-displaying
// the previous one.
type EmptyIgnoringPrevious struct{}

// Committing carries finished text for the caller to commit.
type Committing struct {
	Text string
}

// Inputting is the ordinary composing state: the visible buffer, the
// byte-offset cursor within it, an optional tooltip, and any text evicted
// from the head of the bounded buffer that the caller must flush.
type Inputting struct {
	Buffer      string
	CursorIndex int
	Tooltip     string
	EvictedText string
}

// ChoosingCandidate presents the candidate list for the phrase at the
// resolved cursor slot.
type ChoosingCandidate struct {
	Buffer      string
	CursorIndex int
	Candidates  []string
}

// Marking is a user-driven slot range used to teach a new phrase. Head,
// Marked, and Tail split the buffer around the marked fragment; Reading is
// the join-separated reading sequence the phrase would be keyed by.
type Marking struct {
	Buffer      string
	CursorIndex int
	Tooltip     string

	MarkStartCursorIndex int
	Head                 string
	Marked               string
	Tail                 string
	Reading              string
	Acceptable           bool
}

func (*Empty) isState()                 {}
func (*EmptyIgnoringPrevious) isState() {}
func (*Committing) isState()            {}
func (*Inputting) isState()             {}
func (*ChoosingCandidate) isState()     {}
func (*Marking) isState()               {}

// NotEmpty is implemented by states that carry a composing buffer.
type NotEmpty interface {
	State
	ComposingBuffer() string
	ComposingCursor() int
}

// ComposingBuffer returns the visible buffer.
func (s *Inputting) ComposingBuffer() string { return s.Buffer }

// ComposingCursor returns the byte-offset cursor.
func (s *Inputting) ComposingCursor() int { return s.CursorIndex }

// ComposingBuffer returns the visible buffer.
func (s *ChoosingCandidate) ComposingBuffer() string { return s.Buffer }

// ComposingCursor returns the byte-offset cursor.
func (s *ChoosingCandidate) ComposingCursor() int { return s.CursorIndex }

// ComposingBuffer returns the visible buffer.
func (s *Marking) ComposingBuffer() string { return s.Buffer }

// ComposingCursor returns the byte-offset cursor.
func (s *Marking) ComposingCursor() int { return s.CursorIndex }

func isNotEmpty(s State) bool {
	_, ok := s.(NotEmpty)
	return ok
}
