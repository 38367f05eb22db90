package lattice

import (
	"strings"

	"tonegrid/internal/langmodel"
)

// MaximumSpanLength caps how many contiguous readings a single node may
// cover. Longer phrases are composed from shorter nodes by the decoder.
const MaximumSpanLength = 6

// Builder maintains the reading sequence, the cursor, and the grid, and
// keeps the grid's nodes consistent with the readings after every
// mutation. Nodes are populated from the language model keyed by the
// join-separated concatenation of the covered readings.
type Builder struct {
	model     langmodel.Model
	separator string

	readings []string
	cursor   int
	grid     Grid
}

// NewBuilder creates a builder over the given model. separator joins
// multi-reading keys ("-" in the default configuration).
func NewBuilder(model langmodel.Model, separator string) *Builder {
	return &Builder{model: model, separator: separator}
}

// Grid exposes the underlying grid for candidate queries and decoding.
func (b *Builder) Grid() *Grid { return &b.grid }

// Length returns the number of readings, which equals the grid width.
func (b *Builder) Length() int { return len(b.readings) }

// Cursor returns the slot-indexed cursor, in [0, Length()].
func (b *Builder) Cursor() int { return b.cursor }

// SetCursor moves the cursor, clamping to the valid range.
func (b *Builder) SetCursor(cursor int) {
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(b.readings) {
		cursor = len(b.readings)
	}
	b.cursor = cursor
}

// Readings returns the reading sequence. Callers must not mutate it.
func (b *Builder) Readings() []string { return b.readings }

// JoinSeparator returns the separator used for multi-reading keys.
func (b *Builder) JoinSeparator() string { return b.separator }

// Clear resets the builder to an empty sequence.
func (b *Builder) Clear() {
	b.readings = nil
	b.cursor = 0
	b.grid.Clear()
}

// InsertReadingAtCursor inserts a reading at the cursor, opens the slot in
// the grid, advances the cursor, and rebuilds the affected nodes.
func (b *Builder) InsertReadingAtCursor(reading string) {
	b.readings = append(b.readings, "")
	copy(b.readings[b.cursor+1:], b.readings[b.cursor:])
	b.readings[b.cursor] = reading

	b.grid.ExpandGridByOneAt(b.cursor)
	b.cursor++
	b.build()
}

// DeleteReadingBeforeCursor removes the reading before the cursor. It
// reports false when the cursor is at the head.
func (b *Builder) DeleteReadingBeforeCursor() bool {
	if b.cursor == 0 {
		return false
	}
	b.readings = append(b.readings[:b.cursor-1], b.readings[b.cursor:]...)
	b.grid.ShrinkGridByOneAt(b.cursor - 1)
	b.cursor--
	b.build()
	return true
}

// DeleteReadingAfterCursor removes the reading after the cursor. It
// reports false when the cursor is at the tail.
func (b *Builder) DeleteReadingAfterCursor() bool {
	if b.cursor >= len(b.readings) {
		return false
	}
	b.readings = append(b.readings[:b.cursor], b.readings[b.cursor+1:]...)
	b.grid.ShrinkGridByOneAt(b.cursor)
	b.build()
	return true
}

// RemoveHeadReadings deletes the first n readings and every node that
// depended on them. Used only for bounded-buffer eviction.
func (b *Builder) RemoveHeadReadings(n int) {
	if n > len(b.readings) {
		n = len(b.readings)
	}
	for i := 0; i < n; i++ {
		if b.cursor > 0 {
			b.cursor--
		}
		b.readings = b.readings[1:]
		b.grid.ShrinkGridByOneAt(0)
	}
	b.build()
}

// build creates any missing nodes for spans near the cursor. Spans whose
// key already matches an existing node are left alone, preserving fixed
// and overridden selections. Node insertion is gated on the model's raw
// availability, so every slot is covered by at least its single-reading
// node.
func (b *Builder) build() {
	if b.model == nil {
		return
	}

	begin := 0
	if b.cursor > MaximumSpanLength {
		begin = b.cursor - MaximumSpanLength
	}
	end := b.cursor + MaximumSpanLength
	if end > len(b.readings) {
		end = len(b.readings)
	}

	for p := begin; p < end; p++ {
		for q := 1; q <= MaximumSpanLength && p+q <= end; q++ {
			key := strings.Join(b.readings[p:p+q], b.separator)
			if b.grid.HasMatchedNode(p, q, key) {
				continue
			}
			if !b.model.HasUnigramsForKey(key) {
				continue
			}
			unigrams := b.model.UnigramsForKey(key)
			b.grid.InsertNode(NewNode(key, unigrams), p, q)
		}
	}
}
