// Package reading accumulates raw key presses into a single phonetic
// syllable token. The assembler is a small lookup-table machine: each
// keyboard layout maps printable keys to syllable components, and a tone
// marker key signals that the syllable is complete.
package reading

import (
	"fmt"
	"strings"
)

// Layout identifies a phonetic keyboard layout. Layouts are compared by
// tag, never by pointer identity; each tag has a pure key-mapping function.
type Layout int

const (
	// LayoutStandard is the standard Bopomofo keyboard layout.
	LayoutStandard Layout = iota
	// LayoutHanyuPinyin maps letters directly and uses digits 1-5 as
	// tone markers.
	LayoutHanyuPinyin
)

// String returns the layout's canonical name.
func (l Layout) String() string {
	switch l {
	case LayoutHanyuPinyin:
		return "hanyupinyin"
	default:
		return "standard"
	}
}

// ParseLayout parses a layout name from configuration.
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(s) {
	case "", "standard":
		return LayoutStandard, nil
	case "hanyupinyin", "pinyin":
		return LayoutHanyuPinyin, nil
	default:
		return LayoutStandard, fmt.Errorf("unknown keyboard layout: %s", s)
	}
}

// componentClass is the slot a syllable component occupies. A Bopomofo
// syllable has at most one component per class.
type componentClass int

const (
	classInitial componentClass = iota
	classMedial
	classRime
	classTone
)

// component is one phonetic symbol produced by a key.
type component struct {
	class  componentClass
	symbol string // empty for the first tone, which is unmarked
}

// standardKeymap is the standard Bopomofo layout: one key per phonetic
// symbol, tones on space/6/3/4/7.
var standardKeymap = map[rune]component{
	'1': {classInitial, "ㄅ"}, 'q': {classInitial, "ㄆ"}, 'a': {classInitial, "ㄇ"}, 'z': {classInitial, "ㄈ"},
	'2': {classInitial, "ㄉ"}, 'w': {classInitial, "ㄊ"}, 's': {classInitial, "ㄋ"}, 'x': {classInitial, "ㄌ"},
	'e': {classInitial, "ㄍ"}, 'd': {classInitial, "ㄎ"}, 'c': {classInitial, "ㄏ"},
	'r': {classInitial, "ㄐ"}, 'f': {classInitial, "ㄑ"}, 'v': {classInitial, "ㄒ"},
	'5': {classInitial, "ㄓ"}, 't': {classInitial, "ㄔ"}, 'g': {classInitial, "ㄕ"}, 'b': {classInitial, "ㄖ"},
	'y': {classInitial, "ㄗ"}, 'h': {classInitial, "ㄘ"}, 'n': {classInitial, "ㄙ"},
	'u': {classMedial, "ㄧ"}, 'j': {classMedial, "ㄨ"}, 'm': {classMedial, "ㄩ"},
	'8': {classRime, "ㄚ"}, 'i': {classRime, "ㄛ"}, 'k': {classRime, "ㄜ"}, ',': {classRime, "ㄝ"},
	'9': {classRime, "ㄞ"}, 'o': {classRime, "ㄟ"}, 'l': {classRime, "ㄠ"}, '.': {classRime, "ㄡ"},
	'0': {classRime, "ㄢ"}, 'p': {classRime, "ㄣ"}, ';': {classRime, "ㄤ"}, '/': {classRime, "ㄥ"},
	'-': {classRime, "ㄦ"},
	' ': {classTone, ""}, '6': {classTone, "ˊ"}, '3': {classTone, "ˇ"}, '4': {classTone, "ˋ"}, '7': {classTone, "˙"},
}

// mapKey returns the component a key produces under the given layout.
func mapKey(layout Layout, key rune) (component, bool) {
	switch layout {
	case LayoutHanyuPinyin:
		if key >= 'a' && key <= 'z' {
			return component{classRime, string(key)}, true
		}
		if key >= '1' && key <= '5' {
			return component{classTone, string(key)}, true
		}
		return component{}, false
	default:
		c, ok := standardKeymap[key]
		return c, ok
	}
}

// Assembler builds one syllable from successive key presses. It keeps the
// raw key sequence so Backspace can undo exactly one key.
type Assembler struct {
	layout Layout
	keys   []rune
}

// NewAssembler creates an assembler for the given layout.
func NewAssembler(layout Layout) *Assembler {
	return &Assembler{layout: layout}
}

// Layout returns the active layout tag.
func (a *Assembler) Layout() Layout { return a.layout }

// SetLayout switches layouts and clears any partial syllable.
func (a *Assembler) SetLayout(layout Layout) {
	a.layout = layout
	a.keys = a.keys[:0]
}

// IsValidKey reports whether the key maps to a syllable component under
// the active layout.
func (a *Assembler) IsValidKey(key rune) bool {
	_, ok := mapKey(a.layout, key)
	return ok
}

// CombineKey adds one key to the syllable being assembled. Adding a key
// whose component class is already occupied replaces that component.
func (a *Assembler) CombineKey(key rune) {
	if !a.IsValidKey(key) {
		return
	}
	a.keys = append(a.keys, key)
}

// Backspace removes the most recently combined key.
func (a *Assembler) Backspace() {
	if n := len(a.keys); n > 0 {
		a.keys = a.keys[:n-1]
	}
}

// Clear discards the partial syllable.
func (a *Assembler) Clear() { a.keys = a.keys[:0] }

// IsEmpty reports whether no keys have been combined.
func (a *Assembler) IsEmpty() bool { return len(a.keys) == 0 }

// HasToneMarker reports whether a tone key has been combined, which
// completes the syllable.
func (a *Assembler) HasToneMarker() bool {
	for _, k := range a.keys {
		if c, ok := mapKey(a.layout, k); ok && c.class == classTone {
			return true
		}
	}
	return false
}

// Syllable returns the composed syllable string. For the standard layout
// components are emitted in initial, medial, rime, tone order with at most
// one component per class (later keys win); the first tone is unmarked.
// For pinyin the letters are emitted in typed order followed by the tone
// digit.
func (a *Assembler) Syllable() string {
	if a.layout == LayoutHanyuPinyin {
		var b strings.Builder
		var tone string
		for _, k := range a.keys {
			c, ok := mapKey(a.layout, k)
			if !ok {
				continue
			}
			if c.class == classTone {
				tone = c.symbol
				continue
			}
			b.WriteString(c.symbol)
		}
		return b.String() + tone
	}

	var slots [4]string
	for _, k := range a.keys {
		c, ok := mapKey(a.layout, k)
		if !ok {
			continue
		}
		slots[c.class] = c.symbol
	}
	return slots[classInitial] + slots[classMedial] + slots[classRime] + slots[classTone]
}
