package composer

// KeyName identifies a non-printable key.
type KeyName int

const (
	KeyNone KeyName = iota
	KeySpace
	KeyEsc
	KeyReturn
	KeyBackspace
	KeyDelete
	KeyLeft
	KeyRight
	KeyHome
	KeyEnd
)

// Key is one abstract input event. Printable keys carry a Rune; named keys
// carry a KeyName. Shift marks the extend-selection modifier on cursor
// movement.
type Key struct {
	Rune  rune
	Name  KeyName
	Shift bool
}

// PrintableKey makes a key event for a printable character.
func PrintableKey(r rune) Key { return Key{Rune: r} }

// NamedKey makes a key event for a control key.
func NamedKey(n KeyName) Key { return Key{Name: n} }

// ShiftedKey makes a control key event with the shift modifier held.
func ShiftedKey(n KeyName) Key { return Key{Name: n, Shift: true} }

func (k Key) isSpace() bool {
	return k.Rune == ' ' || k.Name == KeySpace
}

func (k Key) isCursorKey() bool {
	switch k.Name {
	case KeyLeft, KeyRight, KeyHome, KeyEnd:
		return true
	}
	return false
}

func (k Key) isDeleteKey() bool {
	return k.Name == KeyBackspace || k.Name == KeyDelete
}
