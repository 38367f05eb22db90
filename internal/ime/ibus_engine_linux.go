//go:build linux

package ime

import (
	"errors"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"tonegrid/internal/composer"
	"tonegrid/internal/logging"
)

// IBus D-Bus constants
const (
	IBusFactoryInterface = "org.freedesktop.IBus.Factory"
	IBusEngineInterface  = "org.freedesktop.IBus.Engine"
	TonegridBusName      = "org.tonegrid.IBus"
	TonegridEngineName   = "tonegrid"
)

// IBus key event state masks
const (
	IBusShiftMask   uint32 = 1 << 0
	IBusControlMask uint32 = 1 << 2
	IBusMod1Mask    uint32 = 1 << 3 // Alt
	IBusReleaseMask uint32 = 1 << 30
)

// Common GDK key symbols
const (
	GDKBackSpace = 0xff08
	GDKReturn    = 0xff0d
	GDKEscape    = 0xff1b
	GDKHome      = 0xff50
	GDKLeft      = 0xff51
	GDKRight     = 0xff53
	GDKEnd       = 0xff57
	GDKDelete    = 0xffff
	GDKSpace     = 0x0020
)

// IBusEngineImpl bridges the composing engine to the IBus daemon over
// D-Bus: it translates key events, commits text, and drives the preedit
// and lookup table.
type IBusEngineImpl struct {
	conn       *dbus.Conn
	engine     *Engine
	log        *logging.Logger
	enginePath dbus.ObjectPath

	mu         sync.Mutex
	enabled    bool
	candidates []string
	panelOpen  bool
}

// NewIBusEngine creates an IBus engine over the composing engine.
func NewIBusEngine(engine *Engine, log *logging.Logger) *IBusEngineImpl {
	if log == nil {
		log = logging.Default()
	}
	return &IBusEngineImpl{engine: engine, log: log, enabled: true}
}

// Start connects to the session bus and registers the engine.
func (e *IBusEngineImpl) Start() error {
	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("connect to session bus: %w", err)
	}
	e.conn = conn

	reply, err := conn.RequestName(TonegridBusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return errors.New("bus name already taken")
	}

	factory := &IBusFactory{engine: e}
	if err := conn.Export(factory, "/org/freedesktop/IBus/Factory", IBusFactoryInterface); err != nil {
		return fmt.Errorf("export factory: %w", err)
	}

	e.enginePath = "/org/freedesktop/IBus/Engine/tonegrid"
	if err := conn.Export(e, e.enginePath, IBusEngineInterface); err != nil {
		return fmt.Errorf("export engine: %w", err)
	}

	e.log.Info("ibus engine started", "bus", TonegridBusName)
	return nil
}

// Stop shuts the engine down and closes the bus connection.
func (e *IBusEngineImpl) Stop() error {
	e.engine.Reset()
	if e.conn != nil {
		return e.conn.Close()
	}
	return nil
}

// ProcessKeyEvent handles key press/release events from IBus. Returns true
// if the key was consumed, false to let the application see it.
func (e *IBusEngineImpl) ProcessKeyEvent(keyval, keycode, state uint32) (bool, *dbus.Error) {
	if state&IBusReleaseMask != 0 {
		return false, nil
	}
	// Let the application handle its own shortcuts.
	if state&(IBusControlMask|IBusMod1Mask) != 0 {
		return false, nil
	}

	e.mu.Lock()
	enabled := e.enabled
	panelOpen := e.panelOpen
	candidates := e.candidates
	e.mu.Unlock()

	if !enabled {
		return false, nil
	}

	// Digits pick from an open candidate panel.
	if panelOpen && keyval >= '1' && keyval <= '9' {
		idx := int(keyval - '1')
		if idx < len(candidates) {
			out := e.engine.SelectCandidate(candidates[idx])
			e.applyOutput(out)
			return true, nil
		}
		return true, nil
	}

	key, ok := translateKey(keyval, state)
	if !ok {
		return false, nil
	}

	out := e.engine.ProcessKey(key)
	e.applyOutput(out)
	return out.Consumed, nil
}

// translateKey maps an X11 keysym to a composer key event.
func translateKey(keyval, state uint32) (composer.Key, bool) {
	shift := state&IBusShiftMask != 0

	switch keyval {
	case GDKEscape:
		return composer.NamedKey(composer.KeyEsc), true
	case GDKReturn:
		return composer.NamedKey(composer.KeyReturn), true
	case GDKBackSpace:
		return composer.NamedKey(composer.KeyBackspace), true
	case GDKDelete:
		return composer.NamedKey(composer.KeyDelete), true
	case GDKLeft:
		return composer.Key{Name: composer.KeyLeft, Shift: shift}, true
	case GDKRight:
		return composer.Key{Name: composer.KeyRight, Shift: shift}, true
	case GDKHome:
		return composer.Key{Name: composer.KeyHome, Shift: shift}, true
	case GDKEnd:
		return composer.Key{Name: composer.KeyEnd, Shift: shift}, true
	case GDKSpace:
		return composer.NamedKey(composer.KeySpace), true
	}

	if keyval >= 0x20 && keyval < 0x80 {
		return composer.PrintableKey(rune(keyval)), true
	}
	return composer.Key{}, false
}

// applyOutput pushes one engine output to the IBus panel.
func (e *IBusEngineImpl) applyOutput(out Output) {
	if out.Committed != "" {
		e.commitText(out.Committed)
	}
	e.updatePreedit(out.Preedit, out.CursorIndex)
	if out.Tooltip != "" {
		e.updateAuxiliary(out.Tooltip)
	} else {
		e.hideAuxiliary()
	}

	e.mu.Lock()
	if out.PanelOpen {
		e.candidates = out.Candidates
		e.panelOpen = true
	} else {
		e.candidates = nil
		e.panelOpen = false
	}
	panelOpen := e.panelOpen
	candidates := e.candidates
	e.mu.Unlock()

	if panelOpen {
		e.updateLookupTable(candidates)
	} else {
		e.hideLookupTable()
	}

	if out.ErrorSignaled {
		e.emit("Beep")
	}
}

func (e *IBusEngineImpl) commitText(text string) {
	e.emit("CommitText", dbus.MakeVariant(text))
}

func (e *IBusEngineImpl) updatePreedit(text string, cursor int) {
	if text == "" {
		e.emit("HidePreeditText")
		return
	}
	e.emit("UpdatePreeditText", dbus.MakeVariant(text), uint32(cursor), true)
}

func (e *IBusEngineImpl) updateAuxiliary(text string) {
	e.emit("UpdateAuxiliaryText", dbus.MakeVariant(text), true)
}

func (e *IBusEngineImpl) hideAuxiliary() {
	e.emit("HideAuxiliaryText")
}

func (e *IBusEngineImpl) updateLookupTable(candidates []string) {
	e.emit("UpdateLookupTable", dbus.MakeVariant(candidates), true)
}

func (e *IBusEngineImpl) hideLookupTable() {
	e.emit("HideLookupTable")
}

func (e *IBusEngineImpl) emit(signal string, values ...interface{}) {
	if e.conn == nil {
		return
	}
	if err := e.conn.Emit(e.enginePath, IBusEngineInterface+"."+signal, values...); err != nil {
		e.log.Warn("emitting signal", "signal", signal, "error", err)
	}
}

// FocusIn is called when the engine gains input focus.
func (e *IBusEngineImpl) FocusIn() *dbus.Error {
	e.log.Debug("focus in")
	return nil
}

// FocusOut drops any in-progress composition; the application keeps only
// committed text.
func (e *IBusEngineImpl) FocusOut() *dbus.Error {
	e.log.Debug("focus out")
	e.engine.Reset()
	e.applyOutput(Output{})
	return nil
}

// Enable is called when the engine is enabled.
func (e *IBusEngineImpl) Enable() *dbus.Error {
	e.mu.Lock()
	e.enabled = true
	e.mu.Unlock()
	return nil
}

// Disable drops composing state when the engine is switched away from.
func (e *IBusEngineImpl) Disable() *dbus.Error {
	e.mu.Lock()
	e.enabled = false
	e.mu.Unlock()

	e.engine.Reset()
	e.applyOutput(Output{})
	return nil
}

// Reset resets the engine state.
func (e *IBusEngineImpl) Reset() *dbus.Error {
	e.engine.Reset()
	e.applyOutput(Output{})
	return nil
}

// SetCapabilities informs about client capabilities.
func (e *IBusEngineImpl) SetCapabilities(caps uint32) *dbus.Error {
	return nil
}

// SetCursorLocation informs about cursor position.
func (e *IBusEngineImpl) SetCursorLocation(x, y, w, h int32) *dbus.Error {
	// Could be used for popup positioning
	return nil
}

// PageUp handles page up in the candidate list.
func (e *IBusEngineImpl) PageUp() *dbus.Error {
	return nil
}

// PageDown handles page down in the candidate list.
func (e *IBusEngineImpl) PageDown() *dbus.Error {
	return nil
}

// CandidateClicked handles mouse selection from the candidate list.
func (e *IBusEngineImpl) CandidateClicked(index, button, state uint32) *dbus.Error {
	e.mu.Lock()
	candidates := e.candidates
	e.mu.Unlock()

	if int(index) < len(candidates) {
		out := e.engine.SelectCandidate(candidates[index])
		e.applyOutput(out)
	}
	return nil
}

// IBusFactory creates engine instances on request from the daemon.
type IBusFactory struct {
	engine *IBusEngineImpl
}

// CreateEngine returns the object path for the named engine.
func (f *IBusFactory) CreateEngine(engineName string) (dbus.ObjectPath, *dbus.Error) {
	if engineName != TonegridEngineName {
		return "", dbus.MakeFailedError(fmt.Errorf("unknown engine: %s", engineName))
	}
	return f.engine.enginePath, nil
}
