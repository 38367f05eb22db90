// Package ime hosts the input method engine: it wires the language model,
// the user phrase loader, the composing state machine, and the override
// store into a single Engine, and adapts that engine to platform input
// frameworks (IBus on Linux).
//
// The Engine is frontend-agnostic: every key event produces an Output
// describing what to commit, what to show in the preedit buffer, and
// which candidates to offer. Frontends translate their native key events
// into composer keys and render the Output with their own facilities.
package ime
