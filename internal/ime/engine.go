package ime

import (
	"fmt"
	"sync"
	"time"

	"tonegrid/internal/composer"
	"tonegrid/internal/config"
	"tonegrid/internal/langmodel"
	"tonegrid/internal/loader"
	"tonegrid/internal/logging"
	"tonegrid/internal/reading"
	"tonegrid/internal/store"
)

// Output is what a frontend applies after one engine call: text to commit
// to the application, the preedit to display with its byte cursor, and the
// candidate panel contents when one should be shown.
type Output struct {
	Consumed      bool
	Committed     string
	Preedit       string
	CursorIndex   int
	Tooltip       string
	Candidates    []string
	PanelOpen     bool
	ErrorSignaled bool
}

// Engine assembles the model facade, the file loader, the composing
// handler, and the override store into one input-method engine. The
// composing handler is single-threaded; Engine serializes all access to it
// behind its mutex so frontends may call from any goroutine.
type Engine struct {
	mu      sync.Mutex
	cfg     *config.Config
	log     *logging.Logger
	facade  *langmodel.Facade
	loader  *loader.Loader
	handler *composer.Handler
	store   *store.Store
	state   composer.State
}

// NewEngine creates an engine from configuration. Call Start to load the
// model files before processing keys.
func NewEngine(cfg *config.Config, log *logging.Logger) (*Engine, error) {
	if log == nil {
		log = logging.Default()
	}

	layout, err := reading.ParseLayout(cfg.Input.Layout)
	if err != nil {
		return nil, err
	}

	facade := langmodel.NewFacade()
	facade.SetPhraseReplacementEnabled(cfg.Input.PhraseReplacementEnabled)

	ldr, err := loader.New(facade, cfg.Model.BasePath, cfg.Model.UserDataDir, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating loader: %w", err)
	}

	handler := composer.NewHandler(facade, ldr, log.Logger)
	handler.SetKeyboardLayout(layout)
	handler.SetSelectPhraseAfterCursor(cfg.Input.SelectPhraseAfterCursor)
	handler.SetMoveCursorAfterSelection(cfg.Input.MoveCursorAfterSelection)
	handler.ConfigureLearning(cfg.Learning.Capacity, time.Duration(cfg.Learning.HalfLifeSec)*time.Second)

	return &Engine{
		cfg:     cfg,
		log:     log,
		facade:  facade,
		loader:  ldr,
		handler: handler,
		state:   &composer.Empty{},
	}, nil
}

// Start loads the model files, restores the override snapshot, and starts
// the user-file watcher when configured.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.loader.LoadAll(); err != nil {
		return err
	}

	if e.cfg.Learning.StorePath != "" {
		s, err := store.Open(e.cfg.Learning.StorePath)
		if err != nil {
			return fmt.Errorf("opening override store: %w", err)
		}
		e.store = s

		records, err := s.LoadOverrides()
		if err != nil {
			e.log.Warn("loading override snapshot", "error", err)
		} else if len(records) > 0 {
			e.handler.RestoreOverrides(records)
			e.log.Info("override snapshot restored", "records", len(records))
		}
	}

	if e.cfg.Model.WatchUserFiles {
		if err := e.loader.Watch(); err != nil {
			e.log.Warn("watching user files", "error", err)
		}
	}

	return nil
}

// Close persists the override snapshot and releases resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error
	if e.store != nil {
		if err := e.store.SaveOverrides(e.handler.OverrideSnapshot()); err != nil {
			e.log.Error("saving override snapshot", "error", err)
			firstErr = err
		}
		if err := e.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		e.store = nil
	}
	if err := e.loader.Stop(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// ProcessKey feeds one key event to the composing session.
func (e *Engine) ProcessKey(key composer.Key) Output {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := e.handler.Handle(key, e.state)
	return e.apply(res)
}

// SelectCandidate pins the candidate chosen from the panel.
func (e *Engine) SelectCandidate(value string) Output {
	e.mu.Lock()
	defer e.mu.Unlock()

	inputting := e.handler.CandidateSelected(value)
	e.persistOverrides()
	return e.apply(composer.Result{Consumed: true, States: []composer.State{inputting}})
}

// CancelCandidates dismisses the candidate panel.
func (e *Engine) CancelCandidates() Output {
	e.mu.Lock()
	defer e.mu.Unlock()

	inputting := e.handler.CandidatePanelCancelled()
	return e.apply(composer.Result{Consumed: true, States: []composer.State{inputting}})
}

// Reset drops the composing session without committing.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.handler.Reset()
	e.state = &composer.Empty{}
}

// Composing reports whether a composition is in progress.
func (e *Engine) Composing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, ok := e.state.(composer.NotEmpty)
	return ok
}

// apply folds the transition's states into the engine state and the
// frontend output. Evicted and committed text accumulate in order.
func (e *Engine) apply(res composer.Result) Output {
	out := Output{Consumed: res.Consumed, ErrorSignaled: res.ErrorSignaled}

	for _, st := range res.States {
		switch s := st.(type) {
		case *composer.Committing:
			out.Committed += s.Text
			e.state = &composer.Empty{}
		case *composer.Inputting:
			out.Committed += s.EvictedText
			e.state = s
		case *composer.ChoosingCandidate:
			out.Candidates = append([]string(nil), s.Candidates...)
			out.PanelOpen = true
			e.state = s
		case *composer.Marking:
			e.state = s
		case *composer.Empty, *composer.EmptyIgnoringPrevious:
			e.state = &composer.Empty{}
		}
	}

	switch s := e.state.(type) {
	case *composer.Inputting:
		out.Preedit = s.Buffer
		out.CursorIndex = s.CursorIndex
		out.Tooltip = s.Tooltip
	case *composer.ChoosingCandidate:
		out.Preedit = s.Buffer
		out.CursorIndex = s.CursorIndex
	case *composer.Marking:
		out.Preedit = s.Buffer
		out.CursorIndex = s.CursorIndex
		out.Tooltip = s.Tooltip
	}

	return out
}

// persistOverrides snapshots learned overrides after a selection so a
// crash loses at most the current composition.
func (e *Engine) persistOverrides() {
	if e.store == nil {
		return
	}
	if err := e.store.SaveOverrides(e.handler.OverrideSnapshot()); err != nil {
		e.log.Warn("saving override snapshot", "error", err)
	}
}
