package langmodel

import (
	"fmt"
	"os"
	"sync"
)

// Facade combines the base statistical model with the user overlays and
// value rewriting stages. It is the primary model the composer and lattice
// builder talk to.
//
// All Load methods atomically replace the corresponding in-memory table; a
// failed load leaves the previous table in place and is observable only
// through IsLoaded-style queries. The mutex exists solely because reloads
// may arrive from a file watcher goroutine; the composing core itself is
// single-threaded.
type Facade struct {
	mu sync.RWMutex

	base        map[string][]Unigram
	userPhrases map[string][]Unigram
	excluded    map[string][]Unigram
	replacement map[string]string

	replacementEnabled bool
	converterEnabled   bool
	converter          func(string) string
}

// NewFacade creates an empty facade. Every key answers "no unigrams" until
// a model is loaded.
func NewFacade() *Facade {
	return &Facade{}
}

// LoadLanguageModel loads the base dictionary at path and swaps it in.
func (f *Facade) LoadLanguageModel(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open language model: %w", err)
	}
	defer file.Close()

	table, err := parseBaseModel(file)
	if err != nil {
		return fmt.Errorf("parse language model: %w", err)
	}

	f.mu.Lock()
	f.base = table
	f.mu.Unlock()
	return nil
}

// IsLoaded reports whether a base model has been loaded.
func (f *Facade) IsLoaded() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.base != nil
}

// LoadUserPhrases loads the user phrase and excluded phrase files. Either
// path may be empty, which clears the corresponding overlay.
func (f *Facade) LoadUserPhrases(userPath, excludedPath string) error {
	user, err := loadPhraseFile(userPath)
	if err != nil {
		return fmt.Errorf("load user phrases: %w", err)
	}
	excluded, err := loadPhraseFile(excludedPath)
	if err != nil {
		return fmt.Errorf("load excluded phrases: %w", err)
	}

	f.mu.Lock()
	f.userPhrases = user
	f.excluded = excluded
	f.mu.Unlock()
	return nil
}

func loadPhraseFile(path string) (map[string][]Unigram, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return parsePhraseTable(file)
}

// LoadPhraseReplacementMap loads the phrase replacement table at path.
func (f *Facade) LoadPhraseReplacementMap(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open replacement map: %w", err)
	}
	defer file.Close()

	table, err := parseReplacementMap(file)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.replacement = table
	f.mu.Unlock()
	return nil
}

// SetPhraseReplacementEnabled toggles the replacement rewrite stage.
func (f *Facade) SetPhraseReplacementEnabled(enabled bool) {
	f.mu.Lock()
	f.replacementEnabled = enabled
	f.mu.Unlock()
}

// PhraseReplacementEnabled reports whether replacement is enabled.
func (f *Facade) PhraseReplacementEnabled() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.replacementEnabled
}

// SetExternalConverter installs a pure string conversion applied after
// phrase replacement.
func (f *Facade) SetExternalConverter(converter func(string) string) {
	f.mu.Lock()
	f.converter = converter
	f.mu.Unlock()
}

// SetExternalConverterEnabled toggles the external conversion stage.
func (f *Facade) SetExternalConverterEnabled(enabled bool) {
	f.mu.Lock()
	f.converterEnabled = enabled
	f.mu.Unlock()
}

// ExternalConverterEnabled reports whether external conversion is enabled.
func (f *Facade) ExternalConverterEnabled() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.converterEnabled
}

// UnigramsForKey returns the filtered, converted, de-duplicated unigram
// list for key, user-contributed entries first.
func (f *Facade) UnigramsForKey(key string) []Unigram {
	inserted := make(map[string]struct{})
	return f.AccumulatedUnigramsForKey(key, inserted)
}

// AccumulatedUnigramsForKey is UnigramsForKey with a caller-held set of
// already-produced values, for multi-key queries that must de-duplicate
// across keys. The set is updated as a side effect.
func (f *Facade) AccumulatedUnigramsForKey(key string, inserted map[string]struct{}) []Unigram {
	f.mu.RLock()
	defer f.mu.RUnlock()

	excluded := make(map[string]struct{})
	for _, u := range f.excluded[key] {
		excluded[u.Value] = struct{}{}
	}

	var out []Unigram
	out = f.filterAndTransform(f.userPhrases[key], excluded, inserted, out)
	out = f.filterAndTransform(f.base[key], excluded, inserted, out)
	return out
}

// HasUnigramsForKey reports raw availability: the excluded overlay,
// replacement table, converter, and de-duplication are not consulted, so a
// key may report true yet produce an empty filtered list.
func (f *Facade) HasUnigramsForKey(key string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.userPhrases[key]) > 0 {
		return true
	}
	return len(f.base[key]) > 0
}

// filterAndTransform runs pipeline stages 2-5 over one raw unigram list,
// appending survivors to out. Callers must hold at least a read lock.
func (f *Facade) filterAndTransform(raw []Unigram, excluded, inserted map[string]struct{}, out []Unigram) []Unigram {
	for _, u := range raw {
		if _, ok := excluded[u.Value]; ok {
			continue
		}
		value := u.Value
		if f.replacementEnabled {
			if replaced, ok := f.replacement[value]; ok {
				value = replaced
			}
		}
		if f.converterEnabled && f.converter != nil {
			value = f.converter(value)
		}
		if value == "" {
			continue
		}
		if _, ok := inserted[value]; ok {
			continue
		}
		inserted[value] = struct{}{}
		out = append(out, Unigram{Key: u.Key, Value: value, Score: u.Score})
	}
	return out
}
