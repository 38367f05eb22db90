// Package loader owns the model files on disk: it resolves the data
// directory, seeds empty user files, reloads them when they change, and
// appends phrases learned through marking.
package loader

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"tonegrid/internal/langmodel"
)

const (
	userPhrasesFileName       = "phrases.txt"
	excludedPhrasesFileName   = "excluded-phrases.txt"
	phraseReplacementFileName = "phrase-replacement.txt"

	userPhrasesHeader     = "# user phrases file\n"
	excludedPhrasesHeader = "# excluded phrases file\n"
)

// Loader manages the facade's backing files. Reload methods are cheap when
// nothing changed: each file's modification time is remembered and compared
// first.
type Loader struct {
	facade      *langmodel.Facade
	basePath    string
	userDataDir string
	log         *slog.Logger

	mtimeMu sync.Mutex
	mtimes  map[string]time.Time

	fsWatcher *fsnotify.Watcher
	done      chan struct{}
	wg        sync.WaitGroup
}

// New creates a loader for the given base model path and user data
// directory. The directory is created if missing and empty user files are
// seeded with their headers.
func New(facade *langmodel.Facade, basePath, userDataDir string, logger *slog.Logger) (*Loader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(userDataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating user data dir: %w", err)
	}

	l := &Loader{
		facade:      facade,
		basePath:    basePath,
		userDataDir: userDataDir,
		log:         logger,
		mtimes:      make(map[string]time.Time),
	}

	if err := l.populateIfMissing(l.UserPhrasesPath(), userPhrasesHeader); err != nil {
		return nil, err
	}
	if err := l.populateIfMissing(l.ExcludedPhrasesPath(), excludedPhrasesHeader); err != nil {
		return nil, err
	}
	return l, nil
}

// UserPhrasesPath returns the user phrases file path.
func (l *Loader) UserPhrasesPath() string {
	return filepath.Join(l.userDataDir, userPhrasesFileName)
}

// ExcludedPhrasesPath returns the excluded phrases file path.
func (l *Loader) ExcludedPhrasesPath() string {
	return filepath.Join(l.userDataDir, excludedPhrasesFileName)
}

// PhraseReplacementPath returns the phrase replacement file path.
func (l *Loader) PhraseReplacementPath() string {
	return filepath.Join(l.userDataDir, phraseReplacementFileName)
}

func (l *Loader) populateIfMissing(path, header string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, []byte(header), 0o644); err != nil {
		return fmt.Errorf("seeding %s: %w", filepath.Base(path), err)
	}
	return nil
}

// LoadAll loads the base model and all user files unconditionally. The
// base model is required; user files are loaded best-effort.
func (l *Loader) LoadAll() error {
	if err := l.facade.LoadLanguageModel(l.basePath); err != nil {
		return fmt.Errorf("loading base model: %w", err)
	}
	l.noteMtime(l.basePath)
	l.reloadUserFiles()
	return nil
}

// ReloadUserModelsIfNeeded reloads any user file whose modification time
// changed since it was last read.
func (l *Loader) ReloadUserModelsIfNeeded() {
	changed := false
	for _, path := range []string{l.UserPhrasesPath(), l.ExcludedPhrasesPath(), l.PhraseReplacementPath()} {
		if l.mtimeChanged(path) {
			changed = true
			break
		}
	}
	if changed {
		l.reloadUserFiles()
	}
}

func (l *Loader) reloadUserFiles() {
	if err := l.facade.LoadUserPhrases(l.UserPhrasesPath(), l.ExcludedPhrasesPath()); err != nil {
		l.log.Warn("loading user phrases", "error", err)
	}
	l.noteMtime(l.UserPhrasesPath())
	l.noteMtime(l.ExcludedPhrasesPath())

	if _, err := os.Stat(l.PhraseReplacementPath()); err == nil {
		if err := l.facade.LoadPhraseReplacementMap(l.PhraseReplacementPath()); err != nil {
			l.log.Warn("loading phrase replacement map", "error", err)
		}
		l.noteMtime(l.PhraseReplacementPath())
	}
}

func (l *Loader) noteMtime(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	l.mtimeMu.Lock()
	l.mtimes[path] = info.ModTime()
	l.mtimeMu.Unlock()
}

func (l *Loader) mtimeChanged(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	l.mtimeMu.Lock()
	defer l.mtimeMu.Unlock()
	return !info.ModTime().Equal(l.mtimes[path])
}

// AddUserPhrase appends one learned phrase to the user phrases file and
// reloads it. It implements the composer's phrase persistence interface.
func (l *Loader) AddUserPhrase(reading, phrase string) error {
	f, err := os.OpenFile(l.UserPhrasesPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening user phrases file: %w", err)
	}
	_, writeErr := fmt.Fprintf(f, "%s %s\n", phrase, reading)
	closeErr := f.Close()
	if writeErr != nil {
		return fmt.Errorf("appending user phrase: %w", writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing user phrases file: %w", closeErr)
	}
	l.reloadUserFiles()
	l.log.Info("user phrase added", "reading", reading, "phrase", phrase)
	return nil
}

// Watch starts a background watcher that reloads user files when they are
// written. Call Stop to shut it down.
func (l *Loader) Watch() error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsWatcher.Add(l.userDataDir); err != nil {
		fsWatcher.Close()
		return err
	}

	l.fsWatcher = fsWatcher
	l.done = make(chan struct{})
	l.wg.Add(1)
	go l.watchLoop()
	return nil
}

// Stop shuts down the watcher started by Watch.
func (l *Loader) Stop() error {
	if l.fsWatcher == nil {
		return nil
	}
	close(l.done)
	l.wg.Wait()
	err := l.fsWatcher.Close()
	l.fsWatcher = nil
	return err
}

func (l *Loader) watchLoop() {
	defer l.wg.Done()

	for {
		select {
		case <-l.done:
			return

		case event, ok := <-l.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			switch event.Name {
			case l.UserPhrasesPath(), l.ExcludedPhrasesPath(), l.PhraseReplacementPath():
				l.log.Debug("user file changed", "path", event.Name)
				l.ReloadUserModelsIfNeeded()
			}

		case err, ok := <-l.fsWatcher.Errors:
			if !ok {
				return
			}
			l.log.Warn("watching user data dir", "error", err)
		}
	}
}
