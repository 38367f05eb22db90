// tonegridctl is the control CLI for the tonegrid input method: it
// inspects configuration, manages the user phrase files, lists learned
// overrides, and composes key sequences offline for debugging.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"tonegrid/internal/composer"
	"tonegrid/internal/config"
	"tonegrid/internal/langmodel"
	"tonegrid/internal/loader"
	"tonegrid/internal/logging"
	"tonegrid/internal/reading"
	"tonegrid/internal/store"
)

var (
	configPath = flag.String("config", "", "path to config file")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	cmd := flag.Arg(0)

	switch cmd {
	case "status":
		cmdStatus()
	case "check":
		cmdCheck()
	case "add-phrase":
		if flag.NArg() < 3 {
			fmt.Fprintln(os.Stderr, "Usage: tonegridctl add-phrase <phrase> <reading>")
			os.Exit(1)
		}
		cmdAddPhrase(flag.Arg(1), flag.Arg(2))
	case "list-phrases":
		cmdListPhrases()
	case "overrides":
		cmdOverrides()
	case "compose":
		if flag.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "Usage: tonegridctl compose <keys>")
			os.Exit(1)
		}
		cmdCompose(flag.Arg(1))
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `tonegridctl - Control utility for the tonegrid input method

Usage: tonegridctl [options] <command> [args]

Commands:
  status                        Show configuration and data file status
  check                         Validate the configuration and model files
  add-phrase <phrase> <reading> Append a phrase to the user phrase file
  list-phrases                  Print the user phrase file
  overrides                     List learned candidate overrides
  compose <keys>                Compose a key sequence against the model
  help                          Show this help message

Options:
  -config <path>  Path to config file (default: auto-discovered)`)
}

func loadConfig() *config.Config {
	path := *configPath
	if path == "" {
		path = config.FindConfigFile()
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnvOverrides()
	return cfg
}

func cmdStatus() {
	cfg := loadConfig()

	fmt.Println("=== tonegrid Status ===")
	fmt.Println()

	fmt.Println("Input:")
	fmt.Printf("  Layout: %s\n", cfg.Input.Layout)
	fmt.Printf("  Select phrase after cursor: %v\n", cfg.Input.SelectPhraseAfterCursor)
	fmt.Printf("  Move cursor after selection: %v\n", cfg.Input.MoveCursorAfterSelection)
	fmt.Println()

	fmt.Println("Model:")
	printFileStatus("Base model", cfg.Model.BasePath)
	fmt.Printf("  User data dir: %s\n", cfg.Model.UserDataDir)
	fmt.Println()

	fmt.Println("Learning:")
	fmt.Printf("  Capacity: %d\n", cfg.Learning.Capacity)
	fmt.Printf("  Half-life: %ds\n", cfg.Learning.HalfLifeSec)
	if _, err := os.Stat(cfg.Learning.StorePath); os.IsNotExist(err) {
		fmt.Println("  Store: not created yet")
	} else {
		s, err := store.Open(cfg.Learning.StorePath)
		if err != nil {
			fmt.Printf("  Store: error opening: %v\n", err)
		} else {
			defer s.Close()
			records, err := s.LoadOverrides()
			if err != nil {
				fmt.Printf("  Store: error reading: %v\n", err)
			} else {
				fmt.Printf("  Store: %d learned overrides\n", len(records))
			}
		}
	}
}

func printFileStatus(label, path string) {
	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("  %s: NOT FOUND (%s)\n", label, path)
		return
	}
	fmt.Printf("  %s: %s (%d bytes)\n", label, path, info.Size())
}

func cmdCheck() {
	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration invalid:\n  %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Configuration OK")

	facade := langmodel.NewFacade()
	ldr := newLoader(cfg, facade)
	if err := ldr.LoadAll(); err != nil {
		fmt.Fprintf(os.Stderr, "Model files invalid:\n  %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Model files OK")

	replacementPath := ldr.PhraseReplacementPath()
	if _, err := os.Stat(replacementPath); err == nil {
		if err := facade.LoadPhraseReplacementMap(replacementPath); err != nil {
			fmt.Fprintf(os.Stderr, "Replacement map invalid:\n  %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Replacement map OK")
	}
}

func cmdAddPhrase(phrase, readingKey string) {
	cfg := loadConfig()
	ldr := newLoader(cfg, langmodel.NewFacade())

	if err := ldr.AddUserPhrase(readingKey, phrase); err != nil {
		fmt.Fprintf(os.Stderr, "Error adding phrase: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Added: %s %s\n", phrase, readingKey)
}

func cmdListPhrases() {
	cfg := loadConfig()
	ldr := newLoader(cfg, langmodel.NewFacade())

	f, err := os.Open(ldr.UserPhrasesPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening phrase file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fmt.Println(line)
		count++
	}
	if count == 0 {
		fmt.Println("(no user phrases)")
	}
}

func cmdOverrides() {
	cfg := loadConfig()

	s, err := store.Open(cfg.Learning.StorePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening override store: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	records, err := s.LoadOverrides()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading overrides: %v\n", err)
		os.Exit(1)
	}
	if len(records) == 0 {
		fmt.Println("No learned overrides.")
		return
	}

	fmt.Printf("%-50s %-12s %s\n", "Context", "Candidate", "Observed")
	fmt.Println(strings.Repeat("-", 90))
	for _, r := range records {
		fmt.Printf("%-50s %-12s %s\n", r.Signature, r.Value, r.Timestamp.Format("2006-01-02 15:04:05"))
	}
}

func cmdCompose(keys string) {
	cfg := loadConfig()

	layout, err := reading.ParseLayout(cfg.Input.Layout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	facade := langmodel.NewFacade()
	ldr := newLoader(cfg, facade)
	if err := ldr.LoadAll(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading model: %v\n", err)
		os.Exit(1)
	}

	handler := composer.NewHandler(facade, ldr, logging.Default().Logger)
	handler.SetKeyboardLayout(layout)

	var state composer.State = &composer.Empty{}
	for _, r := range keys {
		res := handler.Handle(composer.PrintableKey(r), state)
		if len(res.States) > 0 {
			state = res.States[len(res.States)-1]
		}
		if res.ErrorSignaled {
			fmt.Fprintf(os.Stderr, "Key %q rejected\n", r)
		}
	}

	switch s := state.(type) {
	case *composer.Inputting:
		fmt.Printf("Buffer: %s\n", s.Buffer)
		fmt.Printf("Cursor: %d\n", s.CursorIndex)
	case *composer.ChoosingCandidate:
		fmt.Printf("Buffer: %s\n", s.Buffer)
		fmt.Printf("Candidates: %s\n", strings.Join(s.Candidates, ", "))
	default:
		fmt.Println("(nothing composed)")
	}
}

func newLoader(cfg *config.Config, facade *langmodel.Facade) *loader.Loader {
	ldr, err := loader.New(facade, cfg.Model.BasePath, cfg.Model.UserDataDir, logging.Default().Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return ldr
}
