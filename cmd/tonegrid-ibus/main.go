//go:build linux

// tonegrid-ibus is the Linux IBus frontend for the tonegrid input method.
//
// It connects to the IBus daemon via D-Bus and routes key events through
// the composing engine, committing decoded text to the focused application.
//
// Installation:
//  1. Copy binary to /usr/local/bin/tonegrid-ibus
//  2. Run tonegrid-ibus -install to write the component XML
//  3. Restart IBus: ibus restart
//  4. Enable via ibus-setup or the desktop input source settings
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"tonegrid/internal/config"
	"tonegrid/internal/ime"
	"tonegrid/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	installFlag := flag.Bool("install", false, "Install IBus component")
	uninstallFlag := flag.Bool("uninstall", false, "Uninstall IBus component")
	flag.Parse()

	if *installFlag {
		if err := installComponent(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to install: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Installed successfully. Run 'ibus restart' to load.")
		return
	}

	if *uninstallFlag {
		if err := uninstallComponent(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to uninstall: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Uninstalled successfully.")
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	if configPath == "" {
		configPath = config.FindConfigFile()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return err
	}
	log, err := logging.New(&logging.Config{
		Level:    level,
		Format:   format,
		Output:   cfg.Logging.Output,
		FilePath: cfg.Logging.FilePath,
	})
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer log.Close()
	logging.SetDefault(log)

	engine, err := ime.NewEngine(cfg, log)
	if err != nil {
		return err
	}
	if err := engine.Start(); err != nil {
		return err
	}
	defer engine.Close()

	ibusEngine := ime.NewIBusEngine(engine, log)
	if err := ibusEngine.Start(); err != nil {
		return err
	}
	defer ibusEngine.Stop()

	log.Info("tonegrid ibus frontend running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down")
	return nil
}

func installComponent() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	componentDir := filepath.Join(home, ".local", "share", "ibus", "component")
	if err := os.MkdirAll(componentDir, 0o755); err != nil {
		return err
	}

	binPath, err := os.Executable()
	if err != nil {
		binPath = "/usr/local/bin/tonegrid-ibus"
	}

	componentXML := `<?xml version="1.0" encoding="utf-8"?>
<component>
    <name>org.tonegrid.ibus</name>
    <description>Tonegrid phonetic input method</description>
    <exec>` + binPath + `</exec>
    <version>1.0.0</version>
    <license>MIT</license>
    <textdomain>tonegrid</textdomain>
    <engines>
        <engine>
            <name>tonegrid</name>
            <language>zh_TW</language>
            <license>MIT</license>
            <layout>us</layout>
            <longname>Tonegrid</longname>
            <description>Phonetic syllable composing engine</description>
            <rank>99</rank>
            <symbol>注</symbol>
        </engine>
    </engines>
</component>`

	componentPath := filepath.Join(componentDir, "tonegrid.xml")
	return os.WriteFile(componentPath, []byte(componentXML), 0o644)
}

func uninstallComponent() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	componentPath := filepath.Join(home, ".local", "share", "ibus", "component", "tonegrid.xml")
	return os.Remove(componentPath)
}
