package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/flexconvert/flexconvert/internal/app"
	"github.com/flexconvert/flexconvert/internal/client"
	"github.com/flexconvert/flexconvert/internal/codec"
	"github.com/flexconvert/flexconvert/internal/config"
	"github.com/flexconvert/flexconvert/internal/domain"
	"github.com/flexconvert/flexconvert/internal/errreport"
	"github.com/flexconvert/flexconvert/internal/orchestrator"
	"github.com/flexconvert/flexconvert/internal/preferences"
)

// env is what every command loads before doing work.
type env struct {
	cfg    *config.Config
	logger zerolog.Logger
	closer io.Closer
}

func loadEnv(configPath string) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	// stdout carries command output
	if cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}
	logger, closer, err := app.NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, closer: closer}, nil
}

func (e *env) Close() {
	_ = e.closer.Close()
}

func (e *env) preferences() (*preferences.Manager, error) {
	store, err := preferences.NewFileStore(e.cfg.Processing.PreferencesPath)
	if err != nil {
		return nil, err
	}
	return preferences.NewManager(store), nil
}

// backend returns the API client, or nil when no backend is configured.
func (e *env) backend() (*client.Client, error) {
	c, err := client.New(e.cfg.Client, e.logger)
	if errors.Is(err, client.ErrNotConfigured) {
		return nil, nil
	}
	return c, err
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runTool(category domain.ToolCategory, args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		return listTools(category)
	}
	name := args[0]

	fs := flag.NewFlagSet(string(category)+" "+name, flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	opts := fs.String("opts", "", "tool options as JSON")
	presetID := fs.String("preset", "", "config share holding the tool options")
	outDir := fs.String("out", "", "output directory")
	_ = fs.Parse(args[1:])

	e, err := loadEnv(*configPath)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := signalContext()
	defer cancel()

	backend, err := e.backend()
	if err != nil {
		return err
	}

	var recorder orchestrator.UsageRecorder = orchestrator.NopRecorder{}
	if backend != nil {
		recorder = backend
	}

	prefs, err := e.preferences()
	if err != nil {
		return err
	}

	dir := *outDir
	if dir == "" {
		dir = e.cfg.Processing.OutputDir
	}

	reporter := errreport.New(e.logger, 0)
	defer reporter.Flush()

	mupdf := codec.NewMuPDF()
	ctrl, err := orchestrator.NewController(category, orchestrator.Deps{
		Rasterizer:  mupdf,
		Extractor:   mupdf,
		Sink:        orchestrator.DirSink{Dir: dir},
		Recorder:    recorder,
		Preferences: prefs,
		Reporter:    reporter,
		Logger:      e.logger,
		Config:      e.cfg.Processing,
	})
	if err != nil {
		return err
	}

	var raw []byte
	if *opts != "" {
		raw = []byte(*opts)
	}
	if *presetID != "" {
		if backend == nil {
			return fmt.Errorf("-preset needs client.base_url")
		}
		share, err := backend.GetShare(ctx, *presetID)
		if err != nil {
			return err
		}
		preset, err := orchestrator.ParsePreset(share.ConfigData)
		if err != nil {
			return err
		}
		if preset.Category != category || preset.Tool != name {
			return fmt.Errorf("preset %s is for %s %s", *presetID, preset.Category, preset.Tool)
		}
		raw = preset.Options
	}

	for _, path := range fs.Args() {
		if path == "-" {
			if _, err := ctrl.Paste(ctx, orchestrator.StreamClipboard{Reader: os.Stdin}); err != nil {
				return err
			}
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		ctrl.Add(codec.File{Name: filepath.Base(path), Data: data})
	}

	res, err := ctrl.Run(ctx, name, raw)
	if err != nil {
		return err
	}

	if res.NeedsConfiguration {
		fmt.Fprintf(os.Stderr, "%s needs options; pass them with -opts. Selection:\n", name)
		if len(res.Documents) > 0 {
			return printJSON(res.Documents)
		}
		return printJSON(res.Images)
	}
	if res.Warning != "" {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", res.Warning)
	}
	if len(res.Documents) > 0 {
		return printJSON(res.Documents)
	}
	for _, out := range res.Outputs {
		fmt.Println(filepath.Join(dir, filepath.Base(out.Name)))
	}
	return nil
}

func runTools(args []string) error {
	categories := []domain.ToolCategory{domain.CategoryPDF, domain.CategoryImage, domain.CategoryConvert}
	if len(args) > 0 {
		categories = []domain.ToolCategory{domain.ToolCategory(args[0])}
	}
	for _, c := range categories {
		if err := listTools(c); err != nil {
			return err
		}
	}
	return nil
}

func listTools(category domain.ToolCategory) error {
	tools, err := orchestrator.ToolsFor(category)
	if err != nil {
		return err
	}

	fmt.Printf("%s:\n", category)
	for _, t := range tools {
		marker := " "
		if t.Configurable {
			marker = "*"
		}
		fmt.Printf("  %s %-14s %s\n", marker, t.Name, t.Description)
	}
	fmt.Println()
	return nil
}
