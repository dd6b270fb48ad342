package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/flexconvert/flexconvert/internal/client"
	"github.com/flexconvert/flexconvert/internal/codec"
	"github.com/flexconvert/flexconvert/internal/domain"
	"github.com/flexconvert/flexconvert/internal/orchestrator"
	"github.com/flexconvert/flexconvert/internal/transform"
)

func runShare(args []string) error {
	if len(args) == 0 {
		printShareUsage()
		return errors.New("missing share subcommand")
	}

	switch args[0] {
	case "file":
		return runShareFile(args[1:])
	case "config":
		return runShareConfig(args[1:])
	case "get":
		return runShareGet(args[1:])
	case "list":
		return runShareList(args[1:])
	case "download":
		return runShareDownload(args[1:])
	default:
		printShareUsage()
		return fmt.Errorf("unknown share subcommand: %s", args[0])
	}
}

// shareFlags registers the options common to both share kinds.
func shareFlags(fs *flag.FlagSet) func() client.ShareOptions {
	title := fs.String("title", "", "share title (required)")
	description := fs.String("description", "", "share description")
	maxDownloads := fs.Int("max-downloads", 0, "download limit, 0 for unlimited")
	expiresHours := fs.Int("expires-hours", 0, "lifetime in hours, 0 for no expiry")

	return func() client.ShareOptions {
		opts := client.ShareOptions{Title: *title}
		if *description != "" {
			opts.Description = description
		}
		if *maxDownloads > 0 {
			opts.MaxDownloads = maxDownloads
		}
		if *expiresHours > 0 {
			opts.ExpiresInHours = expiresHours
		}
		return opts
	}
}

// requireBackend loads config and a backend client.
func requireBackend(configPath string) (*env, *client.Client, error) {
	e, err := loadEnv(configPath)
	if err != nil {
		return nil, nil, err
	}
	c, err := client.New(e.cfg.Client, e.logger)
	if err != nil {
		e.Close()
		return nil, nil, err
	}
	return e, c, nil
}

func runShareFile(args []string) error {
	fs := flag.NewFlagSet("share file", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	options := shareFlags(fs)
	category := fs.String("category", "", "tool category that produced the file")
	tool := fs.String("tool", "", "tool that produced the file")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("share file needs exactly one file")
	}
	path := fs.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	e, c, err := requireBackend(*configPath)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := signalContext()
	defer cancel()

	opts := options()
	if *category != "" {
		opts.ToolCategory = category
	}
	if *tool != "" {
		opts.ToolName = tool
	}

	name := filepath.Base(path)
	f := codec.File{Name: name, Data: data}
	mime := codec.DetectFormat(f).MIME()

	share, err := c.ShareFile(ctx, opts, name, mime, data)
	if err != nil {
		return err
	}
	return printJSON(share)
}

func runShareConfig(args []string) error {
	fs := flag.NewFlagSet("share config", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	options := shareFlags(fs)
	category := fs.String("category", "", "tool category (required)")
	tool := fs.String("tool", "", "tool name (required)")
	toolOpts := fs.String("opts", "", "tool options as JSON")
	_ = fs.Parse(args)

	preset := orchestrator.Preset{
		Category: domain.ToolCategory(*category),
		Tool:     *tool,
	}
	if *toolOpts != "" {
		preset.Options = []byte(*toolOpts)
	}
	data, err := preset.Marshal()
	if err != nil {
		return fmt.Errorf("invalid -opts: %w", err)
	}
	if _, err := orchestrator.ParsePreset(data); err != nil {
		return err
	}

	e, c, err := requireBackend(*configPath)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := signalContext()
	defer cancel()

	opts := options()
	opts.ToolCategory = category
	opts.ToolName = tool

	share, err := c.CreateConfigShare(ctx, opts, data)
	if err != nil {
		return err
	}
	return printJSON(share)
}

func runShareGet(args []string) error {
	fs := flag.NewFlagSet("share get", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("share get needs a share id")
	}

	e, c, err := requireBackend(*configPath)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := signalContext()
	defer cancel()

	share, err := c.GetShare(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	return printJSON(share)
}

func runShareList(args []string) error {
	fs := flag.NewFlagSet("share list", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	shareType := fs.String("type", "", "file or config")
	limit := fs.Int("limit", 20, "page size")
	offset := fs.Int("offset", 0, "page offset")
	_ = fs.Parse(args)

	e, c, err := requireBackend(*configPath)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := signalContext()
	defer cancel()

	list, err := c.ListShares(ctx, client.ListOptions{Type: *shareType, Limit: *limit, Offset: *offset})
	if err != nil {
		return err
	}
	return printJSON(list)
}

func runShareDownload(args []string) error {
	fs := flag.NewFlagSet("share download", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	outDir := fs.String("out", "", "output directory")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("share download needs a share id")
	}

	e, c, err := requireBackend(*configPath)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := signalContext()
	defer cancel()

	grant, err := c.DownloadShare(ctx, fs.Arg(0))
	if err != nil {
		if errors.Is(err, domain.ErrShareExhausted) {
			return fmt.Errorf("share %s has reached its download limit", fs.Arg(0))
		}
		return err
	}
	data, err := c.Fetch(ctx, grant)
	if err != nil {
		return err
	}

	name := grant.Share.ID
	if grant.Share.FileName != nil {
		name = filepath.Base(*grant.Share.FileName)
	}
	dir := *outDir
	if dir == "" {
		dir = e.cfg.Processing.OutputDir
	}

	sink := orchestrator.DirSink{Dir: dir}
	if err := sink.Deliver(ctx, fileOutput(name, data)); err != nil {
		return err
	}
	fmt.Println(filepath.Join(dir, name))
	return nil
}

func fileOutput(name string, data []byte) transform.Output {
	f := codec.File{Name: name, Data: data}
	return transform.Output{Name: name, Format: codec.DetectFormat(f), Data: data}
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	days := fs.Int("days", 7, "window in days, 0 for all time")
	category := fs.String("category", "", "restrict to one tool category")
	_ = fs.Parse(args)

	e, c, err := requireBackend(*configPath)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := signalContext()
	defer cancel()

	stats, err := c.Stats(ctx, *days, *category)
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func printShareUsage() {
	fmt.Println(`Usage:
  flexconvert share file -title T [-description D] [-max-downloads N] [-expires-hours H] FILE
  flexconvert share config -title T -category C -tool NAME [-opts JSON]
  flexconvert share get ID
  flexconvert share list [-type file|config] [-limit N] [-offset N]
  flexconvert share download [-out DIR] ID`)
}
