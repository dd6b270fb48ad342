// Package main is the entry point for the FlexConvert admin CLI.
// It runs one-shot maintenance tasks against the configured database and storage.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/flexconvert/flexconvert/internal/app"
	"github.com/flexconvert/flexconvert/internal/config"
	"github.com/flexconvert/flexconvert/internal/lock"
	"github.com/flexconvert/flexconvert/internal/pkg/crypto"
	"github.com/flexconvert/flexconvert/internal/service"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "version":
		fmt.Printf("FlexConvert Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "cleanup":
		err = runCleanup(args)

	case "stats":
		err = runStats(args)

	case "keygen":
		err = runKeygen()

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCleanup(args []string) error {
	fs := flag.NewFlagSet("cleanup", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	dryRun := fs.Bool("dry-run", false, "log what would be deleted without deleting")
	noLock := fs.Bool("no-lock", false, "skip the cleanup lock (single instance only)")
	wait := fs.Duration("wait", 0, "wait up to this long for a running sweep to release the lock")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *dryRun {
		cfg.Cleanup.DryRun = true
	}

	logger, logCloser, err := app.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	backend, err := app.NewBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	locker := backend.Locker
	if *noLock {
		locker = lock.Nop
	}
	cleanup := service.NewCleanupService(backend.Database.Repos.Share, backend.Store, locker,
		backend.Metrics, logger, service.CleanupConfig{
			BatchSize: cfg.Cleanup.BatchSize,
			Interval:  cfg.Cleanup.Interval,
			DryRun:    cfg.Cleanup.DryRun,
			LockWait:  *wait,
		})

	return printJSON(cleanup.RunOnce(ctx))
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	days := fs.Int("days", 7, "window in days, 0 for all time")
	category := fs.String("category", "", "restrict to one tool category")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger, logCloser, err := app.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := app.OpenDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	analytics := service.NewAnalyticsService(db.Repos.Usage, nil, nil, logger, service.AnalyticsConfig{
		MaxDays: cfg.Analytics.MaxDays,
	})
	stats, err := analytics.GetStats(ctx, service.StatsInput{Days: *days, Category: *category})
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func runKeygen() error {
	key, err := crypto.GenerateAdminKey()
	if err != nil {
		return err
	}
	hash, err := crypto.HashAdminKey(key)
	if err != nil {
		return err
	}

	fmt.Printf("Admin key:  %s\n", key)
	fmt.Printf("Key hash:   %s\n\n", hash)
	fmt.Println("Set auth.admin_key_hash (or FLEXCONVERT_AUTH_ADMIN_KEY_HASH) to the hash.")
	fmt.Println("The key is shown only once.")
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printUsage() {
	fmt.Println(`FlexConvert Admin CLI

Usage:
  flexconvert-admin <command> [arguments]

Commands:
  cleanup     Delete expired shares and their stored files
  stats       Print usage statistics
  keygen      Generate an admin key and its bcrypt hash
  version     Print version information
  help        Show this help message

Examples:
  flexconvert-admin cleanup --dry-run
  flexconvert-admin cleanup --wait 2m
  flexconvert-admin stats --days 30 --category pdf
  flexconvert-admin keygen`)
}
