// Package main is the entry point for the FlexConvert database migration tool.
// It applies the schema migrations embedded in the postgres and sqlite repositories.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/flexconvert/flexconvert/internal/app"
	"github.com/flexconvert/flexconvert/internal/config"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	fs := flag.NewFlagSet("flexconvert-migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Usage = printUsage

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	_ = fs.Parse(os.Args[2:])

	switch command {
	case "version":
		fmt.Printf("FlexConvert Migration Tool\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		return

	case "help", "-h", "--help":
		printUsage()
		return

	case "up", "down", "status":
		if err := run(command, *configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func run(command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, logCloser, err := app.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	logger = logger.With().Str("component", "migrate").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := app.OpenDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	switch command {
	case "up":
		if err := db.Migrator.Migrate(ctx); err != nil {
			return err
		}
	case "down":
		if err := db.Migrator.Rollback(ctx); err != nil {
			return err
		}
	}

	return printStatus(ctx, db.Migrator, cfg.Database.Driver, logger)
}

func printStatus(ctx context.Context, m app.Migrator, driver string, logger zerolog.Logger) error {
	version, err := m.Version(ctx)
	if err != nil {
		return err
	}
	logger.Debug().Int("version", version).Msg("migration status")
	fmt.Printf("Driver:          %s\n", driver)
	fmt.Printf("Schema version:  %d\n", version)
	return nil
}

func printUsage() {
	fmt.Println(`FlexConvert Migration Tool

Usage:
  flexconvert-migrate <command> [-config path]

Commands:
  up          Apply all pending migrations
  down        Roll back the most recent migration
  status      Show the current schema version
  version     Print version information
  help        Show this help message

Environment Variables:
  FLEXCONVERT_DATABASE_DRIVER    postgres or sqlite
  FLEXCONVERT_DATABASE_PATH      SQLite database file
  FLEXCONVERT_DATABASE_HOST      PostgreSQL host

Examples:
  flexconvert-migrate up
  flexconvert-migrate down -config /etc/flexconvert/config.yaml
  flexconvert-migrate status`)
}
