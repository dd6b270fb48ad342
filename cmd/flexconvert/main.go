// Package main is the entry point for the FlexConvert processing CLI.
// It runs PDF, image and conversion tools locally and talks to the backend
// for sharing and usage statistics.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/flexconvert/flexconvert/internal/domain"
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
		fmt.Printf("FlexConvert CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "pdf":
		err = runTool(domain.CategoryPDF, args)

	case "image":
		err = runTool(domain.CategoryImage, args)

	case "convert":
		err = runTool(domain.CategoryConvert, args)

	case "tools":
		err = runTools(args)

	case "share":
		err = runShare(args)

	case "stats":
		err = runStats(args)

	case "prefs":
		err = runPrefs(args)

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

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printUsage() {
	fmt.Println(`FlexConvert CLI

Usage:
  flexconvert <command> [arguments]

Commands:
  pdf <tool>       Run a PDF tool (merge, split, rotate, reorder, add-pages,
                   remove-pages, watermark, extract-range, to-images, compress, info)
  image <tool>     Run an image tool (resize, crop, rotate, flip, convert,
                   grayscale, adjust, text-overlay, enhance)
  convert <tool>   Run a conversion tool (images-to-pdf, pdf-to-text,
                   zip-extract, zip-bundle, image-convert)
  tools            List tools per category
  share            Create, inspect and download shares
  stats            Print usage statistics from the backend
  prefs            Show or change local preferences
  version          Print version information
  help             Show this help message

Tool flags:
  -opts JSON       Tool options; omit to print what the tool needs
  -preset ID       Load tool options from a config share
  -out DIR         Output directory (default processing.output_dir)
  -config PATH     Config file

A file argument of "-" reads one pasted file from stdin.

Examples:
  flexconvert pdf merge a.pdf b.pdf
  flexconvert pdf rotate -opts '{"degrees":90}' report.pdf
  flexconvert image resize -opts '{"maxWidth":800,"output":{"format":"webp"}}' *.png
  wl-paste | flexconvert image grayscale -
  flexconvert share file -title "Q3 report" -expires-hours 24 report.pdf
  flexconvert share config -title "Strong compression" -category pdf -tool compress -opts '{"level":9}'
  flexconvert prefs theme dark`)
}
