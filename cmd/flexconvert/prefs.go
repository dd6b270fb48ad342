package main

import (
	"errors"
	"flag"
	"fmt"

	"github.com/flexconvert/flexconvert/internal/preferences"
)

func runPrefs(args []string) error {
	fs := flag.NewFlagSet("prefs", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	recent := fs.Int("recent", 5, "number of recent tools to show")
	_ = fs.Parse(args)

	e, err := loadEnv(*configPath)
	if err != nil {
		return err
	}
	defer e.Close()

	prefs, err := e.preferences()
	if err != nil {
		return err
	}

	sub := "show"
	if fs.NArg() > 0 {
		sub = fs.Arg(0)
	}

	switch sub {
	case "show":
		theme, err := prefs.Theme()
		if err != nil {
			return err
		}
		tools, err := prefs.RecentTools(*recent)
		if err != nil {
			return err
		}
		return printJSON(struct {
			Theme       preferences.Theme       `json:"theme"`
			RecentTools []preferences.ToolUsage `json:"recentTools"`
		}{theme, tools})

	case "theme":
		if fs.NArg() != 2 {
			return errors.New("usage: flexconvert prefs theme light|dark|system")
		}
		if err := prefs.SetTheme(preferences.Theme(fs.Arg(1))); err != nil {
			return err
		}
		fmt.Printf("Theme set to %s\n", fs.Arg(1))
		return nil

	case "reset":
		if err := prefs.Reset(); err != nil {
			return err
		}
		fmt.Println("Preferences reset")
		return nil

	default:
		return fmt.Errorf("unknown prefs subcommand: %s", sub)
	}
}
