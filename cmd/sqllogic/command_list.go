package main

import (
	"fmt"

	"github.com/shibukawa/sqllogic"
	"github.com/shibukawa/sqllogic/runner"
)

// ListCmd represents the list command
type ListCmd struct {
	Path     string `arg:"" optional:"" help:"Suite root path (default: from config)"`
	SkipFile string `help:"YAML skip list file"`
}

// Run executes the list command
func (cmd *ListCmd) Run(ctx *Context) error {
	config, err := sqllogic.LoadConfig(ctx.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Path != "" {
		config.SuiteRoot = cmd.Path
	}

	if cmd.SkipFile != "" {
		config.SkipFile = cmd.SkipFile
	}

	skip := make(map[string]bool, len(config.Skip))
	for _, name := range config.Skip {
		skip[name] = true
	}

	if config.SkipFile != "" {
		entries, err := sqllogic.LoadSkipList(config.SkipFile)
		if err != nil {
			return err
		}

		for _, name := range entries {
			skip[name] = true
		}
	}

	files, skipped, err := runner.Discover(config.SuiteRoot, "", skip)
	if err != nil {
		return err
	}

	for _, f := range files {
		fmt.Println(f)
	}

	if ctx.Verbose {
		for _, f := range skipped {
			fmt.Printf("%s (skipped)\n", f)
		}
	}

	return nil
}
