package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shibukawa/sqllogic"
	"github.com/shibukawa/sqllogic/handler"
	"github.com/shibukawa/sqllogic/runner"
)

// RunCmd represents the run command
type RunCmd struct {
	Path       string `arg:"" optional:"" help:"Suite root path (default: from config)"`
	File       string `help:"Run only the named suite file" short:"f"`
	SkipFile   string `help:"YAML skip list file"`
	Timeout    string `help:"Per-record timeout duration (e.g. 30s)"`
	FailFast   bool   `help:"Stop scheduling new suites after the first failure"`
	Sequential bool   `help:"Run backends one at a time instead of concurrently"`
}

// Run executes the run command
func (cmd *RunCmd) Run(ctx *Context) error {
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

	if cmd.FailFast {
		config.FailFast = true
	}

	if cmd.Sequential {
		config.Sequential = true
	}

	if cmd.Timeout != "" {
		timeout, err := time.ParseDuration(cmd.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout duration: %w", err)
		}

		config.Timeout = int(timeout.Seconds())
	}

	if len(config.Backends) == 0 {
		return sqllogic.ErrNoBackends
	}

	handlers := make([]handler.Handler, 0, len(config.Backends))

	for _, backend := range config.Backends {
		h, err := handler.New(backend)
		if err != nil {
			return err
		}

		handlers = append(handlers, h)
	}

	if ctx.Verbose {
		fmt.Printf("Suite root: %s\n", config.SuiteRoot)
		fmt.Printf("Backends: %v\n", config.Labels())
		fmt.Printf("Per-record timeout: %ds\n", config.Timeout)
		fmt.Println()
	}

	// An operator interrupt cancels the run; the runner closes all open
	// backend connections before returning.
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := runner.New(config, handlers)
	r.SetVerbose(ctx.Verbose && !ctx.Quiet)

	report, runErr := r.Run(runCtx, cmd.File)

	if report != nil && !ctx.Quiet {
		report.Print(os.Stdout)
	}

	if runErr != nil {
		return runErr
	}

	if !report.OK() {
		return sqllogic.ErrRunFailed
	}

	return nil
}
