// Package runner discovers fixture files, orchestrates executor runs across
// all configured backends, and aggregates the report.
package runner

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shibukawa/sqllogic"
	"github.com/shibukawa/sqllogic/executor"
	"github.com/shibukawa/sqllogic/handler"
	"github.com/shibukawa/sqllogic/parser"
)

// suiteExt is the fixture file suffix produced by the case generator.
const suiteExt = ".test"

// Runner owns the handlers and drives one whole run.
type Runner struct {
	config   *sqllogic.Config
	handlers []handler.Handler
	exec     *executor.Executor
	verbose  bool
	out      io.Writer
}

// New creates a runner over the configured backends. The handlers are
// constructed once and reused for every record; the runner closes them when
// the run finishes or is cancelled.
func New(cfg *sqllogic.Config, handlers []handler.Handler) *Runner {
	return &Runner{
		config:   cfg,
		handlers: handlers,
		exec:     executor.New(time.Duration(cfg.Timeout) * time.Second),
		out:      os.Stdout,
	}
}

// SetVerbose enables per-record progress output.
func (r *Runner) SetVerbose(verbose bool) {
	r.verbose = verbose
}

// SetOutput redirects progress output (used by tests).
func (r *Runner) SetOutput(w io.Writer) {
	r.out = w
}

// Discover walks root for fixture files, applies the skip set, and returns
// the matching files in sorted order plus the files the skip set excluded.
// filter narrows the result to a single file by base name or relative path.
func Discover(root, filter string, skip map[string]bool) (files, skipped []string, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			name := d.Name()
			if path != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}

			return nil
		}

		if !strings.HasSuffix(d.Name(), suiteExt) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if filter != "" && filter != d.Name() && filter != filepath.ToSlash(rel) {
			return nil
		}

		if skip[d.Name()] || skip[filepath.ToSlash(rel)] {
			skipped = append(skipped, path)
			return nil
		}

		files = append(files, path)

		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to discover suite files: %w", err)
	}

	sort.Strings(files)
	sort.Strings(skipped)

	return files, skipped, nil
}

// Run executes every discovered suite against every backend and returns the
// aggregated report. The returned error covers orchestration failures (no
// suites, parse abort, cancellation); record-level failures are only
// reflected in the report.
func (r *Runner) Run(ctx context.Context, filter string) (*Report, error) {
	skip := make(map[string]bool, len(r.config.Skip))
	for _, name := range r.config.Skip {
		skip[name] = true
	}

	if r.config.SkipFile != "" {
		entries, err := sqllogic.LoadSkipList(r.config.SkipFile)
		if err != nil {
			return nil, err
		}

		for _, name := range entries {
			skip[name] = true
		}
	}

	files, skippedFiles, err := Discover(r.config.SuiteRoot, filter, skip)
	if err != nil {
		return nil, err
	}

	if len(files) == 0 && len(skippedFiles) == 0 {
		return nil, fmt.Errorf("%w: under %s", sqllogic.ErrNoSuitesFound, r.config.SuiteRoot)
	}

	report := NewReport(r.config.MaxFailures)

	for _, f := range skippedFiles {
		report.AddSkippedFile(f)
	}

	labels := r.config.Labels()

	var suites []*parser.Suite

	for _, file := range files {
		suite, err := parser.ParseFile(file, labels)
		if err != nil {
			report.AddParseFailure(file, err)

			if r.config.OnParseError == "abort" {
				report.Finish()
				return report, err
			}

			continue
		}

		suites = append(suites, suite)
	}

	var failed atomic.Bool

	eg, gctx := errgroup.WithContext(ctx)

	// Backends are independent connections and may run the same record set
	// concurrently. Sequential mode serializes them for setups where the
	// labels point at a shared underlying store.
	if r.config.Sequential {
		eg.SetLimit(1)
	}

	for _, h := range r.handlers {
		eg.Go(func() error {
			return r.runBackend(gctx, h, suites, report, &failed)
		})
	}

	err = eg.Wait()

	report.Finish()

	return report, err
}

// runBackend executes all suites strictly sequentially, in file order, on the
// handler's single connection. It returns an error only on cancellation so
// one dead backend never tears down the others.
func (r *Runner) runBackend(ctx context.Context, h handler.Handler, suites []*parser.Suite, report *Report, failed *atomic.Bool) error {
	defer h.Close()

	if err := h.Connect(ctx); err != nil {
		r.logf("[%s] connect failed: %v\n", h.Label(), err)
		r.abandon(h, suites, 0, 0, report, err)

		return nil
	}

	reconnected := false

	for si, suite := range suites {
		if r.config.FailFast && failed.Load() {
			return nil
		}

		r.logf("[%s] run %s\n", h.Label(), suite.File)

		for ri, rec := range suite.Records {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			res := r.exec.Run(ctx, rec, h)

			if res.Outcome == executor.Error {
				// One reconnect attempt per backend; a second connection
				// loss abandons the backend's remaining records.
				if !reconnected {
					reconnected = true

					h.Close()

					if cerr := h.Connect(ctx); cerr == nil {
						r.logf("[%s] reconnected after %v\n", h.Label(), res.Err)
						report.Add(res)
						failed.Store(true)

						continue
					}
				}

				report.Add(res)
				failed.Store(true)
				r.abandon(h, suites, si, ri+1, report, res.Err)

				return nil
			}

			report.Add(res)

			if res.Outcome == executor.Failed {
				failed.Store(true)
				r.logf("[%s] %s: %v\n", h.Label(), res.Outcome, res.Err)
			}
		}
	}

	return nil
}

// abandon marks every remaining applicable record of a dead backend as ERROR.
func (r *Runner) abandon(h handler.Handler, suites []*parser.Suite, si, ri int, report *Report, cause error) {
	for s := si; s < len(suites); s++ {
		start := 0
		if s == si {
			start = ri
		}

		for _, rec := range suites[s].Records[start:] {
			outcome := executor.Error
			if !rec.AppliesTo(h.Label()) {
				outcome = executor.Skipped
			}

			res := executor.Result{Record: rec, Label: h.Label(), Outcome: outcome}
			if outcome == executor.Error {
				res.Err = cause
			}

			report.Add(res)
		}
	}
}

func (r *Runner) logf(format string, args ...any) {
	if !r.verbose {
		return
	}

	fmt.Fprintf(r.out, format, args...)
}
