package runner

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/shibukawa/sqllogic/executor"
)

var (
	summaryHeaderFmt = color.New(color.Bold).SprintFunc()
	passFmt          = color.New(color.FgGreen).SprintfFunc()
	failFmt          = color.New(color.FgRed).SprintfFunc()
	warnFmt          = color.New(color.FgYellow).SprintfFunc()
)

// ParseFailure records a fixture file that could not be parsed.
type ParseFailure struct {
	File string
	Err  error
}

// FileStat aggregates outcomes per fixture file.
type FileStat struct {
	File     string
	Passed   int
	Failed   int
	Errored  int
	Skipped  int
	Duration time.Duration
}

// Report is the append-only aggregation of record×backend outcomes.
// A single mutex serializes all writers so concurrent backend workers
// cannot interleave or corrupt the aggregation.
type Report struct {
	RunID string
	Start time.Time

	mu            sync.Mutex
	files         []*FileStat
	fileIndex     map[string]*FileStat
	passed        int
	failed        int
	errored       int
	skipped       int
	parseFailures []ParseFailure
	skippedFiles  []string
	failures      []executor.Result
	maxFailures   int
	duration      time.Duration
}

// NewReport creates a report that retains at most maxFailures failing diffs.
func NewReport(maxFailures int) *Report {
	return &Report{
		RunID:       uuid.NewString(),
		Start:       time.Now(),
		fileIndex:   make(map[string]*FileStat),
		maxFailures: maxFailures,
	}
}

// Add records one outcome.
func (r *Report) Add(res executor.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stat := r.fileIndex[res.Record.File]
	if stat == nil {
		stat = &FileStat{File: res.Record.File}
		r.fileIndex[res.Record.File] = stat
		r.files = append(r.files, stat)
	}

	stat.Duration += res.Duration

	switch res.Outcome {
	case executor.Passed:
		r.passed++
		stat.Passed++
	case executor.Failed:
		r.failed++
		stat.Failed++
	case executor.Error:
		r.errored++
		stat.Errored++
	case executor.Skipped:
		r.skipped++
		stat.Skipped++
	}

	if (res.Outcome == executor.Failed || res.Outcome == executor.Error) && len(r.failures) < r.maxFailures {
		r.failures = append(r.failures, res)
	}
}

// AddParseFailure records a fixture file that failed to parse.
func (r *Report) AddParseFailure(file string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.parseFailures = append(r.parseFailures, ParseFailure{File: file, Err: err})
}

// AddSkippedFile records a file excluded by the skip list.
func (r *Report) AddSkippedFile(file string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.skippedFiles = append(r.skippedFiles, file)
}

// Finish freezes the total run duration.
func (r *Report) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.duration = time.Since(r.Start)
}

// Counts returns the aggregate pass/fail/error/skip counters.
func (r *Report) Counts() (passed, failed, errored, skipped int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.passed, r.failed, r.errored, r.skipped
}

// ParseFailures returns the recorded fixture parse failures.
func (r *Report) ParseFailures() []ParseFailure {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]ParseFailure(nil), r.parseFailures...)
}

// Failures returns the retained failing results, capped at maxFailures.
func (r *Report) Failures() []executor.Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]executor.Result(nil), r.failures...)
}

// OK reports whether the run should exit zero: no failed or errored record
// and no parse failure.
func (r *Report) OK() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.failed == 0 && r.errored == 0 && len(r.parseFailures) == 0
}

// Print writes the human-readable summary.
func (r *Report) Print(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(w, "\n%s\n", summaryHeaderFmt("=== Logic Test Summary ==="))
	fmt.Fprintf(w, "Run: %s\n", r.RunID)
	fmt.Fprintf(w, "Files: %d total, %d skipped\n", len(r.files), len(r.skippedFiles))
	fmt.Fprintf(w, "Records: %s, %s, %s, %d skipped\n",
		passFmt("%d passed", r.passed),
		failFmt("%d failed", r.failed),
		failFmt("%d errored", r.errored),
		r.skipped)
	fmt.Fprintf(w, "Duration: %.3fs\n", r.duration.Seconds())

	if len(r.parseFailures) > 0 {
		fmt.Fprintf(w, "\n%s\n", warnFmt("Parse failures:"))

		for _, pf := range r.parseFailures {
			fmt.Fprintf(w, "  %v\n", pf.Err)
		}
	}

	if r.failed > 0 || r.errored > 0 {
		fmt.Fprintf(w, "\nFailing files:\n")

		for _, stat := range r.files {
			if stat.Failed == 0 && stat.Errored == 0 {
				continue
			}

			fmt.Fprintf(w, "  %s: %d failed, %d errored (%.3fs)\n", stat.File, stat.Failed, stat.Errored, stat.Duration.Seconds())
		}

		fmt.Fprintf(w, "\nFirst %d failures:\n", len(r.failures))

		for _, res := range r.failures {
			if res.Diff != nil {
				fmt.Fprint(w, res.Diff.Format())
				continue
			}

			fmt.Fprintf(w, "%s\n", failFmt("%s [%s]: %v", res.Record.Pos(), res.Label, res.Err))
		}
	}

	if r.failed == 0 && r.errored == 0 && len(r.parseFailures) == 0 {
		fmt.Fprintf(w, "\n%s\n", passFmt("All tests passed!"))
	} else {
		fmt.Fprintf(w, "\n%s\n", failFmt("Some tests failed!"))
	}
}
