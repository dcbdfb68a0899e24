// Package executor runs parsed test records against backend handlers and
// compares normalized results with the expected result blocks.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shibukawa/sqllogic"
	"github.com/shibukawa/sqllogic/handler"
	"github.com/shibukawa/sqllogic/normalize"
	"github.com/shibukawa/sqllogic/parser"
)

// Outcome is the terminal state of one (record, backend) pair.
type Outcome int

const (
	Pending Outcome = iota
	Executing
	Passed
	Failed
	Error
	Skipped
)

// String returns the report form of the outcome.
func (o Outcome) String() string {
	switch o {
	case Pending:
		return "PENDING"
	case Executing:
		return "EXECUTING"
	case Passed:
		return "PASSED"
	case Failed:
		return "FAILED"
	case Error:
		return "ERROR"
	case Skipped:
		return "SKIPPED"
	default:
		return "UNKNOWN"
	}
}

// Result is the outcome of running one record against one backend.
type Result struct {
	Record   *parser.Record
	Label    string
	Outcome  Outcome
	Err      error
	Diff     *Diff
	Duration time.Duration
}

// Executor runs records with a per-record timeout bound.
type Executor struct {
	timeout time.Duration
}

// New creates an executor. timeout bounds each statement or query execution;
// zero disables the bound.
func New(timeout time.Duration) *Executor {
	return &Executor{timeout: timeout}
}

// Run executes one record against one backend handler. The handler must be
// connected; Run never calls Connect or Close.
func (e *Executor) Run(ctx context.Context, rec *parser.Record, h handler.Handler) Result {
	res := Result{Record: rec, Label: h.Label(), Outcome: Pending}

	if !rec.AppliesTo(h.Label()) {
		res.Outcome = Skipped
		return res
	}

	res.Outcome = Executing

	if e.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()

	var err error

	switch rec.Kind {
	case parser.StatementOK:
		err = e.runStatementOK(ctx, rec, h)
	case parser.StatementError:
		err = e.runStatementError(ctx, rec, h)
	case parser.Query:
		err = e.runQuery(ctx, rec, h, &res)
	}

	res.Duration = time.Since(start)
	classify(&res, err)

	return res
}

// classify maps an execution error to the terminal outcome: connection
// failures are ERROR (the backend is gone), everything else including
// timeouts marks this single pair FAILED and the run continues.
func classify(res *Result, err error) {
	switch {
	case err == nil:
		res.Outcome = Passed
	case errors.Is(err, context.DeadlineExceeded):
		res.Outcome = Failed
		res.Err = fmt.Errorf("%w: %s", sqllogic.ErrTimeout, res.Record.Pos())
	case errors.Is(err, sqllogic.ErrConnection):
		res.Outcome = Error
		res.Err = err
	default:
		res.Outcome = Failed
		res.Err = err
	}
}

func (e *Executor) runStatementOK(ctx context.Context, rec *parser.Record, h handler.Handler) error {
	if err := h.ExecStatement(ctx, rec.SQL); err != nil {
		if errors.Is(err, sqllogic.ErrConnection) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return err
		}

		return fmt.Errorf("%s: expected success, but got: %w", rec.Pos(), err)
	}

	return nil
}

func (e *Executor) runStatementError(ctx context.Context, rec *parser.Record, h handler.Handler) error {
	err := h.ExecStatement(ctx, rec.SQL)
	if err == nil {
		return fmt.Errorf("%w: %s: expected error matching %q, but statement succeeded", sqllogic.ErrAssertion, rec.Pos(), rec.ErrorPattern)
	}

	if errors.Is(err, sqllogic.ErrConnection) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	if !rec.MatchError(err.Error()) {
		return fmt.Errorf("%w: %s: error %q does not match pattern %q", sqllogic.ErrAssertion, rec.Pos(), err.Error(), rec.ErrorPattern)
	}

	return nil
}

func (e *Executor) runQuery(ctx context.Context, rec *parser.Record, h handler.Handler, res *Result) error {
	raw, err := h.ExecQuery(ctx, rec.SQL)
	if err != nil {
		if errors.Is(err, sqllogic.ErrConnection) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return err
		}

		return fmt.Errorf("%s: query failed: %w", rec.Pos(), err)
	}

	rows := make([][]any, len(raw))
	for i, r := range raw {
		rows[i] = r
	}

	actual, err := normalize.Rows(rows, rec.TypeSpec, h.Protocol())
	if err != nil {
		return fmt.Errorf("%s: %w", rec.Pos(), err)
	}

	expected, ok := rec.ExpectedFor(h.Label())
	if !ok {
		return fmt.Errorf("%w: %s: no expected result block applies to backend '%s'", sqllogic.ErrAssertion, rec.Pos(), h.Label())
	}

	if expected.Wildcard {
		return nil
	}

	diff := compare(rec, h.Label(), expected.Rows, actual)
	if diff != nil {
		res.Diff = diff
		return diff
	}

	return nil
}

// compare performs order-sensitive, cell-wise exact comparison and reports
// the first divergence.
func compare(rec *parser.Record, label string, expected []parser.Row, actual [][]string) *Diff {
	diff := &Diff{
		Pos:      rec.Pos(),
		Label:    label,
		Expected: expected,
		Actual:   actual,
	}

	if len(expected) != len(actual) {
		diff.RowCount = &CountDiff{Expected: len(expected), Actual: len(actual)}
		return diff
	}

	for i := range expected {
		exp := expected[i]
		act := actual[i]

		n := len(exp)
		if len(act) < n {
			n = len(act)
		}

		for j := 0; j < n; j++ {
			if exp[j] != act[j] {
				diff.Cell = &CellDiff{Row: i, Col: j, Expected: exp[j], Actual: act[j]}
				return diff
			}
		}

		if len(exp) != len(act) {
			diff.Cell = &CellDiff{Row: i, Col: n, Expected: cellOrMissing(exp, n), Actual: cellOrMissing(act, n)}
			return diff
		}
	}

	return nil
}

func cellOrMissing(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}

	return "(missing)"
}
