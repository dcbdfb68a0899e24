package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"

	"github.com/shibukawa/sqllogic"
	"github.com/shibukawa/sqllogic/handler"
	"github.com/shibukawa/sqllogic/parser"
)

// fakeHandler scripts backend behavior per SQL text.
type fakeHandler struct {
	label    string
	protocol sqllogic.Protocol

	stmtErr  map[string]error
	queryRes map[string][]handler.Row
	queryErr map[string]error
	delay    time.Duration

	executed []string
}

func (f *fakeHandler) Connect(ctx context.Context) error { return nil }

func (f *fakeHandler) ExecStatement(ctx context.Context, query string) error {
	if err := f.wait(ctx); err != nil {
		return err
	}

	f.executed = append(f.executed, query)

	return f.stmtErr[query]
}

func (f *fakeHandler) ExecQuery(ctx context.Context, query string) ([]handler.Row, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	f.executed = append(f.executed, query)

	if err := f.queryErr[query]; err != nil {
		return nil, err
	}

	return f.queryRes[query], nil
}

func (f *fakeHandler) wait(ctx context.Context) error {
	if f.delay == 0 {
		return nil
	}

	select {
	case <-time.After(f.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeHandler) Label() string               { return f.label }
func (f *fakeHandler) Protocol() sqllogic.Protocol { return f.protocol }
func (f *fakeHandler) Close() error                { return nil }

func parseOne(t *testing.T, src string, labels ...string) *parser.Record {
	t.Helper()

	if len(labels) == 0 {
		labels = []string{"mysql", "http"}
	}

	suite, err := parser.Parse("exec.test", strings.NewReader(src), labels)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(suite.Records))

	return suite.Records[0]
}

func TestRunStatementOK(t *testing.T) {
	rec := parseOne(t, "statement ok\nCREATE TABLE t(a INT);\n")
	h := &fakeHandler{label: "mysql", protocol: sqllogic.ProtocolMySQL}

	res := New(0).Run(context.Background(), rec, h)
	assert.Equal(t, Passed, res.Outcome)
	assert.Equal(t, []string{"CREATE TABLE t(a INT);"}, h.executed)
}

func TestRunStatementOKFails(t *testing.T) {
	rec := parseOne(t, "statement ok\nDROP TABLE missing;\n")
	h := &fakeHandler{
		label:    "mysql",
		protocol: sqllogic.ProtocolMySQL,
		stmtErr: map[string]error{
			"DROP TABLE missing;": &handler.ExecError{Code: "1051", Message: "unknown table"},
		},
	}

	res := New(0).Run(context.Background(), rec, h)
	assert.Equal(t, Failed, res.Outcome)
	assert.IsError(t, res.Err, sqllogic.ErrExecution)
}

func TestRunStatementErrorMatches(t *testing.T) {
	rec := parseOne(t, "statement error unknown table\nDROP TABLE missing;\n")
	h := &fakeHandler{
		label:    "mysql",
		protocol: sqllogic.ProtocolMySQL,
		stmtErr: map[string]error{
			"DROP TABLE missing;": &handler.ExecError{Code: "1051", Message: "unknown table 'missing'"},
		},
	}

	res := New(0).Run(context.Background(), rec, h)
	assert.Equal(t, Passed, res.Outcome)
}

func TestRunStatementErrorButSucceeded(t *testing.T) {
	// A statement expected to fail that succeeds is an assertion failure,
	// not a pass.
	rec := parseOne(t, "statement error .*syntax.*\nSELECT 1;\n")
	h := &fakeHandler{label: "mysql", protocol: sqllogic.ProtocolMySQL}

	res := New(0).Run(context.Background(), rec, h)
	assert.Equal(t, Failed, res.Outcome)
	assert.IsError(t, res.Err, sqllogic.ErrAssertion)
}

func TestRunStatementErrorPatternMismatch(t *testing.T) {
	rec := parseOne(t, "statement error .*syntax.*\nDROP TABLE missing;\n")
	h := &fakeHandler{
		label:    "mysql",
		protocol: sqllogic.ProtocolMySQL,
		stmtErr: map[string]error{
			"DROP TABLE missing;": &handler.ExecError{Code: "1051", Message: "unknown table"},
		},
	}

	res := New(0).Run(context.Background(), rec, h)
	assert.Equal(t, Failed, res.Outcome)
	assert.IsError(t, res.Err, sqllogic.ErrAssertion)
}

func TestRunQueryPasses(t *testing.T) {
	rec := parseOne(t, "statement query IT\nSELECT a, b FROM t;\n----\n1 one\n2 two\n")
	h := &fakeHandler{
		label:    "mysql",
		protocol: sqllogic.ProtocolMySQL,
		queryRes: map[string][]handler.Row{
			"SELECT a, b FROM t;": {{int64(1), "one"}, {int64(2), "two"}},
		},
	}

	res := New(0).Run(context.Background(), rec, h)
	assert.Equal(t, Passed, res.Outcome)
}

func TestRunQueryCellMismatch(t *testing.T) {
	rec := parseOne(t, "statement query IT\nSELECT a, b FROM t;\n----\n1 one\n2 two\n")
	h := &fakeHandler{
		label:    "mysql",
		protocol: sqllogic.ProtocolMySQL,
		queryRes: map[string][]handler.Row{
			"SELECT a, b FROM t;": {{int64(1), "one"}, {int64(2), "zwei"}},
		},
	}

	res := New(0).Run(context.Background(), rec, h)
	assert.Equal(t, Failed, res.Outcome)
	assert.IsError(t, res.Err, sqllogic.ErrAssertion)

	assert.NotZero(t, res.Diff)
	assert.NotZero(t, res.Diff.Cell)
	assert.Equal(t, 1, res.Diff.Cell.Row)
	assert.Equal(t, 1, res.Diff.Cell.Col)
	assert.Equal(t, "two", res.Diff.Cell.Expected)
	assert.Equal(t, "zwei", res.Diff.Cell.Actual)
}

func TestRunQueryRowCountMismatch(t *testing.T) {
	rec := parseOne(t, "statement query I\nSELECT a FROM t;\n----\n1\n2\n")
	h := &fakeHandler{
		label:    "mysql",
		protocol: sqllogic.ProtocolMySQL,
		queryRes: map[string][]handler.Row{
			"SELECT a FROM t;": {{int64(1)}},
		},
	}

	res := New(0).Run(context.Background(), rec, h)
	assert.Equal(t, Failed, res.Outcome)
	assert.NotZero(t, res.Diff)
	assert.NotZero(t, res.Diff.RowCount)
	assert.Equal(t, 2, res.Diff.RowCount.Expected)
	assert.Equal(t, 1, res.Diff.RowCount.Actual)
}

func TestRunQueryBooleanPerBackend(t *testing.T) {
	// The same comparison succeeds on each backend against its own labeled
	// block when the protocols render booleans differently.
	src := "statement query B\nSELECT 1 = 1;\n---- mysql\n1\n---- http\ntrue\n"
	rec := parseOne(t, src)

	mysqlH := &fakeHandler{
		label:    "mysql",
		protocol: sqllogic.ProtocolMySQL,
		queryRes: map[string][]handler.Row{"SELECT 1 = 1;": {{true}}},
	}
	httpH := &fakeHandler{
		label:    "http",
		protocol: sqllogic.ProtocolHTTP,
		queryRes: map[string][]handler.Row{"SELECT 1 = 1;": {{true}}},
	}

	exec := New(0)
	assert.Equal(t, Passed, exec.Run(context.Background(), rec, mysqlH).Outcome)
	assert.Equal(t, Passed, exec.Run(context.Background(), rec, httpH).Outcome)
}

func TestRunQueryDivergentBackendFailsAlone(t *testing.T) {
	// One backend diverging from the shared block fails that pair only.
	src := "statement query T\nSELECT version_comment();\n----\ncommunity\n"
	rec := parseOne(t, src)

	good := &fakeHandler{
		label:    "mysql",
		protocol: sqllogic.ProtocolMySQL,
		queryRes: map[string][]handler.Row{"SELECT version_comment();": {{"community"}}},
	}
	bad := &fakeHandler{
		label:    "http",
		protocol: sqllogic.ProtocolHTTP,
		queryRes: map[string][]handler.Row{"SELECT version_comment();": {{"enterprise"}}},
	}

	exec := New(0)
	assert.Equal(t, Passed, exec.Run(context.Background(), rec, good).Outcome)
	assert.Equal(t, Failed, exec.Run(context.Background(), rec, bad).Outcome)
}

func TestRunQueryWildcard(t *testing.T) {
	rec := parseOne(t, "statement query I\nSELECT rand();\n----\n*\n")
	h := &fakeHandler{
		label:    "mysql",
		protocol: sqllogic.ProtocolMySQL,
		queryRes: map[string][]handler.Row{"SELECT rand();": {{int64(42)}}},
	}

	res := New(0).Run(context.Background(), rec, h)
	assert.Equal(t, Passed, res.Outcome)
}

func TestRunSkipsUnlabeledBackend(t *testing.T) {
	q := parseOne(t, "statement query I label(mysql)\nSELECT 1;\n----\n1\n")
	h := &fakeHandler{label: "http", protocol: sqllogic.ProtocolHTTP}

	res := New(0).Run(context.Background(), q, h)
	assert.Equal(t, Skipped, res.Outcome)
	assert.Equal(t, 0, len(h.executed))
}

func TestRunTimeoutIsFailed(t *testing.T) {
	rec := parseOne(t, "statement ok\nSELECT sleep(60);\n")
	h := &fakeHandler{
		label:    "mysql",
		protocol: sqllogic.ProtocolMySQL,
		delay:    200 * time.Millisecond,
	}

	res := New(10 * time.Millisecond).Run(context.Background(), rec, h)
	assert.Equal(t, Failed, res.Outcome)
	assert.IsError(t, res.Err, sqllogic.ErrTimeout)
}

func TestRunConnectionErrorIsError(t *testing.T) {
	rec := parseOne(t, "statement ok\nSELECT 1;\n")
	h := &fakeHandler{
		label:    "mysql",
		protocol: sqllogic.ProtocolMySQL,
		stmtErr: map[string]error{
			"SELECT 1;": &handler.ConnError{Label: "mysql", Err: errors.New("dial tcp 127.0.0.1:3306: connection refused")},
		},
	}

	res := New(0).Run(context.Background(), rec, h)
	assert.Equal(t, Error, res.Outcome)
	assert.IsError(t, res.Err, sqllogic.ErrConnection)
}
