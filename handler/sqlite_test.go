package handler

import (
	"context"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/shibukawa/sqllogic"
)

func newSQLiteTestHandler(t *testing.T) Handler {
	t.Helper()

	h, err := New(sqllogic.Backend{
		Label:      "sqlite",
		Protocol:   sqllogic.ProtocolSQLite,
		Connection: ":memory:",
	})
	assert.NoError(t, err)

	ctx := context.Background()
	assert.NoError(t, h.Connect(ctx))
	t.Cleanup(func() { h.Close() })

	return h
}

func TestSQLiteExec(t *testing.T) {
	h := newSQLiteTestHandler(t)
	ctx := context.Background()

	assert.NoError(t, h.ExecStatement(ctx, "CREATE TABLE t1(a INTEGER, b TEXT)"))
	assert.NoError(t, h.ExecStatement(ctx, "INSERT INTO t1 VALUES (1, 'one'), (2, 'two')"))

	rows, err := h.ExecQuery(ctx, "SELECT a, b FROM t1 ORDER BY a")
	assert.NoError(t, err)
	assert.Equal(t, []Row{{int64(1), "one"}, {int64(2), "two"}}, rows)
}

func TestSQLiteExecError(t *testing.T) {
	h := newSQLiteTestHandler(t)

	err := h.ExecStatement(context.Background(), "DROP TABLE missing")
	assert.IsError(t, err, sqllogic.ErrExecution)
}

func TestSQLiteNullCell(t *testing.T) {
	h := newSQLiteTestHandler(t)

	rows, err := h.ExecQuery(context.Background(), "SELECT NULL")
	assert.NoError(t, err)
	assert.Equal(t, []Row{{nil}}, rows)
}

func TestSQLiteSessionStickiness(t *testing.T) {
	// Temporary tables live on the pinned connection, so a later record on
	// the same handler must still see them.
	h := newSQLiteTestHandler(t)
	ctx := context.Background()

	assert.NoError(t, h.ExecStatement(ctx, "CREATE TEMPORARY TABLE session_t(v INTEGER)"))
	assert.NoError(t, h.ExecStatement(ctx, "INSERT INTO session_t VALUES (7)"))

	rows, err := h.ExecQuery(ctx, "SELECT v FROM session_t")
	assert.NoError(t, err)
	assert.Equal(t, []Row{{int64(7)}}, rows)
}

func TestSQLiteReconnectDropsSession(t *testing.T) {
	h := newSQLiteTestHandler(t)
	ctx := context.Background()

	assert.NoError(t, h.ExecStatement(ctx, "CREATE TEMPORARY TABLE session_t(v INTEGER)"))

	assert.NoError(t, h.Close())
	assert.NoError(t, h.Connect(ctx))

	_, err := h.ExecQuery(ctx, "SELECT v FROM session_t")
	assert.IsError(t, err, sqllogic.ErrExecution)
}

func TestSQLiteNotConnected(t *testing.T) {
	h, err := New(sqllogic.Backend{
		Label:      "sqlite",
		Protocol:   sqllogic.ProtocolSQLite,
		Connection: ":memory:",
	})
	assert.NoError(t, err)

	execErr := h.ExecStatement(context.Background(), "SELECT 1")
	assert.IsError(t, execErr, sqllogic.ErrConnection)
}
