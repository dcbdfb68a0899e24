package handler

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/shibukawa/sqllogic"
)

// classifyFunc maps a driver error to the handler error taxonomy.
type classifyFunc func(label string, err error) error

// sqlHandler is the shared adapter base for the database/sql protocols.
// All statements run on a single pinned *sql.Conn so that session-mutating
// statements (SET, temporary tables) stay visible to later records.
type sqlHandler struct {
	label    string
	protocol sqllogic.Protocol
	driver   string
	dsn      string
	classify classifyFunc

	db   *sql.DB
	conn *sql.Conn
}

func (h *sqlHandler) Label() string {
	return h.label
}

func (h *sqlHandler) Protocol() sqllogic.Protocol {
	return h.protocol
}

func (h *sqlHandler) Connect(ctx context.Context) error {
	if h.conn != nil {
		return nil
	}

	db, err := sql.Open(h.driver, h.dsn)
	if err != nil {
		return &ConnError{Label: h.label, Err: err}
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return &ConnError{Label: h.label, Err: err}
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()

		return &ConnError{Label: h.label, Err: err}
	}

	h.db = db
	h.conn = conn

	return nil
}

func (h *sqlHandler) ExecStatement(ctx context.Context, query string) error {
	if h.conn == nil {
		return &ConnError{Label: h.label, Err: errors.New("not connected")}
	}

	if _, err := h.conn.ExecContext(ctx, query); err != nil {
		return h.classify(h.label, err)
	}

	return nil
}

func (h *sqlHandler) ExecQuery(ctx context.Context, query string) ([]Row, error) {
	if h.conn == nil {
		return nil, &ConnError{Label: h.label, Err: errors.New("not connected")}
	}

	rows, err := h.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, h.classify(h.label, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, h.classify(h.label, err)
	}

	var result []Row

	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))

		for i := range vals {
			ptrs[i] = &vals[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}

		result = append(result, Row(vals))
	}

	if err := rows.Err(); err != nil {
		return nil, h.classify(h.label, err)
	}

	return result, nil
}

func (h *sqlHandler) Close() error {
	var errs []error

	if h.conn != nil {
		errs = append(errs, h.conn.Close())
		h.conn = nil
	}

	if h.db != nil {
		errs = append(errs, h.db.Close())
		h.db = nil
	}

	return errors.Join(errs...)
}

// isTransportError reports whether the error comes from the connection
// rather than from the backend rejecting the statement.
func isTransportError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr)
}

// passthroughError reports whether the error must surface unchanged so the
// executor can recognize it (context cancellation and per-record timeouts).
func passthroughError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
