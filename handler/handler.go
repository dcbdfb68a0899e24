// Package handler provides the pluggable backend adapters the executor runs
// records against. Each adapter owns one persistent connection so that
// session-level settings stay in effect across sequential statements.
package handler

import (
	"context"
	"fmt"

	"github.com/shibukawa/sqllogic"
)

// Row is one raw result row as returned by a backend, before normalization.
type Row []any

// Handler is the capability set every backend adapter implements.
// ExecStatement and ExecQuery must be called on a connected handler and are
// not safe for concurrent use; the runner serializes all calls per handler.
type Handler interface {
	// Connect establishes the backend connection the handler will reuse for
	// every subsequent call until Close.
	Connect(ctx context.Context) error
	// ExecStatement runs a statement that produces no result rows.
	ExecStatement(ctx context.Context, query string) error
	// ExecQuery runs a query and returns its raw rows in backend order.
	ExecQuery(ctx context.Context, query string) ([]Row, error)
	// Label returns the configured backend label.
	Label() string
	// Protocol returns the wire protocol kind of the backend.
	Protocol() sqllogic.Protocol
	// Close tears down the connection. Safe to call on a failed handler.
	Close() error
}

// New constructs the adapter variant for the backend's protocol kind.
func New(cfg sqllogic.Backend) (Handler, error) {
	switch cfg.Protocol {
	case sqllogic.ProtocolMySQL:
		return newMySQLHandler(cfg), nil
	case sqllogic.ProtocolPostgres:
		return newPostgresHandler(cfg), nil
	case sqllogic.ProtocolSQLite:
		return newSQLiteHandler(cfg), nil
	case sqllogic.ProtocolHTTP:
		return newHTTPHandler(cfg), nil
	default:
		return nil, fmt.Errorf("%w: backend '%s': %q", sqllogic.ErrUnknownProtocol, cfg.Label, cfg.Protocol)
	}
}

// ExecError is a structured rejection from a backend: the statement or query
// reached the backend and the backend refused it.
type ExecError struct {
	Code    string
	Message string
}

// Error implements the error interface.
func (e *ExecError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("(%s) %s", e.Code, e.Message)
	}

	return e.Message
}

// Is lets errors.Is match any ExecError against sqllogic.ErrExecution.
func (e *ExecError) Is(target error) bool {
	return target == sqllogic.ErrExecution
}

// ConnError indicates the backend was unreachable. It is kept distinct from
// ExecError so the executor can tell a dead backend from a rejected statement.
type ConnError struct {
	Label string
	Err   error
}

// Error implements the error interface.
func (e *ConnError) Error() string {
	return fmt.Sprintf("backend '%s' unreachable: %v", e.Label, e.Err)
}

// Unwrap returns the transport-level cause.
func (e *ConnError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match any ConnError against sqllogic.ErrConnection.
func (e *ConnError) Is(target error) bool {
	return target == sqllogic.ErrConnection
}
