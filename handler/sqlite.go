package handler

import (
	"errors"
	"strconv"

	"github.com/mattn/go-sqlite3"

	"github.com/shibukawa/sqllogic"
)

func newSQLiteHandler(cfg sqllogic.Backend) Handler {
	dsn := cfg.Connection
	if dsn == "" {
		dsn = cfg.Database
	}

	if dsn == "" {
		dsn = ":memory:"
	}

	return &sqlHandler{
		label:    cfg.Label,
		protocol: sqllogic.ProtocolSQLite,
		driver:   "sqlite3",
		dsn:      dsn,
		classify: classifySQLiteError,
	}
}

func classifySQLiteError(label string, err error) error {
	if passthroughError(err) {
		return err
	}

	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		return &ExecError{Code: strconv.Itoa(int(sqErr.Code)), Message: sqErr.Error()}
	}

	if isTransportError(err) {
		return &ConnError{Label: label, Err: err}
	}

	return &ExecError{Message: err.Error()}
}
