package handler

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/shibukawa/sqllogic"
)

func newMySQLHandler(cfg sqllogic.Backend) Handler {
	dsn := cfg.Connection
	if dsn == "" {
		dsn = fmt.Sprintf("%s:%s@tcp(%s)/%s", cfg.User, cfg.Password, cfg.Addr(), cfg.Database)
	}

	return &sqlHandler{
		label:    cfg.Label,
		protocol: sqllogic.ProtocolMySQL,
		driver:   "mysql",
		dsn:      dsn,
		classify: classifyMySQLError,
	}
}

func classifyMySQLError(label string, err error) error {
	if passthroughError(err) {
		return err
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return &ExecError{Code: strconv.Itoa(int(myErr.Number)), Message: myErr.Message}
	}

	if errors.Is(err, mysql.ErrInvalidConn) || isTransportError(err) {
		return &ConnError{Label: label, Err: err}
	}

	return &ExecError{Message: err.Error()}
}
