package handler

import (
	"errors"
	"net/url"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver

	"github.com/shibukawa/sqllogic"
)

func newPostgresHandler(cfg sqllogic.Backend) Handler {
	dsn := cfg.Connection
	if dsn == "" {
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(cfg.User, cfg.Password),
			Host:   cfg.Addr(),
			Path:   "/" + cfg.Database,
		}
		q := u.Query()
		q.Set("sslmode", "disable")
		u.RawQuery = q.Encode()
		dsn = u.String()
	}

	return &sqlHandler{
		label:    cfg.Label,
		protocol: sqllogic.ProtocolPostgres,
		driver:   "pgx",
		dsn:      dsn,
		classify: classifyPostgresError,
	}
}

func classifyPostgresError(label string, err error) error {
	if passthroughError(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &ExecError{Code: pgErr.Code, Message: pgErr.Message}
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || isTransportError(err) {
		return &ConnError{Label: label, Err: err}
	}

	return &ExecError{Message: err.Error()}
}
