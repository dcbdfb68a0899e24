package sqllogic

// Protocol represents supported backend wire protocols
// This type is shared across all packages
type Protocol string

const (
	ProtocolMySQL    Protocol = "mysql"
	ProtocolPostgres Protocol = "postgres"
	ProtocolSQLite   Protocol = "sqlite"
	ProtocolHTTP     Protocol = "http"
)

// Valid reports whether the protocol is one of the supported kinds.
func (p Protocol) Valid() bool {
	switch p {
	case ProtocolMySQL, ProtocolPostgres, ProtocolSQLite, ProtocolHTTP:
		return true
	}

	return false
}

// BoolLiterals returns the native boolean literals the protocol emits
// for true and false result cells.
func (p Protocol) BoolLiterals() (string, string) {
	switch p {
	case ProtocolMySQL, ProtocolSQLite:
		return "1", "0"
	default:
		return "true", "false"
	}
}
