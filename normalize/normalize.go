// Package normalize canonicalizes raw backend result values into comparable
// strings per declared column type tag and backend protocol.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shibukawa/sqllogic"
)

// Column type tags shared with the fixture parser.
const (
	IntType    = 'I'
	TextType   = 'T'
	FloatType  = 'F'
	BoolType   = 'B'
	NullMarker = "NULL"
)

var timestampRE = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})[ T](\d{1,2}):(\d{1,2}):(\d{1,2})(\.\d+)?$`)

// Cell canonicalizes one raw backend value for the given type tag.
// NULL becomes a sentinel distinct from the empty string. Boolean mapping is
// protocol-aware: a backend speaking the MySQL or SQLite protocol renders
// booleans as 1/0, the HTTP and PostgreSQL protocols as true/false.
func Cell(raw any, typ byte, proto sqllogic.Protocol) (string, error) {
	switch v := raw.(type) {
	case nil:
		return NullMarker, nil
	case bool:
		t, f := proto.BoolLiterals()
		if v {
			return t, nil
		}

		return f, nil
	case int64:
		return intCell(strconv.FormatInt(v, 10), typ)
	case uint64:
		return intCell(strconv.FormatUint(v, 10), typ)
	case float64:
		return floatCell(v, typ)
	case float32:
		return floatCell(float64(v), typ)
	case []byte:
		return stringCell(string(v), typ)
	case string:
		return stringCell(v, typ)
	case time.Time:
		return stringCell(v.Format("2006-01-02 15:04:05"), typ)
	default:
		return "", fmt.Errorf("%w: %T", sqllogic.ErrUnsupportedType, raw)
	}
}

// Rows canonicalizes a whole raw result set against the type spec.
// The cell count of every row must match the tag count.
func Rows(raw [][]any, typeSpec string, proto sqllogic.Protocol) ([][]string, error) {
	rows := make([][]string, 0, len(raw))

	for i, r := range raw {
		if len(r) != len(typeSpec) {
			return nil, fmt.Errorf("row %d has %d columns, type spec %q wants %d", i+1, len(r), typeSpec, len(typeSpec))
		}

		row := make([]string, len(r))

		for j, cell := range r {
			s, err := Cell(cell, typeSpec[j], proto)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", i+1, j+1, err)
			}

			row[j] = s
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// intCell renders a numeric string as canonical decimal: no leading zeros,
// no explicit plus sign.
func intCell(s string, typ byte) (string, error) {
	if typ != IntType && typ != FloatType {
		return s, nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return s, nil
	}

	return d.String(), nil
}

func floatCell(f float64, typ byte) (string, error) {
	if typ == IntType {
		return strconv.FormatInt(int64(f), 10), nil
	}

	return decimal.NewFromFloat(f).String(), nil
}

func stringCell(s string, typ byte) (string, error) {
	switch typ {
	case IntType, FloatType:
		d, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			// Leave unparseable numerics verbatim so the mismatch is visible
			// in the diff instead of masked by a zero.
			return s, nil
		}

		return d.String(), nil
	case BoolType:
		// Booleans arriving as text keep their literal form. Mapping them to
		// the protocol's native literal would hide backends that disagree on
		// boolean rendering.
		return s, nil
	default:
		if s == "" {
			return "(empty)", nil
		}

		return canonicalTimestamp(s), nil
	}
}

// canonicalTimestamp zero-pads date and time components to fixed width.
// Fractional seconds are kept exactly as the backend emitted them; no
// timezone conversion happens here.
func canonicalTimestamp(s string) string {
	m := timestampRE.FindStringSubmatch(s)
	if m == nil {
		return s
	}

	sep := " "
	if strings.ContainsRune(s, 'T') {
		sep = "T"
	}

	n := make([]int, 6)
	for i := range n {
		n[i], _ = strconv.Atoi(m[i+1])
	}

	return fmt.Sprintf("%04d-%02d-%02d%s%02d:%02d:%02d%s", n[0], n[1], n[2], sep, n[3], n[4], n[5], m[7])
}
