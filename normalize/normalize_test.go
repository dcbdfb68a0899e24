package normalize

import (
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/shibukawa/sqllogic"
)

func TestCellNull(t *testing.T) {
	for _, typ := range []byte{IntType, TextType, FloatType, BoolType} {
		s, err := Cell(nil, typ, sqllogic.ProtocolMySQL)
		assert.NoError(t, err)
		assert.Equal(t, "NULL", s)
	}
}

func TestCellBoolByProtocol(t *testing.T) {
	tests := []struct {
		proto sqllogic.Protocol
		raw   bool
		want  string
	}{
		{sqllogic.ProtocolMySQL, true, "1"},
		{sqllogic.ProtocolMySQL, false, "0"},
		{sqllogic.ProtocolSQLite, true, "1"},
		{sqllogic.ProtocolHTTP, true, "true"},
		{sqllogic.ProtocolHTTP, false, "false"},
		{sqllogic.ProtocolPostgres, true, "true"},
	}

	for _, tt := range tests {
		s, err := Cell(tt.raw, BoolType, tt.proto)
		assert.NoError(t, err)
		assert.Equal(t, tt.want, s)
	}
}

func TestCellBoolTextPassthrough(t *testing.T) {
	// A boolean delivered as text keeps its literal form so divergent
	// renderings across backends stay visible.
	s, err := Cell("1", BoolType, sqllogic.ProtocolHTTP)
	assert.NoError(t, err)
	assert.Equal(t, "1", s)

	s, err = Cell("true", BoolType, sqllogic.ProtocolMySQL)
	assert.NoError(t, err)
	assert.Equal(t, "true", s)
}

func TestCellInteger(t *testing.T) {
	s, err := Cell(int64(42), IntType, sqllogic.ProtocolMySQL)
	assert.NoError(t, err)
	assert.Equal(t, "42", s)

	s, err = Cell("007", IntType, sqllogic.ProtocolMySQL)
	assert.NoError(t, err)
	assert.Equal(t, "7", s)

	s, err = Cell("+12", IntType, sqllogic.ProtocolHTTP)
	assert.NoError(t, err)
	assert.Equal(t, "12", s)

	s, err = Cell(uint64(18446744073709551615), IntType, sqllogic.ProtocolMySQL)
	assert.NoError(t, err)
	assert.Equal(t, "18446744073709551615", s)
}

func TestCellFloat(t *testing.T) {
	s, err := Cell(float64(3.5), FloatType, sqllogic.ProtocolMySQL)
	assert.NoError(t, err)
	assert.Equal(t, "3.5", s)

	// Trailing zeros vanish in the canonical decimal form.
	s, err = Cell("3.500", FloatType, sqllogic.ProtocolMySQL)
	assert.NoError(t, err)
	assert.Equal(t, "3.5", s)

	// A float under an integer tag truncates toward zero.
	s, err = Cell(float64(3.9), IntType, sqllogic.ProtocolMySQL)
	assert.NoError(t, err)
	assert.Equal(t, "3", s)
}

func TestCellText(t *testing.T) {
	s, err := Cell("hello", TextType, sqllogic.ProtocolMySQL)
	assert.NoError(t, err)
	assert.Equal(t, "hello", s)

	s, err = Cell("", TextType, sqllogic.ProtocolMySQL)
	assert.NoError(t, err)
	assert.Equal(t, "(empty)", s)

	s, err = Cell([]byte("bytes"), TextType, sqllogic.ProtocolMySQL)
	assert.NoError(t, err)
	assert.Equal(t, "bytes", s)
}

func TestCellTimestamp(t *testing.T) {
	s, err := Cell("2024-1-2 3:4:5", TextType, sqllogic.ProtocolMySQL)
	assert.NoError(t, err)
	assert.Equal(t, "2024-01-02 03:04:05", s)

	s, err = Cell("2024-01-02T03:04:05.123456", TextType, sqllogic.ProtocolHTTP)
	assert.NoError(t, err)
	assert.Equal(t, "2024-01-02T03:04:05.123456", s)

	// Non-timestamp text stays verbatim.
	s, err = Cell("2024-01", TextType, sqllogic.ProtocolMySQL)
	assert.NoError(t, err)
	assert.Equal(t, "2024-01", s)
}

func TestCellUnsupportedType(t *testing.T) {
	_, err := Cell(struct{}{}, TextType, sqllogic.ProtocolMySQL)
	assert.IsError(t, err, sqllogic.ErrUnsupportedType)
}

func TestRows(t *testing.T) {
	raw := [][]any{
		{int64(1), "one", true},
		{int64(2), nil, false},
	}

	rows, err := Rows(raw, "ITB", sqllogic.ProtocolMySQL)
	assert.NoError(t, err)
	assert.Equal(t, [][]string{
		{"1", "one", "1"},
		{"2", "NULL", "0"},
	}, rows)
}

func TestRowsColumnCountMismatch(t *testing.T) {
	_, err := Rows([][]any{{int64(1)}}, "II", sqllogic.ProtocolMySQL)
	assert.Error(t, err)
}
