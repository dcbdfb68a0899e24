package parser

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind represents the directive kind of a test record
type Kind int

const (
	StatementOK Kind = iota
	StatementError
	Query
)

// String returns the directive keyword form of the kind.
func (k Kind) String() string {
	switch k {
	case StatementOK:
		return "statement ok"
	case StatementError:
		return "statement error"
	case Query:
		return "statement query"
	default:
		return "unknown"
	}
}

// Row is one expected result row: an ordered sequence of string cells.
type Row []string

// ResultSet is one expected result block. A wildcard block accepts any
// backend result.
type ResultSet struct {
	Rows     []Row
	Wildcard bool
}

// Record is one parsed directive block from a fixture file.
type Record struct {
	Kind Kind
	File string
	Line int // line number of the directive keyword
	SQL  string

	// ErrorPattern holds the raw pattern of a `statement error` directive.
	ErrorPattern string
	errorRE      *regexp.Regexp

	// TypeSpec is the per-column type tag sequence of a query directive,
	// e.g. "ITB". One tag per result column.
	TypeSpec string

	// Labels restricts the record to the named backends. Empty means all
	// configured backends.
	Labels []string

	// Expected is the shared result block. Nil when the record carries
	// label-specific blocks instead.
	Expected *ResultSet

	// LabelExpected maps a backend label to its own expected block, for
	// results that legitimately differ per backend.
	LabelExpected map[string]ResultSet

	raw []string
}

// Pos returns the file:line position of the record for reporting.
func (r *Record) Pos() string {
	return fmt.Sprintf("%s:%d", r.File, r.Line)
}

// AppliesTo reports whether the record should run against the labeled
// backend. Records without labels apply to every backend.
func (r *Record) AppliesTo(label string) bool {
	if len(r.Labels) == 0 {
		return true
	}

	for _, l := range r.Labels {
		if l == label {
			return true
		}
	}

	return false
}

// ExpectedFor returns the expected result block applicable to the labeled
// backend: the label-specific block if one exists, else the shared block.
func (r *Record) ExpectedFor(label string) (ResultSet, bool) {
	if rs, ok := r.LabelExpected[label]; ok {
		return rs, true
	}

	if r.Expected != nil {
		return *r.Expected, true
	}

	return ResultSet{}, false
}

// OpaqueText reports whether result rows are a single opaque text cell,
// in which case the whole row line is one cell (multi-word comparisons).
func (r *Record) OpaqueText() bool {
	return r.TypeSpec == "T"
}

// MatchError reports whether a backend error message matches the
// `statement error` pattern.
func (r *Record) MatchError(msg string) bool {
	if r.errorRE == nil {
		return false
	}

	return r.errorRE.MatchString(msg)
}

// Serialize reproduces the record's directive and expected-result text
// exactly as it appeared in the fixture file, with a trailing newline.
func (r *Record) Serialize() string {
	return strings.Join(r.raw, "\n") + "\n"
}

// Suite is the ordered record sequence parsed from one fixture file.
type Suite struct {
	File    string
	Records []*Record
}
