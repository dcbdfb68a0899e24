package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/shibukawa/sqllogic"
)

// Parse errors. All are fatal to the file being parsed and surface through
// ParseError, which also matches sqllogic.ErrParse.
var (
	// ErrInvalidDirective indicates a malformed directive keyword line.
	ErrInvalidDirective = errors.New("invalid directive")
	// ErrInvalidTypeSpec indicates an unknown column type tag in a query directive.
	ErrInvalidTypeSpec = errors.New("invalid type spec")
	// ErrInvalidErrorPattern indicates the `statement error` pattern is not a valid regular expression.
	ErrInvalidErrorPattern = errors.New("invalid error pattern")
	// ErrUndeclaredLabel indicates a label that names no configured backend.
	ErrUndeclaredLabel = errors.New("undeclared backend label")
	// ErrMixedResultBlocks indicates a record mixes labeled and unlabeled result blocks.
	ErrMixedResultBlocks = errors.New("mixed labeled and unlabeled result blocks")
	// ErrDuplicateResultBlock indicates two result blocks for the same label in one record.
	ErrDuplicateResultBlock = errors.New("duplicate result block for label")
	// ErrMissingBlankLine indicates two directives without a terminating blank line between them.
	ErrMissingBlankLine = errors.New("missing blank line between directives")
	// ErrMissingSQL indicates a directive with no SQL body.
	ErrMissingSQL = errors.New("directive has no SQL statement")
	// ErrMissingResultBlock indicates a query directive without a result separator.
	ErrMissingResultBlock = errors.New("query has no result block")
	// ErrCellCountMismatch indicates an expected row whose cell count differs from the type spec.
	ErrCellCountMismatch = errors.New("expected row cell count does not match type spec")
)

// typeTags is the column type tag alphabet: integer, text, float, boolean.
const typeTags = "ITFB"

var labelListRE = regexp.MustCompile(`^label\(([^)]+)\)$`)

// ParseError identifies the malformed construct and its position.
type ParseError struct {
	File string
	Line int
	Err  error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match any ParseError against sqllogic.ErrParse.
func (e *ParseError) Is(target error) bool {
	return target == sqllogic.ErrParse
}

// ParseFile parses one fixture file into a Suite. declaredLabels is the set
// of configured backend labels; any other label in the file is a ParseError.
func ParseFile(path string, declaredLabels []string) (*Suite, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixture file: %w", err)
	}
	defer f.Close()

	return Parse(path, f, declaredLabels)
}

// Parse parses fixture text read from r. file is the identifier used in
// record positions and reporting.
func Parse(file string, r io.Reader, declaredLabels []string) (*Suite, error) {
	declared := make(map[string]bool, len(declaredLabels))
	for _, l := range declaredLabels {
		declared[l] = true
	}

	var lines []string

	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for s.Scan() {
		lines = append(lines, strings.TrimSuffix(s.Text(), "\r"))
	}

	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}

	p := &parser{file: file, lines: lines, declared: declared}

	return p.parse()
}

type parser struct {
	file     string
	lines    []string
	i        int
	declared map[string]bool
}

func (p *parser) parse() (*Suite, error) {
	suite := &Suite{File: p.file}

	for p.i < len(p.lines) {
		t := strings.TrimSpace(p.lines[p.i])
		if t == "" || isComment(t) {
			p.i++
			continue
		}

		rec, err := p.parseRecord()
		if err != nil {
			return nil, err
		}

		suite.Records = append(suite.Records, rec)

		// Records are terminated by a blank line (or EOF).
		if p.i < len(p.lines) && strings.TrimSpace(p.lines[p.i]) != "" {
			return nil, p.errorf(p.i+1, "%w: record at %s", ErrMissingBlankLine, rec.Pos())
		}
	}

	return suite, nil
}

func (p *parser) parseRecord() (*Record, error) {
	start := p.i
	directive := strings.TrimSpace(p.lines[p.i])
	fields := strings.Fields(directive)
	rec := &Record{File: p.file, Line: p.i + 1}

	if fields[0] != "statement" || len(fields) < 2 {
		return nil, p.errorf(p.i+1, "%w: %q", ErrInvalidDirective, directive)
	}

	switch fields[1] {
	case "ok":
		if len(fields) != 2 {
			return nil, p.errorf(p.i+1, "%w: %q", ErrInvalidDirective, directive)
		}

		rec.Kind = StatementOK
	case "error":
		rec.Kind = StatementError

		pattern := strings.TrimSpace(strings.TrimPrefix(directive, "statement error"))
		if pattern == "" {
			return nil, p.errorf(p.i+1, "%w: statement error requires a pattern", ErrInvalidDirective)
		}

		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, p.errorf(p.i+1, "%w: %q: %v", ErrInvalidErrorPattern, pattern, err)
		}

		rec.ErrorPattern = pattern
		rec.errorRE = re
	case "query":
		rec.Kind = Query

		if len(fields) < 3 || len(fields) > 4 {
			return nil, p.errorf(p.i+1, "%w: %q", ErrInvalidDirective, directive)
		}

		for _, c := range fields[2] {
			if !strings.ContainsRune(typeTags, c) {
				return nil, p.errorf(p.i+1, "%w: %q must use 'I', 'T', 'F', or 'B'", ErrInvalidTypeSpec, fields[2])
			}
		}

		rec.TypeSpec = fields[2]

		if len(fields) == 4 {
			if err := p.parseLabelList(rec, fields[3]); err != nil {
				return nil, err
			}
		}
	default:
		return nil, p.errorf(p.i+1, "%w: %q", ErrInvalidDirective, directive)
	}

	p.i++

	if err := p.parseSQL(rec); err != nil {
		return nil, err
	}

	if rec.Kind == Query {
		if err := p.parseResultBlocks(rec); err != nil {
			return nil, err
		}
	}

	rec.raw = p.lines[start:p.i]

	return rec, nil
}

func (p *parser) parseLabelList(rec *Record, spec string) error {
	m := labelListRE.FindStringSubmatch(spec)
	if m == nil {
		return p.errorf(p.i+1, "%w: %q", ErrInvalidDirective, spec)
	}

	for _, name := range strings.Split(m[1], ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			return p.errorf(p.i+1, "%w: empty label name in %q", ErrInvalidDirective, spec)
		}

		if !p.declared[name] {
			return p.errorf(p.i+1, "%w: %q", ErrUndeclaredLabel, name)
		}

		rec.Labels = append(rec.Labels, name)
	}

	return nil
}

func (p *parser) parseSQL(rec *Record) error {
	var body []string

	for p.i < len(p.lines) {
		line := p.lines[p.i]
		t := strings.TrimSpace(line)

		if t == "" {
			if rec.Kind == Query {
				return p.errorf(p.i+1, "%w: query at %s", ErrMissingResultBlock, rec.Pos())
			}

			break
		}

		if rec.Kind == Query && isSeparator(t) {
			break
		}

		if rec.Kind != Query && strings.HasPrefix(t, "statement ") {
			return p.errorf(p.i+1, "%w: record at %s", ErrMissingBlankLine, rec.Pos())
		}

		body = append(body, line)
		p.i++
	}

	if rec.Kind == Query && p.i >= len(p.lines) {
		return p.errorf(p.i, "%w: query at %s", ErrMissingResultBlock, rec.Pos())
	}

	rec.SQL = strings.TrimSpace(strings.Join(body, "\n"))
	if rec.SQL == "" {
		return p.errorf(rec.Line, "%w: %s", ErrMissingSQL, rec.Kind)
	}

	return nil
}

// parseResultBlocks parses either exactly one unlabeled block or one or more
// labeled blocks. p.i points at the first separator line on entry.
func (p *parser) parseResultBlocks(rec *Record) error {
	sep := strings.TrimSpace(p.lines[p.i])

	if sep == "----" {
		p.i++

		rs, err := p.parseRows(rec, false)
		if err != nil {
			return err
		}

		rec.Expected = &rs

		return nil
	}

	rec.LabelExpected = make(map[string]ResultSet)

	for {
		label := strings.TrimSpace(strings.TrimPrefix(sep, "----"))
		if !p.declared[label] {
			return p.errorf(p.i+1, "%w: %q", ErrUndeclaredLabel, label)
		}

		if _, dup := rec.LabelExpected[label]; dup {
			return p.errorf(p.i+1, "%w: %q", ErrDuplicateResultBlock, label)
		}

		p.i++

		rs, err := p.parseRows(rec, true)
		if err != nil {
			return err
		}

		rec.LabelExpected[label] = rs

		if p.i >= len(p.lines) {
			return nil
		}

		t := strings.TrimSpace(p.lines[p.i])
		if t == "" {
			return nil
		}

		if t == "----" {
			return p.errorf(p.i+1, "%w: record at %s", ErrMixedResultBlocks, rec.Pos())
		}

		sep = t
	}
}

func (p *parser) parseRows(rec *Record, labeled bool) (ResultSet, error) {
	var rows []Row

	for p.i < len(p.lines) {
		line := p.lines[p.i]
		t := strings.TrimSpace(line)

		if t == "" {
			break
		}

		if isSeparator(t) {
			if labeled {
				break
			}

			return ResultSet{}, p.errorf(p.i+1, "%w: record at %s", ErrMixedResultBlocks, rec.Pos())
		}

		if rec.OpaqueText() {
			// Single opaque text column: the whole line is one cell.
			rows = append(rows, Row{line})
		} else {
			rows = append(rows, Row(strings.Fields(t)))
		}

		p.i++
	}

	if len(rows) == 1 && len(rows[0]) == 1 && rows[0][0] == "*" {
		return ResultSet{Wildcard: true}, nil
	}

	if !rec.OpaqueText() {
		for n, row := range rows {
			if len(row) != len(rec.TypeSpec) {
				return ResultSet{}, p.errorf(rec.Line, "%w: row %d has %d cells, type spec %q wants %d",
					ErrCellCountMismatch, n+1, len(row), rec.TypeSpec, len(rec.TypeSpec))
			}
		}
	}

	return ResultSet{Rows: rows}, nil
}

func (p *parser) errorf(line int, format string, args ...any) error {
	return &ParseError{File: p.file, Line: line, Err: fmt.Errorf(format, args...)}
}

func isSeparator(t string) bool {
	return t == "----" || strings.HasPrefix(t, "---- ")
}

func isComment(t string) bool {
	return strings.HasPrefix(t, "--") && !isSeparator(t)
}
