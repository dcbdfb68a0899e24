package executor

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/shibukawa/sqllogic"
	"github.com/shibukawa/sqllogic/parser"
)

var (
	diffHeaderFmt   = color.New(color.FgBlue, color.Bold).SprintfFunc()
	expectPrefixFmt = color.New(color.FgGreen).SprintFunc()
	actualPrefixFmt = color.New(color.FgRed).SprintFunc()
	expectValueFmt  = color.New(color.BgGreen, color.FgBlack).SprintfFunc()
	actualValueFmt  = color.New(color.BgRed, color.FgBlack).SprintfFunc()
)

// CountDiff reports a row count divergence.
type CountDiff struct {
	Expected int
	Actual   int
}

// CellDiff reports the first mismatching cell (zero-based indexes).
type CellDiff struct {
	Row      int
	Col      int
	Expected string
	Actual   string
}

// Diff is a structured comparison failure for one (record, backend) pair.
type Diff struct {
	Pos      string
	Label    string
	RowCount *CountDiff
	Cell     *CellDiff
	Expected []parser.Row
	Actual   [][]string
}

// Error implements the error interface.
func (d *Diff) Error() string {
	if d.RowCount != nil {
		return fmt.Sprintf("%s [%s]: expected %d rows, but found %d", d.Pos, d.Label, d.RowCount.Expected, d.RowCount.Actual)
	}

	if d.Cell != nil {
		return fmt.Sprintf("%s [%s]: row %d column %d: expected %q, but found %q",
			d.Pos, d.Label, d.Cell.Row+1, d.Cell.Col+1, d.Cell.Expected, d.Cell.Actual)
	}

	return fmt.Sprintf("%s [%s]: results differ", d.Pos, d.Label)
}

// Is lets errors.Is match any Diff against sqllogic.ErrAssertion.
func (d *Diff) Is(target error) bool {
	return target == sqllogic.ErrAssertion
}

// Format renders the diff for terminal output: the full expected and actual
// row sets with the first divergent cell highlighted.
func (d *Diff) Format() string {
	var sb strings.Builder

	sb.WriteString(diffHeaderFmt("%s [%s]", d.Pos, d.Label))
	sb.WriteString("\n")

	if d.RowCount != nil {
		fmt.Fprintf(&sb, "  row count: expected %d, actual %d\n", d.RowCount.Expected, d.RowCount.Actual)
	}

	sb.WriteString("  " + expectPrefixFmt("- expected") + "\n")

	for i, row := range d.Expected {
		sb.WriteString("    " + d.formatRow([]string(row), i, true) + "\n")
	}

	sb.WriteString("  " + actualPrefixFmt("+ actual") + "\n")

	for i, row := range d.Actual {
		sb.WriteString("    " + d.formatRow(row, i, false) + "\n")
	}

	return sb.String()
}

func (d *Diff) formatRow(row []string, rowIdx int, expected bool) string {
	cells := make([]string, len(row))

	for i, cell := range row {
		if d.Cell != nil && rowIdx == d.Cell.Row && i == d.Cell.Col {
			if expected {
				cells[i] = expectValueFmt("%s", cell)
			} else {
				cells[i] = actualValueFmt("%s", cell)
			}

			continue
		}

		cells[i] = cell
	}

	return strings.Join(cells, " ")
}
