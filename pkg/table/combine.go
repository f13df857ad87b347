// Package table reassembles the CSV fragments of a partitioned fetch into
// one table.
package table

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Errors returned by Combine.
var (
	// ErrNoFragments is returned for an empty fragment sequence; with no
	// first fragment the header would be undefined.
	ErrNoFragments = errors.New("no fragments to combine")

	// ErrHeaderMismatch is returned when a fragment's header differs from
	// the first fragment's header. Silently concatenating rows under a
	// different header would corrupt the dataset.
	ErrHeaderMismatch = errors.New("fragment header mismatch")
)

// Table is a combined result: the header row of the first fragment and the
// data rows of every fragment in submission order.
type Table struct {
	Header string
	Rows   []string
}

// Combine merges CSV fragments, each a header row plus zero or more data
// rows, into one Table. Fragment order is preserved; every fragment's
// header must equal the first fragment's header.
func Combine(fragments [][]byte) (*Table, error) {
	if len(fragments) == 0 {
		return nil, ErrNoFragments
	}

	t := &Table{}
	for i, fragment := range fragments {
		header, rows := splitFragment(fragment)
		if i == 0 {
			t.Header = header
		} else if header != t.Header {
			return nil, fmt.Errorf("%w: fragment %d has header %q, want %q",
				ErrHeaderMismatch, i, header, t.Header)
		}
		t.Rows = append(t.Rows, rows...)
	}
	return t, nil
}

// Append adds one more fragment's data rows to an existing table, applying
// the same header check as Combine.
func (t *Table) Append(fragment []byte) error {
	header, rows := splitFragment(fragment)
	if header != t.Header {
		return fmt.Errorf("%w: got header %q, want %q", ErrHeaderMismatch, header, t.Header)
	}
	t.Rows = append(t.Rows, rows...)
	return nil
}

// RowCount returns the number of data rows.
func (t *Table) RowCount() int {
	return len(t.Rows)
}

// WriteTo writes the table as CSV with LF line endings.
func (t *Table) WriteTo(w io.Writer) (int64, error) {
	var total int64
	n, err := io.WriteString(w, t.Header+"\n")
	total += int64(n)
	if err != nil {
		return total, fmt.Errorf("write header: %w", err)
	}
	for _, row := range t.Rows {
		n, err := io.WriteString(w, row+"\n")
		total += int64(n)
		if err != nil {
			return total, fmt.Errorf("write row: %w", err)
		}
	}
	return total, nil
}

// String renders the table as CSV.
func (t *Table) String() string {
	var b strings.Builder
	_, _ = t.WriteTo(&b)
	return b.String()
}

// splitFragment separates a fragment into its header line and data rows.
// Line endings are normalized: CR-LF is accepted, trailing blank lines are
// dropped.
func splitFragment(fragment []byte) (header string, rows []string) {
	lines := strings.Split(string(fragment), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	// Drop trailing blank lines left by the final newline.
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return "", nil
	}
	return lines[0], lines[1:]
}
