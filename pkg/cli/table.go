package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Table writes column-aligned rows. The header and a dash divider are
// written on the first Row, so an empty table prints nothing.
type Table struct {
	w       *tabwriter.Writer
	headers []string
	prefix  string
	written bool
}

// NewTable creates a table writing to out.
func NewTable(out io.Writer, headers ...string) *Table {
	return &Table{
		w:       tabwriter.NewWriter(out, 0, 0, 2, ' ', 0),
		headers: headers,
	}
}

// WithPrefix sets a string prepended to every line, for indented sub-tables.
func (t *Table) WithPrefix(prefix string) *Table {
	t.prefix = prefix
	return t
}

// Row writes one row. Empty values are shown as "-".
func (t *Table) Row(values ...string) {
	t.ensureHeaders()
	cells := make([]string, len(values))
	for i, v := range values {
		cells[i] = Dash(v)
	}
	fmt.Fprintln(t.w, t.prefix+strings.Join(cells, "\t"))
}

// Flush writes buffered output. Nothing is printed if no rows were added.
func (t *Table) Flush() {
	if !t.written {
		return
	}
	t.w.Flush()
}

func (t *Table) ensureHeaders() {
	if t.written {
		return
	}
	t.written = true
	fmt.Fprintln(t.w, t.prefix+strings.Join(t.headers, "\t"))
	dividers := make([]string, len(t.headers))
	for i, h := range t.headers {
		dividers[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(t.w, t.prefix+strings.Join(dividers, "\t"))
}
