// Package display renders RBFM/RM query results for rbfmctl, the same job
// tinySQL's own cmd/repl printTable performs for its SQL shell. Unlike
// tinySQL's byte-length padding, column widths here are computed with
// golang.org/x/text/width so East Asian wide runes (already recorded in
// tinySQL's go.mod but never wired to anything) line up correctly in a
// monospace terminal.
package display

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/width"
)

// visualWidth returns the terminal column width of s, counting East Asian
// wide and fullwidth runes as two columns and everything else as one.
func visualWidth(s string) int {
	w := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			w += 2
		default:
			w++
		}
	}
	return w
}

func padRight(s string, w int) string {
	if pad := w - visualWidth(s); pad > 0 {
		return s + strings.Repeat(" ", pad)
	}
	return s
}

// Cell stringifies a decoded tuple value the way internal/tuple.Format does
// for NULLs, so table output and "Name: value" record output agree.
func Cell(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

// Table writes cols and rows as an aligned, NULL-aware text table.
func Table(w io.Writer, cols []string, rows [][]string) {
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = visualWidth(c)
	}
	for _, r := range rows {
		for i, c := range r {
			if vw := visualWidth(c); vw > widths[i] {
				widths[i] = vw
			}
		}
	}

	writeRow := func(cells []string) {
		for i, c := range cells {
			fmt.Fprint(w, padRight(c, widths[i]))
			if i < len(cells)-1 {
				fmt.Fprint(w, "  ")
			}
		}
		fmt.Fprintln(w)
	}

	writeRow(cols)
	rule := make([]string, len(cols))
	for i, wdt := range widths {
		rule[i] = strings.Repeat("-", wdt)
	}
	writeRow(rule)
	for _, r := range rows {
		writeRow(r)
	}
}

// Record writes one tuple as "Name: value, Name2: value2", matching
// internal/tuple.Format's convention.
func Record(w io.Writer, cols []string, values []any) {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c + ": " + Cell(values[i])
	}
	fmt.Fprintln(w, strings.Join(parts, ", "))
}
