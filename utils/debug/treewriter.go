// Package debug renders diagnostic trees for logs and debug reports.
package debug

import (
	"fmt"
	"strconv"
	"strings"
)

// TreeWriter accumulates indented lines, two spaces per level.
type TreeWriter struct {
	w *strings.Builder
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{
		w: &strings.Builder{},
	}
}

func (tw TreeWriter) String() string {
	return tw.w.String()
}

func (tw TreeWriter) indent(depth int) {
	for range depth {
		tw.w.WriteString("  ")
	}
}

func (tw TreeWriter) Line(depth int, format string, args ...any) {
	tw.indent(depth)
	fmt.Fprintf(tw.w, format, args...)
	tw.w.WriteByte('\n')
}

// List writes label followed by comma separated items or "none".
func (tw TreeWriter) List(depth int, label string, items []string) {
	tw.indent(depth)
	tw.w.WriteString(label)
	tw.w.WriteString(": ")
	if len(items) == 0 {
		tw.w.WriteString("none")
	} else {
		tw.w.WriteString(strings.Join(items, ", "))
	}
	tw.w.WriteByte('\n')
}

// Anchor formats optional element index.
func Anchor(a *int) string {
	if a == nil {
		return "none"
	}
	return strconv.Itoa(*a)
}
