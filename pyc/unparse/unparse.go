// Package unparse renders a decompiled past.Module back to indented Python
// source text. It is a deliberately small formatter: no line-wrapping, no
// comment preservation, no faithful re-creation of the original formatting
// choices. It exists so cmd/unpyc has something to print and so end-to-end
// tests can compare decompiled output against expected source after
// whitespace normalization.
package unparse

import (
	"strings"

	"github.com/dr8co/unpyc/internal/past"
)

// Module renders every top-level statement in m, one per line, leaning on
// each past.Node's own String() method (internal/past already produces
// readable, if not always faithfully formatted, pseudo-Python).
func Module(m *past.Module) string {
	var b strings.Builder
	for _, s := range m.Body {
		text := s.String()
		b.WriteString(text)
		if !strings.HasSuffix(text, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Normalize collapses whitespace runs so decompiled output can be compared
// against expected source: it trims trailing space from every line and
// collapses blank-line runs, but preserves indentation structure.
func Normalize(src string) string {
	lines := strings.Split(src, "\n")
	var out []string
	blank := false
	for _, l := range lines {
		trimmed := strings.TrimRight(l, " \t")
		if trimmed == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, trimmed)
	}
	return strings.Join(out, "\n")
}
