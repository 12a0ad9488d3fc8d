package config

import (
	"strings"
	"unicode"
)

const badFileName = "_bad_file_name_"

// CleanFileName removes characters not allowed in file name on current
// platform along with control characters. Leading dots are dropped so result
// is never hidden, trailing dots and spaces are dropped as Windows tools
// cannot handle them.
func CleanFileName(in string) string {
	out := strings.Map(func(sym rune) rune {
		if sym == 0 || unicode.IsControl(sym) || reserved(sym) {
			return -1
		}
		return sym
	}, in)
	out = strings.TrimRight(strings.TrimLeft(out, "."), ". ")
	if len(strings.TrimSpace(out)) == 0 {
		out = badFileName
	}
	return out
}
