package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// unknownFileName is returned when nothing usable survives sanitizing.
const unknownFileName = "UNKNOWN"

// controlStripper drops the characters that break single-line output and
// shell environment values.
var controlStripper = strings.NewReplacer(
	"\n", "",
	"\r", "",
	"\t", "",
	"\x00", "",
)

// SanitizeBasic removes newlines, carriage returns, tabs and NULs, then
// drops one leading hyphen so the value cannot be mistaken for a flag.
func SanitizeBasic(value string) string {
	value = controlStripper.Replace(value)
	return strings.TrimPrefix(value, "-")
}

// SanitizeFileName reduces value to ASCII letters, digits and the
// characters #$+,-.=@_ . Every other character becomes an underscore, runs
// of underscores collapse, and leading/trailing underscores and hyphens are
// trimmed. Returns "UNKNOWN" when nothing is left.
func SanitizeFileName(value string) string {
	value = foldAccents(SanitizeBasic(value))

	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if allowedFileRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}

	out := b.String()
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	out = strings.Trim(out, "_-")
	if out == "" {
		return unknownFileName
	}
	return out
}

func allowedFileRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune("#$+,-.=@_", r)
}

// foldAccents decomposes the string and drops combining marks. Characters
// without an ASCII base are left alone for the allow-list to replace.
func foldAccents(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return out
}
