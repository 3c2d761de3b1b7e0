package scratch

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxBasisRunes = 64
	defaultBasis  = "upload"
)

// foldMarks returns a fresh transformer each call: a Chain keeps internal
// buffers and must not be shared between goroutines.
func foldMarks() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// SanitizeBasis turns an arbitrary client filename into a safe file name stem.
// Directory components and the extension are dropped, diacritics are folded,
// and anything outside letters, digits, dot, dash and underscore becomes '_'.
func SanitizeBasis(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(strings.TrimSpace(name))
	if ext := filepath.Ext(name); ext != "" && ext != name {
		name = strings.TrimSuffix(name, ext)
	}

	folded, _, err := transform.String(foldMarks(), name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	count := 0
	for _, r := range folded {
		if count >= maxBasisRunes {
			break
		}
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
		count++
	}

	out := strings.Trim(b.String(), "._")
	if out == "" {
		return defaultBasis
	}
	return out
}

// NormalizeExtension lowercases an extension and strips a leading dot.
func NormalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// ExtensionOf returns the normalized extension of a filename, or "" when it has none.
func ExtensionOf(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := filepath.Ext(name)
	if ext == "" || ext == name {
		return ""
	}
	return NormalizeExtension(ext)
}

// StemOf returns the filename without directories or extension.
func StemOf(name string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if ext := filepath.Ext(name); ext != "" && ext != name {
		return strings.TrimSuffix(name, ext)
	}
	return name
}
