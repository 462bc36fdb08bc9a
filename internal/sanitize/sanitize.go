// Package sanitize reduces user-supplied names to the characters allowed in API path segments.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/listenupapp/readalong/internal/errors"
)

var (
	// Matches anything outside the path segment alphabet.
	disallowedRe = regexp.MustCompile(`[^A-Za-z0-9_.\-]+`)
	// Matches whitespace runs, which book ids encode as underscores.
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Segment folds s to ASCII and strips every character outside [A-Za-z0-9_.-].
// It returns a validation error when nothing usable remains or the result is a
// relative directory reference such as "..".
func Segment(s string) (string, error) {
	out := fold(s)
	out = disallowedRe.ReplaceAllString(out, "")

	if strings.Trim(out, ".") == "" {
		return "", errors.Validationf("invalid name %q", s)
	}
	return out, nil
}

// BookID sanitizes an audiobook id. Whitespace becomes "_" the way the
// processing pipeline names book directories.
func BookID(s string) (string, error) {
	return Segment(whitespaceRe.ReplaceAllString(strings.TrimSpace(s), "_"))
}

// Filename sanitizes a file name and requires the given extension (for example ".wav").
func Filename(s, ext string) (string, error) {
	name, err := Segment(s)
	if err != nil {
		return "", err
	}
	if ext != "" && !HasExt(name, ext) {
		return "", errors.Validationf("%s: must be a %s file", name, strings.TrimPrefix(ext, "."))
	}
	return name, nil
}

// HasExt reports whether name ends with ext, ignoring case.
func HasExt(name, ext string) bool {
	return len(name) > len(ext) && strings.EqualFold(name[len(name)-len(ext):], ext)
}

func fold(s string) string {
	// Decompose accented characters, then drop the non-ASCII remainder.
	s = norm.NFKD.String(s)
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)
}
