// Package search ranks already-loaded records by approximate string similarity.
package search

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// fold lowercases s. A Caser is stateful, so one is built per call.
func fold(s string) string {
	return cases.Lower(language.Und).String(s)
}

func normalize(s string) string {
	return fold(strings.TrimSpace(s))
}

// Similarity returns a score in [0,1] where 1 means identical after trimming
// and lowercasing. An empty side scores 0 unless both are empty.
func Similarity(a, b string) float64 {
	return similarity(normalize(a), normalize(b))
}

// similarity expects normalized input.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}
