package search

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/spf13/cast"
)

const (
	// DefaultThreshold is the minimum score a record needs to be kept by Search.
	DefaultThreshold = 0.5

	containsScore = 0.9
	prefixScore   = 0.85
)

// Record exposes named fields to the matcher. ok is false when the field is
// absent or null.
type Record interface {
	Field(name string) (value any, ok bool)
}

// Fields is a Record backed by a map.
type Fields map[string]any

// Field implements Record.
func (f Fields) Field(name string) (any, bool) {
	v, ok := f[name]
	if !ok || isNull(v) {
		return nil, false
	}
	return v, true
}

// Match pairs a record with its score.
type Match[R Record] struct {
	Record R
	Score  float64
}

// Search returns the records scoring at least threshold, best first. Ties keep
// their input order. A blank query returns records unchanged.
func Search[R Record](records []R, query string, fields []string, threshold float64) []R {
	if strings.TrimSpace(query) == "" {
		return records
	}
	matches := Rank(records, query, fields, threshold)
	out := make([]R, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Record)
	}
	return out
}

// Rank is Search that also reports each record's score. A blank query yields
// every record in input order with a zero score.
func Rank[R Record](records []R, query string, fields []string, threshold float64) []Match[R] {
	q := normalize(query)
	if q == "" {
		out := make([]Match[R], 0, len(records))
		for _, rec := range records {
			out = append(out, Match[R]{Record: rec})
		}
		return out
	}

	matches := make([]Match[R], 0, len(records))
	for _, rec := range records {
		score := scoreRecord(rec, q, fields)
		if score >= threshold {
			matches = append(matches, Match[R]{Record: rec, Score: score})
		}
	}
	slices.SortStableFunc(matches, func(a, b Match[R]) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return matches
}

// Score computes the score of a single record against query.
func Score(rec Record, query string, fields []string) float64 {
	q := normalize(query)
	if q == "" {
		return 0
	}
	return scoreRecord(rec, q, fields)
}

// SimpleSearch keeps records where any field contains query, ignoring case.
func SimpleSearch[R Record](records []R, query string, fields []string) []R {
	q := normalize(query)
	if q == "" {
		return records
	}
	out := make([]R, 0, len(records))
	for _, rec := range records {
		for _, name := range fields {
			value, ok := fieldText(rec, name)
			if ok && strings.Contains(value, q) {
				out = append(out, rec)
				break
			}
		}
	}
	return out
}

// scoreRecord expects q to be normalized.
func scoreRecord(rec Record, q string, fields []string) float64 {
	best := 0.0
	for _, name := range fields {
		value, ok := fieldText(rec, name)
		if !ok {
			continue
		}
		if strings.Contains(value, q) {
			best = max(best, containsScore)
		}
		best = max(best, similarity(q, strings.TrimSpace(value)))
		for _, word := range strings.Fields(value) {
			if strings.HasPrefix(word, q) {
				best = max(best, prefixScore)
			}
			best = max(best, similarity(q, word))
		}
	}
	return best
}

// fieldText returns the lowercased string form of a field.
func fieldText(rec Record, name string) (string, bool) {
	raw, ok := rec.Field(name)
	if !ok || isNull(raw) {
		return "", false
	}
	s, err := cast.ToStringE(raw)
	if err != nil {
		s = fmt.Sprint(raw)
	}
	return fold(s), true
}

// isNull reports a nil value, including a typed nil such as (*string)(nil)
// and pointers that are nil after dereferencing.
func isNull(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	for {
		switch rv.Kind() {
		case reflect.Pointer, reflect.Interface:
			if rv.IsNil() {
				return true
			}
			rv = rv.Elem()
		case reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return rv.IsNil()
		default:
			return false
		}
	}
}
