package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// SIMILARITY
// ============================================================================

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"chikondi", "chikonde", 1},
		{"ñandú", "nandu", 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshtein([]rune(tt.a), []rune(tt.b)), "%q/%q", tt.a, tt.b)
		assert.Equal(t, tt.want, levenshtein([]rune(tt.b), []rune(tt.a)), "symmetry %q/%q", tt.a, tt.b)
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("chikondi", "chikondi"))
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Equal(t, 1.0, Similarity("  Chikondi ", "CHIKONDI"))
	assert.Equal(t, 0.0, Similarity("", "x"))
	assert.Equal(t, 0.0, Similarity("x", "   "))

	got := Similarity("abc", "abd")
	assert.Greater(t, got, 0.0)
	assert.Less(t, got, 1.0)
	assert.InDelta(t, 1-1.0/3, got, 1e-9)

	assert.InDelta(t, 0.0, Similarity("abc", "xyz"), 1e-9)
}

func TestSimilarityCountsRunes(t *testing.T) {
	assert.InDelta(t, 1-1.0/3, Similarity("Zoë", "Zoe "), 1e-9)
	assert.InDelta(t, 1-2.0/5, Similarity("Ñandú", "nandu"), 1e-9)
}

// ============================================================================
// SEARCH
// ============================================================================

type person struct {
	id   string
	name string
	town *string
	age  int
}

func (p person) Field(name string) (any, bool) {
	switch name {
	case "name":
		return p.name, true
	case "town":
		if p.town == nil {
			return nil, false
		}
		return *p.town, true
	case "age":
		return p.age, true
	}
	return nil, false
}

func ids(people []person) []string {
	out := make([]string, 0, len(people))
	for _, p := range people {
		out = append(out, p.id)
	}
	return out
}

func TestSearchFindsTypos(t *testing.T) {
	records := []Fields{
		{"name": "Chikondi"},
		{"name": "John"},
	}
	got := Search(records, "Chikonde", []string{"name"}, DefaultThreshold)
	require.Len(t, got, 1)
	assert.Equal(t, "Chikondi", got[0]["name"])
}

func TestSearchBlankQueryReturnsInput(t *testing.T) {
	records := []person{{id: "1", name: "Tamanda"}, {id: "2", name: "Limbani"}, {id: "3", name: "Chisomo"}}

	for _, q := range []string{"", "   ", "\t\n"} {
		got := Search(records, q, []string{"name"}, 0.99)
		assert.Equal(t, records, got)
	}
}

func TestSearchOrdersByScoreDescending(t *testing.T) {
	records := []person{
		{id: "weak", name: "Mphande"},
		{id: "exact", name: "Mphatso"},
		{id: "contains", name: "Mphatsonga"},
		{id: "none", name: "Zzzzzz"},
	}
	got := Search(records, "mphatso", []string{"name"}, DefaultThreshold)
	assert.Equal(t, []string{"exact", "contains", "weak"}, ids(got))
}

func TestSearchIsStableOnTies(t *testing.T) {
	records := []person{
		{id: "a", name: "Grace Banda"},
		{id: "b", name: "Peter Banda"},
		{id: "c", name: "Banda Phiri"},
	}
	got := Search(records, "banda", []string{"name"}, DefaultThreshold)
	assert.Equal(t, []string{"a", "b", "c"}, ids(got))
}

func TestSearchWordPrefix(t *testing.T) {
	records := []person{{id: "1", name: "Thandiwe Mwale"}}
	matches := Rank(records, "mwa", []string{"name"}, DefaultThreshold)
	require.Len(t, matches, 1)
	assert.InDelta(t, 0.9, matches[0].Score, 1e-9, "substring beats prefix")

	matches = Rank([]person{{id: "1", name: "Thandiwe Mwale"}}, "mwalee", []string{"name"}, DefaultThreshold)
	require.Len(t, matches, 1)
	assert.InDelta(t, 1-1.0/6, matches[0].Score, 1e-9)
}

func TestSearchSkipsAbsentFields(t *testing.T) {
	zomba := "Zomba"
	records := []person{
		{id: "1", name: "Kondwani"},
		{id: "2", name: "Pemphero", town: &zomba},
	}
	got := Search(records, "zomba", []string{"town", "name"}, DefaultThreshold)
	assert.Equal(t, []string{"2"}, ids(got))
}

func TestSearchSkipsTypedNil(t *testing.T) {
	var missing *string
	nested := &missing
	records := []Fields{
		{"name": missing},
		{"name": nested},
		{"name": []string(nil)},
		{"name": "Nilda"},
	}

	got := SimpleSearch(records, "nil", []string{"name"})
	require.Len(t, got, 1)
	assert.Equal(t, "Nilda", got[0]["name"])

	assert.Empty(t, Rank(records[:3], "<nil>", []string{"name"}, DefaultThreshold))
	assert.Zero(t, Score(records[0], "<nil>", []string{"name"}))
	_, ok := records[0].Field("name")
	assert.False(t, ok)
}

func TestSearchCoercesNonStringFields(t *testing.T) {
	records := []person{{id: "1", name: "A", age: 42}, {id: "2", name: "B", age: 7}}
	got := Search(records, "42", []string{"age"}, DefaultThreshold)
	assert.Equal(t, []string{"1"}, ids(got))

	got = SimpleSearch(records, "7", []string{"age"})
	assert.Equal(t, []string{"2"}, ids(got))
}

func TestSearchUnknownFieldScoresZero(t *testing.T) {
	records := []person{{id: "1", name: "Chifundo"}}
	assert.Empty(t, Search(records, "chifundo", []string{"nickname"}, DefaultThreshold))
	assert.Equal(t, 0.0, Score(records[0], "chifundo", []string{"nickname"}))
	assert.Equal(t, 1.0, Score(records[0], " CHIFUNDO ", []string{"name"}))
}

func TestRankBlankQuery(t *testing.T) {
	records := []person{{id: "1"}, {id: "2"}}
	matches := Rank(records, " ", []string{"name"}, DefaultThreshold)
	require.Len(t, matches, 2)
	assert.Equal(t, "1", matches[0].Record.id)
	assert.Zero(t, matches[1].Score)
}

func TestSearchThresholdIsInclusive(t *testing.T) {
	records := []Fields{{"name": "abcd"}}
	assert.Len(t, Search(records, "abxy", []string{"name"}, 0.5), 1)
	assert.Empty(t, Search(records, "abxy", []string{"name"}, 0.51))
}

// ============================================================================
// SIMPLE SEARCH
// ============================================================================

func TestSimpleSearchOnlyReturnsSubstringMatches(t *testing.T) {
	records := []Fields{
		{"first": "Chimwemwe", "last": "Banda"},
		{"first": "Chikondi", "last": "Phiri"},
		{"first": "Limbani", "last": nil},
		{"first": "Kondwani", "last": "Mbewe"},
	}
	fields := []string{"first", "last"}

	for _, q := range []string{"kond", "BANDA", "wani", "phiri", "x", "mw"} {
		got := SimpleSearch(records, q, fields)
		for _, rec := range got {
			found := false
			for _, f := range fields {
				if v, ok := rec.Field(f); ok && strings.Contains(strings.ToLower(v.(string)), strings.ToLower(q)) {
					found = true
				}
			}
			assert.True(t, found, "query %q returned %v", q, rec)
		}
	}

	assert.Len(t, SimpleSearch(records, "kond", fields), 2)
	assert.Equal(t, records, SimpleSearch(records, "  ", fields))
}
