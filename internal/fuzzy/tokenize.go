// Package fuzzy provides token-overlap similarity search over cached solutions.
package fuzzy

import (
	"sort"
	"strings"
	"unicode"
)

// stopWords are dropped before scoring. The product serves English and
// German content, so both lists are included.
var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		a an and are as at be been but by can could did do does for from had has have
		he her his how i if in into is it its me my no not of on or our she should so
		such than that the their them then there these they this those to too was we
		were what when where which who why will with would you your
		aber als am an auch auf aus bei bin bis da das dass dem den der des die doch
		du ein eine einem einen einer eines er es fur für hat ich ihr im in ist ja
		kein keine mit nach nicht noch nur oder sein sich sie sind so um und uns von
		vor war wie wir wird zu zum zur über`) {
		stopWords[w] = struct{}{}
	}
}

// Tokenize converts free text into a sorted, de-duplicated set of
// significant tokens: case-folded, split on anything that is not a letter or
// digit, stop words and single characters removed, plurals lightly stemmed.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if _, stop := stopWords[field]; stop {
			continue
		}
		token := stem(field)
		if len([]rune(token)) < 2 {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
	}

	sort.Strings(tokens)
	return tokens
}

// stem strips common English plural suffixes.
func stem(word string) string {
	if len(word) <= 3 {
		return word
	}
	switch {
	case strings.HasSuffix(word, "sses"):
		return strings.TrimSuffix(word, "es")
	case strings.HasSuffix(word, "ies"):
		return strings.TrimSuffix(word, "s")
	case strings.HasSuffix(word, "ss"), strings.HasSuffix(word, "us"), strings.HasSuffix(word, "is"):
		return word
	case strings.HasSuffix(word, "s"):
		return strings.TrimSuffix(word, "s")
	}
	return word
}

// Overlap returns the number of tokens present in both sorted sets and their
// Jaccard similarity.
func Overlap(a, b []string) (shared int, score float64) {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			shared++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}

	union := len(a) + len(b) - shared
	if union == 0 {
		return 0, 0
	}
	return shared, float64(shared) / float64(union)
}
