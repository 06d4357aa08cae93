package rag

import (
	"sort"
	"strings"
	"unicode"
)

// Lexical blending keeps the keyword signal below the cosine range so it only
// reorders near ties.
const (
	lexicalLengthScale = float32(10.0)
	maxLexicalScore    = float32(0.4)
	headingMatchBonus  = float32(0.1)
)

var stopwords = toSet(
	// English
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "for", "from", "has", "have",
	"in", "is", "it", "of", "on", "or", "the", "to", "was", "were", "with",
	// Italian
	"il", "lo", "la", "gli", "le", "un", "una", "di", "da", "del", "della", "dei", "che",
	"con", "per", "su", "non", "e", "è", "al", "alla", "nel", "nella",
)

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// lexicalQuery holds the content words of a question, tokenized once per retrieval.
type lexicalQuery struct {
	terms []string
}

func newLexicalQuery(question string) lexicalQuery {
	var terms []string
	seen := make(map[string]bool)
	for _, tok := range tokenize(question) {
		if _, stop := stopwords[tok]; stop || seen[tok] {
			continue
		}
		seen[tok] = true
		terms = append(terms, tok)
	}
	return lexicalQuery{terms: terms}
}

// score rates a chunk in [0, maxLexicalScore]: term frequency normalized by chunk length,
// plus a bonus per query term found in the heading path.
func (q lexicalQuery) score(text, headingPath string) float32 {
	if len(q.terms) == 0 {
		return 0
	}
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return 0
	}

	freq := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		freq[tok]++
	}
	heading := toSet(tokenize(headingPath)...)

	var matches, headingMatches int
	for _, term := range q.terms {
		matches += freq[term]
		if _, ok := heading[term]; ok {
			headingMatches++
		}
	}

	score := float32(matches)/(1+float32(len(tokens)))*lexicalLengthScale +
		float32(headingMatches)*headingMatchBonus
	return min(score, maxLexicalScore)
}

// tokenize lowercases text and splits it on anything that is not a letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// rerank blends vector and lexical scores, orders candidates best first and keeps k.
// Equal scores keep search order.
func rerank(q lexicalQuery, candidates []candidate, k int) []candidate {
	for i := range candidates {
		c := &candidates[i]
		c.final = c.vector + q.score(c.text, c.payload.HeadingPath)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].final > candidates[j].final
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}
