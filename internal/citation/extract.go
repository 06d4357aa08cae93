package citation

import (
	"regexp"
	"strconv"
	"strings"
)

// ExtractOptions tunes the marker recognizer.
type ExtractOptions struct {
	// DisplayForm accepts rendered markers whose leading bare numbers belong to the kb pool,
	// e.g. [2,1] or [1, web:1]. Off for raw model output.
	DisplayForm bool
}

const (
	numberList = `\d+(?:(?:\s*[,;]\s*|\s+)\d+)*`
	groupSep   = `(?:\s*[,;]\s*|\s+)`
	keyword    = `(?:cit|web)\s*:?\s*`
)

var (
	// bracketRe finds single-line bracket spans without nested brackets.
	bracketRe = regexp.MustCompile(`\[([^\[\]\n]*)\]`)

	// keywordRe decides whether a bracket is a marker candidate at all.
	keywordRe = regexp.MustCompile(`(?i)\b(?:cit|web)\s*:?\s*\d`)

	// bareRe matches display-form content made only of numbers.
	bareRe = regexp.MustCompile(`^\s*` + numberList + `\s*$`)

	// strictRe is the raw grammar: one or more keyword groups.
	strictRe = regexp.MustCompile(`(?i)^\s*` + keyword + numberList +
		`(?:` + groupSep + keyword + numberList + `)*\s*$`)

	// displayRe also allows a leading group without keyword.
	displayRe = regexp.MustCompile(`(?i)^\s*(?:` + keyword + `)?` + numberList +
		`(?:` + groupSep + keyword + numberList + `)*\s*$`)

	// tokenRe walks a matched marker: keywords switch the pool, digit runs are indices.
	tokenRe = regexp.MustCompile(`(?i)cit|web|\d+`)
)

// Extract scans text for citation markers in text order.
// Brackets that mention a citation keyword but do not parse are returned as malformed spans
// and must be left untouched by callers.
func Extract(text string, opts ExtractOptions) ([]Marker, []Span) {
	if !strings.Contains(text, "[") {
		return nil, nil
	}

	var markers []Marker
	var malformed []Span
	for _, loc := range bracketRe.FindAllStringSubmatchIndex(text, -1) {
		inner := text[loc[2]:loc[3]]
		span := Span{Start: loc[0], End: loc[1]}

		if !isCandidate(inner, opts) {
			continue
		}
		m, ok := parseMarker(inner, opts)
		if !ok {
			malformed = append(malformed, span)
			continue
		}
		m.Span = span
		markers = append(markers, m)
	}
	return markers, malformed
}

func isCandidate(inner string, opts ExtractOptions) bool {
	if keywordRe.MatchString(inner) {
		return true
	}
	return opts.DisplayForm && bareRe.MatchString(inner)
}

// parseMarker turns the content of one bracket into a Marker without span.
func parseMarker(inner string, opts ExtractOptions) (Marker, bool) {
	grammar := strictRe
	var pool Pool
	if opts.DisplayForm {
		grammar = displayRe
		pool = PoolKB
	}
	if !grammar.MatchString(inner) {
		return Marker{}, false
	}

	var m Marker
	var hasKB, hasWeb, keyword bool
	for _, tok := range tokenRe.FindAllString(inner, -1) {
		switch strings.ToLower(tok) {
		case "cit":
			pool, keyword = PoolKB, true
			continue
		case "web":
			pool, keyword = PoolWeb, true
			continue
		}
		if pool == "" {
			return Marker{}, false
		}
		m.References = append(m.References, Reference{Pool: pool, Index: parseIndex(tok)})
		if pool == PoolKB {
			hasKB = true
		} else {
			hasWeb = true
		}
	}

	switch {
	case hasKB && hasWeb:
		m.Kind = KindHybrid
	case hasWeb:
		m.Kind = KindWeb
	case hasKB:
		m.Kind = KindKB
	default:
		return Marker{}, false
	}
	m.Bare = !keyword
	return m, true
}

// parseIndex converts a digit run; values that overflow become 0 and fail validation.
func parseIndex(digits string) int {
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
