package filter

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize cleans raw facet strings of one kind into a deduplicated, sorted
// list of display strings. It is pure and idempotent: Normalize(Normalize(x))
// equals Normalize(x).
func Normalize(raw []string) []string {
	values := make([]any, len(raw))
	for i, s := range raw {
		values[i] = s
	}
	return NormalizeValues(values)
}

// NormalizeValues is Normalize for decoded JSON values. Anything that is not a
// string is dropped.
func NormalizeValues(raw []any) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))

	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		cleaned, ok := clean(s)
		if !ok {
			continue
		}
		key := dedupKey(cleaned)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, cleaned)
	}

	sortFacets(out)
	return out
}

// Explain reports why raw would be dropped by Normalize. The second result is
// false when raw survives.
func Explain(raw string) (string, bool) {
	_, reason := cleanWithReason(raw)
	return reason, reason != ""
}

func clean(raw string) (string, bool) {
	cleaned, reason := cleanWithReason(raw)
	return cleaned, reason == ""
}

func cleanWithReason(raw string) (string, string) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ReasonEmpty
	}
	if first, _ := utf8.DecodeRuneInString(trimmed); isPunct(first) {
		return "", ReasonLeadingPunct
	}

	cleaned := collapseSpace(trimPunct(trimmed))
	for _, r := range rules {
		if r.reject(cleaned) {
			return "", r.reason
		}
	}
	if reason, ok := matchDenylist(cleaned); ok {
		return "", reason
	}
	return cleaned, ""
}

// trimPunct strips punctuation clusters from both ends. A closing bracket is
// kept when its opening bracket appears earlier in the string.
func trimPunct(s string) string {
	s = strings.TrimLeftFunc(s, func(r rune) bool { return isPunct(r) || unicode.IsSpace(r) })
	for s != "" {
		r, size := utf8.DecodeLastRuneInString(s)
		if unicode.IsSpace(r) {
			s = s[:len(s)-size]
			continue
		}
		if !isPunct(r) {
			break
		}
		if open, ok := openingBracket[r]; ok && strings.ContainsRune(s[:len(s)-size], open) {
			break
		}
		s = s[:len(s)-size]
	}
	return s
}

var openingBracket = map[rune]rune{')': '(', ']': '[', '}': '{'}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// dedupKey is the comparison key only; display strings keep their casing and
// punctuation.
func dedupKey(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	s = strings.Map(func(r rune) rune {
		if isPunct(r) {
			return -1
		}
		return r
	}, s)
	return collapseSpace(s)
}

type facetGroup int

const (
	groupLetter facetGroup = iota
	groupDigit
	groupOther
)

func groupOf(s string) facetGroup {
	r, _ := utf8.DecodeRuneInString(s)
	switch {
	case unicode.IsLetter(r):
		return groupLetter
	case unicode.IsDigit(r):
		return groupDigit
	default:
		return groupOther
	}
}

func sortFacets(values []string) {
	sort.SliceStable(values, func(i, j int) bool {
		gi, gj := groupOf(values[i]), groupOf(values[j])
		if gi != gj {
			return gi < gj
		}
		return strings.ToLower(values[i]) < strings.ToLower(values[j])
	})
}
