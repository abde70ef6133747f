package filter

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
)

const (
	minFacetLength    = 3
	longSentenceChars = 50
	maxPunctRatio     = 0.3
	patternTimeout    = 50 * time.Millisecond
)

// Rejection reasons reported by Explain.
const (
	ReasonEmpty         = "empty"
	ReasonTooShort      = "shorter than 3 characters"
	ReasonNoWords       = "only punctuation, digits or whitespace"
	ReasonLeadingPunct  = "starts with punctuation"
	ReasonConjunction   = "leading conjunction"
	ReasonParenthesized = "parenthesized content only"
	ReasonColon         = "contains a colon"
	ReasonStopword      = "stand-alone stopword"
	ReasonPunctRatio    = "too much punctuation"
	ReasonNoLetter      = "contains no letter"
)

var stopwords = map[string]struct{}{
	"and": {}, "or": {}, "the": {}, "of": {}, "in": {}, "with": {}, "from": {},
	"by": {}, "for": {}, "as": {}, "at": {}, "on": {}, "to": {},
}

type rule struct {
	reason string
	reject func(s string) bool
}

// rules run in order against the cleaned candidate. Leading punctuation is
// checked separately on the trimmed input because cleaning removes it, and the
// denylist runs last so structural reasons take precedence in Explain.
var rules = []rule{
	{ReasonEmpty, func(s string) bool { return s == "" }},
	{ReasonTooShort, func(s string) bool { return utf8.RuneCountInString(s) < minFacetLength }},
	{ReasonNoWords, func(s string) bool {
		return !strings.ContainsFunc(s, func(r rune) bool {
			return !isPunct(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r)
		})
	}},
	{ReasonConjunction, func(s string) bool {
		lower := strings.ToLower(s)
		return lower == "and" || strings.HasPrefix(lower, "and ") || strings.HasPrefix(lower, "and/or")
	}},
	{ReasonParenthesized, isParenthesized},
	{ReasonColon, func(s string) bool { return strings.ContainsRune(s, ':') }},
	{ReasonStopword, func(s string) bool {
		_, ok := stopwords[strings.ToLower(s)]
		return ok
	}},
	{ReasonPunctRatio, func(s string) bool { return punctRatio(s) > maxPunctRatio }},
	{ReasonNoLetter, func(s string) bool { return !strings.ContainsFunc(s, unicode.IsLetter) }},
}

type denyPattern struct {
	re     *regexp2.Regexp
	reason string
	// minLen restricts generic sentence patterns to long strings so short
	// brand names that share a keyword survive.
	minLen int
}

func deny(pattern, reason string, minLen int) denyPattern {
	re := regexp2.MustCompile(pattern, regexp2.IgnoreCase)
	re.MatchTimeout = patternTimeout
	return denyPattern{re: re, reason: reason, minLen: minLen}
}

var denylist = []denyPattern{
	deny(`^contains\b`, "allergen notice", 0),
	deny(`^may contain\b`, "allergen notice", 0),
	deny(`\b(allergens?|allergy advice)\b`, "allergen notice", 0),
	deny(`^(produced|processed|packed|made) (in|on) (a )?(facility|equipment|plant)\b`, "facility notice", 0),
	deny(`^not an? (significant |good )?source of\b`, "nutritional disclaimer", 0),
	deny(`\b(less than|contains) \d+(\.\d+)?\s?% of\b`, "nutritional disclaimer", 0),
	deny(`\bpercent daily values?\b`, "nutritional disclaimer", 0),
	deny(`\bdaily value\b`, "nutritional disclaimer", 0),
	deny(`^(added )?(to|as a) (preserve|maintain|protect) (freshness|flavou?r|color|colour)\b`, "preservative notice", 0),
	deny(`\b(used )?as an? preservative\b`, "preservative notice", 0),
	deny(`\bpreservatives?\b(?=.*\b(added|freshness|quality)\b)`, "preservative notice", 0),
	deny(`\b(manufactured|processed|produced|packaged)\b.*\b(facility|equipment|plant)\b`, "facility notice", longSentenceChars),
	deny(`\b(this product|this item|these products)\b`, "marketing sentence", longSentenceChars),
	deny(`\b(dietary|nutritional) (supplement|information)\b`, "nutritional disclaimer", longSentenceChars),
	deny(`\b(gluten|dairy|nut)[- ]free (facility|environment)\b`, "facility notice", longSentenceChars),
}

func matchDenylist(s string) (string, bool) {
	n := utf8.RuneCountInString(s)
	for _, p := range denylist {
		if n <= p.minLen && p.minLen > 0 {
			continue
		}
		ok, err := p.re.MatchString(s)
		if err != nil {
			// A timed-out match counts as noise rather than a valid facet.
			return p.reason, true
		}
		if ok {
			return p.reason, true
		}
	}
	return "", false
}

func isPunct(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}

func isParenthesized(s string) bool {
	if len(s) < 2 {
		return false
	}
	switch {
	case s[0] == '(' && s[len(s)-1] == ')':
		return true
	case s[0] == '[' && s[len(s)-1] == ']':
		return true
	}
	return false
}

func punctRatio(s string) float64 {
	total, punct := 0, 0
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if isPunct(r) {
			punct++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(punct) / float64(total)
}
