// Package preprocess turns IFC material names into search terms.
//
// Names exported by BIM authoring tools carry tool prefixes, ids, colour
// codes, dimension suffixes and ASCII-encoded umlauts. CleanQuery strips
// that noise. ExtractKeywords maps what is left onto single German terms
// for sources with keyword-oriented search. Every function here is pure.
package preprocess

import (
	"regexp"
	"strings"
)

// rule is one ordered rewrite step.
type rule struct {
	re   *regexp.Regexp
	repl string
}

//nolint:gochecknoglobals // compiled once
var (
	edgeUnderscores = regexp.MustCompile(`^_+|_+$`)

	// Applied in order by CleanQuery.
	noiseRules = []rule{
		// Revit "Werkgruppe" suffix.
		{regexp.MustCompile(`(?i)[_ ]wg$`), ""},
		// Tool prefixes: f2_, h2_, DD_, AT_.
		{regexp.MustCompile(`^([a-zA-Z]\d?_|DD[_ ]|AT_)`), ""},
		// Long numeric ids.
		{regexp.MustCompile(`\b\d{6,}\b`), ""},
		// RGB colour codes such as 128-128-128.
		{regexp.MustCompile(`\b\d{1,3}-\d{1,3}-\d{1,3}\b`), ""},
		// Dimension codes such as 20x20x5 or 600 x 300 mm.
		{regexp.MustCompile(`(?i)\b\d+(?:[.,]\d+)?\s*[x×]\s*\d+(?:[.,]\d+)?(?:\s*[x×]\s*\d+(?:[.,]\d+)?)?(?:\s*(?:mm|cm|m)\b)?`), ""},
		{regexp.MustCompile(`_`), " "},
	}

	multiSpace     = regexp.MustCompile(`\s+`)
	trailingNumber = regexp.MustCompile(`\s+\d+$`)
)

// umlautWords maps ASCII spellings of common construction terms to their
// umlaut form. Longer entries come first.
//
//nolint:gochecknoglobals // compiled once
var umlautWords = umlautRules(
	"waermedaemmung", "wärmedämmung",
	"daemmung", "dämmung",
	"gruendung", "gründung",
	"uebergang", "übergang",
	"aeussere", "äussere",
	"auessere", "äussere",
	"oeffnung", "öffnung",
	"waerme", "wärme",
	"daemm", "dämm",
)

// umlautRules compiles ascii, umlaut pairs into case-insensitive rules.
func umlautRules(pairs ...string) []rule {
	rules := make([]rule, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		rules = append(rules, rule{
			re:   regexp.MustCompile(`(?i)` + regexp.QuoteMeta(pairs[i])),
			repl: pairs[i+1],
		})
	}
	return rules
}

// compositeKeywords select the material part of composite names such as
// "Floor:STB 25cm, Beton C30/37 Bodenplatte 2:2515405".
//
//nolint:gochecknoglobals // static table
var compositeKeywords = []string{"beton", "holz", "stahl", "gips", "glas", "dämm", "isolier"}

// CleanQuery strips IFC authoring noise from raw. If nothing is left the
// trimmed input is returned.
func CleanQuery(raw string) string {
	original := strings.TrimSpace(raw)

	q := strings.TrimSpace(edgeUnderscores.ReplaceAllString(original, ""))
	for _, r := range noiseRules {
		q = r.re.ReplaceAllString(q, r.repl)
	}
	q = normalizeUmlauts(q)

	if strings.Contains(q, ":") && containsAny(strings.ToLower(q), compositeKeywords) {
		for _, part := range strings.Split(q, ":") {
			part = strings.TrimSpace(part)
			if containsAny(strings.ToLower(part), compositeKeywords) {
				q = part
				break
			}
		}
	}

	q = strings.TrimSpace(multiSpace.ReplaceAllString(q, " "))
	q = strings.TrimSpace(trailingNumber.ReplaceAllString(q, ""))

	if q == "" {
		return original
	}
	return q
}

// normalizeUmlauts replaces ASCII-encoded umlauts case-insensitively,
// keeping the surrounding text.
func normalizeUmlauts(s string) string {
	for _, r := range umlautWords {
		s = r.re.ReplaceAllLiteralString(s, r.repl)
	}
	return s
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// CacheKey returns the canonical form of raw used for deduplication and
// cache keys: the cleaned query, folded.
func CacheKey(raw string) string {
	return Fold(CleanQuery(raw))
}
