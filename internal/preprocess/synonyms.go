package preprocess

import (
	"sort"
	"strings"
)

// synonyms maps material terms in any language to German KBOB names.
//
//nolint:gochecknoglobals // static table
var synonyms = map[string][]string{
	// Dutch
	"staal":       {"Stahl", "Stahlprofil"},
	"beton":       {"Beton", "Hochbaubeton"},
	"prefab":      {"Fertigteil", "Betonfertigteil"},
	"prefabbeton": {"Betonfertigteil"},
	"isolatie":    {"Dämmung", "Wärmedämmung"},
	"gevel":       {"Fassade"},
	"randen":      {"Rand", "Betonfertigteil"},
	"ihwg":        {"Hochbaubeton"},

	// English
	"concrete":              {"Beton", "Hochbaubeton"},
	"cast in situ":          {"Ortbeton", "Hochbaubeton"},
	"steel":                 {"Stahl", "Stahlprofil"},
	"insulation":            {"Dämmung", "Wärmedämmung"},
	"rigid insulation":      {"Polystyrol extrudiert", "XPS", "EPS"},
	"semi-rigid insulation": {"Glaswolle", "Steinwolle"},
	"thermal barriers":      {"Wärmedämmung"},
	"masonry":               {"Mauerwerk"},
	"brick":                 {"Backstein", "Mauerwerk"},
	"concrete block":        {"Zementstein", "Betonstein"},
	"plasterboard":          {"Gipskartonplatte"},
	"plywood":               {"Sperrholzplatte"},
	"dimensional lumber":    {"Konstruktionsholz", "Brettschichtholz"},
	"wood flooring":         {"Parkett"},
	"sheathing":             {"Holzwerkstoff", "Sperrholzplatte"},
	"epdm membrane":         {"Dichtungsbahn Gummi EPDM"},
	"epdm":                  {"Dichtungsbahn Gummi EPDM"},
	"roofing":               {"Dachdeckung", "Dichtungsbahn"},
	"ceramic tile":          {"Keramikplatte", "Steinzeugplatte"},
	"grout":                 {"Mörtel", "Zementmörtel"},
	"air space":             {"Luftschicht"},
	"stud layer":            {"Ständerwerk", "Metallständer"},

	// Generic German to specific KBOB names
	"wärmedämmung druckfest": {"Polystyrol extrudiert XPS", "Polystyrol expandiert EPS"},
	"wärmedämmung":           {"Glaswolle", "Steinwolle", "Polystyrol expandiert EPS"},
	"dämmung hart":           {"Polystyrol extrudiert XPS", "Polystyrol expandiert EPS", "Schaumglas"},
	"dämmung weich":          {"Glaswolle", "Steinwolle", "Weichfaserplatte"},
	"isolierung hart":        {"Polystyrol extrudiert XPS", "Polystyrol expandiert EPS"},
	"ortbeton bewehrt":       {"Hochbaubeton"},
	"ortbeton":               {"Hochbaubeton"},
	"stahlbeton":             {"Hochbaubeton"},
	"leichtbeton":            {"Porenbetonstein", "Leichtzementstein"},
	"trockenbau":             {"Gipskartonplatte", "Gipsfaserplatte"},
	"rigips":                 {"Gipskartonplatte"},
	"naturstein":             {"Natursteinplatte"},
	"edelstahl":              {"Edelstahl", "Chromstahl"},
	"zink":                   {"Zinkblech"},
	"aluminium":              {"Aluminiumblech"},
	"vorfabriziert":          {"Betonfertigteil"},
	"fertigbeton":            {"Betonfertigteil"},
}

//nolint:gochecknoglobals // computed once from synonyms
var synonymKeys = func() []string {
	keys := make([]string, 0, len(synonyms))
	for k := range synonyms {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// Synonyms returns the German names associated with any synonym key found
// in query, sorted and deduplicated.
func Synonyms(query string) []string {
	lower := strings.ToLower(query)
	set := make(map[string]bool)
	for _, k := range synonymKeys {
		if strings.Contains(lower, k) {
			for _, s := range synonyms[k] {
				set[s] = true
			}
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// ExpandSynonyms appends " | " and the synonyms of query, if any.
func ExpandSynonyms(query string) string {
	syn := Synonyms(query)
	if len(syn) == 0 {
		return query
	}
	return query + " | " + strings.Join(syn, " ")
}

// Preprocess cleans raw and expands it with synonyms.
func Preprocess(raw string) string {
	return ExpandSynonyms(CleanQuery(raw))
}

// SearchTerms returns the ordered fallback queries for a substring-oriented
// source: the cleaned query, then each synonym. Duplicates are dropped
// case-insensitively.
func SearchTerms(raw string) []string {
	cleaned := CleanQuery(raw)
	terms := []string{cleaned}
	seen := map[string]bool{Fold(cleaned): true}
	for _, s := range Synonyms(cleaned) {
		if f := Fold(s); !seen[f] {
			seen[f] = true
			terms = append(terms, s)
		}
	}
	return terms
}
