package preprocess

import (
	"regexp"
	"sort"
	"strings"
)

// maxFallbackLen caps the raw fallback term.
const maxFallbackLen = 30

// keywordTerms maps material keywords in German, English, Dutch and French
// to single German terms suited to AND-style full-text search.
//
//nolint:gochecknoglobals // static table
var keywordTerms = map[string][]string{
	// German
	"ortbeton":          {"Beton"},
	"stahlbeton":        {"Beton"},
	"hochbaubeton":      {"Beton"},
	"spannbeton":        {"Spannbeton", "Beton"},
	"leichtbeton":       {"Leichtbeton", "Beton"},
	"porenbeton":        {"Porenbeton"},
	"beton":             {"Beton"},
	"estrich":           {"Estrich"},
	"mörtel":            {"Mörtel"},
	"putz":              {"Putz"},
	"zement":            {"Zement"},
	"kalksandstein":     {"Kalksandstein"},
	"mauerwerk":         {"Mauerwerk", "Kalksandstein"},
	"backstein":         {"Ziegel", "Klinker"},
	"ziegel":            {"Ziegel"},
	"klinker":           {"Klinker"},
	"wärmedämmung":      {"Dämmstoff", "Dämmung"},
	"dämmung":           {"Dämmstoff", "Dämmung"},
	"steinwolle":        {"Steinwolle"},
	"glaswolle":         {"Glaswolle"},
	"mineralwolle":      {"Mineralwolle"},
	"polystyrol":        {"Polystyrol"},
	"eps":               {"EPS"},
	"xps":               {"XPS"},
	"schaumglas":        {"Schaumglas"},
	"isolierung":        {"Dämmstoff", "Dämmung"},
	"weichfaser":        {"Holzfaser"},
	"holzfaser":         {"Holzfaser"},
	"holz":              {"Holz"},
	"brettschichtholz":  {"Brettschichtholz"},
	"sperrholz":         {"Sperrholz"},
	"parkett":           {"Parkett"},
	"laminat":           {"Laminat"},
	"konstruktionsholz": {"Konstruktionsholz", "Schnittholz"},
	"schnittholz":       {"Schnittholz"},
	"stahl":             {"Stahl"},
	"edelstahl":         {"Edelstahl"},
	"chromstahl":        {"Edelstahl"},
	"zink":              {"Zink"},
	"kupfer":            {"Kupfer"},
	"aluminium":         {"Aluminium"},
	"metall":            {"Stahl"},
	"gipskarton":        {"Gipskartonplatte", "Gips"},
	"gipsfaser":         {"Gipsfaserplatte", "Gips"},
	"gipsplatte":        {"Gipsplatte", "Gips"},
	"gips":              {"Gips"},
	"rigips":            {"Gipskartonplatte", "Gips"},
	"trockenbau":        {"Gipskartonplatte", "Gips"},
	"glas":              {"Glas"},
	"isolierverglasung": {"Verglasung", "Glas"},
	"verglasung":        {"Verglasung", "Glas"},
	"faserzement":       {"Faserzement"},
	"bitumen":           {"Bitumen"},
	"dachdeckung":       {"Dach"},
	"epdm":              {"EPDM"},
	"abdichtung":        {"Abdichtung"},
	"dichtungsbahn":     {"Abdichtung"},
	"fliese":            {"Fliese"},
	"keramik":           {"Keramik", "Fliese"},
	"naturstein":        {"Naturstein"},
	"granit":            {"Granit", "Naturstein"},
	"kies":              {"Kies"},
	"schotter":          {"Kies"},

	// English
	"concrete":              {"Beton"},
	"reinforced concrete":   {"Beton"},
	"cast in situ":          {"Beton"},
	"lightweight concrete":  {"Leichtbeton", "Beton"},
	"concrete block":        {"Betonstein", "Beton"},
	"precast":               {"Betonfertigteil", "Beton"},
	"mortar":                {"Mörtel"},
	"screed":                {"Estrich"},
	"steel":                 {"Stahl"},
	"stainless steel":       {"Edelstahl"},
	"aluminum":              {"Aluminium"},
	"zinc":                  {"Zink"},
	"copper":                {"Kupfer"},
	"metal":                 {"Stahl"},
	"wood":                  {"Holz"},
	"timber":                {"Holz"},
	"lumber":                {"Schnittholz", "Holz"},
	"plywood":               {"Sperrholz", "Holz"},
	"flooring":              {"Bodenbelag", "Parkett"},
	"sheathing":             {"Holzwerkstoff", "Sperrholz"},
	"insulation":            {"Dämmstoff", "Dämmung"},
	"rigid insulation":      {"Polystyrol", "XPS", "EPS", "Dämmstoff"},
	"semi-rigid insulation": {"Mineralwolle", "Steinwolle", "Glaswolle"},
	"semi-rigid":            {"Mineralwolle", "Steinwolle", "Glaswolle"},
	"thermal barrier":       {"Dämmstoff"},
	"glass wool":            {"Glaswolle"},
	"rock wool":             {"Steinwolle"},
	"stone wool":            {"Steinwolle"},
	"mineral wool":          {"Mineralwolle"},
	"foam glass":            {"Schaumglas"},
	"plasterboard":          {"Gipskartonplatte", "Gips"},
	"drywall":               {"Gipskartonplatte"},
	"gypsum":                {"Gips"},
	"glass":                 {"Glas"},
	"glazing":               {"Verglasung", "Glas"},
	"masonry":               {"Mauerwerk", "Kalksandstein"},
	"brick":                 {"Ziegel", "Klinker"},
	"natural stone":         {"Naturstein"},
	"granite":               {"Granit", "Naturstein"},
	"gravel":                {"Kies"},
	"tile":                  {"Fliese"},
	"ceramic":               {"Keramik", "Fliese"},
	"roofing":               {"Dach", "Bitumen"},
	"membrane":              {"Abdichtung", "EPDM"},
	"fibre cement":          {"Faserzement"},
	"fiber cement":          {"Faserzement"},

	// Dutch
	"staal":       {"Stahl"},
	"prefabbeton": {"Betonfertigteil", "Beton"},
	"prefab":      {"Betonfertigteil", "Beton"},
	"isolatie":    {"Dämmstoff", "Dämmung"},
	"gevel":       {"Fassade"},
	"hout":        {"Holz"},
	"steen":       {"Naturstein"},
	"baksteen":    {"Ziegel"},

	// French
	"béton":     {"Beton"},
	"acier":     {"Stahl"},
	"bois":      {"Holz"},
	"isolation": {"Dämmstoff"},
	"verre":     {"Glas"},
}

//nolint:gochecknoglobals // compiled once
var wordSplit = regexp.MustCompile(`[\s\-_/,;()|]+`)

type keywordHit struct {
	pos     int
	keyword string
}

// ExtractKeywords returns search terms for raw, most specific first. The
// result is never empty: without a known keyword the longest word of three
// or more characters is used, capitalized.
func ExtractKeywords(raw string) []string {
	cleaned := strings.ToLower(CleanQuery(raw))

	var hits []keywordHit
	for kw := range keywordTerms {
		if pos := strings.Index(cleaned, kw); pos >= 0 {
			hits = append(hits, keywordHit{pos: pos, keyword: kw})
		}
	}

	if len(hits) > 0 {
		kept := dropSubsumed(hits)
		sort.Slice(kept, func(i, j int) bool {
			a, b := kept[i], kept[j]
			if len(a.keyword) != len(b.keyword) {
				return len(a.keyword) > len(b.keyword)
			}
			if a.pos != b.pos {
				return a.pos < b.pos
			}
			return a.keyword < b.keyword
		})

		seen := make(map[string]bool)
		var terms []string
		for _, h := range kept {
			for _, term := range keywordTerms[h.keyword] {
				if !seen[term] {
					seen[term] = true
					terms = append(terms, term)
				}
			}
		}
		return terms
	}

	var longest string
	for _, w := range wordSplit.Split(cleaned, -1) {
		if len([]rune(w)) >= 3 && len([]rune(w)) > len([]rune(longest)) {
			longest = w
		}
	}
	if longest != "" {
		return []string{capitalize(longest)}
	}

	fallback := []rune(strings.TrimSpace(raw))
	if len(fallback) > maxFallbackLen {
		fallback = fallback[:maxFallbackLen]
	}
	return []string{string(fallback)}
}

// dropSubsumed removes hits fully covered by a longer hit, such as "stahl"
// inside "edelstahl".
func dropSubsumed(hits []keywordHit) []keywordHit {
	var kept []keywordHit
	for _, h := range hits {
		subsumed := false
		for _, o := range hits {
			if len(o.keyword) > len(h.keyword) && o.pos <= h.pos &&
				o.pos+len(o.keyword) >= h.pos+len(h.keyword) {
				subsumed = true
				break
			}
		}
		if !subsumed {
			kept = append(kept, h)
		}
	}
	return kept
}
