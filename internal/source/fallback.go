package source

import (
	"strings"

	"github.com/rshade/lcamatch/internal/indicator"
	"github.com/rshade/lcamatch/internal/material"
	"github.com/rshade/lcamatch/internal/preprocess"
)

// FallbackVersion marks records from the built-in sample dataset.
const FallbackVersion = "fallback"

// fallbackEntry is one common material with per-kg factors.
type fallbackEntry struct {
	key      string
	name     string
	nameEN   string
	category string
	density  float64
	gwp      float64
	penre    float64
	ubp      float64
}

//nolint:gochecknoglobals // fixed sample dataset
var fallbackEntries = []fallbackEntry{
	{"concrete", "Beton (ohne Bewehrung)", "Concrete", "Beton", 2400, 0.1, 0.6, 120},
	{"rebar", "Bewehrungsstahl", "Reinforcing steel", "Metallbaustoffe", 7850, 0.68, 9.3, 1700},
	{"timber", "Brettschichtholz", "Glued laminated timber", "Holz und Holzwerkstoffe", 470, 0.25, 4.7, 600},
	{"brick", "Backstein", "Brick", "Mauersteine", 1800, 0.25, 2.8, 250},
	{"glass", "Flachglas", "Flat glass", "Fenster und Glas", 2500, 1.05, 14.0, 1300},
	{"mineral-wool", "Steinwolle", "Mineral wool", "Wärmedämmstoffe", 60, 1.2, 17.0, 1900},
	{"gypsum-board", "Gipskartonplatte", "Gypsum board", "Putze und Platten", 850, 0.28, 5.0, 400},
	{"aluminium", "Aluminiumblech", "Aluminium sheet", "Metallbaustoffe", 2700, 8.5, 120.0, 16000},
}

// Fallback returns the sample materials of source matching query. Only
// the indicators the source supplies are set. The result is empty when
// nothing matches.
func Fallback(info Info, query string, limit int) []material.NormalizedMaterial {
	terms := strings.Fields(preprocess.FoldAlnum(preprocess.Preprocess(query)))
	supplied := make(map[indicator.Key]bool, len(info.Indicators))
	for _, k := range info.Indicators {
		supplied[k] = true
	}

	out := make([]material.NormalizedMaterial, 0)
	for _, e := range fallbackEntries {
		if !fallbackMatches(e, terms) {
			continue
		}
		vals := indicator.Values{}
		for k, v := range map[indicator.Key]float64{
			indicator.GWPTotal:   e.gwp,
			indicator.PENRETotal: e.penre,
			indicator.UBP:        e.ubp,
		} {
			if supplied[k] {
				vals[k] = v
			}
		}
		m := material.NormalizedMaterial{
			Source:         info.ID,
			SourceID:       "fallback-" + e.key,
			Name:           e.name,
			LocalizedNames: map[string]string{"de": e.name, "en": e.nameEN},
			Category:       e.category,
			Density:        material.Float(e.density),
			DeclaredUnit:   "kg",
			Indicators:     vals,
			Metadata:       material.Metadata{Version: FallbackVersion, Scope: "A1-A3"},
		}
		m.Normalize()
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// fallbackMatches reports whether any term occurs in the entry's names or
// category.
func fallbackMatches(e fallbackEntry, terms []string) bool {
	hay := preprocess.FoldAlnum(e.name + " " + e.nameEN + " " + e.category)
	for _, t := range terms {
		if len(t) >= MinQueryLength && strings.Contains(hay, t) {
			return true
		}
	}
	return false
}

// IsFallback reports whether m comes from the sample dataset.
func IsFallback(m *material.NormalizedMaterial) bool {
	return m != nil && m.Metadata.Version == FallbackVersion
}
