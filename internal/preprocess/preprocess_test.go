package preprocess

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestCleanQuery(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Beton C30/37", "Beton C30/37"},
		{"revit wg suffix", "Beton_wg", "Beton"},
		{"tool prefix", "f2_Holz", "Holz"},
		{"DD prefix", "DD_Stahl", "Stahl"},
		{"AT prefix", "AT_Gipskarton", "Gipskarton"},
		{"numeric id", "Beton 1234567", "Beton"},
		{"rgb code", "Glas 128-128-255", "Glas"},
		{"dimension code", "Fliese 20x20x5", "Fliese"},
		{"dimension with unit", "Platte 600 x 300 mm weiss", "Platte weiss"},
		{"underscores", "Holz_Fichte_KVH", "Holz Fichte KVH"},
		{"umlauts", "Waermedaemmung EPS", "wärmedämmung EPS"},
		{"umlauts after dotted capital", "İdaemmungé Platte", "İdämmungé Platte"},
		{"umlauts after wide runes", "ȺȺ waerme dämm", "ȺȺ wärme dämm"},
		{"umlauts mixed case", "STEINWOLLE DAEMMUNG", "STEINWOLLE dämmung"},
		{"composite name", "Floor:STB 25cm, Beton C30/37 Bodenplatte 2:2515405", "STB 25cm, Beton C30/37 Bodenplatte"},
		{"trailing number", "Mauerwerk 2", "Mauerwerk"},
		{"edge underscores", "__Kies__", "Kies"},
		{"only noise falls back", "1234567", "1234567"},
		{"whitespace", "  Beton   C25  ", "Beton C25"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := CleanQuery(tt.in)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestCleanQueryIsPure(t *testing.T) {
	in := "h2_Waermedaemmung_Steinwolle_wg"
	first := CleanQuery(in)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, CleanQuery(in))
	}
	assert.Equal(t, CacheKey(in), CacheKey(in))
}

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"english concrete", "Concrete - Cast in Situ", []string{"Beton"}},
		{"specific first", "Edelstahl Blech", []string{"Edelstahl"}},
		{"reinforced concrete", "Reinforced Concrete C30/37", []string{"Beton"}},
		{"insulation", "Rigid insulation XPS", []string{"Polystyrol", "XPS", "EPS", "Dämmstoff"}},
		{"french", "Béton armé", []string{"Beton"}},
		{"ascii umlaut", "Waermedaemmung", []string{"Dämmstoff", "Dämmung"}},
		{"fallback longest word", "Xyloplan Paneel", []string{"Xyloplan"}},
		{"fallback raw", "ab", []string{"ab"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractKeywords(tt.in))
		})
	}
}

func TestExtractKeywordsDeterministic(t *testing.T) {
	in := "Holz Beton Stahl Glas"
	first := ExtractKeywords(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ExtractKeywords(in))
	}
	assert.NotEmpty(t, first)
}

func TestSynonyms(t *testing.T) {
	assert.Equal(t, []string{"Beton", "Hochbaubeton"}, Synonyms("Concrete"))
	assert.Empty(t, Synonyms("Xyloplan"))
	assert.Equal(t, "Steel | Stahl Stahlprofil", ExpandSynonyms("Steel"))
	assert.Equal(t, "Xyloplan", ExpandSynonyms("Xyloplan"))
	assert.Equal(t, "Plasterboard | Gipskartonplatte", Preprocess("f2_Plasterboard_wg"))

	terms := SearchTerms("Beton")
	assert.Equal(t, []string{"Beton", "Hochbaubeton"}, terms)
}

func TestFold(t *testing.T) {
	assert.Equal(t, "warmedammung", Fold("Wärmedämmung"))
	assert.Equal(t, Fold("BÉTON"), Fold("béton"))
	assert.Equal(t, "beton c30 37", FoldAlnum("Beton C30/37"))
	assert.Equal(t, "holz fichte", FoldAlnum("  Holz--Fichte!! "))
}
