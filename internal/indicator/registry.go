// Package indicator defines environmental indicator keys and sparse
// per-key value sets.
//
// A Values map holds only the indicators that are known. A key that is
// absent means "no data" and is never treated as zero.
package indicator

import (
	"sort"
	"strings"
)

// Key identifies one environmental indicator.
type Key string

// Registered indicator keys.
const (
	GWPTotal    Key = "gwpTotal"
	GWPFossil   Key = "gwpFossil"
	GWPBiogenic Key = "gwpBiogenic"
	GWPLuluc    Key = "gwpLuluc"
	PENRETotal  Key = "penreTotal"
	PERETotal   Key = "pereTotal"
	AP          Key = "ap"
	ODP         Key = "odp"
	POCP        Key = "pocp"
	ADPMineral  Key = "adpMineral"
	ADPFossil   Key = "adpFossil"
	UBP         Key = "ubp"
)

// Definition describes a registered indicator.
type Definition struct {
	Key  Key    `json:"key"`
	Name string `json:"name"`
	Unit string `json:"unit"`

	// Core indicators are shown by default and exported to IFC.
	Core bool `json:"core"`
}

//nolint:gochecknoglobals // static registry
var definitions = []Definition{
	{Key: GWPTotal, Name: "Global Warming Potential", Unit: "kg CO2-eq", Core: true},
	{Key: GWPFossil, Name: "GWP fossil", Unit: "kg CO2-eq"},
	{Key: GWPBiogenic, Name: "GWP biogenic", Unit: "kg CO2-eq"},
	{Key: GWPLuluc, Name: "GWP land use and land use change", Unit: "kg CO2-eq"},
	{Key: PENRETotal, Name: "Primary Energy Non-Renewable", Unit: "MJ", Core: true},
	{Key: PERETotal, Name: "Primary Energy Renewable", Unit: "MJ"},
	{Key: AP, Name: "Acidification Potential", Unit: "mol H+-eq"},
	{Key: ODP, Name: "Ozone Depletion Potential", Unit: "kg CFC-11-eq"},
	{Key: POCP, Name: "Photochemical Ozone Creation Potential", Unit: "kg NMVOC-eq"},
	{Key: ADPMineral, Name: "Abiotic Depletion Potential, minerals and metals", Unit: "kg Sb-eq"},
	{Key: ADPFossil, Name: "Abiotic Depletion Potential, fossil", Unit: "MJ"},
	{Key: UBP, Name: "Umweltbelastungspunkte", Unit: "UBP", Core: true},
}

//nolint:gochecknoglobals // legacy and short names accepted by ParseKey
var aliases = map[string]Key{
	"gwp":   GWPTotal,
	"penre": PENRETotal,
	"pere":  PERETotal,
	"ubp21": UBP,
}

// Definitions returns every registered indicator in registry order.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// Lookup returns the definition for key.
func Lookup(key Key) (Definition, bool) {
	for _, d := range definitions {
		if d.Key == key {
			return d, true
		}
	}
	return Definition{}, false
}

// CoreKeys returns GWP, PENRE and UBP.
func CoreKeys() []Key {
	var keys []Key
	for _, d := range definitions {
		if d.Core {
			keys = append(keys, d.Key)
		}
	}
	return keys
}

// ParseKey resolves a key case-insensitively, accepting short aliases
// such as "gwp" or "GWP".
func ParseKey(s string) (Key, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	if k, ok := aliases[norm]; ok {
		return k, nil
	}
	for _, d := range definitions {
		if strings.ToLower(string(d.Key)) == norm {
			return d.Key, nil
		}
	}
	return "", ErrUnknownKey
}

// ExportLabel returns the upper-case label used in IFC property sets
// (GWP, PENRE, UBP) or the raw key for non-core indicators.
func ExportLabel(key Key) string {
	switch key {
	case GWPTotal:
		return "GWP"
	case PENRETotal:
		return "PENRE"
	case UBP:
		return "UBP"
	default:
		return string(key)
	}
}

// order returns the registry position of key; unknown keys sort last.
func order(key Key) int {
	for i, d := range definitions {
		if d.Key == key {
			return i
		}
	}
	return len(definitions)
}

// SortKeys sorts keys in registry order, then lexically.
func SortKeys(keys []Key) {
	sort.SliceStable(keys, func(i, j int) bool {
		oi, oj := order(keys[i]), order(keys[j])
		if oi != oj {
			return oi < oj
		}
		return keys[i] < keys[j]
	})
}
