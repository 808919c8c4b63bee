package indicator

import (
	"math"
	"strings"
)

// Mass conversion factors to kilograms.
const (
	GramsToKg = 0.001
	KgToKg    = 1.0
	TonsToKg  = 1000.0
)

// unitKind groups declared units by how they convert to per-kg.
type unitKind int

const (
	unitUnknown unitKind = iota
	unitMass
	unitVolume
	unitArea
)

// classifyUnit reads a declared unit such as "1 kg", "m³" or "t" and
// returns its kind plus, for mass units, the factor to kilograms.
func classifyUnit(declared string) (unitKind, float64) {
	u := strings.ToLower(strings.TrimSpace(declared))
	u = strings.TrimPrefix(u, "1 ")
	u = strings.NewReplacer("³", "3", "²", "2").Replace(u)

	switch u {
	case "kg", "kilogram":
		return unitMass, KgToKg
	case "g", "gram":
		return unitMass, GramsToKg
	case "t", "tonne", "metric ton", "ton":
		return unitMass, TonsToKg
	case "m3", "cbm", "cubic meter", "cubic metre":
		return unitVolume, 0
	case "m2", "qm", "square meter", "square metre", "sqm":
		return unitArea, 0
	default:
		return unitUnknown, 0
	}
}

// IsMassUnit reports whether declared is a mass unit.
func IsMassUnit(declared string) bool {
	k, _ := classifyUnit(declared)
	return k == unitMass
}

// NormalizePerKg converts a value declared per declared unit into a per-kg
// factor.
//
// Mass units are rescaled. Volumetric units need a positive density
// (kg/m³) and return ErrDensityRequired without one. Area units return
// ErrUnsupportedUnit. Unknown units pass through unchanged with ok=false so
// callers can log them.
func NormalizePerKg(value float64, declared string, density float64) (perKg float64, ok bool, err error) {
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return 0, false, ErrNonFinite
	}

	kind, factor := classifyUnit(declared)
	switch kind {
	case unitMass:
		// value is per `factor` kilograms.
		return value / factor, true, nil
	case unitVolume:
		if density <= 0 || math.IsNaN(density) || math.IsInf(density, 0) {
			return 0, false, ErrDensityRequired
		}
		return value / density, true, nil
	case unitArea:
		return 0, false, ErrUnsupportedUnit
	default:
		return value, false, nil
	}
}

// NormalizeValuesPerKg applies NormalizePerKg to every entry of v. Entries
// that cannot be converted are dropped and the first error is returned.
// Unlike NormalizePerKg, an unknown unit is an ErrUnsupportedUnit.
func NormalizeValuesPerKg(v Values, declared string, density float64) (Values, error) {
	if kind, _ := classifyUnit(declared); kind == unitUnknown {
		return Values{}, ErrUnsupportedUnit
	}
	out := make(Values, len(v))
	var firstErr error
	for _, k := range v.Keys() {
		f, _, err := NormalizePerKg(v[k], declared, density)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out[k] = f
	}
	return out, firstErr
}
