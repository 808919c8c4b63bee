package indicator

import (
	"math"
)

// Values is a sparse indicator map. A missing key means unknown.
type Values map[Key]float64

// Get returns the value for key and whether it is known.
func (v Values) Get(key Key) (float64, bool) {
	f, ok := v[key]
	return f, ok
}

// Ptr returns the value for key as a pointer, nil when unknown.
func (v Values) Ptr(key Key) *float64 {
	f, ok := v[key]
	if !ok {
		return nil
	}
	return &f
}

// Clone returns a copy of v. A nil receiver yields an empty map.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, f := range v {
		out[k] = f
	}
	return out
}

// Keys returns the known keys in registry order.
func (v Values) Keys() []Key {
	keys := make([]Key, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	SortKeys(keys)
	return keys
}

// IsEmpty reports whether no indicator is known.
func (v Values) IsEmpty() bool { return len(v) == 0 }

// Add accumulates other into v pointwise. Keys absent from other leave v
// untouched, keys absent from v are created.
func (v Values) Add(other Values) {
	for _, k := range other.Keys() {
		v[k] += other[k]
	}
}

// Sum adds sets pointwise in the given order. The result holds a key only
// if at least one input knows it.
func Sum(sets ...Values) Values {
	out := Values{}
	for _, s := range sets {
		out.Add(s)
	}
	return out
}

// Scale multiplies every known value by f.
func (v Values) Scale(f float64) Values {
	out := make(Values, len(v))
	for k, x := range v {
		out[k] = x * f
	}
	return out
}

// DivideBy divides every known value by d. It returns nil, false when d is
// zero, negative or not finite.
func (v Values) DivideBy(d float64) (Values, bool) {
	if d <= 0 || math.IsInf(d, 0) || math.IsNaN(d) {
		return nil, false
	}
	return v.Scale(1 / d), true
}

// Finite drops NaN and Inf entries.
func (v Values) Finite() Values {
	out := make(Values, len(v))
	for k, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		out[k] = x
	}
	return out
}

// AvailableIndicators returns, in registry order, every key known by at
// least one of sets.
func AvailableIndicators(sets ...Values) []Key {
	return Sum(sets...).Keys()
}
