package classification

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// eBKP-H identity.
const (
	EBKPID      = "ebkp"
	EBKPName    = "eBKP-H"
	EBKPVersion = "2020"
)

// ebkpAmortization lists eBKP-H codes and prefixes with their amortization
// period in years. Entries ending in "." or without a sub-group act as
// prefixes for every code below them.
//
//nolint:gochecknoglobals // static table
var ebkpAmortization = map[string]int{
	"B06.01":    60,
	"B06.02":    60,
	"B06.04":    60,
	"B07.02":    60,
	"C01":       60,
	"C02.01":    60,
	"C02.02":    60,
	"C03":       60,
	"C04.01":    60,
	"C04.04":    60,
	"C04.05":    60,
	"C04.08":    40,
	"D01":       30,
	"D05.02":    20,
	"D05.02-ES": 40,
	"D05.02-SO": 30,
	"D05.04":    30,
	"D05.05":    30,
	"D07.":      30,
	"D08":       30,
	"E01":       60,
	"E02.01":    30,
	"E02.02":    30,
	"E02.03":    40,
	"E02.04":    40,
	"E02.05":    40,
	"E03":       30,
	"F01.01":    60,
	"F01.02":    30,
	"F01.03":    40,
	"F02":       30,
	"G01":       30,
	"G02":       30,
	"G03":       30,
	"G04":       30,
}

// ebkpCode captures main group letter, element group and optional element.
var ebkpCode = regexp.MustCompile(`^([A-Z])\s*(\d{1,2})(?:\.(\d{1,2}))?(.*)$`)

// validEBKP matches a fully normalized eBKP-H element code.
var validEBKP = regexp.MustCompile(`^[A-J]\d{2}\.\d{2}$`)

// EBKP is the Swiss eBKP-H classification.
type EBKP struct {
	table    map[string]int
	prefixes []string // longest first
}

// NewEBKP returns the eBKP-H system with its built-in amortization table.
func NewEBKP() *EBKP {
	return NewEBKPWithTable(ebkpAmortization)
}

// NewEBKPWithTable returns an eBKP-H system over a custom table.
func NewEBKPWithTable(table map[string]int) *EBKP {
	e := &EBKP{table: make(map[string]int, len(table))}
	for code, years := range table {
		e.table[code] = years
		e.prefixes = append(e.prefixes, code)
	}
	sort.Slice(e.prefixes, func(i, j int) bool {
		if len(e.prefixes[i]) != len(e.prefixes[j]) {
			return len(e.prefixes[i]) > len(e.prefixes[j])
		}
		return e.prefixes[i] < e.prefixes[j]
	})
	return e
}

// ID implements System.
func (e *EBKP) ID() string { return EBKPID }

// Name implements System.
func (e *EBKP) Name() string { return EBKPName }

// NormalizeCode zero-pads group and element: "c2.1" becomes "C02.01".
// Suffixes such as "-ES" and a trailing "." are preserved. Inputs that do
// not look like eBKP-H codes are returned trimmed and upper-cased.
func (e *EBKP) NormalizeCode(code string) string {
	c := strings.ToUpper(strings.TrimSpace(code))
	m := ebkpCode.FindStringSubmatch(c)
	if m == nil {
		return c
	}
	group, _ := strconv.Atoi(m[2])
	out := fmt.Sprintf("%s%02d", m[1], group)
	if m[3] != "" {
		element, _ := strconv.Atoi(m[3])
		out += fmt.Sprintf(".%02d", element)
	}
	return out + m[4]
}

// IsValidCode reports whether code normalizes to a full element code.
func (e *EBKP) IsValidCode(code string) bool {
	return validEBKP.MatchString(e.NormalizeCode(code))
}

// AmortizationYears implements System.
func (e *EBKP) AmortizationYears(code string) int {
	if strings.TrimSpace(code) == "" {
		return DefaultAmortizationYears
	}
	c := e.NormalizeCode(code)
	if years, ok := e.table[c]; ok {
		return years
	}
	for _, p := range e.prefixes {
		if hasCodePrefix(c, p) {
			return e.table[p]
		}
	}
	return DefaultAmortizationYears
}

// hasCodePrefix reports whether prefix covers code. Past a bare main-group
// letter, the prefix must end on a "." or be followed by ".", "-" or the end
// of code, so "C01" covers "C01.02" but not "C015".
func hasCodePrefix(code, prefix string) bool {
	if !strings.HasPrefix(code, prefix) {
		return false
	}
	if len(prefix) == 1 || len(code) == len(prefix) || strings.HasSuffix(prefix, ".") {
		return true
	}
	next := code[len(prefix)]
	return next == '.' || next == '-'
}
