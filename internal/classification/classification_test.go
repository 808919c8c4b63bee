package classification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCode(t *testing.T) {
	e := NewEBKP()
	tests := map[string]string{
		"C2.1":       "C02.01",
		"c02.01":     "C02.01",
		" C4.8 ":     "C04.08",
		"D7.3":       "D07.03",
		"D07.":       "D07.",
		"D5.2-ES":    "D05.02-ES",
		"E1":         "E01",
		"Z99.99":     "Z99.99",
		"not a code": "NOT A CODE",
	}
	for in, want := range tests {
		in, want := in, want
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, e.NormalizeCode(in))
		})
	}

	// Normalization is idempotent.
	for _, want := range tests {
		assert.Equal(t, want, e.NormalizeCode(want))
	}
}

func TestIsValidCode(t *testing.T) {
	e := NewEBKP()
	assert.True(t, e.IsValidCode("C2.1"))
	assert.False(t, e.IsValidCode("C02"))
	assert.False(t, e.IsValidCode("Z99.99"))
}

func TestAmortizationYears(t *testing.T) {
	e := NewEBKP()
	tests := []struct {
		code string
		want int
	}{
		{"C02.01", 60},
		{"C2.1", 60},
		{"C04.08", 40},
		{"D05.02", 20},
		{"D05.02-ES", 40},
		{"D07.", 30},
		{"D07.3", 30},
		{"D07.03", 30},
		{"C01.02", 60},
		{"E02.03", 40},
		{"G03.01", 30},
		{"Z99.99", DefaultAmortizationYears},
		{"", DefaultAmortizationYears},
		{"C015", DefaultAmortizationYears},
		{"C01X", DefaultAmortizationYears},
		{"C01-A", 60},
		{"D05.021", DefaultAmortizationYears},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, e.AmortizationYears(tt.code))
		})
	}

	assert.Equal(t, e.AmortizationYears("D07."), e.AmortizationYears("D07.3"))
}

func TestLongestPrefixWins(t *testing.T) {
	e := NewEBKPWithTable(map[string]int{"D": 10, "D05": 20, "D05.02": 25})
	assert.Equal(t, 25, e.AmortizationYears("D05.02-XY"))
	assert.Equal(t, 20, e.AmortizationYears("D05.07"))
	assert.Equal(t, 10, e.AmortizationYears("D09.01"))
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()

	s, ok := r.Get("EBKP")
	require.True(t, ok)
	assert.Equal(t, EBKPID, s.ID())

	s, ok = r.Get("ebkp-h")
	require.True(t, ok)
	assert.Equal(t, EBKPName, s.Name())

	_, ok = r.Get("uniformat")
	assert.False(t, ok)

	assert.Equal(t, EBKPID, r.Default().ID())
	assert.Equal(t, []string{EBKPID}, r.IDs())

	t.Run("unknown system falls back to default years", func(t *testing.T) {
		assert.Equal(t, DefaultAmortizationYears, r.AmortizationYears("my own system", "C04.08"))
	})
	t.Run("empty system uses default system", func(t *testing.T) {
		assert.Equal(t, 40, r.AmortizationYears("", "C4.8"))
	})
	t.Run("empty registry", func(t *testing.T) {
		empty := NewRegistry()
		assert.Nil(t, empty.Default())
		assert.Equal(t, DefaultAmortizationYears, empty.AmortizationYears("", "C04.08"))
	})
}
