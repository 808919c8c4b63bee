package material

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/lcamatch/internal/indicator"
)

func TestIDRoundTrip(t *testing.T) {
	ids := []string{"abc123", "0E2C8B7F-1111-4A4A-9F9F-000000000001", "with_underscore", "KBOB_nested"}
	for _, src := range Sources() {
		src := src
		for _, sid := range ids {
			sid := sid
			t.Run(string(src)+"/"+sid, func(t *testing.T) {
				id := MakeID(src, sid)
				gotSrc, gotID, err := ParseID(id)
				require.NoError(t, err)
				assert.Equal(t, src, gotSrc)
				assert.Equal(t, sid, gotID)
				assert.True(t, HasPrefix(id, src))
			})
		}
	}
}

func TestParseIDErrors(t *testing.T) {
	for _, id := range []string{"", "abc", "KBOB_", "kbob_abc", "ECOINVENT_1"} {
		id := id
		t.Run(id, func(t *testing.T) {
			_, _, err := ParseID(id)
			assert.ErrorIs(t, err, ErrInvalidID)
		})
	}
	assert.False(t, HasPrefix("OKOBAUDAT_x", SourceKBOB))
}

func TestParseSource(t *testing.T) {
	tests := map[string]Source{
		"KBOB":       SourceKBOB,
		"oekobaudat": SourceOekobaudat,
		"Ökobaudat":  SourceOekobaudat,
		"openepd":    SourceOpenEPD,
	}
	for in, want := range tests {
		got, ok := ParseSource(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	_, ok := ParseSource("ecoinvent")
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	m := &NormalizedMaterial{Source: SourceKBOB, SourceID: "abc"}
	m.Normalize()
	assert.Equal(t, "KBOB_abc", m.ID)
	assert.Equal(t, DefaultCategory, m.Category)
	assert.NotNil(t, m.Indicators)
	assert.False(t, m.HasDensity())

	m.Density = Float(2400)
	m.Indicators[indicator.GWPTotal] = 0.105
	assert.True(t, m.HasDensity())
	f, ok := m.Factor(indicator.GWPTotal)
	assert.True(t, ok)
	assert.InDelta(t, 0.105, f, 1e-12)
	_, ok = m.Factor(indicator.UBP)
	assert.False(t, ok)

	var nilMat *NormalizedMaterial
	_, ok = nilMat.Factor(indicator.GWPTotal)
	assert.False(t, ok)
}
