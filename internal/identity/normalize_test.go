package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already canonical", "JUAN PEREZ", "JUAN PEREZ"},
		{"lower case", "juan perez", "JUAN PEREZ"},
		{"accents", "José Hernández", "JOSE HERNANDEZ"},
		{"enye", "MUÑOZ", "MUNOZ"},
		{"dangling n", "MARIA MUn OZ", "MARIA MUNOZ"},
		{"mixed case untouched by heuristic", "Juan Perez", "JUAN PEREZ"},
		{"whitespace", "  ANA \t\n RUIZ  ", "ANA RUIZ"},
		{"empty", "", ""},
		{"only spaces", "   ", ""},
		{"dots kept", "J. PEREZ", "J. PEREZ"},
		{"j with caron", "ǰ", "J"},
		{"iota with dialytika and tonos", "ΐ", "Ι"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	samples := []string{
		"JUAN PEREZ",
		"josé   maría  lópez",
		"MUn OZ",
		"Peña Nieto",
		"ÄÖÜ äöü",
		"  Ñandú  ",
		"nnnn n n",
		"Straße",
		"Ǆemal",
		"ǰ",
		"ΐ",
		"ǰ ΐ mUn OZ",
		"ÁB̧",
		"",
	}
	for _, s := range samples {
		once := Normalize(s)
		assert.Equal(t, once, Normalize(once), "input %q", s)
	}
}

func TestRestoreEnye(t *testing.T) {
	assert.Equal(t, "MUÑOZ", RestoreEnye("MUn OZ"))
	assert.Equal(t, "Juan Perez", RestoreEnye("Juan Perez"))
	assert.Equal(t, "CASTAÑEDA", RestoreEnye("CASTAn EDA"))
}

func TestStripDiacritics(t *testing.T) {
	assert.Equal(t, "AEIOU N", StripDiacritics("ÁÉÍÓÚ Ñ"))
	assert.Equal(t, "plain", StripDiacritics("plain"))
}
