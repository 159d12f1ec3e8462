package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ramesh@example.com", "r*****@example.com"},
		{"a@example.com", "a@example.com"},
		{"sita.devi@gov.np", "s********@gov.np"},
		{"not-an-email", "************"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskEmail(tt.in), "input %q", tt.in)
	}
}

func TestPseudonymStable(t *testing.T) {
	a := Pseudonym("Ramesh@Example.com")
	b := Pseudonym("  ramesh@example.com ")
	c := Pseudonym("other@example.com")

	assert.Equal(t, a, b, "case and whitespace should not change the handle")
	assert.NotEqual(t, a, c)
	assert.Regexp(t, `^citizen-[0-9a-f]{8}$`, a)
}
