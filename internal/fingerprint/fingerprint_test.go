package fingerprint

import (
	"math/rand"
	"strings"
	"testing"
	"unicode"

	"github.com/Veraticus/compliance-intelligence/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "trims", in: "  Missing email  ", want: "missing email"},
		{name: "collapses whitespace", in: "Missing \t\n  email", want: "missing email"},
		{name: "lower-cases", in: "IMPRESSUM", want: "impressum"},
		{name: "only whitespace", in: " \t ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestCompute_Deterministic(t *testing.T) {
	category := "impressum"
	title := "Missing email"
	description := "The imprint page does not list a contact email address"

	want, err := Compute(category, title, description)
	require.NoError(t, err)
	assert.True(t, Valid(want))

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		got, err := Compute(permute(rng, category), permute(rng, title), permute(rng, description))
		require.NoError(t, err)
		assert.Equal(t, want, got, "permutation %d produced a different fingerprint", i)
	}
}

func TestCompute_DistinguishesFields(t *testing.T) {
	a, err := Compute("impressum", "missing email", "owner")
	require.NoError(t, err)
	b, err := Compute("impressum missing", "email", "owner")
	require.NoError(t, err)
	c, err := Compute("cookies", "missing email", "owner")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestCompute_ControlCharactersDoNotShiftFields(t *testing.T) {
	tests := []struct {
		name string
		a, b [3]string
	}{
		{name: "unit separator", a: [3]string{"a\x1fb", "c", "d"}, b: [3]string{"a", "b\x1fc", "d"}},
		{name: "record separator", a: [3]string{"c", "t\x1ed", "x"}, b: [3]string{"c", "t", "d\x1ex"}},
		{name: "length-like prefix", a: [3]string{"c", "1:t", "d"}, b: [3]string{"c:1", "t", "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Compute(tt.a[0], tt.a[1], tt.a[2])
			require.NoError(t, err)
			b, err := Compute(tt.b[0], tt.b[1], tt.b[2])
			require.NoError(t, err)
			assert.NotEqual(t, a, b)
		})
	}
}

func TestCompute_RejectsDegenerateInput(t *testing.T) {
	tests := []struct {
		name                         string
		category, title, description string
	}{
		{name: "empty category", category: "", title: "t", description: "d"},
		{name: "whitespace title", category: "c", title: "   ", description: "d"},
		{name: "empty description", category: "c", title: "t", description: "\n\t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp, err := Compute(tt.category, tt.title, tt.description)
			require.ErrorIs(t, err, common.ErrInvalidFingerprintInput)
			assert.Empty(t, fp)
		})
	}
}

func TestValid(t *testing.T) {
	assert.False(t, Valid(""))
	assert.False(t, Valid("abc"))
	assert.False(t, Valid(strings.Repeat("z", 64)))
	assert.True(t, Valid(strings.Repeat("a", 64)))
}

// permute randomizes case and whitespace without changing the normalized form.
func permute(rng *rand.Rand, s string) string {
	spaces := []string{" ", "  ", "\t", "\n", " \t "}
	var b strings.Builder
	b.WriteString(spaces[rng.Intn(len(spaces))])
	for i, word := range strings.Fields(s) {
		if i > 0 {
			b.WriteString(spaces[rng.Intn(len(spaces))])
		}
		for _, r := range word {
			if rng.Intn(2) == 0 {
				r = unicode.ToUpper(r)
			}
			b.WriteRune(r)
		}
	}
	b.WriteString(spaces[rng.Intn(len(spaces))])
	return b.String()
}
