package calc

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok, "bad integer literal %q", s)
	return v
}

func TestToDisplayString(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		decimals int
		maxFrac  int
		expected string
	}{
		{"zero", "0", 18, 4, "0"},
		{"dust rounds to zero", "1000", 18, 6, "0"},
		{"one and a half", "1500000000000000000", 18, 4, "1.5"},
		{"grouped integer part", "1234567891000000000000000", 18, 4, "1,234,567.891"},
		{"no decimals", "123456789", 0, 4, "123,456,789"},
		{"rounds half up", "1234560000000000000", 18, 4, "1.2346"},
		{"rounds into integer", "999950000000000000", 18, 4, "1"},
		{"six decimals", "2500000", 6, 2, "2.5"},
		{"exactly one thousand", "1000000000000000000000", 18, 2, "1,000"},
		{"negative", "-5", 0, 2, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToDisplayString(mustBig(t, tt.raw), tt.decimals, tt.maxFrac)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestToDisplayString_Degenerate(t *testing.T) {
	assert.Equal(t, "0", ToDisplayString(nil, 18, 4))
	assert.Equal(t, "0", ToDisplayString(big.NewInt(5), -1, 4))
	assert.Equal(t, "2", ToDisplayString(big.NewInt(15), 1, -3))
}

func TestFromDisplayString(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		decimals int
		expected string
	}{
		{"plain fraction", "1.5", 18, "1500000000000000000"},
		{"grouped", "1,234.5", 18, "1234500000000000000000"},
		{"leading dot", ".5", 2, "50"},
		{"trailing dot", "5.", 2, "500"},
		{"truncates excess digits", "1.239", 2, "123"},
		{"grouped integer", "1,000,000", 0, "1000000"},
		{"surrounding space", " 7 ", 0, "7"},
		{"empty", "", 18, "0"},
		{"letters", "abc", 18, "0"},
		{"bad grouping", "1,23", 18, "0"},
		{"two dots", "1.2.3", 18, "0"},
		{"negative", "-1", 18, "0"},
		{"lone dot", ".", 18, "0"},
		{"exponent", "1e18", 0, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FromDisplayString(tt.text, tt.decimals)
			assert.Equal(t, tt.expected, result.String())
		})
	}
}

func TestDisplayRoundTrip(t *testing.T) {
	raws := []string{
		"1",
		"999",
		"1000000000000000000",
		"1234567890123456789012345",
		"100000000000000000000000000000",
		"5",
	}
	for _, decimals := range []int{0, 6, 18} {
		for _, s := range raws {
			raw := mustBig(t, s)
			display := ToDisplayString(raw, decimals, decimals)
			back := FromDisplayString(display, decimals)
			assert.Equal(t, 0, raw.Cmp(back), "decimals=%d raw=%s display=%s back=%s", decimals, raw, display, back)
		}
	}
}

func TestFormatBps(t *testing.T) {
	tests := []struct {
		bps      uint16
		expected string
	}{
		{0, "0.00%"},
		{1, "0.01%"},
		{25, "0.25%"},
		{200, "2.00%"},
		{500, "5.00%"},
		{1000, "10.00%"},
		{10000, "100.00%"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatBps(tt.bps))
	}
}
