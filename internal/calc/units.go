package calc

import (
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultDecimals is the ERC-20 scale assumed before the token has been read.
const DefaultDecimals = 18

// digits, optionally in well-formed thousands groups, then an optional fraction
var displayAmountPattern = regexp.MustCompile(`^(\d{1,3}(,\d{3})+|\d+)?(\.\d*)?$`)

// ToDecimal scales a raw integer amount down by 10^decimals.
func ToDecimal(raw *big.Int, decimals int) decimal.Decimal {
	if raw == nil || decimals < 0 {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, int32(-decimals))
}

// ToDisplayString renders raw/10^decimals rounded to at most maxFractionDigits,
// trailing zeros trimmed and the integer part grouped with commas.
func ToDisplayString(raw *big.Int, decimals, maxFractionDigits int) string {
	if raw == nil || raw.Sign() <= 0 || decimals < 0 {
		return "0"
	}
	return FormatDecimal(ToDecimal(raw, decimals), maxFractionDigits)
}

// FormatDecimal rounds half away from zero and groups the integer part.
func FormatDecimal(d decimal.Decimal, maxFractionDigits int) string {
	if maxFractionDigits < 0 {
		maxFractionDigits = 0
	}
	rounded := d.Round(int32(maxFractionDigits))
	if rounded.IsZero() {
		return "0"
	}

	s := rounded.String()
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	out := sign + groupThousands(intPart)
	if hasFrac {
		out += "." + frac
	}
	return out
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// FromDisplayString parses user text into a raw amount. Malformed input yields
// zero and excess fraction digits are truncated.
func FromDisplayString(text string, decimals int) *big.Int {
	text = strings.TrimSpace(text)
	if text == "" || decimals < 0 || !displayAmountPattern.MatchString(text) {
		return new(big.Int)
	}

	plain := strings.ReplaceAll(text, ",", "")
	if plain == "." {
		return new(big.Int)
	}
	if strings.HasPrefix(plain, ".") {
		plain = "0" + plain
	}
	plain = strings.TrimSuffix(plain, ".")

	d, err := decimal.NewFromString(plain)
	if err != nil {
		return new(big.Int)
	}
	return d.Shift(int32(decimals)).Truncate(0).BigInt()
}

// FormatBps renders basis points as a percentage with two fraction digits.
func FormatBps(bps uint16) string {
	return decimal.New(int64(bps), -2).StringFixed(2) + "%"
}
