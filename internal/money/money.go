package money

import "strings"

// Amount represents a monetary value in whole Rupiah. The Rupiah has no
// minor unit in circulation, so the smallest currency unit is 1.
type Amount = int64

// FormatRp renders an amount the way receipts print it: "Rp" prefix,
// dot thousands separators, no decimals. The layout is user-facing and
// must stay byte-stable.
func FormatRp(v Amount) string {
	var b strings.Builder
	if v < 0 {
		b.WriteByte('-')
		v = -v
	}
	b.WriteString("Rp ")
	b.WriteString(groupThousands(v))
	return b.String()
}

func groupThousands(v int64) string {
	digits := itoa(v)
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte('.')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

func itoa(v int64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	for v > 0 {
		pos--
		buf[pos] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[pos:])
}
