package money

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatRp(t *testing.T) {
	cases := []struct {
		in   Amount
		want string
	}{
		{0, "Rp 0"},
		{500, "Rp 500"},
		{1000, "Rp 1.000"},
		{99900, "Rp 99.900"},
		{150000, "Rp 150.000"},
		{1234567, "Rp 1.234.567"},
		{1000000000, "Rp 1.000.000.000"},
		{-10000, "-Rp 10.000"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, FormatRp(tc.in))
	}
}
