package amount

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		want     int64
	}{
		{"usd whole", "10.00", "USD", 1000},
		{"usd cents", "12.34", "EUR", 1234},
		{"rounds before scaling", "10.005", "USD", 1001},
		{"rounds down", "10.004", "USD", 1000},
		{"jpy", "500", "JPY", 500},
		{"jpy lower case", "500", "jpy", 500},
		{"zero decimal rounds", "499.6", "KRW", 500},
		{"unknown currency uses cents", "1.5", "ZZZ", 150},
		{"negative is absolute", "-3.21", "USD", 321},
		{"negative zero decimal", "-42", "XOF", 42},
		{"zero", "0", "USD", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToMinorUnits(dec(t, tt.amount), tt.currency))
		})
	}
}

func TestCodecPrecision(t *testing.T) {
	three := NewCodec(3)
	assert.Equal(t, int64(1001), three.ToMinorUnits(dec(t, "10.0049"), "USD"))

	zero := NewCodec(0)
	assert.Equal(t, int64(1100), zero.ToMinorUnits(dec(t, "10.5"), "USD"))

	assert.Equal(t, DefaultDecimals, NewCodec(-1).Decimals)
}

func TestFromFloat(t *testing.T) {
	assert.Equal(t, int64(1999), ToMinorUnits(FromFloat(19.99), "USD"))
	assert.True(t, ToMinorUnits(FromFloat(-0.01), "USD") >= 0)
}
