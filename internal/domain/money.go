package domain

import "github.com/shopspring/decimal"

// minorUnits maps ISO 4217 codes to their minor-unit exponent where it
// differs from the usual 2.
var minorUnits = map[string]int32{
	"KRW": 0,
	"JPY": 0,
	"VND": 0,
	"BHD": 3,
	"KWD": 3,
	"OMR": 3,
}

// CurrencyExponent returns the minor-unit exponent for a currency code.
func CurrencyExponent(currency string) int32 {
	if exp, ok := minorUnits[currency]; ok {
		return exp
	}
	return 2
}

// RoundMinor rounds an amount to the currency's minor unit using
// round-half-to-even. All monetary results pass through here; no
// floating point is involved at any step.
func RoundMinor(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.RoundBank(CurrencyExponent(currency))
}
