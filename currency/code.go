// Package currency defines the currency codes and trading pairs the
// engine recognizes: two stablecoins settled against each other on the
// spot market, and two metals referenced by the perpetual futures
// markets.
package currency

import "strings"

// Code is a currency or contract-reference identifier. Codes are
// normalized to upper case on construction so map keys and comparisons
// never depend on input casing.
type Code string

// Recognized currency codes.
const (
	USDT Code = "USDT"
	USDC Code = "USDC"
	XAU  Code = "XAU" // gold, futures reference metal, not directly held
	XAG  Code = "XAG" // silver, futures reference metal, not directly held
)

// NewCode normalizes s into a Code.
func NewCode(s string) Code {
	return Code(strings.ToUpper(strings.TrimSpace(s)))
}

// IsCollateral reports whether c is a currency a wallet can actually
// hold and lock (the two stablecoins). XAU/XAG are price references
// only, never wallet currencies.
func (c Code) IsCollateral() bool {
	return c == USDT || c == USDC
}

// String implements fmt.Stringer.
func (c Code) String() string {
	return string(c)
}
