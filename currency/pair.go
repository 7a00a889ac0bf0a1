package currency

import (
	"fmt"
	"strings"
)

// PairType distinguishes the spot stablecoin market from the futures
// metals markets.
type PairType uint8

// Recognized pair types.
const (
	Spot PairType = iota
	Futures
)

// String implements fmt.Stringer.
func (t PairType) String() string {
	if t == Futures {
		return "futures"
	}
	return "spot"
}

// Pair is a tradeable instrument, named Base-Quote for spot markets and
// Base-PERP for perpetual futures.
type Pair struct {
	Base  Code
	Quote Code
	Type  PairType
}

// Recognized pairs, matching the binding market parameter table in the
// specification.
var (
	USDTUSDC = Pair{Base: USDT, Quote: USDC, Type: Spot}
	XAUPERP  = Pair{Base: XAU, Quote: USDC, Type: Futures}
	XAGPERP  = Pair{Base: XAG, Quote: USDC, Type: Futures}
)

// allPairs is the universe the engine trades; order matters only for
// iteration determinism in sweeps (funding, liquidation).
var allPairs = []Pair{USDTUSDC, XAUPERP, XAGPERP}

// AllPairs returns every instrument the engine trades, in a fixed order.
func AllPairs() []Pair {
	out := make([]Pair, len(allPairs))
	copy(out, allPairs)
	return out
}

// String renders the pair in its canonical display form, e.g.
// "USDT-USDC" or "XAU-PERP".
func (p Pair) String() string {
	if p.Type == Futures {
		return fmt.Sprintf("%s-PERP", p.Base)
	}
	return fmt.Sprintf("%s-%s", p.Base, p.Quote)
}

// ParsePair parses the canonical display form back into a Pair. It
// returns false if s does not name one of the three recognized
// instruments.
func ParsePair(s string) (Pair, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, p := range allPairs {
		if p.String() == s {
			return p, true
		}
	}
	return Pair{}, false
}

// IsFutures reports whether p is one of the perpetual futures markets.
func (p Pair) IsFutures() bool { return p.Type == Futures }
