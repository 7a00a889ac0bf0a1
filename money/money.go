// Package money implements fixed-point decimal arithmetic for prices,
// quantities, and balances. No float64 ever touches a value that affects
// a balance, PnL, margin, or fee.
package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// InternalScale is the fractional-digit precision carried by every
// Decimal regardless of the presentation scale of the value it holds.
const InternalScale = 8

// Decimal is a fixed-point value rounded half-away-from-zero to
// InternalScale fractional digits on every arithmetic operation.
type Decimal struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Decimal{d: decimal.Zero}

// New builds a Decimal from an integer mantissa and exponent, mirroring
// decimal.New.
func New(value int64, exp int32) Decimal {
	return Decimal{d: decimal.New(value, exp)}.normalize()
}

// NewFromString parses a decimal literal. It rejects strings that are not
// valid decimal numbers; it does not itself reject strings with more
// digits than InternalScale, since those are rounded (not truncated) on
// construction, but any rounding that is not exact to InternalScale
// digits below the requested precision is still loss, so callers that
// must reject lossy input should use NewFromStringExact.
func NewFromString(s string) (Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("money: invalid decimal %q: %w", s, err)
	}
	return Decimal{d: d}.normalize(), nil
}

// NewFromStringExact parses a decimal literal and rejects any value whose
// exact representation requires more than InternalScale fractional
// digits, since rounding it would silently lose precision the caller
// did not ask to discard.
func NewFromStringExact(s string) (Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("money: invalid decimal %q: %w", s, err)
	}
	rounded := d.Round(InternalScale)
	if !rounded.Equal(d) {
		return Decimal{}, fmt.Errorf("money: %q carries more than %d fractional digits", s, InternalScale)
	}
	return Decimal{d: rounded}, nil
}

// NewFromFloat converts a float64 into a Decimal. Reserved for
// presentation and test fixtures; never call this on a value that will
// feed a balance, PnL, margin, or fee computation derived from external
// untrusted input — use NewFromString for that.
func NewFromFloat(f float64) Decimal {
	return Decimal{d: decimal.NewFromFloat(f)}.normalize()
}

func (d Decimal) normalize() Decimal {
	return Decimal{d: d.d.Round(InternalScale)}
}

// Add returns d + other, rounded to InternalScale.
func (d Decimal) Add(other Decimal) Decimal {
	return Decimal{d: d.d.Add(other.d)}.normalize()
}

// Sub returns d - other, rounded to InternalScale.
func (d Decimal) Sub(other Decimal) Decimal {
	return Decimal{d: d.d.Sub(other.d)}.normalize()
}

// Mul returns d * other, rounded to InternalScale.
func (d Decimal) Mul(other Decimal) Decimal {
	return Decimal{d: d.d.Mul(other.d)}.normalize()
}

// Div returns d / other, rounded to InternalScale. Div panics if other is
// zero, the same contract shopspring/decimal exposes; callers dividing by
// a quantity or leverage that could legitimately be zero must check
// IsZero first.
func (d Decimal) Div(other Decimal) Decimal {
	return Decimal{d: d.d.DivRound(other.d, InternalScale+2)}.normalize()
}

// Neg returns -d.
func (d Decimal) Neg() Decimal {
	return Decimal{d: d.d.Neg()}
}

// Abs returns |d|.
func (d Decimal) Abs() Decimal {
	return Decimal{d: d.d.Abs()}
}

// Cmp returns -1, 0, or 1 per decimal.Decimal.Cmp.
func (d Decimal) Cmp(other Decimal) int {
	return d.d.Cmp(other.d)
}

// Equal reports whether d and other carry the same value.
func (d Decimal) Equal(other Decimal) bool {
	return d.d.Equal(other.d)
}

// GreaterThan reports d > other.
func (d Decimal) GreaterThan(other Decimal) bool { return d.d.GreaterThan(other.d) }

// GreaterThanOrEqual reports d >= other.
func (d Decimal) GreaterThanOrEqual(other Decimal) bool { return d.d.GreaterThanOrEqual(other.d) }

// LessThan reports d < other.
func (d Decimal) LessThan(other Decimal) bool { return d.d.LessThan(other.d) }

// LessThanOrEqual reports d <= other.
func (d Decimal) LessThanOrEqual(other Decimal) bool { return d.d.LessThanOrEqual(other.d) }

// IsZero reports whether d is exactly zero.
func (d Decimal) IsZero() bool { return d.d.IsZero() }

// IsNegative reports whether d < 0.
func (d Decimal) IsNegative() bool { return d.d.IsNegative() }

// IsPositive reports whether d > 0.
func (d Decimal) IsPositive() bool { return d.d.IsPositive() }

// Max returns the greater of d and other.
func Max(d, other Decimal) Decimal {
	if d.GreaterThan(other) {
		return d
	}
	return other
}

// Min returns the lesser of d and other.
func Min(d, other Decimal) Decimal {
	if d.LessThan(other) {
		return d
	}
	return other
}

// Clamp bounds d to [lo, hi].
func Clamp(d, lo, hi Decimal) Decimal {
	return Min(Max(d, lo), hi)
}

// RoundToScale rounds d to scale fractional digits, half-away-from-zero,
// without altering the InternalScale at which d continues to be stored.
// Use this to derive a presentation-rounded value for display or for a
// tick-size check; it never replaces the internally-carried precision.
func (d Decimal) RoundToScale(scale int32) Decimal {
	return Decimal{d: d.d.Round(scale)}
}

// String renders d with exactly InternalScale fractional digits.
func (d Decimal) String() string {
	return d.d.StringFixed(InternalScale)
}

// Float64 returns d as a float64, for presentation/logging only.
func (d Decimal) Float64() float64 {
	f, _ := d.d.Float64()
	return f
}

// Value implements driver.Valuer so a Decimal can be written directly to
// a database/sql text or numeric column.
func (d Decimal) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan implements sql.Scanner, accepting the textual/numeric forms a
// Postgres or SQLite driver may hand back.
func (d *Decimal) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = Zero
		return nil
	case string:
		parsed, err := NewFromString(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		parsed, err := NewFromString(string(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case float64:
		*d = NewFromFloat(v)
		return nil
	case int64:
		*d = New(v, 0)
		return nil
	default:
		return fmt.Errorf("money: cannot scan %T into Decimal", src)
	}
}

// MarshalJSON renders d as a JSON string so precision survives the
// float64 round-trip a JSON number would otherwise force.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON parses a JSON string (or bare number, for convenience) as
// a Decimal.
func (d *Decimal) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := NewFromString(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
