package fees

import (
	"database/sql/driver"
	"fmt"
	"math/big"
	"strings"
)

// Amount is a fixed-point token quantity scaled by 1e18, backed by a big.Int.
// It is stored as numeric(78,0) in Postgres and serialized as a decimal string
// in JSON so precision survives every boundary.
type Amount struct {
	i *big.Int
}

// Scale is the fixed-point scale shared by every monetary value in the engine.
var Scale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// OneToken is 1.0 in the fixed-point representation.
func OneToken() Amount { return Amount{i: new(big.Int).Set(Scale)} }

// Zero returns the zero amount.
func Zero() Amount { return Amount{i: new(big.Int)} }

// NewAmount copies v into an Amount. A nil v yields zero.
func NewAmount(v *big.Int) Amount {
	if v == nil {
		return Zero()
	}
	return Amount{i: new(big.Int).Set(v)}
}

// NewAmountFromUnits returns units whole tokens as an Amount.
func NewAmountFromUnits(units int64) Amount {
	return Amount{i: new(big.Int).Mul(big.NewInt(units), Scale)}
}

// ParseAmount parses a base-10 integer string.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero(), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("fees: invalid amount %q", s)
	}
	return Amount{i: v}, nil
}

func (a Amount) bigint() *big.Int {
	if a.i == nil {
		return new(big.Int)
	}
	return a.i
}

// Int returns a copy of the underlying integer.
func (a Amount) Int() *big.Int { return new(big.Int).Set(a.bigint()) }

func (a Amount) IsZero() bool     { return a.bigint().Sign() == 0 }
func (a Amount) IsPositive() bool { return a.bigint().Sign() > 0 }

// Cmp compares a and b like big.Int.Cmp.
func (a Amount) Cmp(b Amount) int { return a.bigint().Cmp(b.bigint()) }

func (a Amount) Add(b Amount) Amount {
	return Amount{i: new(big.Int).Add(a.bigint(), b.bigint())}
}

func (a Amount) Sub(b Amount) Amount {
	return Amount{i: new(big.Int).Sub(a.bigint(), b.bigint())}
}

// MulBps multiplies by a basis-point rate, truncating toward zero.
func (a Amount) MulBps(bps uint64) Amount {
	v := new(big.Int).Mul(a.bigint(), new(big.Int).SetUint64(bps))
	return Amount{i: v.Quo(v, big.NewInt(10_000))}
}

func (a Amount) String() string { return a.bigint().String() }

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.bigint().String() + `"`), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		a.i = new(big.Int)
		return nil
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	a.i = parsed.i
	return nil
}

// Value implements driver.Valuer.
func (a Amount) Value() (driver.Value, error) {
	return a.bigint().String(), nil
}

// Scan implements sql.Scanner.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		a.i = new(big.Int)
		return nil
	case int64:
		a.i = big.NewInt(v)
		return nil
	case string:
		parsed, err := ParseAmount(v)
		if err != nil {
			return err
		}
		a.i = parsed.i
		return nil
	case []byte:
		parsed, err := ParseAmount(string(v))
		if err != nil {
			return err
		}
		a.i = parsed.i
		return nil
	default:
		return fmt.Errorf("fees: cannot scan %T into Amount", src)
	}
}

// GormDataType tells gorm which column type to use.
func (Amount) GormDataType() string { return "numeric(78,0)" }
