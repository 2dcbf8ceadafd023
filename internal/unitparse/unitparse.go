// Package unitparse parses Ethereum-unit value strings ("5gwei",
// "0.01ether", "100000000000") into wei, and the "ge"/"le" threshold
// expressions used by cost/gas-price filters. Ported from
// misc/eth_unit_parser.rs.
package unitparse

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// Unit is one Ethereum denomination, including historical synonyms.
type Unit int

const (
	Wei Unit = iota
	Kwei
	Mwei
	Gwei
	Szabo
	Finney
	Ether
	Kether
	Mether
	Gether
	Tether
)

var unitNames = map[string]Unit{
	"wei":        Wei,
	"kwei":       Kwei,
	"babbage":    Kwei,
	"femtoether": Kwei,
	"mwei":       Mwei,
	"lovelace":   Mwei,
	"picoether":  Mwei,
	"gwei":       Gwei,
	"shannon":    Gwei,
	"nanoether":  Gwei,
	"nano":       Gwei,
	"szabo":      Szabo,
	"microether": Szabo,
	"micro":      Szabo,
	"finney":     Finney,
	"milliether": Finney,
	"milli":      Finney,
	"ether":      Ether,
	"eth":        Ether,
	"kether":     Kether,
	"grand":      Kether,
	"mether":     Mether,
	"gether":     Gether,
	"tether":     Tether,
}

var unitExponent = map[Unit]int64{
	Wei: 0, Kwei: 3, Mwei: 6, Gwei: 9, Szabo: 12, Finney: 15,
	Ether: 18, Kether: 21, Mether: 24, Gether: 27, Tether: 30,
}

// ParseUnit resolves a unit name (case-insensitive), accepting the
// historical synonyms listed in the spec glossary.
func ParseUnit(s string) (Unit, error) {
	u, ok := unitNames[strings.ToLower(s)]
	if !ok {
		return 0, fmt.Errorf("unknown unit: %s", s)
	}
	return u, nil
}

// Multiplier returns 10^exponent(u) as a *big.Int.
func (u Unit) Multiplier() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(unitExponent[u]), nil)
}

// ParseValue parses a string like "5gwei" or "0.01ether" into wei. A pure
// numeric string (no trailing unit letters) is interpreted as wei.
func ParseValue(input string) (*big.Int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty value")
	}

	isPureNumber := true
	for _, r := range input {
		if !(r >= '0' && r <= '9') && r != '.' {
			isPureNumber = false
			break
		}
	}
	if isPureNumber {
		return parseDecimal(input, Wei)
	}

	var numeric, unitPart strings.Builder
	inUnit := false
	for _, r := range input {
		if !inUnit && ((r >= '0' && r <= '9') || r == '.') {
			numeric.WriteRune(r)
		} else {
			inUnit = true
			unitPart.WriteRune(r)
		}
	}
	if numeric.Len() == 0 || unitPart.Len() == 0 {
		return nil, fmt.Errorf("invalid format: expected '<number><unit>', got %q", input)
	}
	unit, err := ParseUnit(unitPart.String())
	if err != nil {
		return nil, err
	}
	return parseDecimal(numeric.String(), unit)
}

func parseDecimal(value string, unit Unit) (*big.Int, error) {
	mult := unit.Multiplier()
	if !strings.Contains(value, ".") {
		v, ok := new(big.Int).SetString(value, 10)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", value)
		}
		return new(big.Int).Mul(v, mult), nil
	}

	parts := strings.SplitN(value, ".", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid decimal format in %q", value)
	}
	intPart := parts[0]
	if intPart == "" {
		intPart = "0"
	}
	fracPart := parts[1]

	intVal, ok := new(big.Int).SetString(intPart, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer part in %q", value)
	}
	whole := new(big.Int).Mul(intVal, mult)

	if fracPart == "" {
		return whole, nil
	}
	exp := unitExponent[unit]
	if int64(len(fracPart)) > exp {
		return nil, fmt.Errorf("too many decimal places for unit in %q", value)
	}
	fracVal, ok := new(big.Int).SetString(fracPart, 10)
	if !ok {
		return nil, fmt.Errorf("invalid fractional part in %q", value)
	}
	fracMult := new(big.Int).Exp(big.NewInt(10), big.NewInt(exp-int64(len(fracPart))), nil)
	fracWei := new(big.Int).Mul(fracVal, fracMult)

	return new(big.Int).Add(whole, fracWei), nil
}

// Operator is the comparison direction for a threshold predicate.
type Operator int

const (
	GreaterOrEqual Operator = iota
	LessOrEqual
)

// Threshold is a parsed `ge<value><unit>` / `le<value><unit>` expression.
type Threshold struct {
	Operator Operator
	Wei      *big.Int
}

// Matches reports whether value satisfies the threshold.
func (t Threshold) Matches(value *big.Int) bool {
	switch t.Operator {
	case GreaterOrEqual:
		return value.Cmp(t.Wei) >= 0
	case LessOrEqual:
		return value.Cmp(t.Wei) <= 0
	default:
		return false
	}
}

// ParseThreshold parses "ge1ether", "le5gwei", "ge1000000000" style
// expressions.
func ParseThreshold(s string) (Threshold, error) {
	var op Operator
	var rest string
	switch {
	case strings.HasPrefix(s, "ge"):
		op = GreaterOrEqual
		rest = s[2:]
	case strings.HasPrefix(s, "le"):
		op = LessOrEqual
		rest = s[2:]
	default:
		return Threshold{}, fmt.Errorf("threshold must start with 'ge' or 'le': %q", s)
	}
	wei, err := ParseValue(rest)
	if err != nil {
		return Threshold{}, err
	}
	return Threshold{Operator: op, Wei: wei}, nil
}

// ParseValueU256 is a uint256 convenience wrapper over ParseValue for
// amounts kept as uint256.Int (matching the teacher's own mixed
// big.Int/uint256 usage: RPC-boundary values stay big.Int, internal
// EVM/state arithmetic uses uint256). A value that does not fit in 256 bits
// is an error.
func ParseValueU256(input string) (*uint256.Int, error) {
	v, err := ParseValue(input)
	if err != nil {
		return nil, err
	}
	u, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("value %q overflows uint256", input)
	}
	return u, nil
}
