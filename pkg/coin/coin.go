// Package coin converts raw on-chain amounts into decimal coins and USD values.
package coin

import (
	"math"
	"regexp"

	"github.com/canopy-network/dropcamp/pkg/errs"
	"github.com/shopspring/decimal"
)

var rawAmount = regexp.MustCompile(`^[0-9]+$`)

// Coin is a scaled amount of one denomination.
type Coin struct {
	// Denom is the display denomination.
	Denom  string
	Amount decimal.Decimal
	// PriceID is the price source id; empty when the coin has no price.
	PriceID string
}

// Scale parses a raw integer amount and shifts it by decimals places.
func Scale(raw string, decimals int32) (decimal.Decimal, error) {
	if !rawAmount.MatchString(raw) {
		return decimal.Decimal{}, errs.Ef(errs.ErrDecode, "coin amount", "not an unsigned integer: %q", raw)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, errs.E(errs.ErrDecode, "coin amount", err)
	}
	return d.Shift(-decimals), nil
}

// New builds a coin from a raw on-chain amount.
func New(denom, raw string, decimals uint8, priceID string) (Coin, error) {
	amount, err := Scale(raw, int32(decimals))
	if err != nil {
		return Coin{}, err
	}
	return Coin{Denom: denom, Amount: amount, PriceID: priceID}, nil
}

// Value returns amount*price as a float64.
func (c Coin) Value(price float64) (float64, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, errs.Ef(errs.ErrArithmetic, "coin value", "price %v for %s", price, c.Denom)
	}
	return Float64(c.Amount.Mul(decimal.NewFromFloat(price)))
}

// String renders the amount truncated to two places followed by the denom, e.g. "1.50ATOM".
func (c Coin) String() string {
	return c.Amount.Truncate(2).StringFixed(2) + c.Denom
}

// Float64 converts d, failing with errs.ErrArithmetic when the result is not finite.
func Float64(d decimal.Decimal) (float64, error) {
	f, _ := d.Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errs.Ef(errs.ErrArithmetic, "to float64", "%s is out of range", d.String())
	}
	return f, nil
}
