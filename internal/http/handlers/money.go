package handlers

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/tbourn/pix-panel/internal/services"
)

var (
	hundred = decimal.NewFromInt(100)

	errAmountFormat = errors.New("amount must be a positive value with at most two decimal places")
)

// toCents converts a BRL amount such as 100.5 or "100.50" into centavos.
func toCents(amount decimal.Decimal) (int64, error) {
	cents := amount.Mul(hundred)
	if !cents.IsPositive() || !cents.IsInteger() || !cents.LessThan(decimal.NewFromInt(1<<53)) {
		return 0, errAmountFormat
	}
	return cents.IntPart(), nil
}

// Money renders a centavo amount for clients.
type Money struct {
	Cents     int64  `json:"cents" example:"10050"`
	Amount    string `json:"amount" example:"100.50"`
	Formatted string `json:"formatted" example:"R$ 100,50"`
}

func money(cents int64) Money {
	return Money{
		Cents:     cents,
		Amount:    decimal.New(cents, -2).StringFixed(2),
		Formatted: services.FormatBRL(cents),
	}
}
