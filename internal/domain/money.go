package domain

import (
	"github.com/shopspring/decimal"

	"account-ledger/internal/errors"
)

// BalanceScale is the number of fractional digits every stored balance
// carries. Amounts with more explicit precision are rejected, not rounded.
const BalanceScale = 2

// ValidateAmount checks that amount is usable for deposit, withdrawal or
// transfer: strictly positive and at most BalanceScale fractional digits.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.IsZero() || amount.IsNegative() {
		return errors.ErrNonPositiveAmount
	}
	if amount.Exponent() < -BalanceScale {
		return errors.ErrAmountScale
	}
	return nil
}

// NormalizeBalance coerces a balance to BalanceScale fractional digits,
// rounding half-up. Only full-overwrite updates go through here; transfer
// amounts never do.
func NormalizeBalance(balance decimal.Decimal) decimal.Decimal {
	return balance.Round(BalanceScale)
}

// ZeroBalance returns 0.00, the opening balance of every account.
func ZeroBalance() decimal.Decimal {
	return decimal.Zero.Round(BalanceScale)
}
