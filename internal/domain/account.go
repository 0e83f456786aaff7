package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"account-ledger/internal/errors"
)

// Account is a uniquely numbered balance-holding entity. The number is
// assigned by storage on insert and never changes afterwards.
type Account struct {
	Number    int64           `json:"account_number"`
	Name      string          `json:"account_name"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Validate enforces the invariants a full-overwrite update must satisfy.
func (a *Account) Validate() error {
	if a == nil {
		return errors.ErrAccountRequired
	}
	if a.Number <= 0 {
		return errors.ErrAccountNumberRequired
	}
	if a.Name == "" {
		return errors.ErrAccountNameRequired
	}
	if a.Balance.IsNegative() {
		return errors.ErrNegativeBalance
	}
	return nil
}

// AccountRepository is the storage boundary for accounts. Read methods
// return a nil Account when nothing matches; they never signal "not found"
// through the error value.
//
// WithTransaction runs fn against a repository bound to a single database
// transaction: commit when fn returns nil, rollback otherwise. Every
// mutation inside fn is all-or-nothing.
type AccountRepository interface {
	FindByNumber(number int64) (*Account, error)
	FindAll(pageNum, pageSize int) ([]*Account, error)
	Insert(name string) (*Account, error)
	Update(account *Account) (*Account, error)
	IncrementBalance(number int64, delta decimal.Decimal) error
	DecrementBalance(number int64, delta decimal.Decimal) error
	WithTransaction(fn func(repo AccountRepository) error) error
}
