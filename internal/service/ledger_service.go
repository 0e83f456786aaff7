package service

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"account-ledger/internal/domain"
	"account-ledger/internal/errors"
)

// LedgerService implements the balance-affecting operations of the ledger.
// It holds no state between calls; every mutation runs inside one
// transactional scope and either fully commits or fully rolls back.
type LedgerService struct {
	accounts domain.AccountRepository
	logger   *slog.Logger
}

func NewLedgerService(accounts domain.AccountRepository, logger *slog.Logger) *LedgerService {
	return &LedgerService{
		accounts: accounts,
		logger:   logger,
	}
}

func (s *LedgerService) Create(name string) (*domain.Account, error) {
	if name == "" {
		return nil, errors.ErrAccountNameRequired
	}

	s.logger.Info("Creating account", "account_name", name)
	return s.accounts.Insert(name)
}

// FindByNumber returns (nil, nil) when no account matches; callers must
// distinguish not-found from failure.
func (s *LedgerService) FindByNumber(number int64) (*domain.Account, error) {
	if number <= 0 {
		return nil, errors.ErrAccountNumberRequired
	}
	return s.accounts.FindByNumber(number)
}

func (s *LedgerService) FindAll(pageNum, pageSize int) ([]*domain.Account, error) {
	if pageNum < 0 || pageSize <= 0 {
		return nil, errors.ErrInvalidPageParams
	}
	return s.accounts.FindAll(pageNum, pageSize)
}

// Update overwrites name and balance of an existing account.
func (s *LedgerService) Update(account *domain.Account) (*domain.Account, error) {
	if err := account.Validate(); err != nil {
		return nil, err
	}

	s.logger.Info("Updating account", "account_number", account.Number)
	return s.accounts.Update(account)
}

// Deposit increases the account balance by amount. The returned account
// carries the incremented balance as a locally consistent view, not a
// post-commit re-read.
func (s *LedgerService) Deposit(number int64, amount decimal.Decimal) (*domain.Account, error) {
	if number <= 0 {
		return nil, errors.ErrAccountNumberRequired
	}
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	var account *domain.Account
	err := s.accounts.WithTransaction(func(repo domain.AccountRepository) error {
		var err error
		account, err = repo.FindByNumber(number)
		if err != nil {
			return err
		}
		if account == nil {
			return errors.ErrAccountNotFound
		}

		return repo.IncrementBalance(number, amount)
	})
	if err != nil {
		s.logger.Warn("Deposit failed", "account_number", number, "amount", amount, "error", err)
		return nil, err
	}

	account.Balance = account.Balance.Add(amount)
	s.logger.Info("Deposit completed", "account_number", number, "amount", amount, "balance", account.Balance)
	return account, nil
}

// Withdraw decreases the account balance by amount, rejecting the request
// when the committed balance does not cover it. The funds check and the
// decrement share one transactional scope.
func (s *LedgerService) Withdraw(number int64, amount decimal.Decimal) (*domain.Account, error) {
	if number <= 0 {
		return nil, errors.ErrAccountNumberRequired
	}
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	var account *domain.Account
	err := s.accounts.WithTransaction(func(repo domain.AccountRepository) error {
		var err error
		account, err = repo.FindByNumber(number)
		if err != nil {
			return err
		}
		if account == nil {
			return errors.ErrAccountNotFound
		}

		if account.Balance.LessThan(amount) {
			return errors.ErrInsufficientFunds
		}

		return repo.DecrementBalance(number, amount)
	})
	if err != nil {
		s.logger.Warn("Withdrawal failed", "account_number", number, "amount", amount, "error", err)
		return nil, err
	}

	account.Balance = account.Balance.Sub(amount)
	s.logger.Info("Withdrawal completed", "account_number", number, "amount", amount, "balance", account.Balance)
	return account, nil
}

// TransferBalance moves amount from one account to another atomically.
// Both legs commit together or not at all, so the sum of all balances is
// unchanged by any successful transfer.
func (s *LedgerService) TransferBalance(fromNumber, toNumber int64, amount decimal.Decimal) error {
	if fromNumber <= 0 || toNumber <= 0 {
		return errors.ErrAccountNumberRequired
	}
	if fromNumber == toNumber {
		return errors.ErrSameAccountTransfer
	}
	if err := domain.ValidateAmount(amount); err != nil {
		return err
	}

	err := s.accounts.WithTransaction(func(repo domain.AccountRepository) error {
		from, err := repo.FindByNumber(fromNumber)
		if err != nil {
			return err
		}
		if from == nil {
			return errors.ErrFromAccountNotFound
		}

		if from.Balance.LessThan(amount) {
			return errors.ErrInsufficientFunds
		}

		to, err := repo.FindByNumber(toNumber)
		if err != nil {
			return err
		}
		if to == nil {
			return errors.ErrToAccountNotFound
		}

		// Apply the two legs in ascending account-number order. Row locks
		// are then always taken in the same order, so opposite-direction
		// transfers between the same pair cannot deadlock.
		if fromNumber < toNumber {
			if err := repo.DecrementBalance(fromNumber, amount); err != nil {
				return err
			}
			return repo.IncrementBalance(toNumber, amount)
		}
		if err := repo.IncrementBalance(toNumber, amount); err != nil {
			return err
		}
		return repo.DecrementBalance(fromNumber, amount)
	})
	if err != nil {
		s.logger.Warn("Transfer failed",
			"from_account", fromNumber, "to_account", toNumber, "amount", amount, "error", err)
		return err
	}

	s.logger.Info("Transfer completed",
		"from_account", fromNumber, "to_account", toNumber, "amount", amount)
	return nil
}
