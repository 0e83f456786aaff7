package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"account-ledger/internal/domain"
	"account-ledger/internal/errors"
)

type accountRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

// NewAccountRepository returns the Postgres-backed account store.
func NewAccountRepository(db SQLExecutor, logger *slog.Logger) domain.AccountRepository {
	return &accountRepository{
		db:     db,
		logger: logger,
	}
}

// WithTransaction runs fn against a repository bound to one database
// transaction. Balance checks and balance arithmetic inside fn must be
// observed as a unit by concurrent callers, so the transaction runs at
// REPEATABLE READ.
func (r *accountRepository) WithTransaction(fn func(domain.AccountRepository) error) error {
	db, ok := r.db.(DB)
	if !ok {
		// Already inside a transactional scope; scopes never nest.
		return errors.ErrCannotBeginTransaction
	}

	tx, err := db.BeginTx(context.Background(), &sql.TxOptions{
		Isolation: sql.LevelRepeatableRead,
	})
	if err != nil {
		r.logger.Error("Failed to begin transaction", "error", err)
		return errors.NewAppError(errors.StorageError, "failed to begin transaction").WithDetails(err.Error())
	}

	txRepo := &accountRepository{
		db:     &TxWrapper{Tx: tx},
		logger: r.logger,
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txRepo); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("Failed to commit transaction", "error", err)
		return errors.NewAppError(errors.StorageError, "failed to commit transaction").WithDetails(err.Error())
	}
	return nil
}

func (r *accountRepository) Insert(name string) (*domain.Account, error) {
	if name == "" {
		return nil, errors.ErrAccountNameRequired
	}

	query := `
		INSERT INTO accounts (account_name, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING account_number
	`

	now := time.Now()
	account := &domain.Account{
		Name:      name,
		Balance:   domain.ZeroBalance(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := r.db.QueryRow(query, name, account.Balance.String(), now, now).Scan(&account.Number)
	if err != nil {
		r.logger.Error("Failed to insert account", "account_name", name, "error", err)
		return nil, errors.NewAppError(errors.StorageError, "failed to insert account").WithDetails(err.Error())
	}

	r.logger.Info("Account created", "account_number", account.Number, "account_name", name)
	return account, nil
}

func (r *accountRepository) FindByNumber(number int64) (*domain.Account, error) {
	if number <= 0 {
		return nil, errors.ErrAccountNumberRequired
	}

	query := `
		SELECT account_number, account_name, balance, created_at, updated_at
		FROM accounts WHERE account_number = $1
	`

	return r.scanAccount(query, number)
}

func (r *accountRepository) FindAll(pageNum, pageSize int) ([]*domain.Account, error) {
	if pageNum < 0 || pageSize <= 0 {
		return nil, errors.ErrInvalidPageParams
	}

	query := `
		SELECT account_number, account_name, balance, created_at, updated_at
		FROM accounts
		ORDER BY account_number
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(query, pageSize, pageNum*pageSize)
	if err != nil {
		r.logger.Error("Failed to list accounts", "page_num", pageNum, "page_size", pageSize, "error", err)
		return nil, errors.NewAppError(errors.StorageError, "failed to list accounts").WithDetails(err.Error())
	}
	defer rows.Close()

	accounts := make([]*domain.Account, 0, pageSize)
	for rows.Next() {
		account, err := scanAccountRow(rows)
		if err != nil {
			r.logger.Error("Failed to scan account row", "error", err)
			return nil, errors.NewAppError(errors.StorageError, "failed to scan account row").WithDetails(err.Error())
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewAppError(errors.StorageError, "failed to iterate accounts").WithDetails(err.Error())
	}

	return accounts, nil
}

func (r *accountRepository) Update(account *domain.Account) (*domain.Account, error) {
	if err := account.Validate(); err != nil {
		return nil, err
	}

	query := `
		UPDATE accounts
		SET account_name = $1, balance = $2, updated_at = $3
		WHERE account_number = $4
	`

	balance := domain.NormalizeBalance(account.Balance)
	now := time.Now()

	result, err := r.db.Exec(query, account.Name, balance.String(), now, account.Number)
	if err != nil {
		r.logger.Error("Failed to update account", "account_number", account.Number, "error", err)
		return nil, errors.NewAppError(errors.StorageError, "failed to update account").WithDetails(err.Error())
	}

	if err := requireOneRow(result, "update account"); err != nil {
		r.logger.Warn("No account found to update", "account_number", account.Number)
		return nil, err
	}

	updated := *account
	updated.Balance = balance
	updated.UpdatedAt = now

	r.logger.Info("Account updated", "account_number", account.Number, "balance", balance)
	return &updated, nil
}

// IncrementBalance applies delta to the stored balance as a single atomic
// row update. The arithmetic happens in the store, never read-modify-write
// in the caller.
func (r *accountRepository) IncrementBalance(number int64, delta decimal.Decimal) error {
	return r.applyDelta(number, delta, "increment balance", `
		UPDATE accounts
		SET balance = balance + $1, updated_at = $2
		WHERE account_number = $3
	`)
}

func (r *accountRepository) DecrementBalance(number int64, delta decimal.Decimal) error {
	return r.applyDelta(number, delta, "decrement balance", `
		UPDATE accounts
		SET balance = balance - $1, updated_at = $2
		WHERE account_number = $3
	`)
}

func (r *accountRepository) applyDelta(number int64, delta decimal.Decimal, op, query string) error {
	result, err := r.db.Exec(query, delta.String(), time.Now(), number)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23514" { // check_violation
			// The balance >= 0 CHECK is the storage-level backstop; the
			// service validates funds first, so reaching it means a race
			// the transaction isolation did not absorb.
			r.logger.Warn("Balance check constraint hit", "account_number", number, "delta", delta)
			return errors.ErrInsufficientFunds
		}
		r.logger.Error("Failed to apply balance delta",
			"account_number", number, "delta", delta, "op", op, "error", err)
		return errors.NewAppError(errors.StorageError, "failed to "+op).WithDetails(err.Error())
	}

	return requireOneRow(result, op)
}

func requireOneRow(result sql.Result, op string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewAppError(errors.StorageError, "failed to get rows affected").WithDetails(err.Error())
	}
	if rowsAffected != 1 {
		return errors.NewAppErrorf(errors.StorageError, "%s affected %d rows, want 1", op, rowsAffected)
	}
	return nil
}

func (r *accountRepository) scanAccount(query string, number int64) (*domain.Account, error) {
	account, err := scanAccountRow(r.db.QueryRow(query, number))
	if err != nil {
		if err == sql.ErrNoRows {
			// Not found is a nil result, never an error.
			return nil, nil
		}
		r.logger.Error("Failed to get account", "account_number", number, "error", err)
		return nil, errors.NewAppError(errors.StorageError, "failed to get account").WithDetails(err.Error())
	}
	return account, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccountRow(row rowScanner) (*domain.Account, error) {
	var account domain.Account
	var balanceStr string

	err := row.Scan(
		&account.Number,
		&account.Name,
		&balanceStr,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, err
	}
	account.Balance = balance

	return &account, nil
}
