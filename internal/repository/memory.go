package repository

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"account-ledger/internal/domain"
	"account-ledger/internal/errors"
)

// MemoryAccountRepository is an in-memory domain.AccountRepository with the
// same transactional contract as the Postgres one: mutations inside
// WithTransaction become visible only on commit. It backs unit tests and
// local development without a database.
type MemoryAccountRepository struct {
	mu         sync.Mutex
	accounts   map[int64]*domain.Account
	nextNumber int64
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		accounts:   make(map[int64]*domain.Account),
		nextNumber: 1,
	}
}

var _ domain.AccountRepository = (*MemoryAccountRepository)(nil)

// memoryTxRepository operates on a private copy of the account set; the
// commit swaps the copy in under the parent's lock.
type memoryTxRepository struct {
	parent   *MemoryAccountRepository
	accounts map[int64]*domain.Account
}

var _ domain.AccountRepository = (*memoryTxRepository)(nil)

func (m *MemoryAccountRepository) WithTransaction(fn func(domain.AccountRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTxRepository{
		parent:   m,
		accounts: cloneAccounts(m.accounts),
	}

	if err := fn(tx); err != nil {
		return err
	}

	m.accounts = tx.accounts
	return nil
}

func (m *MemoryAccountRepository) FindByNumber(number int64) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return findByNumber(m.accounts, number)
}

func (m *MemoryAccountRepository) FindAll(pageNum, pageSize int) ([]*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return findAll(m.accounts, pageNum, pageSize)
}

func (m *MemoryAccountRepository) Insert(name string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, err := insert(m.accounts, m.nextNumber, name)
	if err != nil {
		return nil, err
	}
	m.nextNumber++
	return account, nil
}

func (m *MemoryAccountRepository) Update(account *domain.Account) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return update(m.accounts, account)
}

func (m *MemoryAccountRepository) IncrementBalance(number int64, delta decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return applyMemoryDelta(m.accounts, number, delta)
}

func (m *MemoryAccountRepository) DecrementBalance(number int64, delta decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return applyMemoryDelta(m.accounts, number, delta.Neg())
}

func (t *memoryTxRepository) WithTransaction(fn func(domain.AccountRepository) error) error {
	return errors.ErrCannotBeginTransaction
}

func (t *memoryTxRepository) FindByNumber(number int64) (*domain.Account, error) {
	return findByNumber(t.accounts, number)
}

func (t *memoryTxRepository) FindAll(pageNum, pageSize int) ([]*domain.Account, error) {
	return findAll(t.accounts, pageNum, pageSize)
}

func (t *memoryTxRepository) Insert(name string) (*domain.Account, error) {
	account, err := insert(t.accounts, t.parent.nextNumber, name)
	if err != nil {
		return nil, err
	}
	t.parent.nextNumber++
	return account, nil
}

func (t *memoryTxRepository) Update(account *domain.Account) (*domain.Account, error) {
	return update(t.accounts, account)
}

func (t *memoryTxRepository) IncrementBalance(number int64, delta decimal.Decimal) error {
	return applyMemoryDelta(t.accounts, number, delta)
}

func (t *memoryTxRepository) DecrementBalance(number int64, delta decimal.Decimal) error {
	return applyMemoryDelta(t.accounts, number, delta.Neg())
}

func cloneAccounts(accounts map[int64]*domain.Account) map[int64]*domain.Account {
	cloned := make(map[int64]*domain.Account, len(accounts))
	for number, account := range accounts {
		copied := *account
		cloned[number] = &copied
	}
	return cloned
}

func findByNumber(accounts map[int64]*domain.Account, number int64) (*domain.Account, error) {
	if number <= 0 {
		return nil, errors.ErrAccountNumberRequired
	}
	account, ok := accounts[number]
	if !ok {
		return nil, nil
	}
	copied := *account
	return &copied, nil
}

func findAll(accounts map[int64]*domain.Account, pageNum, pageSize int) ([]*domain.Account, error) {
	if pageNum < 0 || pageSize <= 0 {
		return nil, errors.ErrInvalidPageParams
	}

	// account_number ordering, matching the SQL window
	numbers := make([]int64, 0, len(accounts))
	for number := range accounts {
		numbers = append(numbers, number)
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })

	start := pageNum * pageSize
	if start >= len(numbers) {
		return []*domain.Account{}, nil
	}
	end := start + pageSize
	if end > len(numbers) {
		end = len(numbers)
	}

	page := make([]*domain.Account, 0, end-start)
	for _, number := range numbers[start:end] {
		copied := *accounts[number]
		page = append(page, &copied)
	}
	return page, nil
}

func insert(accounts map[int64]*domain.Account, number int64, name string) (*domain.Account, error) {
	if name == "" {
		return nil, errors.ErrAccountNameRequired
	}

	account := &domain.Account{
		Number:  number,
		Name:    name,
		Balance: domain.ZeroBalance(),
	}
	accounts[number] = account

	copied := *account
	return &copied, nil
}

func update(accounts map[int64]*domain.Account, account *domain.Account) (*domain.Account, error) {
	if err := account.Validate(); err != nil {
		return nil, err
	}
	if _, ok := accounts[account.Number]; !ok {
		return nil, errors.NewAppErrorf(errors.StorageError, "update account affected 0 rows, want 1")
	}

	updated := *account
	updated.Balance = domain.NormalizeBalance(account.Balance)
	accounts[account.Number] = &updated

	copied := updated
	return &copied, nil
}

func applyMemoryDelta(accounts map[int64]*domain.Account, number int64, delta decimal.Decimal) error {
	account, ok := accounts[number]
	if !ok {
		return errors.NewAppErrorf(errors.StorageError, "balance update affected 0 rows, want 1")
	}

	next := account.Balance.Add(delta)
	if next.IsNegative() {
		// Mirrors the balance >= 0 CHECK constraint.
		return errors.ErrInsufficientFunds
	}
	account.Balance = next
	return nil
}
