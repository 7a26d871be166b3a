// Package ledgertest provides an in-memory ledger store for service tests.
// Store implements the account, transaction and user repositories plus a
// pg.TXManager whose units hold per-account locks until they end and undo
// every write when they fail.
package ledgertest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/GlebRadaev/walletledger/internal/domain"
	"github.com/GlebRadaev/walletledger/internal/pg"
)

var ErrCheckViolation = errors.New("new row for relation \"accounts\" violates check constraint \"accounts_balance_check\"")

type unitKey struct{}

type unit struct {
	held    map[int]*sync.Mutex
	journal []func()
}

type Store struct {
	mu           sync.Mutex
	users        map[int]*domain.User
	accounts     map[int]*domain.Account
	locks        map[int]*sync.Mutex
	transactions []domain.Transaction
	failures     map[int]error
	nextUserID   int
	nextAccount  int
	nextTxID     int
}

var _ pg.TXManager = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		users:    make(map[int]*domain.User),
		accounts: make(map[int]*domain.Account),
		locks:    make(map[int]*sync.Mutex),
		failures: make(map[int]error),
	}
}

// Begin runs fn in a unit. Nested calls join the unit found in ctx.
func (s *Store) Begin(ctx context.Context, fn pg.TransactionalFn) (err error) {
	if _, ok := ctx.Value(unitKey{}).(*unit); ok {
		return fn(ctx)
	}

	u := &unit{held: make(map[int]*sync.Mutex)}
	defer func() {
		p := recover()
		if p != nil || err != nil {
			s.mu.Lock()
			for i := len(u.journal) - 1; i >= 0; i-- {
				u.journal[i]()
			}
			s.mu.Unlock()
		}
		for _, l := range u.held {
			l.Unlock()
		}
		if p != nil {
			panic(p)
		}
	}()

	return fn(context.WithValue(ctx, unitKey{}, u))
}

// SeedUser registers a user with an account holding balance.
func (s *Store) SeedUser(email, balance string) (*domain.User, *domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextUserID++
	user := &domain.User{ID: s.nextUserID, Email: email, CreatedAt: time.Now()}
	s.users[user.ID] = user

	s.nextAccount++
	account := &domain.Account{
		ID:        s.nextAccount,
		UserID:    user.ID,
		Balance:   decimal.RequireFromString(balance),
		Currency:  "USD",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.accounts[account.ID] = account
	s.locks[account.ID] = &sync.Mutex{}

	u, a := *user, *account
	return &u, &a
}

// FailSetBalance makes every later SetBalance on accountID return err.
func (s *Store) FailSetBalance(accountID int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[accountID] = err
}

func (s *Store) Balance(accountID int) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[accountID]; ok {
		return a.Balance
	}
	return decimal.Zero
}

func (s *Store) Transactions(accountID int) []domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Transaction
	for _, tx := range s.transactions {
		if tx.AccountID == accountID {
			out = append(out, tx)
		}
	}
	return out
}

func (s *Store) GetByUserID(_ context.Context, userID int) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.UserID == userID {
			acc := *a
			return &acc, nil
		}
	}
	return nil, nil
}

func (s *Store) Create(ctx context.Context, userID int, currency string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextAccount++
	account := &domain.Account{
		ID:        s.nextAccount,
		UserID:    userID,
		Balance:   decimal.Zero,
		Currency:  currency,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.accounts[account.ID] = account
	s.locks[account.ID] = &sync.Mutex{}
	id := account.ID
	s.record(ctx, func() { delete(s.accounts, id) })

	acc := *account
	return &acc, nil
}

func (s *Store) LockAndGetBalance(ctx context.Context, accountID int) (decimal.Decimal, error) {
	s.mu.Lock()
	lock, ok := s.locks[accountID]
	s.mu.Unlock()
	if !ok {
		return decimal.Zero, domain.ErrAccountNotFound
	}

	if u, ok := ctx.Value(unitKey{}).(*unit); ok {
		if _, held := u.held[accountID]; !held {
			lock.Lock()
			u.held[accountID] = lock
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[accountID].Balance, nil
}

func (s *Store) SetBalance(ctx context.Context, accountID int, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failures[accountID]; ok {
		return err
	}
	account, ok := s.accounts[accountID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	if balance.IsNegative() {
		return ErrCheckViolation
	}
	old := account.Balance
	account.Balance = balance
	account.UpdatedAt = time.Now()
	s.record(ctx, func() { account.Balance = old })
	return nil
}

func (s *Store) Insert(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTxID++
	tx.ID = s.nextTxID
	tx.CreatedAt = time.Now()
	s.transactions = append(s.transactions, *tx)
	id := tx.ID
	s.record(ctx, func() {
		for i := range s.transactions {
			if s.transactions[i].ID == id {
				s.transactions = append(s.transactions[:i], s.transactions[i+1:]...)
				return
			}
		}
	})
	return tx, nil
}

func (s *Store) List(_ context.Context, accountID int, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	s.mu.Lock()
	matched := s.filter(accountID, filter)
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].ProcessedAt.Equal(matched[j].ProcessedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].ProcessedAt.After(matched[j].ProcessedAt)
	})

	offset := filter.Offset()
	if offset >= len(matched) {
		return nil, nil
	}
	end := len(matched)
	if filter.PerPage > 0 && offset+filter.PerPage < end {
		end = offset + filter.PerPage
	}
	return matched[offset:end], nil
}

func (s *Store) Count(_ context.Context, accountID int, filter domain.TransactionFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.filter(accountID, filter)), nil
}

func (s *Store) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			user := *u
			return &user, nil
		}
	}
	return nil, nil
}

func (s *Store) FindByID(_ context.Context, id int) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		user := *u
		return &user, nil
	}
	return nil, nil
}

func (s *Store) filter(accountID int, filter domain.TransactionFilter) []domain.Transaction {
	var out []domain.Transaction
	for _, tx := range s.transactions {
		if tx.AccountID != accountID {
			continue
		}
		if filter.Type != "" && tx.Type != filter.Type {
			continue
		}
		if filter.Status != "" && tx.Status != filter.Status {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// record registers an undo step with the unit in ctx. Callers hold s.mu.
func (s *Store) record(ctx context.Context, undo func()) {
	if u, ok := ctx.Value(unitKey{}).(*unit); ok {
		u.journal = append(u.journal, undo)
	}
}
