package walletservice

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/GlebRadaev/walletledger/internal/domain"
	"github.com/GlebRadaev/walletledger/internal/ledger"
	"github.com/GlebRadaev/walletledger/internal/ledger/ledgertest"
)

type LedgerSuite struct {
	suite.Suite
	store   *ledgertest.Store
	service *Service
	ctx     context.Context
}

func (s *LedgerSuite) SetupTest() {
	s.store = ledgertest.NewStore()
	s.ctx = context.Background()
	s.service = New(
		s.store,
		s.store,
		s.store,
		ledger.NewMutator(s.store, s.store),
		ledger.NewRecorder(s.store, nil),
		s.store,
		"USD",
	)
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (s *LedgerSuite) TestWithdrawWithinBalance() {
	user, account := s.store.SeedUser("alice@example.com", "100.00")

	result, err := s.service.Withdraw(s.ctx, user.ID, dec("60.00"), "")
	s.Require().NoError(err)
	s.Equal("40.00", result.NewBalance.StringFixed(2))
	s.Equal("40.00", s.store.Balance(account.ID).StringFixed(2))

	txs := s.store.Transactions(account.ID)
	s.Require().Len(txs, 1)
	s.Equal(domain.TransactionTypeWithdrawal, txs[0].Type)
	s.Equal(domain.TransactionStatusCompleted, txs[0].Status)
	s.Equal("60.00", txs[0].Amount.StringFixed(2))
}

func (s *LedgerSuite) TestWithdrawBeyondBalance() {
	user, account := s.store.SeedUser("alice@example.com", "10.00")

	_, err := s.service.Withdraw(s.ctx, user.ID, dec("50.00"), "")
	s.ErrorIs(err, domain.ErrInsufficientFunds)
	s.Equal("10.00", s.store.Balance(account.ID).StringFixed(2))
	s.Empty(s.store.Transactions(account.ID))
}

func (s *LedgerSuite) TestTransferMovesFunds() {
	sender, senderAccount := s.store.SeedUser("alice@example.com", "100.00")
	_, recipientAccount := s.store.SeedUser("bob@example.com", "5.00")

	result, err := s.service.Transfer(s.ctx, sender.ID, "bob@example.com", dec("30.00"))
	s.Require().NoError(err)
	s.Equal("70.00", result.NewBalance.StringFixed(2))
	s.Equal("70.00", s.store.Balance(senderAccount.ID).StringFixed(2))
	s.Equal("35.00", s.store.Balance(recipientAccount.ID).StringFixed(2))

	senderLegs := s.store.Transactions(senderAccount.ID)
	recipientLegs := s.store.Transactions(recipientAccount.ID)
	s.Require().Len(senderLegs, 1)
	s.Require().Len(recipientLegs, 1)
	s.Equal("-30.00", senderLegs[0].Amount.StringFixed(2))
	s.Equal("30.00", recipientLegs[0].Amount.StringFixed(2))
	s.Equal(senderLegs[0].Meta.Reference, recipientLegs[0].Meta.Reference)
	s.Equal("alice@example.com", recipientLegs[0].Meta.SenderReference)
	s.Equal("bob@example.com", senderLegs[0].Meta.RecipientReference)
}

func (s *LedgerSuite) TestTransferMatchesRecipientEmailCaseInsensitively() {
	sender, senderAccount := s.store.SeedUser("alice@example.com", "100.00")
	_, recipientAccount := s.store.SeedUser("bob@example.com", "0")

	result, err := s.service.Transfer(s.ctx, sender.ID, "  Bob@Example.com ", dec("10.00"))
	s.Require().NoError(err)
	s.Equal("bob@example.com", result.Recipient)
	s.Equal("90.00", s.store.Balance(senderAccount.ID).StringFixed(2))
	s.Equal("10.00", s.store.Balance(recipientAccount.ID).StringFixed(2))
}

func (s *LedgerSuite) TestSelfTransferRejected() {
	user, account := s.store.SeedUser("alice@example.com", "50.00")

	_, err := s.service.Transfer(s.ctx, user.ID, "alice@example.com", dec("10.00"))
	s.ErrorIs(err, domain.ErrInvalidOperation)
	s.Equal("50.00", s.store.Balance(account.ID).StringFixed(2))
	s.Empty(s.store.Transactions(account.ID))
}

func (s *LedgerSuite) TestTransferRollsBackWhenCreditFails() {
	sender, senderAccount := s.store.SeedUser("alice@example.com", "100.00")
	_, recipientAccount := s.store.SeedUser("bob@example.com", "5.00")
	s.store.FailSetBalance(recipientAccount.ID, errors.New("connection reset"))

	_, err := s.service.Transfer(s.ctx, sender.ID, "bob@example.com", dec("30.00"))
	var se *domain.StorageError
	s.ErrorAs(err, &se)

	s.Equal("100.00", s.store.Balance(senderAccount.ID).StringFixed(2))
	s.Equal("5.00", s.store.Balance(recipientAccount.ID).StringFixed(2))
	s.Empty(s.store.Transactions(senderAccount.ID))
	s.Empty(s.store.Transactions(recipientAccount.ID))
}

func (s *LedgerSuite) TestGetBalanceIsIdempotent() {
	user, _ := s.store.SeedUser("alice@example.com", "42.42")

	first, err := s.service.GetBalance(s.ctx, user.ID)
	s.Require().NoError(err)
	second, err := s.service.GetBalance(s.ctx, user.ID)
	s.Require().NoError(err)
	s.True(first.Balance.Equal(second.Balance))
}

func (s *LedgerSuite) TestListTransactionsNewestFirst() {
	user, _ := s.store.SeedUser("alice@example.com", "0")
	for _, amount := range []string{"1", "2", "3"} {
		_, err := s.service.Deposit(s.ctx, user.ID, dec(amount), domain.PaymentMethodCard)
		s.Require().NoError(err)
	}

	page, err := s.service.ListTransactions(s.ctx, user.ID, domain.TransactionFilter{PerPage: 2})
	s.Require().NoError(err)
	s.Equal(3, page.Total)
	s.Equal(2, page.LastPage())
	s.Require().Len(page.Items, 2)
	s.Equal("3", page.Items[0].Amount.String())
}

func (s *LedgerSuite) TestListTransactionsPastLastPage() {
	user, _ := s.store.SeedUser("alice@example.com", "0")
	_, err := s.service.Deposit(s.ctx, user.ID, dec("1"), domain.PaymentMethodCard)
	s.Require().NoError(err)

	page, err := s.service.ListTransactions(s.ctx, user.ID, domain.TransactionFilter{Page: MaxPage, PerPage: MaxPerPage})
	s.Require().NoError(err)
	s.Empty(page.Items)
	s.Equal(1, page.Total)
}

func TestConcurrentOperationsKeepBalanceConsistent(t *testing.T) {
	store := ledgertest.NewStore()
	service := New(store, store, store, ledger.NewMutator(store, store), ledger.NewRecorder(store, nil), store, "USD")
	user, account := store.SeedUser("alice@example.com", "50.00")
	ctx := context.Background()

	const workers = 40
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		expected = dec("50.00")
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var (
				result *domain.OperationResult
				err    error
				delta  decimal.Decimal
			)
			if i%2 == 0 {
				result, err = service.Deposit(ctx, user.ID, dec("5.00"), "")
				delta = dec("5.00")
			} else {
				result, err = service.Withdraw(ctx, user.ID, dec("12.00"), "")
				delta = dec("-12.00")
			}
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
				return
			}
			assert.False(t, result.NewBalance.IsNegative())
			mu.Lock()
			expected = expected.Add(delta)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	final := store.Balance(account.ID)
	require.False(t, final.IsNegative())
	assert.True(t, expected.Equal(final), "expected %s, got %s", expected, final)
}

func TestConcurrentOpposingTransfers(t *testing.T) {
	store := ledgertest.NewStore()
	service := New(store, store, store, ledger.NewMutator(store, store), ledger.NewRecorder(store, nil), store, "USD")
	alice, aliceAccount := store.SeedUser("alice@example.com", "100.00")
	bob, bobAccount := store.SeedUser("bob@example.com", "100.00")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := service.Transfer(ctx, alice.ID, "bob@example.com", dec("3.00"))
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := service.Transfer(ctx, bob.ID, "alice@example.com", dec("2.00"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	total := store.Balance(aliceAccount.ID).Add(store.Balance(bobAccount.ID))
	assert.Equal(t, "200.00", total.StringFixed(2))
	assert.Equal(t, "80.00", store.Balance(aliceAccount.ID).StringFixed(2))
	assert.Len(t, store.Transactions(aliceAccount.ID), 40)
}
