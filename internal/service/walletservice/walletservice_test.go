package walletservice

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"

	"github.com/GlebRadaev/walletledger/internal/domain"
	"github.com/GlebRadaev/walletledger/internal/ledger"
	"github.com/GlebRadaev/walletledger/internal/pg"
)

type decimalMatcher struct {
	want decimal.Decimal
}

func decEq(s string) gomock.Matcher {
	return decimalMatcher{want: decimal.RequireFromString(s)}
}

func (m decimalMatcher) Matches(x any) bool {
	d, ok := x.(decimal.Decimal)
	return ok && d.Equal(m.want)
}

func (m decimalMatcher) String() string {
	return fmt.Sprintf("is decimal %s", m.want)
}

type mocks struct {
	accounts     *MockAccountRepo
	transactions *MockTransactionRepo
	users        *MockUserRepo
	mutator      *MockMutator
	recorder     *MockRecorder
}

func NewMock(t *testing.T) (*Service, *mocks) {
	ctrl := gomock.NewController(t)
	m := &mocks{
		accounts:     NewMockAccountRepo(ctrl),
		transactions: NewMockTransactionRepo(ctrl),
		users:        NewMockUserRepo(ctrl),
		mutator:      NewMockMutator(ctrl),
		recorder:     NewMockRecorder(ctrl),
	}
	txManager := pg.NewMockTXManager(ctrl)
	txManager.EXPECT().Begin(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn pg.TransactionalFn) error {
			return fn(ctx)
		}).AnyTimes()

	service := New(m.accounts, m.transactions, m.users, m.mutator, m.recorder, txManager, "USD")
	return service, m
}

func TestOpenAccount(t *testing.T) {
	service, m := NewMock(t)
	ctx := context.Background()

	m.accounts.EXPECT().Create(ctx, 1, "USD").Return(&domain.Account{ID: 10, UserID: 1, Currency: "USD"}, nil)
	account, err := service.OpenAccount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, account.ID)

	m.accounts.EXPECT().Create(ctx, 2, "USD").Return(nil, errors.New("duplicate key"))
	_, err = service.OpenAccount(ctx, 2)
	var se *domain.StorageError
	assert.ErrorAs(t, err, &se)
}

func TestGetBalance(t *testing.T) {
	service, m := NewMock(t)
	ctx := context.Background()

	tests := []struct {
		name          string
		prepareMock   func()
		expectedError error
		storageError  bool
	}{
		{
			name: "Account found",
			prepareMock: func() {
				m.accounts.EXPECT().GetByUserID(ctx, 1).
					Return(&domain.Account{ID: 10, UserID: 1, Balance: decimal.RequireFromString("12.50"), Currency: "USD"}, nil)
			},
		},
		{
			name: "Account missing",
			prepareMock: func() {
				m.accounts.EXPECT().GetByUserID(ctx, 1).Return(nil, nil)
			},
			expectedError: domain.ErrAccountNotFound,
		},
		{
			name: "Storage failure",
			prepareMock: func() {
				m.accounts.EXPECT().GetByUserID(ctx, 1).Return(nil, errors.New("timeout"))
			},
			storageError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.prepareMock()
			account, err := service.GetBalance(ctx, 1)

			switch {
			case tt.expectedError != nil:
				assert.ErrorIs(t, err, tt.expectedError)
			case tt.storageError:
				var se *domain.StorageError
				assert.ErrorAs(t, err, &se)
			default:
				require.NoError(t, err)
				assert.Equal(t, "12.50", account.Balance.StringFixed(2))
			}
		})
	}
}

func TestDeposit(t *testing.T) {
	service, m := NewMock(t)
	ctx := context.Background()
	account := &domain.Account{ID: 10, UserID: 1, Balance: decimal.RequireFromString("100.00"), Currency: "USD"}

	tests := []struct {
		name          string
		amount        string
		method        string
		prepareMock   func()
		expectedError error
		expectedField string
	}{
		{
			name:   "Successful deposit defaults to wallet",
			amount: "25.00",
			prepareMock: func() {
				m.accounts.EXPECT().GetByUserID(ctx, 1).Return(account, nil)
				m.mutator.EXPECT().ApplyDelta(ctx, 10, decEq("25.00")).Return(decimal.RequireFromString("125.00"), nil)
				m.recorder.EXPECT().Record(ctx, gomock.Any()).
					DoAndReturn(func(_ context.Context, entry ledger.Entry) (int, error) {
						assert.Equal(t, domain.TransactionTypeDeposit, entry.Type)
						assert.Equal(t, domain.PaymentMethodWallet, entry.PaymentMethod)
						assert.True(t, entry.Amount.Equal(decimal.RequireFromString("25.00")))
						return 7, nil
					})
			},
		},
		{
			name:          "Zero amount",
			amount:        "0",
			prepareMock:   func() {},
			expectedField: "amount",
		},
		{
			name:          "Negative amount",
			amount:        "-5",
			prepareMock:   func() {},
			expectedField: "amount",
		},
		{
			name:          "Too many decimal places",
			amount:        "1.001",
			prepareMock:   func() {},
			expectedField: "amount",
		},
		{
			name:          "Unknown payment method",
			amount:        "5",
			method:        "cash",
			prepareMock:   func() {},
			expectedField: "payment_method",
		},
		{
			name:   "Recorder failure",
			amount: "5",
			method: domain.PaymentMethodCard,
			prepareMock: func() {
				m.accounts.EXPECT().GetByUserID(ctx, 1).Return(account, nil)
				m.mutator.EXPECT().ApplyDelta(ctx, 10, decEq("5")).Return(decimal.RequireFromString("105.00"), nil)
				m.recorder.EXPECT().Record(ctx, gomock.Any()).
					Return(0, &domain.StorageError{Op: "record transaction", Err: errors.New("disk full")})
			},
			expectedError: errors.New("storage"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.prepareMock()
			result, err := service.Deposit(ctx, 1, decimal.RequireFromString(tt.amount), tt.method)

			switch {
			case tt.expectedField != "":
				var ve *domain.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Contains(t, ve.Fields, tt.expectedField)
				assert.Nil(t, result)
			case tt.expectedError != nil:
				var se *domain.StorageError
				assert.ErrorAs(t, err, &se)
				assert.Nil(t, result)
			default:
				require.NoError(t, err)
				assert.Equal(t, 7, result.TransactionID)
				assert.Equal(t, "125.00", result.NewBalance.StringFixed(2))
				assert.Equal(t, "USD", result.Currency)
			}
		})
	}
}

func TestWithdraw(t *testing.T) {
	service, m := NewMock(t)
	ctx := context.Background()
	account := &domain.Account{ID: 10, UserID: 1, Balance: decimal.RequireFromString("10.00"), Currency: "USD"}

	t.Run("Debits a positive amount", func(t *testing.T) {
		m.accounts.EXPECT().GetByUserID(ctx, 1).Return(account, nil)
		m.mutator.EXPECT().ApplyDelta(ctx, 10, decEq("-4.00")).Return(decimal.RequireFromString("6.00"), nil)
		m.recorder.EXPECT().Record(ctx, gomock.Any()).
			DoAndReturn(func(_ context.Context, entry ledger.Entry) (int, error) {
				assert.Equal(t, domain.TransactionTypeWithdrawal, entry.Type)
				assert.True(t, entry.Amount.Equal(decimal.RequireFromString("4.00")))
				return 8, nil
			})

		result, err := service.Withdraw(ctx, 1, decimal.RequireFromString("4.00"), domain.PaymentMethodBankAccount)
		require.NoError(t, err)
		assert.Equal(t, "6.00", result.NewBalance.StringFixed(2))
		assert.Equal(t, "4.00", result.Amount.StringFixed(2))
	})

	t.Run("Insufficient funds records nothing", func(t *testing.T) {
		m.accounts.EXPECT().GetByUserID(ctx, 1).Return(account, nil)
		m.mutator.EXPECT().ApplyDelta(ctx, 10, decEq("-50")).Return(decimal.Zero, domain.ErrInsufficientFunds)

		result, err := service.Withdraw(ctx, 1, decimal.RequireFromString("50"), "")
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		assert.Nil(t, result)
	})

	t.Run("Missing account", func(t *testing.T) {
		m.accounts.EXPECT().GetByUserID(ctx, 1).Return(nil, nil)

		_, err := service.Withdraw(ctx, 1, decimal.RequireFromString("1"), "")
		assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	})
}

func TestTransfer(t *testing.T) {
	service, m := NewMock(t)
	ctx := context.Background()
	alice := &domain.User{ID: 1, Email: "alice@example.com"}
	bob := &domain.User{ID: 2, Email: "bob@example.com"}
	aliceAccount := &domain.Account{ID: 20, UserID: 1, Currency: "USD"}
	bobAccount := &domain.Account{ID: 10, UserID: 2, Currency: "USD"}

	tests := []struct {
		name          string
		email         string
		amount        string
		prepareMock   func()
		expectedError error
		expectedField string
	}{
		{
			name:   "Successful transfer",
			email:  "bob@example.com",
			amount: "30.00",
			prepareMock: func() {
				m.users.EXPECT().FindByEmail(ctx, "bob@example.com").Return(bob, nil)
				m.users.EXPECT().FindByID(ctx, 1).Return(alice, nil)
				m.accounts.EXPECT().GetByUserID(ctx, 1).Return(aliceAccount, nil)
				m.accounts.EXPECT().GetByUserID(ctx, 2).Return(bobAccount, nil)
				gomock.InOrder(
					m.mutator.EXPECT().LockAccounts(ctx, 20, 10).Return(nil),
					m.mutator.EXPECT().ApplyDelta(ctx, 20, decEq("-30.00")).Return(decimal.RequireFromString("70.00"), nil),
					m.mutator.EXPECT().ApplyDelta(ctx, 10, decEq("30.00")).Return(decimal.RequireFromString("35.00"), nil),
				)
				var reference string
				m.recorder.EXPECT().Record(ctx, gomock.Any()).
					DoAndReturn(func(_ context.Context, entry ledger.Entry) (int, error) {
						assert.Equal(t, 20, entry.AccountID)
						assert.True(t, entry.Amount.Equal(decimal.RequireFromString("-30.00")))
						assert.Equal(t, 2, entry.Meta.RecipientID)
						assert.Equal(t, "bob@example.com", entry.Meta.RecipientReference)
						assert.NotEmpty(t, entry.Meta.Reference)
						reference = entry.Meta.Reference
						return 100, nil
					})
				m.recorder.EXPECT().Record(ctx, gomock.Any()).
					DoAndReturn(func(_ context.Context, entry ledger.Entry) (int, error) {
						assert.Equal(t, 10, entry.AccountID)
						assert.True(t, entry.Amount.Equal(decimal.RequireFromString("30.00")))
						assert.Equal(t, 1, entry.Meta.SenderID)
						assert.Equal(t, "alice@example.com", entry.Meta.SenderReference)
						assert.Equal(t, reference, entry.Meta.Reference)
						return 101, nil
					})
			},
		},
		{
			name:          "Self transfer",
			email:         "alice@example.com",
			amount:        "10.00",
			expectedError: domain.ErrInvalidOperation,
			prepareMock: func() {
				m.users.EXPECT().FindByEmail(ctx, "alice@example.com").Return(alice, nil)
			},
		},
		{
			name:          "Unknown recipient",
			email:         "ghost@example.com",
			amount:        "10.00",
			expectedError: domain.ErrRecipientNotFound,
			prepareMock: func() {
				m.users.EXPECT().FindByEmail(ctx, "ghost@example.com").Return(nil, nil)
			},
		},
		{
			name:          "Invalid email",
			email:         "not-an-email",
			amount:        "10.00",
			expectedField: "email",
			prepareMock:   func() {},
		},
		{
			name:          "Non-positive amount",
			email:         "bob@example.com",
			amount:        "0",
			expectedField: "amount",
			prepareMock:   func() {},
		},
		{
			name:          "Insufficient funds leaves recipient untouched",
			email:         "bob@example.com",
			amount:        "500.00",
			expectedError: domain.ErrInsufficientFunds,
			prepareMock: func() {
				m.users.EXPECT().FindByEmail(ctx, "bob@example.com").Return(bob, nil)
				m.users.EXPECT().FindByID(ctx, 1).Return(alice, nil)
				m.accounts.EXPECT().GetByUserID(ctx, 1).Return(aliceAccount, nil)
				m.accounts.EXPECT().GetByUserID(ctx, 2).Return(bobAccount, nil)
				m.mutator.EXPECT().LockAccounts(ctx, 20, 10).Return(nil)
				m.mutator.EXPECT().ApplyDelta(ctx, 20, decEq("-500.00")).Return(decimal.Zero, domain.ErrInsufficientFunds)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.prepareMock()
			result, err := service.Transfer(ctx, 1, tt.email, decimal.RequireFromString(tt.amount))

			switch {
			case tt.expectedField != "":
				var ve *domain.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Contains(t, ve.Fields, tt.expectedField)
			case tt.expectedError != nil:
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, result)
			default:
				require.NoError(t, err)
				assert.Equal(t, "bob@example.com", result.Recipient)
				assert.Equal(t, "70.00", result.NewBalance.StringFixed(2))
				assert.Equal(t, 100, result.SenderTransactionID)
				assert.Equal(t, 101, result.RecipientTransactionID)
			}
		})
	}
}

func TestListTransactions(t *testing.T) {
	service, m := NewMock(t)
	ctx := context.Background()
	account := &domain.Account{ID: 10, UserID: 1, Currency: "USD"}

	t.Run("Defaults pagination", func(t *testing.T) {
		expectedFilter := domain.TransactionFilter{Page: 1, PerPage: DefaultPerPage}
		m.accounts.EXPECT().GetByUserID(ctx, 1).Return(account, nil)
		m.transactions.EXPECT().List(ctx, 10, expectedFilter).Return([]domain.Transaction{{ID: 1}}, nil)
		m.transactions.EXPECT().Count(ctx, 10, expectedFilter).Return(1, nil)

		page, err := service.ListTransactions(ctx, 1, domain.TransactionFilter{})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Total)
		assert.Equal(t, DefaultPerPage, page.PerPage)
		assert.Len(t, page.Items, 1)
	})

	t.Run("Caps per page", func(t *testing.T) {
		expectedFilter := domain.TransactionFilter{Type: domain.TransactionTypeDeposit, Page: 3, PerPage: MaxPerPage}
		m.accounts.EXPECT().GetByUserID(ctx, 1).Return(account, nil)
		m.transactions.EXPECT().List(ctx, 10, expectedFilter).Return(nil, nil)
		m.transactions.EXPECT().Count(ctx, 10, expectedFilter).Return(0, nil)

		page, err := service.ListTransactions(ctx, 1, domain.TransactionFilter{Type: domain.TransactionTypeDeposit, Page: 3, PerPage: 1000})
		require.NoError(t, err)
		assert.Equal(t, MaxPerPage, page.PerPage)
		assert.Equal(t, 3, page.Page)
	})

	t.Run("Rejects page beyond offset range", func(t *testing.T) {
		for _, p := range []int{MaxPage + 1, math.MaxInt / 2} {
			_, err := service.ListTransactions(ctx, 1, domain.TransactionFilter{Page: p})
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, "page")
		}
	})

	t.Run("Accepts last addressable page", func(t *testing.T) {
		expectedFilter := domain.TransactionFilter{Page: MaxPage, PerPage: MaxPerPage}
		m.accounts.EXPECT().GetByUserID(ctx, 1).Return(account, nil)
		m.transactions.EXPECT().List(ctx, 10, expectedFilter).Return(nil, nil)
		m.transactions.EXPECT().Count(ctx, 10, expectedFilter).Return(0, nil)

		page, err := service.ListTransactions(ctx, 1, expectedFilter)
		require.NoError(t, err)
		assert.Equal(t, MaxPage, page.Page)
		assert.LessOrEqual(t, expectedFilter.Offset(), math.MaxInt32)
	})

	t.Run("Rejects unknown type", func(t *testing.T) {
		_, err := service.ListTransactions(ctx, 1, domain.TransactionFilter{Type: "refund"})
		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Contains(t, ve.Fields, "type")
	})

	t.Run("Storage failure", func(t *testing.T) {
		m.accounts.EXPECT().GetByUserID(ctx, 1).Return(account, nil)
		m.transactions.EXPECT().List(ctx, 10, gomock.Any()).Return(nil, errors.New("timeout"))

		_, err := service.ListTransactions(ctx, 1, domain.TransactionFilter{})
		var se *domain.StorageError
		assert.ErrorAs(t, err, &se)
	})
}
