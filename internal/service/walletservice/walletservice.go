package walletservice

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/GlebRadaev/walletledger/internal/domain"
	"github.com/GlebRadaev/walletledger/internal/ledger"
	"github.com/GlebRadaev/walletledger/internal/pg"
	"github.com/GlebRadaev/walletledger/pkg/validate"
)

//go:generate mockgen -source=walletservice.go -destination=mock_walletservice.go -package=walletservice

const (
	DefaultPerPage = 15
	MaxPerPage     = 100
	// MaxPage keeps (page-1)*per_page inside a Postgres int4 offset.
	MaxPage = math.MaxInt32 / MaxPerPage
)

type AccountRepo interface {
	GetByUserID(ctx context.Context, userID int) (*domain.Account, error)
	Create(ctx context.Context, userID int, currency string) (*domain.Account, error)
}

type TransactionRepo interface {
	List(ctx context.Context, accountID int, filter domain.TransactionFilter) ([]domain.Transaction, error)
	Count(ctx context.Context, accountID int, filter domain.TransactionFilter) (int, error)
}

type UserRepo interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id int) (*domain.User, error)
}

type Mutator interface {
	ApplyDelta(ctx context.Context, accountID int, delta decimal.Decimal) (decimal.Decimal, error)
	LockAccounts(ctx context.Context, accountIDs ...int) error
}

type Recorder interface {
	Record(ctx context.Context, entry ledger.Entry) (int, error)
}

type Service struct {
	accounts     AccountRepo
	transactions TransactionRepo
	users        UserRepo
	mutator      Mutator
	recorder     Recorder
	txManager    pg.TXManager
	currency     string
}

func New(
	accounts AccountRepo,
	transactions TransactionRepo,
	users UserRepo,
	mutator Mutator,
	recorder Recorder,
	txManager pg.TXManager,
	currency string,
) *Service {
	return &Service{
		accounts:     accounts,
		transactions: transactions,
		users:        users,
		mutator:      mutator,
		recorder:     recorder,
		txManager:    txManager,
		currency:     currency,
	}
}

// OpenAccount creates the zero-balance account of a freshly registered user.
func (s *Service) OpenAccount(ctx context.Context, userID int) (*domain.Account, error) {
	account, err := s.accounts.Create(ctx, userID, s.currency)
	if err != nil {
		zap.L().Error("failed to open account", zap.Int("userID", userID), zap.Error(err))
		return nil, domain.WrapStorage("open account", err)
	}
	return account, nil
}

func (s *Service) GetBalance(ctx context.Context, userID int) (*domain.Account, error) {
	account, err := s.account(ctx, userID)
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Service) Deposit(ctx context.Context, userID int, amount decimal.Decimal, paymentMethod string) (*domain.OperationResult, error) {
	return s.applySingle(ctx, userID, domain.TransactionTypeDeposit, amount, paymentMethod)
}

func (s *Service) Withdraw(ctx context.Context, userID int, amount decimal.Decimal, paymentMethod string) (*domain.OperationResult, error) {
	return s.applySingle(ctx, userID, domain.TransactionTypeWithdrawal, amount, paymentMethod)
}

// applySingle mutates one account and records one positive-amount row.
func (s *Service) applySingle(
	ctx context.Context,
	userID int,
	txType domain.TransactionType,
	amount decimal.Decimal,
	paymentMethod string,
) (*domain.OperationResult, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	method, err := normalizePaymentMethod(paymentMethod)
	if err != nil {
		return nil, err
	}

	delta := amount
	if txType == domain.TransactionTypeWithdrawal {
		delta = amount.Neg()
	}

	var result *domain.OperationResult
	err = s.txManager.Begin(ctx, func(ctx context.Context) error {
		account, err := s.account(ctx, userID)
		if err != nil {
			return err
		}
		newBalance, err := s.mutator.ApplyDelta(ctx, account.ID, delta)
		if err != nil {
			return err
		}
		txID, err := s.recorder.Record(ctx, ledger.Entry{
			AccountID:     account.ID,
			Type:          txType,
			Amount:        amount,
			Fee:           decimal.Zero,
			Currency:      account.Currency,
			PaymentMethod: method,
		})
		if err != nil {
			return err
		}
		result = &domain.OperationResult{
			TransactionID: txID,
			Amount:        amount,
			NewBalance:    newBalance,
			Currency:      account.Currency,
		}
		return nil
	})
	if err != nil {
		s.logFailure(string(txType), userID, err)
		return nil, domain.WrapStorage(string(txType), err)
	}

	zap.L().Info("wallet operation completed",
		zap.String("type", string(txType)),
		zap.Int("userID", userID),
		zap.String("amount", amount.StringFixed(2)),
		zap.Int("transactionID", result.TransactionID),
	)
	return result, nil
}

// Transfer moves amount from the sender's account to the account of the user
// registered under recipientEmail. Both legs commit or neither does.
func (s *Service) Transfer(ctx context.Context, fromUserID int, recipientEmail string, amount decimal.Decimal) (*domain.TransferResult, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	recipientEmail = strings.ToLower(strings.TrimSpace(recipientEmail))
	if !validate.IsEmail(recipientEmail) {
		return nil, domain.NewValidationError("email", "must be a valid email address")
	}

	recipient, err := s.users.FindByEmail(ctx, recipientEmail)
	if err != nil {
		zap.L().Error("failed to find recipient", zap.Error(err))
		return nil, domain.WrapStorage("find recipient", err)
	}
	if recipient == nil {
		return nil, domain.ErrRecipientNotFound
	}
	if recipient.ID == fromUserID {
		return nil, domain.ErrInvalidOperation
	}
	sender, err := s.users.FindByID(ctx, fromUserID)
	if err != nil {
		zap.L().Error("failed to find sender", zap.Error(err))
		return nil, domain.WrapStorage("find sender", err)
	}
	if sender == nil {
		return nil, domain.ErrAccountNotFound
	}

	reference := uuid.NewString()
	var result *domain.TransferResult
	err = s.txManager.Begin(ctx, func(ctx context.Context) error {
		from, err := s.account(ctx, fromUserID)
		if err != nil {
			return err
		}
		to, err := s.accounts.GetByUserID(ctx, recipient.ID)
		if err != nil {
			return err
		}
		if to == nil {
			return domain.ErrRecipientNotFound
		}

		if err := s.mutator.LockAccounts(ctx, from.ID, to.ID); err != nil {
			return err
		}
		senderBalance, err := s.mutator.ApplyDelta(ctx, from.ID, amount.Neg())
		if err != nil {
			return err
		}
		if _, err := s.mutator.ApplyDelta(ctx, to.ID, amount); err != nil {
			return err
		}

		senderTxID, err := s.recorder.Record(ctx, ledger.Entry{
			AccountID:     from.ID,
			Type:          domain.TransactionTypeTransfer,
			Amount:        amount.Neg(),
			Fee:           decimal.Zero,
			Currency:      from.Currency,
			PaymentMethod: domain.PaymentMethodWallet,
			Meta: domain.TransactionMeta{
				Reference:          reference,
				RecipientID:        recipient.ID,
				RecipientReference: recipient.Email,
			},
		})
		if err != nil {
			return err
		}
		recipientTxID, err := s.recorder.Record(ctx, ledger.Entry{
			AccountID:     to.ID,
			Type:          domain.TransactionTypeTransfer,
			Amount:        amount,
			Fee:           decimal.Zero,
			Currency:      to.Currency,
			PaymentMethod: domain.PaymentMethodWallet,
			Meta: domain.TransactionMeta{
				Reference:       reference,
				SenderID:        fromUserID,
				SenderReference: sender.Email,
			},
		})
		if err != nil {
			return err
		}

		result = &domain.TransferResult{
			Amount:                 amount,
			Recipient:              recipient.Email,
			NewBalance:             senderBalance,
			Currency:               from.Currency,
			Reference:              reference,
			SenderTransactionID:    senderTxID,
			RecipientTransactionID: recipientTxID,
		}
		return nil
	})
	if err != nil {
		s.logFailure("transfer", fromUserID, err)
		return nil, domain.WrapStorage("transfer", err)
	}

	zap.L().Info("transfer completed",
		zap.Int("fromUserID", fromUserID),
		zap.Int("toUserID", recipient.ID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("reference", reference),
	)
	return result, nil
}

func (s *Service) ListTransactions(ctx context.Context, userID int, filter domain.TransactionFilter) (*domain.TransactionPage, error) {
	filter, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	account, err := s.account(ctx, userID)
	if err != nil {
		return nil, err
	}

	items, err := s.transactions.List(ctx, account.ID, filter)
	if err != nil {
		zap.L().Error("failed to list transactions", zap.Int("accountID", account.ID), zap.Error(err))
		return nil, domain.WrapStorage("list transactions", err)
	}
	total, err := s.transactions.Count(ctx, account.ID, filter)
	if err != nil {
		zap.L().Error("failed to count transactions", zap.Int("accountID", account.ID), zap.Error(err))
		return nil, domain.WrapStorage("count transactions", err)
	}

	return &domain.TransactionPage{
		Items:   items,
		Total:   total,
		Page:    filter.Page,
		PerPage: filter.PerPage,
	}, nil
}

func (s *Service) account(ctx context.Context, userID int) (*domain.Account, error) {
	account, err := s.accounts.GetByUserID(ctx, userID)
	if err != nil {
		zap.L().Error("failed to get account", zap.Int("userID", userID), zap.Error(err))
		return nil, domain.WrapStorage("get account", err)
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound
	}
	return account, nil
}

func (s *Service) logFailure(op string, userID int, err error) {
	if domain.IsBusinessError(err) {
		zap.L().Info("wallet operation rejected", zap.String("op", op), zap.Int("userID", userID), zap.Error(err))
		return
	}
	zap.L().Error("wallet operation failed", zap.String("op", op), zap.Int("userID", userID), zap.Error(err))
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.NewValidationError("amount", "must be greater than 0")
	}
	if !amount.Equal(amount.Round(2)) {
		return domain.NewValidationError("amount", "must have at most 2 decimal places")
	}
	return nil
}

func normalizePaymentMethod(method string) (string, error) {
	switch method {
	case "":
		return domain.PaymentMethodWallet, nil
	case domain.PaymentMethodWallet, domain.PaymentMethodCard, domain.PaymentMethodBankAccount, domain.PaymentMethodPaypal:
		return method, nil
	}
	return "", domain.NewValidationError("payment_method", "must be one of: card bank_account paypal wallet")
}

func normalizeFilter(filter domain.TransactionFilter) (domain.TransactionFilter, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return filter, domain.NewValidationError("type", "must be one of: deposit withdrawal transfer")
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return filter, domain.NewValidationError("status", "must be one of: pending completed failed")
	}
	switch {
	case filter.Page < 1:
		filter.Page = 1
	case filter.Page > MaxPage:
		return filter, domain.NewValidationError("page", fmt.Sprintf("must be at most %d", MaxPage))
	}
	switch {
	case filter.PerPage <= 0:
		filter.PerPage = DefaultPerPage
	case filter.PerPage > MaxPerPage:
		filter.PerPage = MaxPerPage
	}
	return filter, nil
}
