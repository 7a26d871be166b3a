package withdrawalservice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GlebRadaev/walletledger/internal/domain"
	"github.com/GlebRadaev/walletledger/internal/pg"
	"github.com/GlebRadaev/walletledger/pkg/validate"
)

//go:generate mockgen -source=withdrawalservice.go -destination=mock_withdrawalservice.go -package=withdrawalservice

const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

type Repo interface {
	Create(ctx context.Context, wr *domain.WithdrawalRequest) (*domain.WithdrawalRequest, error)
	GetByID(ctx context.Context, id int) (*domain.WithdrawalRequest, error)
	GetByIDForUpdate(ctx context.Context, id int) (*domain.WithdrawalRequest, error)
	Update(ctx context.Context, wr *domain.WithdrawalRequest) error
	Delete(ctx context.Context, id int) error
	ListByUserID(ctx context.Context, userID int) ([]domain.WithdrawalRequest, error)
	List(ctx context.Context, filter domain.WithdrawalFilter) ([]domain.WithdrawalRequest, error)
}

type Service struct {
	repo      Repo
	txManager pg.TXManager
	now       func() time.Time
}

func New(repo Repo, txManager pg.TXManager) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
		now:       time.Now,
	}
}

// Create files a pending payout request. The wallet balance is not touched.
func (s *Service) Create(ctx context.Context, userID int, input domain.WithdrawalInput) (*domain.WithdrawalRequest, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	wr := &domain.WithdrawalRequest{
		UserID:        userID,
		Amount:        input.Amount,
		PaymentMethod: input.PaymentMethod,
		Status:        domain.WithdrawalStatusPending,
	}
	switch input.PaymentMethod {
	case domain.PayoutMethodPaypal:
		email := strings.TrimSpace(input.PaypalEmail)
		wr.PaypalEmail = &email
	case domain.PayoutMethodBankAccount:
		details := *input.BankAccountDetails
		wr.BankAccountDetails = &details
	}

	created, err := s.repo.Create(ctx, wr)
	if err != nil {
		zap.L().Error("failed to create withdrawal request", zap.Int("userID", userID), zap.Error(err))
		return nil, domain.WrapStorage("create withdrawal request", err)
	}
	zap.L().Info("withdrawal request created",
		zap.Int("id", created.ID),
		zap.Int("userID", userID),
		zap.String("amount", input.Amount.StringFixed(2)),
		zap.String("method", string(input.PaymentMethod)),
	)
	return created, nil
}

func (s *Service) Accept(ctx context.Context, id int) (*domain.WithdrawalRequest, error) {
	return s.transition(ctx, "accept", id, []domain.WithdrawalStatus{domain.WithdrawalStatusPending},
		func(wr *domain.WithdrawalRequest, _ time.Time) {
			wr.Status = domain.WithdrawalStatusAccepted
		})
}

// MakePayment starts the payout of an accepted request. An automatic payout
// hands the request to the payout dispatcher; a manual one is settled
// immediately with the given external transaction id.
func (s *Service) MakePayment(ctx context.Context, id int, paymentType domain.PaymentType, externalTxID string) (*domain.WithdrawalRequest, error) {
	if paymentType != domain.PaymentTypeAutomatic && paymentType != domain.PaymentTypeManual {
		return nil, domain.NewValidationError("payment_type", "must be one of: automatic manual")
	}

	allowed := []domain.WithdrawalStatus{domain.WithdrawalStatusAccepted, domain.WithdrawalStatusProcessing}
	return s.transition(ctx, "make payment", id, allowed, func(wr *domain.WithdrawalRequest, now time.Time) {
		if paymentType == domain.PaymentTypeAutomatic {
			wr.Status = domain.WithdrawalStatusProcessing
			return
		}
		wr.Status = domain.WithdrawalStatusCompleted
		wr.TransactionID = optional(externalTxID)
		wr.ProcessedAt = &now
	})
}

func (s *Service) CompletePayout(ctx context.Context, id int, externalTxID string) (*domain.WithdrawalRequest, error) {
	allowed := []domain.WithdrawalStatus{domain.WithdrawalStatusProcessing}
	return s.transition(ctx, "complete payout", id, allowed, func(wr *domain.WithdrawalRequest, now time.Time) {
		wr.Status = domain.WithdrawalStatusCompleted
		wr.TransactionID = optional(externalTxID)
		wr.ProcessedAt = &now
	})
}

func (s *Service) FailPayout(ctx context.Context, id int, reason string) (*domain.WithdrawalRequest, error) {
	allowed := []domain.WithdrawalStatus{domain.WithdrawalStatusProcessing}
	return s.transition(ctx, "fail payout", id, allowed, func(wr *domain.WithdrawalRequest, now time.Time) {
		wr.Status = domain.WithdrawalStatusFailed
		if reason != "" {
			wr.AdminNotes = &reason
		}
		wr.ProcessedAt = &now
	})
}

func (s *Service) Reject(ctx context.Context, id int, notes string) (*domain.WithdrawalRequest, error) {
	allowed := []domain.WithdrawalStatus{domain.WithdrawalStatusPending, domain.WithdrawalStatusAccepted}
	return s.transition(ctx, "reject", id, allowed, func(wr *domain.WithdrawalRequest, now time.Time) {
		wr.Status = domain.WithdrawalStatusRejected
		if notes != "" {
			wr.AdminNotes = &notes
		}
		wr.ProcessedAt = &now
	})
}

// UpdateStatusAndNotes is the administrative override: it moves the request
// to any status regardless of the current one.
func (s *Service) UpdateStatusAndNotes(ctx context.Context, id int, status domain.WithdrawalStatus, notes, externalTxID string) (*domain.WithdrawalRequest, error) {
	if !status.Valid() {
		return nil, domain.NewValidationError("status", "must be one of: pending accepted processing completed rejected failed")
	}

	var previous domain.WithdrawalStatus
	allowed := []domain.WithdrawalStatus{
		domain.WithdrawalStatusPending, domain.WithdrawalStatusAccepted, domain.WithdrawalStatusProcessing,
		domain.WithdrawalStatusCompleted, domain.WithdrawalStatusRejected, domain.WithdrawalStatusFailed,
	}
	wr, err := s.transition(ctx, "update status", id, allowed, func(wr *domain.WithdrawalRequest, now time.Time) {
		previous = wr.Status
		wr.Status = status
		if notes != "" {
			wr.AdminNotes = &notes
		}
		if externalTxID != "" {
			wr.TransactionID = &externalTxID
		}
		if status.Terminal() && wr.ProcessedAt == nil {
			wr.ProcessedAt = &now
		}
	})
	if err != nil {
		return nil, err
	}

	zap.L().Warn("withdrawal status overridden",
		zap.Int("id", id),
		zap.String("from", string(previous)),
		zap.String("to", string(status)),
	)
	return wr, nil
}

func (s *Service) Delete(ctx context.Context, id int) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if !domain.IsBusinessError(err) {
			zap.L().Error("failed to delete withdrawal request", zap.Int("id", id), zap.Error(err))
		}
		return domain.WrapStorage("delete withdrawal request", err)
	}
	zap.L().Info("withdrawal request deleted", zap.Int("id", id))
	return nil
}

func (s *Service) Get(ctx context.Context, id int) (*domain.WithdrawalRequest, error) {
	wr, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, domain.WrapStorage("get withdrawal request", err)
	}
	if wr == nil {
		return nil, domain.ErrNotFound
	}
	return wr, nil
}

func (s *Service) ListForUser(ctx context.Context, userID int) ([]domain.WithdrawalRequest, error) {
	requests, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, domain.WrapStorage("list withdrawal requests", err)
	}
	return requests, nil
}

func (s *Service) List(ctx context.Context, filter domain.WithdrawalFilter) ([]domain.WithdrawalRequest, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.NewValidationError("status", "must be one of: pending accepted processing completed rejected failed")
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = DefaultListLimit
	case filter.Limit > MaxListLimit:
		filter.Limit = MaxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	requests, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, domain.WrapStorage("list withdrawal requests", err)
	}
	return requests, nil
}

// transition locks the request row, checks its status against allowed and
// applies mutate before writing it back, all in one unit.
func (s *Service) transition(
	ctx context.Context,
	op string,
	id int,
	allowed []domain.WithdrawalStatus,
	mutate func(wr *domain.WithdrawalRequest, now time.Time),
) (*domain.WithdrawalRequest, error) {
	var updated *domain.WithdrawalRequest
	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		wr, err := s.repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if wr == nil {
			return domain.ErrNotFound
		}
		if !wr.Status.In(allowed...) {
			return fmt.Errorf("%w: cannot %s a %s request", domain.ErrInvalidState, op, wr.Status)
		}

		now := s.now()
		mutate(wr, now)
		wr.UpdatedAt = now
		if err := s.repo.Update(ctx, wr); err != nil {
			return err
		}
		updated = wr
		return nil
	})
	if err != nil {
		if domain.IsBusinessError(err) {
			zap.L().Info("withdrawal transition rejected", zap.String("op", op), zap.Int("id", id), zap.Error(err))
		} else {
			zap.L().Error("withdrawal transition failed", zap.String("op", op), zap.Int("id", id), zap.Error(err))
		}
		return nil, domain.WrapStorage(op, err)
	}

	zap.L().Info("withdrawal request updated",
		zap.String("op", op),
		zap.Int("id", id),
		zap.String("status", string(updated.Status)),
	)
	return updated, nil
}

func validateInput(input domain.WithdrawalInput) error {
	fields := make(map[string]string)
	if !input.Amount.IsPositive() {
		fields["amount"] = "must be greater than 0"
	} else if !input.Amount.Equal(input.Amount.Round(2)) {
		fields["amount"] = "must have at most 2 decimal places"
	}

	switch input.PaymentMethod {
	case domain.PayoutMethodPaypal:
		if !validate.IsEmail(strings.TrimSpace(input.PaypalEmail)) {
			fields["paypal_email"] = "must be a valid email address"
		}
	case domain.PayoutMethodBankAccount:
		if input.BankAccountDetails == nil {
			fields["bank_account_details"] = "is required"
			break
		}
		for field, msg := range validate.Struct(input.BankAccountDetails) {
			fields["bank_account_details."+field] = msg
		}
	default:
		fields["payment_method"] = "must be one of: paypal bank_account"
	}

	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
