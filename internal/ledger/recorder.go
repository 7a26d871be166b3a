package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/GlebRadaev/walletledger/internal/domain"
)

//go:generate mockgen -source=recorder.go -destination=mock_recorder.go -package=ledger

type TransactionStore interface {
	Insert(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error)
}

// Entry is one ledger row to append. Only transfer legs carry a signed
// Amount; deposits and withdrawals are always positive.
type Entry struct {
	AccountID     int
	Type          domain.TransactionType
	Amount        decimal.Decimal
	Fee           decimal.Decimal
	Currency      string
	PaymentMethod string
	Meta          domain.TransactionMeta
}

type Recorder struct {
	transactions TransactionStore
	now          func() time.Time
}

// NewRecorder returns a Recorder stamping rows with clock, or time.Now when
// clock is nil.
func NewRecorder(transactions TransactionStore, clock func() time.Time) *Recorder {
	if clock == nil {
		clock = time.Now
	}
	return &Recorder{
		transactions: transactions,
		now:          clock,
	}
}

func (r *Recorder) Record(ctx context.Context, entry Entry) (int, error) {
	tx, err := r.transactions.Insert(ctx, &domain.Transaction{
		AccountID:     entry.AccountID,
		Type:          entry.Type,
		Status:        domain.TransactionStatusCompleted,
		Amount:        entry.Amount,
		Fee:           entry.Fee,
		Currency:      entry.Currency,
		PaymentMethod: entry.PaymentMethod,
		Meta:          entry.Meta,
		ProcessedAt:   r.now(),
	})
	if err != nil {
		return 0, domain.WrapStorage("record transaction", err)
	}
	return tx.ID, nil
}
