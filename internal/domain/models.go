package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID           int       `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	IsAdmin      bool      `db:"is_admin"`
	CreatedAt    time.Time `db:"created_at"`
}

// Account holds the wallet balance of exactly one user.
type Account struct {
	ID        int             `db:"id"`
	UserID    int             `db:"user_id"`
	Balance   decimal.Decimal `db:"balance"`
	Currency  string          `db:"currency"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypeTransfer   TransactionType = "transfer"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypeTransfer:
		return true
	}
	return false
}

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusCompleted, TransactionStatusFailed:
		return true
	}
	return false
}

const (
	PaymentMethodWallet      = "wallet"
	PaymentMethodCard        = "card"
	PaymentMethodBankAccount = "bank_account"
	PaymentMethodPaypal      = "paypal"
)

// TransactionMeta links a ledger row to its counterparty. Transfer legs share
// Reference; the sender leg fills the Recipient* keys and the recipient leg
// fills the Sender* keys. Deposits and withdrawals carry at most a Reference.
type TransactionMeta struct {
	Reference          string `json:"reference,omitempty"`
	RecipientID        int    `json:"recipient_id,omitempty"`
	RecipientReference string `json:"recipient_reference,omitempty"`
	SenderID           int    `json:"sender_id,omitempty"`
	SenderReference    string `json:"sender_reference,omitempty"`
}

type Transaction struct {
	ID            int               `db:"id"`
	AccountID     int               `db:"account_id"`
	Type          TransactionType   `db:"type"`
	Status        TransactionStatus `db:"status"`
	Amount        decimal.Decimal   `db:"amount"`
	Fee           decimal.Decimal   `db:"fee"`
	Currency      string            `db:"currency"`
	PaymentMethod string            `db:"payment_method"`
	Meta          TransactionMeta   `db:"meta"`
	ProcessedAt   time.Time         `db:"processed_at"`
	CreatedAt     time.Time         `db:"created_at"`
}

type TransactionFilter struct {
	Type    TransactionType
	Status  TransactionStatus
	Page    int
	PerPage int
}

// Offset saturates at math.MaxInt instead of overflowing.
func (f TransactionFilter) Offset() int {
	if f.Page < 1 || f.PerPage <= 0 {
		return 0
	}
	if f.Page-1 > math.MaxInt/f.PerPage {
		return math.MaxInt
	}
	return (f.Page - 1) * f.PerPage
}

type TransactionPage struct {
	Items   []Transaction
	Total   int
	Page    int
	PerPage int
}

func (p TransactionPage) LastPage() int {
	if p.PerPage <= 0 || p.Total == 0 {
		return 1
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

type OperationResult struct {
	TransactionID int
	Amount        decimal.Decimal
	NewBalance    decimal.Decimal
	Currency      string
}

type TransferResult struct {
	Amount                 decimal.Decimal
	Recipient              string
	NewBalance             decimal.Decimal
	Currency               string
	Reference              string
	SenderTransactionID    int
	RecipientTransactionID int
}
