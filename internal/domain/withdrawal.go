package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "pending"
	WithdrawalStatusAccepted   WithdrawalStatus = "accepted"
	WithdrawalStatusProcessing WithdrawalStatus = "processing"
	WithdrawalStatusCompleted  WithdrawalStatus = "completed"
	WithdrawalStatusRejected   WithdrawalStatus = "rejected"
	WithdrawalStatusFailed     WithdrawalStatus = "failed"
)

func (s WithdrawalStatus) Valid() bool {
	switch s {
	case WithdrawalStatusPending, WithdrawalStatusAccepted, WithdrawalStatusProcessing,
		WithdrawalStatusCompleted, WithdrawalStatusRejected, WithdrawalStatusFailed:
		return true
	}
	return false
}

func (s WithdrawalStatus) Terminal() bool {
	return s == WithdrawalStatusCompleted || s == WithdrawalStatusRejected || s == WithdrawalStatusFailed
}

// In reports whether s is one of the given statuses.
func (s WithdrawalStatus) In(statuses ...WithdrawalStatus) bool {
	for _, st := range statuses {
		if s == st {
			return true
		}
	}
	return false
}

type PayoutMethod string

const (
	PayoutMethodPaypal      PayoutMethod = "paypal"
	PayoutMethodBankAccount PayoutMethod = "bank_account"
)

type PaymentType string

const (
	PaymentTypeAutomatic PaymentType = "automatic"
	PaymentTypeManual    PaymentType = "manual"
)

type BankAccountDetails struct {
	AccountHolder string `json:"account_holder" validate:"required"`
	AccountNumber string `json:"account_number" validate:"required"`
	BankName      string `json:"bank_name" validate:"required"`
	RoutingNumber string `json:"routing_number,omitempty"`
	SwiftCode     string `json:"swift_code,omitempty"`
}

type WithdrawalRequest struct {
	ID                 int                 `db:"id"`
	UserID             int                 `db:"user_id"`
	Amount             decimal.Decimal     `db:"amount"`
	PaymentMethod      PayoutMethod        `db:"payment_method"`
	PaypalEmail        *string             `db:"paypal_email"`
	BankAccountDetails *BankAccountDetails `db:"bank_account_details"`
	Status             WithdrawalStatus    `db:"status"`
	TransactionID      *string             `db:"transaction_id"`
	AdminNotes         *string             `db:"admin_notes"`
	CreatedAt          time.Time           `db:"created_at"`
	UpdatedAt          time.Time           `db:"updated_at"`
	ProcessedAt        *time.Time          `db:"processed_at"`
}

type WithdrawalInput struct {
	Amount             decimal.Decimal
	PaymentMethod      PayoutMethod
	PaypalEmail        string
	BankAccountDetails *BankAccountDetails
}

type WithdrawalFilter struct {
	Status WithdrawalStatus
	Limit  int
	Offset int
}
