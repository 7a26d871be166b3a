package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/GlebRadaev/walletledger/internal/domain"
)

type CreateWithdrawalRequestDTO struct {
	Amount             decimal.Decimal            `json:"amount" swaggertype:"string" example:"50.00"`
	PaymentMethod      domain.PayoutMethod        `json:"payment_method" validate:"required,oneof=paypal bank_account" example:"paypal"`
	PaypalEmail        string                     `json:"paypal_email,omitempty" example:"alice@paypal.example"`
	BankAccountDetails *domain.BankAccountDetails `json:"bank_account_details,omitempty"`
}

type MakePaymentRequestDTO struct {
	PaymentType   domain.PaymentType `json:"payment_type" validate:"required,oneof=automatic manual" example:"manual"`
	TransactionID string             `json:"transaction_id,omitempty" example:"PP-123456"`
}

type RejectRequestDTO struct {
	AdminNotes string `json:"admin_notes,omitempty" example:"Duplicate request"`
}

type UpdateStatusRequestDTO struct {
	Status        domain.WithdrawalStatus `json:"status" validate:"required" example:"completed"`
	AdminNotes    string                  `json:"admin_notes,omitempty" example:"Paid by wire"`
	TransactionID string                  `json:"transaction_id,omitempty" example:"WIRE-42"`
}

type WithdrawalResponseDTO struct {
	ID                 int                        `json:"id" example:"3"`
	UserID             int                        `json:"user_id" example:"1"`
	Amount             string                     `json:"amount" example:"50.00"`
	PaymentMethod      domain.PayoutMethod        `json:"payment_method" example:"paypal"`
	PaypalEmail        *string                    `json:"paypal_email,omitempty" example:"alice@paypal.example"`
	BankAccountDetails *domain.BankAccountDetails `json:"bank_account_details,omitempty"`
	Status             domain.WithdrawalStatus    `json:"status" example:"pending"`
	TransactionID      *string                    `json:"transaction_id,omitempty" example:"PP-123456"`
	AdminNotes         *string                    `json:"admin_notes,omitempty"`
	CreatedAt          time.Time                  `json:"created_at" example:"2024-05-01T12:00:00Z"`
	UpdatedAt          time.Time                  `json:"updated_at" example:"2024-05-01T12:00:00Z"`
	ProcessedAt        *time.Time                 `json:"processed_at,omitempty"`
}

func (r CreateWithdrawalRequestDTO) Input() domain.WithdrawalInput {
	return domain.WithdrawalInput{
		Amount:             r.Amount,
		PaymentMethod:      r.PaymentMethod,
		PaypalEmail:        r.PaypalEmail,
		BankAccountDetails: r.BankAccountDetails,
	}
}

func NewWithdrawalResponse(wr *domain.WithdrawalRequest) WithdrawalResponseDTO {
	return WithdrawalResponseDTO{
		ID:                 wr.ID,
		UserID:             wr.UserID,
		Amount:             Money(wr.Amount),
		PaymentMethod:      wr.PaymentMethod,
		PaypalEmail:        wr.PaypalEmail,
		BankAccountDetails: wr.BankAccountDetails,
		Status:             wr.Status,
		TransactionID:      wr.TransactionID,
		AdminNotes:         wr.AdminNotes,
		CreatedAt:          wr.CreatedAt,
		UpdatedAt:          wr.UpdatedAt,
		ProcessedAt:        wr.ProcessedAt,
	}
}

func NewWithdrawalList(items []domain.WithdrawalRequest) []WithdrawalResponseDTO {
	out := make([]WithdrawalResponseDTO, len(items))
	for i := range items {
		out[i] = NewWithdrawalResponse(&items[i])
	}
	return out
}
