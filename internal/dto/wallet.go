package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/GlebRadaev/walletledger/internal/domain"
)

const moneyPlaces = 2

type BalanceResponseDTO struct {
	Balance  string `json:"balance" example:"150.00"`
	Currency string `json:"currency" example:"USD"`
}

type OperationRequestDTO struct {
	Amount        decimal.Decimal `json:"amount" swaggertype:"string" example:"100.00"`
	PaymentMethod string          `json:"payment_method,omitempty" validate:"omitempty,oneof=card bank_account paypal wallet" example:"card"`
}

type OperationResponseDTO struct {
	TransactionID int    `json:"transaction_id" example:"17"`
	Amount        string `json:"amount" example:"100.00"`
	NewBalance    string `json:"new_balance" example:"250.00"`
	Currency      string `json:"currency" example:"USD"`
}

type SendRequestDTO struct {
	Email  string          `json:"email" validate:"required,email" example:"bob@example.com"`
	Amount decimal.Decimal `json:"amount" swaggertype:"string" example:"30.00"`
}

type TransferResponseDTO struct {
	Amount     string `json:"amount" example:"30.00"`
	Recipient  string `json:"recipient" example:"bob@example.com"`
	NewBalance string `json:"new_balance" example:"70.00"`
	Currency   string `json:"currency" example:"USD"`
	Reference  string `json:"reference" example:"5f1c3a8e-2b7d-4c55-9a0e-0d4f3c2b1a99"`
}

type TransactionDTO struct {
	ID            int                    `json:"id" example:"17"`
	Type          domain.TransactionType `json:"type" example:"transfer"`
	Status        string                 `json:"status" example:"completed"`
	Amount        string                 `json:"amount" example:"-30.00"`
	Fee           string                 `json:"fee" example:"0.00"`
	Currency      string                 `json:"currency" example:"USD"`
	PaymentMethod string                 `json:"payment_method" example:"wallet"`
	Meta          domain.TransactionMeta `json:"meta"`
	ProcessedAt   time.Time              `json:"processed_at" example:"2024-05-01T12:00:00Z"`
}

type TransactionsPageDTO struct {
	Data        []TransactionDTO `json:"data"`
	CurrentPage int              `json:"current_page" example:"1"`
	PerPage     int              `json:"per_page" example:"15"`
	Total       int              `json:"total" example:"42"`
	LastPage    int              `json:"last_page" example:"3"`
}

func Money(d decimal.Decimal) string {
	return d.StringFixed(moneyPlaces)
}

func NewOperationResponse(res *domain.OperationResult) OperationResponseDTO {
	return OperationResponseDTO{
		TransactionID: res.TransactionID,
		Amount:        Money(res.Amount),
		NewBalance:    Money(res.NewBalance),
		Currency:      res.Currency,
	}
}

func NewTransferResponse(res *domain.TransferResult) TransferResponseDTO {
	return TransferResponseDTO{
		Amount:     Money(res.Amount),
		Recipient:  res.Recipient,
		NewBalance: Money(res.NewBalance),
		Currency:   res.Currency,
		Reference:  res.Reference,
	}
}

func NewTransactionsPage(page *domain.TransactionPage) TransactionsPageDTO {
	data := make([]TransactionDTO, len(page.Items))
	for i, tx := range page.Items {
		data[i] = TransactionDTO{
			ID:            tx.ID,
			Type:          tx.Type,
			Status:        string(tx.Status),
			Amount:        Money(tx.Amount),
			Fee:           Money(tx.Fee),
			Currency:      tx.Currency,
			PaymentMethod: tx.PaymentMethod,
			Meta:          tx.Meta,
			ProcessedAt:   tx.ProcessedAt,
		}
	}
	return TransactionsPageDTO{
		Data:        data,
		CurrentPage: page.Page,
		PerPage:     page.PerPage,
		Total:       page.Total,
		LastPage:    page.LastPage(),
	}
}
