package wallet

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/GlebRadaev/walletledger/internal/domain"
	"github.com/GlebRadaev/walletledger/internal/dto"
	"github.com/GlebRadaev/walletledger/pkg/auth"
	"github.com/GlebRadaev/walletledger/pkg/utils"
	"github.com/GlebRadaev/walletledger/pkg/validate"
)

//go:generate mockgen -source=wallet.go -destination=mock_wallet.go -package=wallet

type Service interface {
	GetBalance(ctx context.Context, userID int) (*domain.Account, error)
	Deposit(ctx context.Context, userID int, amount decimal.Decimal, paymentMethod string) (*domain.OperationResult, error)
	Withdraw(ctx context.Context, userID int, amount decimal.Decimal, paymentMethod string) (*domain.OperationResult, error)
	Transfer(ctx context.Context, fromUserID int, recipientEmail string, amount decimal.Decimal) (*domain.TransferResult, error)
	ListTransactions(ctx context.Context, userID int, filter domain.TransactionFilter) (*domain.TransactionPage, error)
}

type WalletHandler struct {
	walletService Service
}

func New(walletService Service) *WalletHandler {
	return &WalletHandler{
		walletService: walletService,
	}
}

// GetBalance godoc
//
//	@Summary		Get wallet balance
//	@Description	Return the current balance of the authenticated user's wallet
//	@Tags			Wallet
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	dto.BalanceResponseDTO
//	@Failure		401	{object}	utils.Response	"User not authorized"
//	@Failure		404	{object}	utils.Response	"Account not found"
//	@Failure		500	{object}	utils.Response	"Internal server error"
//	@Router			/api/wallet/balance [get]
func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	account, err := h.walletService.GetBalance(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		utils.RespondWithDomainError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.BalanceResponseDTO{
		Balance:  dto.Money(account.Balance),
		Currency: account.Currency,
	})
}

// Deposit godoc
//
//	@Summary		Deposit funds
//	@Description	Credit the wallet and record a deposit transaction
//	@Tags			Wallet
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.OperationRequestDTO	true	"Deposit payload"
//	@Success		201		{object}	dto.OperationResponseDTO
//	@Failure		400		{object}	utils.Response	"Invalid request body"
//	@Failure		401		{object}	utils.Response	"User not authorized"
//	@Failure		422		{object}	utils.Response	"Validation failed"
//	@Failure		500		{object}	utils.Response	"Internal server error"
//	@Router			/api/wallet/deposit [post]
func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.OperationRequestDTO
	if !decode(w, r, &req) {
		return
	}

	result, err := h.walletService.Deposit(r.Context(), auth.UserID(r.Context()), req.Amount, req.PaymentMethod)
	if err != nil {
		utils.RespondWithDomainError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, dto.NewOperationResponse(result))
}

// Withdraw godoc
//
//	@Summary		Withdraw funds
//	@Description	Debit the wallet and record a withdrawal transaction
//	@Tags			Wallet
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.OperationRequestDTO	true	"Withdraw payload"
//	@Success		201		{object}	dto.OperationResponseDTO
//	@Failure		400		{object}	utils.Response	"Insufficient balance"
//	@Failure		401		{object}	utils.Response	"User not authorized"
//	@Failure		422		{object}	utils.Response	"Validation failed"
//	@Failure		500		{object}	utils.Response	"Internal server error"
//	@Router			/api/wallet/withdraw [post]
func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req dto.OperationRequestDTO
	if !decode(w, r, &req) {
		return
	}

	result, err := h.walletService.Withdraw(r.Context(), auth.UserID(r.Context()), req.Amount, req.PaymentMethod)
	if err != nil {
		utils.RespondWithDomainError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, dto.NewOperationResponse(result))
}

// Send godoc
//
//	@Summary		Send funds to another user
//	@Description	Move funds to the wallet registered under the given email
//	@Tags			Wallet
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.SendRequestDTO	true	"Transfer payload"
//	@Success		201		{object}	dto.TransferResponseDTO
//	@Failure		400		{object}	utils.Response	"Self transfer or insufficient balance"
//	@Failure		401		{object}	utils.Response	"User not authorized"
//	@Failure		404		{object}	utils.Response	"Recipient not found"
//	@Failure		422		{object}	utils.Response	"Validation failed"
//	@Failure		500		{object}	utils.Response	"Internal server error"
//	@Router			/api/wallet/send [post]
func (h *WalletHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req dto.SendRequestDTO
	if !decode(w, r, &req) {
		return
	}

	result, err := h.walletService.Transfer(r.Context(), auth.UserID(r.Context()), req.Email, req.Amount)
	if err != nil {
		utils.RespondWithDomainError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, dto.NewTransferResponse(result))
}

// ListTransactions godoc
//
//	@Summary		List wallet transactions
//	@Description	Paginated transaction history, newest first
//	@Tags			Wallet
//	@Security		BearerAuth
//	@Produce		json
//	@Param			type		query		string	false	"deposit, withdrawal or transfer"
//	@Param			status		query		string	false	"pending, completed or failed"
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			per_page	query		int		false	"Page size"		default(15)
//	@Success		200			{object}	dto.TransactionsPageDTO
//	@Failure		401			{object}	utils.Response	"User not authorized"
//	@Failure		422			{object}	utils.Response	"Validation failed"
//	@Failure		500			{object}	utils.Response	"Internal server error"
//	@Router			/api/transactions [get]
func (h *WalletHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.TransactionFilter{
		Type:   domain.TransactionType(q.Get("type")),
		Status: domain.TransactionStatus(q.Get("status")),
	}

	fields := map[string]string{}
	var err error
	if filter.Page, err = intParam(q.Get("page")); err != nil {
		fields["page"] = "must be an integer"
	}
	if filter.PerPage, err = intParam(q.Get("per_page")); err != nil {
		fields["per_page"] = "must be an integer"
	}
	if len(fields) > 0 {
		utils.RespondWithValidation(w, fields)
		return
	}

	page, err := h.walletService.ListTransactions(r.Context(), auth.UserID(r.Context()), filter)
	if err != nil {
		utils.RespondWithDomainError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.NewTransactionsPage(page))
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if fields := validate.Struct(dst); fields != nil {
		utils.RespondWithValidation(w, fields)
		return false
	}
	return true
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
