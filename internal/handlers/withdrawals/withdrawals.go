package withdrawals

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/GlebRadaev/walletledger/internal/domain"
	"github.com/GlebRadaev/walletledger/internal/dto"
	"github.com/GlebRadaev/walletledger/pkg/auth"
	"github.com/GlebRadaev/walletledger/pkg/utils"
	"github.com/GlebRadaev/walletledger/pkg/validate"
)

//go:generate mockgen -source=withdrawals.go -destination=mock_withdrawals.go -package=withdrawals

type Service interface {
	Create(ctx context.Context, userID int, input domain.WithdrawalInput) (*domain.WithdrawalRequest, error)
	ListForUser(ctx context.Context, userID int) ([]domain.WithdrawalRequest, error)
	List(ctx context.Context, filter domain.WithdrawalFilter) ([]domain.WithdrawalRequest, error)
	Accept(ctx context.Context, id int) (*domain.WithdrawalRequest, error)
	Reject(ctx context.Context, id int, notes string) (*domain.WithdrawalRequest, error)
	MakePayment(ctx context.Context, id int, paymentType domain.PaymentType, externalTxID string) (*domain.WithdrawalRequest, error)
	UpdateStatusAndNotes(ctx context.Context, id int, status domain.WithdrawalStatus, notes, externalTxID string) (*domain.WithdrawalRequest, error)
	Delete(ctx context.Context, id int) error
}

type WithdrawalHandler struct {
	withdrawalService Service
}

func New(withdrawalService Service) *WithdrawalHandler {
	return &WithdrawalHandler{
		withdrawalService: withdrawalService,
	}
}

// Create godoc
//
//	@Summary		Request a payout
//	@Description	File a withdrawal request for admin review. The wallet balance is not changed.
//	@Tags			Withdrawals
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.CreateWithdrawalRequestDTO	true	"Withdrawal request payload"
//	@Success		201		{object}	dto.WithdrawalResponseDTO
//	@Failure		400		{object}	utils.Response	"Invalid request body"
//	@Failure		401		{object}	utils.Response	"User not authorized"
//	@Failure		422		{object}	utils.Response	"Validation failed"
//	@Failure		500		{object}	utils.Response	"Internal server error"
//	@Router			/api/withdrawals [post]
func (h *WithdrawalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateWithdrawalRequestDTO
	if !decode(w, r, &req) {
		return
	}

	wr, err := h.withdrawalService.Create(r.Context(), auth.UserID(r.Context()), req.Input())
	if err != nil {
		utils.RespondWithDomainError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, dto.NewWithdrawalResponse(wr))
}

// ListOwn godoc
//
//	@Summary		List own payout requests
//	@Tags			Withdrawals
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{array}		dto.WithdrawalResponseDTO
//	@Failure		401	{object}	utils.Response	"User not authorized"
//	@Failure		500	{object}	utils.Response	"Internal server error"
//	@Router			/api/withdrawals [get]
func (h *WithdrawalHandler) ListOwn(w http.ResponseWriter, r *http.Request) {
	requests, err := h.withdrawalService.ListForUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		utils.RespondWithDomainError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.NewWithdrawalList(requests))
}

// List godoc
//
//	@Summary		List payout requests
//	@Description	Admin listing, oldest first
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Param			status	query		string	false	"Filter by status"
//	@Param			limit	query		int		false	"Page size"	default(50)
//	@Param			offset	query		int		false	"Offset"
//	@Success		200		{array}		dto.WithdrawalResponseDTO
//	@Failure		401		{object}	utils.Response	"User not authorized"
//	@Failure		403		{object}	utils.Response	"Admin only"
//	@Failure		422		{object}	utils.Response	"Validation failed"
//	@Router			/api/admin/withdrawals [get]
func (h *WithdrawalHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.WithdrawalFilter{Status: domain.WithdrawalStatus(q.Get("status"))}

	fields := map[string]string{}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		fields["limit"] = "must be an integer"
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		fields["offset"] = "must be an integer"
	}
	if len(fields) > 0 {
		utils.RespondWithValidation(w, fields)
		return
	}

	requests, err := h.withdrawalService.List(r.Context(), filter)
	if err != nil {
		utils.RespondWithDomainError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.NewWithdrawalList(requests))
}

// Accept godoc
//
//	@Summary	Accept a pending payout request
//	@Tags		Admin
//	@Security	BearerAuth
//	@Produce	json
//	@Param		id	path		int	true	"Withdrawal request id"
//	@Success	200	{object}	dto.WithdrawalResponseDTO
//	@Failure	404	{object}	utils.Response	"Not found"
//	@Failure	409	{object}	utils.Response	"Invalid state transition"
//	@Router		/api/admin/withdrawals/{id}/accept [post]
func (h *WithdrawalHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	wr, err := h.withdrawalService.Accept(r.Context(), id)
	h.respond(w, wr, err)
}

// Reject godoc
//
//	@Summary	Reject a pending or accepted payout request
//	@Tags		Admin
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Param		id		path		int						true	"Withdrawal request id"
//	@Param		request	body		dto.RejectRequestDTO	false	"Rejection notes"
//	@Success	200		{object}	dto.WithdrawalResponseDTO
//	@Failure	404		{object}	utils.Response	"Not found"
//	@Failure	409		{object}	utils.Response	"Invalid state transition"
//	@Router		/api/admin/withdrawals/{id}/reject [post]
func (h *WithdrawalHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req dto.RejectRequestDTO
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	wr, err := h.withdrawalService.Reject(r.Context(), id, req.AdminNotes)
	h.respond(w, wr, err)
}

// MakePayment godoc
//
//	@Summary		Pay out an accepted request
//	@Description	automatic hands the request to the payout gateway, manual marks it completed
//	@Tags			Admin
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int							true	"Withdrawal request id"
//	@Param			request	body		dto.MakePaymentRequestDTO	true	"Payment payload"
//	@Success		200		{object}	dto.WithdrawalResponseDTO
//	@Failure		404		{object}	utils.Response	"Not found"
//	@Failure		409		{object}	utils.Response	"Invalid state transition"
//	@Failure		422		{object}	utils.Response	"Validation failed"
//	@Router			/api/admin/withdrawals/{id}/make-payment [post]
func (h *WithdrawalHandler) MakePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req dto.MakePaymentRequestDTO
	if !decode(w, r, &req) {
		return
	}
	wr, err := h.withdrawalService.MakePayment(r.Context(), id, req.PaymentType, req.TransactionID)
	h.respond(w, wr, err)
}

// UpdateStatus godoc
//
//	@Summary		Override the status of a payout request
//	@Description	Administrative override, allowed from any status
//	@Tags			Admin
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int							true	"Withdrawal request id"
//	@Param			request	body		dto.UpdateStatusRequestDTO	true	"New status and notes"
//	@Success		200		{object}	dto.WithdrawalResponseDTO
//	@Failure		404		{object}	utils.Response	"Not found"
//	@Failure		422		{object}	utils.Response	"Validation failed"
//	@Router			/api/admin/withdrawals/{id}/status [put]
func (h *WithdrawalHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req dto.UpdateStatusRequestDTO
	if !decode(w, r, &req) {
		return
	}
	wr, err := h.withdrawalService.UpdateStatusAndNotes(r.Context(), id, req.Status, req.AdminNotes, req.TransactionID)
	h.respond(w, wr, err)
}

// Delete godoc
//
//	@Summary	Delete a payout request
//	@Tags		Admin
//	@Security	BearerAuth
//	@Param		id	path	int	true	"Withdrawal request id"
//	@Success	204
//	@Failure	404	{object}	utils.Response	"Not found"
//	@Router		/api/admin/withdrawals/{id} [delete]
func (h *WithdrawalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.withdrawalService.Delete(r.Context(), id); err != nil {
		utils.RespondWithDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WithdrawalHandler) respond(w http.ResponseWriter, wr *domain.WithdrawalRequest, err error) {
	if err != nil {
		utils.RespondWithDomainError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.NewWithdrawalResponse(wr))
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		utils.RespondWithValidation(w, map[string]string{"id": "must be a positive integer"})
		return 0, false
	}
	return id, true
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
