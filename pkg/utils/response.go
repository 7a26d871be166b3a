package utils

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/GlebRadaev/walletledger/internal/domain"
	"go.uber.org/zap"
)

type Response struct {
	Error  string            `json:"error"`
	Code   string            `json:"code,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

const (
	CodeBadRequest        = "bad_request"
	CodeUnauthorized      = "unauthorized"
	CodeForbidden         = "forbidden"
	CodeConflict          = "conflict"
	CodeTooManyRequests   = "too_many_requests"
	CodeValidation        = "validation_error"
	CodeInsufficientFunds = "insufficient_funds"
	CodeInvalidOperation  = "invalid_operation"
	CodeRecipientNotFound = "recipient_not_found"
	CodeNotFound          = "not_found"
	CodeInvalidState      = "invalid_state"
	CodeInternal          = "internal_error"
)

func RespondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("failed to encode response", zap.Error(err))
	}
}

func RespondWithError(w http.ResponseWriter, status int, message string) {
	RespondWithJSON(w, status, Response{Error: message, Code: codeForStatus(status)})
}

func RespondWithValidation(w http.ResponseWriter, fields map[string]string) {
	RespondWithJSON(w, http.StatusUnprocessableEntity, Response{
		Error:  "The given data was invalid",
		Code:   CodeValidation,
		Fields: fields,
	})
}

// RespondWithDomainError maps service errors onto HTTP statuses. Anything
// that is not a known business error is logged and hidden behind a 500.
func RespondWithDomainError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		RespondWithValidation(w, ve.Fields)
	case errors.Is(err, domain.ErrInsufficientFunds):
		RespondWithJSON(w, http.StatusBadRequest, Response{Error: "Insufficient balance", Code: CodeInsufficientFunds})
	case errors.Is(err, domain.ErrInvalidOperation):
		RespondWithJSON(w, http.StatusBadRequest, Response{Error: "Invalid operation", Code: CodeInvalidOperation})
	case errors.Is(err, domain.ErrRecipientNotFound):
		RespondWithJSON(w, http.StatusNotFound, Response{Error: "Recipient not found", Code: CodeRecipientNotFound})
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrAccountNotFound):
		RespondWithJSON(w, http.StatusNotFound, Response{Error: "Not found", Code: CodeNotFound})
	case errors.Is(err, domain.ErrInvalidState):
		RespondWithJSON(w, http.StatusConflict, Response{Error: "Invalid state transition", Code: CodeInvalidState})
	default:
		zap.L().Error("internal error", zap.Error(err))
		RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeBadRequest
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusUnprocessableEntity:
		return CodeValidation
	case http.StatusTooManyRequests:
		return CodeTooManyRequests
	default:
		return CodeInternal
	}
}
