// Package payout hands withdrawal requests in the processing state to the
// external payment gateway and records the outcome.
package payout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GlebRadaev/walletledger/internal/config"
	"github.com/GlebRadaev/walletledger/internal/domain"
	"github.com/GlebRadaev/walletledger/pkg/clients"
)

//go:generate mockgen -source=payout.go -destination=mock_payout.go -package=payout

const (
	maxRetries    = 3
	retryInterval = time.Second * 1
	batchSize     = 100

	gatewayStatusSucceeded = "succeeded"
	gatewayStatusFailed    = "failed"
	gatewayStatusPending   = "pending"
)

var ErrUnexpectedStatus = errors.New("unexpected gateway status")

type WithdrawalService interface {
	List(ctx context.Context, filter domain.WithdrawalFilter) ([]domain.WithdrawalRequest, error)
	CompletePayout(ctx context.Context, id int, externalTxID string) (*domain.WithdrawalRequest, error)
	FailPayout(ctx context.Context, id int, reason string) (*domain.WithdrawalRequest, error)
}

type Request struct {
	Reference   string                     `json:"reference"`
	Amount      string                     `json:"amount"`
	Currency    string                     `json:"currency"`
	Method      domain.PayoutMethod        `json:"method"`
	PaypalEmail string                     `json:"paypal_email,omitempty"`
	BankAccount *domain.BankAccountDetails `json:"bank_account,omitempty"`
}

type Response struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

type Service struct {
	url            string
	currency       string
	withdrawals    WithdrawalService
	client         clients.HTTPClientI
	workerPool     WorkerPoolI
	updateInterval time.Duration
	inFlight       sync.Map
	sleep          func(ctx context.Context, d time.Duration) error
}

func New(cfg *config.Config, withdrawals WithdrawalService, client clients.HTTPClientI) *Service {
	interval := cfg.PayoutInterval
	if interval <= 0 {
		interval = time.Second * 5
	}
	workers := cfg.PayoutWorkers
	if workers <= 0 {
		workers = 10
	}
	return &Service{
		url:            cfg.PayoutAddress,
		currency:       cfg.Currency,
		withdrawals:    withdrawals,
		client:         client,
		workerPool:     NewWorkerPool(workers),
		updateInterval: interval,
		sleep:          sleepCtx,
	}
}

func (s *Service) Start(ctx context.Context) {
	zap.L().Info("Payout dispatcher started", zap.String("gateway", s.url))
	go s.run(ctx)
}

func (s *Service) run(ctx context.Context) {
	ticker := time.NewTicker(s.updateInterval)
	defer ticker.Stop()
	defer s.workerPool.Close()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("Context canceled, stopping payout dispatcher")
			return
		case <-ticker.C:
			s.dispatch(ctx)
		}
	}
}

func (s *Service) dispatch(ctx context.Context) {
	requests, err := s.withdrawals.List(ctx, domain.WithdrawalFilter{
		Status: domain.WithdrawalStatusProcessing,
		Limit:  batchSize,
	})
	if err != nil {
		zap.L().Error("Failed to fetch withdrawals for payout", zap.Error(err))
		return
	}

	var g errgroup.Group
	for _, wr := range requests {
		wr := wr

		if _, loaded := s.inFlight.LoadOrStore(wr.ID, struct{}{}); loaded {
			continue
		}

		g.Go(func() error {
			err := s.workerPool.AddTask(ctx, func() error {
				defer s.inFlight.Delete(wr.ID)
				return s.handleWithdrawal(ctx, wr)
			})
			if err != nil {
				s.inFlight.Delete(wr.ID)
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		zap.L().Error("Error dispatching payouts", zap.Error(err))
	}
}

func (s *Service) handleWithdrawal(ctx context.Context, wr domain.WithdrawalRequest) error {
	body, err := json.Marshal(s.buildRequest(wr))
	if err != nil {
		return fmt.Errorf("failed to encode payout %d: %w", wr.ID, err)
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Idempotency-Key", reference(wr.ID))

	url := s.url + "/api/payouts"
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		statusCode, respBody, respHeaders, err := s.client.Post(url, headers, body)
		if err != nil {
			if attempt < maxRetries {
				if err := s.sleep(ctx, retryInterval*time.Duration(attempt)); err != nil {
					return err
				}
				continue
			}
			return fmt.Errorf("failed to send payout %d after %d retries: %w", wr.ID, maxRetries, err)
		}

		switch statusCode {
		case http.StatusTooManyRequests:
			if attempt < maxRetries {
				if err := s.handleRateLimit(ctx, wr.ID, respHeaders, attempt); err != nil {
					return err
				}
				continue
			}
			return fmt.Errorf("payout %d rate limited after %d retries", wr.ID, maxRetries)

		case http.StatusAccepted:
			zap.L().Info("Payout accepted by gateway, waiting for settlement", zap.Int("withdrawalID", wr.ID))
			return nil

		case http.StatusUnprocessableEntity:
			var response Response
			_ = json.Unmarshal(respBody, &response)
			reason := response.Reason
			if reason == "" {
				reason = "payout rejected by gateway"
			}
			return s.fail(ctx, wr.ID, reason)

		case http.StatusOK:
			return s.processResponse(ctx, wr, respBody)

		default:
			zap.L().Error("Unexpected gateway status code", zap.Int("status", statusCode), zap.Int("withdrawalID", wr.ID))
			return fmt.Errorf("%w: %d", ErrUnexpectedStatus, statusCode)
		}
	}
	return nil
}

func (s *Service) processResponse(ctx context.Context, wr domain.WithdrawalRequest, respBody []byte) error {
	var response Response
	if err := json.Unmarshal(respBody, &response); err != nil {
		return fmt.Errorf("failed to parse gateway response: %w", err)
	}

	switch response.Status {
	case gatewayStatusSucceeded:
		if _, err := s.withdrawals.CompletePayout(ctx, wr.ID, response.TransactionID); err != nil {
			return fmt.Errorf("failed to complete withdrawal %d: %w", wr.ID, err)
		}
		zap.L().Info("Payout completed",
			zap.Int("withdrawalID", wr.ID),
			zap.String("transactionID", response.TransactionID),
			zap.String("amount", wr.Amount.StringFixed(2)),
		)
		return nil
	case gatewayStatusFailed:
		return s.fail(ctx, wr.ID, response.Reason)
	case gatewayStatusPending:
		zap.L().Info("Payout pending at gateway", zap.Int("withdrawalID", wr.ID))
		return nil
	default:
		zap.L().Warn("Unrecognized gateway status", zap.Int("withdrawalID", wr.ID), zap.String("status", response.Status))
		return fmt.Errorf("%w: %q", ErrUnexpectedStatus, response.Status)
	}
}

func (s *Service) fail(ctx context.Context, id int, reason string) error {
	if _, err := s.withdrawals.FailPayout(ctx, id, reason); err != nil {
		return fmt.Errorf("failed to mark withdrawal %d as failed: %w", id, err)
	}
	zap.L().Warn("Payout failed", zap.Int("withdrawalID", id), zap.String("reason", reason))
	return nil
}

func (s *Service) buildRequest(wr domain.WithdrawalRequest) Request {
	req := Request{
		Reference:   reference(wr.ID),
		Amount:      wr.Amount.StringFixed(2),
		Currency:    s.currency,
		Method:      wr.PaymentMethod,
		BankAccount: wr.BankAccountDetails,
	}
	if wr.PaypalEmail != nil {
		req.PaypalEmail = *wr.PaypalEmail
	}
	return req
}

func (s *Service) handleRateLimit(ctx context.Context, id int, respHeaders http.Header, attempt int) error {
	retryAfter := retryInterval * time.Duration(attempt)

	if header := respHeaders.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			retryAfter = time.Duration(seconds) * time.Second
		}
	}
	zap.L().Warn(
		"Gateway rate limit detected, retrying",
		zap.Int("withdrawalID", id),
		zap.Int("attempt", attempt),
		zap.Duration("retryAfter", retryAfter),
	)
	return s.sleep(ctx, retryAfter)
}

func reference(id int) string {
	return "withdrawal-" + strconv.Itoa(id)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
