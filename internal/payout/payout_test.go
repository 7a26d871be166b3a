package payout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/GlebRadaev/walletledger/internal/config"
	"github.com/GlebRadaev/walletledger/internal/domain"
	"github.com/GlebRadaev/walletledger/pkg/clients"
)

const gatewayURL = "http://localhost:8081/api/payouts"

type sleeps struct {
	calls []time.Duration
}

func (s *sleeps) sleep(_ context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return nil
}

func newService(t *testing.T) (*Service, *MockWithdrawalService, *clients.MockHTTPClientI, *sleeps) {
	ctrl := gomock.NewController(t)
	withdrawals := NewMockWithdrawalService(ctrl)
	client := clients.NewMockHTTPClientI(ctrl)
	sl := &sleeps{}
	service := &Service{
		url:         "http://localhost:8081",
		currency:    "USD",
		withdrawals: withdrawals,
		client:      client,
		sleep:       sl.sleep,
	}
	return service, withdrawals, client, sl
}

func paypalRequest() domain.WithdrawalRequest {
	email := "alice@paypal.example"
	return domain.WithdrawalRequest{
		ID:            7,
		UserID:        1,
		Amount:        decimal.RequireFromString("25.5"),
		PaymentMethod: domain.PayoutMethodPaypal,
		PaypalEmail:   &email,
		Status:        domain.WithdrawalStatusProcessing,
	}
}

func TestNew(t *testing.T) {
	cfg := &config.Config{PayoutAddress: "http://gateway", Currency: "EUR"}
	service := New(cfg, nil, nil)
	defer service.workerPool.Close()

	assert.Equal(t, "http://gateway", service.url)
	assert.Equal(t, "EUR", service.currency)
	assert.Equal(t, 5*time.Second, service.updateInterval)
	assert.NotNil(t, service.sleep)
}

func TestService_Start(t *testing.T) {
	cfg := &config.Config{PayoutAddress: "http://gateway", PayoutInterval: time.Hour}
	service := New(cfg, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	service.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()
}

func TestService_buildRequest(t *testing.T) {
	service, _, _, _ := newService(t)

	req := service.buildRequest(paypalRequest())
	assert.Equal(t, Request{
		Reference:   "withdrawal-7",
		Amount:      "25.50",
		Currency:    "USD",
		Method:      domain.PayoutMethodPaypal,
		PaypalEmail: "alice@paypal.example",
	}, req)

	bank := &domain.BankAccountDetails{AccountHolder: "Bob", AccountNumber: "123", BankName: "First"}
	req = service.buildRequest(domain.WithdrawalRequest{
		ID:                 8,
		Amount:             decimal.RequireFromString("10"),
		PaymentMethod:      domain.PayoutMethodBankAccount,
		BankAccountDetails: bank,
	})
	assert.Equal(t, "10.00", req.Amount)
	assert.Empty(t, req.PaypalEmail)
	assert.Equal(t, bank, req.BankAccount)
}

func TestService_dispatch(t *testing.T) {
	tests := []struct {
		name        string
		list        []domain.WithdrawalRequest
		listErr     error
		addTaskErr  error
		expectTasks int
	}{
		{
			name:        "dispatches every processing request",
			list:        []domain.WithdrawalRequest{{ID: 1}, {ID: 2}},
			expectTasks: 2,
		},
		{
			name:    "list fails",
			listErr: errors.New("db down"),
		},
		{
			name:        "worker pool rejects task",
			list:        []domain.WithdrawalRequest{{ID: 3}},
			addTaskErr:  context.Canceled,
			expectTasks: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			withdrawals := NewMockWithdrawalService(ctrl)
			workerPool := NewMockWorkerPoolI(ctrl)

			withdrawals.EXPECT().
				List(gomock.Any(), domain.WithdrawalFilter{Status: domain.WithdrawalStatusProcessing, Limit: batchSize}).
				Return(tt.list, tt.listErr)
			workerPool.EXPECT().
				AddTask(gomock.Any(), gomock.Any()).
				Return(tt.addTaskErr).
				Times(tt.expectTasks)

			service := &Service{withdrawals: withdrawals, workerPool: workerPool}
			service.dispatch(context.Background())

			if tt.addTaskErr != nil {
				for _, wr := range tt.list {
					_, inFlight := service.inFlight.Load(wr.ID)
					assert.False(t, inFlight)
				}
			}
		})
	}
}

func TestService_dispatchSkipsInFlight(t *testing.T) {
	ctrl := gomock.NewController(t)
	withdrawals := NewMockWithdrawalService(ctrl)
	workerPool := NewMockWorkerPoolI(ctrl)

	withdrawals.EXPECT().List(gomock.Any(), gomock.Any()).
		Return([]domain.WithdrawalRequest{{ID: 1}, {ID: 2}}, nil)
	workerPool.EXPECT().AddTask(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	service := &Service{withdrawals: withdrawals, workerPool: workerPool}
	service.inFlight.Store(1, struct{}{})
	service.dispatch(context.Background())
}

func TestService_handleWithdrawal(t *testing.T) {
	wr := paypalRequest()
	body, err := json.Marshal(Request{
		Reference:   "withdrawal-7",
		Amount:      "25.50",
		Currency:    "USD",
		Method:      domain.PayoutMethodPaypal,
		PaypalEmail: "alice@paypal.example",
	})
	require.NoError(t, err)

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Idempotency-Key", "withdrawal-7")

	t.Run("succeeded completes the request", func(t *testing.T) {
		service, withdrawals, client, _ := newService(t)
		client.EXPECT().Post(gatewayURL, headers, body).
			Return(http.StatusOK, []byte(`{"status":"succeeded","transaction_id":"PP-1"}`), http.Header{}, nil)
		withdrawals.EXPECT().CompletePayout(gomock.Any(), 7, "PP-1").Return(&domain.WithdrawalRequest{}, nil)

		assert.NoError(t, service.handleWithdrawal(context.Background(), wr))
	})

	t.Run("failed status fails the request", func(t *testing.T) {
		service, withdrawals, client, _ := newService(t)
		client.EXPECT().Post(gatewayURL, headers, body).
			Return(http.StatusOK, []byte(`{"status":"failed","reason":"account closed"}`), http.Header{}, nil)
		withdrawals.EXPECT().FailPayout(gomock.Any(), 7, "account closed").Return(&domain.WithdrawalRequest{}, nil)

		assert.NoError(t, service.handleWithdrawal(context.Background(), wr))
	})

	t.Run("pending leaves the request alone", func(t *testing.T) {
		service, _, client, _ := newService(t)
		client.EXPECT().Post(gatewayURL, headers, body).
			Return(http.StatusOK, []byte(`{"status":"pending"}`), http.Header{}, nil)

		assert.NoError(t, service.handleWithdrawal(context.Background(), wr))
	})

	t.Run("accepted leaves the request alone", func(t *testing.T) {
		service, _, client, _ := newService(t)
		client.EXPECT().Post(gatewayURL, headers, body).
			Return(http.StatusAccepted, nil, http.Header{}, nil)

		assert.NoError(t, service.handleWithdrawal(context.Background(), wr))
	})

	t.Run("unprocessable fails the request with default reason", func(t *testing.T) {
		service, withdrawals, client, _ := newService(t)
		client.EXPECT().Post(gatewayURL, headers, body).
			Return(http.StatusUnprocessableEntity, []byte(`{}`), http.Header{}, nil)
		withdrawals.EXPECT().FailPayout(gomock.Any(), 7, "payout rejected by gateway").Return(&domain.WithdrawalRequest{}, nil)

		assert.NoError(t, service.handleWithdrawal(context.Background(), wr))
	})

	t.Run("rate limit honours Retry-After", func(t *testing.T) {
		service, withdrawals, client, sl := newService(t)
		limited := http.Header{}
		limited.Set("Retry-After", "4")
		gomock.InOrder(
			client.EXPECT().Post(gatewayURL, headers, body).Return(http.StatusTooManyRequests, nil, limited, nil),
			client.EXPECT().Post(gatewayURL, headers, body).
				Return(http.StatusOK, []byte(`{"status":"succeeded","transaction_id":"PP-2"}`), http.Header{}, nil),
		)
		withdrawals.EXPECT().CompletePayout(gomock.Any(), 7, "PP-2").Return(&domain.WithdrawalRequest{}, nil)

		assert.NoError(t, service.handleWithdrawal(context.Background(), wr))
		assert.Equal(t, []time.Duration{4 * time.Second}, sl.calls)
	})

	t.Run("rate limited on every attempt", func(t *testing.T) {
		service, _, client, sl := newService(t)
		client.EXPECT().Post(gatewayURL, headers, body).
			Return(http.StatusTooManyRequests, nil, http.Header{}, nil).Times(maxRetries)

		assert.Error(t, service.handleWithdrawal(context.Background(), wr))
		assert.Equal(t, []time.Duration{retryInterval, 2 * retryInterval}, sl.calls)
	})

	t.Run("transport errors retry with linear backoff", func(t *testing.T) {
		service, _, client, sl := newService(t)
		client.EXPECT().Post(gatewayURL, headers, body).
			Return(0, nil, nil, errors.New("connection refused")).Times(maxRetries)

		err := service.handleWithdrawal(context.Background(), wr)
		assert.ErrorContains(t, err, "after 3 retries")
		assert.Equal(t, []time.Duration{retryInterval, 2 * retryInterval}, sl.calls)
	})

	t.Run("unexpected status code", func(t *testing.T) {
		service, _, client, _ := newService(t)
		client.EXPECT().Post(gatewayURL, headers, body).
			Return(http.StatusInternalServerError, nil, http.Header{}, nil)

		assert.ErrorIs(t, service.handleWithdrawal(context.Background(), wr), ErrUnexpectedStatus)
	})

	t.Run("unknown gateway status", func(t *testing.T) {
		service, _, client, _ := newService(t)
		client.EXPECT().Post(gatewayURL, headers, body).
			Return(http.StatusOK, []byte(`{"status":"weird"}`), http.Header{}, nil)

		assert.ErrorIs(t, service.handleWithdrawal(context.Background(), wr), ErrUnexpectedStatus)
	})

	t.Run("malformed response body", func(t *testing.T) {
		service, _, client, _ := newService(t)
		client.EXPECT().Post(gatewayURL, headers, body).
			Return(http.StatusOK, []byte(`not json`), http.Header{}, nil)

		assert.Error(t, service.handleWithdrawal(context.Background(), wr))
	})

	t.Run("complete payout fails", func(t *testing.T) {
		service, withdrawals, client, _ := newService(t)
		client.EXPECT().Post(gatewayURL, headers, body).
			Return(http.StatusOK, []byte(`{"status":"succeeded","transaction_id":"PP-3"}`), http.Header{}, nil)
		withdrawals.EXPECT().CompletePayout(gomock.Any(), 7, "PP-3").Return(nil, domain.ErrInvalidState)

		assert.ErrorIs(t, service.handleWithdrawal(context.Background(), wr), domain.ErrInvalidState)
	})

	t.Run("canceled context", func(t *testing.T) {
		service, _, _, _ := newService(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.ErrorIs(t, service.handleWithdrawal(ctx, wr), context.Canceled)
	})
}

func TestSleepCtx(t *testing.T) {
	assert.NoError(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
}
