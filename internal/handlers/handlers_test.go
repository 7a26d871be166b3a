package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/GlebRadaev/walletledger/internal/handlers/auth"
	"github.com/GlebRadaev/walletledger/internal/handlers/wallet"
	"github.com/GlebRadaev/walletledger/internal/handlers/withdrawals"
	"github.com/GlebRadaev/walletledger/internal/service"
	pkgauth "github.com/GlebRadaev/walletledger/pkg/auth"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	gomock "go.uber.org/mock/gomock"
)

func TestNew(t *testing.T) {
	ctrl := gomock.NewController(t)

	services := &service.Services{
		AuthService:       auth.NewMockService(ctrl),
		WalletService:     wallet.NewMockService(ctrl),
		WithdrawalService: withdrawals.NewMockService(ctrl),
		JWTService:        pkgauth.NewMockJWTServiceInterface(ctrl),
	}

	h := New(services, nil)
	assert.NotNil(t, h, "Handlers should not be nil")
	assert.NotNil(t, h.Authenticate)
	assert.NotNil(t, h.limiter())
}

func newRouter(t *testing.T, limiter Middleware) chi.Router {
	ctrl := gomock.NewController(t)

	mockAuthHandler := NewMockAuthHandler(ctrl)
	mockWalletHandler := NewMockWalletHandler(ctrl)
	mockWithdrawalHandler := NewMockWithdrawalHandler(ctrl)
	jwtService := pkgauth.NewMockJWTServiceInterface(ctrl)

	mockAuthHandler.EXPECT().Register(gomock.Any(), gomock.Any()).AnyTimes()
	mockAuthHandler.EXPECT().Login(gomock.Any(), gomock.Any()).AnyTimes()
	mockWalletHandler.EXPECT().GetBalance(gomock.Any(), gomock.Any()).AnyTimes()
	mockWalletHandler.EXPECT().Deposit(gomock.Any(), gomock.Any()).AnyTimes()
	mockWalletHandler.EXPECT().Withdraw(gomock.Any(), gomock.Any()).AnyTimes()
	mockWalletHandler.EXPECT().Send(gomock.Any(), gomock.Any()).AnyTimes()
	mockWalletHandler.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).AnyTimes()
	mockWithdrawalHandler.EXPECT().Create(gomock.Any(), gomock.Any()).AnyTimes()
	mockWithdrawalHandler.EXPECT().ListOwn(gomock.Any(), gomock.Any()).AnyTimes()
	mockWithdrawalHandler.EXPECT().List(gomock.Any(), gomock.Any()).AnyTimes()
	mockWithdrawalHandler.EXPECT().Accept(gomock.Any(), gomock.Any()).AnyTimes()
	mockWithdrawalHandler.EXPECT().Reject(gomock.Any(), gomock.Any()).AnyTimes()
	mockWithdrawalHandler.EXPECT().MakePayment(gomock.Any(), gomock.Any()).AnyTimes()
	mockWithdrawalHandler.EXPECT().UpdateStatus(gomock.Any(), gomock.Any()).AnyTimes()
	mockWithdrawalHandler.EXPECT().Delete(gomock.Any(), gomock.Any()).AnyTimes()

	jwtService.EXPECT().ValidateToken("user-token").Return(&pkgauth.Claims{UserID: 1}, nil).AnyTimes()
	jwtService.EXPECT().ValidateToken("admin-token").Return(&pkgauth.Claims{UserID: 2, Admin: true}, nil).AnyTimes()
	jwtService.EXPECT().ValidateToken("bad-token").Return(nil, errors.New("invalid token")).AnyTimes()

	h := &Handlers{
		AuthHandler:       mockAuthHandler,
		WalletHandler:     mockWalletHandler,
		WithdrawalHandler: mockWithdrawalHandler,
		Authenticate:      pkgauth.AuthMiddleware(jwtService),
		LoginLimiter:      limiter,
	}

	router := chi.NewRouter()
	h.InitRoutes(router)
	return router
}

func TestInitRoutes(t *testing.T) {
	router := newRouter(t, nil)

	tests := []struct {
		method string
		url    string
		token  string
		status int
	}{
		{"POST", "/api/user/register", "", http.StatusOK},
		{"POST", "/api/user/login", "", http.StatusOK},
		{"GET", "/api/wallet/balance", "", http.StatusUnauthorized},
		{"GET", "/api/wallet/balance", "bad-token", http.StatusUnauthorized},
		{"GET", "/api/wallet/balance", "user-token", http.StatusOK},
		{"POST", "/api/wallet/deposit", "user-token", http.StatusOK},
		{"POST", "/api/wallet/withdraw", "user-token", http.StatusOK},
		{"POST", "/api/wallet/send", "user-token", http.StatusOK},
		{"GET", "/api/transactions", "user-token", http.StatusOK},
		{"POST", "/api/withdrawals", "user-token", http.StatusOK},
		{"GET", "/api/withdrawals", "user-token", http.StatusOK},
		{"POST", "/api/withdrawals", "", http.StatusUnauthorized},
		{"GET", "/api/admin/withdrawals", "", http.StatusUnauthorized},
		{"GET", "/api/admin/withdrawals", "user-token", http.StatusForbidden},
		{"POST", "/api/admin/withdrawals/1/accept", "user-token", http.StatusForbidden},
		{"GET", "/api/admin/withdrawals", "admin-token", http.StatusOK},
		{"POST", "/api/admin/withdrawals/1/accept", "admin-token", http.StatusOK},
		{"POST", "/api/admin/withdrawals/1/reject", "admin-token", http.StatusOK},
		{"POST", "/api/admin/withdrawals/1/make-payment", "admin-token", http.StatusOK},
		{"PUT", "/api/admin/withdrawals/1/status", "admin-token", http.StatusOK},
		{"DELETE", "/api/admin/withdrawals/1", "admin-token", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.url+" "+tt.token, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.url, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestLoginLimiterOnlyGuardsLogin(t *testing.T) {
	blocked := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
	router := newRouter(t, blocked)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/user/login", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/user/register", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
