package handlers

import (
	"net/http"

	_ "github.com/GlebRadaev/walletledger/docs"
	authhandlers "github.com/GlebRadaev/walletledger/internal/handlers/auth"
	wallethandlers "github.com/GlebRadaev/walletledger/internal/handlers/wallet"
	withdrawalhandlers "github.com/GlebRadaev/walletledger/internal/handlers/withdrawals"
	"github.com/GlebRadaev/walletledger/internal/service"
	"github.com/GlebRadaev/walletledger/pkg/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

//go:generate mockgen -source=handlers.go -destination=mock_handlers.go -package=handlers

type AuthHandler interface {
	Register(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
}

type WalletHandler interface {
	GetBalance(w http.ResponseWriter, r *http.Request)
	Deposit(w http.ResponseWriter, r *http.Request)
	Withdraw(w http.ResponseWriter, r *http.Request)
	Send(w http.ResponseWriter, r *http.Request)
	ListTransactions(w http.ResponseWriter, r *http.Request)
}

type WithdrawalHandler interface {
	Create(w http.ResponseWriter, r *http.Request)
	ListOwn(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	Accept(w http.ResponseWriter, r *http.Request)
	Reject(w http.ResponseWriter, r *http.Request)
	MakePayment(w http.ResponseWriter, r *http.Request)
	UpdateStatus(w http.ResponseWriter, r *http.Request)
	Delete(w http.ResponseWriter, r *http.Request)
}

type Middleware = func(http.Handler) http.Handler

type Handlers struct {
	AuthHandler       AuthHandler
	WalletHandler     WalletHandler
	WithdrawalHandler WithdrawalHandler
	Authenticate      Middleware
	LoginLimiter      Middleware
}

func New(s *service.Services, loginLimiter Middleware) *Handlers {
	return &Handlers{
		AuthHandler:       authhandlers.New(s.AuthService),
		WalletHandler:     wallethandlers.New(s.WalletService),
		WithdrawalHandler: withdrawalhandlers.New(s.WithdrawalService),
		Authenticate:      auth.AuthMiddleware(s.JWTService),
		LoginLimiter:      loginLimiter,
	}
}

func (h *Handlers) InitRoutes(r chi.Router) chi.Router {
	r.Use(
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
	)
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("doc.json"),
	))
	r.Route("/api", func(r chi.Router) {
		r.Route("/user", func(r chi.Router) {
			r.Post("/register", h.AuthHandler.Register)
			r.With(h.limiter()).Post("/login", h.AuthHandler.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.Authenticate)

			r.Route("/wallet", func(r chi.Router) {
				r.Get("/balance", h.WalletHandler.GetBalance)
				r.Post("/deposit", h.WalletHandler.Deposit)
				r.Post("/withdraw", h.WalletHandler.Withdraw)
				r.Post("/send", h.WalletHandler.Send)
			})
			r.Get("/transactions", h.WalletHandler.ListTransactions)

			r.Route("/withdrawals", func(r chi.Router) {
				r.Post("/", h.WithdrawalHandler.Create)
				r.Get("/", h.WithdrawalHandler.ListOwn)
			})

			r.Route("/admin/withdrawals", func(r chi.Router) {
				r.Use(auth.AdminOnly)
				r.Get("/", h.WithdrawalHandler.List)
				r.Post("/{id}/accept", h.WithdrawalHandler.Accept)
				r.Post("/{id}/reject", h.WithdrawalHandler.Reject)
				r.Post("/{id}/make-payment", h.WithdrawalHandler.MakePayment)
				r.Put("/{id}/status", h.WithdrawalHandler.UpdateStatus)
				r.Delete("/{id}", h.WithdrawalHandler.Delete)
			})
		})
	})

	return r
}

func (h *Handlers) limiter() Middleware {
	if h.LoginLimiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return h.LoginLimiter
}
