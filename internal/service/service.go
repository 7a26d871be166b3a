package service

import (
	"github.com/GlebRadaev/walletledger/internal/config"
	"github.com/GlebRadaev/walletledger/internal/handlers/auth"
	"github.com/GlebRadaev/walletledger/internal/handlers/wallet"
	"github.com/GlebRadaev/walletledger/internal/handlers/withdrawals"
	"github.com/GlebRadaev/walletledger/internal/ledger"
	"github.com/GlebRadaev/walletledger/internal/payout"
	"github.com/GlebRadaev/walletledger/internal/pg"

	pkgauth "github.com/GlebRadaev/walletledger/pkg/auth"

	"github.com/GlebRadaev/walletledger/internal/repo"
	authservice "github.com/GlebRadaev/walletledger/internal/service/authservice"
	walletservice "github.com/GlebRadaev/walletledger/internal/service/walletservice"
	withdrawalservice "github.com/GlebRadaev/walletledger/internal/service/withdrawalservice"
)

type Services struct {
	AuthService       auth.Service
	WalletService     wallet.Service
	WithdrawalService withdrawals.Service
	PayoutService     payout.WithdrawalService
	JWTService        pkgauth.JWTServiceInterface
}

func New(cfg *config.Config, repo *repo.Repositories, txManager pg.TXManager) *Services {
	jwtService := pkgauth.NewJWTService(cfg.JWTSecret)

	mutator := ledger.NewMutator(repo.AccountStore, txManager)
	recorder := ledger.NewRecorder(repo.TransactionLog, nil)
	walletService := walletservice.New(
		repo.AccountRepo,
		repo.TransactionRepo,
		repo.UserRepo,
		mutator,
		recorder,
		txManager,
		cfg.Currency,
	)
	withdrawalService := withdrawalservice.New(repo.WithdrawalRepo, txManager)
	authService := authservice.New(repo.UserRepo, walletService, txManager, &pkgauth.HashService{}, jwtService).
		WithAdminEmails(cfg.AdminEmails)

	return &Services{
		AuthService:       authService,
		WalletService:     walletService,
		WithdrawalService: withdrawalService,
		PayoutService:     withdrawalService,
		JWTService:        jwtService,
	}
}
