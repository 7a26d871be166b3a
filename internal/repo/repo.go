package repo

import (
	"github.com/GlebRadaev/walletledger/internal/ledger"
	"github.com/GlebRadaev/walletledger/internal/pg"
	accountrepo "github.com/GlebRadaev/walletledger/internal/repo/account-repo"
	transactionrepo "github.com/GlebRadaev/walletledger/internal/repo/transaction-repo"
	userrepo "github.com/GlebRadaev/walletledger/internal/repo/user-repo"
	withdrawalrepo "github.com/GlebRadaev/walletledger/internal/repo/withdrawal-repo"
	"github.com/GlebRadaev/walletledger/internal/service/authservice"
	"github.com/GlebRadaev/walletledger/internal/service/walletservice"
	"github.com/GlebRadaev/walletledger/internal/service/withdrawalservice"
)

type Repositories struct {
	UserRepo        authservice.Repo
	AccountRepo     walletservice.AccountRepo
	AccountStore    ledger.AccountStore
	TransactionRepo walletservice.TransactionRepo
	TransactionLog  ledger.TransactionStore
	WithdrawalRepo  withdrawalservice.Repo
}

func New(conn pg.Database) *Repositories {
	userRepo := userrepo.New(conn)
	accountRepo := accountrepo.New(conn)
	transactionRepo := transactionrepo.New(conn)
	withdrawalRepo := withdrawalrepo.New(conn)

	return &Repositories{
		UserRepo:        userRepo,
		AccountRepo:     accountRepo,
		AccountStore:    accountRepo,
		TransactionRepo: transactionRepo,
		TransactionLog:  transactionRepo,
		WithdrawalRepo:  withdrawalRepo,
	}
}
