package accountrepo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/GlebRadaev/walletledger/internal/domain"
	"github.com/GlebRadaev/walletledger/internal/pg"
)

type Repository struct {
	db pg.Database
}

func New(db pg.Database) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetByUserID(ctx context.Context, userID int) (*domain.Account, error) {
	query := `
        SELECT id, user_id, balance, currency, created_at, updated_at
        FROM accounts
        WHERE user_id = $1
    `
	var account domain.Account
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&account.ID, &account.UserID, &account.Balance, &account.Currency, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		zap.L().Error("failed to get account", zap.Int("userID", userID), zap.Error(err))
		return nil, err
	}
	return &account, nil
}

func (r *Repository) Create(ctx context.Context, userID int, currency string) (*domain.Account, error) {
	query := `
        INSERT INTO accounts (user_id, balance, currency)
        VALUES ($1, 0, $2)
        RETURNING id, user_id, balance, currency, created_at, updated_at
    `
	var account domain.Account
	err := r.db.QueryRow(ctx, query, userID, currency).Scan(
		&account.ID, &account.UserID, &account.Balance, &account.Currency, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		zap.L().Error("failed to create account", zap.Int("userID", userID), zap.Error(err))
		return nil, err
	}
	return &account, nil
}

// LockAndGetBalance reads the balance under a row lock held until the
// surrounding transaction ends.
func (r *Repository) LockAndGetBalance(ctx context.Context, accountID int) (decimal.Decimal, error) {
	query := `
        SELECT balance
        FROM accounts
        WHERE id = $1
        FOR UPDATE
    `
	var balance decimal.Decimal
	err := r.db.QueryRow(ctx, query, accountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, domain.ErrAccountNotFound
		}
		zap.L().Error("failed to lock account", zap.Int("accountID", accountID), zap.Error(err))
		return decimal.Zero, err
	}
	return balance, nil
}

func (r *Repository) SetBalance(ctx context.Context, accountID int, balance decimal.Decimal) error {
	query := `
		UPDATE accounts
		SET balance = $1, updated_at = NOW()
		WHERE id = $2
	`
	tag, err := r.db.Exec(ctx, query, balance, accountID)
	if err != nil {
		zap.L().Error("failed to update account balance", zap.Int("accountID", accountID), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}
