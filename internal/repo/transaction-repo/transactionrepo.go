package transactionrepo

import (
	"context"

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

func (r *Repository) Insert(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	query := `
        INSERT INTO transactions (account_id, type, status, amount, fee, currency, payment_method, meta, processed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id, created_at
    `
	err := r.db.QueryRow(ctx, query,
		tx.AccountID, tx.Type, tx.Status, tx.Amount, tx.Fee, tx.Currency, tx.PaymentMethod, tx.Meta, tx.ProcessedAt,
	).Scan(&tx.ID, &tx.CreatedAt)
	if err != nil {
		zap.L().Error("can't save transaction", zap.Int("accountID", tx.AccountID), zap.Error(err))
		return nil, err
	}
	return tx, nil
}

// List returns one page of the account's ledger, newest first. Empty filter
// values match every row.
func (r *Repository) List(ctx context.Context, accountID int, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	query := `
        SELECT id, account_id, type, status, amount, fee, currency, payment_method, meta, processed_at, created_at
        FROM transactions
        WHERE account_id = $1
          AND ($2 = '' OR type = $2)
          AND ($3 = '' OR status = $3)
        ORDER BY processed_at DESC, id DESC
        LIMIT $4 OFFSET $5
    `
	rows, err := r.db.Query(ctx, query, accountID, string(filter.Type), string(filter.Status), filter.PerPage, filter.Offset())
	if err != nil {
		zap.L().Error("can't get transactions", zap.Int("accountID", accountID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		err := rows.Scan(&tx.ID, &tx.AccountID, &tx.Type, &tx.Status, &tx.Amount, &tx.Fee,
			&tx.Currency, &tx.PaymentMethod, &tx.Meta, &tx.ProcessedAt, &tx.CreatedAt)
		if err != nil {
			zap.L().Error("can't scan transaction row", zap.Error(err))
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		zap.L().Error("can't iterate transaction rows", zap.Error(err))
		return nil, err
	}
	return transactions, nil
}

func (r *Repository) Count(ctx context.Context, accountID int, filter domain.TransactionFilter) (int, error) {
	query := `
        SELECT COUNT(*)
        FROM transactions
        WHERE account_id = $1
          AND ($2 = '' OR type = $2)
          AND ($3 = '' OR status = $3)
    `
	var total int
	if err := r.db.QueryRow(ctx, query, accountID, string(filter.Type), string(filter.Status)).Scan(&total); err != nil {
		zap.L().Error("can't count transactions", zap.Int("accountID", accountID), zap.Error(err))
		return 0, err
	}
	return total, nil
}
