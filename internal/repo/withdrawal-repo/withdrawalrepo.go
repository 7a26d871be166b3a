package withdrawalrepo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/GlebRadaev/walletledger/internal/domain"
	"github.com/GlebRadaev/walletledger/internal/pg"
)

const selectColumns = `id, user_id, amount, payment_method, paypal_email, bank_account_details, status,
        transaction_id, admin_notes, created_at, updated_at, processed_at`

type Repository struct {
	db pg.Database
}

func New(db pg.Database) *Repository {
	return &Repository{
		db: db,
	}
}

func scanRequest(row pgx.Row) (*domain.WithdrawalRequest, error) {
	var wr domain.WithdrawalRequest
	err := row.Scan(&wr.ID, &wr.UserID, &wr.Amount, &wr.PaymentMethod, &wr.PaypalEmail, &wr.BankAccountDetails,
		&wr.Status, &wr.TransactionID, &wr.AdminNotes, &wr.CreatedAt, &wr.UpdatedAt, &wr.ProcessedAt)
	if err != nil {
		return nil, err
	}
	return &wr, nil
}

func (r *Repository) Create(ctx context.Context, wr *domain.WithdrawalRequest) (*domain.WithdrawalRequest, error) {
	query := `
		INSERT INTO withdrawal_requests (user_id, amount, payment_method, paypal_email, bank_account_details, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, wr.UserID, wr.Amount, wr.PaymentMethod, wr.PaypalEmail, wr.BankAccountDetails, wr.Status).
		Scan(&wr.ID, &wr.CreatedAt, &wr.UpdatedAt)
	if err != nil {
		zap.L().Error("can't save withdrawal request", zap.Error(err))
		return nil, err
	}
	return wr, nil
}

func (r *Repository) GetByID(ctx context.Context, id int) (*domain.WithdrawalRequest, error) {
	return r.get(ctx, `SELECT `+selectColumns+` FROM withdrawal_requests WHERE id = $1`, id)
}

// GetByIDForUpdate locks the request row until the surrounding transaction ends.
func (r *Repository) GetByIDForUpdate(ctx context.Context, id int) (*domain.WithdrawalRequest, error) {
	return r.get(ctx, `SELECT `+selectColumns+` FROM withdrawal_requests WHERE id = $1 FOR UPDATE`, id)
}

func (r *Repository) get(ctx context.Context, query string, id int) (*domain.WithdrawalRequest, error) {
	wr, err := scanRequest(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		zap.L().Error("failed to get withdrawal request", zap.Int("id", id), zap.Error(err))
		return nil, err
	}
	return wr, nil
}

func (r *Repository) Update(ctx context.Context, wr *domain.WithdrawalRequest) error {
	query := `
		UPDATE withdrawal_requests
		SET status = $1, transaction_id = $2, admin_notes = $3, processed_at = $4, updated_at = $5
		WHERE id = $6
	`
	tag, err := r.db.Exec(ctx, query, wr.Status, wr.TransactionID, wr.AdminNotes, wr.ProcessedAt, wr.UpdatedAt, wr.ID)
	if err != nil {
		zap.L().Error("failed to update withdrawal request", zap.Int("id", wr.ID), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id int) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM withdrawal_requests WHERE id = $1`, id)
	if err != nil {
		zap.L().Error("failed to delete withdrawal request", zap.Int("id", id), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) ListByUserID(ctx context.Context, userID int) ([]domain.WithdrawalRequest, error) {
	query := `SELECT ` + selectColumns + `
        FROM withdrawal_requests
        WHERE user_id = $1
        ORDER BY created_at DESC`
	return r.list(ctx, query, userID)
}

// List returns requests oldest first, optionally narrowed to one status.
func (r *Repository) List(ctx context.Context, filter domain.WithdrawalFilter) ([]domain.WithdrawalRequest, error) {
	query := `SELECT ` + selectColumns + `
        FROM withdrawal_requests
        WHERE ($1 = '' OR status = $1)
        ORDER BY created_at ASC, id ASC
        LIMIT $2 OFFSET $3`
	return r.list(ctx, query, string(filter.Status), filter.Limit, filter.Offset)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]domain.WithdrawalRequest, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		zap.L().Error("failed to fetch withdrawal requests", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var requests []domain.WithdrawalRequest
	for rows.Next() {
		wr, err := scanRequest(rows)
		if err != nil {
			zap.L().Error("failed to scan withdrawal request row", zap.Error(err))
			return nil, err
		}
		requests = append(requests, *wr)
	}
	if err := rows.Err(); err != nil {
		zap.L().Error("failed to iterate withdrawal request rows", zap.Error(err))
		return nil, err
	}
	return requests, nil
}
