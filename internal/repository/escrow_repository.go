package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/plevandm/repairhub-backend/internal/models"
)

// EscrowRepository хранит escrow транзакции в PostgreSQL.
// Репозиторий не содержит бизнес-логики: никакой валидации статусов,
// дефолтов или перерасчёта комиссий — этим владеет движок.
type EscrowRepository struct {
	db *sqlx.DB
}

func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

// GetByID возвращает транзакцию по идентификатору.
func (r *EscrowRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error) {
	var tx models.EscrowTransaction
	err := r.db.GetContext(ctx, &tx, `SELECT * FROM escrow_transactions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, fmt.Errorf("escrow repository: get by id %w", err)
	}
	return &tx, nil
}

// GetByOrderID возвращает все транзакции заказа, новые первыми.
// Исторически у заказа может накопиться несколько транзакций
// (повторные попытки, споры), поэтому возвращается список.
func (r *EscrowRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.EscrowTransaction, error) {
	var txs []models.EscrowTransaction
	err := r.db.SelectContext(ctx, &txs, `
		SELECT * FROM escrow_transactions WHERE order_id = $1 ORDER BY created_at DESC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("escrow repository: get by order id %w", err)
	}
	return txs, nil
}

// GetAll возвращает все транзакции.
func (r *EscrowRepository) GetAll(ctx context.Context) ([]models.EscrowTransaction, error) {
	var txs []models.EscrowTransaction
	err := r.db.SelectContext(ctx, &txs, `SELECT * FROM escrow_transactions ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("escrow repository: get all %w", err)
	}
	return txs, nil
}

// Save выполняет upsert по id с проверкой версии. Новая запись
// (Version == 0) вставляется с версией 1; существующая обновляется,
// только если версия в базе совпадает с версией в памяти. Несовпадение
// означает, что транзакцию успел изменить параллельный вызов.
func (r *EscrowRepository) Save(ctx context.Context, tx *models.EscrowTransaction) error {
	if tx.Version == 0 {
		return r.insert(ctx, tx)
	}
	return r.update(ctx, tx)
}

func (r *EscrowRepository) insert(ctx context.Context, tx *models.EscrowTransaction) error {
	query := `
		INSERT INTO escrow_transactions (
			id, order_id, client_id, master_id, amount, currency, payment_method,
			status, client_confirmed, client_confirmed_at, master_confirmed, master_confirmed_at,
			platform_fee_percent, platform_fee_amount, master_receive_amount,
			created_at, expires_at, released_at, refunded_at, dispute_reason, notes, version
		) VALUES (
			:id, :order_id, :client_id, :master_id, :amount, :currency, :payment_method,
			:status, :client_confirmed, :client_confirmed_at, :master_confirmed, :master_confirmed_at,
			:platform_fee_percent, :platform_fee_amount, :master_receive_amount,
			:created_at, :expires_at, :released_at, :refunded_at, :dispute_reason, :notes, 1
		)
	`
	if _, err := r.db.NamedExecContext(ctx, query, tx); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrVersionConflict
		}
		return fmt.Errorf("escrow repository: insert %w", err)
	}
	tx.Version = 1
	return nil
}

func (r *EscrowRepository) update(ctx context.Context, tx *models.EscrowTransaction) error {
	query := `
		UPDATE escrow_transactions SET
			status = :status,
			client_confirmed = :client_confirmed,
			client_confirmed_at = :client_confirmed_at,
			master_confirmed = :master_confirmed,
			master_confirmed_at = :master_confirmed_at,
			released_at = :released_at,
			refunded_at = :refunded_at,
			dispute_reason = :dispute_reason,
			notes = :notes,
			version = version + 1
		WHERE id = :id AND version = :version
	`
	result, err := r.db.NamedExecContext(ctx, query, tx)
	if err != nil {
		return fmt.Errorf("escrow repository: update %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("escrow repository: update rows affected %w", err)
	}
	if affected == 0 {
		var count int
		if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM escrow_transactions WHERE id = $1`, tx.ID); err != nil {
			return fmt.Errorf("escrow repository: update check existence %w", err)
		}
		if count == 0 {
			return ErrEscrowNotFound
		}
		return ErrVersionConflict
	}

	tx.Version++
	return nil
}
