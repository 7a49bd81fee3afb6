package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/plevandm/repairhub-backend/internal/models"
)

// MemoryEscrowRepository — эталонное in-memory хранилище escrow транзакций.
// Используется в тестах и для локальной разработки без базы. Семантика
// версий совпадает с PostgreSQL реализацией.
type MemoryEscrowRepository struct {
	mu  sync.RWMutex
	txs map[uuid.UUID]models.EscrowTransaction
}

func NewMemoryEscrowRepository() *MemoryEscrowRepository {
	return &MemoryEscrowRepository{txs: make(map[uuid.UUID]models.EscrowTransaction)}
}

// GetByID возвращает копию транзакции по идентификатору.
func (r *MemoryEscrowRepository) GetByID(_ context.Context, id uuid.UUID) (*models.EscrowTransaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tx, ok := r.txs[id]
	if !ok {
		return nil, ErrEscrowNotFound
	}
	return &tx, nil
}

// GetByOrderID возвращает все транзакции заказа, новые первыми.
func (r *MemoryEscrowRepository) GetByOrderID(_ context.Context, orderID uuid.UUID) ([]models.EscrowTransaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var txs []models.EscrowTransaction
	for _, tx := range r.txs {
		if tx.OrderID == orderID {
			txs = append(txs, tx)
		}
	}
	sort.Slice(txs, func(i, j int) bool {
		return txs[i].CreatedAt.After(txs[j].CreatedAt)
	})
	return txs, nil
}

// GetAll возвращает все транзакции, старые первыми.
func (r *MemoryEscrowRepository) GetAll(_ context.Context) ([]models.EscrowTransaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	txs := make([]models.EscrowTransaction, 0, len(r.txs))
	for _, tx := range r.txs {
		txs = append(txs, tx)
	}
	sort.Slice(txs, func(i, j int) bool {
		return txs[i].CreatedAt.Before(txs[j].CreatedAt)
	})
	return txs, nil
}

// Save выполняет upsert по id с проверкой версии.
func (r *MemoryEscrowRepository) Save(_ context.Context, tx *models.EscrowTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.txs[tx.ID]
	if tx.Version == 0 {
		if exists {
			return ErrVersionConflict
		}
		tx.Version = 1
		r.txs[tx.ID] = *tx
		return nil
	}

	if !exists {
		return ErrEscrowNotFound
	}
	if stored.Version != tx.Version {
		return ErrVersionConflict
	}

	tx.Version++
	r.txs[tx.ID] = *tx
	return nil
}
