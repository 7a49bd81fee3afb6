package models

import (
	"time"

	"github.com/google/uuid"
)

// Виды доменных событий escrow. Каждый успешный переход состояния
// публикует одно или несколько событий; доставка уведомлений живёт
// за пределами движка.
const (
	EventEscrowCreated   = "escrow.created"
	EventPaymentReceived = "escrow.payment_received"
	EventWorkConfirmed   = "escrow.work_confirmed"
	EventFundsReleased   = "escrow.funds_released"
	EventDisputeOpened   = "escrow.dispute_opened"
	EventRefundIssued    = "escrow.refund_issued"
	EventEscrowCancelled = "escrow.cancelled"
)

// EscrowEvent — доменное событие, описывающее переход escrow транзакции.
type EscrowEvent struct {
	Kind          string    `json:"kind"`
	TransactionID uuid.UUID `json:"transaction_id"`
	OrderID       uuid.UUID `json:"order_id"`
	ClientID      uuid.UUID `json:"client_id"`
	MasterID      uuid.UUID `json:"master_id"`
	Amount        float64   `json:"amount"`
	Currency      Currency  `json:"currency"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewEscrowEvent собирает событие из текущего состояния транзакции.
// Amount — сумма, значимая для события: для выплаты мастеру это сумма
// за вычетом комиссии, для возврата клиенту — полная сумма.
func NewEscrowEvent(kind string, tx *EscrowTransaction, amount float64) EscrowEvent {
	return EscrowEvent{
		Kind:          kind,
		TransactionID: tx.ID,
		OrderID:       tx.OrderID,
		ClientID:      tx.ClientID,
		MasterID:      tx.MasterID,
		Amount:        amount,
		Currency:      tx.Currency,
		OccurredAt:    time.Now(),
	}
}
