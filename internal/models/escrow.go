package models

import (
	"time"

	"github.com/google/uuid"
)

// EscrowStatus описывает состояние escrow транзакции.
type EscrowStatus string

// Статусы escrow транзакции
const (
	EscrowStatusAwaitingClient    EscrowStatus = "AWAITING_CLIENT"
	EscrowStatusAwaitingMaster    EscrowStatus = "AWAITING_MASTER"
	EscrowStatusConfirmedByMaster EscrowStatus = "CONFIRMED_BY_MASTER"
	EscrowStatusReleasedToMaster  EscrowStatus = "RELEASED_TO_MASTER"
	EscrowStatusRefundedToClient  EscrowStatus = "REFUNDED_TO_CLIENT"
	EscrowStatusDisputed          EscrowStatus = "DISPUTED"
	EscrowStatusCancelled         EscrowStatus = "CANCELLED"
)

// IsValid проверяет, что статус входит в закрытый набор значений.
func (s EscrowStatus) IsValid() bool {
	switch s {
	case EscrowStatusAwaitingClient,
		EscrowStatusAwaitingMaster,
		EscrowStatusConfirmedByMaster,
		EscrowStatusReleasedToMaster,
		EscrowStatusRefundedToClient,
		EscrowStatusDisputed,
		EscrowStatusCancelled:
		return true
	}
	return false
}

// IsTerminal сообщает, достигла ли транзакция конечного состояния.
// Конечную транзакцию нельзя перевести ни в какой другой статус.
func (s EscrowStatus) IsTerminal() bool {
	switch s {
	case EscrowStatusReleasedToMaster,
		EscrowStatusRefundedToClient,
		EscrowStatusCancelled:
		return true
	case EscrowStatusAwaitingClient,
		EscrowStatusAwaitingMaster,
		EscrowStatusConfirmedByMaster,
		EscrowStatusDisputed:
		return false
	}
	return false
}

func (s EscrowStatus) String() string {
	return string(s)
}

// Currency — валюта транзакции.
type Currency string

// Поддерживаемые валюты
const (
	CurrencyUAH Currency = "UAH"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

// ValidCurrencies список поддерживаемых валют
var ValidCurrencies = map[Currency]struct{}{
	CurrencyUAH: {},
	CurrencyUSD: {},
	CurrencyEUR: {},
}

// PaymentMethod — способ оплаты.
type PaymentMethod string

// Поддерживаемые способы оплаты
const (
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCrypto       PaymentMethod = "crypto"
	PaymentMethodMono         PaymentMethod = "mono"
	PaymentMethodPrivat24     PaymentMethod = "privat24"
)

// ValidPaymentMethods список поддерживаемых способов оплаты
var ValidPaymentMethods = map[PaymentMethod]struct{}{
	PaymentMethodCard:         {},
	PaymentMethodBankTransfer: {},
	PaymentMethodCrypto:       {},
	PaymentMethodMono:         {},
	PaymentMethodPrivat24:     {},
}

// Party — сторона сделки: клиент или мастер.
type Party string

const (
	PartyClient Party = "client"
	PartyMaster Party = "master"
)

// IsValid проверяет, что сторона указана корректно.
func (p Party) IsValid() bool {
	return p == PartyClient || p == PartyMaster
}

// EscrowTransaction представляет защищённую сделку по одному заказу.
// Деньги клиента удерживаются платформой до подтверждения обеими сторонами.
// Записи никогда не удаляются: отмена и возврат — это статусы, а не удаление.
type EscrowTransaction struct {
	ID       uuid.UUID `db:"id" json:"id"`
	OrderID  uuid.UUID `db:"order_id" json:"order_id"`
	ClientID uuid.UUID `db:"client_id" json:"client_id"`
	MasterID uuid.UUID `db:"master_id" json:"master_id"`

	Amount        float64       `db:"amount" json:"amount"`
	Currency      Currency      `db:"currency" json:"currency"`
	PaymentMethod PaymentMethod `db:"payment_method" json:"payment_method"`

	Status EscrowStatus `db:"status" json:"status"`

	ClientConfirmed   bool       `db:"client_confirmed" json:"client_confirmed"`
	ClientConfirmedAt *time.Time `db:"client_confirmed_at" json:"client_confirmed_at,omitempty"`
	MasterConfirmed   bool       `db:"master_confirmed" json:"master_confirmed"`
	MasterConfirmedAt *time.Time `db:"master_confirmed_at" json:"master_confirmed_at,omitempty"`

	// Комиссия фиксируется в момент создания и больше не пересчитывается,
	// даже если глобальная ставка платформы изменится.
	PlatformFeePercent  float64 `db:"platform_fee_percent" json:"platform_fee_percent"`
	PlatformFeeAmount   float64 `db:"platform_fee_amount" json:"platform_fee_amount"`
	MasterReceiveAmount float64 `db:"master_receive_amount" json:"master_receive_amount"`

	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ExpiresAt  time.Time  `db:"expires_at" json:"expires_at"`
	ReleasedAt *time.Time `db:"released_at" json:"released_at,omitempty"`
	RefundedAt *time.Time `db:"refunded_at" json:"refunded_at,omitempty"`

	DisputeReason *string `db:"dispute_reason" json:"dispute_reason,omitempty"`
	Notes         *string `db:"notes" json:"notes,omitempty"`

	// Version — токен оптимистичной блокировки. Save хранилища отклоняет
	// запись, если версия в базе ушла вперёд.
	Version int64 `db:"version" json:"version"`
}
