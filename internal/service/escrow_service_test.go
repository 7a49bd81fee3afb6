package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plevandm/repairhub-backend/internal/eventbus"
	"github.com/plevandm/repairhub-backend/internal/models"
	"github.com/plevandm/repairhub-backend/internal/pkg/apperror"
	"github.com/plevandm/repairhub-backend/internal/repository"
)

// recordingBus запоминает опубликованные события для проверок.
type recordingBus struct {
	mu     sync.Mutex
	events []models.EscrowEvent
}

func (b *recordingBus) Publish(_ context.Context, event models.EscrowEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) Subscribe(string, eventbus.Handler) {}

func (b *recordingBus) kinds() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	kinds := make([]string, 0, len(b.events))
	for _, e := range b.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func (b *recordingBus) last() models.EscrowEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.events[len(b.events)-1]
}

func newTestService() (*EscrowService, *repository.MemoryEscrowRepository, *recordingBus) {
	repo := repository.NewMemoryEscrowRepository()
	bus := &recordingBus{}
	svc := NewEscrowService(repo, bus, EscrowSettings{})
	return svc, repo, bus
}

func createTx(t *testing.T, svc *EscrowService, amount float64) *models.EscrowTransaction {
	t.Helper()
	tx, err := svc.Create(context.Background(), uuid.New(), uuid.New(), uuid.New(), amount, "", "")
	require.NoError(t, err)
	return tx
}

func TestEscrowService_Create_Defaults(t *testing.T) {
	svc, _, bus := newTestService()
	ctx := context.Background()

	orderID := uuid.New()
	clientID := uuid.New()
	masterID := uuid.New()

	tx, err := svc.Create(ctx, orderID, clientID, masterID, 1000, "", "")
	require.NoError(t, err)

	assert.Equal(t, orderID, tx.OrderID)
	assert.Equal(t, models.EscrowStatusAwaitingClient, tx.Status)
	assert.Equal(t, models.CurrencyUAH, tx.Currency)
	assert.Equal(t, models.PaymentMethodCard, tx.PaymentMethod)
	assert.Equal(t, 5.0, tx.PlatformFeePercent)
	assert.Equal(t, 50.0, tx.PlatformFeeAmount)
	assert.Equal(t, 950.0, tx.MasterReceiveAmount)
	assert.False(t, tx.ClientConfirmed)
	assert.False(t, tx.MasterConfirmed)
	assert.Equal(t, int64(1), tx.Version)
	assert.WithinDuration(t, tx.CreatedAt.Add(30*24*time.Hour), tx.ExpiresAt, time.Second)

	assert.Equal(t, []string{models.EventEscrowCreated}, bus.kinds())
	assert.Equal(t, tx.Amount, bus.last().Amount)
}

func TestEscrowService_Create_FeeRoundedOnce(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		amount float64
		fee    float64
	}{
		{1000, 50},
		{999, 50},   // 49.95 округляется вверх
		{101, 5},    // 5.05 округляется вниз
		{10, 1},     // 0.5 округляется вверх
		{1, 0},      // 0.05 округляется до нуля
		{333.33, 17}, // 16.6665
	}

	for _, tc := range cases {
		tx, err := svc.Create(ctx, uuid.New(), uuid.New(), uuid.New(), tc.amount, models.CurrencyUAH, models.PaymentMethodCard)
		require.NoError(t, err)
		assert.Equal(t, tc.fee, tx.PlatformFeeAmount, "amount=%v", tc.amount)
		// Инвариант: комиссия + выплата мастеру = сумма, всегда.
		assert.Equal(t, tc.amount, tx.PlatformFeeAmount+tx.MasterReceiveAmount, "amount=%v", tc.amount)
	}
}

func TestEscrowService_Create_CustomFeePercent(t *testing.T) {
	repo := repository.NewMemoryEscrowRepository()
	fee := 10.0
	svc := NewEscrowService(repo, nil, EscrowSettings{FeePercent: &fee, GracePeriod: 24 * time.Hour})

	tx, err := svc.Create(context.Background(), uuid.New(), uuid.New(), uuid.New(), 500, "", "")
	require.NoError(t, err)

	assert.Equal(t, 10.0, tx.PlatformFeePercent)
	assert.Equal(t, 50.0, tx.PlatformFeeAmount)
	assert.Equal(t, 450.0, tx.MasterReceiveAmount)
	assert.WithinDuration(t, tx.CreatedAt.Add(24*time.Hour), tx.ExpiresAt, time.Second)
}

func TestEscrowService_Create_ZeroFeePercent(t *testing.T) {
	repo := repository.NewMemoryEscrowRepository()
	fee := 0.0
	svc := NewEscrowService(repo, nil, EscrowSettings{FeePercent: &fee})

	// Явный ноль — бесплатная платформа, а не "возьми дефолтные 5%".
	tx, err := svc.Create(context.Background(), uuid.New(), uuid.New(), uuid.New(), 1000, "", "")
	require.NoError(t, err)

	assert.Equal(t, 0.0, tx.PlatformFeePercent)
	assert.Equal(t, 0.0, tx.PlatformFeeAmount)
	assert.Equal(t, 1000.0, tx.MasterReceiveAmount)
}

func TestEscrowService_Create_Validation(t *testing.T) {
	svc, _, bus := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, uuid.New(), uuid.New(), uuid.New(), 0, "", "")
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Create(ctx, uuid.New(), uuid.New(), uuid.New(), -100, "", "")
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Create(ctx, uuid.New(), uuid.New(), uuid.New(), 100, "GBP", "")
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Create(ctx, uuid.New(), uuid.New(), uuid.New(), 100, "", "cash")
	assert.True(t, apperror.IsValidation(err))

	// Невалидное создание ничего не публикует.
	assert.Empty(t, bus.kinds())
}

func TestEscrowService_DualConfirmation_ClientFirst(t *testing.T) {
	svc, _, bus := newTestService()
	ctx := context.Background()
	tx := createTx(t, svc, 1000)

	tx, err := svc.ConfirmPaymentByClient(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusAwaitingMaster, tx.Status)
	assert.True(t, tx.ClientConfirmed)
	assert.NotNil(t, tx.ClientConfirmedAt)
	assert.Nil(t, tx.ReleasedAt)

	tx, err = svc.ConfirmWorkByMaster(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusReleasedToMaster, tx.Status)
	assert.True(t, tx.MasterConfirmed)
	assert.NotNil(t, tx.ReleasedAt)

	assert.Equal(t, []string{
		models.EventEscrowCreated,
		models.EventPaymentReceived,
		models.EventFundsReleased,
	}, bus.kinds())
	assert.Equal(t, tx.MasterReceiveAmount, bus.last().Amount)
}

func TestEscrowService_DualConfirmation_MasterFirst(t *testing.T) {
	svc, _, bus := newTestService()
	ctx := context.Background()
	tx := createTx(t, svc, 1000)

	tx, err := svc.ConfirmWorkByMaster(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusConfirmedByMaster, tx.Status)
	assert.True(t, tx.MasterConfirmed)
	assert.Nil(t, tx.ReleasedAt)

	tx, err = svc.ConfirmPaymentByClient(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusReleasedToMaster, tx.Status)
	assert.NotNil(t, tx.ReleasedAt)

	assert.Equal(t, []string{
		models.EventEscrowCreated,
		models.EventWorkConfirmed,
		models.EventFundsReleased,
	}, bus.kinds())
}

func TestEscrowService_ConfirmPayment_WrongState(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	tx := createTx(t, svc, 1000)

	_, err := svc.ConfirmPaymentByClient(ctx, tx.ID)
	require.NoError(t, err)

	// Повторное подтверждение клиентом из AWAITING_MASTER запрещено.
	_, err = svc.ConfirmPaymentByClient(ctx, tx.ID)
	assert.True(t, apperror.IsInvalidState(err))
	assert.Contains(t, err.Error(), "Cannot confirm payment. Status: AWAITING_MASTER")
}

func TestEscrowService_ConfirmWork_WrongState(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	tx := createTx(t, svc, 1000)

	_, err := svc.ConfirmWorkByMaster(ctx, tx.ID)
	require.NoError(t, err)

	// Из CONFIRMED_BY_MASTER мастер повторно подтвердить не может.
	_, err = svc.ConfirmWorkByMaster(ctx, tx.ID)
	assert.True(t, apperror.IsInvalidState(err))
	assert.Contains(t, err.Error(), "Cannot confirm work. Status: CONFIRMED_BY_MASTER")
}

func TestEscrowService_ApproveWork_ForcesRelease(t *testing.T) {
	svc, _, bus := newTestService()
	ctx := context.Background()
	tx := createTx(t, svc, 1000)

	// Мастер ещё ничего не подтверждал — клиентский approve всё равно
	// выплачивает деньги.
	tx, err := svc.ApproveWorkByClient(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusReleasedToMaster, tx.Status)
	assert.True(t, tx.ClientConfirmed)
	assert.False(t, tx.MasterConfirmed)
	assert.NotNil(t, tx.ReleasedAt)
	assert.Equal(t, models.EventFundsReleased, bus.last().Kind)
}

func TestEscrowService_ApproveWork_FromDisputed(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	tx := createTx(t, svc, 1000)

	_, err := svc.OpenDispute(ctx, tx.ID, "работа не выполнена", models.PartyClient)
	require.NoError(t, err)

	// DISPUTED не конечный: клиент может снять претензии и принять работу.
	tx, err = svc.ApproveWorkByClient(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusReleasedToMaster, tx.Status)
}

func TestEscrowService_OpenDispute(t *testing.T) {
	svc, _, bus := newTestService()
	ctx := context.Background()
	tx := createTx(t, svc, 1000)

	tx, err := svc.OpenDispute(ctx, tx.ID, "мастер пропал", models.PartyClient)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusDisputed, tx.Status)
	require.NotNil(t, tx.DisputeReason)
	assert.Equal(t, "мастер пропал", *tx.DisputeReason)
	require.NotNil(t, tx.Notes)
	assert.Equal(t, "Спор открыт клиентом", *tx.Notes)
	assert.Equal(t, models.EventDisputeOpened, bus.last().Kind)
}

func TestEscrowService_OpenDispute_ByMaster(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	tx := createTx(t, svc, 1000)

	tx, err := svc.OpenDispute(ctx, tx.ID, "клиент не платит", models.PartyMaster)
	require.NoError(t, err)
	require.NotNil(t, tx.Notes)
	assert.Equal(t, "Спор открыт мастером", *tx.Notes)
}

func TestEscrowService_OpenDispute_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	tx := createTx(t, svc, 1000)

	_, err := svc.OpenDispute(ctx, tx.ID, "", models.PartyClient)
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.OpenDispute(ctx, tx.ID, "причина", "arbiter")
	assert.True(t, apperror.IsValidation(err))
}

func TestEscrowService_ResolveDispute_ClientFavor(t *testing.T) {
	svc, _, bus := newTestService()
	ctx := context.Background()
	tx := createTx(t, svc, 1000)

	_, err := svc.OpenDispute(ctx, tx.ID, "брак", models.PartyClient)
	require.NoError(t, err)

	tx, err = svc.ResolveDisputeInClientFavor(ctx, tx.ID, "подтверждён брак")
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusRefundedToClient, tx.Status)
	assert.NotNil(t, tx.RefundedAt)
	assert.Nil(t, tx.ReleasedAt)
	require.NotNil(t, tx.Notes)
	assert.Equal(t, "Спор разрешен в пользу клиента. Причина: подтверждён брак", *tx.Notes)

	// Возврат клиенту идёт полной суммой, без вычета комиссии.
	assert.Equal(t, models.EventRefundIssued, bus.last().Kind)
	assert.Equal(t, 1000.0, bus.last().Amount)
}

func TestEscrowService_ResolveDispute_MasterFavor(t *testing.T) {
	svc, _, bus := newTestService()
	ctx := context.Background()
	tx := createTx(t, svc, 1000)

	_, err := svc.OpenDispute(ctx, tx.ID, "спорная ситуация", models.PartyMaster)
	require.NoError(t, err)

	tx, err = svc.ResolveDisputeInMasterFavor(ctx, tx.ID, "работа выполнена")
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusReleasedToMaster, tx.Status)
	assert.NotNil(t, tx.ReleasedAt)
	require.NotNil(t, tx.Notes)
	assert.Equal(t, "Спор разрешен в пользу мастера. Причина: работа выполнена", *tx.Notes)

	assert.Equal(t, models.EventFundsReleased, bus.last().Kind)
	assert.Equal(t, 950.0, bus.last().Amount)
}

func TestEscrowService_ResolveDispute_OnlyFromDisputed(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	tx := createTx(t, svc, 1000)

	_, err := svc.ResolveDisputeInClientFavor(ctx, tx.ID, "причина")
	assert.True(t, apperror.IsInvalidState(err))
	assert.Contains(t, err.Error(), "Cannot resolve dispute. Status: AWAITING_CLIENT")

	_, err = svc.ResolveDisputeInMasterFavor(ctx, tx.ID, "причина")
	assert.True(t, apperror.IsInvalidState(err))
}

func TestEscrowService_Cancel(t *testing.T) {
	svc, _, bus := newTestService()
	ctx := context.Background()
	tx := createTx(t, svc, 1000)

	tx, err := svc.Cancel(ctx, tx.ID, "заказ отменён")
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusCancelled, tx.Status)
	require.NotNil(t, tx.Notes)
	assert.Equal(t, "Отменено. Причина: заказ отменён", *tx.Notes)
	assert.Equal(t, models.EventEscrowCancelled, bus.last().Kind)
}

func TestEscrowService_Cancel_OnlyBeforePayment(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	tx := createTx(t, svc, 1000)

	_, err := svc.ConfirmPaymentByClient(ctx, tx.ID)
	require.NoError(t, err)

	// После оплаты деньги уже в удержании — отмена запрещена, только спор.
	_, err = svc.Cancel(ctx, tx.ID, "передумал")
	assert.True(t, apperror.IsInvalidState(err))
	assert.Contains(t, err.Error(), "Cannot cancel escrow. Status: AWAITING_MASTER")
}

func TestEscrowService_Cancel_RequiresReason(t *testing.T) {
	svc, _, _ := newTestService()
	tx := createTx(t, svc, 1000)

	_, err := svc.Cancel(context.Background(), tx.ID, "")
	assert.True(t, apperror.IsValidation(err))
}

func TestEscrowService_TerminalStatesAreFinal(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	// Доводим три транзакции до трёх конечных статусов.
	released := createTx(t, svc, 1000)
	_, err := svc.ApproveWorkByClient(ctx, released.ID)
	require.NoError(t, err)

	refunded := createTx(t, svc, 1000)
	_, err = svc.OpenDispute(ctx, refunded.ID, "спор", models.PartyClient)
	require.NoError(t, err)
	_, err = svc.ResolveDisputeInClientFavor(ctx, refunded.ID, "возврат")
	require.NoError(t, err)

	cancelled := createTx(t, svc, 1000)
	_, err = svc.Cancel(ctx, cancelled.ID, "отмена")
	require.NoError(t, err)

	for _, tx := range []*models.EscrowTransaction{released, refunded, cancelled} {
		_, err = svc.ConfirmPaymentByClient(ctx, tx.ID)
		assert.True(t, apperror.IsInvalidState(err))

		_, err = svc.ConfirmWorkByMaster(ctx, tx.ID)
		assert.True(t, apperror.IsInvalidState(err))

		_, err = svc.ApproveWorkByClient(ctx, tx.ID)
		assert.True(t, apperror.IsInvalidState(err))

		_, err = svc.OpenDispute(ctx, tx.ID, "причина", models.PartyClient)
		assert.True(t, apperror.IsInvalidState(err))

		_, err = svc.ResolveDisputeInClientFavor(ctx, tx.ID, "причина")
		assert.True(t, apperror.IsInvalidState(err))

		_, err = svc.Cancel(ctx, tx.ID, "причина")
		assert.True(t, apperror.IsInvalidState(err))
	}
}

func TestEscrowService_NotFound(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	unknown := uuid.New()

	_, err := svc.GetPayment(ctx, unknown)
	assert.True(t, apperror.IsNotFound(err))

	_, err = svc.ConfirmPaymentByClient(ctx, unknown)
	assert.True(t, apperror.IsNotFound(err))

	_, err = svc.ActiveOrderPayment(ctx, uuid.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestEscrowService_ProcessExpiredPayments(t *testing.T) {
	repo := repository.NewMemoryEscrowRepository()
	bus := &recordingBus{}
	svc := NewEscrowService(repo, bus, EscrowSettings{})
	ctx := context.Background()

	// Просроченная неоплаченная транзакция.
	expired := createTx(t, svc, 300)
	expired.ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, repo.Save(ctx, expired))

	// Просроченная, но уже оплаченная: срок не учитывается.
	paid := createTx(t, svc, 500)
	paid.ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, repo.Save(ctx, paid))
	_, err := svc.ConfirmPaymentByClient(ctx, paid.ID)
	require.NoError(t, err)

	// Свежая неоплаченная: срок ещё не вышел.
	fresh := createTx(t, svc, 700)

	resolved, err := svc.ProcessExpiredPayments(ctx)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, expired.ID, resolved[0].ID)
	assert.Equal(t, models.EscrowStatusRefundedToClient, resolved[0].Status)
	assert.NotNil(t, resolved[0].RefundedAt)
	require.NotNil(t, resolved[0].Notes)
	assert.Equal(t, "Автоматический возврат при истечении срока", *resolved[0].Notes)

	// Остальные записи не тронуты.
	got, err := svc.GetPayment(ctx, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusAwaitingMaster, got.Status)

	got, err = svc.GetPayment(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusAwaitingClient, got.Status)

	// Возврат публикуется полной суммой.
	assert.Equal(t, models.EventRefundIssued, bus.last().Kind)
	assert.Equal(t, 300.0, bus.last().Amount)

	// Повторный прогон ничего не находит.
	resolved, err = svc.ProcessExpiredPayments(ctx)
	require.NoError(t, err)
	assert.Empty(t, resolved)
}

func TestEscrowService_SaveConflict(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	tx := createTx(t, svc, 1000)

	// Параллельный вызов успел перевести запись и поднять версию.
	stale, err := repo.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	_, err = svc.ConfirmPaymentByClient(ctx, tx.ID)
	require.NoError(t, err)

	err = repo.Save(ctx, stale)
	assert.ErrorIs(t, err, repository.ErrVersionConflict)
}

func TestEscrowService_ActiveOrderPayment(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	orderID := uuid.New()

	// Старая отменённая транзакция и свежая активная по одному заказу.
	old, err := svc.Create(ctx, orderID, uuid.New(), uuid.New(), 100, "", "")
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, old.ID, "пересоздание")
	require.NoError(t, err)

	current, err := svc.Create(ctx, orderID, uuid.New(), uuid.New(), 200, "", "")
	require.NoError(t, err)
	current.CreatedAt = old.CreatedAt.Add(time.Minute)
	require.NoError(t, repo.Save(ctx, current))

	active, err := svc.ActiveOrderPayment(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, current.ID, active.ID)

	// Когда все транзакции конечные, возвращается самая свежая.
	_, err = svc.Cancel(ctx, current.ID, "тоже отменена")
	require.NoError(t, err)

	active, err = svc.ActiveOrderPayment(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, current.ID, active.ID)
}

func TestEscrowService_GetOrderPayments_NewestFirst(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	orderID := uuid.New()

	first, err := svc.Create(ctx, orderID, uuid.New(), uuid.New(), 100, "", "")
	require.NoError(t, err)

	second, err := svc.Create(ctx, orderID, uuid.New(), uuid.New(), 200, "", "")
	require.NoError(t, err)
	second.CreatedAt = first.CreatedAt.Add(time.Minute)
	require.NoError(t, repo.Save(ctx, second))

	txs, err := svc.GetOrderPayments(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, second.ID, txs[0].ID)
	assert.Equal(t, first.ID, txs[1].ID)
}

func TestEscrowService_GetUserPayments(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	clientID := uuid.New()
	masterID := uuid.New()

	asClient, err := svc.Create(ctx, uuid.New(), clientID, uuid.New(), 100, "", "")
	require.NoError(t, err)
	asMaster, err := svc.Create(ctx, uuid.New(), uuid.New(), masterID, 200, "", "")
	require.NoError(t, err)
	// Чужая транзакция.
	_, err = svc.Create(ctx, uuid.New(), uuid.New(), uuid.New(), 300, "", "")
	require.NoError(t, err)

	txs, err := svc.GetUserPayments(ctx, clientID, models.PartyClient)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, asClient.ID, txs[0].ID)

	txs, err = svc.GetUserPayments(ctx, masterID, models.PartyMaster)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, asMaster.ID, txs[0].ID)

	// В роли мастера клиентские транзакции не видны.
	txs, err = svc.GetUserPayments(ctx, clientID, models.PartyMaster)
	require.NoError(t, err)
	assert.Empty(t, txs)

	_, err = svc.GetUserPayments(ctx, clientID, "admin")
	assert.True(t, apperror.IsValidation(err))
}

// Полный happy-path: создание, оплата, подтверждение работы, выплата.
func TestEscrowService_FullLifecycle(t *testing.T) {
	svc, _, bus := newTestService()
	ctx := context.Background()

	tx, err := svc.Create(ctx, uuid.New(), uuid.New(), uuid.New(), 2500, models.CurrencyUAH, models.PaymentMethodMono)
	require.NoError(t, err)
	assert.Equal(t, 125.0, tx.PlatformFeeAmount)

	tx, err = svc.ConfirmPaymentByClient(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusAwaitingMaster, tx.Status)

	tx, err = svc.ConfirmWorkByMaster(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusReleasedToMaster, tx.Status)
	assert.Equal(t, 2375.0, tx.MasterReceiveAmount)

	assert.Equal(t, []string{
		models.EventEscrowCreated,
		models.EventPaymentReceived,
		models.EventFundsReleased,
	}, bus.kinds())

	// Версия выросла на каждом сохранении.
	assert.Equal(t, int64(3), tx.Version)
}
