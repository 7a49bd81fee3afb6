package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/plevandm/repairhub-backend/internal/eventbus"
	"github.com/plevandm/repairhub-backend/internal/models"
	"github.com/plevandm/repairhub-backend/internal/pkg/apperror"
	"github.com/plevandm/repairhub-backend/internal/repository"
)

// EscrowRepository описывает взаимодействие движка с хранилищем транзакций.
// Хранилище — тупая граница персистентности: вся валидация и вычисление
// производных полей живут здесь, в сервисе.
type EscrowRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.EscrowTransaction, error)
	GetAll(ctx context.Context) ([]models.EscrowTransaction, error)
	Save(ctx context.Context, tx *models.EscrowTransaction) error
}

// Дефолты escrow движка.
const (
	DefaultPlatformFeePercent = 5.0
	DefaultGracePeriod        = 30 * 24 * time.Hour
)

// EscrowSettings — параметры движка. Nil FeePercent и нулевой GracePeriod
// заменяются дефолтами; явный ноль комиссии — валидная ставка, а не "не задано".
type EscrowSettings struct {
	FeePercent  *float64
	GracePeriod time.Duration
}

// EscrowService реализует жизненный цикл escrow транзакции: создание,
// двустороннее подтверждение, споры, отмену и автоматический возврат по
// истечении срока. Деньги выплачиваются мастеру только когда обе стороны
// подтвердили сделку — в любом порядке.
type EscrowService struct {
	repo        EscrowRepository
	bus         eventbus.Bus
	feePercent  float64
	gracePeriod time.Duration
}

// NewEscrowService создаёт движок с явно переданным хранилищем и шиной
// событий. Шина может быть nil — тогда события просто не публикуются.
func NewEscrowService(repo EscrowRepository, bus eventbus.Bus, settings EscrowSettings) *EscrowService {
	feePercent := DefaultPlatformFeePercent
	if settings.FeePercent != nil {
		feePercent = *settings.FeePercent
	}
	gracePeriod := settings.GracePeriod
	if gracePeriod == 0 {
		gracePeriod = DefaultGracePeriod
	}

	return &EscrowService{
		repo:        repo,
		bus:         bus,
		feePercent:  feePercent,
		gracePeriod: gracePeriod,
	}
}

// Create создаёт escrow транзакцию для заказа в статусе AWAITING_CLIENT.
// Комиссия платформы округляется один раз и фиксируется навсегда:
// platform_fee_amount + master_receive_amount всегда равно amount.
func (s *EscrowService) Create(
	ctx context.Context,
	orderID, clientID, masterID uuid.UUID,
	amount float64,
	currency models.Currency,
	method models.PaymentMethod,
) (*models.EscrowTransaction, error) {
	if amount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма должна быть положительной")
	}
	if currency == "" {
		currency = models.CurrencyUAH
	}
	if _, ok := models.ValidCurrencies[currency]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("валюта %q не поддерживается", currency))
	}
	if method == "" {
		method = models.PaymentMethodCard
	}
	if _, ok := models.ValidPaymentMethods[method]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("способ оплаты %q не поддерживается", method))
	}

	now := time.Now()
	feeAmount := math.Round(amount * s.feePercent / 100)

	tx := &models.EscrowTransaction{
		ID:                  uuid.New(),
		OrderID:             orderID,
		ClientID:            clientID,
		MasterID:            masterID,
		Amount:              amount,
		Currency:            currency,
		PaymentMethod:       method,
		Status:              models.EscrowStatusAwaitingClient,
		PlatformFeePercent:  s.feePercent,
		PlatformFeeAmount:   feeAmount,
		MasterReceiveAmount: amount - feeAmount,
		CreatedAt:           now,
		ExpiresAt:           now.Add(s.gracePeriod),
	}

	if err := s.repo.Save(ctx, tx); err != nil {
		return nil, s.wrapStoreError(err)
	}

	s.publish(ctx, models.NewEscrowEvent(models.EventEscrowCreated, tx, tx.Amount))
	return tx, nil
}

// ConfirmPaymentByClient подтверждает оплату со стороны клиента.
// Допустим из AWAITING_CLIENT и CONFIRMED_BY_MASTER. Если мастер уже
// подтвердил работу, это второе из двух обязательных подтверждений —
// деньги выплачиваются.
func (s *EscrowService) ConfirmPaymentByClient(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error) {
	tx, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if tx.Status != models.EscrowStatusAwaitingClient && tx.Status != models.EscrowStatusConfirmedByMaster {
		return nil, apperror.InvalidState("confirm payment", tx.Status.String())
	}

	now := time.Now()
	tx.ClientConfirmed = true
	tx.ClientConfirmedAt = &now

	var events []models.EscrowEvent
	if tx.MasterConfirmed {
		s.release(tx, now)
		events = append(events, models.NewEscrowEvent(models.EventFundsReleased, tx, tx.MasterReceiveAmount))
	} else {
		tx.Status = models.EscrowStatusAwaitingMaster
		events = append(events, models.NewEscrowEvent(models.EventPaymentReceived, tx, tx.Amount))
	}

	return s.saveAndPublish(ctx, tx, events)
}

// ConfirmWorkByMaster подтверждает выполнение работы со стороны мастера.
// Допустим из AWAITING_CLIENT и AWAITING_MASTER. Если клиент уже оплатил,
// деньги выплачиваются сразу.
func (s *EscrowService) ConfirmWorkByMaster(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error) {
	tx, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if tx.Status != models.EscrowStatusAwaitingClient && tx.Status != models.EscrowStatusAwaitingMaster {
		return nil, apperror.InvalidState("confirm work", tx.Status.String())
	}

	now := time.Now()
	tx.MasterConfirmed = true
	tx.MasterConfirmedAt = &now

	var events []models.EscrowEvent
	if tx.ClientConfirmed {
		s.release(tx, now)
		events = append(events, models.NewEscrowEvent(models.EventFundsReleased, tx, tx.MasterReceiveAmount))
	} else {
		tx.Status = models.EscrowStatusConfirmedByMaster
		events = append(events, models.NewEscrowEvent(models.EventWorkConfirmed, tx, tx.Amount))
	}

	return s.saveAndPublish(ctx, tx, events)
}

// ApproveWorkByClient — явное подтверждение качества работы клиентом.
// Сознательный обход правила взаимного подтверждения: клиент говорит
// "работа принята, платите", и деньги уходят мастеру независимо от того,
// подтвердил ли мастер работу со своей стороны. Это доверенный клиентский
// override, а не ошибка; он ослабляет escrow гарантию, поэтому держите
// его за отдельным действием в UI.
func (s *EscrowService) ApproveWorkByClient(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error) {
	tx, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if tx.Status.IsTerminal() {
		return nil, apperror.InvalidState("approve work", tx.Status.String())
	}

	now := time.Now()
	tx.ClientConfirmed = true
	if tx.ClientConfirmedAt == nil {
		tx.ClientConfirmedAt = &now
	}
	s.release(tx, now)

	events := []models.EscrowEvent{
		models.NewEscrowEvent(models.EventFundsReleased, tx, tx.MasterReceiveAmount),
	}
	return s.saveAndPublish(ctx, tx, events)
}

// OpenDispute открывает спор. Допустим из любого не конечного статуса;
// дальнейшие автоматические выплаты приостанавливаются до ручного
// разрешения арбитром.
func (s *EscrowService) OpenDispute(ctx context.Context, id uuid.UUID, reason string, initiatedBy models.Party) (*models.EscrowTransaction, error) {
	if reason == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "причина спора обязательна")
	}
	if !initiatedBy.IsValid() {
		return nil, apperror.New(apperror.ErrCodeValidation, "инициатор спора должен быть client или master")
	}

	tx, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if tx.Status.IsTerminal() {
		return nil, apperror.InvalidState("open dispute", tx.Status.String())
	}

	tx.Status = models.EscrowStatusDisputed
	tx.DisputeReason = &reason
	note := "Спор открыт клиентом"
	if initiatedBy == models.PartyMaster {
		note = "Спор открыт мастером"
	}
	tx.Notes = &note

	events := []models.EscrowEvent{
		models.NewEscrowEvent(models.EventDisputeOpened, tx, tx.Amount),
	}
	return s.saveAndPublish(ctx, tx, events)
}

// ResolveDisputeInClientFavor разрешает спор в пользу клиента: полный
// возврат средств. Допустим только из DISPUTED.
func (s *EscrowService) ResolveDisputeInClientFavor(ctx context.Context, id uuid.UUID, reason string) (*models.EscrowTransaction, error) {
	tx, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if tx.Status != models.EscrowStatusDisputed {
		return nil, apperror.InvalidState("resolve dispute", tx.Status.String())
	}

	now := time.Now()
	tx.Status = models.EscrowStatusRefundedToClient
	tx.RefundedAt = &now
	note := "Спор разрешен в пользу клиента. Причина: " + reason
	tx.Notes = &note

	events := []models.EscrowEvent{
		models.NewEscrowEvent(models.EventRefundIssued, tx, tx.Amount),
	}
	return s.saveAndPublish(ctx, tx, events)
}

// ResolveDisputeInMasterFavor разрешает спор в пользу мастера: выплата
// суммы за вычетом комиссии. Допустим только из DISPUTED.
func (s *EscrowService) ResolveDisputeInMasterFavor(ctx context.Context, id uuid.UUID, reason string) (*models.EscrowTransaction, error) {
	tx, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if tx.Status != models.EscrowStatusDisputed {
		return nil, apperror.InvalidState("resolve dispute", tx.Status.String())
	}

	now := time.Now()
	s.release(tx, now)
	note := "Спор разрешен в пользу мастера. Причина: " + reason
	tx.Notes = &note

	events := []models.EscrowEvent{
		models.NewEscrowEvent(models.EventFundsReleased, tx, tx.MasterReceiveAmount),
	}
	return s.saveAndPublish(ctx, tx, events)
}

// Cancel отменяет транзакцию. Допустимо только из AWAITING_CLIENT:
// деньги ещё не двигались и ни одна сторона не подтверждала сделку.
func (s *EscrowService) Cancel(ctx context.Context, id uuid.UUID, reason string) (*models.EscrowTransaction, error) {
	if reason == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "причина отмены обязательна")
	}

	tx, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if tx.Status != models.EscrowStatusAwaitingClient {
		return nil, apperror.InvalidState("cancel escrow", tx.Status.String())
	}

	tx.Status = models.EscrowStatusCancelled
	note := "Отменено. Причина: " + reason
	tx.Notes = &note

	events := []models.EscrowEvent{
		models.NewEscrowEvent(models.EventEscrowCancelled, tx, tx.Amount),
	}
	return s.saveAndPublish(ctx, tx, events)
}

// ProcessExpiredPayments возвращает клиентам деньги по транзакциям,
// которые так и не были оплачены до истечения срока. Затрагиваются
// только записи в AWAITING_CLIENT с истёкшим expires_at; все прочие
// статусы срок не учитывают. Возвращает список обработанных транзакций.
// Планировщик живёт снаружи — см. worker.ExpirySweeper.
func (s *EscrowService) ProcessExpiredPayments(ctx context.Context) ([]models.EscrowTransaction, error) {
	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var resolved []models.EscrowTransaction

	for i := range all {
		tx := &all[i]
		if tx.Status != models.EscrowStatusAwaitingClient || !tx.ExpiresAt.Before(now) {
			continue
		}

		tx.Status = models.EscrowStatusRefundedToClient
		tx.RefundedAt = &now
		note := "Автоматический возврат при истечении срока"
		tx.Notes = &note

		if err := s.repo.Save(ctx, tx); err != nil {
			// Конфликт версии: транзакцию успел перевести параллельный
			// вызов, она больше не подлежит авто-возврату.
			if errors.Is(err, repository.ErrVersionConflict) {
				continue
			}
			return resolved, s.wrapStoreError(err)
		}

		s.publish(ctx, models.NewEscrowEvent(models.EventRefundIssued, tx, tx.Amount))
		resolved = append(resolved, *tx)
	}

	return resolved, nil
}

// GetPayment возвращает транзакцию по идентификатору.
func (s *EscrowService) GetPayment(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error) {
	return s.load(ctx, id)
}

// GetOrderPayments возвращает все транзакции заказа, новые первыми.
func (s *EscrowService) GetOrderPayments(ctx context.Context, orderID uuid.UUID) ([]models.EscrowTransaction, error) {
	return s.repo.GetByOrderID(ctx, orderID)
}

// ActiveOrderPayment возвращает авторитетную транзакцию заказа, когда их
// несколько: самая свежая не конечная, иначе просто самая свежая.
func (s *EscrowService) ActiveOrderPayment(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error) {
	txs, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, apperror.ErrEscrowNotFound
	}

	// Список отсортирован по убыванию created_at.
	for i := range txs {
		if !txs[i].Status.IsTerminal() {
			return &txs[i], nil
		}
	}
	return &txs[0], nil
}

// GetUserPayments возвращает транзакции пользователя в указанной роли.
func (s *EscrowService) GetUserPayments(ctx context.Context, userID uuid.UUID, role models.Party) ([]models.EscrowTransaction, error) {
	if !role.IsValid() {
		return nil, apperror.New(apperror.ErrCodeValidation, "роль должна быть client или master")
	}

	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	var txs []models.EscrowTransaction
	for _, tx := range all {
		if role == models.PartyClient && tx.ClientID == userID {
			txs = append(txs, tx)
		}
		if role == models.PartyMaster && tx.MasterID == userID {
			txs = append(txs, tx)
		}
	}
	return txs, nil
}

// release переводит транзакцию в RELEASED_TO_MASTER и ставит отметку
// времени выплаты. Повторный вызов невозможен: все операции проверяют
// конечность статуса до перехода.
func (s *EscrowService) release(tx *models.EscrowTransaction, now time.Time) {
	tx.Status = models.EscrowStatusReleasedToMaster
	tx.ReleasedAt = &now
}

func (s *EscrowService) load(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error) {
	tx, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrEscrowNotFound) {
			return nil, apperror.ErrEscrowNotFound
		}
		return nil, err
	}
	return tx, nil
}

func (s *EscrowService) saveAndPublish(ctx context.Context, tx *models.EscrowTransaction, events []models.EscrowEvent) (*models.EscrowTransaction, error) {
	if err := s.repo.Save(ctx, tx); err != nil {
		return nil, s.wrapStoreError(err)
	}
	for _, event := range events {
		s.publish(ctx, event)
	}
	return tx, nil
}

// publish отправляет событие в шину. Доставка — fire-and-forget: сбой
// подписчика не должен выглядеть как сбой финансовой операции.
func (s *EscrowService) publish(ctx context.Context, event models.EscrowEvent) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, event)
}

func (s *EscrowService) wrapStoreError(err error) error {
	if errors.Is(err, repository.ErrVersionConflict) {
		return apperror.Wrap(err, apperror.ErrCodeConflict, "транзакция была изменена параллельным запросом, повторите чтение")
	}
	if errors.Is(err, repository.ErrEscrowNotFound) {
		return apperror.ErrEscrowNotFound
	}
	return err
}
