package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/plevandm/repairhub-backend/internal/models"
)

type mockNotificationRepo struct {
	mock.Mock
}

func (m *mockNotificationRepo) Create(ctx context.Context, notification *models.Notification) error {
	args := m.Called(ctx, notification)
	return args.Error(0)
}

func (m *mockNotificationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notification), args.Error(1)
}

func (m *mockNotificationRepo) List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	args := m.Called(ctx, userID, limit, offset, unreadOnly)
	return args.Get(0).([]models.Notification), args.Error(1)
}

func (m *mockNotificationRepo) MarkAsRead(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockNotificationRepo) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockNotificationRepo) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type mockBroadcaster struct {
	mock.Mock
}

func (m *mockBroadcaster) BroadcastToUser(userID uuid.UUID, event string, data any) error {
	args := m.Called(userID, event, data)
	return args.Error(0)
}

func TestNotificationService_RecipientsFor(t *testing.T) {
	clientID := uuid.New()
	masterID := uuid.New()
	event := models.EscrowEvent{ClientID: clientID, MasterID: masterID}

	// Создание и оплата — новости для мастера.
	event.Kind = models.EventEscrowCreated
	assert.Equal(t, []uuid.UUID{masterID}, recipientsFor(event))
	event.Kind = models.EventPaymentReceived
	assert.Equal(t, []uuid.UUID{masterID}, recipientsFor(event))

	// Подтверждение работы и возврат — новости для клиента.
	event.Kind = models.EventWorkConfirmed
	assert.Equal(t, []uuid.UUID{clientID}, recipientsFor(event))
	event.Kind = models.EventRefundIssued
	assert.Equal(t, []uuid.UUID{clientID}, recipientsFor(event))

	// Выплата, спор и отмена касаются обеих сторон.
	for _, kind := range []string{models.EventFundsReleased, models.EventDisputeOpened, models.EventEscrowCancelled} {
		event.Kind = kind
		assert.Equal(t, []uuid.UUID{clientID, masterID}, recipientsFor(event))
	}

	event.Kind = "unknown"
	assert.Nil(t, recipientsFor(event))
}

func TestNotificationService_HandleEscrowEvent(t *testing.T) {
	repo := new(mockNotificationRepo)
	broadcaster := new(mockBroadcaster)
	svc := NewNotificationService(repo, broadcaster, nil)
	ctx := context.Background()

	clientID := uuid.New()
	masterID := uuid.New()
	event := models.EscrowEvent{
		Kind:          models.EventFundsReleased,
		TransactionID: uuid.New(),
		ClientID:      clientID,
		MasterID:      masterID,
		Amount:        950,
	}

	repo.On("Create", ctx, mock.AnythingOfType("*models.Notification")).Return(nil).Twice()
	broadcaster.On("BroadcastToUser", clientID, models.EventFundsReleased, event).Return(nil).Once()
	broadcaster.On("BroadcastToUser", masterID, models.EventFundsReleased, event).Return(nil).Once()

	svc.HandleEscrowEvent(ctx, event)

	repo.AssertExpectations(t)
	broadcaster.AssertExpectations(t)
}

func TestNotificationService_HandleEscrowEvent_RepoErrorSkipsBroadcast(t *testing.T) {
	repo := new(mockNotificationRepo)
	broadcaster := new(mockBroadcaster)
	svc := NewNotificationService(repo, broadcaster, nil)
	ctx := context.Background()

	event := models.EscrowEvent{
		Kind:     models.EventPaymentReceived,
		ClientID: uuid.New(),
		MasterID: uuid.New(),
	}

	repo.On("Create", ctx, mock.AnythingOfType("*models.Notification")).Return(errors.New("db down"))

	// Ошибка хранилища не паникует и не доходит до broadcaster.
	assert.NotPanics(t, func() {
		svc.HandleEscrowEvent(ctx, event)
	})
	broadcaster.AssertNotCalled(t, "BroadcastToUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestNotificationService_MarkAsRead_WrongUser(t *testing.T) {
	repo := new(mockNotificationRepo)
	svc := NewNotificationService(repo, nil, nil)
	ctx := context.Background()

	id := uuid.New()
	owner := uuid.New()
	stranger := uuid.New()

	repo.On("GetByID", ctx, id).Return(&models.Notification{ID: id, UserID: owner}, nil)

	err := svc.MarkAsRead(ctx, id, stranger)
	assert.Error(t, err)
	repo.AssertNotCalled(t, "MarkAsRead", mock.Anything, mock.Anything)
}

func TestNotificationService_MarkAsRead_Success(t *testing.T) {
	repo := new(mockNotificationRepo)
	svc := NewNotificationService(repo, nil, nil)
	ctx := context.Background()

	id := uuid.New()
	owner := uuid.New()

	repo.On("GetByID", ctx, id).Return(&models.Notification{ID: id, UserID: owner}, nil)
	repo.On("MarkAsRead", ctx, id).Return(nil)

	assert.NoError(t, svc.MarkAsRead(ctx, id, owner))
	repo.AssertExpectations(t)
}

func TestNotificationService_ListNotifications_NormalizesPaging(t *testing.T) {
	repo := new(mockNotificationRepo)
	svc := NewNotificationService(repo, nil, nil)
	ctx := context.Background()
	userID := uuid.New()

	repo.On("List", ctx, userID, 20, 0, false).Return([]models.Notification{}, nil)

	_, err := svc.ListNotifications(ctx, userID, -5, -1, false)
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}
