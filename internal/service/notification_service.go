package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/plevandm/repairhub-backend/internal/eventbus"
	"github.com/plevandm/repairhub-backend/internal/models"
)

// NotificationRepository описывает взаимодействие сервиса с хранилищем уведомлений.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// NotificationBroadcaster доставляет уведомление подключённому пользователю
// (websocket hub). Доставка best-effort.
type NotificationBroadcaster interface {
	BroadcastToUser(userID uuid.UUID, event string, data any) error
}

// NotificationService превращает доменные события escrow в уведомления:
// сохраняет их в хранилище и рассылает подключённым пользователям.
type NotificationService struct {
	repo        NotificationRepository
	broadcaster NotificationBroadcaster
	log         *logrus.Logger
}

// NewNotificationService создаёт новый сервис уведомлений.
// Broadcaster и логгер могут быть nil.
func NewNotificationService(repo NotificationRepository, broadcaster NotificationBroadcaster, log *logrus.Logger) *NotificationService {
	return &NotificationService{repo: repo, broadcaster: broadcaster, log: log}
}

// SubscribeToEscrowEvents подписывает сервис на все виды escrow событий.
func (s *NotificationService) SubscribeToEscrowEvents(bus eventbus.Bus) {
	kinds := []string{
		models.EventEscrowCreated,
		models.EventPaymentReceived,
		models.EventWorkConfirmed,
		models.EventFundsReleased,
		models.EventDisputeOpened,
		models.EventRefundIssued,
		models.EventEscrowCancelled,
	}
	for _, kind := range kinds {
		bus.Subscribe(kind, s.HandleEscrowEvent)
	}
}

// HandleEscrowEvent создаёт уведомления для сторон, которых касается событие.
// Ошибки здесь логируются и не возвращаются: сбой доставки уведомления
// не должен откатывать финансовый переход, который его породил.
func (s *NotificationService) HandleEscrowEvent(ctx context.Context, event models.EscrowEvent) {
	for _, userID := range recipientsFor(event) {
		if _, err := s.CreateNotification(ctx, userID, event.Kind, event); err != nil {
			if s.log != nil {
				s.log.WithFields(logrus.Fields{
					"event":   event.Kind,
					"user_id": userID,
				}).Errorf("notification service: не удалось сохранить уведомление: %v", err)
			}
			continue
		}

		if s.broadcaster != nil {
			if err := s.broadcaster.BroadcastToUser(userID, event.Kind, event); err != nil && s.log != nil {
				s.log.Errorf("notification service: не удалось отправить уведомление по ws: %v", err)
			}
		}
	}
}

// recipientsFor определяет, какие стороны сделки получают уведомление.
func recipientsFor(event models.EscrowEvent) []uuid.UUID {
	switch event.Kind {
	case models.EventEscrowCreated, models.EventPaymentReceived:
		return []uuid.UUID{event.MasterID}
	case models.EventWorkConfirmed, models.EventRefundIssued:
		return []uuid.UUID{event.ClientID}
	case models.EventFundsReleased, models.EventDisputeOpened, models.EventEscrowCancelled:
		return []uuid.UUID{event.ClientID, event.MasterID}
	}
	return nil
}

// CreateNotification создаёт новое уведомление.
func (s *NotificationService) CreateNotification(ctx context.Context, userID uuid.UUID, event string, data interface{}) (*models.Notification, error) {
	payload := map[string]interface{}{
		"event": event,
		"data":  data,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("notification service: marshal payload %w", err)
	}

	notification := &models.Notification{
		UserID:  userID,
		Payload: payloadBytes,
		IsRead:  false,
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, err
	}

	return notification, nil
}

// ListNotifications возвращает список уведомлений пользователя.
func (s *NotificationService) ListNotifications(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	return s.repo.List(ctx, userID, limit, offset, unreadOnly)
}

// MarkAsRead отмечает уведомление как прочитанное.
func (s *NotificationService) MarkAsRead(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	notification, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if notification.UserID != userID {
		return fmt.Errorf("notification service: у вас нет прав на это уведомление")
	}

	return s.repo.MarkAsRead(ctx, id)
}

// MarkAllAsRead отмечает все уведомления пользователя как прочитанные.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

// CountUnread возвращает количество непрочитанных уведомлений.
func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}
