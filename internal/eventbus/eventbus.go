package eventbus

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/plevandm/repairhub-backend/internal/models"
)

// Handler обрабатывает одно доменное событие escrow.
type Handler func(ctx context.Context, event models.EscrowEvent)

// Bus — контракт публикации и подписки на доменные события.
// Publish не возвращает ошибку: доставка уведомлений никогда не должна
// влиять на результат финансовой операции.
type Bus interface {
	Publish(ctx context.Context, event models.EscrowEvent)
	Subscribe(kind string, handler Handler)
}

// MemoryBus — синхронная in-memory реализация шины событий.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *logrus.Logger
}

// NewMemoryBus создаёт новую шину. Логгер может быть nil.
func NewMemoryBus(log *logrus.Logger) *MemoryBus {
	return &MemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Publish синхронно вызывает всех подписчиков события. Panic в подписчике
// перехватывается и логируется, остальные подписчики выполняются дальше.
func (b *MemoryBus) Publish(ctx context.Context, event models.EscrowEvent) {
	b.mu.RLock()
	handlers := b.handlers[event.Kind]
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.callSafe(ctx, handler, event)
	}
}

// Subscribe регистрирует обработчик для события указанного вида.
func (b *MemoryBus) Subscribe(kind string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], handler)
}

func (b *MemoryBus) callSafe(ctx context.Context, handler Handler, event models.EscrowEvent) {
	defer func() {
		if r := recover(); r != nil && b.log != nil {
			b.log.WithFields(logrus.Fields{
				"event":          event.Kind,
				"transaction_id": event.TransactionID,
			}).Errorf("eventbus: panic в обработчике: %v\nstack:\n%s", r, debug.Stack())
		}
	}()
	handler(ctx, event)
}
