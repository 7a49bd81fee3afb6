package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/plevandm/repairhub-backend/internal/service"
)

// ExpirySweeper периодически запускает авто-возврат просроченных escrow
// транзакций. Движок владеет только самой операцией сканирования;
// расписание живёт здесь.
type ExpirySweeper struct {
	escrow   *service.EscrowService
	interval time.Duration
	log      *logrus.Logger
}

// NewExpirySweeper создаёт новый sweeper. Логгер может быть nil.
func NewExpirySweeper(escrow *service.EscrowService, interval time.Duration, log *logrus.Logger) *ExpirySweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ExpirySweeper{escrow: escrow, interval: interval, log: log}
}

// Run выполняет проход сразу при старте и далее по тикеру, пока не
// отменён контекст. Запускать через goroutine.RecoveryHandler.
func (w *ExpirySweeper) Run(ctx context.Context) {
	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpirySweeper) sweep(ctx context.Context) {
	resolved, err := w.escrow.ProcessExpiredPayments(ctx)
	if err != nil {
		if w.log != nil {
			w.log.Errorf("expiry sweeper: ошибка обработки просроченных платежей: %v", err)
		}
		return
	}

	if len(resolved) > 0 && w.log != nil {
		w.log.WithField("count", len(resolved)).Info("expiry sweeper: выполнен автоматический возврат")
	}
}
