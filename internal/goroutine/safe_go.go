package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// RecoveryHandler запускает горутины с перехватом panic, чтобы одна
// упавшая фоновая задача не роняла весь процесс.
type RecoveryHandler struct {
	log *logrus.Logger
}

// NewRecoveryHandler создаёт новый обработчик.
func NewRecoveryHandler(log *logrus.Logger) *RecoveryHandler {
	return &RecoveryHandler{log: log}
}

// SafeGo запускает горутину с обработкой panic.
func (rh *RecoveryHandler) SafeGo(fn func()) {
	go func() {
		defer rh.recoverPanic()
		fn()
	}()
}

// SafeGoWithContext запускает горутину с контекстом и обработкой panic.
func (rh *RecoveryHandler) SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	go func() {
		defer rh.recoverPanic()
		fn(ctx)
	}()
}

func (rh *RecoveryHandler) recoverPanic() {
	if r := recover(); r != nil {
		if rh.log != nil {
			rh.log.Errorf("panic в горутине: %v\nstack:\n%s", r, debug.Stack())
		}
	}
}
