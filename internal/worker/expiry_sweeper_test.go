package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plevandm/repairhub-backend/internal/models"
	"github.com/plevandm/repairhub-backend/internal/repository"
	"github.com/plevandm/repairhub-backend/internal/service"
)

func TestExpirySweeper_RefundsExpiredOnStart(t *testing.T) {
	repo := repository.NewMemoryEscrowRepository()
	svc := service.NewEscrowService(repo, nil, service.EscrowSettings{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tx, err := svc.Create(ctx, uuid.New(), uuid.New(), uuid.New(), 1000, "", "")
	require.NoError(t, err)
	tx.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, repo.Save(ctx, tx))

	sweeper := NewExpirySweeper(svc, time.Hour, nil)

	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	// Первый проход выполняется сразу при старте, без ожидания тикера.
	assert.Eventually(t, func() bool {
		got, err := svc.GetPayment(ctx, tx.ID)
		return err == nil && got.Status == models.EscrowStatusRefundedToClient
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper не остановился после отмены контекста")
	}
}

func TestExpirySweeper_DefaultInterval(t *testing.T) {
	sweeper := NewExpirySweeper(nil, 0, nil)
	assert.Equal(t, time.Hour, sweeper.interval)

	sweeper = NewExpirySweeper(nil, -time.Minute, nil)
	assert.Equal(t, time.Hour, sweeper.interval)
}
