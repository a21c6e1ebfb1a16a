package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/AccShop/app/models"
	"github.com/ManuelReschke/AccShop/internal/pkg/database"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seedInvoice(t *testing.T, repo InvoiceRepository, userID uint, orderCode int64, status string) *models.Invoice {
	t.Helper()
	inv := &models.Invoice{
		OrderCode:   orderCode,
		UserID:      userID,
		Amount:      100000,
		BonusBps:    100,
		Bonus:       1000,
		TotalAmount: 101000,
		Status:      status,
		Description: "DEPtest",
		ExpiresAt:   baseTime.Add(30 * 24 * time.Hour),
	}
	require.NoError(t, repo.Create(context.Background(), inv))
	return inv
}

func TestInvoiceRepository_CompletePendingCreditsOnce(t *testing.T) {
	db := database.NewTestDB(t)
	repos := NewRepositories(db)
	ctx := context.Background()
	seedInvoice(t, repos.Invoice, 7, 4242, models.InvoiceStatusPending)

	inv, ok, err := repos.Invoice.CompletePending(ctx, 4242, baseTime, baseTime)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.InvoiceStatusCompleted, inv.Status)
	require.NotNil(t, inv.PaymentDate)

	_, ok, err = repos.Invoice.CompletePending(ctx, 4242, baseTime, baseTime)
	require.NoError(t, err)
	assert.False(t, ok, "second completion must be a no-op")

	balance, err := repos.Balance.GetByUserID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(101000), balance)
}

func TestInvoiceRepository_CompletePendingConcurrent(t *testing.T) {
	db := database.NewTestDB(t)
	repos := NewRepositories(db)
	ctx := context.Background()
	seedInvoice(t, repos.Invoice, 9, 777, models.InvoiceStatusPending)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := repos.Invoice.CompletePending(ctx, 777, baseTime, baseTime)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	balance, err := repos.Balance.GetByUserID(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(101000), balance)
}

func TestInvoiceRepository_TerminalStatesAreFinal(t *testing.T) {
	tests := []struct {
		name   string
		status string
	}{
		{"completed", models.InvoiceStatusCompleted},
		{"failed", models.InvoiceStatusFailed},
		{"expired", models.InvoiceStatusExpired},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := database.NewTestDB(t)
			repo := NewInvoiceRepository(db)
			ctx := context.Background()
			code := int64(1000 + i)
			seedInvoice(t, repo, 1, code, tt.status)

			_, ok, err := repo.CompletePending(ctx, code, baseTime, baseTime)
			require.NoError(t, err)
			assert.False(t, ok)

			ok, err = repo.FailPending(ctx, code, "late failure", baseTime)
			require.NoError(t, err)
			assert.False(t, ok)

			got, err := repo.GetByOrderCode(ctx, code, baseTime)
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
		})
	}
}

func TestInvoiceRepository_ExpireAndPurge(t *testing.T) {
	db := database.NewTestDB(t)
	repo := NewInvoiceRepository(db)
	ctx := context.Background()
	seedInvoice(t, repo, 3, 1, models.InvoiceStatusPending)
	seedInvoice(t, repo, 3, 2, models.InvoiceStatusCompleted)

	after := baseTime.Add(30*24*time.Hour + time.Second)

	list, total, err := repo.ListByUser(ctx, 3, InvoiceFilter{Limit: 10}, baseTime)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)

	list, total, err = repo.ListByUser(ctx, 3, InvoiceFilter{Limit: 10}, after)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, list)

	_, ok, err := repo.CompletePending(ctx, 1, after, after)
	require.NoError(t, err)
	assert.False(t, ok, "an invoice past its TTL cannot be completed")

	expired, err := repo.ExpireStale(ctx, after)
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	purged, err := repo.PurgeExpired(ctx, after)
	require.NoError(t, err)
	assert.Equal(t, int64(2), purged)

	var remaining int64
	require.NoError(t, db.Model(&models.Invoice{}).Count(&remaining).Error)
	assert.Zero(t, remaining)
}

func TestInvoiceRepository_ListByUserStatusFilter(t *testing.T) {
	db := database.NewTestDB(t)
	repo := NewInvoiceRepository(db)
	ctx := context.Background()
	seedInvoice(t, repo, 5, 11, models.InvoiceStatusPending)
	seedInvoice(t, repo, 5, 12, models.InvoiceStatusCompleted)
	seedInvoice(t, repo, 5, 13, models.InvoiceStatusCompleted)
	seedInvoice(t, repo, 6, 14, models.InvoiceStatusCompleted)

	list, total, err := repo.ListByUser(ctx, 5, InvoiceFilter{Status: models.InvoiceStatusCompleted, Limit: 1}, baseTime)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, list, 1)
	assert.Equal(t, uint(5), list[0].UserID)

	inUse, err := repo.OrderCodeInUse(ctx, 14, baseTime)
	require.NoError(t, err)
	assert.True(t, inUse)

	_, err = repo.GetByOrderCodeForUser(ctx, 5, 14, baseTime)
	assert.True(t, IsNotFound(err))
}

func TestPaymentWebhookRepository_LookupAndPurge(t *testing.T) {
	db := database.NewTestDB(t)
	repo := NewPaymentWebhookRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec := &models.PaymentWebhook{
			Code:        "00",
			Success:     true,
			OrderCode:   55,
			Description: "DEPabc",
			Status:      models.WebhookStatusReceived,
			RawPayload:  "{}",
			ExpiresAt:   baseTime.Add(24 * time.Hour),
		}
		require.NoError(t, repo.Create(ctx, rec))
		if i > 0 {
			require.NoError(t, repo.UpdateStatus(ctx, rec.ID, models.WebhookStatusDuplicate))
		}
	}

	records, err := repo.ListByOrderCode(ctx, 55, baseTime)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	dups, err := repo.ListByDescription(ctx, "DEPabc", models.WebhookStatusDuplicate, 10, baseTime)
	require.NoError(t, err)
	assert.Len(t, dups, 2)

	after := baseTime.Add(24*time.Hour + time.Second)
	records, err = repo.ListByOrderCode(ctx, 55, after)
	require.NoError(t, err)
	assert.Empty(t, records)

	purged, err := repo.PurgeExpired(ctx, after)
	require.NoError(t, err)
	assert.Equal(t, int64(3), purged)
}
