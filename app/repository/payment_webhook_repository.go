package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/AccShop/app/models"
)

type paymentWebhookRepository struct {
	db *gorm.DB
}

// NewPaymentWebhookRepository creates a new webhook record repository instance
func NewPaymentWebhookRepository(db *gorm.DB) PaymentWebhookRepository {
	return &paymentWebhookRepository{db: db}
}

func (r *paymentWebhookRepository) Create(ctx context.Context, record *models.PaymentWebhook) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *paymentWebhookRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	return r.db.WithContext(ctx).Model(&models.PaymentWebhook{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *paymentWebhookRepository) ListByOrderCode(ctx context.Context, orderCode int64, now time.Time) ([]models.PaymentWebhook, error) {
	var records []models.PaymentWebhook
	err := r.db.WithContext(ctx).
		Where("order_code = ? AND expires_at > ?", orderCode, now).
		Order("id ASC").
		Find(&records).Error
	return records, err
}

// ListByDescription looks records up by the memo tag for manual reconciliation.
// An empty status matches every processing outcome.
func (r *paymentWebhookRepository) ListByDescription(ctx context.Context, description, status string, limit int, now time.Time) ([]models.PaymentWebhook, error) {
	query := r.db.WithContext(ctx).Where("description = ? AND expires_at > ?", description, now)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var records []models.PaymentWebhook
	err := query.Order("id DESC").Limit(limit).Find(&records).Error
	return records, err
}

func (r *paymentWebhookRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.PaymentWebhook{})
	return res.RowsAffected, res.Error
}
