package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/AccShop/app/models"
)

// invoiceRepository implements the InvoiceRepository interface
type invoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository creates a new invoice repository instance
func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

// OrderCodeInUse reports whether a live invoice already carries the order code.
func (r *invoiceRepository) OrderCodeInUse(ctx context.Context, orderCode int64, now time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("order_code = ? AND expires_at > ?", orderCode, now).
		Count(&count).Error
	return count > 0, err
}

func (r *invoiceRepository) GetByOrderCode(ctx context.Context, orderCode int64, now time.Time) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Where("order_code = ? AND expires_at > ?", orderCode, now).
		First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) GetByOrderCodeForUser(ctx context.Context, userID uint, orderCode int64, now time.Time) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Where("order_code = ? AND user_id = ? AND expires_at > ?", orderCode, userID, now).
		First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// ListByUser returns one page of a user's live invoices, newest first, plus the total count.
func (r *invoiceRepository) ListByUser(ctx context.Context, userID uint, filter InvoiceFilter, now time.Time) ([]models.Invoice, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("user_id = ? AND expires_at > ?", userID, now)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var invoices []models.Invoice
	err := query.Order("created_at DESC").Order("id DESC").
		Offset(filter.Offset).Limit(filter.Limit).
		Find(&invoices).Error
	return invoices, total, err
}

func (r *invoiceRepository) UpdatePaymentLink(ctx context.Context, id uint, qrCode, checkoutURL, paymentLinkID string) error {
	return r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"qr_code":         qrCode,
			"checkout_url":    checkoutURL,
			"payment_link_id": paymentLinkID,
		}).Error
}

// CompletePending moves a live pending invoice to completed and credits the
// owner's balance in one transaction. The boolean is false when another caller
// already won the transition or the invoice is not pending.
func (r *invoiceRepository) CompletePending(ctx context.Context, orderCode int64, paidAt, now time.Time) (*models.Invoice, bool, error) {
	var completed *models.Invoice
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Invoice{}).
			Where("order_code = ? AND status = ? AND expires_at > ?", orderCode, models.InvoiceStatusPending, now).
			Updates(map[string]interface{}{
				"status":       models.InvoiceStatusCompleted,
				"payment_date": paidAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		var invoice models.Invoice
		if err := tx.Where("order_code = ?", orderCode).First(&invoice).Error; err != nil {
			return err
		}

		credit := models.UserBalance{UserID: invoice.UserID, Balance: invoice.TotalAmount}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"balance": gorm.Expr("balance + ?", invoice.TotalAmount)}),
		}).Create(&credit).Error; err != nil {
			return err
		}

		completed = &invoice
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return completed, completed != nil, nil
}

// FailPending moves a live pending invoice to failed.
func (r *invoiceRepository) FailPending(ctx context.Context, orderCode int64, reason string, now time.Time) (bool, error) {
	if len(reason) > 255 {
		reason = reason[:255]
	}
	res := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("order_code = ? AND status = ? AND expires_at > ?", orderCode, models.InvoiceStatusPending, now).
		Updates(map[string]interface{}{
			"status":         models.InvoiceStatusFailed,
			"failure_reason": reason,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ExpireStale demotes pending invoices whose expires_at has passed.
func (r *invoiceRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("status = ? AND expires_at <= ?", models.InvoiceStatusPending, now).
		Update("status", models.InvoiceStatusExpired)
	return res.RowsAffected, res.Error
}

// PurgeExpired hard-deletes terminal invoices whose retention window has elapsed.
func (r *invoiceRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status <> ? AND expires_at <= ?", models.InvoiceStatusPending, now).
		Delete(&models.Invoice{})
	return res.RowsAffected, res.Error
}

// IsNotFound reports whether err is a missing-row error from gorm.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
