package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/AccShop/app/models"
	"gorm.io/gorm"
)

// InvoiceFilter narrows a user's invoice listing.
type InvoiceFilter struct {
	Status string
	Offset int
	Limit  int
}

// InvoiceRepository defines the interface for invoice-related database operations.
// Every read takes the current time and hides rows past their expires_at.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *models.Invoice) error
	OrderCodeInUse(ctx context.Context, orderCode int64, now time.Time) (bool, error)
	GetByOrderCode(ctx context.Context, orderCode int64, now time.Time) (*models.Invoice, error)
	GetByOrderCodeForUser(ctx context.Context, userID uint, orderCode int64, now time.Time) (*models.Invoice, error)
	ListByUser(ctx context.Context, userID uint, filter InvoiceFilter, now time.Time) ([]models.Invoice, int64, error)
	UpdatePaymentLink(ctx context.Context, id uint, qrCode, checkoutURL, paymentLinkID string) error
	CompletePending(ctx context.Context, orderCode int64, paidAt, now time.Time) (*models.Invoice, bool, error)
	FailPending(ctx context.Context, orderCode int64, reason string, now time.Time) (bool, error)
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// PaymentWebhookRepository defines the interface for raw gateway notifications.
type PaymentWebhookRepository interface {
	Create(ctx context.Context, record *models.PaymentWebhook) error
	UpdateStatus(ctx context.Context, id uint, status string) error
	ListByOrderCode(ctx context.Context, orderCode int64, now time.Time) ([]models.PaymentWebhook, error)
	ListByDescription(ctx context.Context, description, status string, limit int, now time.Time) ([]models.PaymentWebhook, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// BalanceRepository reads credited user balances.
type BalanceRepository interface {
	GetByUserID(ctx context.Context, userID uint) (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	Invoice        InvoiceRepository
	PaymentWebhook PaymentWebhookRepository
	Balance        BalanceRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Invoice:        NewInvoiceRepository(db),
		PaymentWebhook: NewPaymentWebhookRepository(db),
		Balance:        NewBalanceRepository(db),
	}
}
