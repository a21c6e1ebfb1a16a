package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	InvoiceStatusPending   = "pending"
	InvoiceStatusCompleted = "completed"
	InvoiceStatusFailed    = "failed"
	InvoiceStatusExpired   = "expired"
)

// PaymentMethodPayOS is the only supported gateway.
const PaymentMethodPayOS = "payos"

// Invoice is a deposit request and its payment lifecycle. Status only moves
// forward from pending to exactly one terminal state.
type Invoice struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UUID          string     `gorm:"type:char(36);uniqueIndex;not null" json:"uuid"`
	OrderCode     int64      `gorm:"not null;uniqueIndex" json:"order_code"`
	UserID        uint       `gorm:"not null;index:idx_invoices_user_status,priority:1" json:"user_id"`
	Amount        int64      `gorm:"not null" json:"amount" validate:"required,gt=0"`
	BonusBps      int64      `gorm:"not null;default:0" json:"bonus_bps"`
	Bonus         int64      `gorm:"not null;default:0" json:"bonus" validate:"gte=0"`
	TotalAmount   int64      `gorm:"not null" json:"total_amount"`
	Status        string     `gorm:"type:varchar(16);not null;default:'pending';index:idx_invoices_user_status,priority:2;index:idx_invoices_status_expires,priority:1" json:"status" validate:"oneof=pending completed failed expired"`
	Description   string     `gorm:"type:varchar(25);not null;index" json:"description" validate:"max=25"`
	PaymentMethod string     `gorm:"type:varchar(20);not null;default:'payos'" json:"payment_method"`
	QRCode        string     `gorm:"type:text" json:"qr_code"`
	CheckoutURL   string     `gorm:"type:varchar(512)" json:"checkout_url"`
	PaymentLinkID string     `gorm:"type:varchar(64)" json:"payment_link_id"`
	FailureReason string     `gorm:"type:varchar(255)" json:"failure_reason,omitempty"`
	PaymentDate   *time.Time `gorm:"type:timestamp;default:null" json:"payment_date,omitempty"`
	ExpiresAt     time.Time  `gorm:"not null;index;index:idx_invoices_status_expires,priority:2" json:"expires_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Invoice) TableName() string {
	return "invoices"
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.UUID == "" {
		i.UUID = uuid.New().String()
	}
	if i.PaymentMethod == "" {
		i.PaymentMethod = PaymentMethodPayOS
	}
	return nil
}

// Validate checks the field constraints of an invoice before it is stored.
func (i *Invoice) Validate() error {
	validate := validator.New()
	return validate.Struct(i)
}

// IsTerminal reports whether the invoice has left the pending state.
func (i *Invoice) IsTerminal() bool {
	return i.Status != InvoiceStatusPending
}
