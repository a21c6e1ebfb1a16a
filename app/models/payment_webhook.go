package models

import "time"

// Processing outcomes recorded on a PaymentWebhook row.
const (
	WebhookStatusReceived       = "received"
	WebhookStatusCompleted      = "completed"
	WebhookStatusFailed         = "failed"
	WebhookStatusDuplicate      = "duplicate"
	WebhookStatusUnmatched      = "unmatched"
	WebhookStatusAmountMismatch = "amount_mismatch"
	WebhookStatusQuarantined    = "quarantined"
)

// PaymentWebhook stores one accepted gateway notification. Gateway retries
// produce one row each; only the first can move the invoice.
type PaymentWebhook struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	Code                 string    `gorm:"type:varchar(8);not null" json:"code"`
	Desc                 string    `gorm:"type:varchar(255)" json:"desc"`
	Success              bool      `gorm:"default:false" json:"success"`
	OrderCode            int64     `gorm:"index:idx_payment_webhooks_order_code" json:"order_code"`
	Amount               int64     `json:"amount"`
	Description          string    `gorm:"type:varchar(191);index:idx_payment_webhooks_description_status,priority:1" json:"description"`
	AccountNumber        string    `gorm:"type:varchar(64)" json:"account_number"`
	Reference            string    `gorm:"type:varchar(128)" json:"reference"`
	TransactionDateTime  string    `gorm:"type:varchar(32)" json:"transaction_date_time"`
	Currency             string    `gorm:"type:varchar(8)" json:"currency"`
	PaymentLinkID        string    `gorm:"type:varchar(64)" json:"payment_link_id"`
	CounterAccountName   string    `gorm:"type:varchar(191)" json:"counter_account_name"`
	CounterAccountNumber string    `gorm:"type:varchar(64)" json:"counter_account_number"`
	Status               string    `gorm:"type:varchar(20);not null;default:'received';index:idx_payment_webhooks_description_status,priority:2" json:"status"`
	RawPayload           string    `gorm:"type:longtext;not null" json:"-"`
	Signature            string    `gorm:"type:varchar(128)" json:"-"`
	ExpiresAt            time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PaymentWebhook) TableName() string {
	return "payment_webhooks"
}
