package deposit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/AccShop/app/models"
	"github.com/ManuelReschke/AccShop/app/repository"
	"github.com/ManuelReschke/AccShop/internal/pkg/gateway"
)

// Gateway creates payment links and authenticates webhooks.
type Gateway interface {
	CreatePaymentLink(ctx context.Context, req gateway.PaymentRequest) (*gateway.PaymentLink, error)
	VerifyWebhook(data []byte, signature string) bool
}

// Notifier is told about completed order codes after they are durable.
type Notifier interface {
	Publish(orderCode int64) int
}

// Transition reports what a mark operation did.
type Transition int

const (
	TransitionApplied Transition = iota + 1
	TransitionAlreadyTerminal
	TransitionNotFound
)

func (t Transition) String() string {
	switch t {
	case TransitionApplied:
		return "applied"
	case TransitionAlreadyTerminal:
		return "already_terminal"
	case TransitionNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Deposit is a created invoice together with its gateway link.
type Deposit struct {
	Invoice   *models.Invoice
	Breakdown Breakdown
}

// InvoicePage is one page of a user's invoice history.
type InvoicePage struct {
	Items      []models.Invoice
	Page       int
	PageSize   int
	Total      int64
	TotalPages int
}

// Service runs the invoice state machine.
type Service struct {
	invoices repository.InvoiceRepository
	webhooks repository.PaymentWebhookRepository
	balances repository.BalanceRepository

	gateway  Gateway
	notifier Notifier
	status   StatusCache
	codes    *Correlator
	cfg      Config
	now      func() time.Time
}

type Option func(*Service)

func WithGateway(g Gateway) Option { return func(s *Service) { s.gateway = g } }

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithStatusCache(c StatusCache) Option { return func(s *Service) { s.status = c } }

// WithClock replaces the wall clock, mainly for expiry tests.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(repos *repository.Repositories, cfg Config, opts ...Option) *Service {
	s := &Service{
		invoices: repos.Invoice,
		webhooks: repos.PaymentWebhook,
		balances: repos.Balance,
		status:   noopStatusCache{},
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.codes = NewCorrelator(func(ctx context.Context, code int64) (bool, error) {
		return s.invoices.OrderCodeInUse(ctx, code, s.now())
	})
	return s
}

// NewServiceFromDB creates a deposit service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, cfg Config, opts ...Option) *Service {
	return NewService(repository.NewRepositories(db), cfg, opts...)
}

// Config returns the active configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// CreateInvoice stores a pending invoice with a fresh order code.
func (s *Service) CreateInvoice(ctx context.Context, userID uint, amount int64) (*models.Invoice, error) {
	if userID == 0 {
		return nil, errors.New("user_id is required")
	}
	if amount < s.cfg.MinAmount {
		return nil, fmt.Errorf("%w: %d < %d", ErrAmountBelowMinimum, amount, s.cfg.MinAmount)
	}
	if s.cfg.MaxAmount > 0 && amount > s.cfg.MaxAmount {
		return nil, fmt.Errorf("%w: %d > %d", ErrAmountAboveMaximum, amount, s.cfg.MaxAmount)
	}

	breakdown := Compute(amount)
	for attempt := 0; attempt < maxOrderCodeAttempts; attempt++ {
		corr, err := s.codes.Next(ctx)
		if err != nil {
			return nil, err
		}

		now := s.now()
		invoice := &models.Invoice{
			OrderCode:     corr.OrderCode,
			UserID:        userID,
			Amount:        breakdown.Amount,
			BonusBps:      breakdown.BonusBps,
			Bonus:         breakdown.Bonus,
			TotalAmount:   breakdown.Total,
			Status:        models.InvoiceStatusPending,
			Description:   corr.Description,
			PaymentMethod: models.PaymentMethodPayOS,
			ExpiresAt:     now.Add(s.cfg.InvoiceTTL),
		}
		if err := invoice.Validate(); err != nil {
			return nil, err
		}

		err = s.invoices.Create(ctx, invoice)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost a race for the order code between the check and the insert.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create invoice: %w", err)
		}
		return invoice, nil
	}
	return nil, ErrOrderCodeExhausted
}

// CreateDeposit creates the invoice and asks the gateway for its QR link. A
// gateway failure leaves the invoice failed with reason gateway_error.
func (s *Service) CreateDeposit(ctx context.Context, userID uint, amount int64) (*Deposit, error) {
	if s.gateway == nil {
		return nil, ErrGatewayMissing
	}
	invoice, err := s.CreateInvoice(ctx, userID, amount)
	if err != nil {
		return nil, err
	}

	link, err := s.gateway.CreatePaymentLink(ctx, gateway.PaymentRequest{
		OrderCode:   invoice.OrderCode,
		Amount:      invoice.Amount,
		Description: invoice.Description,
		CancelURL:   s.cfg.CancelURL,
		ReturnURL:   s.cfg.ReturnURL,
	})
	if err != nil {
		log.Errorf("[Deposit] payment link for order %d failed: %v", invoice.OrderCode, err)
		if _, markErr := s.MarkFailed(ctx, invoice.OrderCode, "gateway_error"); markErr != nil {
			log.Errorf("[Deposit] could not mark order %d failed: %v", invoice.OrderCode, markErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	if err := s.invoices.UpdatePaymentLink(ctx, invoice.ID, link.QRCode, link.CheckoutURL, link.PaymentLinkID); err != nil {
		return nil, fmt.Errorf("store payment link: %w", err)
	}
	invoice.QRCode = link.QRCode
	invoice.CheckoutURL = link.CheckoutURL
	invoice.PaymentLinkID = link.PaymentLinkID

	log.Infof("[Deposit] user %d created order %d amount=%d bonus=%d", userID, invoice.OrderCode, invoice.Amount, invoice.Bonus)
	return &Deposit{Invoice: invoice, Breakdown: ComputeFromBps(invoice.Amount, invoice.BonusBps)}, nil
}

// MarkCompleted moves a pending invoice to completed, credits the balance and
// then notifies subscribers. Repeated calls report TransitionAlreadyTerminal.
func (s *Service) MarkCompleted(ctx context.Context, orderCode int64, paymentDate time.Time) (Transition, error) {
	now := s.now()
	invoice, ok, err := s.invoices.CompletePending(ctx, orderCode, paymentDate.UTC(), now)
	if err != nil {
		return 0, fmt.Errorf("complete invoice %d: %w", orderCode, err)
	}
	if !ok {
		return s.terminalOrMissing(ctx, orderCode, now)
	}

	// Transaction committed: the status is durable before anyone hears of it.
	if err := s.status.SetDone(ctx, invoice.UserID, orderCode); err != nil {
		log.Warnf("[Deposit] caching done status for order %d failed: %v", orderCode, err)
	}
	if s.notifier != nil {
		s.notifier.Publish(orderCode)
	}
	log.Infof("[Deposit] order %d completed, credited %d to user %d", orderCode, invoice.TotalAmount, invoice.UserID)
	return TransitionApplied, nil
}

// MarkFailed moves a pending invoice to failed.
func (s *Service) MarkFailed(ctx context.Context, orderCode int64, reason string) (Transition, error) {
	now := s.now()
	ok, err := s.invoices.FailPending(ctx, orderCode, reason, now)
	if err != nil {
		return 0, fmt.Errorf("fail invoice %d: %w", orderCode, err)
	}
	if !ok {
		return s.terminalOrMissing(ctx, orderCode, now)
	}
	log.Infof("[Deposit] order %d failed: %s", orderCode, reason)
	return TransitionApplied, nil
}

func (s *Service) terminalOrMissing(ctx context.Context, orderCode int64, now time.Time) (Transition, error) {
	_, err := s.invoices.GetByOrderCode(ctx, orderCode, now)
	if repository.IsNotFound(err) {
		return TransitionNotFound, nil
	}
	if err != nil {
		return 0, err
	}
	return TransitionAlreadyTerminal, nil
}

// ExpireStale demotes overdue pending invoices.
func (s *Service) ExpireStale(ctx context.Context) (int64, error) {
	return s.invoices.ExpireStale(ctx, s.now())
}

// PurgeExpired removes invoices and webhook records past their retention.
func (s *Service) PurgeExpired(ctx context.Context) (invoices int64, webhooks int64, err error) {
	now := s.now()
	invoices, err = s.invoices.PurgeExpired(ctx, now)
	if err != nil {
		return 0, 0, fmt.Errorf("purge invoices: %w", err)
	}
	webhooks, err = s.webhooks.PurgeExpired(ctx, now)
	if err != nil {
		return invoices, 0, fmt.Errorf("purge webhooks: %w", err)
	}
	return invoices, webhooks, nil
}

// ListByUser returns one page of live invoices, optionally filtered by status.
func (s *Service) ListByUser(ctx context.Context, userID uint, page, pageSize int, status string) (*InvoicePage, error) {
	if status != "" && !validStatus(status) {
		return nil, ErrInvalidStatus
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	items, total, err := s.invoices.ListByUser(ctx, userID, repository.InvoiceFilter{
		Status: status,
		Offset: (page - 1) * pageSize,
		Limit:  pageSize,
	}, s.now())
	if err != nil {
		return nil, err
	}
	return &InvoicePage{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
	}, nil
}

// GetInvoice returns a live invoice owned by the user.
func (s *Service) GetInvoice(ctx context.Context, userID uint, orderCode int64) (*models.Invoice, error) {
	invoice, err := s.invoices.GetByOrderCodeForUser(ctx, userID, orderCode, s.now())
	if repository.IsNotFound(err) {
		return nil, ErrInvoiceNotFound
	}
	return invoice, err
}

// PollStatus answers "done", "pending", "failed" or "expired" for a user's
// order code. No state is changed.
func (s *Service) PollStatus(ctx context.Context, userID uint, orderCode int64) (string, error) {
	if done, err := s.status.IsDone(ctx, userID, orderCode); err == nil && done {
		return StatusDone, nil
	}
	invoice, err := s.GetInvoice(ctx, userID, orderCode)
	if err != nil {
		return "", err
	}
	return PublicStatus(invoice.Status), nil
}

// Balance returns the user's credited balance.
func (s *Service) Balance(ctx context.Context, userID uint) (int64, error) {
	return s.balances.GetByUserID(ctx, userID)
}

// WebhookRecords returns stored notifications for reconciliation, by order
// code when given, otherwise by description tag.
func (s *Service) WebhookRecords(ctx context.Context, orderCode int64, description, status string) ([]models.PaymentWebhook, error) {
	now := s.now()
	if orderCode > 0 {
		return s.webhooks.ListByOrderCode(ctx, orderCode, now)
	}
	if description == "" {
		return nil, errors.New("order code or description is required")
	}
	return s.webhooks.ListByDescription(ctx, description, status, MaxPageSize, now)
}

const (
	StatusDone    = "done"
	StatusPending = models.InvoiceStatusPending
)

// PublicStatus maps an invoice status to the poll endpoint vocabulary.
func PublicStatus(invoiceStatus string) string {
	if invoiceStatus == models.InvoiceStatusCompleted {
		return StatusDone
	}
	return invoiceStatus
}

func validStatus(status string) bool {
	switch status {
	case models.InvoiceStatusPending, models.InvoiceStatusCompleted, models.InvoiceStatusFailed, models.InvoiceStatusExpired:
		return true
	}
	return false
}
