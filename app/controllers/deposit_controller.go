package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/spf13/cast"

	"github.com/ManuelReschke/AccShop/app/models"
	"github.com/ManuelReschke/AccShop/internal/pkg/deposit"
	"github.com/ManuelReschke/AccShop/internal/pkg/notify"
	"github.com/ManuelReschke/AccShop/internal/pkg/usercontext"
)

// DefaultHeartbeat is the interval of SSE keep-alive comments.
const DefaultHeartbeat = 15 * time.Second

// DepositController serves the deposit API for logged-in users.
type DepositController struct {
	service   *deposit.Service
	hub       *notify.Broadcaster
	validate  *validator.Validate
	heartbeat time.Duration
}

// NewDepositController creates a deposit controller on top of the service and
// the process broadcaster.
func NewDepositController(service *deposit.Service, hub *notify.Broadcaster) *DepositController {
	return &DepositController{
		service:   service,
		hub:       hub,
		validate:  validator.New(),
		heartbeat: DefaultHeartbeat,
	}
}

// SetHeartbeat changes the SSE keep-alive interval.
func (dc *DepositController) SetHeartbeat(d time.Duration) {
	if d > 0 {
		dc.heartbeat = d
	}
}

// CreateDepositRequest is the body of POST /api/v1/deposits.
type CreateDepositRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0,lte=1000000000000"`
}

type invoiceView struct {
	OrderCode     int64       `json:"orderCode"`
	Status        string      `json:"status"`
	Amount        int64       `json:"amount"`
	BonusPercent  json.Number `json:"bonusPercent"`
	Bonus         int64       `json:"bonus"`
	TotalAmount   int64       `json:"totalAmount"`
	Description   string      `json:"description"`
	QRCode        string      `json:"qrCode,omitempty"`
	CheckoutURL   string      `json:"checkoutUrl,omitempty"`
	FailureReason string      `json:"failureReason,omitempty"`
	PaymentDate   interface{} `json:"paymentDate"`
	ExpiresAt     string      `json:"expiresAt"`
	CreatedAt     string      `json:"createdAt"`
}

func toInvoiceView(inv *models.Invoice) invoiceView {
	breakdown := deposit.ComputeFromBps(inv.Amount, inv.BonusBps)
	return invoiceView{
		OrderCode:     inv.OrderCode,
		Status:        inv.Status,
		Amount:        breakdown.Amount,
		BonusPercent:  bpsToPercent(inv.BonusBps),
		Bonus:         breakdown.Bonus,
		TotalAmount:   breakdown.Total,
		Description:   inv.Description,
		QRCode:        inv.QRCode,
		CheckoutURL:   inv.CheckoutURL,
		FailureReason: inv.FailureReason,
		PaymentDate:   formatTimePtr(inv.PaymentDate),
		ExpiresAt:     formatTime(inv.ExpiresAt),
		CreatedAt:     formatTime(inv.CreatedAt),
	}
}

func bpsToPercent(bps int64) json.Number {
	return json.Number(deposit.PercentFromBps(bps).String())
}

// HandleCreateDeposit creates an invoice and its payment QR.
func (dc *DepositController) HandleCreateDeposit(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)

	var req CreateDepositRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Body must be JSON with an amount")
	}
	if err := dc.validate.Struct(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_amount", "Amount must be a positive integer")
	}

	dep, err := dc.service.CreateDeposit(c.UserContext(), userID, req.Amount)
	switch {
	case errors.Is(err, deposit.ErrAmountBelowMinimum), errors.Is(err, deposit.ErrAmountAboveMaximum):
		return jsonError(c, fiber.StatusBadRequest, "invalid_amount", err.Error())
	case errors.Is(err, deposit.ErrGatewayMissing):
		return jsonError(c, fiber.StatusServiceUnavailable, "gateway_unavailable", "Payments are not configured")
	case errors.Is(err, deposit.ErrGateway):
		return jsonError(c, fiber.StatusBadGateway, "gateway_error", "Payment provider did not create a payment link")
	case err != nil:
		log.Errorf("[Deposit] create for user %d failed: %v", userID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Could not create deposit")
	}

	return c.Status(fiber.StatusCreated).JSON(toInvoiceView(dep.Invoice))
}

// HandleListDeposits returns the caller's invoices, newest first.
func (dc *DepositController) HandleListDeposits(c *fiber.Ctx) error {
	page, err := dc.service.ListByUser(c.UserContext(), usercontext.GetUserID(c),
		cast.ToInt(c.Query("page", "1")), cast.ToInt(c.Query("pageSize")), c.Query("status"))
	if errors.Is(err, deposit.ErrInvalidStatus) {
		return jsonError(c, fiber.StatusBadRequest, "invalid_status", "Unknown status filter")
	}
	if err != nil {
		log.Errorf("[Deposit] list failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Could not load deposits")
	}

	items := make([]invoiceView, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, toInvoiceView(&page.Items[i]))
	}
	return c.JSON(fiber.Map{
		"items": items,
		"pagination": fiber.Map{
			"page":       page.Page,
			"pageSize":   page.PageSize,
			"total":      page.Total,
			"totalPages": page.TotalPages,
		},
	})
}

// HandleGetDeposit returns one invoice of the caller.
func (dc *DepositController) HandleGetDeposit(c *fiber.Ctx) error {
	orderCode, ok := parseOrderCode(c)
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "invalid_order_code", "Order code must be a positive integer")
	}
	inv, err := dc.service.GetInvoice(c.UserContext(), usercontext.GetUserID(c), orderCode)
	if errors.Is(err, deposit.ErrInvoiceNotFound) {
		return jsonError(c, fiber.StatusNotFound, "not_found", "Deposit not found")
	}
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Could not load deposit")
	}
	return c.JSON(toInvoiceView(inv))
}

// HandleDepositStatus is the polling endpoint.
func (dc *DepositController) HandleDepositStatus(c *fiber.Ctx) error {
	orderCode, ok := parseOrderCode(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid_order_code"})
	}
	status, err := dc.service.PollStatus(c.UserContext(), usercontext.GetUserID(c), orderCode)
	if errors.Is(err, deposit.ErrInvoiceNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "not_found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "internal_server_error"})
	}
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.JSON(fiber.Map{"success": true, "data": status})
}

// HandleBonusPreview shows what a deposit of ?amount= would credit.
func (dc *DepositController) HandleBonusPreview(c *fiber.Ctx) error {
	amount, err := cast.ToInt64E(c.Query("amount"))
	if err != nil || amount <= 0 {
		return jsonError(c, fiber.StatusBadRequest, "invalid_amount", "Amount must be a positive integer")
	}
	if limit := dc.service.Config().MaxAmount; limit > 0 && amount > limit {
		return jsonError(c, fiber.StatusBadRequest, "invalid_amount", fmt.Sprintf("Amount must not exceed %d", limit))
	}
	b := deposit.Compute(amount)
	return c.JSON(fiber.Map{
		"amount":       b.Amount,
		"bonusPercent": bpsToPercent(b.BonusBps),
		"bonus":        b.Bonus,
		"totalAmount":  b.Total,
		"minAmount":    dc.service.Config().MinAmount,
		"maxAmount":    dc.service.Config().MaxAmount,
	})
}

// HandleBalance returns the caller's credited balance.
func (dc *DepositController) HandleBalance(c *fiber.Ctx) error {
	balance, err := dc.service.Balance(c.UserContext(), usercontext.GetUserID(c))
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Could not load balance")
	}
	return c.JSON(fiber.Map{"balance": balance})
}
