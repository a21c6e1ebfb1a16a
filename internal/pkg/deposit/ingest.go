package deposit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/AccShop/app/models"
	"github.com/ManuelReschke/AccShop/app/repository"
	"github.com/ManuelReschke/AccShop/internal/pkg/gateway"
)

// Reasons reported back to the gateway.
const (
	ReasonCompleted         = "completed"
	ReasonPaymentFailed     = "payment_failed"
	ReasonAlreadyTerminal   = "already_terminal"
	ReasonNoMatchingInvoice = "no_matching_invoice"
	ReasonAmountMismatch    = "amount_mismatch"
	ReasonQuarantined       = "quarantined"
	ReasonInvalidSignature  = "invalid_signature"
	ReasonInvalidPayload    = "invalid_payload"
)

// IngestResult is the acknowledgement for one webhook delivery.
type IngestResult struct {
	Accepted  bool   `json:"accepted"`
	Reason    string `json:"reason,omitempty"`
	Duplicate bool   `json:"duplicate"`
	OrderCode int64  `json:"orderCode,omitempty"`
}

type webhookEnvelope struct {
	Code      string          `json:"code"`
	Desc      string          `json:"desc"`
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Signature string          `json:"signature"`
}

func (e webhookEnvelope) paid() bool {
	return e.Code == gateway.CodeSuccess && e.Success
}

// WebhookData is the strict form of the signed data object.
type WebhookData struct {
	OrderCode            int64  `json:"orderCode" validate:"required,gt=0"`
	Amount               int64  `json:"amount" validate:"gte=0"`
	Description          string `json:"description" validate:"max=191"`
	AccountNumber        string `json:"accountNumber" validate:"max=64"`
	Reference            string `json:"reference" validate:"max=128"`
	TransactionDateTime  string `json:"transactionDateTime" validate:"max=32"`
	Currency             string `json:"currency" validate:"max=8"`
	PaymentLinkID        string `json:"paymentLinkId" validate:"max=64"`
	Code                 string `json:"code"`
	Desc                 string `json:"desc"`
	CounterAccountName   string `json:"counterAccountName" validate:"max=191"`
	CounterAccountNumber string `json:"counterAccountNumber" validate:"max=64"`
}

var webhookValidator = validator.New()

func decodeWebhookData(raw json.RawMessage) (*WebhookData, error) {
	var data WebhookData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	if err := webhookValidator.Struct(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Ingest verifies, stores and applies one gateway notification. Only an
// invalid payload or signature is rejected; every other outcome is accepted
// so the gateway stops retrying. A returned error without a sentinel means
// storage failed and the gateway should redeliver.
func (s *Service) Ingest(ctx context.Context, raw []byte, signatureHeader string) (IngestResult, error) {
	if s.gateway == nil {
		return IngestResult{}, ErrGatewayMissing
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return IngestResult{Reason: ReasonInvalidPayload}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return IngestResult{Reason: ReasonInvalidPayload}, fmt.Errorf("%w: data object missing", ErrInvalidPayload)
	}

	signature := envelope.Signature
	if signature == "" {
		signature = signatureHeader
	}
	if !s.gateway.VerifyWebhook(envelope.Data, signature) {
		log.Warnf("[PaymentWebhook] rejected delivery with invalid signature (code=%s, %d bytes)", envelope.Code, len(raw))
		return IngestResult{Reason: ReasonInvalidSignature}, ErrInvalidSignature
	}

	data, decodeErr := decodeWebhookData(envelope.Data)
	record := &models.PaymentWebhook{
		Code:       clip(envelope.Code, 8),
		Desc:       clip(envelope.Desc, 255),
		Success:    envelope.Success,
		Status:     models.WebhookStatusReceived,
		RawPayload: string(raw),
		Signature:  clip(signature, 128),
		ExpiresAt:  s.now().Add(s.cfg.WebhookTTL),
	}
	if decodeErr != nil {
		record.Status = models.WebhookStatusQuarantined
	} else {
		record.OrderCode = data.OrderCode
		record.Amount = data.Amount
		record.Description = data.Description
		record.AccountNumber = data.AccountNumber
		record.Reference = data.Reference
		record.TransactionDateTime = data.TransactionDateTime
		record.Currency = data.Currency
		record.PaymentLinkID = data.PaymentLinkID
		record.CounterAccountName = data.CounterAccountName
		record.CounterAccountNumber = data.CounterAccountNumber
	}

	if err := s.webhooks.Create(ctx, record); err != nil {
		return IngestResult{}, fmt.Errorf("persist webhook: %w", err)
	}

	if decodeErr != nil {
		log.Warnf("[PaymentWebhook] quarantined signed delivery %d: %v", record.ID, decodeErr)
		return IngestResult{Accepted: true, Reason: ReasonQuarantined}, nil
	}

	result, label, err := s.apply(ctx, envelope, data)
	if err != nil {
		return IngestResult{}, err
	}
	if err := s.webhooks.UpdateStatus(ctx, record.ID, label); err != nil {
		log.Errorf("[PaymentWebhook] could not label record %d as %s: %v", record.ID, label, err)
	}
	return result, nil
}

// apply matches the notification to its invoice by order code and performs
// at most one transition. It returns the result and the record label.
func (s *Service) apply(ctx context.Context, envelope webhookEnvelope, data *WebhookData) (IngestResult, string, error) {
	res := IngestResult{Accepted: true, OrderCode: data.OrderCode}

	invoice, err := s.invoices.GetByOrderCode(ctx, data.OrderCode, s.now())
	if repository.IsNotFound(err) {
		log.Infof("[PaymentWebhook] no invoice for order %d (description %q)", data.OrderCode, data.Description)
		res.Reason = ReasonNoMatchingInvoice
		return res, models.WebhookStatusUnmatched, nil
	}
	if err != nil {
		return IngestResult{}, "", fmt.Errorf("lookup invoice %d: %w", data.OrderCode, err)
	}
	if invoice.IsTerminal() {
		res.Reason = ReasonAlreadyTerminal
		res.Duplicate = true
		return res, models.WebhookStatusDuplicate, nil
	}

	var transition Transition
	label := models.WebhookStatusCompleted
	switch {
	case !envelope.paid():
		reason := envelope.Desc
		if reason == "" {
			reason = "gateway code " + envelope.Code
		}
		transition, err = s.MarkFailed(ctx, data.OrderCode, reason)
		res.Reason = ReasonPaymentFailed
		label = models.WebhookStatusFailed
	case data.Amount < invoice.Amount:
		log.Warnf("[PaymentWebhook] order %d paid %d of %d, leaving it pending", data.OrderCode, data.Amount, invoice.Amount)
		res.Reason = ReasonAmountMismatch
		return res, models.WebhookStatusAmountMismatch, nil
	default:
		paidAt, ok := gateway.ParseTransactionTime(data.TransactionDateTime)
		if !ok {
			paidAt = s.now()
		}
		transition, err = s.MarkCompleted(ctx, data.OrderCode, paidAt)
		res.Reason = ReasonCompleted
	}
	if err != nil {
		return IngestResult{}, "", err
	}

	switch transition {
	case TransitionAlreadyTerminal:
		res.Reason = ReasonAlreadyTerminal
		res.Duplicate = true
		label = models.WebhookStatusDuplicate
	case TransitionNotFound:
		res.Reason = ReasonNoMatchingInvoice
		label = models.WebhookStatusUnmatched
	}
	return res, label, nil
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
