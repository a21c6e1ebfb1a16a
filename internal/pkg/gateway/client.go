package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ManuelReschke/AccShop/internal/pkg/env"
)

const defaultAPIBaseURL = "https://api-merchant.payos.vn"

// CodeSuccess is the gateway's "00" result code.
const CodeSuccess = "00"

// transactionTimeLayout is how the gateway formats transactionDateTime (UTC+7).
const transactionTimeLayout = "2006-01-02 15:04:05"

var gatewayZone = time.FixedZone("ICT", 7*60*60)

// Client talks to the PayOS merchant API.
type Client struct {
	ClientID    string
	APIKey      string
	ChecksumKey string
	APIBaseURL  string

	HTTPClient *http.Client
}

// PaymentRequest is what the gateway needs to issue a QR payment link.
type PaymentRequest struct {
	OrderCode   int64
	Amount      int64
	Description string
	CancelURL   string
	ReturnURL   string
}

// PaymentLink is the part of the gateway's answer we keep on the invoice.
type PaymentLink struct {
	PaymentLinkID string `json:"paymentLinkId"`
	CheckoutURL   string `json:"checkoutUrl"`
	QRCode        string `json:"qrCode"`
	Status        string `json:"status"`
	OrderCode     int64  `json:"orderCode"`
	Amount        int64  `json:"amount"`
}

type createLinkBody struct {
	OrderCode   int64  `json:"orderCode"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	CancelURL   string `json:"cancelUrl"`
	ReturnURL   string `json:"returnUrl"`
	Signature   string `json:"signature"`
}

type apiResponse struct {
	Code      string          `json:"code"`
	Desc      string          `json:"desc"`
	Data      json.RawMessage `json:"data"`
	Signature string          `json:"signature"`
}

func NewClientFromEnv() *Client {
	return &Client{
		ClientID:    strings.TrimSpace(env.GetEnv("PAYOS_CLIENT_ID", "")),
		APIKey:      strings.TrimSpace(env.GetEnv("PAYOS_API_KEY", "")),
		ChecksumKey: strings.TrimSpace(env.GetEnv("PAYOS_CHECKSUM_KEY", "")),
		APIBaseURL:  strings.TrimSpace(env.GetEnv("PAYOS_API_BASE", defaultAPIBaseURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreatePaymentLink requests a checkout URL and QR payload for one order code.
func (c *Client) CreatePaymentLink(ctx context.Context, req PaymentRequest) (*PaymentLink, error) {
	if c.ClientID == "" || c.APIKey == "" || c.ChecksumKey == "" {
		return nil, errors.New("PAYOS_CLIENT_ID/PAYOS_API_KEY/PAYOS_CHECKSUM_KEY are not configured")
	}
	if req.OrderCode <= 0 || req.Amount <= 0 {
		return nil, errors.New("order code and amount are required")
	}

	body := createLinkBody{
		OrderCode:   req.OrderCode,
		Amount:      req.Amount,
		Description: req.Description,
		CancelURL:   req.CancelURL,
		ReturnURL:   req.ReturnURL,
		Signature: Sign(map[string]string{
			"amount":      strconv.FormatInt(req.Amount, 10),
			"cancelUrl":   req.CancelURL,
			"description": req.Description,
			"orderCode":   strconv.FormatInt(req.OrderCode, 10),
			"returnUrl":   req.ReturnURL,
		}, c.ChecksumKey),
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(c.APIBaseURL, "/") + "/v2/payment-requests"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("x-client-id", c.ClientID)
	httpReq.Header.Set("x-api-key", c.APIKey)

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("payment link request failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	var out apiResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decode payment link response: %w", err)
	}
	if out.Code != CodeSuccess {
		return nil, fmt.Errorf("payment link rejected: code=%s desc=%s", out.Code, out.Desc)
	}
	if out.Signature != "" && !VerifyData(out.Data, out.Signature, c.ChecksumKey) {
		return nil, errors.New("payment link response signature mismatch")
	}

	var link PaymentLink
	if err := json.Unmarshal(out.Data, &link); err != nil {
		return nil, fmt.Errorf("decode payment link data: %w", err)
	}
	if link.CheckoutURL == "" && link.QRCode == "" {
		return nil, errors.New("payment link response carries neither checkoutUrl nor qrCode")
	}
	return &link, nil
}

// VerifyWebhook checks a webhook's data object against its signature.
func (c *Client) VerifyWebhook(data []byte, signature string) bool {
	return VerifyData(data, signature, c.ChecksumKey)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// ParseTransactionTime reads the gateway's local transaction timestamp.
func ParseTransactionTime(s string) (time.Time, bool) {
	t, err := time.ParseInLocation(transactionTimeLayout, strings.TrimSpace(s), gatewayZone)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
