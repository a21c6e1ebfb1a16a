package deposit

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/AccShop/internal/pkg/database"
	"github.com/ManuelReschke/AccShop/internal/pkg/gateway"
)

const testChecksumKey = "test-checksum-key"

var t0 = time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []gateway.PaymentRequest
	err      error
}

func (g *fakeGateway) CreatePaymentLink(ctx context.Context, req gateway.PaymentRequest) (*gateway.PaymentLink, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return &gateway.PaymentLink{
		PaymentLinkID: "pl-test",
		CheckoutURL:   "https://pay.example/web/pl-test",
		QRCode:        "00020101021238570010A000000727",
		Status:        "PENDING",
		OrderCode:     req.OrderCode,
		Amount:        req.Amount,
	}, nil
}

func (g *fakeGateway) VerifyWebhook(data []byte, signature string) bool {
	return gateway.VerifyData(data, signature, testChecksumKey)
}

type recordingNotifier struct {
	mu    sync.Mutex
	codes []int64
}

func (n *recordingNotifier) Publish(orderCode int64) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.codes = append(n.codes, orderCode)
	return 1
}

func (n *recordingNotifier) count(orderCode int64) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, code := range n.codes {
		if code == orderCode {
			c++
		}
	}
	return c
}

type fixture struct {
	db       *gorm.DB
	svc      *Service
	clock    *testClock
	gateway  *fakeGateway
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:       database.NewTestDB(t),
		clock:    &testClock{now: t0},
		gateway:  &fakeGateway{},
		notifier: &recordingNotifier{},
	}
	f.svc = NewServiceFromDB(f.db, DefaultConfig(),
		WithGateway(f.gateway),
		WithNotifier(f.notifier),
		WithClock(f.clock.Now),
	)
	return f
}

// webhookBody builds a signed gateway notification.
func webhookBody(t *testing.T, code string, success bool, data map[string]interface{}) []byte {
	t.Helper()
	rawData, err := json.Marshal(data)
	require.NoError(t, err)
	sig, err := gateway.SignData(rawData, testChecksumKey)
	require.NoError(t, err)

	body, err := json.Marshal(map[string]interface{}{
		"code":      code,
		"desc":      "success",
		"success":   success,
		"data":      json.RawMessage(rawData),
		"signature": sig,
	})
	require.NoError(t, err)
	return body
}

func paidData(orderCode, amount int64, description string) map[string]interface{} {
	return map[string]interface{}{
		"orderCode":           orderCode,
		"amount":              amount,
		"description":         description,
		"accountNumber":       "12345678",
		"reference":           "FT26130123456",
		"transactionDateTime": "2026-05-10 15:01:02",
		"currency":            "VND",
		"paymentLinkId":       "pl-test",
		"code":                "00",
		"desc":                "success",
		"counterAccountName":  nil,
	}
}

var errStoreDown = errors.New("store unavailable")

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func stringsRepeat(s string, n int) string {
	return strings.Repeat(s, n)
}

func stripSignature(t *testing.T, body []byte) []byte {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &m))
	delete(m, "signature")
	out, err := json.Marshal(m)
	require.NoError(t, err)
	return out
}

func signatureOf(t *testing.T, body []byte) string {
	t.Helper()
	var m struct {
		Signature string `json:"signature"`
	}
	require.NoError(t, json.Unmarshal(body, &m))
	return m.Signature
}
