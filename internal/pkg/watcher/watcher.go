// Package watcher waits for a deposit confirmation the way a browser does:
// it listens on the SSE stream and degrades to bounded polling when the
// stream cannot be used.
package watcher

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/AccShop/internal/pkg/notify"
	"github.com/ManuelReschke/AccShop/internal/pkg/poller"
)

// UI states shown while waiting.
const (
	StateWaiting   = "waiting"
	StateConfirmed = "confirmed"
	StateTimedOut  = "timed_out"
)

const (
	ViaStream = "stream"
	ViaPoll   = "poll"
)

var errStreamClosed = errors.New("stream closed before an event")

// Client talks to the deposit API on behalf of one logged-in user.
type Client struct {
	BaseURL string
	// Header is sent with every request, typically the session cookie.
	Header http.Header
	// HTTPClient is used for status polls. The stream uses StreamClient,
	// which must not carry a short timeout.
	HTTPClient   *http.Client
	StreamClient *http.Client
	Policy       poller.Policy
	// OnState, when set, receives each UI state change.
	OnState func(state string)
}

// Result tells how a wait ended and which channel produced it.
type Result struct {
	Outcome  poller.Outcome
	Via      string
	Attempts int
}

func (r Result) UIState() string { return r.Outcome.UIState() }

func New(baseURL string, header http.Header) *Client {
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		Header:       header,
		HTTPClient:   &http.Client{Timeout: 10 * time.Second},
		StreamClient: &http.Client{},
		Policy:       poller.DefaultPolicy(),
	}
}

// Wait blocks until the order code is confirmed, fails or runs out of time.
// A broken stream is never reported as a failure; polling takes over.
func (c *Client) Wait(ctx context.Context, orderCode int64) (Result, error) {
	c.emit(StateWaiting)

	status, err := c.stream(ctx, orderCode)
	switch {
	case err == nil && status == notify.StatusDone:
		c.emit(StateConfirmed)
		return Result{Outcome: poller.OutcomeConfirmed, Via: ViaStream}, nil
	case err == nil && status == notify.StatusTimeout:
		// One last read in case the confirmation raced the stream deadline.
		if s, perr := c.Status(ctx, orderCode); perr == nil && s == poller.StatusDone {
			c.emit(StateConfirmed)
			return Result{Outcome: poller.OutcomeConfirmed, Via: ViaPoll, Attempts: 1}, nil
		}
		c.emit(StateTimedOut)
		return Result{Outcome: poller.OutcomeTimedOut, Via: ViaStream}, nil
	case err == nil && (status == poller.StatusFailed || status == poller.StatusExpired):
		c.emit(StateTimedOut)
		return Result{Outcome: poller.OutcomeFailed, Via: ViaStream}, nil
	case ctx.Err() != nil:
		return Result{}, ctx.Err()
	}

	log.Infof("[Watcher] stream for order %d unavailable, polling: %v", orderCode, err)
	res, err := c.Policy.Run(ctx, func(ctx context.Context) (string, error) {
		return c.Status(ctx, orderCode)
	})
	if err != nil {
		return Result{Via: ViaPoll, Attempts: res.Attempts}, err
	}
	c.emit(res.Outcome.UIState())
	return Result{Outcome: res.Outcome, Via: ViaPoll, Attempts: res.Attempts}, nil
}

// Status performs one poll read. A 404 means the invoice is gone for good
// and is reported as expired.
func (c *Client) Status(ctx context.Context, orderCode int64) (string, error) {
	req, err := c.newRequest(ctx, fmt.Sprintf("/api/v1/deposits/%d/status", orderCode))
	if err != nil {
		return "", err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return poller.StatusExpired, nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}

	var body struct {
		Success bool   `json:"success"`
		Data    string `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode status: %w", err)
	}
	if !body.Success {
		return "", errors.New("status endpoint reported failure")
	}
	return body.Data, nil
}

// stream returns the first event status, or an error for anything that
// keeps the stream from delivering one.
func (c *Client) stream(ctx context.Context, orderCode int64) (string, error) {
	req, err := c.newRequest(ctx, fmt.Sprintf("/api/v1/deposits/%d/stream", orderCode))
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.StreamClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("stream returned %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		return "", fmt.Errorf("stream content type %q", ct)
	}
	return readEvent(resp.Body)
}

// readEvent scans SSE lines until the first data line. Comment lines are
// heartbeats.
func readEvent(r io.Reader) (string, error) {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")

		if data, ok := strings.CutPrefix(line, "data:"); ok {
			var event struct {
				Status string `json:"status"`
			}
			if jerr := json.Unmarshal([]byte(strings.TrimSpace(data)), &event); jerr != nil {
				return "", fmt.Errorf("decode event: %w", jerr)
			}
			return event.Status, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", errStreamClosed
			}
			return "", err
		}
	}
}

func (c *Client) newRequest(ctx context.Context, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range c.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

func (c *Client) emit(state string) {
	if c.OnState != nil {
		c.OnState(state)
	}
}
