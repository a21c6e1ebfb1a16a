package controllers

import (
	"bufio"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/valyala/fasthttp"

	"github.com/ManuelReschke/AccShop/app/models"
	"github.com/ManuelReschke/AccShop/internal/pkg/deposit"
	"github.com/ManuelReschke/AccShop/internal/pkg/notify"
	"github.com/ManuelReschke/AccShop/internal/pkg/usercontext"
)

// HandleDepositStream holds an SSE connection open until the order code is
// confirmed or the broadcaster times out. The subscription is registered
// before the invoice is read so a completion in between is not lost.
func (dc *DepositController) HandleDepositStream(c *fiber.Ctx) error {
	orderCode, ok := parseOrderCode(c)
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "invalid_order_code", "Order code must be a positive integer")
	}
	userID := usercontext.GetUserID(c)

	sub := dc.hub.Subscribe(orderCode)

	inv, err := dc.service.GetInvoice(c.UserContext(), userID, orderCode)
	if err != nil {
		sub.Close()
		if errors.Is(err, deposit.ErrInvoiceNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Deposit not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Could not load deposit")
	}

	// Terminal already: answer at once instead of waiting for an event
	// that will never come.
	immediate := ""
	if inv.Status != models.InvoiceStatusPending {
		sub.Close()
		immediate = deposit.PublicStatus(inv.Status)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	heartbeat := dc.heartbeat
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer sub.Close()

		if immediate != "" {
			_ = writeEvent(w, immediate)
			return
		}
		if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil || w.Flush() != nil {
			return
		}
		streamUntilEvent(w, sub, heartbeat, orderCode)
	}))
	return nil
}

func streamUntilEvent(w *bufio.Writer, sub *notify.Subscription, heartbeat time.Duration, orderCode int64) {
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if err := writeEvent(w, ev.Status); err != nil {
				log.Debugf("[Stream] order %d: client gone before %s: %v", orderCode, ev.Status, err)
			}
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				// Write failure means the client disconnected.
				return
			}
		}
	}
}

func writeEvent(w *bufio.Writer, status string) error {
	if _, err := fmt.Fprintf(w, "data: {\"status\":%q}\n\n", status); err != nil {
		return err
	}
	return w.Flush()
}
