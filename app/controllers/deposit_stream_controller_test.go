package controllers

import (
	"bufio"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ManuelReschke/AccShop/internal/pkg/notify"
)

type brokenConn struct{}

func (brokenConn) Write([]byte) (int, error) { return 0, errors.New("connection reset by peer") }

func TestStreamUntilEvent_DisconnectTearsDownAtNextHeartbeat(t *testing.T) {
	hub := notify.New(time.Minute)
	sub := hub.Subscribe(42)
	assert.Equal(t, 1, hub.Subscribers(42))

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer sub.Close()
		streamUntilEvent(bufio.NewWriter(brokenConn{}), sub, 20*time.Millisecond, 42)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not notice the dead client on the heartbeat write")
	}
	assert.Zero(t, hub.Subscribers(42))
	assert.Zero(t, hub.Len(), "the last subscriber leaving drops the channel")
}
