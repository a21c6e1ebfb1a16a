package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/AccShop/internal/pkg/cache"
)

func TestRedisRelay_FansOutAcrossInstances(t *testing.T) {
	client := cache.NewTestClient(t, 13)

	local := New(time.Minute)
	remote := New(time.Minute)
	relayA := NewRedisRelay(client, local)
	relayB := NewRedisRelay(client, remote)
	require.NoError(t, relayA.Start(context.Background()))
	require.NoError(t, relayB.Start(context.Background()))
	defer relayA.Stop()
	defer relayB.Stop()

	sub := remote.Subscribe(31337)
	defer sub.Close()

	assert.Equal(t, 2, relayA.Publish(31337))

	select {
	case ev := <-sub.C:
		assert.Equal(t, StatusDone, ev.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("remote subscriber did not receive the relayed completion")
	}
}

func TestRedisRelay_NotRunningPublishesLocally(t *testing.T) {
	local := New(time.Minute)
	relay := NewRedisRelay(nil, local)
	sub := local.Subscribe(1)
	defer sub.Close()

	assert.Equal(t, 1, relay.Publish(1))
	ev := <-sub.C
	assert.Equal(t, StatusDone, ev.Status)
	relay.Stop()
}
