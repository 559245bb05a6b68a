package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopBroker(t *testing.T) {
	var b Broker = NopBroker{}
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, b.Publish(ctx, "kiosk", map[string]string{"a": "b"}))
	ch, err := b.Subscribe(ctx, "kiosk")
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	assert.NoError(t, b.Close())
}
