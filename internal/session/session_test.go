package session

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func handleAsync(t *Tracker, ctx context.Context, listener string, conn net.Conn) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		t.Handle(ctx, listener, conn)
	}()
	return done
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Handle did not return")
	}
}

func TestTracker_PeerHangsUp(t *testing.T) {
	tr := NewTracker(nil, 0)
	client, server := net.Pipe()

	done := handleAsync(tr, context.Background(), "web1", server)

	_, err := client.Write([]byte("hello"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s := tr.Sessions("web1")
		return len(s) == 1 && s[0].BytesIn == 5
	}, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, tr.Sessions("other"))
	assert.Len(t, tr.Sessions(""), 1)

	client.Close()
	waitDone(t, done)
	assert.Equal(t, 0, tr.Len())
}

func TestTracker_ListenerStops(t *testing.T) {
	tr := NewTracker(nil, 0)
	client, server := net.Pipe()
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := handleAsync(tr, ctx, "web1", server)

	require.Eventually(t, func() bool { return tr.Len() == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	waitDone(t, done)
	assert.Equal(t, 0, tr.Len())
}

func TestTracker_IdleTimeout(t *testing.T) {
	tr := NewTracker(nil, 50*time.Millisecond)
	client, server := net.Pipe()
	defer client.Close()

	done := handleAsync(tr, context.Background(), "web1", server)
	waitDone(t, done)
	assert.Equal(t, 0, tr.Len())
}

func TestTracker_IDsAndOrder(t *testing.T) {
	tr := NewTracker(nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var dones []<-chan struct{}
	for _, l := range []string{"a", "b", "a"} {
		client, server := net.Pipe()
		defer client.Close()
		dones = append(dones, handleAsync(tr, ctx, l, server))
		require.Eventually(t, func() bool { return tr.Len() == len(dones) }, 2*time.Second, 5*time.Millisecond)
	}

	a := tr.Sessions("a")
	require.Len(t, a, 2)
	assert.Less(t, a[0].ID, a[1].ID)
	assert.Len(t, tr.Sessions("b"), 1)

	cancel()
	for _, d := range dones {
		waitDone(t, d)
	}
}
