package sse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/readalong/internal/domain"
	"github.com/listenupapp/readalong/internal/testutil"
)

func startManager(t *testing.T) *Manager {
	t.Helper()

	m := NewManager(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go m.Start(ctx)
	t.Cleanup(func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
		defer done()
		_ = m.Shutdown(shutdownCtx)
		cancel()
	})
	return m
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case ev := <-c.EventChan:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestConnectDisconnect(t *testing.T) {
	m := NewManager(nil)

	c, err := m.Connect("")
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, 1, m.ClientCount())

	m.Disconnect(c.ID)
	assert.Equal(t, 0, m.ClientCount())

	// Second disconnect is a no-op.
	m.Disconnect(c.ID)

	_, open := <-c.EventChan
	assert.False(t, open)
}

func TestBroadcastFiltersByBook(t *testing.T) {
	m := startManager(t)

	all, err := m.Connect("")
	require.NoError(t, err)
	sea, err := m.Connect("Sea")
	require.NoError(t, err)
	land, err := m.Connect("Land")
	require.NoError(t, err)

	man := testutil.Manifest("Sea", 1, 2, 10)
	m.Emit(NewAudiobookUpdatedEvent(man, domain.AudiobookSummary{BookID: "Sea"}, 1))

	assert.Equal(t, EventAudiobookUpdated, receive(t, all).Type)
	got := receive(t, sea)
	assert.Equal(t, EventAudiobookUpdated, got.Type)
	assert.Equal(t, "Sea", got.BookID)

	// Job events carry no book and reach everyone.
	m.Emit(NewJobCreatedEvent(&domain.Job{ID: "job-1", Filename: "Land.pdf"}))
	assert.Equal(t, EventJobCreated, receive(t, land).Type)
	assert.Len(t, land.EventChan, 0)
}

func TestEmitAfterShutdownIsDropped(t *testing.T) {
	m := NewManager(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Start(ctx)

	require.NoError(t, m.Shutdown(context.Background()))
	assert.NotPanics(t, func() {
		m.Emit(NewAudiobookRemovedEvent("Gone"))
	})
	// Idempotent.
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestHeartbeatDelivered(t *testing.T) {
	m := NewManager(nil)
	m.heartbeatInterval = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Start(ctx)

	c, err := m.Connect("AnyBook")
	require.NoError(t, err)
	assert.Equal(t, EventHeartbeat, receive(t, c).Type)
}
