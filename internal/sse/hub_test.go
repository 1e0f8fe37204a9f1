package sse

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/peterhyland0/adaptive-learning-backend/internal/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(func() { log.Sync() })
	return log
}

func recvMessage(t *testing.T, ch <-chan SSEMessage, timeout time.Duration) SSEMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for SSE message")
	}
	return SSEMessage{}
}

func TestHubBroadcastOrdering(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	userID := uuid.New()
	channel := UserChannel(userID)

	client := hub.NewSSEClient(userID)
	hub.AddChannel(client, channel)

	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventPipelineProgress, Data: map[string]any{"stage": "extracted"}})
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventModuleReady, Data: map[string]any{"seq": 2}})

	first := recvMessage(t, client.Outbound, time.Second)
	second := recvMessage(t, client.Outbound, time.Second)
	if first.Event != SSEEventPipelineProgress {
		t.Fatalf("first event: want=%s got=%s", SSEEventPipelineProgress, first.Event)
	}
	if second.Event != SSEEventModuleReady {
		t.Fatalf("second event: want=%s got=%s", SSEEventModuleReady, second.Event)
	}

	hub.CloseClient(client)
	select {
	case _, ok := <-client.Outbound:
		if ok {
			t.Fatalf("outbound should be closed after disconnect")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for channel close")
	}
}

func TestHubIsolatesChannels(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	userA := hub.NewSSEClient(uuid.New())
	userB := hub.NewSSEClient(uuid.New())
	hub.AddChannel(userA, UserChannel(userA.UserID))
	hub.AddChannel(userB, UserChannel(userB.UserID))

	hub.Broadcast(SSEMessage{Channel: UserChannel(userA.UserID), Event: SSEEventPipelineFailed})

	recvMessage(t, userA.Outbound, time.Second)
	select {
	case msg := <-userB.Outbound:
		t.Fatalf("userB received foreign message: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	client := hub.NewSSEClient(uuid.New())
	channel := UserChannel(client.UserID)
	hub.AddChannel(client, channel)

	// Nothing drains Outbound, so messages past the buffer are dropped
	// rather than blocking the broadcaster.
	for i := 0; i < cap(client.Outbound)+5; i++ {
		hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventPipelineProgress, Data: map[string]any{"seq": i}})
	}
	if got := len(client.Outbound); got != cap(client.Outbound) {
		t.Fatalf("buffered: want=%d got=%d", cap(client.Outbound), got)
	}
}
