package messaging

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/revtrace/revtrace-go/internal/domain/attribution"
	"github.com/revtrace/revtrace-go/internal/infrastructure/observability/logging"
)

func newTestBroadcaster(t *testing.T) *Broadcaster {
	t.Helper()
	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{
		OutputToFile:    false,
		OutputToConsole: true,
		DefaultLevel:    slog.LevelError,
		ChannelLevels:   make(map[logging.Channel]slog.Level),
	})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	b := NewBroadcaster(logger)
	go b.Run()
	return b
}

func waitForClientCount(t *testing.T, b *Broadcaster, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if b.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client count = %d, want %d", b.ClientCount(), want)
}

func TestBroadcastTouchpointReachesSubscriber(t *testing.T) {
	b := newTestBroadcaster(t)

	client := &Client{Send: make(chan []byte, 8)}
	if !b.Register(client) {
		t.Fatal("Register() refused a client below capacity")
	}
	waitForClientCount(t, b, 1)

	tp := &attribution.Touchpoint{
		ID:        "t1",
		VisitorID: "v1",
		SessionID: "s1",
		EventType: "page_view",
		CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	b.BroadcastTouchpoint(tp)

	select {
	case payload := <-client.Send:
		var got attribution.Touchpoint
		if err := json.Unmarshal(payload, &got); err != nil {
			t.Fatalf("stream payload not valid JSON: %v", err)
		}
		if got.ID != "t1" || got.VisitorID != "v1" {
			t.Errorf("streamed touchpoint = %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the touchpoint")
	}
}

func TestUnregisterClosesSendChannel(t *testing.T) {
	b := newTestBroadcaster(t)

	client := &Client{Send: make(chan []byte, 1)}
	b.Register(client)
	waitForClientCount(t, b, 1)

	b.Unregister(client)
	waitForClientCount(t, b, 0)

	select {
	case _, open := <-client.Send:
		if open {
			t.Error("send channel still open after unregister")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel not closed after unregister")
	}
}

func TestSlowSubscriberIsDisconnected(t *testing.T) {
	b := newTestBroadcaster(t)

	// No buffer and no reader: the first fan-out cannot be delivered.
	slow := &Client{Send: make(chan []byte)}
	b.Register(slow)
	waitForClientCount(t, b, 1)

	b.BroadcastTouchpoint(&attribution.Touchpoint{ID: "t1", VisitorID: "v1", SessionID: "s1", EventType: "page_view"})
	waitForClientCount(t, b, 0)
}
