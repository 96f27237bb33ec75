package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	waitFor(t, "hub running", h.IsRunning)
	return h
}

// testClient registers a bare client without a websocket connection;
// the Run loop only ever touches the send channel.
func testClient(h *Hub, buf int) *Client {
	c := &Client{hub: h, send: make(chan Message, buf)}
	h.register <- c
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func recv(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed unexpectedly")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func TestBroadcastReachesAllClients(t *testing.T) {
	h := startHub(t)

	clients := []*Client{testClient(h, 4), testClient(h, 4), testClient(h, 4)}
	waitFor(t, "registrations", func() bool { return h.ClientCount() == 3 })

	if err := h.BroadcastJSON(map[string]int{"frame": 7}); err != nil {
		t.Fatalf("BroadcastJSON() error = %v", err)
	}
	h.BroadcastBinary([]byte{0xFF, 0xD8})

	for i, c := range clients {
		msg := recv(t, c)
		if msg.Type != JSONMessage {
			t.Errorf("client %d: first message type = %v, want JSONMessage", i, msg.Type)
		}
		var decoded map[string]int
		if err := json.Unmarshal(msg.Data, &decoded); err != nil {
			t.Fatalf("client %d: unmarshal: %v", i, err)
		}
		if decoded["frame"] != 7 {
			t.Errorf("client %d: frame = %d, want 7", i, decoded["frame"])
		}

		msg = recv(t, c)
		if msg.Type != BinaryMessage {
			t.Errorf("client %d: second message type = %v, want BinaryMessage", i, msg.Type)
		}
		if !bytes.Equal(msg.Data, []byte{0xFF, 0xD8}) {
			t.Errorf("client %d: binary payload = %v", i, msg.Data)
		}
	}
}

func TestSlowClientEvictedWithoutBlocking(t *testing.T) {
	h := startHub(t)

	slow := testClient(h, 1)
	fast := testClient(h, 8)
	waitFor(t, "registrations", func() bool { return h.ClientCount() == 2 })

	// The first broadcast fills the slow client's buffer; the second
	// finds it full and must evict rather than stall the fast client.
	h.BroadcastBinary([]byte{1})
	h.BroadcastBinary([]byte{2})
	h.BroadcastBinary([]byte{3})

	waitFor(t, "slow client eviction", func() bool { return h.ClientCount() == 1 })

	for i, want := range []byte{1, 2, 3} {
		msg := recv(t, fast)
		if !bytes.Equal(msg.Data, []byte{want}) {
			t.Errorf("fast message %d = %v, want [%d]", i, msg.Data, want)
		}
	}

	msg := <-slow.send
	if !bytes.Equal(msg.Data, []byte{1}) {
		t.Errorf("slow client first message = %v, want [1]", msg.Data)
	}
	if _, ok := <-slow.send; ok {
		t.Error("slow client channel should be closed after eviction")
	}
}

func TestBroadcastNeverBlocksWithoutConsumer(t *testing.T) {
	h := New("idle") // Run never started

	done := make(chan struct{})
	go func() {
		for i := 0; i < 300; i++ {
			h.BroadcastBinary(nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked with no consumer")
	}

	if got := h.Dropped(); got != 44 {
		t.Errorf("Dropped() = %d, want 44", got)
	}
}

func TestCancelClosesClients(t *testing.T) {
	h := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	waitFor(t, "hub running", h.IsRunning)

	c := testClient(h, 4)
	waitFor(t, "registration", func() bool { return h.ClientCount() == 1 })

	cancel()
	<-h.done

	if _, ok := <-c.send; ok {
		t.Error("client channel should be closed on shutdown")
	}
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", h.ClientCount())
	}
	if h.IsRunning() {
		t.Error("IsRunning() should be false after shutdown")
	}
}

func TestNewClientAfterShutdown(t *testing.T) {
	h := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	waitFor(t, "hub running", h.IsRunning)

	cancel()
	<-h.done

	c := NewClient(h, nil)
	if _, ok := <-c.send; ok {
		t.Error("client registered after shutdown should come back closed")
	}
}

func TestDispatch(t *testing.T) {
	h := New("test")

	// No handler registered: must not panic.
	h.dispatch([]byte("ignored"))

	var got [][]byte
	h.OnMessage(func(data []byte) { got = append(got, data) })
	h.dispatch([]byte("hello"))

	if len(got) != 1 || string(got[0]) != "hello" {
		t.Errorf("dispatch delivered %q, want [hello]", got)
	}
}
