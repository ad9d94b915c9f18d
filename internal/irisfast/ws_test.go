package irisfast

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// closedURL returns a ws:// URL nothing listens on.
func closedURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + srv.URL[len("http"):] + "/ws"
	srv.Close()
	return url
}

func recordStates(ws *WebSocket) <-chan WebSocketState {
	ch := make(chan WebSocketState, 16)
	ws.OnStateChange(func(s WebSocketState) {
		select {
		case ch <- s:
		default:
		}
	})
	return ch
}

func waitForState(t *testing.T, ch <-chan WebSocketState, want WebSocketState) []WebSocketState {
	t.Helper()
	var seen []WebSocketState
	timeout := time.After(5 * time.Second)
	for {
		select {
		case s := <-ch:
			seen = append(seen, s)
			if s == want {
				return seen
			}
		case <-timeout:
			t.Fatalf("state %s not reached, saw %v", want, seen)
		}
	}
}

func TestWebSocketFailsAfterReconnectsRunOut(t *testing.T) {
	ws := NewWebSocket(closedURL(t), 2, time.Millisecond)
	t.Cleanup(func() { _ = ws.Close(context.Background()) })
	states := recordStates(ws)

	if err := ws.Connect(context.Background()); err == nil {
		t.Fatalf("expected connect error")
	}
	seen := waitForState(t, states, WSStateFailed)
	for _, s := range seen[:len(seen)-1] {
		if s == WSStateFailed {
			t.Fatalf("failed reported before reconnects ran out: %v", seen)
		}
	}
	if seen[len(seen)-2] != WSStateReconnecting {
		t.Fatalf("expected reconnecting before failed, saw %v", seen)
	}
	if ws.State() != WSStateFailed {
		t.Fatalf("state = %s", ws.State())
	}
}

func TestWebSocketWithoutReconnectsFailsAtOnce(t *testing.T) {
	ws := NewWebSocket(closedURL(t), 0, time.Millisecond)
	t.Cleanup(func() { _ = ws.Close(context.Background()) })
	states := recordStates(ws)

	if err := ws.Connect(context.Background()); err == nil {
		t.Fatalf("expected connect error")
	}
	seen := waitForState(t, states, WSStateFailed)
	if seen[0] != WSStateConnecting {
		t.Fatalf("unexpected transitions %v", seen)
	}
}

func TestWebSocketCloseDoesNotReportFailed(t *testing.T) {
	ws := NewWebSocket(closedURL(t), 3, time.Hour)
	states := recordStates(ws)

	_ = ws.Connect(context.Background())
	if err := ws.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	deadline := time.After(100 * time.Millisecond)
	for {
		select {
		case s := <-states:
			if s == WSStateFailed {
				t.Fatalf("closed socket must not report failed")
			}
		case <-deadline:
			return
		}
	}
}
