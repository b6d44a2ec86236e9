package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rubiojr/craftsearch/pkg/realtime"
	"github.com/rubiojr/craftsearch/pkg/search"
)

func wsDial(t *testing.T, ts *httptest.Server) (*websocket.Conn, ServerMessage) {
	t.Helper()
	u, _ := url.Parse(ts.URL)
	u.Scheme = "ws"
	u.Path = "/api/search/ws"

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	hello := readServerMessage(t, conn)
	if hello.Type != MessageInit {
		t.Fatalf("expected init message, got %q", hello.Type)
	}
	return conn, hello
}

func readServerMessage(t *testing.T, conn *websocket.Conn) ServerMessage {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatal(err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return msg
}

func send(t *testing.T, conn *websocket.Conn, mode, query string) {
	t.Helper()
	if err := conn.WriteJSON(ClientMessage{Mode: mode, Query: query}); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestWebSocketSearch(t *testing.T) {
	_, ts := newTestServer(t, 0)
	conn, hello := wsDial(t, ts)

	if hello.Session == "" {
		t.Error("expected a session id")
	}
	if len(hello.Spaces) != 2 || hello.Spaces[0] != "work" {
		t.Errorf("unexpected spaces %v", hello.Spaces)
	}

	send(t, conn, "blocks", "basil")
	msg := readServerMessage(t, conn)
	if msg.Type != MessageResults || msg.Results == nil {
		t.Fatalf("expected results, got %+v", msg)
	}
	if msg.Results.Count != 1 || msg.Results.Blocks[0].ID != "h-b1" || msg.Results.Generation != 1 {
		t.Errorf("unexpected results %+v", msg.Results)
	}

	send(t, conn, "documents", "roadmap")
	msg = readServerMessage(t, conn)
	if msg.Results == nil || msg.Results.Mode != search.ModeDocuments || msg.Results.Generation != 2 {
		t.Fatalf("unexpected results %+v", msg)
	}
	if len(msg.Results.Documents) != 1 || msg.Results.Documents[0].DocumentID != "w-d1" {
		t.Errorf("unexpected documents %+v", msg.Results.Documents)
	}
}

func TestWebSocketInvalidMessages(t *testing.T) {
	_, ts := newTestServer(t, 0)
	conn, _ := wsDial(t, ts)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatal(err)
	}
	if msg := readServerMessage(t, conn); msg.Type != MessageError || msg.Error == "" {
		t.Errorf("expected error message, got %+v", msg)
	}

	send(t, conn, "tree", "x")
	if msg := readServerMessage(t, conn); msg.Type != MessageError {
		t.Errorf("expected error for unknown mode, got %+v", msg)
	}

	// The connection stays usable.
	send(t, conn, "", "search")
	if msg := readServerMessage(t, conn); msg.Type != MessageResults || msg.Results.Count != 2 {
		t.Errorf("expected results after errors, got %+v", msg)
	}
}

func TestWebSocketDebounceSendsLatestQuery(t *testing.T) {
	_, ts := newTestServer(t, 100*time.Millisecond)
	conn, _ := wsDial(t, ts)

	for _, q := range []string{"b", "ba", "bas", "basil"} {
		send(t, conn, "blocks", q)
	}

	msg := readServerMessage(t, conn)
	if msg.Results == nil || msg.Results.Query != "basil" {
		t.Fatalf("expected results for the last query, got %+v", msg)
	}
	if msg.Results.Generation != 1 {
		t.Errorf("expected a single search, got generation %d", msg.Results.Generation)
	}
}

func TestWebSocketPushesOnIndexChange(t *testing.T) {
	srv, ts := newTestServer(t, 0)
	conn, _ := wsDial(t, ts)

	send(t, conn, "blocks", "search")
	first := readServerMessage(t, conn)
	if first.Results == nil || first.Reason != "" {
		t.Fatalf("unexpected first message %+v", first)
	}

	// Wait for the session to be registered before notifying.
	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.Size() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	srv.NotifyIndexChanged([]string{"home"}, time.Now())
	pushed := readServerMessage(t, conn)
	if pushed.Type != MessageResults || pushed.Reason != realtime.EventIndexChanged {
		t.Fatalf("expected pushed results, got %+v", pushed)
	}
	if pushed.Results.Query != "search" || pushed.Results.Count != 2 || pushed.Results.Spaces[0].Cached {
		t.Errorf("unexpected pushed results %+v", pushed.Results)
	}
}

func TestWebSocketNoPushBeforeFirstQuery(t *testing.T) {
	srv, ts := newTestServer(t, 0)
	conn, _ := wsDial(t, ts)

	srv.NotifyIndexChanged([]string{"home"}, time.Now())
	send(t, conn, "blocks", "basil")

	msg := readServerMessage(t, conn)
	if msg.Reason != "" || msg.Results == nil || msg.Results.Query != "basil" {
		t.Errorf("expected only the requested results, got %+v", msg)
	}
}

func TestWebSocketRejectsPlainRequest(t *testing.T) {
	_, ts := newTestServer(t, 0)
	resp, err := http.Get(ts.URL + "/api/search/ws")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for non-websocket request, got %d", resp.StatusCode)
	}
}
