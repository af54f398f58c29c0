package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// loginBackend captures the first frame each connection sends after the
// socket opens, which is always the login
func loginBackend(t *testing.T) (*httptest.Server, chan []byte) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	frames := make(chan []byte, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frames <- raw
		}
	}))
	return srv, frames
}

type loginFrame struct {
	APIVersion string          `json:"apiVersion"`
	Type       string          `json:"type"`
	AuthToken  string          `json:"authToken"`
	Body       json.RawMessage `json:"body"`
}

func readLoginFrame(t *testing.T, frames chan []byte) *loginFrame {
	t.Helper()
	select {
	case raw := <-frames:
		var frame loginFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			t.Fatalf("malformed login frame: %v", err)
		}
		return &frame
	case <-time.After(2 * time.Second):
		t.Fatal("no login frame received")
		return nil
	}
}

func TestFreshStartSendsChatRequest(t *testing.T) {
	srv, frames := loginBackend(t)
	defer srv.Close()

	cfg := testChatConfig()
	cfg.SocketURL = wsURL(srv)
	cfg.Topic = "sales"
	f := newOrchestratorFixture(cfg)
	defer f.orchestrator.Reset()

	err := f.orchestrator.Start(context.Background(), &CustomerDetails{
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Email:      "ada@example.com",
		PostalCode: "94105",
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	frame := readLoginFrame(t, frames)
	if frame.APIVersion != APIVersion || frame.Type != TypeRequest {
		t.Errorf("envelope = %s/%s", frame.APIVersion, frame.Type)
	}

	var body RequestChatBody
	if err := json.Unmarshal(frame.Body, &body); err != nil {
		t.Fatalf("malformed body: %v", err)
	}
	if body.Method != MethodRequestChat {
		t.Errorf("method = %q, want %s", body.Method, MethodRequestChat)
	}
	if body.Intrinsics.Email != "ada@example.com" || body.Intrinsics.Name != "Ada" {
		t.Errorf("intrinsics = %+v", body.Intrinsics)
	}
	if body.Intrinsics.Topic != "sales" {
		t.Errorf("topic = %q", body.Intrinsics.Topic)
	}
	if len(body.Intrinsics.CustomFields) != 1 || body.Intrinsics.CustomFields[0].Value != "94105" {
		t.Errorf("custom fields = %+v", body.Intrinsics.CustomFields)
	}
	if body.CustomData["correlationId"] == "" {
		t.Error("correlation id missing from custom data")
	}
}

func TestResumedStartSendsRenew(t *testing.T) {
	srv, frames := loginBackend(t)
	defer srv.Close()

	cfg := testChatConfig()
	cfg.SocketURL = wsURL(srv)
	f := newOrchestratorFixture(cfg)
	defer f.orchestrator.Reset()

	ctx := context.Background()
	f.storage.Set(ctx, KeySessionID, "sess-9")
	f.storage.Set(ctx, KeyAuthToken, "token-9")
	f.storage.Set(ctx, KeyLastActivity, strconv.FormatInt(time.Now().UnixMilli(), 10))

	if err := f.orchestrator.ResumeFromStorage(ctx); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if err := f.orchestrator.Start(ctx, nil); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	frame := readLoginFrame(t, frames)
	if frame.AuthToken != "token-9" {
		t.Errorf("auth token = %q, want token-9", frame.AuthToken)
	}

	var body RenewChatBody
	if err := json.Unmarshal(frame.Body, &body); err != nil {
		t.Fatalf("malformed body: %v", err)
	}
	if body.Method != MethodRenewChat {
		t.Errorf("method = %q, want %s", body.Method, MethodRenewChat)
	}
	if body.GUID != "sess-9" {
		t.Errorf("guid = %q, want sess-9", body.GUID)
	}
	if !body.RequestFullTranscript {
		t.Error("resumed login did not ask for the full transcript")
	}
}

func TestSubjectAutoSentOnceAfterFirstAgentMessage(t *testing.T) {
	srv, frames := loginBackend(t)
	defer srv.Close()

	cfg := testChatConfig()
	cfg.SocketURL = wsURL(srv)
	f := newOrchestratorFixture(cfg)
	defer f.orchestrator.Reset()

	err := f.orchestrator.Start(context.Background(), &CustomerDetails{
		FirstName: "Ada",
		Email:     "ada@example.com",
		Subject:   "delivery estimate",
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	readLoginFrame(t, frames)
	establish(t, f, "wr-1")

	agentMessage := func() {
		err := f.orchestrator.HandleNotification(notification(t, &NewMessageNotificationBody{
			Method:      NotifyNewMessage,
			SenderType:  SenderLiveAgent,
			Message:     "how can I help?",
			DisplayName: "Sam",
		}))
		if err != nil {
			t.Fatal(err)
		}
	}

	agentMessage()
	frame := readLoginFrame(t, frames)
	var body NewMessageBody
	if err := json.Unmarshal(frame.Body, &body); err != nil {
		t.Fatalf("malformed body: %v", err)
	}
	if body.Method != MethodNewMessage || body.Message != "delivery estimate" {
		t.Errorf("first agent message did not trigger the subject: %+v", body)
	}

	// One shot only
	agentMessage()
	select {
	case raw := <-frames:
		t.Fatalf("unexpected frame after second agent message: %s", raw)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestReconnectAfterEstablishmentRenews(t *testing.T) {
	srv, frames := loginBackend(t)
	defer srv.Close()

	cfg := testChatConfig()
	cfg.SocketURL = wsURL(srv)
	f := newOrchestratorFixture(cfg)
	defer f.orchestrator.Reset()

	if err := f.orchestrator.Start(context.Background(), &CustomerDetails{
		FirstName: "Ada",
		Email:     "ada@example.com",
	}); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	readLoginFrame(t, frames)

	establish(t, f, "wr-1")
	f.orchestrator.transport.Close()
	if err := f.orchestrator.Start(context.Background(), nil); err != nil {
		t.Fatalf("restart failed: %v", err)
	}

	frame := readLoginFrame(t, frames)
	var body RenewChatBody
	if err := json.Unmarshal(frame.Body, &body); err != nil {
		t.Fatalf("malformed body: %v", err)
	}
	if body.Method != MethodRenewChat {
		t.Errorf("method after reconnect = %q, want %s", body.Method, MethodRenewChat)
	}
	if body.RequestFullTranscript {
		t.Error("plain reconnect asked for a full transcript")
	}
	if body.GUID != "sess-1" {
		t.Errorf("guid = %q, want sess-1", body.GUID)
	}
}
