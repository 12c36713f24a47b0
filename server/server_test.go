package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chatx "github.com/vndang/shoptalk/agent/chat"
	commercex "github.com/vndang/shoptalk/agent/commerce"
	contractx "github.com/vndang/shoptalk/agent/contract"
	sessionx "github.com/vndang/shoptalk/agent/session"
	ticketx "github.com/vndang/shoptalk/agent/ticket"
)

type echoResponder struct{}

func (echoResponder) Respond(_ context.Context, messages []contractx.Message) (contractx.Reply, error) {
	last := messages[len(messages)-1]
	return contractx.Reply{Content: "echo: " + last.Content, TokensUsed: 7, ModelName: "echo-model"}, nil
}

func (e echoResponder) RespondStream(ctx context.Context, messages []contractx.Message, emit func(string)) (contractx.Reply, error) {
	reply, _ := e.Respond(ctx, messages)
	if emit != nil {
		emit(reply.Content)
	}
	return reply, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	client, err := commercex.New(
		commercex.Config{BaseURL: "http://localhost:0", StoreCode: "main"},
		commercex.WithSleeper(func(context.Context, time.Duration) error { return nil }),
	)
	if err != nil {
		t.Fatalf("commerce.New() error = %v", err)
	}

	svc, err := chatx.NewService(
		sessionx.NewStore(nil),
		echoResponder{},
		client,
		ticketx.NewTracker(),
		nil,
		chatx.Config{MaxContextMessages: 20},
	)
	if err != nil {
		t.Fatalf("chat.NewService() error = %v", err)
	}
	return New(svc, Config{})
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not an envelope: %v\n%s", err, rr.Body.String())
	}
	return rr, env
}

func TestChatEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rr, env := doJSON(t, srv.Handler(), http.MethodPost, "/api/chat",
		`{"user_id":"u1","session_id":"s1","message":"hello"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !env.Success {
		t.Fatalf("envelope = %+v, want success", env)
	}

	data, ok := env.Data.(map[string]any)
	if !ok {
		t.Fatalf("data = %T, want object", env.Data)
	}
	if data["response"] != "echo: hello" {
		t.Fatalf("response = %v, want echoed message", data["response"])
	}
	if data["session_id"] != "s1" || data["user_id"] != "u1" {
		t.Fatalf("ids = %v/%v, want caller-supplied", data["user_id"], data["session_id"])
	}
}

func TestChatEndpointRequiresMessage(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rr, env := doJSON(t, srv.Handler(), http.MethodPost, "/api/chat", `{"user_id":"u1"}`)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if env.Success || env.ErrorCode != "INVALID_REQUEST" {
		t.Fatalf("envelope = %+v, want INVALID_REQUEST failure", env)
	}
}

func TestUserProfileRoundTrip(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	handler := srv.Handler()

	_, env := doJSON(t, handler, http.MethodPost, "/api/user-profile",
		`{"user_id":"u1","session_id":"s1","profile":{"name":"Mai","phone":"0812345678"}}`)
	if !env.Success {
		t.Fatalf("set profile envelope = %+v, want success", env)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/user-profile?user_id=u1&session_id=s1", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var got envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	data := got.Data.(map[string]any)
	profile := data["profile"].(map[string]any)
	if profile["name"] != "Mai" {
		t.Fatalf("profile = %v, want stored name", profile)
	}
}

func TestUserProfileMissingIsEmptyObject(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/user-profile?user_id=nobody&session_id=nowhere", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for a never-set profile", rr.Code)
	}
}

func TestSessionMemoryUnknownSession(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/session-memory?session_id=missing", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}

	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.ErrorCode != "SESSION_NOT_FOUND" {
		t.Fatalf("error_code = %q, want SESSION_NOT_FOUND", env.ErrorCode)
	}
}

func TestResetSessionEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	handler := srv.Handler()

	if _, env := doJSON(t, handler, http.MethodPost, "/api/chat",
		`{"user_id":"u1","session_id":"s1","message":"remember this"}`); !env.Success {
		t.Fatalf("chat envelope = %+v, want success", env)
	}

	_, env := doJSON(t, handler, http.MethodPost, "/api/reset-session",
		`{"user_id":"u1","session_id":"s1"}`)
	if !env.Success {
		t.Fatalf("reset envelope = %+v, want success", env)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/session-memory?session_id=s1", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var got envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	data := got.Data.(map[string]any)
	if count, _ := data["message_count"].(float64); count != 0 {
		t.Fatalf("message_count = %v, want 0 after reset", data["message_count"])
	}
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "healthy") {
		t.Fatalf("body = %s, want healthy status", rr.Body.String())
	}
}

func TestChatStreamEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet,
		"/api/chat/stream?user_id=u1&session_id=s1&message=hello", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}

	var frames []chatx.Frame
	scanner := bufio.NewScanner(rr.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var frame chatx.Frame
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame); err != nil {
			t.Fatalf("decode frame: %v\n%s", err, line)
		}
		frames = append(frames, frame)
	}

	if len(frames) < 2 {
		t.Fatalf("frame count = %d, want content plus final", len(frames))
	}
	final := frames[len(frames)-1]
	if !final.Done || final.Metadata == nil {
		t.Fatalf("final frame = %+v, want done with metadata", final)
	}
	if final.Metadata.SessionID != "s1" || final.Metadata.ModelName != "echo-model" {
		t.Fatalf("metadata = %+v, want session and model", final.Metadata)
	}

	var content strings.Builder
	for _, f := range frames[:len(frames)-1] {
		content.WriteString(f.Content)
	}
	if !strings.Contains(content.String(), "echo: hello") {
		t.Fatalf("streamed content = %q, want echoed reply", content.String())
	}
}
