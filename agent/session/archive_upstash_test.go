package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	contractx "github.com/vndang/shoptalk/agent/contract"
)

func TestUpstashArchiveRedisKey(t *testing.T) {
	t.Parallel()

	archive := &UpstashArchive{keyPrefix: defaultArchiveKeyPrefix}
	got, err := archive.redisKey("abc")
	if err != nil {
		t.Fatalf("redisKey() error = %v", err)
	}
	if got != "shoptalk:session:abc" {
		t.Fatalf("redisKey() = %q, want %q", got, "shoptalk:session:abc")
	}
}

func TestUpstashArchiveRedisKeyEmptySession(t *testing.T) {
	t.Parallel()

	archive := &UpstashArchive{}
	_, err := archive.redisKey("   ")
	if !errors.Is(err, contractx.ErrInvalidSession) {
		t.Fatalf("redisKey() error = %v, want ErrInvalidSession", err)
	}
}

func TestUpstashArchiveSaveSendsSetCommand(t *testing.T) {
	t.Parallel()

	var gotCommand []any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&gotCommand); err != nil {
			t.Errorf("decode command: %v", err)
		}
		fmt.Fprint(w, `{"result":"OK"}`)
	}))
	t.Cleanup(server.Close)

	archive, err := NewUpstashArchive(
		UpstashConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
		WithTTL(0),
	)
	if err != nil {
		t.Fatalf("NewUpstashArchive() error = %v", err)
	}

	snap := &Snapshot{
		SessionID: "session-1",
		UserID:    "u1",
		Memory:    map[string]any{"city": "Bangkok"},
	}
	if err := archive.Save(context.Background(), snap); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if len(gotCommand) < 3 {
		t.Fatalf("unexpected command: %#v", gotCommand)
	}
	if gotCommand[0] != "SET" {
		t.Fatalf("command[0] = %v, want SET", gotCommand[0])
	}
	if gotCommand[1] != "shoptalk:session:session-1" {
		t.Fatalf("command[1] = %v, want prefixed session key", gotCommand[1])
	}
}

func TestUpstashArchiveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	seed := Snapshot{
		SessionID: "session-2",
		UserID:    "u2",
		Memory:    map[string]any{"preference": "running shoes"},
	}
	payload, err := json.Marshal(seed)
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	encoded, err := json.Marshal(string(payload))
	if err != nil {
		t.Fatalf("marshal encoded seed: %v", err)
	}

	var gotCommand []any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&gotCommand); err != nil {
			t.Errorf("decode command: %v", err)
		}
		fmt.Fprintf(w, `{"result":%s}`, encoded)
	}))
	t.Cleanup(server.Close)

	archive, err := NewUpstashArchive(
		UpstashConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewUpstashArchive() error = %v", err)
	}

	snap, err := archive.Load(context.Background(), "session-2")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if snap.SessionID != "session-2" {
		t.Fatalf("Load().SessionID = %q, want session-2", snap.SessionID)
	}
	if snap.Memory["preference"] != "running shoes" {
		t.Fatalf("Load().Memory = %v, want seeded preference", snap.Memory)
	}
	if gotCommand[0] != "GET" {
		t.Fatalf("command[0] = %v, want GET", gotCommand[0])
	}
}

func TestUpstashArchiveLoadMissing(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":null}`)
	}))
	t.Cleanup(server.Close)

	archive, err := NewUpstashArchive(
		UpstashConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewUpstashArchive() error = %v", err)
	}

	_, err = archive.Load(context.Background(), "nope")
	if !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("Load() error = %v, want ErrSnapshotNotFound", err)
	}
}
