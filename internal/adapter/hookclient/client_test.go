package hookclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xiaot623/hookwatch/internal/domain"
)

func TestClientIngestPostsBody(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ingest/hooks" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("unexpected content type: %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_ = json.NewEncoder(w).Encode(domain.IngestResponse{OK: true, EventID: "evt_1"})
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	resp, err := client.Ingest(ctx, []byte(`{"hook_event_name":"Stop"}`))
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}
	if !resp.OK || resp.EventID != "evt_1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if gotBody != `{"hook_event_name":"Stop"}` {
		t.Fatalf("unexpected body: %s", gotBody)
	}
}

func TestClientIngestSurfacesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(domain.ErrorResponse{OK: false, Error: "hook_event_name must be a string"})
	}))
	defer server.Close()

	_, err := NewClient(server.URL, time.Second).Ingest(context.Background(), []byte(`{}`))
	if err == nil || !strings.Contains(err.Error(), "hook_event_name must be a string") {
		t.Fatalf("expected server error, got %v", err)
	}
}

func TestClientIngestNonJSONError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, time.Second).Ingest(context.Background(), []byte(`{}`))
	if err == nil || !strings.Contains(err.Error(), "status 502") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestResolveRPCAddr(t *testing.T) {
	cases := map[string]string{
		"":                       "",
		"  127.0.0.1:9090 ":      "127.0.0.1:9090",
		"tcp://localhost:9090":   "localhost:9090",
		"http://example.com:81/": "example.com:81",
	}
	for in, want := range cases {
		if got := resolveRPCAddr(in); got != want {
			t.Fatalf("resolveRPCAddr(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRPCClientRequiresAddress(t *testing.T) {
	_, err := NewRPCClient("").Ingest(context.Background(), []byte(`{"a":1}`))
	if err == nil {
		t.Fatalf("expected error without address")
	}
	_, err = NewRPCClient("127.0.0.1:1").Ingest(context.Background(), []byte(`not json`))
	if err == nil || !strings.Contains(err.Error(), "JSON object") {
		t.Fatalf("expected decode error, got %v", err)
	}
}
