package push

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestHTTPSenderDeliversToTopic(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL, zerolog.Nop())
	if !s.SendPush(context.Background(), "abcd1234", "alice started a new track") {
		t.Fatal("send should succeed")
	}
	if gotPath != "/abcd1234" {
		t.Fatalf("path: %q", gotPath)
	}
	if gotBody != "alice started a new track" {
		t.Fatalf("body: %q", gotBody)
	}
}

func TestHTTPSenderReportsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL, zerolog.Nop())
	if s.SendPush(context.Background(), "abcd1234", "hi") {
		t.Fatal("send should report failure")
	}
}

func TestHTTPSenderUnreachableRelay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // relay is down

	s := NewHTTPSender(srv.URL, zerolog.Nop())
	if s.SendPush(context.Background(), "abcd1234", "hi") {
		t.Fatal("send to a dead relay should report failure")
	}
}
