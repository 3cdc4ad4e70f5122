package email

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientSend(t *testing.T) {
	var gotAuth string
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/mail/send" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("X-Message-Id", "abc123")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient("SG.key", "bot@example.com", "Presensi").WithHost(srv.URL)
	id, err := c.Send(context.Background(), Email{
		To:          "dosen@example.com",
		Subject:     "Attendance",
		TextContent: "plain",
		HTMLContent: "<p>html</p>",
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if id != "abc123" {
		t.Errorf("Send() id = %q, want abc123", id)
	}
	if gotAuth != "Bearer SG.key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if body["subject"] != "Attendance" {
		t.Errorf("subject = %v", body["subject"])
	}
}

func TestClientSendErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	c := NewClient("bad", "bot@example.com", "Presensi").WithHost(srv.URL)
	_, err := c.Send(context.Background(), Email{To: "a@example.com", Subject: "x", TextContent: "x"})
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("Send() error = %v, want status 401", err)
	}

	if _, err := c.Send(context.Background(), Email{Subject: "x"}); err == nil {
		t.Error("Send() without recipient should fail")
	}
}

func TestDryRunClient(t *testing.T) {
	c := NewDryRunClient(slog.New(slog.NewTextHandler(io.Discard, nil)))
	var s Sender = c

	id1, _ := s.Send(context.Background(), Email{To: "a@example.com", Subject: "one"})
	id2, _ := s.Send(context.Background(), Email{To: "b@example.com", Subject: "two"})
	if id1 == id2 {
		t.Errorf("message ids should differ, both %q", id1)
	}
	sent := c.Sent()
	if len(sent) != 2 || sent[1].To != "b@example.com" {
		t.Errorf("Sent() = %+v", sent)
	}
}
