package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ivankudzin/brokerreviews/internal/repo/memory"
	modsvc "github.com/ivankudzin/brokerreviews/internal/services/moderation"
)

type fakeRouter struct {
	mu     sync.Mutex
	routed []modsvc.Inbound
	err    error
}

func (f *fakeRouter) Route(_ context.Context, in modsvc.Inbound) (modsvc.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routed = append(f.routed, in)
	if f.err != nil {
		return modsvc.Result{}, f.err
	}
	return modsvc.Result{Outcome: modsvc.OutcomeApplied}, nil
}

func (f *fakeRouter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.routed)
}

type fakeLimiter struct {
	allowed bool
}

func (f *fakeLimiter) AllowCommand(context.Context, string) (int64, bool, error) {
	if f.allowed {
		return 0, true, nil
	}
	return 30, false, nil
}

func newWebhookServer(t *testing.T, router CommandRouter, cfg WebhookConfig, limiter CommandLimiter) *httptest.Server {
	t.Helper()

	handler := NewWebhookHandler(router, memory.NewUpdateDedup(128, time.Hour), limiter, cfg, zap.NewNop())
	r := chi.NewRouter()
	if cfg.Secret != "" {
		r.Post("/webhooks/telegram/{secret}", handler.Handle)
	} else {
		r.Post("/webhooks/telegram", handler.Handle)
	}

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func postUpdate(t *testing.T, url, body string) *http.Response {
	t.Helper()

	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post update: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func assertAck(t *testing.T, resp *http.Response) {
	t.Helper()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", resp.StatusCode, http.StatusOK)
	}
	var ack struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil || !ack.OK {
		t.Fatalf("unexpected ack body: ok=%v err=%v", ack.OK, err)
	}
}

const channelPost = `{"update_id":1001,"channel_post":{"message_id":5,"date":1767225600,"chat":{"id":-1001,"type":"channel","title":"Reviews"},"author_signature":"Alice","text":"/approve_42"}}`

func TestWebhookRoutesChannelPost(t *testing.T) {
	router := &fakeRouter{}
	ts := newWebhookServer(t, router, WebhookConfig{Enabled: true}, nil)

	assertAck(t, postUpdate(t, ts.URL+"/webhooks/telegram", channelPost))

	if router.count() != 1 {
		t.Fatalf("expected one routed command, got %d", router.count())
	}
	in := router.routed[0]
	if in.Text != "/approve_42" || in.Issuer != "Alice" {
		t.Fatalf("unexpected inbound: %+v", in)
	}
	if in.ReceivedAt.Unix() != 1767225600 {
		t.Fatalf("unexpected received_at: %s", in.ReceivedAt)
	}
}

func TestWebhookMalformedPayloadsReturnOKWithoutRouting(t *testing.T) {
	router := &fakeRouter{}
	ts := newWebhookServer(t, router, WebhookConfig{Enabled: true, MaxBodyBytes: 512}, nil)

	bodies := []string{
		``,
		`not json`,
		`[]`,
		`{"message":{"message_id":1,"date":1,"chat":{"id":1,"type":"private"},"text":"/approve_1"}}`,
		`{"update_id":7}`,
		`{"update_id":8,"message":{"message_id":1,"date":1,"chat":{"id":1,"type":"private"}}}`,
		`{"update_id":9,"message":"oops"}`,
		`{"update_id":10,"message":{"text":"` + strings.Repeat("a", 1024) + `"}}`,
	}
	for _, body := range bodies {
		assertAck(t, postUpdate(t, ts.URL+"/webhooks/telegram", body))
	}

	if router.count() != 0 {
		t.Fatalf("malformed payloads must not be routed, got %d", router.count())
	}
}

func TestWebhookSkipsRedeliveredUpdate(t *testing.T) {
	router := &fakeRouter{}
	ts := newWebhookServer(t, router, WebhookConfig{Enabled: true}, nil)

	assertAck(t, postUpdate(t, ts.URL+"/webhooks/telegram", channelPost))
	assertAck(t, postUpdate(t, ts.URL+"/webhooks/telegram", channelPost))

	if router.count() != 1 {
		t.Fatalf("redelivered update must be routed once, got %d", router.count())
	}
}

func TestWebhookSecretMismatchIsNotFound(t *testing.T) {
	router := &fakeRouter{}
	ts := newWebhookServer(t, router, WebhookConfig{Enabled: true, Secret: "s3cret"}, nil)

	resp := postUpdate(t, ts.URL+"/webhooks/telegram/wrong", channelPost)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status: got %d want %d", resp.StatusCode, http.StatusNotFound)
	}
	if router.count() != 0 {
		t.Fatalf("request with wrong secret must not be routed")
	}

	assertAck(t, postUpdate(t, ts.URL+"/webhooks/telegram/s3cret", channelPost))
	if router.count() != 1 {
		t.Fatalf("request with right secret must be routed")
	}
}

func TestWebhookDisabledPipelineAcknowledges(t *testing.T) {
	router := &fakeRouter{}
	ts := newWebhookServer(t, router, WebhookConfig{Enabled: false}, nil)

	assertAck(t, postUpdate(t, ts.URL+"/webhooks/telegram", channelPost))
	if router.count() != 0 {
		t.Fatalf("disabled pipeline must not route")
	}
}

func TestWebhookRouterErrorStillAcknowledges(t *testing.T) {
	for _, routeErr := range []error{
		&modsvc.UnknownReviewError{ReviewID: 9999},
		errors.New("database is down"),
	} {
		router := &fakeRouter{err: routeErr}
		ts := newWebhookServer(t, router, WebhookConfig{Enabled: true}, nil)

		assertAck(t, postUpdate(t, ts.URL+"/webhooks/telegram", channelPost))
		if router.count() != 1 {
			t.Fatalf("command must reach the router")
		}
	}
}

func TestWebhookRateLimitedCommandIsDropped(t *testing.T) {
	router := &fakeRouter{}
	ts := newWebhookServer(t, router, WebhookConfig{Enabled: true}, &fakeLimiter{allowed: false})

	assertAck(t, postUpdate(t, ts.URL+"/webhooks/telegram", channelPost))
	if router.count() != 0 {
		t.Fatalf("rate limited command must not be routed")
	}
}

func TestIssuerOfPrefersUser(t *testing.T) {
	body := `{"update_id":1,"message":{"message_id":1,"date":1,"from":{"id":77,"is_bot":false,"first_name":"Bob"},"chat":{"id":1,"type":"group"},"text":"/view_1"}}`
	_, inbound, err := decodeUpdate(strings.NewReader(body), 1<<20)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if inbound.Issuer != "77" {
		t.Fatalf("user without username must be identified by id, got %q", inbound.Issuer)
	}

	var malformed *MalformedPayloadError
	if _, _, err := decodeUpdate(strings.NewReader(`{}`), 1<<20); !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedPayloadError, got %v", err)
	}
}
