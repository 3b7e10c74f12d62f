package apiapp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"github.com/ivankudzin/brokerreviews/internal/config"
	authsvc "github.com/ivankudzin/brokerreviews/internal/services/auth"
	"github.com/ivankudzin/brokerreviews/internal/transport/http/dto"
)

type fakeTelegram struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeTelegram) serve(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Mod","username":"reviews_mod_bot"}}`))
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		f.mu.Lock()
		f.sent = append(f.sent, r.PostForm.Get("text"))
		id := len(f.sent)
		f.mu.Unlock()
		_, _ = fmt.Fprintf(w, `{"ok":true,"result":{"message_id":%d,"date":0,"chat":{"id":-100,"type":"channel"}}}`, id)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
	}
}

func (f *fakeTelegram) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func testConfig(t *testing.T) config.Config {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	cfg := config.Default()
	cfg.Redis.Addr = mr.Addr()
	cfg.Auth.JWTSecret = "test-secret"
	return cfg
}

func newTestApp(t *testing.T, cfg config.Config) *App {
	t.Helper()

	app, err := New(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = app.Shutdown(ctx)
	})
	return app
}

func serviceToken(t *testing.T, secret string) string {
	t.Helper()

	token, _, err := authsvc.NewJWTManager(secret, time.Hour).GenerateServiceToken("wordpress", "content_system")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func TestAppStartsDisabledWithoutTelegramCredentials(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	rr := httptest.NewRecorder()
	app.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected health status: %d", rr.Code)
	}
	var health dto.HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Pipeline != "disabled" || health.Store != "memory" {
		t.Fatalf("unexpected health: %+v", health)
	}

	rr = httptest.NewRecorder()
	app.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/telegram", strings.NewReader(`{"update_id":1}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("webhook must acknowledge even when disabled, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	app.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected metrics status: %d", rr.Code)
	}
}

func TestAppModerationFlow(t *testing.T) {
	tg := &fakeTelegram{}
	ts := httptest.NewServer(http.HandlerFunc(tg.serve))
	t.Cleanup(ts.Close)

	cfg := testConfig(t)
	cfg.Telegram.Token = "123:abc"
	cfg.Telegram.ChannelID = "@broker_reviews_mod"
	cfg.Telegram.APIEndpoint = ts.URL + "/bot%s/%s"
	cfg.Telegram.WebhookSecret = "hook-secret"
	app := newTestApp(t, cfg)
	handler := app.Handler()
	token := serviceToken(t, cfg.Auth.JWTSecret)

	submit := httptest.NewRequest(http.MethodPost, "/internal/reviews", strings.NewReader(
		`{"id":42,"broker_name":"Acme Markets","author":"trader_joe","excerpt":"Good (mostly).","review_link":"https://brokerreviews.example/r/42","rating":4}`,
	))
	submit.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, submit)
	if rr.Code != http.StatusCreated {
		t.Fatalf("submit: unexpected status %d body=%s", rr.Code, rr.Body.String())
	}

	update := `{"update_id":555,"channel_post":{"message_id":9,"date":1767225600,"chat":{"id":-100,"type":"channel"},"author_signature":"Alice","text":"/approve_42"}}`
	for i := 0; i < 2; i++ {
		rr = httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/telegram/hook-secret", strings.NewReader(update)))
		if rr.Code != http.StatusOK {
			t.Fatalf("webhook: unexpected status %d", rr.Code)
		}
	}

	sent := tg.messages()
	if len(sent) != 2 {
		t.Fatalf("expected announcement and one confirmation, got %d: %v", len(sent), sent)
	}
	if !strings.Contains(sent[0], "/approve\\_42") || !strings.Contains(sent[1], "approved") {
		t.Fatalf("unexpected messages: %v", sent)
	}

	get := httptest.NewRequest(http.MethodGet, "/internal/reviews/42", nil)
	get.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, get)
	var review dto.ReviewResponse
	if err := json.NewDecoder(rr.Body).Decode(&review); err != nil {
		t.Fatalf("decode review: %v", err)
	}
	if review.State != "PUBLISHED" || review.DecidedBy != "Alice" {
		t.Fatalf("unexpected review after approve: %+v", review)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/telegram", strings.NewReader(update)))
	if rr.Code == http.StatusOK {
		t.Fatalf("webhook without secret must not be served when a secret is configured")
	}
}

func TestInternalRoutesRequireServiceToken(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	rr := httptest.NewRecorder()
	app.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/internal/reviews/1", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}

func TestAppServesWhileTelegramIsUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Telegram.Token = "123:abc"
	cfg.Telegram.ChannelID = "@broker_reviews_mod"
	cfg.Telegram.APIEndpoint = "http://127.0.0.1:1/bot%s/%s"
	cfg.Telegram.RequestTimeout = time.Second
	cfg.Moderation.NotifyMaxElapsed = time.Second
	app := newTestApp(t, cfg)

	rr := httptest.NewRecorder()
	app.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected health status: %d", rr.Code)
	}
	var health dto.HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Pipeline != "enabled" {
		t.Fatalf("configured pipeline must stay enabled: %+v", health)
	}

	submit := httptest.NewRequest(http.MethodPost, "/internal/reviews", strings.NewReader(
		`{"id":7,"broker_name":"Acme Markets","author":"trader_joe","excerpt":"ok","review_link":"https://brokerreviews.example/r/7","rating":3}`,
	))
	submit.Header.Set("Authorization", "Bearer "+serviceToken(t, cfg.Auth.JWTSecret))
	rr = httptest.NewRecorder()
	app.Handler().ServeHTTP(rr, submit)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("stored but unannounced review must be 202, got %d body=%s", rr.Code, rr.Body.String())
	}
}
