package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ivankudzin/brokerreviews/internal/metrics"
	modsvc "github.com/ivankudzin/brokerreviews/internal/services/moderation"
	"github.com/ivankudzin/brokerreviews/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/brokerreviews/internal/transport/http/errors"
)

const defaultMaxWebhookBody = 1 << 20

// MalformedPayloadError describes a webhook body that is not a usable Telegram update.
type MalformedPayloadError struct {
	Reason string
	Err    error
}

func (e *MalformedPayloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed webhook payload: %s: %v", e.Reason, e.Err)
	}
	return "malformed webhook payload: " + e.Reason
}

func (e *MalformedPayloadError) Unwrap() error {
	return e.Err
}

type CommandRouter interface {
	Route(ctx context.Context, in modsvc.Inbound) (modsvc.Result, error)
}

type UpdateDeduplicator interface {
	MarkProcessed(ctx context.Context, updateID int64) (bool, error)
}

type CommandLimiter interface {
	AllowCommand(ctx context.Context, issuer string) (int64, bool, error)
}

type WebhookConfig struct {
	Secret       string
	Enabled      bool
	MaxBodyBytes int64
}

// WebhookHandler receives Telegram updates. Telegram redelivers anything that is not answered
// with 2xx, so every request that reaches the handler with the right secret gets 200, including
// bodies it cannot use.
type WebhookHandler struct {
	router  CommandRouter
	dedup   UpdateDeduplicator
	limiter CommandLimiter
	cfg     WebhookConfig
	logger  *zap.Logger
}

func NewWebhookHandler(router CommandRouter, dedup UpdateDeduplicator, limiter CommandLimiter, cfg WebhookConfig, logger *zap.Logger) *WebhookHandler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxWebhookBody
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WebhookHandler{
		router:  router,
		dedup:   dedup,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger,
	}
}

func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Secret != "" {
		got := chi.URLParam(r, "secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.cfg.Secret)) != 1 {
			metrics.WebhookUpdates.WithLabelValues("bad_secret").Inc()
			writeNotFound(w, "NOT_FOUND", "not found")
			return
		}
	}

	updateID, inbound, err := decodeUpdate(io.LimitReader(r.Body, h.cfg.MaxBodyBytes+1), h.cfg.MaxBodyBytes)
	if err != nil {
		h.logger.Debug("telegram webhook payload ignored", zap.Error(err))
		h.ack(w, "malformed")
		return
	}

	if !h.cfg.Enabled || h.router == nil {
		h.ack(w, "disabled")
		return
	}

	ctx := r.Context()
	if h.dedup != nil {
		first, err := h.dedup.MarkProcessed(ctx, updateID)
		if err != nil {
			h.logger.Warn("telegram update dedup failed, processing anyway", zap.Int64("update_id", updateID), zap.Error(err))
		} else if !first {
			h.ack(w, "duplicate")
			return
		}
	}

	if h.limiter != nil && inbound.Issuer != "" {
		if _, isCommand := modsvc.ParseCommand(inbound.Text); isCommand {
			retryAfter, allowed, err := h.limiter.AllowCommand(ctx, inbound.Issuer)
			if err != nil {
				h.logger.Warn("moderation command rate check failed", zap.String("issuer", inbound.Issuer), zap.Error(err))
			} else if !allowed {
				h.logger.Info("moderation command rate limited",
					zap.String("issuer", inbound.Issuer),
					zap.Int64("retry_after_sec", retryAfter),
				)
				h.ack(w, "rate_limited")
				return
			}
		}
	}

	result, err := h.router.Route(ctx, inbound)
	if err != nil {
		var unknown *modsvc.UnknownReviewError
		if errors.As(err, &unknown) {
			h.logger.Info("moderation command for unknown review", zap.Int64("review_id", unknown.ReviewID), zap.Int64("update_id", updateID))
		} else {
			h.logger.Error("route moderation command failed", zap.Int64("update_id", updateID), zap.Error(err))
		}
		h.ack(w, "route_error")
		return
	}

	if result.Outcome != modsvc.OutcomeIgnored {
		h.logger.Info("moderation command handled",
			zap.Int64("update_id", updateID),
			zap.Int64("review_id", result.Command.ReviewID),
			zap.String("outcome", string(result.Outcome)),
			zap.Bool("reply_failed", result.NotifyErr != nil),
		)
	}
	h.ack(w, string(result.Outcome))
}

func (h *WebhookHandler) ack(w http.ResponseWriter, result string) {
	metrics.WebhookUpdates.WithLabelValues(result).Inc()
	httperrors.Write(w, http.StatusOK, dto.WebhookAck{OK: true})
}

func decodeUpdate(body io.Reader, limit int64) (int64, modsvc.Inbound, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return 0, modsvc.Inbound{}, &MalformedPayloadError{Reason: "read body", Err: err}
	}
	if int64(len(raw)) > limit {
		return 0, modsvc.Inbound{}, &MalformedPayloadError{Reason: "body exceeds " + strconv.FormatInt(limit, 10) + " bytes"}
	}

	var envelope struct {
		UpdateID *int64 `json:"update_id"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return 0, modsvc.Inbound{}, &MalformedPayloadError{Reason: "decode json", Err: err}
	}
	if envelope.UpdateID == nil {
		return 0, modsvc.Inbound{}, &MalformedPayloadError{Reason: "update_id is missing"}
	}

	var update tgbotapi.Update
	if err := json.Unmarshal(raw, &update); err != nil {
		return 0, modsvc.Inbound{}, &MalformedPayloadError{Reason: "decode update", Err: err}
	}

	msg := update.Message
	if msg == nil {
		msg = update.ChannelPost
	}
	if msg == nil {
		return 0, modsvc.Inbound{}, &MalformedPayloadError{Reason: "update carries no message"}
	}
	if strings.TrimSpace(msg.Text) == "" {
		return 0, modsvc.Inbound{}, &MalformedPayloadError{Reason: "message has no text"}
	}

	inbound := modsvc.Inbound{
		Text:   msg.Text,
		Issuer: issuerOf(msg),
	}
	if msg.Date > 0 {
		inbound.ReceivedAt = time.Unix(int64(msg.Date), 0).UTC()
	}
	return *envelope.UpdateID, inbound, nil
}

// issuerOf names who sent the message. Channel posts have no sender user unless the channel
// signs messages, so the signature and the sender chat are used there.
func issuerOf(msg *tgbotapi.Message) string {
	if msg.From != nil {
		if msg.From.UserName != "" {
			return msg.From.UserName
		}
		return strconv.FormatInt(msg.From.ID, 10)
	}
	if sig := strings.TrimSpace(msg.AuthorSignature); sig != "" {
		return sig
	}
	if msg.SenderChat != nil {
		if msg.SenderChat.UserName != "" {
			return msg.SenderChat.UserName
		}
		if msg.SenderChat.Title != "" {
			return msg.SenderChat.Title
		}
		return strconv.FormatInt(msg.SenderChat.ID, 10)
	}
	if msg.Chat != nil && msg.Chat.UserName != "" {
		return msg.Chat.UserName
	}
	return ""
}
