package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ivankudzin/brokerreviews/internal/infra/telegram"
	"github.com/ivankudzin/brokerreviews/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/brokerreviews/internal/transport/http/errors"
)

type WebhookStatusSource interface {
	GetWebhookStatus(ctx context.Context) (telegram.WebhookInfo, error)
}

type TelegramStatusHandler struct {
	source      WebhookStatusSource
	expectedURL string
	logger      *zap.Logger
}

func NewTelegramStatusHandler(source WebhookStatusSource, expectedURL string, logger *zap.Logger) *TelegramStatusHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramStatusHandler{source: source, expectedURL: expectedURL, logger: logger}
}

func (h *TelegramStatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		writeUnavailable(w, "TELEGRAM_DISABLED", "telegram client is not configured")
		return
	}

	info, err := h.source.GetWebhookStatus(r.Context())
	if err != nil {
		var cfgErr *telegram.ConfigurationError
		if errors.As(err, &cfgErr) || errors.Is(err, telegram.ErrNotInitialized) {
			writeUnavailable(w, "TELEGRAM_DISABLED", err.Error())
			return
		}
		h.logger.Warn("query telegram webhook status failed", zap.Error(err))
		httperrors.Write(w, http.StatusBadGateway, httperrors.APIError{
			Code:    "TELEGRAM_UNAVAILABLE",
			Message: "telegram webhook status is unavailable",
		})
		return
	}

	resp := dto.WebhookStatusResponse{
		URL:                  info.URL,
		HasCustomCertificate: info.HasCustomCertificate,
		PendingUpdateCount:   info.PendingUpdateCount,
		LastErrorMessage:     info.LastErrorMessage,
		MaxConnections:       info.MaxConnections,
		ExpectedURL:          h.expectedURL,
		Registered:           info.URL != "" && info.URL == h.expectedURL,
	}
	if !info.LastErrorDate.IsZero() {
		lastErr := info.LastErrorDate
		resp.LastErrorDate = &lastErr
	}

	httperrors.Write(w, http.StatusOK, resp)
}
