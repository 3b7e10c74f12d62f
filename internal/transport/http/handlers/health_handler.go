package handlers

import (
	"net/http"

	"github.com/ivankudzin/brokerreviews/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/brokerreviews/internal/transport/http/errors"
)

type HealthHandler struct {
	pipelineEnabled bool
	store           string
}

func NewHealthHandler(pipelineEnabled bool, store string) *HealthHandler {
	return &HealthHandler{pipelineEnabled: pipelineEnabled, store: store}
}

func (h *HealthHandler) Handle(w http.ResponseWriter, _ *http.Request) {
	pipeline := "disabled"
	if h.pipelineEnabled {
		pipeline = "enabled"
	}
	httperrors.Write(w, http.StatusOK, dto.HealthResponse{
		Status:   "ok",
		Pipeline: pipeline,
		Store:    h.store,
	})
}
