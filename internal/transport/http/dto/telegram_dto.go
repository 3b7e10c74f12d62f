package dto

import "time"

type WebhookAck struct {
	OK bool `json:"ok"`
}

type WebhookStatusResponse struct {
	URL                  string     `json:"url"`
	HasCustomCertificate bool       `json:"has_custom_certificate"`
	PendingUpdateCount   int        `json:"pending_update_count"`
	LastErrorDate        *time.Time `json:"last_error_date,omitempty"`
	LastErrorMessage     string     `json:"last_error_message,omitempty"`
	MaxConnections       int        `json:"max_connections"`
	ExpectedURL          string     `json:"expected_url"`
	Registered           bool       `json:"registered"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Pipeline string `json:"pipeline"`
	Store    string `json:"store"`
}
