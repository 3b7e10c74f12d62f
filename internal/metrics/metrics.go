// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var WebhookUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "brokerreviews_webhook_updates_total",
	Help: "Telegram webhook deliveries by handling result",
}, []string{"result"})

var CommandOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "brokerreviews_moderation_commands_total",
	Help: "Routed moderation commands by kind and outcome",
}, []string{"kind", "outcome"})

var ChannelSends = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "brokerreviews_channel_sends_total",
	Help: "Messages sent to the moderation channel by message kind and result",
}, []string{"kind", "result"})

var InvalidMarkup = promauto.NewCounter(prometheus.CounterOpts{
	Name: "brokerreviews_invalid_markup_total",
	Help: "Rendered messages rejected by the MarkdownV2 check before sending",
})

var RemindersSent = promauto.NewCounter(prometheus.CounterOpts{
	Name: "brokerreviews_pending_reminders_total",
	Help: "Pending reviews re-announced by the reminder job",
})

func Handler() http.Handler {
	return promhttp.Handler()
}

// SendResult maps a send error to the result label used by ChannelSends.
func SendResult(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
