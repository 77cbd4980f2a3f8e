package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestCounter conta o total de requisições HTTP.
	HTTPRequestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventario_http_requests_total",
			Help: "Total number of HTTP requests processed.",
		},
		[]string{"method", "path", "status_code"},
	)

	// HTTPRequestDuration observa a duração das requisições HTTP.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inventario_http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// AppInfo expõe informações sobre a aplicação.
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "inventario_app_info",
			Help: "Information about the Inventario backend.",
		},
		[]string{"version"},
	)

	// PasswordResetEvents conta as etapas do fluxo de recuperação de senha por resultado.
	// stage: request, validate, confirm, change. outcome: ok, not_found, cooldown, invalid, error.
	PasswordResetEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventario_password_reset_events_total",
			Help: "Password reset workflow events by stage and outcome.",
		},
		[]string{"stage", "outcome"},
	)

	// PasswordResetTokensSwept conta os tokens expirados removidos pela limpeza periódica.
	PasswordResetTokensSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inventario_password_reset_tokens_swept_total",
			Help: "Expired password reset tokens deleted by the cleanup sweep.",
		},
	)
)

// SetAppInfo publica a versão em execução.
func SetAppInfo(version string) {
	if version == "" {
		version = "unknown"
	}
	AppInfo.Reset()
	AppInfo.With(prometheus.Labels{"version": version}).Set(1)
}

// ObservePasswordReset incrementa PasswordResetEvents.
func ObservePasswordReset(stage, outcome string) {
	PasswordResetEvents.WithLabelValues(stage, outcome).Inc()
}
