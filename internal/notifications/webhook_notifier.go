package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	applog "inventario/backend/pkg/log"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxWebhookRetries = 3
	webhookRetryDelay = 5 * time.Second
)

// SecurityEventType identifica eventos de segurança da conta.
type SecurityEventType string

const (
	EventPasswordResetRequested SecurityEventType = "password_reset_requested"
	EventPasswordResetCompleted SecurityEventType = "password_reset_completed"
	EventPasswordChanged        SecurityEventType = "password_changed"
)

type SecurityEvent struct {
	Type       SecurityEventType
	UserID     uuid.UUID
	Email      string
	IP         string
	OccurredAt time.Time
}

// SecurityNotifier publica eventos de segurança (ex: canal do time de TI).
type SecurityNotifier interface {
	NotifySecurityEvent(ctx context.Context, event SecurityEvent) error
}

// GoogleChatMessage é a estrutura do payload para webhooks do Google Chat.
type GoogleChatMessage struct {
	Text string `json:"text"`
}

// WebhookNotifier envia eventos de segurança para uma URL de webhook.
type WebhookNotifier struct {
	url        string
	client     *http.Client
	retries    int
	retryDelay time.Duration
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:        url,
		client:     &http.Client{Timeout: 10 * time.Second},
		retries:    maxWebhookRetries,
		retryDelay: webhookRetryDelay,
	}
}

func formatSecurityEvent(event SecurityEvent) string {
	var action string
	switch event.Type {
	case EventPasswordResetRequested:
		action = "🔑 Código de recuperação solicitado"
	case EventPasswordResetCompleted:
		action = "✅ Senha redefinida via recuperação"
	case EventPasswordChanged:
		action = "🔄 Senha alterada pelo usuário"
	default:
		action = string(event.Type)
	}
	text := fmt.Sprintf("%s\nConta: *%s*\nQuando: %s", action, event.Email, event.OccurredAt.UTC().Format(time.RFC3339))
	if event.IP != "" {
		text += "\nIP: " + event.IP
	}
	return text
}

func (w *WebhookNotifier) NotifySecurityEvent(ctx context.Context, event SecurityEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	return w.send(ctx, GoogleChatMessage{Text: formatSecurityEvent(event)})
}

// send faz POST do payload com retentativas. Erros 4xx (exceto 429) não são repetidos.
func (w *WebhookNotifier) send(ctx context.Context, payload interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}
	log := applog.L.Named("WebhookNotifier")

	var lastErr error
	for i := 0; i < w.retries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.retryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(jsonData))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")

		resp, err := w.client.Do(req)
		if err != nil {
			log.Error("Error sending webhook", zap.Int("attempt", i+1), zap.Int("max_attempts", w.retries), zap.Error(err))
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			log.Info("Webhook sent successfully", zap.String("status", resp.Status))
			return nil
		}

		log.Warn("Webhook send failed",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", w.retries),
			zap.String("status", resp.Status),
			zap.ByteString("response_body", body))
		lastErr = fmt.Errorf("request failed with status %s", resp.Status)

		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			break
		}
	}
	return fmt.Errorf("failed to send webhook after %d attempts: %w", w.retries, lastErr)
}

type nopSecurityNotifier struct{}

func (nopSecurityNotifier) NotifySecurityEvent(ctx context.Context, event SecurityEvent) error {
	return nil
}

// NewSecurityNotifier devolve um WebhookNotifier, ou um notificador vazio quando a URL não está configurada.
func NewSecurityNotifier(url string) SecurityNotifier {
	if url == "" {
		return nopSecurityNotifier{}
	}
	return NewWebhookNotifier(url)
}
