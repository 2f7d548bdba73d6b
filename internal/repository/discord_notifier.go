package repository

import (
	"context"
	"fmt"
	"time"

	drepo "StockWatch/internal/domain/repository"
	xhttp "StockWatch/pkg/http"
	"StockWatch/pkg/logger"
)

// DiscordNotifier posts plain-text messages to a Discord webhook.
type DiscordNotifier struct {
	webhookURL string
	http       *xhttp.Client
	log        *logger.Logger
}

func NewDiscordNotifier(webhookURL string, timeout time.Duration, log *logger.Logger) drepo.Notifier {
	return &DiscordNotifier{
		webhookURL: webhookURL,
		http:       xhttp.NewClient(xhttp.WithTimeout(timeout)),
		log:        log,
	}
}

// Notify delivers one message. The webhook URL never appears in errors or logs.
func (n *DiscordNotifier) Notify(ctx context.Context, message string) error {
	resp, err := n.http.SendRequest(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    n.webhookURL,
		Body:   map[string]string{"content": message},
	})
	if err != nil {
		return fmt.Errorf("discord webhook: request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook: status %d", resp.StatusCode)
	}

	n.log.Debug("notification delivered", logger.Int("status", resp.StatusCode))
	return nil
}

// NoopNotifier is used when notifications are disabled by configuration.
type NoopNotifier struct{}

func NewNoopNotifier() drepo.Notifier { return NoopNotifier{} }

func (NoopNotifier) Notify(ctx context.Context, message string) error { return nil }
