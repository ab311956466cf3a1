// services/notifier.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/maous26/GG2-sub000/models"
	"github.com/maous26/GG2-sub000/scraper"
	"github.com/maous26/GG2-sub000/utils"
)

// Notifier hands {recipient, deal} pairs to the email service.
type Notifier interface {
	Notify(ctx context.Context, notifications []models.Notification) error
}

// WebhookNotifier POSTs the notification list as JSON.
type WebhookNotifier struct {
	url    string
	client scraper.HTTPClient
}

func NewWebhookNotifier(url string, timeout time.Duration, client scraper.HTTPClient) *WebhookNotifier {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &WebhookNotifier{url: url, client: client}
}

type webhookPayload struct {
	Notifications []models.Notification `json:"notifications"`
	SentAt        time.Time             `json:"sentAt"`
}

func (w *WebhookNotifier) Notify(ctx context.Context, notifications []models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	body, err := json.Marshal(webhookPayload{Notifications: notifications, SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode notifications: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("notification request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification service: %w", &scraper.StatusError{Code: resp.StatusCode})
	}
	return nil
}

// LogNotifier only logs. Used when no webhook is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: utils.OrNop(logger).With("component", "notifier")}
}

func (l *LogNotifier) Notify(_ context.Context, notifications []models.Notification) error {
	for _, n := range notifications {
		l.logger.Info("deal notification",
			"recipient", n.Recipient.Email,
			"segment", n.Recipient.Segment,
			"route", n.Deal.Origin+"-"+n.Deal.Destination,
			"price", n.Deal.CurrentPrice,
			"discount", n.Deal.DiscountPercentage)
	}
	return nil
}
