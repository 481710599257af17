package badge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"ehalisaha-notifier/pkg/ledger"
)

// Renderer publishes the badge state somewhere visible. A count of zero or
// less means the badge is hidden.
type Renderer interface {
	Render(ctx context.Context, facilityID int64, summary *ledger.ScanSummary) error
}

// LogRenderer writes the badge state to the log. Used in local development.
type LogRenderer struct {
	logger *slog.Logger
}

// NewLogRenderer creates a log-backed renderer.
func NewLogRenderer(logger *slog.Logger) *LogRenderer {
	return &LogRenderer{logger: logger}
}

// Render logs the badge state instead of displaying it.
func (r *LogRenderer) Render(_ context.Context, facilityID int64, summary *ledger.ScanSummary) error {
	if summary.NewCount <= 0 {
		r.logger.Info("BADGE hidden", "facility_id", facilityID)
		return nil
	}
	r.logger.Info("BADGE",
		"facility_id", facilityID,
		"new_count", summary.NewCount,
		"earliest_new_date", summary.EarliestNewDate)
	return nil
}

// WebhookRenderer POSTs the badge state to a configured URL, so a front-end
// or chat integration can mirror the counter.
type WebhookRenderer struct {
	client *http.Client
	logger *slog.Logger
	url    string
}

// NewWebhookRenderer creates a webhook-backed renderer.
func NewWebhookRenderer(client *http.Client, url string, logger *slog.Logger) *WebhookRenderer {
	return &WebhookRenderer{client: client, logger: logger, url: url}
}

type webhookPayload struct {
	FacilityID      int64  `json:"facility_id"`
	NewCount        int64  `json:"new_count"`
	Visible         bool   `json:"visible"`
	EarliestNewDate string `json:"earliest_new_date,omitempty"`
}

// Render delivers the badge state to the webhook.
func (r *WebhookRenderer) Render(ctx context.Context, facilityID int64, summary *ledger.ScanSummary) error {
	payload, err := json.Marshal(webhookPayload{
		FacilityID:      facilityID,
		NewCount:        summary.NewCount,
		Visible:         summary.NewCount > 0,
		EarliestNewDate: summary.EarliestNewDate,
	})
	if err != nil {
		return fmt.Errorf("marshal badge payload: %w", err)
	}

	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
			if err != nil {
				return fmt.Errorf("create request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := r.client.Do(req)
			if err != nil {
				r.logger.Warn("Badge webhook failed, will retry", "url", r.url, "error", err)
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					r.logger.Warn("Failed to close webhook response body", "error", closeErr)
				}
			}()

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return fmt.Errorf("webhook HTTP %d", resp.StatusCode)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(10*time.Second),
		retry.MaxJitter(time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			r.logger.Info("Retrying badge webhook after error", "attempt", n, "error", retryErr)
		}),
	)
	if err != nil {
		return fmt.Errorf("after retries: %w", err)
	}
	return nil
}
