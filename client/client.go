// Package client is the REST client for the reservation backend.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"ehalisaha-notifier/pkg/ledger"
)

// StatusError indicates a non-2xx backend response.
type StatusError struct {
	URL  string
	Body string
	Code int
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP %d: %s: %s", e.Code, e.URL, e.Body)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.URL)
}

// IsAuthError checks if an error is a 401/403 response (bad or missing credentials).
func IsAuthError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && (se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden)
}

// IsNotFound checks if an error is a 404 response.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Client talks to the backend with Basic authentication.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	authToken  string // base64(user:pass), empty when unauthenticated
}

// New creates a backend client. Credentials may be empty for public endpoints.
func New(httpClient *http.Client, baseURL, user, pass string, logger *slog.Logger) *Client {
	c := &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
	}
	if user != "" {
		c.authToken = base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
	}
	return c
}

// LedgerDay fetches the reservation ledger for one facility and date.
// pitchID filters to a single pitch when non-zero.
func (c *Client) LedgerDay(ctx context.Context, facilityID int64, date string, pitchID int64) ([]*ledger.Reservation, error) {
	q := url.Values{}
	q.Set("facilityId", strconv.FormatInt(facilityID, 10))
	q.Set("date", date)
	if pitchID != 0 {
		q.Set("pitchId", strconv.FormatInt(pitchID, 10))
	}

	var rows []*ledger.Reservation
	if err := c.getJSON(ctx, "/api/owner/reservation-ledger?"+q.Encode(), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// SetPlayerPaid marks a player's payment flag on a reservation.
// playerRef is the player id when known, otherwise the zero-based index.
func (c *Client) SetPlayerPaid(ctx context.Context, reservationID, playerRef int64, paid bool) error {
	path := fmt.Sprintf("/api/owner/reservation-ledger/%d/players/%d", reservationID, playerRef)
	body, err := json.Marshal(map[string]bool{"paid": paid})
	if err != nil {
		return fmt.Errorf("marshal paid update: %w", err)
	}
	return c.do(ctx, http.MethodPatch, path, body, nil)
}

// Facilities lists the authenticated owner's facilities.
func (c *Client) Facilities(ctx context.Context) ([]*ledger.Facility, error) {
	var out []*ledger.Facility
	if err := c.getJSON(ctx, "/api/owner/facilities", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Pitches lists the pitches of a facility.
func (c *Client) Pitches(ctx context.Context, facilityID int64) ([]*ledger.Pitch, error) {
	var out []*ledger.Pitch
	if err := c.getJSON(ctx, fmt.Sprintf("/api/public/facilities/%d/pitches", facilityID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// do performs one backend call with retries. Auth failures and 404s are not
// retried; everything else backs off with jitter until the attempts run out.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	reqURL := c.baseURL + path

	err := retry.Do(
		func() error {
			var reader io.Reader = http.NoBody
			if body != nil {
				reader = bytes.NewReader(body)
			}

			req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
			if err != nil {
				return fmt.Errorf("create request: %w", err)
			}
			if c.authToken != "" {
				req.Header.Set("Authorization", "Basic "+c.authToken)
			}
			if body != nil {
				req.Header.Set("Content-Type", "application/json")
			}

			startTime := time.Now()
			resp, err := c.httpClient.Do(req)
			duration := time.Since(startTime)

			if err != nil {
				c.logger.Warn("Backend request failed, will retry",
					"method", method,
					"url", reqURL,
					"duration_ms", duration.Milliseconds(),
					"error", err)
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					c.logger.Warn("Failed to close response body", "error", closeErr)
				}
			}()

			c.logger.Debug("Backend request completed",
				"method", method,
				"url", reqURL,
				"status_code", resp.StatusCode,
				"duration_ms", duration.Milliseconds())

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
				se := &StatusError{Code: resp.StatusCode, URL: reqURL, Body: string(bytes.TrimSpace(msg))}
				if IsAuthError(se) || IsNotFound(se) {
					return retry.Unrecoverable(se)
				}
				c.logger.Warn("Backend returned non-OK status, will retry", "status_code", resp.StatusCode, "url", reqURL)
				return se
			}

			if out == nil || resp.StatusCode == http.StatusNoContent {
				return nil
			}

			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode response: %w", err))
			}
			return nil
		},
		retry.Attempts(5),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(2*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("Retrying backend call after error", "attempt", n, "url", reqURL, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("after retries: %w", err)
	}
	return nil
}
