// Package notify delivers VIP arrival notifications to an outbound webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/JonMunkholm/checkin/internal/core"
)

// TimeLayout is how check-in times appear in the payload.
const TimeLayout = "2006/1/2 15:04:05"

// Message keys looked up in the catalog.
const (
	keySubject   = "VipSubject"
	keyNoCompany = "VipNoCompany"
)

// ErrUnexpectedStatus is returned when the endpoint answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("webhook returned unexpected status")

// Messages renders catalog entries. *i18n.Translator satisfies it.
type Messages interface {
	T(locale, key string, data map[string]any) string
}

// Payload is the JSON body posted to the endpoint.
type Payload struct {
	Subject string `json:"subject"`
	Name    string `json:"name"`
	Company string `json:"company"`
	Memo    string `json:"memo"`
	Time    string `json:"time"`
}

// Config configures a Webhook.
type Config struct {
	URL      string
	Timeout  time.Duration
	Location *time.Location
	Locale   string
	Client   *http.Client
	Now      func() time.Time
}

// Webhook posts VIP arrivals. A Webhook without a URL does nothing.
type Webhook struct {
	url      string
	client   *http.Client
	loc      *time.Location
	locale   string
	messages Messages
	now      func() time.Time
}

// NewWebhook creates a Webhook. Missing options get defaults: a 5s timeout,
// UTC and the catalog's default locale.
func NewWebhook(cfg Config, messages Messages) *Webhook {
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Webhook{
		url:      cfg.URL,
		client:   client,
		loc:      loc,
		locale:   cfg.Locale,
		messages: messages,
		now:      now,
	}
}

// Enabled reports whether an endpoint is configured.
func (w *Webhook) Enabled() bool {
	return w.url != ""
}

// NotifyVIP posts p to the endpoint. The response body is not read.
func (w *Webhook) NotifyVIP(ctx context.Context, p core.Participant) error {
	if !w.Enabled() {
		return nil
	}

	body, err := json.Marshal(w.payload(p))
	if err != nil {
		return fmt.Errorf("notify: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}
	return nil
}

func (w *Webhook) payload(p core.Participant) Payload {
	at := w.now()
	if p.CheckInTime != nil {
		at = *p.CheckInTime
	}
	company := p.Company
	if company == "" {
		company = w.messages.T(w.locale, keyNoCompany, nil)
	}
	return Payload{
		Subject: w.messages.T(w.locale, keySubject, nil),
		Name:    p.Name,
		Company: company,
		Memo:    p.Memo,
		Time:    at.In(w.loc).Format(TimeLayout),
	}
}
