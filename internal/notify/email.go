// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package notify delivers 2FA codes to users.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/holoauth/internal/auth"
)

const (
	// DefaultSubject is used when EmailConfig.Subject is empty.
	DefaultSubject = "Your login code"
	// DefaultEmailTimeout bounds a single gateway call.
	DefaultEmailTimeout = 10 * time.Second

	serverTokenHeader = "X-Postmark-Server-Token"
	messageStream     = "outbound"
	// maxErrorBody caps how much of a failed response is kept for the error.
	maxErrorBody = 4 << 10
)

// EmailConfig configures an EmailClient.
type EmailConfig struct {
	BaseURL string
	Sender  string
	Subject string
	// Token authenticates against the gateway. Never logged.
	Token   string
	Timeout time.Duration
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// EmailClient sends codes through a Postmark-compatible HTTP gateway.
type EmailClient struct {
	endpoint string
	sender   string
	subject  string
	token    string
	client   *http.Client
}

// NewEmailClient validates cfg and creates an EmailClient.
func NewEmailClient(cfg EmailConfig) (*EmailClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, oops.Code("EMAIL_CONFIG_INVALID").Errorf("email base url is required")
	}
	sender, err := auth.ParseEmail(cfg.Sender)
	if err != nil {
		return nil, oops.Code("EMAIL_CONFIG_INVALID").With("sender", cfg.Sender).Errorf("email sender must be a valid address")
	}

	subject := cfg.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultEmailTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	return &EmailClient{
		endpoint: base + "/email",
		sender:   sender.String(),
		subject:  subject,
		token:    cfg.Token,
		client:   client,
	}, nil
}

type emailRequest struct {
	From          string `json:"From"`
	To            string `json:"To"`
	Subject       string `json:"Subject"`
	HTMLBody      string `json:"HtmlBody"`
	TextBody      string `json:"TextBody"`
	MessageStream string `json:"MessageStream"`
}

// Notify implements auth.Notifier.
func (c *EmailClient) Notify(ctx context.Context, email auth.Email, code auth.TwoFACode) error {
	payload, err := json.Marshal(emailRequest{
		From:          c.sender,
		To:            email.String(),
		Subject:       c.subject,
		HTMLBody:      fmt.Sprintf("<p>Your login code is <strong>%s</strong>.</p>", code),
		TextBody:      fmt.Sprintf("Your login code is %s.", code),
		MessageStream: messageStream,
	})
	if err != nil {
		return oops.Code("EMAIL_SEND_FAILED").With("operation", "encode email").Wrap(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return oops.Code("EMAIL_SEND_FAILED").With("operation", "build request").Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(serverTokenHeader, c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return oops.Code("EMAIL_SEND_FAILED").With("operation", "post email").Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return oops.Code("EMAIL_REJECTED").
			With("status", resp.StatusCode).
			With("body", strings.TrimSpace(string(body))).
			Errorf("email gateway returned %s", resp.Status)
	}
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
