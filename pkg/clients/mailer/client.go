// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/AMD-AGI/primus-papi/pkg/errors"
	"github.com/AMD-AGI/primus-papi/pkg/logger/log"
)

const defaultTimeout = 15 * time.Second

// Client posts notification mails through the HTTPS bridge. In dev mode
// sends are logged and dropped.
type Client struct {
	api     *resty.Client
	from    string
	enabled bool
}

type Message struct {
	To      []string `json:"to"`
	From    string   `json:"from"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

func NewClient(bridgeURL, token, from string, enabled bool) *Client {
	api := resty.New().
		SetBaseURL(strings.TrimSuffix(bridgeURL, "/")).
		SetTimeout(defaultTimeout).
		SetAuthToken(token)
	return &Client{api: api, from: from, enabled: enabled}
}

func (c *Client) Send(ctx context.Context, to []string, subject, body string) error {
	if !c.enabled {
		log.Debugf("mailer disabled, dropping mail to %v: %s", to, subject)
		return nil
	}
	resp, err := c.api.R().
		SetContext(ctx).
		SetBody(Message{To: to, From: c.from, Subject: subject, Body: body}).
		Post("/send")
	if err != nil {
		return errors.NewBackendError(fmt.Sprintf("mailer send failed: %v", err)).WithError(err)
	}
	if resp.IsError() {
		return errors.NewBackendError(resp.String())
	}
	return nil
}
