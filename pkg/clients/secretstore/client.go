// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package secretstore

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/AMD-AGI/primus-papi/pkg/errors"
)

const defaultTimeout = 15 * time.Second

// Client talks to the key/value secret store. The service token can read
// and write the whole root; per-user scoping is enforced by the broker in
// front of this client, never here.
type Client struct {
	api *resty.Client
}

type kvReadResponse struct {
	Data map[string]interface{} `json:"data"`
}

type kvListResponse struct {
	Data struct {
		Keys []string `json:"keys"`
	} `json:"data"`
}

func NewClient(address, token string) *Client {
	api := resty.New().
		SetBaseURL(strings.TrimSuffix(address, "/")).
		SetTimeout(defaultTimeout).
		SetHeader("X-Vault-Token", token).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
				return false
			}
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	return &Client{api: api}
}

func translate(resp *resty.Response, err error, operation string) error {
	if err != nil {
		return errors.NewBackendError(fmt.Sprintf("secret store %s failed: %v", operation, err)).WithError(err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return errors.NewNotFound(fmt.Sprintf("secret store %s: not found", operation))
	}
	if resp.IsError() {
		return errors.NewBackendError(resp.String())
	}
	return nil
}

// List returns the keys directly under a path prefix.
func (c *Client) List(ctx context.Context, path string) ([]string, error) {
	result := &kvListResponse{}
	resp, err := c.api.R().
		SetContext(ctx).
		SetQueryParam("list", "true").
		SetResult(result).
		Get("/v1" + path)
	if tErr := translate(resp, err, "list"); tErr != nil {
		if errors.IsNotFound(tErr) {
			return []string{}, nil
		}
		return nil, tErr
	}
	return result.Data.Keys, nil
}

// Get reads the secret value stored at path.
func (c *Client) Get(ctx context.Context, path string) (map[string]interface{}, error) {
	result := &kvReadResponse{}
	resp, err := c.api.R().
		SetContext(ctx).
		SetResult(result).
		Get("/v1" + path)
	if tErr := translate(resp, err, "read"); tErr != nil {
		return nil, tErr
	}
	return result.Data, nil
}

// Put writes a secret value. Not retried.
func (c *Client) Put(ctx context.Context, path string, value map[string]interface{}) error {
	resp, err := c.api.R().
		SetContext(ctx).
		SetBody(value).
		Post("/v1" + path)
	return translate(resp, err, "write")
}

// Delete removes the secret at path. Not retried.
func (c *Client) Delete(ctx context.Context, path string) error {
	resp, err := c.api.R().
		SetContext(ctx).
		Delete("/v1" + path)
	return translate(resp, err, "delete")
}
