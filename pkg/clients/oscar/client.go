// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package oscar

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/AMD-AGI/primus-papi/pkg/errors"
)

const defaultTimeout = 30 * time.Second

// Client talks to one function-platform cluster. The inference controller
// holds one client per VO endpoint.
type Client struct {
	api       *resty.Client
	clusterID string
}

// Service is the platform's native service definition.
type Service struct {
	Name         string            `json:"name"`
	ClusterID    string            `json:"cluster_id,omitempty"`
	Image        string            `json:"image"`
	CPU          string            `json:"cpu"`
	Memory       string            `json:"memory"`
	Script       string            `json:"script,omitempty"`
	AllowedUsers []string          `json:"allowed_users,omitempty"`
	Labels       map[string]string `json:"labels,omitempty"`
	Environment  Environment       `json:"environment"`
	Input        []StorageBinding  `json:"input,omitempty"`
	Output       []StorageBinding  `json:"output,omitempty"`
}

type Environment struct {
	Variables map[string]string `json:"Variables"`
}

type StorageBinding struct {
	Provider string `json:"storage_provider"`
	Path     string `json:"path"`
}

func NewClient(endpoint, clusterID, token string) *Client {
	api := resty.New().
		SetBaseURL(strings.TrimSuffix(endpoint, "/")).
		SetTimeout(defaultTimeout).
		SetAuthToken(token).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
				return false
			}
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	return &Client{api: api, clusterID: clusterID}
}

func (c *Client) ClusterID() string {
	return c.clusterID
}

func translate(resp *resty.Response, err error, operation string) error {
	if err != nil {
		return errors.NewBackendError(fmt.Sprintf("function platform %s failed: %v", operation, err)).WithError(err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return errors.NewNotFound(fmt.Sprintf("function platform %s: not found", operation))
	}
	if resp.IsError() {
		return errors.NewBackendError(resp.String())
	}
	return nil
}

func (c *Client) ListServices(ctx context.Context) ([]Service, error) {
	services := []Service{}
	resp, err := c.api.R().
		SetContext(ctx).
		SetResult(&services).
		Get("/system/services")
	if tErr := translate(resp, err, "service list"); tErr != nil {
		return nil, tErr
	}
	return services, nil
}

func (c *Client) GetService(ctx context.Context, name string) (*Service, error) {
	service := &Service{}
	resp, err := c.api.R().
		SetContext(ctx).
		SetResult(service).
		Get("/system/services/" + name)
	if tErr := translate(resp, err, "service read"); tErr != nil {
		return nil, tErr
	}
	return service, nil
}

func (c *Client) CreateService(ctx context.Context, service *Service) error {
	resp, err := c.api.R().
		SetContext(ctx).
		SetBody(service).
		Post("/system/services")
	return translate(resp, err, "service create")
}

func (c *Client) UpdateService(ctx context.Context, service *Service) error {
	resp, err := c.api.R().
		SetContext(ctx).
		SetBody(service).
		Put("/system/services")
	return translate(resp, err, "service update")
}

func (c *Client) DeleteService(ctx context.Context, name string) error {
	resp, err := c.api.R().
		SetContext(ctx).
		Delete("/system/services/" + name)
	return translate(resp, err, "service delete")
}

func (c *Client) ServiceLogs(ctx context.Context, name string) (string, error) {
	resp, err := c.api.R().
		SetContext(ctx).
		Get("/system/logs/" + name)
	if tErr := translate(resp, err, "service logs"); tErr != nil {
		return "", tErr
	}
	return resp.String(), nil
}
