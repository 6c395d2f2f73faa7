// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/AMD-AGI/primus-papi/pkg/errors"
)

const defaultTimeout = 15 * time.Second

// Client covers the slice of the registry API the snapshot orchestrator
// needs: listing artifacts with labels, summing stored sizes, deleting
// tags. Authenticated as a robot account.
type Client struct {
	api     *resty.Client
	project string
}

// Artifact is one stored image with its tags and labels.
type Artifact struct {
	Digest   string    `json:"digest"`
	Size     int64     `json:"size"`
	PushTime time.Time `json:"push_time"`
	Tags     []Tag     `json:"tags"`
	Labels   []Label   `json:"labels"`
	// ExtraAttrs carries the image config; the snapshot labels live under
	// config.Labels.
	ExtraAttrs map[string]interface{} `json:"extra_attrs"`
}

type Tag struct {
	Name     string    `json:"name"`
	PushTime time.Time `json:"push_time"`
}

type Label struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func NewClient(address, project, robotUser, robotPassword string) *Client {
	api := resty.New().
		SetBaseURL(strings.TrimSuffix(address, "/")).
		SetTimeout(defaultTimeout).
		SetBasicAuth(robotUser, robotPassword).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
				return false
			}
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	return &Client{api: api, project: project}
}

func translate(resp *resty.Response, err error, operation string) error {
	if err != nil {
		return errors.NewBackendError(fmt.Sprintf("registry %s failed: %v", operation, err)).WithError(err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return errors.NewNotFound(fmt.Sprintf("registry %s: not found", operation))
	}
	if resp.IsError() {
		return errors.NewBackendError(resp.String())
	}
	return nil
}

// ListArtifacts returns every artifact of a repository, labels included.
// Repositories are user-namespaced, so the caller passes the user subject.
func (c *Client) ListArtifacts(ctx context.Context, repository string) ([]Artifact, error) {
	artifacts := []Artifact{}
	resp, err := c.api.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"with_tag":   "true",
			"with_label": "true",
			"page_size":  "100",
		}).
		SetResult(&artifacts).
		Get(fmt.Sprintf("/api/v2.0/projects/%s/repositories/%s/artifacts", c.project, encodeRepository(repository)))
	if tErr := translate(resp, err, "artifact list"); tErr != nil {
		if errors.IsNotFound(tErr) {
			return []Artifact{}, nil
		}
		return nil, tErr
	}
	return artifacts, nil
}

// StoredBytes sums the artifact sizes of one repository. Used for the
// per-user snapshot quota.
func (c *Client) StoredBytes(ctx context.Context, repository string) (int64, error) {
	artifacts, err := c.ListArtifacts(ctx, repository)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, artifact := range artifacts {
		total += artifact.Size
	}
	return total, nil
}

// DeleteTag removes one tag from a repository. Not retried.
func (c *Client) DeleteTag(ctx context.Context, repository, tag string) error {
	resp, err := c.api.R().
		SetContext(ctx).
		Delete(fmt.Sprintf("/api/v2.0/projects/%s/repositories/%s/artifacts/%s",
			c.project, encodeRepository(repository), tag))
	return translate(resp, err, "tag delete")
}

// encodeRepository double-escapes the repository path the way the registry
// API expects for nested repository names.
func encodeRepository(repository string) string {
	return url.PathEscape(url.PathEscape(repository))
}
