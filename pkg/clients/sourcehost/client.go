// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package sourcehost

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/go-github/v66/github"

	"github.com/AMD-AGI/primus-papi/pkg/errors"
)

const defaultTimeout = 15 * time.Second

// Client fetches raw files from catalog source repositories and queries
// the source-code host for the live attributes (license, last commit) that
// override stale metadata fields.
type Client struct {
	raw *resty.Client
	gh  *github.Client
}

// RepoInfo is the live source-host view of one repository.
type RepoInfo struct {
	License    string
	LastCommit time.Time
}

func NewClient(githubToken string) *Client {
	raw := resty.New().
		SetTimeout(defaultTimeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || (r != nil && r.StatusCode() >= http.StatusInternalServerError)
		})

	gh := github.NewClient(nil)
	if githubToken != "" {
		gh = gh.WithAuthToken(githubToken)
	}
	return &Client{raw: raw, gh: gh}
}

// RawFile fetches one file from a repository at a branch. GitHub repos go
// through the raw content host; anything else uses the forge's /raw/ path.
func (c *Client) RawFile(ctx context.Context, repoURL, branch, path string) ([]byte, error) {
	fileURL, err := rawFileURL(repoURL, branch, path)
	if err != nil {
		return nil, err
	}
	resp, err := c.raw.R().
		SetContext(ctx).
		Get(fileURL)
	if err != nil {
		return nil, errors.NewBackendError(fmt.Sprintf("fetching %s failed: %v", fileURL, err)).WithError(err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, errors.NewNotFound(fmt.Sprintf("%s has no %s on branch %s", repoURL, path, branch))
	}
	if resp.IsError() {
		return nil, errors.NewBackendError(resp.String())
	}
	return resp.Body(), nil
}

// RepoInfo queries the source host for live license and last-commit data.
// Only GitHub-hosted repositories are queried; anything else returns nil
// and the caller keeps the metadata document's own values.
func (c *Client) RepoInfo(ctx context.Context, repoURL, branch string) (*RepoInfo, error) {
	owner, repo, ok := splitGithubURL(repoURL)
	if !ok {
		return nil, nil
	}

	info := &RepoInfo{}
	repository, _, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, errors.NewBackendError(fmt.Sprintf("source host query for %s/%s failed: %v", owner, repo, err)).WithError(err)
	}
	if repository.License != nil {
		info.License = repository.License.GetSPDXID()
	}

	commits, _, err := c.gh.Repositories.ListCommits(ctx, owner, repo, &github.CommitsListOptions{
		SHA:         branch,
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err == nil && len(commits) > 0 {
		info.LastCommit = commits[0].GetCommit().GetCommitter().GetDate().Time
	}
	return info, nil
}

func rawFileURL(repoURL, branch, path string) (string, error) {
	parsed, err := url.Parse(strings.TrimSuffix(repoURL, "/"))
	if err != nil {
		return "", errors.NewInternalError(fmt.Sprintf("malformed repository URL %q", repoURL)).WithError(err)
	}
	if branch == "" {
		branch = "main"
	}
	if parsed.Host == "github.com" {
		return fmt.Sprintf("https://raw.githubusercontent.com%s/%s/%s",
			strings.TrimSuffix(parsed.Path, ".git"), branch, path), nil
	}
	return fmt.Sprintf("%s/raw/%s/%s", strings.TrimSuffix(repoURL, "/"), branch, path), nil
}

func splitGithubURL(repoURL string) (owner, repo string, ok bool) {
	parsed, err := url.Parse(repoURL)
	if err != nil || parsed.Host != "github.com" {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(strings.TrimSuffix(parsed.Path, ".git"), "/"), "/")
	if len(parts) < 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}
