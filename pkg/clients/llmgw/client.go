// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package llmgw

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AMD-AGI/primus-papi/pkg/errors"
)

// Client forwards chat requests to the hosted LLM gateway with the
// server-side API key. It deliberately uses net/http instead of the shared
// resty stack: responses are server-sent event streams that must be copied
// through unbuffered.
type Client struct {
	gatewayURL string
	apiKey     string
	httpClient *http.Client
}

func NewClient(gatewayURL, apiKey string) *Client {
	return &Client{
		gatewayURL: strings.TrimSuffix(gatewayURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{
			// No overall timeout: streams run until the model finishes.
			// Only the wait for response headers is bounded.
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
	}
}

// Forward proxies one request body to the gateway path and streams the
// response into w unchanged. The caller's identity never reaches the
// gateway; the server-side key does.
func (c *Client) Forward(w http.ResponseWriter, r *http.Request, path string) error {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, c.gatewayURL+path, r.Body)
	if err != nil {
		return errors.NewInternalError("failed to build gateway request").WithError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if accept := r.Header.Get("Accept"); accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewBackendError("LLM gateway unreachable").WithError(err)
	}
	defer resp.Body.Close()

	for _, header := range []string{"Content-Type", "Cache-Control"} {
		if value := resp.Header.Get(header); value != "" {
			w.Header().Set(header, value)
		}
	}
	w.WriteHeader(resp.StatusCode)

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				return nil // client went away, nothing left to do
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return nil // stream cut mid-flight; status already sent
		}
	}
}
