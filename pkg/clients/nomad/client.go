// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package nomad

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/AMD-AGI/primus-papi/pkg/errors"
)

const (
	defaultTimeout = 15 * time.Second
	// bulkTimeout covers list endpoints that can return the whole cluster.
	bulkTimeout = 60 * time.Second
)

// Client wraps the scheduler's HTTP API. Reads retry with exponential
// backoff up to three attempts; writes are never retried, the caller must
// re-submit. Bulk list endpoints go through a second client with a longer
// deadline.
type Client struct {
	api     *resty.Client
	bulk    *resty.Client
	address string
}

type TLSFiles struct {
	CACert     string
	ClientCert string
	ClientKey  string
}

func NewClient(address string, tlsFiles TLSFiles) (*Client, error) {
	var tlsConfig *tls.Config
	if tlsFiles.CACert != "" {
		pem, err := os.ReadFile(tlsFiles.CACert)
		if err != nil {
			return nil, fmt.Errorf("failed to read scheduler CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no usable certificates in %s", tlsFiles.CACert)
		}
		tlsConfig = &tls.Config{RootCAs: pool}
		if tlsFiles.ClientCert != "" && tlsFiles.ClientKey != "" {
			cert, err := tls.LoadX509KeyPair(tlsFiles.ClientCert, tlsFiles.ClientKey)
			if err != nil {
				return nil, fmt.Errorf("failed to load scheduler client certificate: %w", err)
			}
			tlsConfig.Certificates = []tls.Certificate{cert}
		}
	}

	return &Client{
		api:     newAPI(address, defaultTimeout, tlsConfig),
		bulk:    newAPI(address, bulkTimeout, tlsConfig),
		address: address,
	}, nil
}

func newAPI(address string, timeout time.Duration, tlsConfig *tls.Config) *resty.Client {
	api := resty.New().
		SetBaseURL(address).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if r == nil || r.Request == nil {
				return false
			}
			if r.Request.Method != http.MethodGet {
				return false
			}
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	if tlsConfig != nil {
		api.SetTLSClientConfig(tlsConfig)
	}
	return api
}

func (c *Client) Address() string {
	return c.address
}

// translate converts a transport-level failure or a non-2xx response into
// the platform taxonomy. Upstream messages pass through verbatim.
func translate(resp *resty.Response, err error, operation string) error {
	if err != nil {
		if isTimeout(err) {
			return errors.NewTimeout(fmt.Sprintf("scheduler %s timed out", operation)).WithError(err)
		}
		return errors.NewBackendError(fmt.Sprintf("scheduler %s failed: %v", operation, err)).WithError(err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return errors.NewNotFound(fmt.Sprintf("scheduler %s: not found", operation))
	}
	if resp.IsError() {
		return errors.NewBackendError(resp.String())
	}
	return nil
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	for err != nil {
		if te, ok := err.(timeouter); ok && te.Timeout() {
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
