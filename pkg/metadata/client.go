/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package metadata resolves asset documents from the metadata cache (Aquarius).
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trustbloc/datatoken-provider-go/pkg/api/asset"
	logfields "github.com/trustbloc/datatoken-provider-go/internal/log"
)

var logger = logfields.New("provider-metadata")

// ErrNotFound is returned when the metadata cache does not know the DID.
var ErrNotFound = errors.New("asset not found")

const (
	ddoPath        = "/api/aquarius/assets/ddo/"
	defaultTimeout = 10 * time.Second
	maxBodySize    = 10 << 20
)

// Client is an HTTP client of the metadata cache.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option is a client option.
type Option func(c *Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// New returns a client of the metadata cache at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// URL returns the base URL of the metadata cache.
func (c *Client) URL() string {
	return c.baseURL
}

// Resolve returns the asset document of did.
func (c *Client) Resolve(ctx context.Context, did string) (*asset.Asset, error) {
	if did == "" {
		return nil, errors.New("did is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+ddoPath+url.PathEscape(did), nil)
	if err != nil {
		return nil, errors.Wrap(err, "create metadata request")
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", did)
	}

	defer func() {
		if e := resp.Body.Close(); e != nil {
			logger.Warnf("failed to close response body: %s", e)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrapf(err, "read metadata of %s", did)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, errors.Wrapf(ErrNotFound, "%s", did)
	default:
		return nil, fmt.Errorf("resolve %s: metadata cache returned status %d", did, resp.StatusCode)
	}

	a := &asset.Asset{}
	if err := json.Unmarshal(body, a); err != nil {
		return nil, errors.Wrapf(err, "decode metadata of %s", did)
	}

	if a.ID == "" {
		return nil, errors.Wrapf(ErrNotFound, "%s", did)
	}

	logger.Debug("asset resolved", logfields.WithDID(did), logfields.WithURIString(c.baseURL))

	return a, nil
}
