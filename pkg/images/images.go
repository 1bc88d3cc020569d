/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package images validates algorithm containers against an image registry.
package images

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trustbloc/datatoken-provider-go/pkg/api/asset"
	logfields "github.com/trustbloc/datatoken-provider-go/internal/log"
)

var logger = logfields.New("provider-images")

// DefaultRegistryURL is the Docker Hub API.
const DefaultRegistryURL = "https://hub.docker.com"

const checksumPrefix = "sha256:"

// Container validation failures.
var (
	ErrMissingFields  = errors.New("missing_entrypoint_image_checksum")
	ErrChecksumPrefix = errors.New("checksum_prefix")
	ErrInvalidImage   = errors.New("invalid")
)

// Registry looks up image digests.
type Registry struct {
	baseURL    string
	httpClient *http.Client
}

// Option is a registry option.
type Option func(r *Registry)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(r *Registry) {
		r.httpClient = httpClient
	}
}

// New returns a registry client. An empty baseURL selects Docker Hub.
func New(baseURL string, opts ...Option) *Registry {
	if baseURL == "" {
		baseURL = DefaultRegistryURL
	}

	r := &Registry{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

type imageEntry struct {
	Digest string `json:"digest"`
}

// Validate checks that the container is complete and that its checksum is a digest of image:tag.
func (r *Registry) Validate(ctx context.Context, c *asset.Container) error {
	if c.Entrypoint == "" || c.Image == "" || c.Checksum == "" {
		return ErrMissingFields
	}

	if !strings.HasPrefix(c.Checksum, checksumPrefix) {
		return ErrChecksumPrefix
	}

	digests, err := r.digests(ctx, c.Image, c.Tag)
	if err != nil {
		logger.Info("image lookup failed", logfields.WithImage(c.Image), logfields.WithError(err))

		return errors.Wrap(ErrInvalidImage, err.Error())
	}

	for _, d := range digests {
		if strings.EqualFold(d, c.Checksum) {
			return nil
		}
	}

	return errors.Wrapf(ErrInvalidImage, "digest %s not listed for %s:%s", c.Checksum, c.Image, c.Tag)
}

func (r *Registry) digests(ctx context.Context, image, tag string) ([]string, error) {
	if !strings.Contains(image, "/") {
		image = "library/" + image
	}

	ns := strings.Replace(image, "/", "/repositories/", 1)
	u := fmt.Sprintf("%s/v2/namespaces/%s/tags/%s/images", r.baseURL, ns, url.PathEscape(tag))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create registry request")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "registry request")
	}

	defer func() {
		if e := resp.Body.Close(); e != nil {
			logger.Warnf("failed to close response body: %s", e)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry returned status %d", resp.StatusCode)
	}

	var entries []imageEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, errors.Wrap(err, "decode registry response")
	}

	digests := make([]string, 0, len(entries))
	for _, e := range entries {
		digests = append(digests, e.Digest)
	}

	return digests, nil
}
