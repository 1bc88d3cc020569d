/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package eligibility

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/trustbloc/datatoken-provider-go/pkg/api/asset"
)

const (
	rbacEventType  = "consume"
	rbacComponent  = "provider"
	defaultTimeout = 10 * time.Second
)

// RBACClient asks an external role based access control server for permission.
type RBACClient struct {
	url        string
	httpClient *http.Client
}

type rbacRequest struct {
	EventType   string          `json:"eventType"`
	Component   string          `json:"component"`
	Credentials rbacCredentials `json:"credentials"`
	DID         string          `json:"did"`
	ServiceID   string          `json:"serviceId"`
}

type rbacCredentials struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// NewRBACClient returns a client of the RBAC server at url.
func NewRBACClient(url string, httpClient *http.Client) *RBACClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &RBACClient{url: url, httpClient: httpClient}
}

// Check asks the RBAC server whether consumer may consume service of a.
func (c *RBACClient) Check(ctx context.Context, a *asset.Asset, service *asset.Service, consumer string) error {
	body, err := json.Marshal(&rbacRequest{
		EventType:   rbacEventType,
		Component:   rbacComponent,
		Credentials: rbacCredentials{Type: "address", Value: consumer},
		DID:         a.ID,
		ServiceID:   service.ID,
	})
	if err != nil {
		return errors.Wrap(err, "marshal RBAC request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "create RBAC request")
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "RBAC request")
	}

	defer func() {
		if e := resp.Body.Close(); e != nil {
			logger.Warnf("failed to close response body: %s", e)
		}
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "read RBAC response")
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("RBAC server returned status %d", resp.StatusCode)
	}

	var allowed bool
	if err := json.Unmarshal(bytes.TrimSpace(respBody), &allowed); err != nil {
		return errors.Wrap(err, "decode RBAC response")
	}

	if !allowed {
		return errors.Wrap(ErrNotConsumable, "denied by RBAC server")
	}

	return nil
}
