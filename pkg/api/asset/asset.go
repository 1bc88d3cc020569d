/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package asset holds the subset of a metadata document (DDO) that order verification and workflow
// validation consume.
package asset

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// Asset types.
const (
	TypeDataset   = "dataset"
	TypeAlgorithm = "algorithm"
)

// Service types.
const (
	ServiceTypeAccess  = "access"
	ServiceTypeCompute = "compute"
)

// NFT states of assets that can be consumed.
const (
	StateActive   = 0
	StateUnlisted = 5
)

// Asset is a resolved metadata document.
type Asset struct {
	ID          string       `json:"id"`
	NFTAddress  string       `json:"nftAddress"`
	ChainID     int64        `json:"chainId"`
	Metadata    Metadata     `json:"metadata"`
	Services    []*Service   `json:"services"`
	NFT         NFT          `json:"nft"`
	Credentials *Credentials `json:"credentials,omitempty"`
}

// Metadata is the descriptive part of the document.
type Metadata struct {
	Type      string             `json:"type"`
	Name      string             `json:"name,omitempty"`
	Algorithm *AlgorithmMetadata `json:"algorithm,omitempty"`
}

// AlgorithmMetadata describes how an algorithm runs. It is also the shape of an inline (raw) algorithm
// supplied with a compute request.
type AlgorithmMetadata struct {
	Language string `json:"language,omitempty"`
	Version  string `json:"version,omitempty"`
	RawCode  string `json:"rawcode,omitempty"`
	URL      string `json:"url,omitempty"`
	// Container is kept verbatim since its checksum is computed over the published key order.
	Container json.RawMessage `json:"container,omitempty"`
}

// Container is the runtime image of an algorithm.
type Container struct {
	Entrypoint string `json:"entrypoint"`
	Image      string `json:"image"`
	Tag        string `json:"tag"`
	Checksum   string `json:"checksum"`
}

// ParseContainer decodes the container section. A missing section yields an empty container.
func (m *AlgorithmMetadata) ParseContainer() (*Container, error) {
	c := &Container{}

	if m == nil || len(m.Container) == 0 {
		return c, nil
	}

	if err := json.Unmarshal(m.Container, c); err != nil {
		return nil, errors.Wrap(err, "invalid algorithm container")
	}

	return c, nil
}

// NFT holds ownership data of the asset.
type NFT struct {
	Owner string `json:"owner"`
	State int    `json:"state"`
}

// Credentials are address based allow and deny lists.
type Credentials struct {
	Allow []CredentialRule `json:"allow,omitempty"`
	Deny  []CredentialRule `json:"deny,omitempty"`
}

// CredentialRule lists values of one credential type, e.g. "address".
type CredentialRule struct {
	Type   string   `json:"type"`
	Values []string `json:"values"`
}

// Service is an access mode offered for an asset.
type Service struct {
	ID               string          `json:"id"`
	Type             string          `json:"type"`
	Files            string          `json:"files"`
	DatatokenAddress string          `json:"datatokenAddress"`
	ServiceEndpoint  string          `json:"serviceEndpoint"`
	Timeout          int64           `json:"timeout"`
	Cost             string          `json:"cost,omitempty"`
	Compute          *ComputeOptions `json:"compute,omitempty"`

	// Index is the position of the service in the document; orders reference services by index.
	Index int `json:"-"`
}

// ComputeOptions is the privacy policy of a compute service.
type ComputeOptions struct {
	AllowRawAlgorithm                   bool               `json:"allowRawAlgorithm"`
	AllowNetworkAccess                  bool               `json:"allowNetworkAccess"`
	PublisherTrustedAlgorithms          []TrustedAlgorithm `json:"publisherTrustedAlgorithms"`
	PublisherTrustedAlgorithmPublishers []string           `json:"publisherTrustedAlgorithmPublishers"`
}

// TrustedAlgorithm pins an algorithm, optionally to a specific version of its files and container.
type TrustedAlgorithm struct {
	DID                      string `json:"did"`
	FilesChecksum            string `json:"filesChecksum,omitempty"`
	ContainerSectionChecksum string `json:"containerSectionChecksum,omitempty"`
}

// UnmarshalJSON decodes the document and numbers its services.
func (a *Asset) UnmarshalJSON(data []byte) error {
	type raw Asset

	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}

	*a = Asset(r)
	a.IndexServices()

	return nil
}

// IndexServices sets the index of every service to its position in the document.
func (a *Asset) IndexServices() {
	for i, s := range a.Services {
		if s != nil {
			s.Index = i
		}
	}
}

// ServiceByID returns the service with the given id, or nil.
func (a *Asset) ServiceByID(id string) *Service {
	for _, s := range a.Services {
		if s != nil && s.ID == id {
			return s
		}
	}

	return nil
}

// IsAlgorithm returns true if the asset is an algorithm.
func (a *Asset) IsAlgorithm() bool {
	return a.Metadata.Type == TypeAlgorithm
}

// IsCompute returns true for compute services.
func (s *Service) IsCompute() bool {
	return s.Type == ServiceTypeCompute
}

// ComputeOptions returns the privacy policy of the service; never nil.
func (s *Service) ComputeOptions() *ComputeOptions {
	if s.Compute == nil {
		return &ComputeOptions{}
	}

	return s.Compute
}

// TrustedAlgorithm returns the entry for the given algorithm DID.
func (c *ComputeOptions) TrustedAlgorithm(did string) (*TrustedAlgorithm, bool) {
	for i := range c.PublisherTrustedAlgorithms {
		if c.PublisherTrustedAlgorithms[i].DID == did {
			return &c.PublisherTrustedAlgorithms[i], true
		}
	}

	return nil, false
}

// IsTrustedPublisher returns true if the address is in the trusted publisher list (case insensitive).
func (c *ComputeOptions) IsTrustedPublisher(address string) bool {
	for _, p := range c.PublisherTrustedAlgorithmPublishers {
		if strings.EqualFold(p, address) {
			return true
		}
	}

	return false
}
