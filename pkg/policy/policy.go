/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package policy applies the trusted algorithm rules of a compute service to the algorithm of a job.
package policy

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trustbloc/datatoken-provider-go/pkg/api/asset"
	"github.com/trustbloc/datatoken-provider-go/pkg/hashing"
	logfields "github.com/trustbloc/datatoken-provider-go/internal/log"
)

var logger = logfields.New("provider-policy")

// Policy failures.
var (
	ErrUntrustedPublisher    = errors.New("this algorithm is not from a trusted publisher")
	ErrUntrustedAlgorithm    = errors.New("this algorithm is not trusted")
	ErrChecksumMismatch      = errors.New("algorithm checksum does not match")
	ErrRawAlgorithmForbidden = errors.New("cannot run raw algorithm")
)

// AlgorithmRef identifies the algorithm of a compute job. A reference without DID is a raw algorithm.
type AlgorithmRef struct {
	DID       string
	ServiceID string
}

// IsRaw returns true for algorithms supplied inline with the request.
func (r AlgorithmRef) IsRaw() bool {
	return r.DID == ""
}

type resolver interface {
	Resolve(ctx context.Context, did string) (*asset.Asset, error)
}

// Policy checks algorithms against the trust rules of compute services.
type Policy struct {
	resolver resolver
}

// New returns a policy that resolves algorithm documents through r.
func New(r resolver) *Policy {
	return &Policy{resolver: r}
}

// Check returns nil if the algorithm may run against service. The trusted publisher list, the trusted
// algorithm list and the pinned checksums are additive constraints.
func (p *Policy) Check(ctx context.Context, service *asset.Service, algo AlgorithmRef) error {
	opts := service.ComputeOptions()

	if algo.IsRaw() {
		if !opts.AllowRawAlgorithm {
			return errors.Wrapf(ErrRawAlgorithmForbidden, "service %s", service.ID)
		}

		return nil
	}

	if len(opts.PublisherTrustedAlgorithms) == 0 && len(opts.PublisherTrustedAlgorithmPublishers) == 0 {
		return nil
	}

	algoAsset, err := p.resolver.Resolve(ctx, algo.DID)
	if err != nil {
		return errors.Wrapf(err, "resolve algorithm %s", algo.DID)
	}

	if len(opts.PublisherTrustedAlgorithmPublishers) > 0 && !opts.IsTrustedPublisher(algoAsset.NFT.Owner) {
		return errors.Wrapf(ErrUntrustedPublisher, "owner %s", algoAsset.NFT.Owner)
	}

	if len(opts.PublisherTrustedAlgorithms) == 0 {
		return nil
	}

	trusted, ok := opts.TrustedAlgorithm(algo.DID)
	if !ok {
		return errors.Wrapf(ErrUntrustedAlgorithm, "did %s", algo.DID)
	}

	return checkChecksums(trusted, algoAsset, algo.ServiceID)
}

func checkChecksums(trusted *asset.TrustedAlgorithm, algoAsset *asset.Asset, serviceID string) error {
	if trusted.FilesChecksum != "" {
		service := algoAsset.ServiceByID(serviceID)
		if service == nil {
			return errors.Wrapf(ErrChecksumMismatch, "filesChecksum for algorithm with did %s: service %s not found",
				algoAsset.ID, serviceID)
		}

		checksum, err := hashing.FilesChecksum(service.Files)
		if err != nil {
			return err
		}

		if checksum != trusted.FilesChecksum {
			logger.Debug("files checksum mismatch", logfields.WithAlgorithm(algoAsset.ID),
				logfields.WithChecksums(checksum, trusted.FilesChecksum))

			return errors.Wrapf(ErrChecksumMismatch, "filesChecksum for algorithm with did %s does not match",
				algoAsset.ID)
		}
	}

	if trusted.ContainerSectionChecksum != "" {
		var container []byte
		if algoAsset.Metadata.Algorithm != nil {
			container = algoAsset.Metadata.Algorithm.Container
		}

		checksum, err := hashing.ContainerChecksum(container)
		if err != nil || checksum != trusted.ContainerSectionChecksum {
			return errors.Wrapf(ErrChecksumMismatch,
				"containerSectionChecksum for algorithm with did %s does not match", algoAsset.ID)
		}
	}

	return nil
}
