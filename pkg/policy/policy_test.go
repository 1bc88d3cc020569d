/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trustbloc/datatoken-provider-go/pkg/api/asset"
	"github.com/trustbloc/datatoken-provider-go/pkg/hashing"
	"github.com/trustbloc/datatoken-provider-go/pkg/mocks"
)

const (
	algoDID   = "did:op:algo"
	publisher = "0xA1B2c3d4e5F60718293a4B5c6D7e8F9012345678"
	files     = "0x04deadbeef"
	container = `{"entrypoint":"python $ALGO","image":"oceanprotocol/algo_dockers","tag":"python-branin"}`
)

func newAlgorithm() *asset.Asset {
	return &asset.Asset{
		ID: algoDID,
		Metadata: asset.Metadata{
			Type:      asset.TypeAlgorithm,
			Algorithm: &asset.AlgorithmMetadata{Container: json.RawMessage(container)},
		},
		Services: []*asset.Service{{ID: "algo-access", Type: asset.ServiceTypeAccess, Files: files}},
		NFT:      asset.NFT{Owner: publisher},
	}
}

func newPolicy() (*Policy, *mocks.MockMetadataStore) {
	store := mocks.NewMockMetadataStore().WithAsset(newAlgorithm())

	return New(store), store
}

func checksums(t *testing.T) (string, string) {
	t.Helper()

	f, err := hashing.FilesChecksum(files)
	require.NoError(t, err)

	c, err := hashing.ContainerChecksum(json.RawMessage(container))
	require.NoError(t, err)

	return f, c
}

func TestCheck(t *testing.T) {
	ctx := context.Background()
	ref := AlgorithmRef{DID: algoDID, ServiceID: "algo-access"}
	filesChecksum, containerChecksum := checksums(t)

	t.Run("no lists allow any algorithm without resolving it", func(t *testing.T) {
		p, store := newPolicy()

		require.NoError(t, p.Check(ctx, &asset.Service{ID: "compute"}, AlgorithmRef{DID: "did:op:any"}))
		require.Zero(t, store.Calls("did:op:any"))
	})

	t.Run("trusted publisher", func(t *testing.T) {
		p, _ := newPolicy()

		s := &asset.Service{Compute: &asset.ComputeOptions{
			PublisherTrustedAlgorithmPublishers: []string{"0xa1b2c3d4e5f60718293a4b5c6d7e8f9012345678"},
		}}
		require.NoError(t, p.Check(ctx, s, ref))

		s.Compute.PublisherTrustedAlgorithmPublishers = []string{"0x01"}
		require.ErrorIs(t, p.Check(ctx, s, ref), ErrUntrustedPublisher)
	})

	t.Run("trusted algorithm with checksums", func(t *testing.T) {
		p, _ := newPolicy()

		s := &asset.Service{Compute: &asset.ComputeOptions{
			PublisherTrustedAlgorithms: []asset.TrustedAlgorithm{{
				DID:                      algoDID,
				FilesChecksum:            filesChecksum,
				ContainerSectionChecksum: containerChecksum,
			}},
		}}
		require.NoError(t, p.Check(ctx, s, ref))
	})

	t.Run("untrusted algorithm", func(t *testing.T) {
		p, _ := newPolicy()

		s := &asset.Service{Compute: &asset.ComputeOptions{
			PublisherTrustedAlgorithms: []asset.TrustedAlgorithm{{DID: "did:op:other"}},
		}}
		require.ErrorIs(t, p.Check(ctx, s, ref), ErrUntrustedAlgorithm)
	})

	t.Run("trusted publisher does not override the algorithm list", func(t *testing.T) {
		p, _ := newPolicy()

		s := &asset.Service{Compute: &asset.ComputeOptions{
			PublisherTrustedAlgorithms:          []asset.TrustedAlgorithm{{DID: "did:op:other"}},
			PublisherTrustedAlgorithmPublishers: []string{publisher},
		}}

		err := p.Check(ctx, s, ref)
		require.ErrorIs(t, err, ErrUntrustedAlgorithm)
	})

	t.Run("files checksum mismatch", func(t *testing.T) {
		p, _ := newPolicy()

		s := &asset.Service{Compute: &asset.ComputeOptions{
			PublisherTrustedAlgorithms: []asset.TrustedAlgorithm{{DID: algoDID, FilesChecksum: "00"}},
		}}

		err := p.Check(ctx, s, ref)
		require.ErrorIs(t, err, ErrChecksumMismatch)
		require.Contains(t, err.Error(), "filesChecksum for algorithm with did did:op:algo does not match")

		err = p.Check(ctx, s, AlgorithmRef{DID: algoDID, ServiceID: "missing"})
		require.ErrorIs(t, err, ErrChecksumMismatch)
	})

	t.Run("container checksum mismatch", func(t *testing.T) {
		p, _ := newPolicy()

		s := &asset.Service{Compute: &asset.ComputeOptions{
			PublisherTrustedAlgorithms: []asset.TrustedAlgorithm{{
				DID:                      algoDID,
				FilesChecksum:            filesChecksum,
				ContainerSectionChecksum: "00",
			}},
		}}

		err := p.Check(ctx, s, ref)
		require.ErrorIs(t, err, ErrChecksumMismatch)
		require.Contains(t, err.Error(), "containerSectionChecksum")
	})

	t.Run("raw algorithm", func(t *testing.T) {
		p, _ := newPolicy()

		require.ErrorIs(t, p.Check(ctx, &asset.Service{ID: "compute"}, AlgorithmRef{}), ErrRawAlgorithmForbidden)

		s := &asset.Service{Compute: &asset.ComputeOptions{AllowRawAlgorithm: true}}
		require.NoError(t, p.Check(ctx, s, AlgorithmRef{}))
	})

	t.Run("resolve error", func(t *testing.T) {
		p, store := newPolicy()
		store.Err = fmt.Errorf("aquarius down")

		s := &asset.Service{Compute: &asset.ComputeOptions{PublisherTrustedAlgorithmPublishers: []string{publisher}}}

		err := p.Check(ctx, s, ref)
		require.Error(t, err)
		require.Contains(t, err.Error(), "aquarius down")
	})
}
