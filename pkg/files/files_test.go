/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package files

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/trustbloc/datatoken-provider-go/pkg/api/asset"
)

const (
	nftAddress       = "0x0b1D5b2B6E1e1cD1e0a3c0f5D4d0f0C1a2B3c4D5"
	datatokenAddress = "0x2473f4F7bf40ed9310838e99Ea4eBc6d3Fa1e7e0"
)

func TestResolver(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	encrypted, err := Encrypt(&key.PublicKey, &Descriptor{
		NFTAddress:       nftAddress,
		DatatokenAddress: datatokenAddress,
		Files: []File{
			{Type: TypeURL, URL: "https://example.com/data.csv", Method: "GET"},
			{Type: "ipfs"},
		},
	})
	require.NoError(t, err)

	service := &asset.Service{ID: "1", Files: encrypted, DatatokenAddress: datatokenAddress}
	a := &asset.Asset{ID: "did:op:1", NFTAddress: nftAddress, Services: []*asset.Service{service}}

	r := New(key)

	t.Run("success", func(t *testing.T) {
		require.Equal(t, []string{"https://example.com/data.csv"}, r.URLs(a, service))
	})

	t.Run("other provider", func(t *testing.T) {
		other, err := crypto.GenerateKey()
		require.NoError(t, err)

		require.Nil(t, New(other).URLs(a, service))

		_, err = New(other).Decrypt(a, service)
		require.Error(t, err)
		require.Contains(t, err.Error(), "decrypt files")
	})

	t.Run("datatoken mismatch", func(t *testing.T) {
		s := *service
		s.DatatokenAddress = "0x0000000000000000000000000000000000000001"

		_, err := r.Decrypt(a, &s)
		require.Error(t, err)
		require.Contains(t, err.Error(), "mismatch of datatoken")
	})

	t.Run("nft mismatch", func(t *testing.T) {
		other := *a
		other.NFTAddress = "0x0000000000000000000000000000000000000001"

		_, err := r.Decrypt(&other, service)
		require.Error(t, err)
		require.Contains(t, err.Error(), "mismatch of nft address")
	})

	t.Run("not hex", func(t *testing.T) {
		s := *service
		s.Files = "plain"

		require.Nil(t, r.URLs(a, &s))
	})
}
