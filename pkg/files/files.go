/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package files decrypts the files descriptors of services hosted by this provider.
package files

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/json"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto/ecies"
	"github.com/pkg/errors"

	"github.com/trustbloc/datatoken-provider-go/pkg/api/asset"
	logfields "github.com/trustbloc/datatoken-provider-go/internal/log"
)

var logger = logfields.New("provider-files")

// TypeURL is the only file type served as a plain URL.
const TypeURL = "url"

// Descriptor is the decrypted files section of a service.
type Descriptor struct {
	NFTAddress       string `json:"nftAddress"`
	DatatokenAddress string `json:"datatokenAddress"`
	Files            []File `json:"files"`
}

// File is a single file of a service.
type File struct {
	Type   string `json:"type"`
	URL    string `json:"url"`
	Method string `json:"method,omitempty"`
}

// Resolver decrypts files descriptors with the provider key.
type Resolver struct {
	key *ecies.PrivateKey
}

// New returns a resolver for the provider key.
func New(key *ecdsa.PrivateKey) *Resolver {
	return &Resolver{key: ecies.ImportECDSA(key)}
}

// Encrypt encrypts a files descriptor for the provider owning pub.
func Encrypt(pub *ecdsa.PublicKey, d *Descriptor) (string, error) {
	payload, err := json.Marshal(d)
	if err != nil {
		return "", errors.Wrap(err, "marshal files descriptor")
	}

	ct, err := ecies.Encrypt(rand.Reader, ecies.ImportECDSAPublic(pub), payload, nil, nil)
	if err != nil {
		return "", errors.Wrap(err, "encrypt files descriptor")
	}

	return hexutil.Encode(ct), nil
}

// Decrypt decrypts the files descriptor of service and checks that it belongs to the asset.
func (r *Resolver) Decrypt(a *asset.Asset, service *asset.Service) (*Descriptor, error) {
	ct, err := hexutil.Decode(service.Files)
	if err != nil {
		return nil, errors.Wrap(err, "decode files")
	}

	payload, err := r.key.Decrypt(ct, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "decrypt files")
	}

	d := &Descriptor{}
	if err := json.Unmarshal(payload, d); err != nil {
		return nil, errors.Wrap(err, "unmarshal files descriptor")
	}

	if d.DatatokenAddress != "" && !strings.EqualFold(d.DatatokenAddress, service.DatatokenAddress) {
		return nil, errors.Errorf("mismatch of datatoken: got %s, expected %s",
			d.DatatokenAddress, service.DatatokenAddress)
	}

	if d.NFTAddress != "" && !strings.EqualFold(d.NFTAddress, a.NFTAddress) {
		return nil, errors.Errorf("mismatch of nft address: got %s, expected %s", d.NFTAddress, a.NFTAddress)
	}

	return d, nil
}

// URLs returns the URLs of the files of service, or nil if they can not be decrypted by this provider.
func (r *Resolver) URLs(a *asset.Asset, service *asset.Service) []string {
	d, err := r.Decrypt(a, service)
	if err != nil {
		logger.Debug("files not served by this provider", logfields.WithDID(a.ID),
			logfields.WithServiceID(service.ID), logfields.WithError(err))

		return nil
	}

	var urls []string

	for _, f := range d.Files {
		if f.Type == TypeURL && f.URL != "" {
			urls = append(urls, f.URL)
		}
	}

	return urls
}
