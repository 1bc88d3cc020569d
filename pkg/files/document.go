/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package files

import (
	"crypto/ecdsa"
	"crypto/rand"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto/ecies"
	"github.com/pkg/errors"

	"github.com/trustbloc/datatoken-provider-go/pkg/hashing"
)

// Document flags published with a metadata document.
const (
	FlagCompressed = 1 << 0
	FlagEncrypted  = 1 << 1
)

var (
	// ErrUnsupportedFlags is returned for documents using a flag this provider can not reverse.
	ErrUnsupportedFlags = errors.New("unsupported document flags")

	// ErrDocumentHash is returned when a decrypted document does not hash to the published value.
	ErrDocumentHash = errors.New("document hash mismatch")
)

// EncryptDocument encrypts a metadata document for the provider owning pub.
func EncryptDocument(pub *ecdsa.PublicKey, document []byte) (string, error) {
	ct, err := ecies.Encrypt(rand.Reader, ecies.ImportECDSAPublic(pub), document, nil, nil)
	if err != nil {
		return "", errors.Wrap(err, "encrypt document")
	}

	return hexutil.Encode(ct), nil
}

// DecryptDocument returns the plain metadata document published as hex with flags. The document must
// hash (SHA-256) to documentHash.
func (r *Resolver) DecryptDocument(document string, flags uint8, documentHash string) ([]byte, error) {
	if flags&FlagCompressed != 0 || flags&^(FlagCompressed|FlagEncrypted) != 0 {
		return nil, errors.Wrapf(ErrUnsupportedFlags, "%d", flags)
	}

	payload, err := hexutil.Decode(document)
	if err != nil {
		return nil, errors.Wrap(err, "decode document")
	}

	if flags&FlagEncrypted != 0 {
		payload, err = r.key.Decrypt(payload, nil, nil)
		if err != nil {
			return nil, errors.Wrap(err, "decrypt document")
		}
	}

	checksum, err := hashing.Checksum(payload)
	if err != nil {
		return nil, err
	}

	if !strings.EqualFold(checksum, strings.TrimPrefix(documentHash, "0x")) {
		return nil, errors.Wrapf(ErrDocumentHash, "expected %s, got 0x%s", documentHash, checksum)
	}

	return payload, nil
}
