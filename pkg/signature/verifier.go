/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package signature verifies Ethereum personal-message signatures over request messages and consumes
// the accompanying nonce.
package signature

import (
	"context"
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"

	logfields "github.com/trustbloc/datatoken-provider-go/internal/log"
	"github.com/trustbloc/datatoken-provider-go/pkg/nonce"
)

var logger = logfields.New("provider-signature")

// ErrInvalidSignature is returned when a signature is malformed or was not produced by the claimed signer.
var ErrInvalidSignature = errors.New("invalid signature")

const (
	signatureLength = 65
	personalPrefix  = "\x19Ethereum Signed Message:\n32"
)

type metricsProvider interface {
	SignatureRejected(reason string)
}

type noopMetrics struct{}

func (noopMetrics) SignatureRejected(string) {}

// Verifier verifies signed requests.
type Verifier struct {
	nonces  nonce.Store
	metrics metricsProvider
}

// Option is a verifier option.
type Option func(v *Verifier)

// WithMetrics sets the metrics provider.
func WithMetrics(m metricsProvider) Option {
	return func(v *Verifier) {
		v.metrics = m
	}
}

// New returns a verifier that commits nonces to the given store.
func New(nonces nonce.Store, opts ...Option) *Verifier {
	v := &Verifier{
		nonces:  nonces,
		metrics: noopMetrics{},
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Verify checks that signature was produced by signer over message‖nonce and then advances the nonce
// of the signer. A replayed nonce fails with nonce.ErrStaleNonce.
func (v *Verifier) Verify(ctx context.Context, signer, signature, message, nonceValue string) error {
	if _, err := nonce.Parse(nonceValue); err != nil {
		v.metrics.SignatureRejected("nonce")

		return err
	}

	recovered, err := RecoverAddress(signature, Digest(message, nonceValue))
	if err != nil {
		v.metrics.SignatureRejected("malformed")

		return err
	}

	if !strings.EqualFold(recovered.Hex(), strings.TrimSpace(signer)) {
		v.metrics.SignatureRejected("signer")

		logger.Debug("signature signer mismatch", logfields.WithAddress(signer))

		return errors.Wrapf(ErrInvalidSignature, "recovered %s, expected %s", recovered.Hex(), signer)
	}

	if err := v.nonces.Advance(ctx, signer, nonceValue); err != nil {
		if errors.Is(err, nonce.ErrStaleNonce) {
			v.metrics.SignatureRejected("replay")
		}

		return err
	}

	return nil
}

// Digest returns the personal-message digest of message‖nonce that the client signs.
func Digest(message, nonceValue string) []byte {
	return keccak256([]byte(personalPrefix), keccak256([]byte(message+nonceValue)))
}

// RecoverAddress recovers the address that produced a hex encoded r‖s‖v signature over digest.
func RecoverAddress(signature string, digest []byte) (common.Address, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signature), "0x"))
	if err != nil {
		return common.Address{}, errors.Wrap(ErrInvalidSignature, "signature is not hex")
	}

	if len(sig) != signatureLength {
		return common.Address{}, errors.Wrapf(ErrInvalidSignature, "signature length %d", len(sig))
	}

	recID := sig[64]
	if recID >= 27 {
		recID -= 27
	}

	if recID > 1 {
		return common.Address{}, errors.Wrapf(ErrInvalidSignature, "recovery id %d", sig[64])
	}

	compact := make([]byte, signatureLength)
	compact[0] = 27 + recID
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, digest)
	if err != nil {
		return common.Address{}, errors.Wrap(ErrInvalidSignature, err.Error())
	}

	return PubkeyToAddress(pub), nil
}

// PubkeyToAddress returns the account address of a secp256k1 public key.
func PubkeyToAddress(pub *btcec.PublicKey) common.Address {
	return common.BytesToAddress(keccak256(pub.SerializeUncompressed()[1:])[12:])
}

// Sign signs message‖nonce with key and returns the hex encoded r‖s‖v signature, v being 27 or 28.
func Sign(key *btcec.PrivateKey, message, nonceValue string) string {
	compact := ecdsa.SignCompact(key, Digest(message, nonceValue), false)

	sig := make([]byte, signatureLength)
	copy(sig, compact[1:])
	sig[64] = compact[0]

	return "0x" + hex.EncodeToString(sig)
}

func keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()

	for _, d := range data {
		h.Write(d) //nolint:errcheck
	}

	return h.Sum(nil)
}
