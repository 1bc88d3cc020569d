/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package signature

import "strconv"

// RequestMessage is the message signed to start or query a compute job.
func RequestMessage(owner, jobID, did string) string {
	return owner + jobID + did
}

// DownloadMessage is the message signed to download a dataset.
func DownloadMessage(did string) string {
	return did
}

// DecryptMessage is the message signed to decrypt a document. The transaction id takes precedence over the
// NFT address when present.
func DecryptMessage(txID, nftAddress, decrypter string, chainID int64) string {
	first := txID
	if first == "" {
		first = nftAddress
	}

	return first + decrypter + strconv.FormatInt(chainID, 10)
}

// AuthTokenMessage is the message signed to create or delete an auth token.
func AuthTokenMessage(address string) string {
	return address
}
