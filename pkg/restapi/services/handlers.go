/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package services

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"

	api "github.com/trustbloc/datatoken-provider-go/pkg/api/workflow"
	logfields "github.com/trustbloc/datatoken-provider-go/internal/log"
	"github.com/trustbloc/datatoken-provider-go/pkg/restapi/common"
	"github.com/trustbloc/datatoken-provider-go/pkg/signature"
)

// NonceResponse is the current nonce of an address.
type NonceResponse struct {
	Nonce string `json:"nonce"`
}

// ComputeStartRequest is a signed compute request.
type ComputeStartRequest struct {
	api.ComputeRequest
	Nonce     json.Number `json:"nonce"`
	Signature string      `json:"signature"`
}

// ComputeStartResponse is an authorized compute job.
type ComputeStartResponse struct {
	JobID      string     `json:"jobId"`
	ValidUntil int64      `json:"validUntil"`
	Stage      *api.Stage `json:"stage"`
}

// DownloadRequest is a signed download request.
type DownloadRequest struct {
	api.InputItem
	ConsumerAddress string      `json:"consumerAddress"`
	Nonce           json.Number `json:"nonce"`
	Signature       string      `json:"signature"`
}

// DownloadResponse is an authorized download.
type DownloadResponse struct {
	DocumentID string `json:"documentId"`
	ServiceID  string `json:"serviceId"`
	ValidUntil int64  `json:"validUntil"`
}

// DecryptRequest asks the provider to decrypt a metadata document.
type DecryptRequest struct {
	DecrypterAddress  string      `json:"decrypterAddress"`
	ChainID           int64       `json:"chainId"`
	TransactionID     string      `json:"transactionId,omitempty"`
	DataNFTAddress    string      `json:"dataNftAddress"`
	EncryptedDocument string      `json:"encryptedDocument"`
	Flags             uint8       `json:"flags"`
	DocumentHash      string      `json:"documentHash"`
	Nonce             json.Number `json:"nonce"`
	Signature         string      `json:"signature"`
}

// AuthTokenRequest creates or deletes an auth token.
type AuthTokenRequest struct {
	Address    string      `json:"address"`
	Expiration int64       `json:"expiration,omitempty"`
	Token      string      `json:"token,omitempty"`
	Nonce      json.Number `json:"nonce"`
	Signature  string      `json:"signature"`
}

// AuthTokenResponse holds a new auth token.
type AuthTokenResponse struct {
	Token string `json:"token"`
}

func (s *Service) nonce(rw http.ResponseWriter, req *http.Request) {
	address := req.URL.Query().Get("userAddress")
	if address == "" {
		writeError(rw, common.NewHTTPError(http.StatusBadRequest, errors.New("userAddress is required")))

		return
	}

	n, err := s.Nonces.Get(req.Context(), address)
	if err != nil {
		writeError(rw, err)

		return
	}

	common.WriteResponse(rw, http.StatusOK, &NonceResponse{Nonce: n})
}

func (s *Service) compute(rw http.ResponseWriter, req *http.Request) {
	var r ComputeStartRequest
	if err := decode(rw, req, &r); err != nil {
		writeError(rw, err)

		return
	}

	if r.ConsumerAddress == "" {
		writeError(rw, common.NewHTTPError(http.StatusBadRequest, errors.New("consumerAddress is required")))

		return
	}

	message := signature.RequestMessage(r.ConsumerAddress, "", r.Dataset.DocumentID)

	if err := s.authenticate(req, r.ConsumerAddress, r.Signature, message, r.Nonce.String()); err != nil {
		writeError(rw, err)

		return
	}

	wf, err := s.Workflows.Validate(req.Context(), &r.ComputeRequest)
	if err != nil {
		writeError(rw, err)

		return
	}

	jobID := s.newJobID()

	logger.Info("compute job authorized", logfields.WithJobID(jobID), logfields.WithConsumer(r.ConsumerAddress),
		logfields.WithDID(r.Dataset.DocumentID), logfields.WithValidUntil(wf.ValidUntil))

	common.WriteResponse(rw, http.StatusOK, &ComputeStartResponse{
		JobID:      jobID,
		ValidUntil: wf.ValidUntil,
		Stage:      wf.Stages[0],
	})
}

func (s *Service) download(rw http.ResponseWriter, req *http.Request) {
	var r DownloadRequest
	if err := decode(rw, req, &r); err != nil {
		writeError(rw, err)

		return
	}

	if r.ConsumerAddress == "" {
		writeError(rw, common.NewHTTPError(http.StatusBadRequest, errors.New("consumerAddress is required")))

		return
	}

	message := signature.DownloadMessage(r.DocumentID)

	if err := s.authenticate(req, r.ConsumerAddress, r.Signature, message, r.Nonce.String()); err != nil {
		writeError(rw, err)

		return
	}

	validated, err := s.Workflows.AuthorizeDownload(req.Context(), &r.InputItem, r.ConsumerAddress)
	if err != nil {
		writeError(rw, err)

		return
	}

	common.WriteResponse(rw, http.StatusOK, &DownloadResponse{
		DocumentID: r.DocumentID,
		ServiceID:  string(r.ServiceID),
		ValidUntil: validated.ValidUntil,
	})
}

func (s *Service) decrypt(rw http.ResponseWriter, req *http.Request) {
	var r DecryptRequest
	if err := decode(rw, req, &r); err != nil {
		writeError(rw, err)

		return
	}

	if r.DecrypterAddress == "" || r.ChainID == 0 || r.DataNFTAddress == "" || r.EncryptedDocument == "" ||
		r.DocumentHash == "" {
		writeError(rw, common.NewHTTPError(http.StatusBadRequest, errors.New(
			"decrypterAddress, chainId, dataNftAddress, encryptedDocument and documentHash are required")))

		return
	}

	if r.ChainID != s.ChainID {
		writeError(rw, common.NewHTTPError(http.StatusBadRequest, errors.Errorf("unsupported chain ID %d", r.ChainID)))

		return
	}

	if !s.isDecrypter(r.DecrypterAddress) {
		writeError(rw, common.NewHTTPError(http.StatusForbidden,
			errors.Errorf("decrypter %s is not authorized", r.DecrypterAddress)))

		return
	}

	message := signature.DecryptMessage(r.TransactionID, r.DataNFTAddress, r.DecrypterAddress, r.ChainID)

	err := s.Signatures.Verify(req.Context(), r.DecrypterAddress, r.Signature, message, r.Nonce.String())
	if err != nil {
		writeError(rw, err)

		return
	}

	document, err := s.Documents.DecryptDocument(r.EncryptedDocument, r.Flags, r.DocumentHash)
	if err != nil {
		writeError(rw, err)

		return
	}

	logger.Info("document decrypted", logfields.WithAddress(r.DecrypterAddress),
		logfields.WithTxID(r.TransactionID))

	rw.Header().Set("Content-Type", "text/plain")
	rw.WriteHeader(http.StatusOK)

	if _, err := rw.Write(document); err != nil {
		logger.Warn("failed to write decrypted document", logfields.WithError(err))
	}
}

func (s *Service) createAuthToken(rw http.ResponseWriter, req *http.Request) {
	var r AuthTokenRequest
	if err := decode(rw, req, &r); err != nil {
		writeError(rw, err)

		return
	}

	if r.Address == "" || r.Expiration == 0 {
		writeError(rw, common.NewHTTPError(http.StatusBadRequest, errors.New("address and expiration are required")))

		return
	}

	err := s.Signatures.Verify(req.Context(), r.Address, r.Signature, signature.AuthTokenMessage(r.Address),
		r.Nonce.String())
	if err != nil {
		writeError(rw, err)

		return
	}

	token, err := s.Tokens.Issue(r.Address, time.Unix(r.Expiration, 0))
	if err != nil {
		writeError(rw, common.NewHTTPError(http.StatusBadRequest, err))

		return
	}

	common.WriteResponse(rw, http.StatusOK, &AuthTokenResponse{Token: token})
}

func (s *Service) deleteAuthToken(rw http.ResponseWriter, req *http.Request) {
	var r AuthTokenRequest
	if err := decode(rw, req, &r); err != nil {
		writeError(rw, err)

		return
	}

	if r.Address == "" || r.Token == "" {
		writeError(rw, common.NewHTTPError(http.StatusBadRequest, errors.New("address and token are required")))

		return
	}

	err := s.Signatures.Verify(req.Context(), r.Address, r.Signature, signature.AuthTokenMessage(r.Address),
		r.Nonce.String())
	if err != nil {
		writeError(rw, err)

		return
	}

	if err := s.Tokens.Revoke(req.Context(), r.Token, r.Address); err != nil {
		writeError(rw, err)

		return
	}

	common.WriteResponse(rw, http.StatusOK, map[string]string{"success": "Token has been deactivated."})
}
