/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package services exposes the provider REST endpoints.
package services

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	api "github.com/trustbloc/datatoken-provider-go/pkg/api/workflow"
	"github.com/trustbloc/datatoken-provider-go/pkg/authtoken"
	"github.com/trustbloc/datatoken-provider-go/pkg/chain"
	logfields "github.com/trustbloc/datatoken-provider-go/internal/log"
	"github.com/trustbloc/datatoken-provider-go/pkg/nonce"
	"github.com/trustbloc/datatoken-provider-go/pkg/restapi/common"
	"github.com/trustbloc/datatoken-provider-go/pkg/signature"
	"github.com/trustbloc/datatoken-provider-go/pkg/store"
	"github.com/trustbloc/datatoken-provider-go/pkg/workflow"
)

var logger = logfields.New("provider-restapi-services")

// Endpoint paths.
const (
	BasePath            = "/api/services"
	NoncePath           = BasePath + "/nonce"
	ComputePath         = BasePath + "/compute"
	DownloadPath        = BasePath + "/download"
	DecryptPath         = BasePath + "/decrypt"
	CreateAuthTokenPath = BasePath + "/createAuthToken"
	DeleteAuthTokenPath = BasePath + "/deleteAuthToken"
	MetricsPath         = "/metrics"

	// AuthTokenHeader carries an auth token in place of a request signature.
	AuthTokenHeader = "AuthToken"

	maxBodySize = 1 << 20
)

var errUnauthorized = errors.New("unauthorized")

type signatureVerifier interface {
	Verify(ctx context.Context, signer, signature, message, nonce string) error
}

type nonceReader interface {
	Get(ctx context.Context, address string) (string, error)
}

type workflowValidator interface {
	Validate(ctx context.Context, req *api.ComputeRequest) (*api.Workflow, error)
	AuthorizeDownload(ctx context.Context, item *api.InputItem, consumer string) (*workflow.ValidatedItem, error)
}

type documentDecrypter interface {
	DecryptDocument(document string, flags uint8, documentHash string) ([]byte, error)
}

type tokenManager interface {
	Issue(address string, expiration time.Time) (string, error)
	Validate(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token, address string) error
}

// Providers are the collaborators of the REST service.
type Providers struct {
	Signatures signatureVerifier
	Nonces     nonceReader
	Workflows  workflowValidator
	Tokens     tokenManager
	// Documents decrypts metadata documents; the decrypt endpoint is disabled without it.
	Documents documentDecrypter
	// ChainID is the chain decrypt requests must be signed for.
	ChainID int64
	// Decrypters may call the decrypt endpoint. Empty allows any address.
	Decrypters []string
	// Metrics serves /metrics; optional.
	Metrics http.Handler
}

// Service implements the REST endpoints.
type Service struct {
	*Providers
	newJobID func() string
}

// New returns the REST service.
func New(p *Providers) *Service {
	return &Service{
		Providers: p,
		newJobID:  func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
}

// Handlers returns the HTTP handlers of the service.
func (s *Service) Handlers() []common.HTTPHandler {
	handlers := []common.HTTPHandler{
		common.NewHTTPHandler(NoncePath, http.MethodGet, s.nonce),
		common.NewHTTPHandler(ComputePath, http.MethodPost, s.compute),
		common.NewHTTPHandler(DownloadPath, http.MethodPost, s.download),
	}

	if s.Documents != nil {
		handlers = append(handlers, common.NewHTTPHandler(DecryptPath, http.MethodPost, s.decrypt))
	}

	if s.Tokens != nil {
		handlers = append(handlers,
			common.NewHTTPHandler(CreateAuthTokenPath, http.MethodPost, s.createAuthToken),
			common.NewHTTPHandler(DeleteAuthTokenPath, http.MethodDelete, s.deleteAuthToken),
		)
	}

	if s.Metrics != nil {
		handlers = append(handlers, common.NewHTTPHandler(MetricsPath, http.MethodGet, s.Metrics.ServeHTTP))
	}

	return handlers
}

// authenticate accepts either a valid auth token of address or a signature of message by address.
func (s *Service) authenticate(req *http.Request, address, sig, message, nonceValue string) error {
	if token := req.Header.Get(AuthTokenHeader); token != "" && s.Tokens != nil {
		owner, err := s.Tokens.Validate(req.Context(), token)
		if err != nil {
			return err
		}

		if !strings.EqualFold(owner, address) {
			return errors.Wrapf(errUnauthorized, "auth token does not belong to %s", address)
		}

		return nil
	}

	if sig == "" {
		return errors.Wrap(errUnauthorized, "missing signature")
	}

	return s.Signatures.Verify(req.Context(), address, sig, message, nonceValue)
}

func (s *Service) isDecrypter(address string) bool {
	if len(s.Decrypters) == 0 {
		return true
	}

	for _, d := range s.Decrypters {
		if strings.EqualFold(d, address) {
			return true
		}
	}

	return false
}

func decode(rw http.ResponseWriter, req *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(rw, req.Body, maxBodySize))

	if err := dec.Decode(v); err != nil {
		return common.NewHTTPError(http.StatusBadRequest, errors.Wrap(err, "invalid request body"))
	}

	return nil
}

func writeError(rw http.ResponseWriter, err error) {
	status := StatusOf(err)

	if status >= http.StatusInternalServerError {
		logger.Warn("request failed", logfields.WithError(err))
	} else {
		logger.Debug("request rejected", logfields.WithError(err))
	}

	common.WriteError(rw, status, err)
}

// StatusOf maps an error to an HTTP status: authentication failures are 401, chain and storage outages
// are 503 and all other failures are 400.
func StatusOf(err error) int {
	var httpErr *common.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status()
	}

	var chainErr *chain.Error

	switch {
	case errors.As(err, &chainErr), errors.Is(err, chain.ErrReceiptTimeout), errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, signature.ErrInvalidSignature), errors.Is(err, nonce.ErrStaleNonce),
		errors.Is(err, nonce.ErrInvalidNonce), errors.Is(err, errUnauthorized),
		errors.Is(err, authtoken.ErrInvalidToken), errors.Is(err, authtoken.ErrExpiredToken),
		errors.Is(err, authtoken.ErrRevokedToken):
		return http.StatusUnauthorized
	default:
		return http.StatusBadRequest
	}
}
