/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteResponse(t *testing.T) {
	rw := httptest.NewRecorder()
	WriteResponse(rw, http.StatusOK, "content")
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, "\"content\"\n", rw.Body.String())
	require.Equal(t, "application/json", rw.Header().Get("Content-Type"))
}

func TestWriteError(t *testing.T) {
	rw := httptest.NewRecorder()

	e := errors.New("some error")
	WriteError(rw, http.StatusBadRequest, e)
	require.Equal(t, http.StatusBadRequest, rw.Code)

	errBytes, err := json.Marshal(&ErrorResponse{Error: e.Error()})
	require.NoError(t, err)
	require.Equal(t, string(errBytes)+"\n", rw.Body.String())
}

func TestNewRouter(t *testing.T) {
	router := NewRouter(NewHTTPHandler("/ping", http.MethodGet, func(rw http.ResponseWriter, _ *http.Request) {
		WriteResponse(rw, http.StatusOK, "pong")
	}))

	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, rw.Code)

	rw = httptest.NewRecorder()
	router.ServeHTTP(rw, httptest.NewRequest(http.MethodPost, "/ping", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rw.Code)
}
