/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package common

import (
	"net/http"

	"github.com/gorilla/mux"

	logfields "github.com/trustbloc/datatoken-provider-go/internal/log"
)

var logger = logfields.New("provider-restapi-common")

// HTTPRequestHandler is an HTTP handler
type HTTPRequestHandler func(http.ResponseWriter, *http.Request)

// HTTPHandler is a HTTP handler descriptor containing the context path, method, and request handler
type HTTPHandler interface {
	Path() string
	Method() string
	Handler() HTTPRequestHandler
}

type httpHandler struct {
	path    string
	method  string
	handler HTTPRequestHandler
}

// NewHTTPHandler returns a handler descriptor.
func NewHTTPHandler(path, method string, handler HTTPRequestHandler) HTTPHandler {
	return &httpHandler{path: path, method: method, handler: handler}
}

func (h *httpHandler) Path() string {
	return h.path
}

func (h *httpHandler) Method() string {
	return h.method
}

func (h *httpHandler) Handler() HTTPRequestHandler {
	return h.handler
}

// NewRouter registers handlers with a new router.
func NewRouter(handlers ...HTTPHandler) *mux.Router {
	router := mux.NewRouter()

	for _, h := range handlers {
		logger.Debugf("registering handler %s %s", h.Method(), h.Path())

		router.HandleFunc(h.Path(), h.Handler()).Methods(h.Method())
	}

	return router
}
