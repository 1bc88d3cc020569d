/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const did = "did:op:0c184915b07b44c888d468be85a9b28253e80070e5294b1aaed81c2f0264e429"

func TestResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ddoPath + did:
			_, _ = w.Write([]byte(`{"id":"` + did + `","metadata":{"type":"dataset"},
				"services":[{"id":"s1","type":"access"},{"id":"s2","type":"compute"}]}`))
		case ddoPath + "did:op:empty":
			_, _ = w.Write([]byte(`{}`))
		case ddoPath + "did:op:bad":
			_, _ = w.Write([]byte(`{`))
		case ddoPath + "did:op:error":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL+"/", WithHTTPClient(srv.Client()))
	require.Equal(t, srv.URL, c.URL())

	t.Run("success", func(t *testing.T) {
		a, err := c.Resolve(context.Background(), did)
		require.NoError(t, err)
		require.Equal(t, did, a.ID)
		require.Equal(t, 1, a.ServiceByID("s2").Index)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := c.Resolve(context.Background(), "did:op:missing")
		require.ErrorIs(t, err, ErrNotFound)

		_, err = c.Resolve(context.Background(), "did:op:empty")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := c.Resolve(context.Background(), "")
		require.Error(t, err)

		_, err = c.Resolve(context.Background(), "did:op:bad")
		require.Error(t, err)
		require.Contains(t, err.Error(), "decode metadata")

		_, err = c.Resolve(context.Background(), "did:op:error")
		require.Error(t, err)
		require.Contains(t, err.Error(), "status 500")

		_, err = New("http://127.0.0.1:0").Resolve(context.Background(), did)
		require.Error(t, err)
	})
}
