/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package images

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trustbloc/datatoken-provider-go/pkg/api/asset"
)

const digest = "sha256:cb7ef8cee6ad1d3c8c8b1e6c8df1b76d6c0ddfbb2a5cd49a3a69d2c3a1bd7c3e"

func TestValidate(t *testing.T) {
	var path string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path

		if r.URL.Path == "/v2/namespaces/library/repositories/missing/tags/latest/images" {
			w.WriteHeader(http.StatusNotFound)

			return
		}

		_, err := w.Write([]byte(`[{"digest": "` + digest + `"}, {"digest": "sha256:00"}]`))
		require.NoError(t, err)
	}))
	defer srv.Close()

	r := New(srv.URL)
	ctx := context.Background()

	container := func() *asset.Container {
		return &asset.Container{Entrypoint: "node $ALGO", Image: "node", Tag: "18", Checksum: digest}
	}

	t.Run("success", func(t *testing.T) {
		require.NoError(t, r.Validate(ctx, container()))
		require.Equal(t, "/v2/namespaces/library/repositories/node/tags/18/images", path)
	})

	t.Run("namespaced image", func(t *testing.T) {
		c := container()
		c.Image = "oceanprotocol/algo_dockers"

		require.NoError(t, r.Validate(ctx, c))
		require.Equal(t, "/v2/namespaces/oceanprotocol/repositories/algo_dockers/tags/18/images", path)
	})

	t.Run("missing fields", func(t *testing.T) {
		c := container()
		c.Entrypoint = ""
		require.True(t, errors.Is(r.Validate(ctx, c), ErrMissingFields))
	})

	t.Run("checksum prefix", func(t *testing.T) {
		c := container()
		c.Checksum = "md5:00"
		require.True(t, errors.Is(r.Validate(ctx, c), ErrChecksumPrefix))
	})

	t.Run("unknown digest", func(t *testing.T) {
		c := container()
		c.Checksum = "sha256:ff"
		require.True(t, errors.Is(r.Validate(ctx, c), ErrInvalidImage))
	})

	t.Run("unknown image", func(t *testing.T) {
		c := container()
		c.Image = "missing"
		c.Tag = "latest"

		err := r.Validate(ctx, c)
		require.True(t, errors.Is(err, ErrInvalidImage))
		require.Contains(t, err.Error(), "status 404")
	})
}

func TestNew(t *testing.T) {
	r := New("", WithHTTPClient(http.DefaultClient))
	require.Equal(t, DefaultRegistryURL, r.baseURL)
	require.Equal(t, http.DefaultClient, r.httpClient)
}
