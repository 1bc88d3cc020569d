/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trustbloc/datatoken-provider-go/internal/log"
)

func TestDefaultLevel(t *testing.T) {
	SetDefaultLevel(log.ERROR)
	defer SetDefaultLevel(log.INFO)

	require.Equal(t, log.ERROR, GetLevel("moduley"))
}

func TestSetLevel(t *testing.T) {
	SetLevel("modulex", log.PANIC)

	require.Equal(t, log.PANIC, GetLevel("modulex"))
}

func TestSetSpec(t *testing.T) {
	require.NoError(t, SetSpec("modulea=debug:moduleb=panic:error"))
	defer SetDefaultLevel(log.INFO)

	require.Contains(t, GetSpec(), "modulea=DEBUG")
	require.Contains(t, GetSpec(), "moduleb=PANIC")
	require.Contains(t, GetSpec(), ":ERROR")

	require.Equal(t, log.DEBUG, GetLevel("modulea"))
	require.Equal(t, log.PANIC, GetLevel("moduleb"))
	require.Equal(t, log.ERROR, GetLevel(""))
}

func TestInitialize(t *testing.T) {
	t.Run("spec only", func(t *testing.T) {
		require.NoError(t, Initialize(Options{Spec: "modulez=warning:info"}))
		require.Equal(t, log.WARNING, GetLevel("modulez"))
	})

	t.Run("invalid spec", func(t *testing.T) {
		require.Error(t, Initialize(Options{Spec: "modulez=noisy"}))
	})

	t.Run("rotated file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "provider.log")
		defer log.SetOutput(os.Stderr)

		require.NoError(t, Initialize(Options{FilePath: path, MaxSizeMB: 1}))

		log.New("file-module").Errorf("written to file")

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Contains(t, string(content), "written to file")
	})
}
