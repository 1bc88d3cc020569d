/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package workflow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeRequest(t *testing.T) {
	body := `{
		"consumerAddress": "0xc0",
		"dataset": {"documentId": "did:op:1", "serviceId": 0, "transferTxId": "0xaa"},
		"additionalDatasets": [{"documentId": "did:op:2", "serviceId": "access", "transferTxId": "0xbb"}],
		"algorithm": {"meta": {"rawcode": "print(1)", "container": {"entrypoint": "node $ALGO", "image": "node", "tag": "18"}}},
		"output": {"owner": "0xo"}
	}`

	req := &ComputeRequest{}
	require.NoError(t, json.Unmarshal([]byte(body), req))

	require.Equal(t, ID("0"), req.Dataset.ServiceID)
	require.True(t, req.Algorithm.IsRaw())

	inputs := req.Inputs()
	require.Len(t, inputs, 2)
	require.Equal(t, "did:op:1", inputs[0].DocumentID)
	require.Equal(t, ID("access"), inputs[1].ServiceID)

	t.Run("invalid service id", func(t *testing.T) {
		var id ID
		require.Error(t, json.Unmarshal([]byte(`1.5`), &id))
		require.Error(t, json.Unmarshal([]byte(`{}`), &id))

		require.NoError(t, json.Unmarshal([]byte(`null`), &id))
		require.Empty(t, id)
	})
}
