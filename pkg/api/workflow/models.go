/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package workflow

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/trustbloc/datatoken-provider-go/pkg/api/asset"
)

// ID is a service identifier. Clients send it either as a string or as a number.
type ID string

// UnmarshalJSON accepts both JSON strings and numbers.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""

		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		*id = ID(s)

		return nil
	}

	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return err
	}

	*id = ID(strconv.FormatInt(n, 10))

	return nil
}

// InputItem references a purchased dataset service.
type InputItem struct {
	DocumentID   string                 `json:"documentId"`
	ServiceID    ID                     `json:"serviceId"`
	TransferTxID string                 `json:"transferTxId"`
	UserData     map[string]interface{} `json:"userdata,omitempty"`
}

// AlgorithmInput references either a published algorithm (by DID) or carries an inline one (Meta).
type AlgorithmInput struct {
	DocumentID   string                   `json:"documentId,omitempty"`
	ServiceID    ID                       `json:"serviceId,omitempty"`
	TransferTxID string                   `json:"transferTxId,omitempty"`
	Meta         *asset.AlgorithmMetadata `json:"meta,omitempty"`
	UserData     map[string]interface{}   `json:"algouserdata,omitempty"`
}

// IsRaw returns true if the algorithm is supplied inline rather than referenced by DID.
func (a *AlgorithmInput) IsRaw() bool {
	return a.DocumentID == ""
}

// OutputDefinition is the client supplied output section.
type OutputDefinition struct {
	Owner string `json:"owner,omitempty"`
}

// ComputeRequest is a request to start a compute job.
type ComputeRequest struct {
	ConsumerAddress    string         `json:"consumerAddress"`
	Dataset            InputItem      `json:"dataset"`
	AdditionalDatasets []InputItem    `json:"additionalDatasets,omitempty"`
	Algorithm          AlgorithmInput `json:"algorithm"`
	// Output is decoded during output validation.
	Output      json.RawMessage `json:"output,omitempty"`
	Environment string          `json:"environment,omitempty"`
}

// Inputs returns the main dataset followed by the additional datasets.
func (r *ComputeRequest) Inputs() []InputItem {
	return append([]InputItem{r.Dataset}, r.AdditionalDatasets...)
}

// Workflow is an authorized compute workflow.
type Workflow struct {
	Stages []*Stage `json:"stages"`
	// ValidUntil is the earliest deadline of all orders in the workflow; 0 means no deadline.
	ValidUntil int64 `json:"validUntil"`
	// State is the final validation state.
	State string `json:"-"`
}

// Stage is a validated stage of a workflow.
type Stage struct {
	Index     int             `json:"index"`
	Input     []*StageInput   `json:"input"`
	Compute   Compute         `json:"compute"`
	Algorithm *StageAlgorithm `json:"algorithm"`
	Output    *StageOutput    `json:"output"`
}

// StageInput is either a set of file URLs served by this provider or a remote reference.
type StageInput struct {
	Index  int      `json:"index"`
	ID     string   `json:"id"`
	URL    []string `json:"url,omitempty"`
	Remote *Remote  `json:"remote,omitempty"`
}

// Remote references a purchase that is resolved by the provider hosting the files.
type Remote struct {
	TxID      string                 `json:"txid"`
	ServiceID string                 `json:"serviceId"`
	UserData  map[string]interface{} `json:"userdata,omitempty"`
}

// Compute is the resource shape of a stage.
type Compute struct {
	Instances int    `json:"Instances"`
	Namespace string `json:"namespace"`
	MaxTime   int    `json:"maxtime"`
}

// StageAlgorithm is the validated algorithm of a stage.
type StageAlgorithm struct {
	ID        string                 `json:"id,omitempty"`
	URL       string                 `json:"url,omitempty"`
	RawCode   string                 `json:"rawcode,omitempty"`
	Remote    *Remote                `json:"remote,omitempty"`
	Container *asset.Container       `json:"container,omitempty"`
	UserData  map[string]interface{} `json:"algouserdata,omitempty"`
}

// StageOutput describes where results are published and who owns them.
type StageOutput struct {
	MetadataURI string `json:"metadataUri"`
	Owner       string `json:"owner"`
}
