/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package log

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log Fields.
const (
	FieldURI          = "uri"
	FieldDID          = "did"
	FieldServiceID    = "serviceId"
	FieldServiceType  = "serviceType"
	FieldTxID         = "txId"
	FieldConsumer     = "consumer"
	FieldDatatoken    = "datatoken"
	FieldIndex        = "index"
	FieldState        = "state"
	FieldAmount       = "amount"
	FieldTargetAmount = "targetAmount"
	FieldTotal        = "total"
	FieldTimeout      = "timeout"
	FieldDelta        = "delta"
	FieldValidUntil   = "validUntil"
	FieldUseCount     = "useCount"
	FieldAddress      = "address"
	FieldNonce        = "nonce"
	FieldAttempt      = "attempt"
	FieldAlgorithm    = "algorithm"
	FieldOrder        = "order"
	FieldTransfer     = "transfer"
	FieldStage        = "stage"
	FieldJobID        = "jobId"
	FieldImage        = "image"
	FieldChecksums    = "checksums"
	FieldError        = "error"
)

// WithURIString sets the uri field.
func WithURIString(value string) zap.Field {
	return zap.String(FieldURI, value)
}

// WithDID sets the did field.
func WithDID(value string) zap.Field {
	return zap.String(FieldDID, value)
}

// WithServiceID sets the service-id field.
func WithServiceID(value string) zap.Field {
	return zap.String(FieldServiceID, value)
}

// WithServiceType sets the service-type field.
func WithServiceType(value string) zap.Field {
	return zap.String(FieldServiceType, value)
}

// WithTxID sets the tx-id field.
func WithTxID(value string) zap.Field {
	return zap.String(FieldTxID, value)
}

// WithConsumer sets the consumer field.
func WithConsumer(value string) zap.Field {
	return zap.String(FieldConsumer, value)
}

// WithDatatoken sets the datatoken field.
func WithDatatoken(value string) zap.Field {
	return zap.String(FieldDatatoken, value)
}

// WithIndex sets the index field.
func WithIndex(value int) zap.Field {
	return zap.Int(FieldIndex, value)
}

// WithState sets the state field.
func WithState(value fmt.Stringer) zap.Field {
	return zap.Stringer(FieldState, value)
}

// WithAmount sets the amount field.
func WithAmount(value fmt.Stringer) zap.Field {
	return zap.Stringer(FieldAmount, value)
}

// WithTargetAmount sets the target-amount field.
func WithTargetAmount(value fmt.Stringer) zap.Field {
	return zap.Stringer(FieldTargetAmount, value)
}

// WithTotal sets the total field.
func WithTotal(value fmt.Stringer) zap.Field {
	return zap.Stringer(FieldTotal, value)
}

// WithTimeout sets the timeout field.
func WithTimeout(value int64) zap.Field {
	return zap.Int64(FieldTimeout, value)
}

// WithDelta sets the delta field.
func WithDelta(value int64) zap.Field {
	return zap.Int64(FieldDelta, value)
}

// WithValidUntil sets the valid-until field.
func WithValidUntil(value int64) zap.Field {
	return zap.Int64(FieldValidUntil, value)
}

// WithUseCount sets the use-count field.
func WithUseCount(value int64) zap.Field {
	return zap.Int64(FieldUseCount, value)
}

// WithAddress sets the address field.
func WithAddress(value string) zap.Field {
	return zap.String(FieldAddress, value)
}

// WithNonce sets the nonce field.
func WithNonce(value string) zap.Field {
	return zap.String(FieldNonce, value)
}

// WithAttempt sets the attempt field.
func WithAttempt(value int) zap.Field {
	return zap.Int(FieldAttempt, value)
}

// WithAlgorithm sets the algorithm field.
func WithAlgorithm(value string) zap.Field {
	return zap.String(FieldAlgorithm, value)
}

// WithOrder sets the order field.
func WithOrder(value interface{}) zap.Field {
	return zap.Inline(NewObjectMarshaller(FieldOrder, value))
}

// WithTransfer sets the transfer field.
func WithTransfer(value interface{}) zap.Field {
	return zap.Inline(NewObjectMarshaller(FieldTransfer, value))
}

// WithStage sets the stage field.
func WithStage(value interface{}) zap.Field {
	return zap.Inline(newJSONMarshaller(FieldStage, value))
}

// WithJobID sets the job-id field.
func WithJobID(value string) zap.Field {
	return zap.String(FieldJobID, value)
}

// WithImage sets the image field.
func WithImage(value string) zap.Field {
	return zap.String(FieldImage, value)
}

// WithChecksums sets the checksums field.
func WithChecksums(value ...string) zap.Field {
	return zap.Array(FieldChecksums, NewStringArrayMarshaller(value))
}

// WithError sets the error field.
func WithError(err error) zap.Field {
	return zap.NamedError(FieldError, err)
}

type jsonMarshaller struct {
	key string
	obj interface{}
}

func newJSONMarshaller(key string, value interface{}) *jsonMarshaller {
	return &jsonMarshaller{key: key, obj: value}
}

func (m *jsonMarshaller) MarshalLogObject(e zapcore.ObjectEncoder) error {
	b, err := json.Marshal(m.obj)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	e.AddString(m.key, string(b))

	return nil
}

// ObjectMarshaller uses reflection to marshal an object's fields.
type ObjectMarshaller struct {
	key string
	obj interface{}
}

// NewObjectMarshaller returns a new ObjectMarshaller.
func NewObjectMarshaller(key string, obj interface{}) *ObjectMarshaller {
	return &ObjectMarshaller{key: key, obj: obj}
}

// MarshalLogObject marshals the object's fields.
func (m *ObjectMarshaller) MarshalLogObject(e zapcore.ObjectEncoder) error {
	return e.AddReflected(m.key, m.obj)
}

// StringArrayMarshaller marshals an array of strings into a log field.
type StringArrayMarshaller struct {
	values []string
}

// NewStringArrayMarshaller returns a new StringArrayMarshaller.
func NewStringArrayMarshaller(values []string) *StringArrayMarshaller {
	return &StringArrayMarshaller{values: values}
}

// MarshalLogArray marshals the array.
func (m *StringArrayMarshaller) MarshalLogArray(e zapcore.ArrayEncoder) error {
	for _, v := range m.values {
		e.AppendString(v)
	}

	return nil
}
