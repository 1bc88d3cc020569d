/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package hashing computes the checksums publishers use to pin trusted algorithms.
package hashing

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"unicode/utf16"

	"github.com/multiformats/go-multihash"
	"github.com/pkg/errors"
)

// SHA256 is the multihash code of the checksum function.
const SHA256 = multihash.SHA2_256

// GetHash calculates the digest of data using the hash function identified by the multihash code.
func GetHash(code uint64, data []byte) ([]byte, error) {
	mh, err := multihash.Sum(data, code, -1)
	if err != nil {
		return nil, errors.Wrapf(err, "hash function not available for: %d", code)
	}

	decoded, err := multihash.Decode(mh)
	if err != nil {
		return nil, errors.Wrap(err, "decode multihash")
	}

	return decoded.Digest, nil
}

// Checksum returns the lowercase hex SHA-256 digest of data.
func Checksum(data []byte) (string, error) {
	digest, err := GetHash(SHA256, data)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(digest), nil
}

// FilesChecksum returns the checksum of the encrypted files descriptor of a service.
func FilesChecksum(encryptedFiles string) (string, error) {
	return Checksum([]byte(encryptedFiles))
}

// ContainerChecksum returns the checksum of an algorithm container section serialized the way publishers
// pin it: keys in published order, no insignificant whitespace and every non-ASCII character escaped.
func ContainerChecksum(container json.RawMessage) (string, error) {
	canonical, err := compactASCII(container)
	if err != nil {
		return "", errors.Wrap(err, "compact container section")
	}

	return Checksum(canonical)
}

type frame struct {
	object bool
	count  int
}

// compactASCII re-encodes a JSON document token by token.
func compactASCII(data []byte) ([]byte, error) {
	if !json.Valid(data) {
		return nil, errors.New("invalid JSON")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var (
		buf   bytes.Buffer
		stack []frame
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, err
		}

		if d, ok := tok.(json.Delim); ok && (d == '}' || d == ']') {
			buf.WriteByte(byte(d))
			stack = stack[:len(stack)-1]

			continue
		}

		if n := len(stack); n > 0 {
			f := &stack[n-1]

			switch {
			case f.object && f.count%2 == 1:
				buf.WriteByte(':')
			case f.count > 0:
				buf.WriteByte(',')
			}

			f.count++
		}

		switch v := tok.(type) {
		case json.Delim:
			buf.WriteByte(byte(v))
			stack = append(stack, frame{object: v == '{'})
		case string:
			writeASCIIString(&buf, v)
		case json.Number:
			buf.WriteString(v.String())
		case bool:
			buf.WriteString(strconv.FormatBool(v))
		case nil:
			buf.WriteString("null")
		}
	}

	return buf.Bytes(), nil
}

func writeASCIIString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')

	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			switch {
			case r >= 0x20 && r <= 0x7e:
				buf.WriteRune(r)
			case r > 0xffff:
				r1, r2 := utf16.EncodeRune(r)
				fmt.Fprintf(buf, `\u%04x\u%04x`, r1, r2)
			default:
				fmt.Fprintf(buf, `\u%04x`, r)
			}
		}
	}

	buf.WriteByte('"')
}
