/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package chain

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"syscall"

	"github.com/pkg/errors"
)

var (
	// ErrReceiptTimeout is returned when a transaction is not mined within the receipt timeout.
	ErrReceiptTimeout = errors.New("timed out waiting for transaction receipt")

	// ErrInvalidTxID is returned for transaction ids that are not 32 byte hex hashes.
	ErrInvalidTxID = errors.New("invalid transaction id")
)

const redacted = "xxxxx"

// minSecretLen is the shortest endpoint fragment replaced verbatim in error messages.
const minSecretLen = 4

var urlPattern = regexp.MustCompile(`(?i)\b(?:https?|wss?)://[^\s"']+`)

// Error is a failed call to the chain node. It is retriable by the client at a later time.
type Error struct {
	Op       string
	Endpoint string
	Err      error

	// raw is the endpoint as configured, never rendered.
	raw string
}

func newError(op, endpoint string, err error) *Error {
	return &Error{Op: op, Endpoint: RedactURL(endpoint), Err: err, raw: endpoint}
}

// Error returns the error message with endpoint credentials removed.
func (e *Error) Error() string {
	msg := e.Err.Error()

	if e.raw != "" && e.raw != e.Endpoint {
		msg = strings.ReplaceAll(msg, e.raw, e.Endpoint)
	}

	for _, secret := range endpointSecrets(e.raw) {
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return fmt.Sprintf("%s on %s: %s", e.Op, e.Endpoint, RedactURLs(msg))
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// RedactURL reduces an RPC endpoint to scheme and host. A trailing xxxxx marks an endpoint that carried
// user info, a path or a query.
func RedactURL(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}

	r := &url.URL{Scheme: u.Scheme, Host: u.Host}

	if u.User != nil || strings.Trim(u.Path, "/") != "" || u.RawQuery != "" || u.Fragment != "" {
		r.Path = "/" + redacted
	}

	return r.String()
}

// RedactURLs redacts every URL found in msg.
func RedactURLs(msg string) string {
	return urlPattern.ReplaceAllStringFunc(msg, func(u string) string {
		trimmed := strings.TrimRight(u, ":.,;)")

		return RedactURL(trimmed) + u[len(trimmed):]
	})
}

// endpointSecrets returns the credential carrying parts of endpoint, longest first.
func endpointSecrets(endpoint string) []string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return nil
	}

	var secrets []string

	add := func(values ...string) {
		for _, v := range values {
			if len(v) >= minSecretLen {
				secrets = append(secrets, v)
			}
		}
	}

	if u.User != nil {
		password, _ := u.User.Password()
		add(u.User.String(), u.User.Username(), password)
	}

	if strings.Trim(u.Path, "/") != "" {
		add(u.EscapedPath(), u.Path)

		for _, segment := range strings.Split(u.Path, "/") {
			add(segment)
		}
	}

	if u.RawQuery != "" {
		add(u.RawQuery)

		for _, values := range u.Query() {
			add(values...)
		}
	}

	add(u.Fragment)

	sort.SliceStable(secrets, func(i, j int) bool { return len(secrets[i]) > len(secrets[j]) })

	return secrets
}

// IsConnectionClosed returns true for errors caused by the RPC connection being closed under the caller.
func IsConnectionClosed(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	msg := strings.ToLower(err.Error())

	for _, s := range []string{"connection closed", "use of closed network connection",
		"connection reset", "websocket: close", "broken pipe"} {
		if strings.Contains(msg, s) {
			return true
		}
	}

	return false
}
