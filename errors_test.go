// SPDX-License-Identifier: GPL-3.0-or-later

package nop

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrKindString(t *testing.T) {
	cases := []struct {
		kind ErrKind
		want string
	}{
		{ErrKindUnknown, "unknown"},
		{ErrKindConnectTimeout, "connectTimeout"},
		{ErrKindSOCKSHandshakeTimeout, "socksHandshakeTimeout"},
		{ErrKindHTTPProxyHandshakeTimeout, "httpProxyHandshakeTimeout"},
		{ErrKindTLSHandshakeTimeout, "tlsHandshakeTimeout"},
		{ErrKindInvalidProxyResponse, "invalidProxyResponse"},
		{ErrKindProxyAuthenticationRequired, "proxyAuthenticationRequired"},
		{ErrKindServerOfferedUnsupportedApplicationProtocol, "serverOfferedUnsupportedApplicationProtocol"},
		{ErrKindRemoteConnectionClosed, "remoteConnectionClosed"},
		{ErrKindCancelled, "cancelled"},
		{ErrKindDeadlineExceeded, "deadlineExceeded"},
		{ErrKindTLS, "tlsError"},
		{ErrKindPosix, "posixError"},
		{ErrKind(999), "unknown"},
	}
	for _, c := range cases {
		t.Run(c.want, func(t *testing.T) {
			assert.Equal(t, c.want, c.kind.String())
		})
	}
}

func TestConnectErrorErrorFormatting(t *testing.T) {
	cause := errors.New("boom")

	t.Run("no detail no cause", func(t *testing.T) {
		err := NewConnectError(ErrKindTLS, "", nil)
		assert.Equal(t, "nop: tlsError", err.Error())
	})

	t.Run("no detail with cause", func(t *testing.T) {
		err := NewConnectError(ErrKindTLS, "", cause)
		assert.Equal(t, "nop: tlsError: boom", err.Error())
	})

	t.Run("detail no cause", func(t *testing.T) {
		err := NewConnectError(ErrKindInvalidProxyResponse, "status 502", nil)
		assert.Equal(t, "nop: invalidProxyResponse: status 502", err.Error())
	})

	t.Run("detail with cause", func(t *testing.T) {
		err := NewConnectError(ErrKindInvalidProxyResponse, "status 502", cause)
		assert.Equal(t, "nop: invalidProxyResponse: status 502: boom", err.Error())
	})
}

func TestConnectErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewConnectError(ErrKindPosix, "dial", cause)
	assert.Same(t, cause, errors.Unwrap(err))
	assert.ErrorIs(t, err, cause)
}

func TestConnectErrorUnwrapNilCause(t *testing.T) {
	err := NewConnectError(ErrKindPosix, "dial", nil)
	assert.Nil(t, errors.Unwrap(err))
}

func TestIsKindMatchesConnectError(t *testing.T) {
	err := NewConnectError(ErrKindConnectTimeout, "", nil)
	assert.True(t, IsKind(err, ErrKindConnectTimeout))
	assert.False(t, IsKind(err, ErrKindTLS))
}

func TestIsKindWrappedConnectError(t *testing.T) {
	inner := NewConnectError(ErrKindConnectTimeout, "", nil)
	wrapped := errors.Join(errors.New("context"), inner)
	assert.True(t, IsKind(wrapped, ErrKindConnectTimeout))
}

func TestIsKindFalseForPlainError(t *testing.T) {
	assert.False(t, IsKind(errors.New("plain"), ErrKindConnectTimeout))
	assert.False(t, IsKind(nil, ErrKindConnectTimeout))
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNoCandidates,
		ErrRejectedByPredicate,
		ErrUnixSocketNotProxyable,
		ErrNoResolvedAddresses,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.NotErrorIs(t, a, b)
		}
	}
}
