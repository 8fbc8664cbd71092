// SPDX-License-Identifier: GPL-3.0-or-later

package nop

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"

	"golang.org/x/net/http2"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Call wraps the connection in the transport matching the negotiated protocol.
func TestNewHTTPConn(t *testing.T) {
	t.Run("plain connection uses HTTP/1.1", func(t *testing.T) {
		mockConn := newMinimalConn()

		fn := NewHTTPConnFuncPlain(NewConfig(), DefaultSLogger())
		hc, err := fn.Call(context.Background(), mockConn)
		require.NoError(t, err)

		require.NotNil(t, hc)
		assert.Equal(t, mockConn, hc.Conn())
		_, ok := hc.txp.(*http.Transport)
		assert.True(t, ok)
	})

	t.Run("NegotiatedHTTP2 uses the HTTP/2 transport", func(t *testing.T) {
		mockConn := newMinimalConn()

		fn := NewHTTPConnFunc(NewConfig(), NegotiatedHTTP2, DefaultSLogger())
		hc, err := fn.Call(context.Background(), mockConn)
		require.NoError(t, err)

		require.NotNil(t, hc)
		assert.Equal(t, mockConn, hc.Conn())
		_, ok := hc.txp.(*http2.Transport)
		assert.True(t, ok)
	})

	t.Run("NegotiatedHTTP1_1 uses the HTTP/1.1 transport", func(t *testing.T) {
		mockConn := newMinimalConn()

		fn := NewHTTPConnFunc(NewConfig(), NegotiatedHTTP1_1, DefaultSLogger())
		hc, err := fn.Call(context.Background(), mockConn)
		require.NoError(t, err)

		require.NotNil(t, hc)
		_, ok := hc.txp.(*http.Transport)
		assert.True(t, ok)
	})
}

// Close delegates to the underlying connection.
func TestHTTPConnClose(t *testing.T) {
	closeCalled := false
	mockConn := newMinimalConn()
	mockConn.CloseFunc = func() error {
		closeCalled = true
		return nil
	}

	fn := NewHTTPConnFuncPlain(NewConfig(), DefaultSLogger())
	hc, err := fn.Call(context.Background(), mockConn)
	require.NoError(t, err)

	err = hc.Close()

	require.NoError(t, err)
	assert.True(t, closeCalled)
}

// Close propagates errors from the underlying connection.
func TestHTTPConnCloseError(t *testing.T) {
	wantErr := errors.New("close error")

	mockConn := newMinimalConn()
	mockConn.CloseFunc = func() error {
		return wantErr
	}

	fn := NewHTTPConnFuncPlain(NewConfig(), DefaultSLogger())
	hc, err := fn.Call(context.Background(), mockConn)
	require.NoError(t, err)

	err = hc.Close()

	require.ErrorIs(t, err, wantErr)
}

// Conn returns the underlying net.Conn.
func TestHTTPConnConn(t *testing.T) {
	mockConn := newMinimalConn()

	fn := NewHTTPConnFuncPlain(NewConfig(), DefaultSLogger())
	hc, err := fn.Call(context.Background(), mockConn)
	require.NoError(t, err)

	assert.Equal(t, mockConn, hc.Conn())
}

// NewHTTPConnFunc satisfies Func[net.Conn, *HTTPConn].
func TestNewHTTPConnFunc(t *testing.T) {
	fn := NewHTTPConnFunc(NewConfig(), NegotiatedHTTP2, DefaultSLogger())
	require.NotNil(t, fn)
	assert.Equal(t, NegotiatedHTTP2, fn.Protocol)

	// Verify it satisfies Func interface
	var _ Func[net.Conn, *HTTPConn] = fn
}

// NewHTTPConnFuncPlain pins the protocol to HTTP/1.1.
func TestNewHTTPConnFuncPlain(t *testing.T) {
	fn := NewHTTPConnFuncPlain(NewConfig(), DefaultSLogger())
	require.NotNil(t, fn)
	assert.Equal(t, NegotiatedHTTP1_1, fn.Protocol)
}
