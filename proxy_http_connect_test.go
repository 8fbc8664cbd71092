// SPDX-License-Identifier: GPL-3.0-or-later

package nop

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHTTPConnectNegotiator() *HTTPConnectNegotiator {
	return NewHTTPConnectNegotiator(NewConfig(), &ProxyConfig{}, DefaultSLogger())
}

func TestHTTPConnectNegotiatorSuccess(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	serverDone := make(chan string, 1)
	go func() {
		reader := bufio.NewReader(server)
		line, _ := reader.ReadString('\n')
		for line != "\r\n" && line != "" {
			line, _ = reader.ReadString('\n')
		}
		server.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n"))
		tail := make([]byte, 5)
		n, _ := reader.Read(tail)
		serverDone <- string(tail[:n])
	}()

	op := newHTTPConnectNegotiator()
	target := NewDomainTarget("example.com", 443)
	tunnel, err := op.Negotiate(context.Background(), client, target)
	require.NoError(t, err)

	_, err = tunnel.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", <-serverDone)
}

func TestHTTPConnectNegotiatorPreservesBufferedBytes(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	go func() {
		reader := bufio.NewReader(server)
		line, _ := reader.ReadString('\n')
		for line != "\r\n" && line != "" {
			line, _ = reader.ReadString('\n')
		}
		server.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\ntunnel-bytes"))
	}()

	op := newHTTPConnectNegotiator()
	target := NewDomainTarget("example.com", 443)
	tunnel, err := op.Negotiate(context.Background(), client, target)
	require.NoError(t, err)

	buf := make([]byte, len("tunnel-bytes"))
	_, err = io.ReadFull(tunnel, buf)
	require.NoError(t, err)
	assert.Equal(t, "tunnel-bytes", string(buf))
}

func TestHTTPConnectNegotiatorProxyAuthRequired(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	go func() {
		reader := bufio.NewReader(server)
		line, _ := reader.ReadString('\n')
		for line != "\r\n" && line != "" {
			line, _ = reader.ReadString('\n')
		}
		server.Write([]byte("HTTP/1.1 407 Proxy Authentication Required\r\n\r\n"))
	}()

	op := newHTTPConnectNegotiator()
	_, err := op.Negotiate(context.Background(), client, NewDomainTarget("example.com", 443))
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrKindProxyAuthenticationRequired))
}

func TestHTTPConnectNegotiatorNonSuccessStatus(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	go func() {
		reader := bufio.NewReader(server)
		line, _ := reader.ReadString('\n')
		for line != "\r\n" && line != "" {
			line, _ = reader.ReadString('\n')
		}
		server.Write([]byte("HTTP/1.1 502 Bad Gateway\r\n\r\n"))
	}()

	op := newHTTPConnectNegotiator()
	_, err := op.Negotiate(context.Background(), client, NewDomainTarget("example.com", 443))
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrKindInvalidProxyResponse))
}

func TestHTTPConnectNegotiatorSendsAuthorizationHeader(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	headers := make(chan http.Header, 1)
	go func() {
		reader := bufio.NewReader(server)
		req, _ := http.ReadRequest(reader)
		headers <- req.Header
		server.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n"))
	}()

	cfg := NewConfig()
	proxy := &ProxyConfig{Authorization: NewBasicAuthorization("alice", "s3cr3t")}
	op := NewHTTPConnectNegotiator(cfg, proxy, DefaultSLogger())
	_, err := op.Negotiate(context.Background(), client, NewDomainTarget("example.com", 443))
	require.NoError(t, err)

	h := <-headers
	assert.NotEmpty(t, h.Get("Proxy-Authorization"))
}

func TestHTTPConnectNegotiatorTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	op := newHTTPConnectNegotiator()
	_, err := op.Negotiate(ctx, client, NewDomainTarget("example.com", 443))
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrKindHTTPProxyHandshakeTimeout))
}

func TestHTTPConnectNegotiatorProxyHangsUp(t *testing.T) {
	client, server := net.Pipe()

	go func() {
		reader := bufio.NewReader(server)
		line, _ := reader.ReadString('\n')
		for line != "\r\n" && line != "" {
			line, _ = reader.ReadString('\n')
		}
		server.Close() // hang up instead of answering the CONNECT
	}()

	op := newHTTPConnectNegotiator()
	_, err := op.Negotiate(context.Background(), client, NewDomainTarget("example.com", 443))
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrKindRemoteConnectionClosed))
}
