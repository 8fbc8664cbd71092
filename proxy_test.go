// SPDX-License-Identifier: GPL-3.0-or-later

package nop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProxyAuthorizationBasic(t *testing.T) {
	auth := NewBasicAuthorization("alice", "s3cr3t")
	assert.True(t, auth.IsSet())

	user, pass, ok := auth.IsBasic()
	require.True(t, ok)
	assert.Equal(t, "alice", user)
	assert.Equal(t, "s3cr3t", pass)

	_, ok = auth.IsBearer()
	assert.False(t, ok)
}

func TestProxyAuthorizationBearer(t *testing.T) {
	auth := NewBearerAuthorization("tok-123")
	assert.True(t, auth.IsSet())

	token, ok := auth.IsBearer()
	require.True(t, ok)
	assert.Equal(t, "tok-123", token)

	_, _, ok = auth.IsBasic()
	assert.False(t, ok)
}

func TestProxyAuthorizationZeroValueUnset(t *testing.T) {
	var auth ProxyAuthorization
	assert.False(t, auth.IsSet())
}

func TestProxyConfigTargetIPLiteral(t *testing.T) {
	proxy := &ProxyConfig{Kind: ProxyKindHTTP, Host: "10.0.0.1", Port: 3128}
	target := proxy.Target()
	assert.True(t, target.IsIP())
	assert.Equal(t, uint16(3128), target.Port())
}

func TestProxyConfigTargetDomain(t *testing.T) {
	proxy := &ProxyConfig{Kind: ProxyKindSOCKS5, Host: "proxy.example.com", Port: 1080}
	target := proxy.Target()
	assert.True(t, target.IsDomain())
	domain, _ := target.Domain()
	assert.Equal(t, "proxy.example.com", domain)
}

func TestNewProxyNegotiatorHTTP(t *testing.T) {
	cfg := NewConfig()
	proxy := &ProxyConfig{Kind: ProxyKindHTTP, Host: "proxy.example.com", Port: 8080}
	negotiator, err := NewProxyNegotiator(cfg, proxy, DefaultSLogger())
	require.NoError(t, err)
	_, ok := negotiator.(*HTTPConnectNegotiator)
	assert.True(t, ok)
}

func TestNewProxyNegotiatorSOCKS5(t *testing.T) {
	cfg := NewConfig()
	proxy := &ProxyConfig{Kind: ProxyKindSOCKS5, Host: "proxy.example.com", Port: 1080}
	negotiator, err := NewProxyNegotiator(cfg, proxy, DefaultSLogger())
	require.NoError(t, err)
	_, ok := negotiator.(*SOCKS5Negotiator)
	assert.True(t, ok)
}

func TestNewProxyNegotiatorUnknownKind(t *testing.T) {
	cfg := NewConfig()
	proxy := &ProxyConfig{Kind: ProxyKind(99), Host: "proxy.example.com", Port: 1080}
	_, err := NewProxyNegotiator(cfg, proxy, DefaultSLogger())
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrKindInvalidProxyResponse))
}
