// SPDX-License-Identifier: GPL-3.0-or-later

package nop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemeUsesTLS(t *testing.T) {
	assert.True(t, SchemeHTTPS.UsesTLS())
	assert.True(t, SchemeHTTPSUnix.UsesTLS())
	assert.False(t, SchemeHTTP.UsesTLS())
	assert.False(t, SchemeHTTPUnix.UsesTLS())
	assert.False(t, SchemeUnix.UsesTLS())
}

func TestSchemeProxyable(t *testing.T) {
	assert.True(t, SchemeHTTP.Proxyable())
	assert.True(t, SchemeHTTPS.Proxyable())
	assert.False(t, SchemeHTTPUnix.Proxyable())
	assert.False(t, SchemeHTTPSUnix.Proxyable())
	assert.False(t, SchemeUnix.Proxyable())
}

func TestNewIPTarget(t *testing.T) {
	target := NewIPTarget("93.184.216.34", 443)
	assert.True(t, target.IsIP())
	assert.False(t, target.IsDomain())
	assert.False(t, target.IsUnix())

	ip, ok := target.IP()
	require.True(t, ok)
	assert.Equal(t, "93.184.216.34", ip)
	assert.Equal(t, uint16(443), target.Port())
	assert.Equal(t, "93.184.216.34:443", target.Authority())
}

func TestNewDomainTargetLowercases(t *testing.T) {
	target := NewDomainTarget("EXAMPLE.com", 80)
	domain, ok := target.Domain()
	require.True(t, ok)
	assert.Equal(t, "example.com", domain)
	assert.Equal(t, "example.com:80", target.Authority())
}

func TestNewUnixTarget(t *testing.T) {
	target := NewUnixTarget("/var/run/app.sock")
	assert.True(t, target.IsUnix())

	path, ok := target.Path()
	require.True(t, ok)
	assert.Equal(t, "/var/run/app.sock", path)
	assert.Equal(t, uint16(0), target.Port())
	assert.Equal(t, "unix:/var/run/app.sock", target.String())
}

func TestTargetAuthorityPanicsOnUnix(t *testing.T) {
	target := NewUnixTarget("/tmp/x.sock")
	assert.Panics(t, func() { target.Authority() })
}

func TestNewTargetParsesIPLiteral(t *testing.T) {
	target, scheme, key, err := NewTarget("https://93.184.216.34:8443/path", "")
	require.NoError(t, err)
	assert.Equal(t, SchemeHTTPS, scheme)
	assert.True(t, target.IsIP())
	assert.Equal(t, uint16(8443), target.Port())
	assert.Equal(t, scheme, key.Scheme)
	assert.Equal(t, target, key.Target)
	assert.Empty(t, key.SNIOverride)
}

func TestNewTargetParsesDomainWithDefaultPort(t *testing.T) {
	target, scheme, _, err := NewTarget("https://example.com/", "")
	require.NoError(t, err)
	assert.Equal(t, SchemeHTTPS, scheme)
	domain, ok := target.Domain()
	require.True(t, ok)
	assert.Equal(t, "example.com", domain)
	assert.Equal(t, uint16(443), target.Port())
}

func TestNewTargetDefaultPortHTTP(t *testing.T) {
	target, scheme, _, err := NewTarget("http://example.com/", "")
	require.NoError(t, err)
	assert.Equal(t, SchemeHTTP, scheme)
	assert.Equal(t, uint16(80), target.Port())
}

func TestNewTargetSNIOverride(t *testing.T) {
	_, _, key, err := NewTarget("https://10.0.0.1/", "api.example.com")
	require.NoError(t, err)
	assert.Equal(t, "api.example.com", key.SNIOverride)
}

func TestNewTargetUnixScheme(t *testing.T) {
	target, scheme, _, err := NewTarget("http+unix:///var/run/app.sock", "")
	require.NoError(t, err)
	assert.Equal(t, SchemeHTTPUnix, scheme)
	assert.True(t, target.IsUnix())
	path, ok := target.Path()
	require.True(t, ok)
	assert.Equal(t, "/var/run/app.sock", path)
}

func TestNewTargetRejectsUnsupportedScheme(t *testing.T) {
	_, _, _, err := NewTarget("ftp://example.com/", "")
	assert.Error(t, err)
}

func TestNewTargetRejectsMissingHost(t *testing.T) {
	_, _, _, err := NewTarget("https:///path", "")
	assert.Error(t, err)
}

func TestNewTargetRejectsInvalidPort(t *testing.T) {
	_, _, _, err := NewTarget("https://example.com:notaport/", "")
	assert.Error(t, err)
}

func TestPoolKeyEquality(t *testing.T) {
	a := PoolKey{Scheme: SchemeHTTPS, Target: NewDomainTarget("example.com", 443)}
	b := PoolKey{Scheme: SchemeHTTPS, Target: NewDomainTarget("example.com", 443)}
	c := PoolKey{Scheme: SchemeHTTPS, Target: NewDomainTarget("example.com", 443), SNIOverride: "other.example.com"}

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
