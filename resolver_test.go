// SPDX-License-Identifier: GPL-3.0-or-later

package nop

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemResolverPropagatesLookupFailure(t *testing.T) {
	boom := errors.New("no such network")
	r := SystemResolver{Resolver: &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			return nil, boom
		},
	}}
	_, err := r.Resolve(context.Background(), "example.invalid", 443)
	assert.Error(t, err)
}

func TestResolveFuncDelegatesToResolver(t *testing.T) {
	called := false
	want := []netip.AddrPort{netip.MustParseAddrPort("93.184.216.34:443")}
	r := &fakeResolver{resolve: func(ctx context.Context, host string, port uint16) ([]netip.AddrPort, error) {
		called = true
		assert.Equal(t, "example.com", host)
		assert.Equal(t, uint16(443), port)
		return want, nil
	}}
	op := NewResolveFunc(r, "example.com", 443)

	got, err := op.Call(context.Background(), Unit{})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, want, got)
}
