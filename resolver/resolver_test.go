// SPDX-License-Identifier: ice License 1.0

package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/stretchr/testify/require"
)

const (
	testDeadline = 30 * time.Second
	testPubkey   = "deadbeefpubkey"
)

func newTestResolver(t *testing.T, handler http.Handler) (*Resolver, string) {
	t.Helper()
	server := httptest.NewTLSServer(handler)
	t.Cleanup(server.Close)

	r := New(nil)
	r.client = server.Client()

	return r, strings.TrimPrefix(server.URL, "https://")
}

func encodeLnurl(t *testing.T, endpoint string) string {
	t.Helper()
	converted, err := bech32.ConvertBits([]byte(endpoint), 8, 5, true)
	require.NoError(t, err)
	lnurl, err := bech32.Encode("lnurl", converted)
	require.NoError(t, err)

	return lnurl
}

func TestVerifyNip05(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), testDeadline)
	defer cancel()
	r, domain := newTestResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		require.Equal(t, "/.well-known/nostr.json", req.URL.Path)
		switch req.URL.Query().Get("name") {
		case "alice":
			w.Write([]byte(`{"names":{"alice":"` + testPubkey + `"}}`))
		case "mallory":
			w.Write([]byte(`{"names":{"mallory":"someoneelsespubkey"}}`))
		default:
			w.Write([]byte(`{"names":{}}`))
		}
	}))

	require.True(t, r.VerifyNip05(ctx, "alice@"+domain, testPubkey))
	require.True(t, r.VerifyNip05(ctx, "ALICE@"+domain, testPubkey), "identifiers are case-insensitive")

	t.Run("fails closed", func(t *testing.T) {
		require.False(t, r.VerifyNip05(ctx, "mallory@"+domain, testPubkey), "pubkey mismatch")
		require.False(t, r.VerifyNip05(ctx, "unknown@"+domain, testPubkey), "name absent from document")
		require.False(t, r.VerifyNip05(ctx, "no-at-sign", testPubkey))
		require.False(t, r.VerifyNip05(ctx, "spaced name@"+domain, testPubkey), "local part outside nip05 charset")
		require.False(t, r.VerifyNip05(ctx, "", testPubkey))
	})
	t.Run("unreachable domain fails closed", func(t *testing.T) {
		require.False(t, New(nil).VerifyNip05(ctx, "alice@localhost:1", testPubkey))
	})
}

func TestResolveZapPubkeyFromAddress(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), testDeadline)
	defer cancel()
	r, domain := newTestResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/.well-known/lnurlp/alice":
			w.Write([]byte(`{"callback":"https://wallet.example.com/pay","allowsNostr":true,"nostrPubkey":"zapperservicepubkey"}`))
		case "/.well-known/lnurlp/bob":
			w.Write([]byte(`{"callback":"https://wallet.example.com/pay","allowsNostr":false,"nostrPubkey":"zapperservicepubkey"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	require.Equal(t, "zapperservicepubkey", r.ResolveZapPubkey(ctx, "alice@"+domain))

	t.Run("service without zap support yields nothing", func(t *testing.T) {
		require.Empty(t, r.ResolveZapPubkey(ctx, "bob@"+domain))
	})
	t.Run("unknown name yields nothing", func(t *testing.T) {
		require.Empty(t, r.ResolveZapPubkey(ctx, "unknown@"+domain))
	})
	t.Run("unreachable domain yields nothing", func(t *testing.T) {
		require.Empty(t, New(nil).ResolveZapPubkey(ctx, "alice@localhost:1"))
	})
}

func TestResolveZapPubkeyFromLnurl(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), testDeadline)
	defer cancel()
	r, domain := newTestResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		require.Equal(t, "/lnurlp/carol", req.URL.Path)
		w.Write([]byte(`{"allowsNostr":true,"nostrPubkey":"zapperservicepubkey"}`))
	}))

	lnurl := encodeLnurl(t, "https://"+domain+"/lnurlp/carol")
	require.Equal(t, "zapperservicepubkey", r.ResolveZapPubkey(ctx, lnurl))
	require.Equal(t, "zapperservicepubkey", r.ResolveZapPubkey(ctx, strings.ToUpper(lnurl)), "qr-style uppercase lnurl")

	t.Run("garbage lnurl yields nothing", func(t *testing.T) {
		require.Empty(t, r.ResolveZapPubkey(ctx, "lnurl1garbage"))
		require.Empty(t, r.ResolveZapPubkey(ctx, ""))
	})
	t.Run("non-https endpoint is refused", func(t *testing.T) {
		require.Empty(t, r.ResolveZapPubkey(ctx, encodeLnurl(t, "http://"+domain+"/lnurlp/carol")))
	})
}

func TestPayEndpoint(t *testing.T) {
	endpoint, err := payEndpoint("alice@wallet.example.com")
	require.NoError(t, err)
	require.Equal(t, "https://wallet.example.com/.well-known/lnurlp/alice", endpoint)

	_, err = payEndpoint("@wallet.example.com")
	require.Error(t, err)
	_, err = payEndpoint("alice@")
	require.Error(t, err)
}
