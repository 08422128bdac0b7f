// SPDX-License-Identifier: ice License 1.0

// Package resolver performs the two external lookups that enrich profile
// ingestion: NIP-05 identifier verification and lnurl-pay zap endpoint
// discovery. Every failure mode resolves to "not verified" / "no pubkey";
// ingestion never blocks on, nor fails because of, a third-party host.
package resolver

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
)

type (
	Resolver struct {
		cfg    *Config
		client *http.Client
	}

	Config struct {
		RequestTimeout  time.Duration `mapstructure:"requestTimeout" yaml:"requestTimeout"`
		MaxResponseSize int64         `mapstructure:"maxResponseSize" yaml:"maxResponseSize"`
	}
)

// Local parts per NIP-05, matched case-insensitively.
var nip05NameRx = regexp.MustCompile(`^[a-z0-9-_]+$`)

func New(cfg *Config) *Resolver {
	if cfg == nil {
		cfg = new(Config)
	}

	return &Resolver{cfg: cfg, client: &http.Client{Timeout: cfg.requestTimeout()}}
}

// VerifyNip05 checks that the domain behind `name@domain` attests the
// expected pubkey via its /.well-known/nostr.json document.
func (r *Resolver) VerifyNip05(ctx context.Context, identifier, expectedPubkey string) bool {
	name, domain, found := strings.Cut(strings.ToLower(identifier), "@")
	if !found || name == "" || domain == "" || !nip05NameRx.MatchString(name) {
		return false
	}

	body, err := r.fetch(ctx, "https://"+domain+"/.well-known/nostr.json?name="+url.QueryEscape(name))
	if err != nil {
		return false
	}

	return gjson.GetBytes(body, "names."+name).String() == expectedPubkey
}

// ResolveZapPubkey discovers the nostr signing key of a lightning wallet
// service, from either a lud16 address or a bech32 lud06 lnurl. The key is
// returned only when the service opts into zaps via allowsNostr.
func (r *Resolver) ResolveZapPubkey(ctx context.Context, lnurlOrAddress string) string {
	endpoint, err := payEndpoint(lnurlOrAddress)
	if err != nil {
		return ""
	}

	body, err := r.fetch(ctx, endpoint)
	if err != nil {
		return ""
	}
	if !gjson.GetBytes(body, "allowsNostr").Bool() {
		return ""
	}

	return gjson.GetBytes(body, "nostrPubkey").String()
}

func payEndpoint(lnurlOrAddress string) (string, error) {
	if name, domain, found := strings.Cut(lnurlOrAddress, "@"); found {
		if name == "" || domain == "" {
			return "", errors.Errorf("malformed lightning address %q", lnurlOrAddress)
		}

		return "https://" + domain + "/.well-known/lnurlp/" + url.PathEscape(name), nil
	}

	return decodeLnurl(lnurlOrAddress)
}

// decodeLnurl unwraps a bech32 lud06 string into the https endpoint it
// encodes.
func decodeLnurl(lnurl string) (string, error) {
	hrp, data, err := bech32.DecodeNoLimit(strings.ToLower(lnurl))
	if err != nil {
		return "", errors.Wrapf(err, "invalid lnurl %q", lnurl)
	}
	if hrp != "lnurl" {
		return "", errors.Errorf("unexpected lnurl prefix %q", hrp)
	}
	decoded, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", errors.Wrapf(err, "invalid lnurl payload %q", lnurl)
	}
	endpoint := string(decoded)
	if !strings.HasPrefix(endpoint, "https://") {
		return "", errors.Errorf("refusing non-https lnurl endpoint %q", endpoint)
	}

	return endpoint, nil
}

func (r *Resolver) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, r.cfg.requestTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build request for %v", endpoint)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "request to %v failed", endpoint)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("request to %v returned %v", endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.cfg.maxResponseSize()))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read response from %v", endpoint)
	}

	return body, nil
}

func (c *Config) requestTimeout() time.Duration {
	if c.RequestTimeout <= 0 {
		return 10 * time.Second
	}

	return c.RequestTimeout
}

func (c *Config) maxResponseSize() int64 {
	if c.MaxResponseSize <= 0 {
		return 1 << 20
	}

	return c.MaxResponseSize
}
