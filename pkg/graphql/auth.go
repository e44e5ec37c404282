package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// AuthConfig identifies the loader to the identity provider.
type AuthConfig struct {
	Domain       string
	ClientID     string
	ClientSecret string
	Audience     string
	// Token is a static bearer token that bypasses the identity provider.
	Token string
	// TokenFile caches device-flow tokens between runs.
	TokenFile string
	// Prompt receives the device-flow verification instructions.
	Prompt io.Writer
}

// TokenSource builds the token source described by cfg. It returns nil when
// neither a static token nor a client id is configured.
func TokenSource(ctx context.Context, cfg AuthConfig) (oauth2.TokenSource, error) {
	if cfg.Token != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"}), nil
	}
	if cfg.Domain == "" || cfg.ClientID == "" {
		return nil, nil
	}

	provider, err := oidc.NewProvider(ctx, issuerURL(cfg.Domain))
	if err != nil {
		return nil, fmt.Errorf("oidc provider init: %w", err)
	}
	endpoint := provider.Endpoint()

	if cfg.ClientSecret != "" {
		cc := clientcredentials.Config{
			ClientID:       cfg.ClientID,
			ClientSecret:   cfg.ClientSecret,
			TokenURL:       endpoint.TokenURL,
			EndpointParams: url.Values{},
		}
		if cfg.Audience != "" {
			cc.EndpointParams.Set("audience", cfg.Audience)
		}
		return cc.TokenSource(ctx), nil
	}

	var claims struct {
		DeviceEndpoint string `json:"device_authorization_endpoint"`
	}
	if err := provider.Claims(&claims); err != nil {
		return nil, fmt.Errorf("read provider metadata: %w", err)
	}
	if claims.DeviceEndpoint == "" {
		return nil, fmt.Errorf("provider %s has no device authorization endpoint", cfg.Domain)
	}
	endpoint.DeviceAuthURL = claims.DeviceEndpoint

	src := &deviceTokenSource{
		ctx: ctx,
		conf: &oauth2.Config{
			ClientID: cfg.ClientID,
			Endpoint: endpoint,
			Scopes:   []string{oidc.ScopeOpenID, oidc.ScopeOfflineAccess},
		},
		audience: cfg.Audience,
		path:     cfg.TokenFile,
		prompt:   cfg.Prompt,
	}
	return oauth2.ReuseTokenSource(nil, src), nil
}

func issuerURL(domain string) string {
	if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
		domain = "https://" + domain
	}
	return strings.TrimSuffix(domain, "/") + "/"
}

// tokenExpiry reads the exp claim of a JWT access token without verifying
// it; the server verifies.
func tokenExpiry(accessToken string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// withExpiry fills a missing expiry from the token's exp claim.
func withExpiry(tok *oauth2.Token) *oauth2.Token {
	if tok != nil && tok.Expiry.IsZero() {
		if exp, ok := tokenExpiry(tok.AccessToken); ok {
			tok.Expiry = exp
		}
	}
	return tok
}

// deviceTokenSource serves the cached token file, refreshes it, or runs the
// device authorization flow, in that order.
type deviceTokenSource struct {
	ctx      context.Context
	conf     *oauth2.Config
	audience string
	path     string
	prompt   io.Writer

	mu sync.Mutex
}

func (s *deviceTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cached, _ := LoadToken(s.path)
	if cached.Valid() {
		return cached, nil
	}

	if cached != nil && cached.RefreshToken != "" {
		tok, err := s.conf.TokenSource(s.ctx, cached).Token()
		if err == nil {
			tok = withExpiry(tok)
			if err := SaveToken(s.path, tok); err != nil {
				return nil, err
			}
			return tok, nil
		}
	}

	var opts []oauth2.AuthCodeOption
	if s.audience != "" {
		opts = append(opts, oauth2.SetAuthURLParam("audience", s.audience))
	}
	resp, err := s.conf.DeviceAuth(s.ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("device authorization: %w", err)
	}
	if s.prompt != nil {
		uri := resp.VerificationURIComplete
		if uri == "" {
			uri = resp.VerificationURI
		}
		fmt.Fprintf(s.prompt, "To sign in, open %s and enter the code %s\n", uri, resp.UserCode)
	}
	tok, err := s.conf.DeviceAccessToken(s.ctx, resp)
	if err != nil {
		return nil, fmt.Errorf("device access token: %w", err)
	}
	tok = withExpiry(tok)
	if err := SaveToken(s.path, tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// LoadToken reads a token file. A missing path or file yields nil.
func LoadToken(path string) (*oauth2.Token, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	return withExpiry(&tok), nil
}

// SaveToken writes tok to path with owner-only permissions.
func SaveToken(path string, tok *oauth2.Token) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}
