package github

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/reviewhook/internal/domain/model"
	"github.com/ericfisherdev/reviewhook/internal/domain/port/driven"
)

// Assertion lifetime bounds. The 60-second backdating of iat tolerates clock
// skew against GitHub; the 10-minute expiry is the maximum GitHub accepts
// for app-level assertions. Both are protocol requirements, not tunables.
const (
	assertionBackdate = 60 * time.Second
	assertionLifetime = 10 * time.Minute
)

// Compile-time interface satisfaction check.
var _ driven.CredentialIssuer = (*AppCredentialIssuer)(nil)

// AppCredentialIssuer converts the GitHub App identity (app ID + RSA private
// key) into short-lived installation access tokens. Step one builds an
// RS256-signed assertion over {iat, exp, iss}; step two exchanges it for a
// scoped token addressed to a specific installation.
type AppCredentialIssuer struct {
	appID      int64
	key        *rsa.PrivateKey
	httpClient *http.Client
	baseURL    *url.URL // Nil in production; set for httptest servers.
	now        func() time.Time
}

// NewAppCredentialIssuer parses the PEM-encoded private key and returns an
// issuer. A malformed key is reported as a model.AuthError immediately, so
// startup fails fast rather than on the first webhook.
func NewAppCredentialIssuer(appID int64, privateKeyPEM []byte) (*AppCredentialIssuer, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, &model.AuthError{Op: "parse private key", Err: err}
	}

	return &AppCredentialIssuer{
		appID: appID,
		key:   key,
		now:   time.Now,
	}, nil
}

// NewAppCredentialIssuerWithHTTPClient creates an issuer with a custom
// http.Client and base URL. This constructor is intended for testing,
// allowing injection of an httptest server.
func NewAppCredentialIssuerWithHTTPClient(appID int64, privateKeyPEM []byte, httpClient *http.Client, baseURL string) (*AppCredentialIssuer, error) {
	issuer, err := NewAppCredentialIssuer(appID, privateKeyPEM)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	issuer.httpClient = httpClient
	issuer.baseURL = u
	return issuer, nil
}

// MintInstallationToken signs a fresh assertion and exchanges it for an
// installation access token. The token is scoped to the installation, time
// limited by GitHub, and intended for exactly one pipeline run. Upstream
// rejection surfaces as a model.AuthError.
func (i *AppCredentialIssuer) MintInstallationToken(ctx context.Context, installationID int64) (string, error) {
	assertion, err := i.signAssertion()
	if err != nil {
		return "", &model.AuthError{Op: "sign assertion", Err: err}
	}

	client := gh.NewClient(i.httpClient).WithAuthToken(assertion)
	if i.baseURL != nil {
		client.BaseURL = i.baseURL
	}

	token, _, err := client.Apps.CreateInstallationToken(ctx, installationID, nil)
	if err != nil {
		return "", &model.AuthError{Op: fmt.Sprintf("exchange token for installation %d", installationID), Err: err}
	}

	if token.GetToken() == "" {
		return "", &model.AuthError{Op: "exchange token", Err: fmt.Errorf("empty token in response")}
	}

	return token.GetToken(), nil
}

// signAssertion builds the RS256 app assertion GitHub exchanges for an
// installation token.
func (i *AppCredentialIssuer) signAssertion() (string, error) {
	now := i.now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-assertionBackdate)),
		ExpiresAt: jwt.NewNumericDate(now.Add(assertionLifetime)),
		Issuer:    strconv.FormatInt(i.appID, 10),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("signing assertion: %w", err)
	}

	return signed, nil
}
