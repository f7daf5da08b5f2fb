// Package federation validates third-party identity assertions.
package federation

import (
	"context"
	"errors"

	"github.com/coreos/go-oidc/v3/oidc"
)

// ErrInvalidAssertion is returned for any assertion that fails verification:
// bad signature, wrong audience, expired, or malformed.
var ErrInvalidAssertion = errors.New("invalid identity assertion")

// Identity is the subset of assertion claims the auth flows consume.
type Identity struct {
	Email      string
	Name       string
	PictureURL string
}

// Verifier validates a provider assertion and extracts the asserted identity.
type Verifier interface {
	Verify(ctx context.Context, assertion string) (*Identity, error)
}

const googleIssuer = "https://accounts.google.com"

// GoogleVerifier validates Google ID tokens against the provider's published
// keys and the configured client audience.
type GoogleVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewGoogleVerifier discovers Google's OIDC configuration and returns a
// verifier bound to clientID as the required audience. The discovery request
// runs under ctx.
func NewGoogleVerifier(ctx context.Context, clientID string) (*GoogleVerifier, error) {
	if clientID == "" {
		return nil, errors.New("federation: google client id is required")
	}
	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, err
	}
	return &GoogleVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// Verify checks the assertion's signature, issuer, audience, and expiry, and
// returns the asserted identity. Any verification failure maps to
// ErrInvalidAssertion; the underlying cause is not exposed to callers.
func (v *GoogleVerifier) Verify(ctx context.Context, assertion string) (*Identity, error) {
	idToken, err := v.verifier.Verify(ctx, assertion)
	if err != nil {
		return nil, ErrInvalidAssertion
	}
	var claims struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, ErrInvalidAssertion
	}
	if claims.Email == "" {
		return nil, ErrInvalidAssertion
	}
	return &Identity{
		Email:      claims.Email,
		Name:       claims.Name,
		PictureURL: claims.Picture,
	}, nil
}
