package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Identity is what the external provider asserts about a signed-in session.
type Identity struct {
	SubjectID   string
	Email       string
	DisplayName string
	PhotoURL    string
	Device      DeviceInfo
}

type DeviceInfo struct {
	UserAgent string
	Platform  string
	IPAddress string
}

// Provider abstracts the external identity provider. SignOut revokes the
// session for a subject; Verify turns a raw ID token into an Identity.
type Provider interface {
	Verify(ctx context.Context, rawToken string) (Identity, error)
	SignOut(ctx context.Context, subjectID string) error
}

var ErrInvalidToken = errors.New("identity: invalid token")

// TokenProvider verifies HS256 ID tokens issued by the provider and calls
// its revocation endpoint for sign-out. An empty revokeURL makes SignOut a
// no-op, which is what local development uses.
type TokenProvider struct {
	secret    []byte
	issuer    string
	revokeURL string
	client    *resty.Client
}

func NewTokenProvider(secret, issuer, revokeURL string) *TokenProvider {
	return &TokenProvider{
		secret:    []byte(secret),
		issuer:    issuer,
		revokeURL: revokeURL,
		client:    resty.New().SetHeader("Accept", "application/json"),
	}
}

func (p *TokenProvider) Verify(ctx context.Context, rawToken string) (Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claimString := func(key string) string {
		if v, ok := claims[key].(string); ok {
			return v
		}
		return ""
	}

	ident := Identity{
		SubjectID:   claimString("sub"),
		Email:       claimString("email"),
		DisplayName: claimString("name"),
		PhotoURL:    claimString("picture"),
	}
	if ident.SubjectID == "" {
		return Identity{}, fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}

	return ident, nil
}

func (p *TokenProvider) SignOut(ctx context.Context, subjectID string) error {
	if p.revokeURL == "" {
		return nil
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"sub": subjectID}).
		Post(p.revokeURL)
	if err != nil {
		return fmt.Errorf("identity: revoke session: %w", err)
	}
	if resp.StatusCode() >= 400 {
		return fmt.Errorf("identity: revoke session: status %d", resp.StatusCode())
	}

	return nil
}
