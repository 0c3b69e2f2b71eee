// Package auth turns bearer tokens into request actors.
package auth

import (
	"context"
	"fmt"
	"strings"

	jwtverifier "github.com/okta/okta-jwt-verifier-golang"

	"github.com/AB-octo/Updated-Real-Estate-App/internal/config"
	"github.com/AB-octo/Updated-Real-Estate-App/internal/model"
)

// Verifier resolves a bearer token to an authenticated actor. Errors wrap
// model.ErrUnauthenticated.
type Verifier interface {
	Verify(ctx context.Context, token string) (model.Actor, error)
}

// New selects the verifier for the configured auth mode
func New(cfg *config.AuthConfig) (Verifier, error) {
	switch cfg.Mode {
	case "okta":
		return NewOktaVerifier(cfg), nil
	case "dev":
		return DevVerifier{}, nil
	}
	return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
}

// OktaVerifier validates Okta-issued access tokens
type OktaVerifier struct {
	verifier       *jwtverifier.JwtVerifier
	moderatorGroup string
}

// NewOktaVerifier creates a verifier for the configured issuer and audience
func NewOktaVerifier(cfg *config.AuthConfig) *OktaVerifier {
	toValidate := map[string]string{
		"aud": cfg.Audience,
	}
	if cfg.ClientID != "" {
		toValidate["cid"] = cfg.ClientID
	}
	verifierSetup := jwtverifier.JwtVerifier{
		Issuer:           cfg.Issuer,
		ClaimsToValidate: toValidate,
	}
	return &OktaVerifier{
		verifier:       verifierSetup.New(),
		moderatorGroup: cfg.ModeratorGroup,
	}
}

// Verify checks the token signature and claims
func (v *OktaVerifier) Verify(_ context.Context, token string) (model.Actor, error) {
	jwt, err := v.verifier.VerifyAccessToken(token)
	if err != nil {
		return model.Actor{}, fmt.Errorf("%w: %v", model.ErrUnauthenticated, err)
	}
	return actorFromClaims(jwt.Claims, v.moderatorGroup)
}

// actorFromClaims maps the subject and group claims of a verified token
func actorFromClaims(claims map[string]interface{}, moderatorGroup string) (model.Actor, error) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		sub, _ = claims["uid"].(string)
	}
	if sub == "" {
		return model.Actor{}, fmt.Errorf("%w: token has no subject", model.ErrUnauthenticated)
	}

	if moderatorGroup != "" {
		switch groups := claims["groups"].(type) {
		case []interface{}:
			for _, g := range groups {
				if s, ok := g.(string); ok && s == moderatorGroup {
					return model.Moderator(sub), nil
				}
			}
		case []string:
			for _, g := range groups {
				if g == moderatorGroup {
					return model.Moderator(sub), nil
				}
			}
		}
	}
	return model.Owner(sub), nil
}

// DevVerifier accepts tokens of the form dev:<user> or dev:<user>:moderator.
// Never enable it in production.
type DevVerifier struct{}

// Verify parses a development token
func (DevVerifier) Verify(_ context.Context, token string) (model.Actor, error) {
	parts := strings.Split(token, ":")
	if len(parts) < 2 || len(parts) > 3 || parts[0] != "dev" || parts[1] == "" {
		return model.Actor{}, fmt.Errorf("%w: malformed dev token", model.ErrUnauthenticated)
	}
	if len(parts) == 3 {
		if parts[2] != "moderator" {
			return model.Actor{}, fmt.Errorf("%w: unknown dev role %q", model.ErrUnauthenticated, parts[2])
		}
		return model.Moderator(parts[1]), nil
	}
	return model.Owner(parts[1]), nil
}
