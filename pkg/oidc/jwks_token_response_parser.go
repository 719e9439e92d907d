package oidc

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/meshguard/authservice/pkg/clock"
	"github.com/meshguard/authservice/pkg/util"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// tokenEndpointResponse is the JSON shape of a successful response
// from the identity provider's token endpoint (RFC 6749, section 5.1).
type tokenEndpointResponse struct {
	TokenType    string `json:"token_type"`
	IDToken      string `json:"id_token"`
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

type idTokenClaims struct {
	jwt.Claims
	Nonce string `json:"nonce"`
}

type jwksTokenResponseParser struct {
	keySet *jose.JSONWebKeySet
	clock  clock.Clock
}

// NewJWKSTokenResponseParser creates a TokenResponseParser that
// verifies ID token signatures against a fixed JSON Web Key Set.
func NewJWKSTokenResponseParser(keySet *jose.JSONWebKeySet, clock clock.Clock) TokenResponseParser {
	return &jwksTokenResponseParser{
		keySet: keySet,
		clock:  clock,
	}
}

func (p *jwksTokenResponseParser) parseBody(body string) (*tokenEndpointResponse, error) {
	var response tokenEndpointResponse
	if err := json.Unmarshal([]byte(body), &response); err != nil {
		return nil, util.StatusWrapWithCode(err, codes.InvalidArgument, "Failed to unmarshal token endpoint response")
	}
	if !strings.EqualFold(response.TokenType, "Bearer") {
		return nil, status.Errorf(codes.InvalidArgument, "Unexpected token type %#v", response.TokenType)
	}
	return &response, nil
}

// parseIDToken verifies the signature and audience of a serialized ID
// token and returns its claims.
func (p *jwksTokenResponseParser) parseIDToken(raw, clientID string) (*idTokenClaims, error) {
	token, err := jwt.ParseSigned(raw)
	if err != nil {
		return nil, util.StatusWrapWithCode(err, codes.InvalidArgument, "Failed to parse ID token")
	}
	var claims idTokenClaims
	if err := token.Claims(p.keySet, &claims); err != nil {
		return nil, util.StatusWrapWithCode(err, codes.InvalidArgument, "Failed to verify ID token signature")
	}
	audienceMatches := false
	for _, audience := range claims.Audience {
		if audience == clientID {
			audienceMatches = true
			break
		}
	}
	if !audienceMatches {
		return nil, status.Error(codes.InvalidArgument, "ID token audience does not contain the client ID")
	}
	if claims.Expiry == nil {
		return nil, status.Error(codes.InvalidArgument, "ID token does not contain an expiry")
	}
	return &claims, nil
}

func (p *jwksTokenResponseParser) accessTokenExpiry(expiresIn int64) time.Time {
	if expiresIn <= 0 {
		return time.Time{}
	}
	return p.clock.Now().Add(time.Duration(expiresIn) * time.Second)
}

func (p *jwksTokenResponseParser) Parse(clientID, nonce, body string) (*TokenResponse, error) {
	response, err := p.parseBody(body)
	if err != nil {
		return nil, err
	}
	if response.IDToken == "" {
		return nil, status.Error(codes.InvalidArgument, "Token endpoint response does not contain an ID token")
	}
	claims, err := p.parseIDToken(response.IDToken, clientID)
	if err != nil {
		return nil, err
	}
	if claims.Nonce != nonce {
		return nil, status.Error(codes.InvalidArgument, "ID token nonce does not match the authorization request")
	}
	return &TokenResponse{
		IDTokenJWT:        response.IDToken,
		IDTokenExpiry:     claims.Expiry.Time(),
		AccessToken:       response.AccessToken,
		AccessTokenExpiry: p.accessTokenExpiry(response.ExpiresIn),
		RefreshToken:      response.RefreshToken,
	}, nil
}

func (p *jwksTokenResponseParser) ParseRefreshTokenResponse(existing *TokenResponse, clientID, body string) (*TokenResponse, error) {
	response, err := p.parseBody(body)
	if err != nil {
		return nil, err
	}

	merged := *existing
	if response.IDToken != "" {
		claims, err := p.parseIDToken(response.IDToken, clientID)
		if err != nil {
			return nil, err
		}
		merged.IDTokenJWT = response.IDToken
		merged.IDTokenExpiry = claims.Expiry.Time()
	}
	if response.AccessToken != "" {
		merged.AccessToken = response.AccessToken
		merged.AccessTokenExpiry = p.accessTokenExpiry(response.ExpiresIn)
	}
	if response.RefreshToken != "" {
		merged.RefreshToken = response.RefreshToken
	}
	return &merged, nil
}
