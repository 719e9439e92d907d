// Package oidc contains the data model of the OpenID Connect
// authorization code flow: the parsed token endpoint response, the
// parser that validates it and the codec of the state cookie payload.
package oidc

import (
	"time"
)

// TokenResponse holds the tokens obtained from the identity provider's
// token endpoint for one session. The ID token is always present;
// access and refresh tokens are optional and independent of each
// other.
type TokenResponse struct {
	// IDTokenJWT is the raw, serialized ID token.
	IDTokenJWT    string
	IDTokenExpiry time.Time

	// AccessToken is empty when the identity provider returned
	// none. AccessTokenExpiry is the zero time when the response
	// carried no expires_in field; RFC 6749 does not require one.
	AccessToken       string
	AccessTokenExpiry time.Time

	RefreshToken string
}

// TokenResponseParser validates and interprets token endpoint response
// bodies. Implementations must be safe for concurrent use.
type TokenResponseParser interface {
	// Parse interprets the response to an authorization code
	// exchange. The ID token's signature is verified, its audience
	// must contain the client ID and its nonce claim must equal the
	// nonce that was bound to the authorization request.
	Parse(clientID, nonce, body string) (*TokenResponse, error)

	// ParseRefreshTokenResponse interprets the response to a
	// refresh token grant, merging it into the token response that
	// is being refreshed. Fields absent from the refresh response
	// are carried forward from the existing response; in particular
	// an omitted refresh token means the previous one remains
	// valid. A refreshed ID token is verified for signature and
	// audience, but not nonce, as no nonce is bound to a refresh
	// grant.
	ParseRefreshTokenResponse(existing *TokenResponse, clientID, body string) (*TokenResponse, error)
}
