package oidc

import (
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// stateCookieDelimiter separates the state from the nonce inside the
// state cookie payload. Both values are URL safe base64, which never
// produces a semicolon, so the encoding is unambiguous.
const stateCookieDelimiter = ";"

// EncodeStateCookie encodes the (state, nonce) pair that is placed,
// encrypted, in the state cookie between the authorization redirect
// and the callback.
func EncodeStateCookie(state, nonce string) string {
	return state + stateCookieDelimiter + nonce
}

// DecodeStateCookie recovers the (state, nonce) pair from a decrypted
// state cookie payload.
func DecodeStateCookie(value string) (string, string, error) {
	state, nonce, ok := strings.Cut(value, stateCookieDelimiter)
	if !ok || state == "" || nonce == "" || strings.Contains(nonce, stateCookieDelimiter) {
		return "", "", status.Error(codes.InvalidArgument, "State cookie payload is not a delimited state and nonce pair")
	}
	return state, nonce, nil
}
