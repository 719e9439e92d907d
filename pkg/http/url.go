package http

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/meshguard/authservice/pkg/config"
)

// EncodeQueryData percent-encodes parameters for use in a URL query
// string. Keys are emitted in sorted order; duplicate keys are
// preserved.
func EncodeQueryData(params url.Values) string {
	return params.Encode()
}

// EncodeFormData percent-encodes parameters as an
// application/x-www-form-urlencoded request body.
func EncodeFormData(params url.Values) string {
	return params.Encode()
}

// DecodeQueryData parses a raw query string into a multimap. Malformed
// input yields an error instead of partial results.
func DecodeQueryData(query string) (url.Values, error) {
	return url.ParseQuery(query)
}

// DecodePath splits a request path on the first question mark into the
// path proper and the query string. The query string is empty when
// absent.
func DecodePath(path string) (string, string) {
	pathOnly, query, _ := strings.Cut(path, "?")
	return pathOnly, query
}

// ToURL renders an endpoint as "scheme://host[:port]path". The port is
// omitted only when it equals the default for the scheme, which
// matters when matching the callback host of incoming requests.
func ToURL(endpoint *config.Endpoint) string {
	if (endpoint.Scheme == "https" && endpoint.Port == 443) ||
		(endpoint.Scheme == "http" && endpoint.Port == 80) {
		return fmt.Sprintf("%s://%s%s", endpoint.Scheme, endpoint.Hostname, endpoint.Path)
	}
	return fmt.Sprintf("%s://%s:%d%s", endpoint.Scheme, endpoint.Hostname, endpoint.Port, endpoint.Path)
}

// EncodeBasicAuth builds an Authorization header value carrying HTTP
// basic authentication credentials.
func EncodeBasicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// EncodeHeaderValue prefixes a token with a preamble (e.g. "Bearer"),
// if one is configured.
func EncodeHeaderValue(preamble, value string) string {
	if preamble != "" {
		return preamble + " " + value
	}
	return value
}
