package http

import (
	"fmt"
	"sort"
	"strings"
)

// NoMaxAge may be passed to CookieDirectives to omit the Max-Age
// directive entirely, yielding a session lifetime cookie.
const NoMaxAge int64 = -1

// CookieDirectives returns the directives that every authentication
// cookie must carry. A non-negative maxAge adds a Max-Age directive
// with that number of seconds.
func CookieDirectives(maxAge int64) []string {
	directives := []string{
		DirectiveHttpOnly,
		DirectiveSameSiteLax,
		DirectiveSecure,
		DirectivePathRoot,
	}
	if maxAge != NoMaxAge {
		directives = append(directives, fmt.Sprintf("Max-Age=%d", maxAge))
	}
	return directives
}

// EncodeSetCookie builds a Set-Cookie header value. Directives are
// emitted in lexicographic order, so that emitted headers are
// deterministic and testable.
func EncodeSetCookie(name, value string, directives []string) string {
	parts := make([]string, 0, len(directives)+1)
	parts = append(parts, name+"="+value)
	sorted := append([]string(nil), directives...)
	sort.Strings(sorted)
	parts = append(parts, sorted...)
	return strings.Join(parts, "; ")
}

// DecodeCookies parses an RFC 6265 Cookie header into a name to value
// mapping. Parsing is strict: a cookie pair without an equals sign
// fails the whole header, rather than yielding partial results.
func DecodeCookies(header string) (map[string]string, bool) {
	cookies := map[string]string{}
	for _, pair := range strings.Split(header, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			return nil, false
		}
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, false
		}
		cookies[name] = strings.Trim(value, "\"")
	}
	return cookies, true
}
