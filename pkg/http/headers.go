// Package http implements the small subset of HTTP header and URL
// handling needed to speak the external authorization protocol: header
// constants, a strict cookie codec and query/form encoding helpers.
package http

// Header names used in CheckRequest and CheckResponse header maps. The
// proxy presents request header keys in lower case.
const (
	HeaderAuthorization = "Authorization"
	HeaderCacheControl  = "Cache-Control"
	HeaderContentType   = "Content-Type"
	HeaderCookie        = "cookie"
	HeaderLocation      = "Location"
	HeaderPragma        = "Pragma"
	HeaderSetCookie     = "Set-Cookie"
)

// Header values emitted by the filter.
const (
	DirectiveNoCache          = "no-cache"
	ContentTypeFormURLEncoded = "application/x-www-form-urlencoded"
)

// Set-Cookie directives mandated on every authentication cookie.
const (
	DirectiveHttpOnly    = "HttpOnly"
	DirectiveSameSiteLax = "SameSite=Lax"
	DirectiveSecure      = "Secure"
	DirectivePathRoot    = "Path=/"
)
