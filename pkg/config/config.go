// Package config declares the configuration file format of the
// authorization service. Configuration files are written in Jsonnet
// and unmarshalled into the structures below.
package config

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Endpoint describes one HTTP endpoint of the OpenID Connect identity
// provider, or of this service itself (the callback endpoint).
type Endpoint struct {
	Scheme   string `json:"scheme"`
	Hostname string `json:"hostname"`
	Port     uint16 `json:"port"`
	Path     string `json:"path"`
}

// HeaderForwarding describes how a token obtained from the identity
// provider is injected into requests forwarded to the protected
// application. If Preamble is set, the header value takes the shape
// "<preamble> <token>" (e.g. "Bearer <token>").
type HeaderForwarding struct {
	Header   string `json:"header"`
	Preamble string `json:"preamble"`
}

// LogoutConfiguration enables a logout endpoint. Requests for Path
// destroy the server side session and redirect the user agent to
// RedirectToURI.
type LogoutConfiguration struct {
	Path          string `json:"path"`
	RedirectToURI string `json:"redirect_to_uri"`
}

// OIDCConfiguration contains all settings of the OpenID Connect
// authorization code flow performed by the filter. It is immutable for
// the lifetime of the process.
type OIDCConfiguration struct {
	AuthorizationEndpoint *Endpoint `json:"authorization_endpoint"`
	TokenEndpoint         *Endpoint `json:"token_endpoint"`
	CallbackEndpoint      *Endpoint `json:"callback_endpoint"`

	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	Scopes       []string `json:"scopes"`

	// JWKS holds the identity provider's JSON Web Key Set as an
	// inline JSON document. It is used to verify ID token
	// signatures. Key rotation requires a restart.
	JWKS string `json:"jwks"`

	CookieNamePrefix string `json:"cookie_name_prefix"`
	// CryptoSecret seeds the symmetric encryption of the state
	// cookie.
	CryptoSecret string `json:"crypto_secret"`
	// CookieTimeout bounds the authorization roundtrip: it becomes
	// the Max-Age of the state cookie, in seconds.
	CookieTimeout int64 `json:"cookie_timeout"`

	IDToken     *HeaderForwarding    `json:"id_token"`
	AccessToken *HeaderForwarding    `json:"access_token"`
	Logout      *LogoutConfiguration `json:"logout"`

	LandingPage string `json:"landing_page"`

	// EnforceHTTPS rejects requests whose scheme is present and not
	// "https". Requests with an empty scheme are always permitted,
	// as a TLS terminating proxy may strip it.
	EnforceHTTPS bool `json:"enforce_https"`

	// IdPRequestTimeout is the deadline applied to token endpoint
	// requests when the authorization RPC itself carries none, in
	// seconds. Defaults to 10.
	IdPRequestTimeout int64 `json:"idp_request_timeout"`

	// Session expiry policy of the built-in in-memory session
	// store, in seconds. Zero disables the respective limit.
	AbsoluteSessionTimeout int64 `json:"absolute_session_timeout"`
	IdleSessionTimeout     int64 `json:"idle_session_timeout"`
	// SessionCleanupInterval controls how often expired sessions
	// are scrubbed from the store, in seconds. Defaults to 300.
	SessionCleanupInterval int64 `json:"session_cleanup_interval"`
}

// GrpcServerConfiguration describes a single gRPC server offering the
// Envoy external authorization service.
type GrpcServerConfiguration struct {
	ListenAddresses []string `json:"listen_addresses"`
	ListenPaths     []string `json:"listen_paths"`
	StopGracefully  bool     `json:"stop_gracefully"`
}

// DiagnosticsHTTPServerConfiguration enables an HTTP server exposing
// health probes, Prometheus metrics and pprof endpoints.
type DiagnosticsHTTPServerConfiguration struct {
	ListenAddress    string `json:"listen_address"`
	EnablePrometheus bool   `json:"enable_prometheus"`
	EnablePprof      bool   `json:"enable_pprof"`
}

// GlobalConfiguration contains process-wide options that are
// independent of the service's purpose.
type GlobalConfiguration struct {
	LogPaths              []string                            `json:"log_paths"`
	DiagnosticsHTTPServer *DiagnosticsHTTPServerConfiguration `json:"diagnostics_http_server"`
}

// ApplicationConfiguration is the root of the configuration file.
type ApplicationConfiguration struct {
	Global      *GlobalConfiguration       `json:"global"`
	GrpcServers []*GrpcServerConfiguration `json:"grpc_servers"`
	OIDC        *OIDCConfiguration         `json:"oidc"`
}

func validateEndpoint(endpoint *Endpoint, name string) error {
	if endpoint == nil {
		return status.Errorf(codes.InvalidArgument, "No %s endpoint provided", name)
	}
	if endpoint.Scheme != "http" && endpoint.Scheme != "https" {
		return status.Errorf(codes.InvalidArgument, "Unknown scheme %#v on %s endpoint", endpoint.Scheme, name)
	}
	if endpoint.Hostname == "" {
		return status.Errorf(codes.InvalidArgument, "No hostname provided on %s endpoint", name)
	}
	if endpoint.Port == 0 {
		return status.Errorf(codes.InvalidArgument, "No port provided on %s endpoint", name)
	}
	return nil
}

// ValidateOIDCConfiguration checks that all settings required by the
// authorization code flow are present. Defaults for optional durations
// are filled in place.
func ValidateOIDCConfiguration(configuration *OIDCConfiguration) error {
	if configuration == nil {
		return status.Error(codes.InvalidArgument, "No OIDC configuration provided")
	}
	if err := validateEndpoint(configuration.AuthorizationEndpoint, "authorization"); err != nil {
		return err
	}
	if err := validateEndpoint(configuration.TokenEndpoint, "token"); err != nil {
		return err
	}
	if err := validateEndpoint(configuration.CallbackEndpoint, "callback"); err != nil {
		return err
	}
	if configuration.ClientID == "" {
		return status.Error(codes.InvalidArgument, "No client ID provided")
	}
	if configuration.ClientSecret == "" {
		return status.Error(codes.InvalidArgument, "No client secret provided")
	}
	if configuration.JWKS == "" {
		return status.Error(codes.InvalidArgument, "No JSON Web Key Set provided")
	}
	if configuration.CryptoSecret == "" {
		return status.Error(codes.InvalidArgument, "No crypto secret provided")
	}
	if configuration.CookieTimeout <= 0 {
		return status.Error(codes.InvalidArgument, "No cookie timeout provided")
	}
	if configuration.IDToken == nil || configuration.IDToken.Header == "" {
		return status.Error(codes.InvalidArgument, "No ID token header provided")
	}
	if configuration.AccessToken != nil && configuration.AccessToken.Header == "" {
		return status.Error(codes.InvalidArgument, "No access token header provided")
	}
	if configuration.Logout != nil && (configuration.Logout.Path == "" || configuration.Logout.RedirectToURI == "") {
		return status.Error(codes.InvalidArgument, "Logout requires both a path and a redirect URI")
	}
	if configuration.LandingPage == "" {
		return status.Error(codes.InvalidArgument, "No landing page provided")
	}
	if configuration.IdPRequestTimeout == 0 {
		configuration.IdPRequestTimeout = 10
	}
	if configuration.SessionCleanupInterval == 0 {
		configuration.SessionCleanupInterval = 300
	}
	return nil
}
