// Package oidc implements the OpenID Connect authorization code flow
// as a per-request authorization filter: unauthenticated requests are
// redirected to the identity provider, the callback exchanges the
// authorization code for tokens, and authenticated requests get the
// tokens injected as headers towards the protected application.
package oidc

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	typev3 "github.com/envoyproxy/go-control-plane/envoy/type/v3"
	"github.com/meshguard/authservice/pkg/clock"
	"github.com/meshguard/authservice/pkg/config"
	"github.com/meshguard/authservice/pkg/cryptor"
	"github.com/meshguard/authservice/pkg/filter"
	as_http "github.com/meshguard/authservice/pkg/http"
	"github.com/meshguard/authservice/pkg/oidc"
	"github.com/meshguard/authservice/pkg/random"
	"github.com/meshguard/authservice/pkg/session"
	"github.com/meshguard/authservice/pkg/util"
	"github.com/prometheus/client_golang/prometheus"

	"google.golang.org/grpc/codes"
)

const (
	// mandatoryScope is requested from the identity provider even
	// when absent from the configured scopes.
	mandatoryScope = "openid"

	// deletedCookieValue replaces the value of cookies that are
	// being deleted through Max-Age=0.
	deletedCookieValue = "deleted"

	// stateSizeBytes is the entropy of the state and nonce
	// parameters placed in the authorization request.
	stateSizeBytes = 32
)

var (
	oidcFilterPrometheusMetrics sync.Once

	oidcFilterOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "authservice",
			Subsystem: "oidc_filter",
			Name:      "outcomes_total",
			Help:      "Number of processed check requests, partitioned by resulting status code.",
		},
		[]string{"outcome"})
)

// requestClass is the outcome of classifying an incoming request.
// Classification precedes action: Process() first determines what kind
// of request it is looking at, then runs the handler for that class.
type requestClass int

const (
	requestMissingHTTP requestClass = iota
	requestInsecureScheme
	requestLogout
	requestAlreadyAuthenticated
	requestWithoutSession
	requestCallback
	requestWithSession
)

type oidcFilter struct {
	configuration         *config.OIDCConfiguration
	httpClient            *http.Client
	parser                oidc.TokenResponseParser
	tokenEncryptor        cryptor.TokenEncryptor
	sessionIDGenerator    session.IDGenerator
	sessionStore          session.Store
	randomNumberGenerator random.ThreadSafeGenerator
	clock                 clock.Clock
	errorLogger           util.ErrorLogger

	scopes               string
	stateCookieName      string
	sessionIDCookieName  string
	idTokenHeaderName    string
	callbackHost         string
	callbackHostWithPort string
	authorizationURL     string
	callbackURL          string
	tokenEndpointURL     string
}

// NewFilter creates a filter.Filter that enforces authentication
// through an OpenID Connect identity provider. All capabilities are
// held by shared ownership and must be safe for concurrent use.
func NewFilter(
	configuration *config.OIDCConfiguration,
	httpClient *http.Client,
	parser oidc.TokenResponseParser,
	tokenEncryptor cryptor.TokenEncryptor,
	sessionIDGenerator session.IDGenerator,
	sessionStore session.Store,
	randomNumberGenerator random.ThreadSafeGenerator,
	clock clock.Clock,
	errorLogger util.ErrorLogger,
) filter.Filter {
	oidcFilterPrometheusMetrics.Do(func() {
		prometheus.MustRegister(oidcFilterOutcomesTotal)
	})

	scopeSet := map[string]struct{}{mandatoryScope: {}}
	for _, scope := range configuration.Scopes {
		scopeSet[scope] = struct{}{}
	}
	scopes := make([]string, 0, len(scopeSet))
	for scope := range scopeSet {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)

	callback := configuration.CallbackEndpoint
	return &oidcFilter{
		configuration:         configuration,
		httpClient:            httpClient,
		parser:                parser,
		tokenEncryptor:        tokenEncryptor,
		sessionIDGenerator:    sessionIDGenerator,
		sessionStore:          sessionStore,
		randomNumberGenerator: randomNumberGenerator,
		clock:                 clock,
		errorLogger:           errorLogger,

		scopes:               strings.Join(scopes, " "),
		stateCookieName:      cookieName(configuration.CookieNamePrefix, "state"),
		sessionIDCookieName:  cookieName(configuration.CookieNamePrefix, "session-id"),
		idTokenHeaderName:    strings.ToLower(configuration.IDToken.Header),
		callbackHost:         callback.Hostname,
		callbackHostWithPort: fmt.Sprintf("%s:%d", callback.Hostname, callback.Port),
		authorizationURL:     as_http.ToURL(configuration.AuthorizationEndpoint),
		callbackURL:          as_http.ToURL(callback),
		tokenEndpointURL:     as_http.ToURL(configuration.TokenEndpoint),
	}
}

// cookieName derives the name of an authentication cookie. The __Host-
// prefix makes browsers enforce Secure, Path=/ and the absence of a
// Domain directive.
func cookieName(prefix, kind string) string {
	if prefix == "" {
		return "__Host-authservice-" + kind + "-cookie"
	}
	return "__Host-" + prefix + "-authservice-" + kind + "-cookie"
}

func (f *oidcFilter) Process(ctx context.Context, request *authv3.CheckRequest, response *authv3.CheckResponse) codes.Code {
	code := f.process(ctx, request, response)
	oidcFilterOutcomesTotal.WithLabelValues(code.String()).Inc()
	return code
}

func (f *oidcFilter) process(ctx context.Context, request *authv3.CheckRequest, response *authv3.CheckResponse) codes.Code {
	httpRequest := request.GetAttributes().GetRequest().GetHttp()
	sessionID, hasSessionID := f.sessionIDFromCookie(httpRequest.GetHeaders())

	switch f.classify(httpRequest, hasSessionID) {
	case requestMissingHTTP, requestInsecureScheme:
		f.setStandardResponseHeaders(response)
		return codes.InvalidArgument

	case requestLogout:
		if hasSessionID {
			if err := f.sessionStore.Remove(ctx, sessionID); err != nil {
				f.errorLogger.Log(util.StatusWrap(err, "Failed to remove session on logout"))
			}
		}
		f.setLogoutHeaders(response)
		return codes.Unauthenticated

	case requestAlreadyAuthenticated:
		// The downstream system is responsible for validating
		// the header it received.
		return codes.OK

	case requestWithoutSession:
		newSessionID, err := f.sessionIDGenerator.Generate()
		if err != nil {
			f.errorLogger.Log(err)
			f.setStandardResponseHeaders(response)
			return codes.Internal
		}
		f.setSessionIDCookie(response, newSessionID)
		f.setRedirectToIdPHeaders(response)
		return codes.Unauthenticated

	case requestCallback:
		return f.retrieveToken(ctx, httpRequest, response, sessionID)

	default:
		return f.processWithSession(ctx, response, sessionID)
	}
}

func (f *oidcFilter) classify(httpRequest *authv3.AttributeContext_HttpRequest, hasSessionID bool) requestClass {
	if httpRequest == nil {
		return requestMissingHTTP
	}
	// The scheme observed here may legitimately be empty when a TLS
	// terminating proxy stripped it, so only a present, non-HTTPS
	// scheme is rejected.
	if f.configuration.EnforceHTTPS && httpRequest.GetScheme() != "" && httpRequest.GetScheme() != "https" {
		return requestInsecureScheme
	}
	if f.matchesLogoutRequest(httpRequest) {
		return requestLogout
	}
	if _, ok := httpRequest.GetHeaders()[f.idTokenHeaderName]; ok {
		return requestAlreadyAuthenticated
	}
	if !hasSessionID {
		return requestWithoutSession
	}
	if f.matchesCallbackRequest(httpRequest) {
		return requestCallback
	}
	return requestWithSession
}

// processWithSession handles requests that carry a session ID cookie
// and are neither the callback nor the logout path: the stored tokens
// are injected when valid, refreshed when expired, and the user agent
// is sent back to the identity provider otherwise.
func (f *oidcFilter) processWithSession(ctx context.Context, response *authv3.CheckResponse, sessionID string) codes.Code {
	tokenResponse, err := f.sessionStore.Get(ctx, sessionID)
	if err != nil {
		// Treat an unreachable session store as an absent
		// session, so that the user agent self-heals by
		// re-authenticating.
		f.errorLogger.Log(util.StatusWrap(err, "Failed to load session"))
		tokenResponse = nil
	}

	if !f.requiredTokensPresent(tokenResponse) {
		f.setRedirectToIdPHeaders(response)
		return codes.Unauthenticated
	}

	if !f.tokensExpired(tokenResponse) {
		f.addTokensToRequestHeaders(response, tokenResponse)
		return codes.OK
	}

	if tokenResponse.RefreshToken != "" {
		if refreshed := f.refreshToken(ctx, tokenResponse); refreshed != nil {
			if err := f.sessionStore.Set(ctx, sessionID, refreshed); err != nil {
				f.errorLogger.Log(util.StatusWrap(err, "Failed to store refreshed session"))
			}
			f.addTokensToRequestHeaders(response, refreshed)
			return codes.OK
		}
		if err := f.sessionStore.Remove(ctx, sessionID); err != nil {
			f.errorLogger.Log(util.StatusWrap(err, "Failed to remove session after failed refresh"))
		}
	}

	f.setRedirectToIdPHeaders(response)
	return codes.Unauthenticated
}

func (f *oidcFilter) matchesLogoutRequest(httpRequest *authv3.AttributeContext_HttpRequest) bool {
	logout := f.configuration.Logout
	if logout == nil {
		return false
	}
	path, _ := as_http.DecodePath(httpRequest.GetPath())
	return path == logout.Path
}

func (f *oidcFilter) matchesCallbackRequest(httpRequest *authv3.AttributeContext_HttpRequest) bool {
	path, _ := as_http.DecodePath(httpRequest.GetPath())
	if path != f.configuration.CallbackEndpoint.Path {
		return false
	}
	host := httpRequest.GetHost()
	if host == f.callbackHostWithPort {
		return true
	}
	// The port may be left out of the Host header when it is the
	// default for the configured scheme.
	callback := f.configuration.CallbackEndpoint
	return host == f.callbackHost &&
		((callback.Scheme == "https" && callback.Port == 443) ||
			(callback.Scheme == "http" && callback.Port == 80))
}

func (f *oidcFilter) sessionIDFromCookie(headers map[string]string) (string, bool) {
	return f.cookieFromHeaders(headers, f.sessionIDCookieName)
}

func (f *oidcFilter) cookieFromHeaders(headers map[string]string, name string) (string, bool) {
	header, ok := headers[as_http.HeaderCookie]
	if !ok {
		return "", false
	}
	cookies, ok := as_http.DecodeCookies(header)
	if !ok {
		return "", false
	}
	value, ok := cookies[name]
	return value, ok
}

func (f *oidcFilter) requiredTokensPresent(tokenResponse *oidc.TokenResponse) bool {
	return tokenResponse != nil &&
		(f.configuration.AccessToken == nil || tokenResponse.AccessToken != "")
}

func (f *oidcFilter) tokensExpired(tokenResponse *oidc.TokenResponse) bool {
	now := f.clock.Now()
	if tokenResponse.IDTokenExpiry.Before(now) {
		return true
	}
	// The access token expiry is only checked when the identity
	// provider reported one. RFC 6749 does not require expires_in.
	return !tokenResponse.AccessTokenExpiry.IsZero() && tokenResponse.AccessTokenExpiry.Before(now)
}

// generateToken draws a fresh state or nonce parameter: 32 bytes of
// CSPRNG output in URL safe base64 without padding.
func (f *oidcFilter) generateToken() string {
	var data [stateSizeBytes]byte
	if _, err := f.randomNumberGenerator.Read(data[:]); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(data[:])
}

func (f *oidcFilter) setRedirectToIdPHeaders(response *authv3.CheckResponse) {
	state := f.generateToken()
	nonce := f.generateToken()

	query := url.Values{
		"response_type": []string{"code"},
		"scope":         []string{f.scopes},
		"client_id":     []string{f.configuration.ClientID},
		"nonce":         []string{nonce},
		"state":         []string{state},
		"redirect_uri":  []string{f.callbackURL},
	}

	f.setStandardResponseHeaders(response)
	f.setRedirectHeaders(response, f.authorizationURL+"?"+as_http.EncodeQueryData(query))
	f.setEncryptedCookie(response, f.stateCookieName, oidc.EncodeStateCookie(state, nonce), f.configuration.CookieTimeout)
}

func (f *oidcFilter) setLogoutHeaders(response *authv3.CheckResponse) {
	f.setRedirectHeaders(response, f.configuration.Logout.RedirectToURI)
	f.setStandardResponseHeaders(response)
	f.deleteCookie(response, f.stateCookieName)
	f.deleteCookie(response, f.sessionIDCookieName)
}

func (f *oidcFilter) addTokensToRequestHeaders(response *authv3.CheckResponse, tokenResponse *oidc.TokenResponse) {
	ok := okResponse(response)
	idToken := f.configuration.IDToken
	ok.Headers = appendHeader(ok.Headers, idToken.Header, as_http.EncodeHeaderValue(idToken.Preamble, tokenResponse.IDTokenJWT))
	if accessToken := f.configuration.AccessToken; accessToken != nil && tokenResponse.AccessToken != "" {
		ok.Headers = appendHeader(ok.Headers, accessToken.Header, as_http.EncodeHeaderValue(accessToken.Preamble, tokenResponse.AccessToken))
	}
}

func (f *oidcFilter) setStandardResponseHeaders(response *authv3.CheckResponse) {
	denied := deniedResponse(response)
	denied.Headers = appendHeader(denied.Headers, as_http.HeaderCacheControl, as_http.DirectiveNoCache)
	denied.Headers = appendHeader(denied.Headers, as_http.HeaderPragma, as_http.DirectiveNoCache)
}

func (f *oidcFilter) setRedirectHeaders(response *authv3.CheckResponse, redirectURL string) {
	denied := deniedResponse(response)
	denied.Status = &typev3.HttpStatus{Code: typev3.StatusCode_Found}
	denied.Headers = appendHeader(denied.Headers, as_http.HeaderLocation, redirectURL)
}

func (f *oidcFilter) setCookie(response *authv3.CheckResponse, name, value string, maxAge int64) {
	denied := deniedResponse(response)
	denied.Headers = appendHeader(
		denied.Headers,
		as_http.HeaderSetCookie,
		as_http.EncodeSetCookie(name, value, as_http.CookieDirectives(maxAge)))
}

func (f *oidcFilter) setEncryptedCookie(response *authv3.CheckResponse, name, value string, maxAge int64) {
	f.setCookie(response, name, f.tokenEncryptor.Encrypt(value), maxAge)
}

func (f *oidcFilter) setSessionIDCookie(response *authv3.CheckResponse, sessionID string) {
	f.setCookie(response, f.sessionIDCookieName, sessionID, as_http.NoMaxAge)
}

func (f *oidcFilter) deleteCookie(response *authv3.CheckResponse, name string) {
	f.setCookie(response, name, deletedCookieValue, 0)
}

// retrieveToken handles the OpenID Connect callback: it validates the
// state against the encrypted state cookie and exchanges the
// authorization code for tokens. On every outcome the state cookie is
// deleted, and failures yield an error response rather than another
// redirect, so a confused user agent cannot end up in a redirect loop.
func (f *oidcFilter) retrieveToken(ctx context.Context, httpRequest *authv3.AttributeContext_HttpRequest, response *authv3.CheckResponse, sessionID string) codes.Code {
	f.setStandardResponseHeaders(response)
	f.deleteCookie(response, f.stateCookieName)

	encryptedStateCookie, ok := f.cookieFromHeaders(httpRequest.GetHeaders(), f.stateCookieName)
	if !ok {
		return codes.InvalidArgument
	}
	stateCookie, err := f.tokenEncryptor.Decrypt(encryptedStateCookie)
	if err != nil {
		return codes.InvalidArgument
	}
	expectedState, nonce, err := oidc.DecodeStateCookie(stateCookie)
	if err != nil {
		return codes.InvalidArgument
	}

	_, queryString := as_http.DecodePath(httpRequest.GetPath())
	queryData, err := as_http.DecodeQueryData(queryString)
	if err != nil {
		return codes.InvalidArgument
	}
	state := queryData.Get("state")
	code := queryData.Get("code")
	if state == "" || code == "" {
		return codes.InvalidArgument
	}
	if subtle.ConstantTimeCompare([]byte(state), []byte(expectedState)) != 1 {
		return codes.InvalidArgument
	}

	statusCode, body, err := f.postToTokenEndpoint(ctx, url.Values{
		"code":         []string{code},
		"redirect_uri": []string{f.callbackURL},
		"grant_type":   []string{"authorization_code"},
	}, true)
	if err != nil {
		f.errorLogger.Log(util.StatusWrap(err, "Failed to exchange authorization code"))
		return codes.Internal
	}
	if statusCode != http.StatusOK {
		return codes.Unknown
	}

	tokenResponse, err := f.parser.Parse(f.configuration.ClientID, nonce, body)
	if err != nil {
		f.errorLogger.Log(util.StatusWrap(err, "Failed to parse token endpoint response"))
		return codes.InvalidArgument
	}
	if f.configuration.AccessToken != nil && tokenResponse.AccessToken == "" {
		return codes.InvalidArgument
	}

	if err := f.sessionStore.Set(ctx, sessionID, tokenResponse); err != nil {
		f.errorLogger.Log(util.StatusWrap(err, "Failed to store session"))
	}
	f.setRedirectHeaders(response, f.configuration.LandingPage)
	return codes.Unauthenticated
}

// refreshToken attempts a refresh token grant. Any failure, whether a
// transport error, a rejection by the identity provider or an invalid
// response body, makes the refresh count as failed; the caller then
// evicts the session.
func (f *oidcFilter) refreshToken(ctx context.Context, existing *oidc.TokenResponse) *oidc.TokenResponse {
	statusCode, body, err := f.postToTokenEndpoint(ctx, url.Values{
		"client_id":     []string{f.configuration.ClientID},
		"client_secret": []string{f.configuration.ClientSecret},
		"grant_type":    []string{"refresh_token"},
		"refresh_token": []string{existing.RefreshToken},
		"scope":         []string{f.scopes},
	}, false)
	if err != nil {
		f.errorLogger.Log(util.StatusWrap(err, "Failed to refresh token"))
		return nil
	}
	if statusCode != http.StatusOK {
		return nil
	}
	refreshed, err := f.parser.ParseRefreshTokenResponse(existing, f.configuration.ClientID, body)
	if err != nil {
		f.errorLogger.Log(util.StatusWrap(err, "Failed to parse refresh token response"))
		return nil
	}
	return refreshed
}

// postToTokenEndpoint performs a form encoded POST against the
// identity provider's token endpoint. The authorization code grant
// authenticates through HTTP basic authentication, while the refresh
// token grant carries the client credentials in the body.
func (f *oidcFilter) postToTokenEndpoint(ctx context.Context, params url.Values, useBasicAuth bool) (int, string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, f.tokenEndpointURL, strings.NewReader(as_http.EncodeFormData(params)))
	if err != nil {
		return 0, "", err
	}
	request.Header.Set(as_http.HeaderContentType, as_http.ContentTypeFormURLEncoded)
	if useBasicAuth {
		request.Header.Set(as_http.HeaderAuthorization, as_http.EncodeBasicAuth(f.configuration.ClientID, f.configuration.ClientSecret))
	}
	httpResponse, err := f.httpClient.Do(request)
	if err != nil {
		return 0, "", err
	}
	defer httpResponse.Body.Close()
	body, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return 0, "", err
	}
	return httpResponse.StatusCode, string(body), nil
}

func deniedResponse(response *authv3.CheckResponse) *authv3.DeniedHttpResponse {
	if denied := response.GetDeniedResponse(); denied != nil {
		return denied
	}
	denied := &authv3.DeniedHttpResponse{}
	response.HttpResponse = &authv3.CheckResponse_DeniedResponse{
		DeniedResponse: denied,
	}
	return denied
}

func okResponse(response *authv3.CheckResponse) *authv3.OkHttpResponse {
	if ok := response.GetOkResponse(); ok != nil {
		return ok
	}
	ok := &authv3.OkHttpResponse{}
	response.HttpResponse = &authv3.CheckResponse_OkResponse{
		OkResponse: ok,
	}
	return ok
}

func appendHeader(headers []*corev3.HeaderValueOption, key, value string) []*corev3.HeaderValueOption {
	return append(headers, &corev3.HeaderValueOption{
		Header: &corev3.HeaderValue{
			Key:   key,
			Value: value,
		},
	})
}
