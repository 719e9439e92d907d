package oidc_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	typev3 "github.com/envoyproxy/go-control-plane/envoy/type/v3"
	"github.com/meshguard/authservice/internal/mock"
	"github.com/meshguard/authservice/pkg/config"
	"github.com/meshguard/authservice/pkg/filter"
	oidc_filter "github.com/meshguard/authservice/pkg/filter/oidc"
	"github.com/meshguard/authservice/pkg/oidc"
	"github.com/meshguard/authservice/pkg/testutil"
	"github.com/stretchr/testify/require"

	"go.uber.org/mock/gomock"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	stateCookieName     = "__Host-cookie-prefix-authservice-state-cookie"
	sessionIDCookieName = "__Host-cookie-prefix-authservice-session-id-cookie"

	// The values produced by two reads of the stubbed random number
	// generator, 32 bytes each of 0x01 and 0x02.
	generatedState = "AQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQE"
	generatedNonce = "AgICAgICAgICAgICAgICAgICAgICAgICAgICAgICAgI"

	authorizationRedirectURL = "https://acme-idp.tld/authorization" +
		"?client_id=example-app" +
		"&nonce=" + generatedNonce +
		"&redirect_uri=https%3A%2F%2Fme.tld%2Fcallback" +
		"&response_type=code" +
		"&scope=openid" +
		"&state=" + generatedState
)

func newOIDCConfiguration() *config.OIDCConfiguration {
	return &config.OIDCConfiguration{
		AuthorizationEndpoint: &config.Endpoint{
			Scheme:   "https",
			Hostname: "acme-idp.tld",
			Port:     443,
			Path:     "/authorization",
		},
		TokenEndpoint: &config.Endpoint{
			Scheme:   "https",
			Hostname: "acme-idp.tld",
			Port:     443,
			Path:     "/token",
		},
		CallbackEndpoint: &config.Endpoint{
			Scheme:   "https",
			Hostname: "me.tld",
			Port:     443,
			Path:     "/callback",
		},
		ClientID:         "example-app",
		ClientSecret:     "ZXhhbXBsZS1hcHAtc2VjcmV0",
		CookieNamePrefix: "cookie-prefix",
		CookieTimeout:    300,
		IDToken: &config.HeaderForwarding{
			Header:   "Authorization",
			Preamble: "Bearer",
		},
		Logout: &config.LogoutConfiguration{
			Path:          "/logout",
			RedirectToURI: "https://me.tld/logged-out",
		},
		LandingPage: "https://me.tld/landing-page",
	}
}

type filterFixture struct {
	parser                *mock.MockTokenResponseParser
	tokenEncryptor        *mock.MockTokenEncryptor
	sessionIDGenerator    *mock.MockIDGenerator
	sessionStore          *mock.MockSessionStore
	randomNumberGenerator *mock.MockThreadSafeGenerator
	clock                 *mock.MockClock
	errorLogger           *mock.MockErrorLogger
	roundTripper          *mock.MockRoundTripper
}

func newFilterFixture(ctrl *gomock.Controller) *filterFixture {
	return &filterFixture{
		parser:                mock.NewMockTokenResponseParser(ctrl),
		tokenEncryptor:        mock.NewMockTokenEncryptor(ctrl),
		sessionIDGenerator:    mock.NewMockIDGenerator(ctrl),
		sessionStore:          mock.NewMockSessionStore(ctrl),
		randomNumberGenerator: mock.NewMockThreadSafeGenerator(ctrl),
		clock:                 mock.NewMockClock(ctrl),
		errorLogger:           mock.NewMockErrorLogger(ctrl),
		roundTripper:          mock.NewMockRoundTripper(ctrl),
	}
}

func (ff *filterFixture) newFilter(configuration *config.OIDCConfiguration) filter.Filter {
	return oidc_filter.NewFilter(
		configuration,
		&http.Client{Transport: ff.roundTripper},
		ff.parser,
		ff.tokenEncryptor,
		ff.sessionIDGenerator,
		ff.sessionStore,
		ff.randomNumberGenerator,
		ff.clock,
		ff.errorLogger)
}

// expectAuthorizationTokens stubs the two reads that produce the state
// and nonce parameters of one authorization redirect.
func (ff *filterFixture) expectAuthorizationTokens() {
	for _, fill := range []byte{1, 2} {
		fill := fill
		ff.randomNumberGenerator.EXPECT().Read(gomock.Len(32)).DoAndReturn(func(p []byte) (int, error) {
			for i := range p {
				p[i] = fill
			}
			return len(p), nil
		})
	}
	ff.tokenEncryptor.EXPECT().
		Encrypt(generatedState + ";" + generatedNonce).
		Return("encryptedstatecookie")
}

func checkRequest(scheme, host, path string, headers map[string]string) *authv3.CheckRequest {
	return &authv3.CheckRequest{
		Attributes: &authv3.AttributeContext{
			Request: &authv3.AttributeContext_Request{
				Http: &authv3.AttributeContext_HttpRequest{
					Method:  "GET",
					Scheme:  scheme,
					Host:    host,
					Path:    path,
					Headers: headers,
				},
			},
		},
	}
}

func headerOption(key, value string) *corev3.HeaderValueOption {
	return &corev3.HeaderValueOption{
		Header: &corev3.HeaderValue{
			Key:   key,
			Value: value,
		},
	}
}

func deletedCookieHeader(name string) *corev3.HeaderValueOption {
	return headerOption("Set-Cookie", name+"=deleted; HttpOnly; Max-Age=0; Path=/; SameSite=Lax; Secure")
}

// redirectToIdPHeaders are the headers of every response that sends the
// user agent to the identity provider: cache suppression, the redirect
// itself and the encrypted state cookie.
func redirectToIdPHeaders() []*corev3.HeaderValueOption {
	return []*corev3.HeaderValueOption{
		headerOption("Cache-Control", "no-cache"),
		headerOption("Pragma", "no-cache"),
		headerOption("Location", authorizationRedirectURL),
		headerOption("Set-Cookie", stateCookieName+"=encryptedstatecookie; HttpOnly; Max-Age=300; Path=/; SameSite=Lax; Secure"),
	}
}

func TestOIDCFilter(t *testing.T) {
	ctrl, ctx := gomock.WithContext(context.Background(), t)

	ff := newFilterFixture(ctrl)
	filter := ff.newFilter(newOIDCConfiguration())

	sessionCookieHeaders := map[string]string{
		"cookie": sessionIDCookieName + "=session123",
	}

	t.Run("MissingHTTPAttributes", func(t *testing.T) {
		response := &authv3.CheckResponse{}
		require.Equal(t, codes.InvalidArgument, filter.Process(ctx, &authv3.CheckRequest{}, response))
		testutil.RequireEqualProto(t, &authv3.CheckResponse{
			HttpResponse: &authv3.CheckResponse_DeniedResponse{
				DeniedResponse: &authv3.DeniedHttpResponse{
					Headers: []*corev3.HeaderValueOption{
						headerOption("Cache-Control", "no-cache"),
						headerOption("Pragma", "no-cache"),
					},
				},
			},
		}, response)
	})

	t.Run("NoSession", func(t *testing.T) {
		// A request without a session ID cookie receives a fresh
		// session ID and is redirected to the identity provider.
		ff.sessionIDGenerator.EXPECT().Generate().Return("newsessionid", nil)
		ff.expectAuthorizationTokens()

		response := &authv3.CheckResponse{}
		require.Equal(
			t,
			codes.Unauthenticated,
			filter.Process(ctx, checkRequest("https", "me.tld", "/foo", nil), response))
		testutil.RequireEqualProto(t, &authv3.CheckResponse{
			HttpResponse: &authv3.CheckResponse_DeniedResponse{
				DeniedResponse: &authv3.DeniedHttpResponse{
					Status: &typev3.HttpStatus{Code: typev3.StatusCode_Found},
					Headers: append(
						[]*corev3.HeaderValueOption{
							headerOption("Set-Cookie", sessionIDCookieName+"=newsessionid; HttpOnly; Path=/; SameSite=Lax; Secure"),
						},
						redirectToIdPHeaders()...),
				},
			},
		}, response)
	})

	t.Run("MalformedCookieHeader", func(t *testing.T) {
		// A cookie header that fails to parse counts as carrying
		// no session at all.
		ff.sessionIDGenerator.EXPECT().Generate().Return("newsessionid", nil)
		ff.expectAuthorizationTokens()

		response := &authv3.CheckResponse{}
		require.Equal(
			t,
			codes.Unauthenticated,
			filter.Process(ctx, checkRequest("https", "me.tld", "/foo", map[string]string{
				"cookie": "nonsense",
			}), response))
	})

	t.Run("SessionIDGenerationFailure", func(t *testing.T) {
		ff.sessionIDGenerator.EXPECT().Generate().
			Return("", status.Error(codes.Internal, "Failed to generate session ID: Entropy pool exhausted"))
		ff.errorLogger.EXPECT().Log(gomock.Any()).Do(func(err error) {
			testutil.RequireEqualStatus(t, status.Error(codes.Internal, "Failed to generate session ID: Entropy pool exhausted"), err)
		})

		response := &authv3.CheckResponse{}
		require.Equal(
			t,
			codes.Internal,
			filter.Process(ctx, checkRequest("https", "me.tld", "/foo", nil), response))
		testutil.RequireEqualProto(t, &authv3.CheckResponse{
			HttpResponse: &authv3.CheckResponse_DeniedResponse{
				DeniedResponse: &authv3.DeniedHttpResponse{
					Headers: []*corev3.HeaderValueOption{
						headerOption("Cache-Control", "no-cache"),
						headerOption("Pragma", "no-cache"),
					},
				},
			},
		}, response)
	})

	t.Run("AlreadyAuthenticated", func(t *testing.T) {
		// A request that already carries the ID token header is
		// passed through untouched. The downstream system is
		// responsible for validating it.
		response := &authv3.CheckResponse{}
		require.Equal(
			t,
			codes.OK,
			filter.Process(ctx, checkRequest("https", "me.tld", "/foo", map[string]string{
				"authorization": "Bearer somejwt",
			}), response))
		testutil.RequireEqualProto(t, &authv3.CheckResponse{}, response)
	})

	t.Run("ValidSession", func(t *testing.T) {
		ff.sessionStore.EXPECT().Get(ctx, "session123").Return(&oidc.TokenResponse{
			IDTokenJWT:    "idtokenjwt",
			IDTokenExpiry: time.Unix(2000, 0),
		}, nil)
		ff.clock.EXPECT().Now().Return(time.Unix(1000, 0))

		response := &authv3.CheckResponse{}
		require.Equal(
			t,
			codes.OK,
			filter.Process(ctx, checkRequest("https", "me.tld", "/foo", sessionCookieHeaders), response))
		testutil.RequireEqualProto(t, &authv3.CheckResponse{
			HttpResponse: &authv3.CheckResponse_OkResponse{
				OkResponse: &authv3.OkHttpResponse{
					Headers: []*corev3.HeaderValueOption{
						headerOption("Authorization", "Bearer idtokenjwt"),
					},
				},
			},
		}, response)
	})

	t.Run("UnknownSession", func(t *testing.T) {
		// A session ID the store has never seen, or has already
		// expired, triggers a new authorization roundtrip without
		// replacing the session ID cookie.
		ff.sessionStore.EXPECT().Get(ctx, "session123").Return(nil, nil)
		ff.expectAuthorizationTokens()

		response := &authv3.CheckResponse{}
		require.Equal(
			t,
			codes.Unauthenticated,
			filter.Process(ctx, checkRequest("https", "me.tld", "/foo", sessionCookieHeaders), response))
		testutil.RequireEqualProto(t, &authv3.CheckResponse{
			HttpResponse: &authv3.CheckResponse_DeniedResponse{
				DeniedResponse: &authv3.DeniedHttpResponse{
					Status:  &typev3.HttpStatus{Code: typev3.StatusCode_Found},
					Headers: redirectToIdPHeaders(),
				},
			},
		}, response)
	})

	t.Run("SessionStoreUnavailable", func(t *testing.T) {
		// An unreachable session store is treated as an absent
		// session, so the user agent re-authenticates instead of
		// being served an error page.
		ff.sessionStore.EXPECT().Get(ctx, "session123").
			Return(nil, status.Error(codes.Unavailable, "Connection refused"))
		ff.errorLogger.EXPECT().Log(gomock.Any()).Do(func(err error) {
			testutil.RequireEqualStatus(t, status.Error(codes.Unavailable, "Failed to load session: Connection refused"), err)
		})
		ff.expectAuthorizationTokens()

		response := &authv3.CheckResponse{}
		require.Equal(
			t,
			codes.Unauthenticated,
			filter.Process(ctx, checkRequest("https", "me.tld", "/foo", sessionCookieHeaders), response))
	})

	t.Run("ExpiredIDTokenWithoutRefreshToken", func(t *testing.T) {
		ff.sessionStore.EXPECT().Get(ctx, "session123").Return(&oidc.TokenResponse{
			IDTokenJWT:    "idtokenjwt",
			IDTokenExpiry: time.Unix(2000, 0),
		}, nil)
		ff.clock.EXPECT().Now().Return(time.Unix(3000, 0))
		ff.expectAuthorizationTokens()

		response := &authv3.CheckResponse{}
		require.Equal(
			t,
			codes.Unauthenticated,
			filter.Process(ctx, checkRequest("https", "me.tld", "/foo", sessionCookieHeaders), response))
	})

	t.Run("ExpiredIDTokenWithRefreshSuccess", func(t *testing.T) {
		ff.sessionStore.EXPECT().Get(ctx, "session123").Return(&oidc.TokenResponse{
			IDTokenJWT:    "idtokenjwt",
			IDTokenExpiry: time.Unix(2000, 0),
			RefreshToken:  "refresh-token-value",
		}, nil)
		ff.clock.EXPECT().Now().Return(time.Unix(3000, 0))
		ff.roundTripper.EXPECT().RoundTrip(gomock.Any()).DoAndReturn(func(request *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodPost, request.Method)
			require.Equal(t, "https://acme-idp.tld/token", request.URL.String())
			require.Equal(t, "application/x-www-form-urlencoded", request.Header.Get("Content-Type"))
			// The refresh grant carries the client credentials
			// in the body, not through basic authentication.
			require.Empty(t, request.Header.Get("Authorization"))
			body, err := io.ReadAll(request.Body)
			require.NoError(t, err)
			require.Equal(
				t,
				"client_id=example-app&client_secret=ZXhhbXBsZS1hcHAtc2VjcmV0&grant_type=refresh_token&refresh_token=refresh-token-value&scope=openid",
				string(body))
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader("refreshresponsebody")),
			}, nil
		})
		refreshed := &oidc.TokenResponse{
			IDTokenJWT:    "newidtokenjwt",
			IDTokenExpiry: time.Unix(4000, 0),
			RefreshToken:  "refresh-token-value",
		}
		ff.parser.EXPECT().
			ParseRefreshTokenResponse(gomock.Any(), "example-app", "refreshresponsebody").
			Return(refreshed, nil)
		ff.sessionStore.EXPECT().Set(ctx, "session123", refreshed).Return(nil)

		response := &authv3.CheckResponse{}
		require.Equal(
			t,
			codes.OK,
			filter.Process(ctx, checkRequest("https", "me.tld", "/foo", sessionCookieHeaders), response))
		testutil.RequireEqualProto(t, &authv3.CheckResponse{
			HttpResponse: &authv3.CheckResponse_OkResponse{
				OkResponse: &authv3.OkHttpResponse{
					Headers: []*corev3.HeaderValueOption{
						headerOption("Authorization", "Bearer newidtokenjwt"),
					},
				},
			},
		}, response)
	})

	t.Run("ExpiredIDTokenWithRefreshRejected", func(t *testing.T) {
		// A rejected refresh evicts the session, so that the next
		// request starts a clean authorization roundtrip.
		ff.sessionStore.EXPECT().Get(ctx, "session123").Return(&oidc.TokenResponse{
			IDTokenJWT:    "idtokenjwt",
			IDTokenExpiry: time.Unix(2000, 0),
			RefreshToken:  "refresh-token-value",
		}, nil)
		ff.clock.EXPECT().Now().Return(time.Unix(3000, 0))
		ff.roundTripper.EXPECT().RoundTrip(gomock.Any()).Return(&http.Response{
			StatusCode: http.StatusBadRequest,
			Body:       io.NopCloser(strings.NewReader(`{"error":"invalid_grant"}`)),
		}, nil)
		ff.sessionStore.EXPECT().Remove(ctx, "session123").Return(nil)
		ff.expectAuthorizationTokens()

		response := &authv3.CheckResponse{}
		require.Equal(
			t,
			codes.Unauthenticated,
			filter.Process(ctx, checkRequest("https", "me.tld", "/foo", sessionCookieHeaders), response))
	})

	t.Run("Logout", func(t *testing.T) {
		ff.sessionStore.EXPECT().Remove(ctx, "session123").Return(nil)

		response := &authv3.CheckResponse{}
		require.Equal(
			t,
			codes.Unauthenticated,
			filter.Process(ctx, checkRequest("https", "me.tld", "/logout", sessionCookieHeaders), response))
		testutil.RequireEqualProto(t, &authv3.CheckResponse{
			HttpResponse: &authv3.CheckResponse_DeniedResponse{
				DeniedResponse: &authv3.DeniedHttpResponse{
					Status: &typev3.HttpStatus{Code: typev3.StatusCode_Found},
					Headers: []*corev3.HeaderValueOption{
						headerOption("Location", "https://me.tld/logged-out"),
						headerOption("Cache-Control", "no-cache"),
						headerOption("Pragma", "no-cache"),
						deletedCookieHeader(stateCookieName),
						deletedCookieHeader(sessionIDCookieName),
					},
				},
			},
		}, response)
	})

	t.Run("LogoutWithoutSession", func(t *testing.T) {
		// Logout without a session cookie still clears both
		// cookies, but does not touch the session store.
		response := &authv3.CheckResponse{}
		require.Equal(
			t,
			codes.Unauthenticated,
			filter.Process(ctx, checkRequest("https", "me.tld", "/logout", nil), response))
	})

	t.Run("CallbackSuccess", func(t *testing.T) {
		ff.tokenEncryptor.EXPECT().Decrypt("encryptedstatecookie").
			Return("expectedstate;expectednonce", nil)
		ff.roundTripper.EXPECT().RoundTrip(gomock.Any()).DoAndReturn(func(request *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodPost, request.Method)
			require.Equal(t, "https://acme-idp.tld/token", request.URL.String())
			require.Equal(t, "application/x-www-form-urlencoded", request.Header.Get("Content-Type"))
			require.Equal(t, "Basic ZXhhbXBsZS1hcHA6WlhoaGJYQnNaUzFoY0hBdGMyVmpjbVYw", request.Header.Get("Authorization"))
			body, err := io.ReadAll(request.Body)
			require.NoError(t, err)
			require.Equal(
				t,
				"code=value&grant_type=authorization_code&redirect_uri=https%3A%2F%2Fme.tld%2Fcallback",
				string(body))
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader("tokenresponsebody")),
			}, nil
		})
		tokenResponse := &oidc.TokenResponse{
			IDTokenJWT:    "idtokenjwt",
			IDTokenExpiry: time.Unix(2000, 0),
		}
		ff.parser.EXPECT().Parse("example-app", "expectednonce", "tokenresponsebody").
			Return(tokenResponse, nil)
		ff.sessionStore.EXPECT().Set(ctx, "session123", tokenResponse).Return(nil)

		response := &authv3.CheckResponse{}
		require.Equal(
			t,
			codes.Unauthenticated,
			filter.Process(ctx, checkRequest(
				"https",
				"me.tld",
				"/callback?code=value&state=expectedstate",
				map[string]string{
					"cookie": sessionIDCookieName + "=session123; " + stateCookieName + "=encryptedstatecookie",
				}), response))
		testutil.RequireEqualProto(t, &authv3.CheckResponse{
			HttpResponse: &authv3.CheckResponse_DeniedResponse{
				DeniedResponse: &authv3.DeniedHttpResponse{
					Status: &typev3.HttpStatus{Code: typev3.StatusCode_Found},
					Headers: []*corev3.HeaderValueOption{
						headerOption("Cache-Control", "no-cache"),
						headerOption("Pragma", "no-cache"),
						deletedCookieHeader(stateCookieName),
						headerOption("Location", "https://me.tld/landing-page"),
					},
				},
			},
		}, response)
	})

	t.Run("CallbackHostWithExplicitPort", func(t *testing.T) {
		// The callback matches whether or not the Host header
		// carries the default port of the configured scheme.
		ff.tokenEncryptor.EXPECT().Decrypt("encryptedstatecookie").
			Return("expectedstate;expectednonce", nil)
		ff.roundTripper.EXPECT().RoundTrip(gomock.Any()).Return(&http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader("tokenresponsebody")),
		}, nil)
		tokenResponse := &oidc.TokenResponse{
			IDTokenJWT:    "idtokenjwt",
			IDTokenExpiry: time.Unix(2000, 0),
		}
		ff.parser.EXPECT().Parse("example-app", "expectednonce", "tokenresponsebody").
			Return(tokenResponse, nil)
		ff.sessionStore.EXPECT().Set(ctx, "session123", tokenResponse).Return(nil)

		response := &authv3.CheckResponse{}
		require.Equal(
			t,
			codes.Unauthenticated,
			filter.Process(ctx, checkRequest(
				"https",
				"me.tld:443",
				"/callback?code=value&state=expectedstate",
				map[string]string{
					"cookie": sessionIDCookieName + "=session123; " + stateCookieName + "=encryptedstatecookie",
				}), response))
	})

	t.Run("CallbackStateMismatch", func(t *testing.T) {
		// No token exchange happens when the state returned by
		// the identity provider does not match the state cookie.
		ff.tokenEncryptor.EXPECT().Decrypt("encryptedstatecookie").
			Return("expectedstate;expectednonce", nil)

		response := &authv3.CheckResponse{}
		require.Equal(
			t,
			codes.InvalidArgument,
			filter.Process(ctx, checkRequest(
				"https",
				"me.tld",
				"/callback?code=value&state=unexpectedstate",
				map[string]string{
					"cookie": sessionIDCookieName + "=session123; " + stateCookieName + "=encryptedstatecookie",
				}), response))
		testutil.RequireEqualProto(t, &authv3.CheckResponse{
			HttpResponse: &authv3.CheckResponse_DeniedResponse{
				DeniedResponse: &authv3.DeniedHttpResponse{
					Headers: []*corev3.HeaderValueOption{
						headerOption("Cache-Control", "no-cache"),
						headerOption("Pragma", "no-cache"),
						deletedCookieHeader(stateCookieName),
					},
				},
			},
		}, response)
	})

	t.Run("CallbackMissingStateCookie", func(t *testing.T) {
		response := &authv3.CheckResponse{}
		require.Equal(
			t,
			codes.InvalidArgument,
			filter.Process(ctx, checkRequest(
				"https",
				"me.tld",
				"/callback?code=value&state=expectedstate",
				sessionCookieHeaders), response))
	})

	t.Run("CallbackUndecryptableStateCookie", func(t *testing.T) {
		ff.tokenEncryptor.EXPECT().Decrypt("tamperedstatecookie").
			Return("", status.Error(codes.InvalidArgument, "Failed to decrypt ciphertext"))

		response := &authv3.CheckResponse{}
		require.Equal(
			t,
			codes.InvalidArgument,
			filter.Process(ctx, checkRequest(
				"https",
				"me.tld",
				"/callback?code=value&state=expectedstate",
				map[string]string{
					"cookie": sessionIDCookieName + "=session123; " + stateCookieName + "=tamperedstatecookie",
				}), response))
	})

	t.Run("CallbackMissingCode", func(t *testing.T) {
		ff.tokenEncryptor.EXPECT().Decrypt("encryptedstatecookie").
			Return("expectedstate;expectednonce", nil)

		response := &authv3.CheckResponse{}
		require.Equal(
			t,
			codes.InvalidArgument,
			filter.Process(ctx, checkRequest(
				"https",
				"me.tld",
				"/callback?state=expectedstate",
				map[string]string{
					"cookie": sessionIDCookieName + "=session123; " + stateCookieName + "=encryptedstatecookie",
				}), response))
	})

	t.Run("CallbackTokenEndpointUnavailable", func(t *testing.T) {
		ff.tokenEncryptor.EXPECT().Decrypt("encryptedstatecookie").
			Return("expectedstate;expectednonce", nil)
		ff.roundTripper.EXPECT().RoundTrip(gomock.Any()).
			Return(nil, status.Error(codes.Unavailable, "Connection refused"))
		ff.errorLogger.EXPECT().Log(gomock.Any())

		response := &authv3.CheckResponse{}
		require.Equal(
			t,
			codes.Internal,
			filter.Process(ctx, checkRequest(
				"https",
				"me.tld",
				"/callback?code=value&state=expectedstate",
				map[string]string{
					"cookie": sessionIDCookieName + "=session123; " + stateCookieName + "=encryptedstatecookie",
				}), response))
	})

	t.Run("CallbackTokenEndpointRejected", func(t *testing.T) {
		ff.tokenEncryptor.EXPECT().Decrypt("encryptedstatecookie").
			Return("expectedstate;expectednonce", nil)
		ff.roundTripper.EXPECT().RoundTrip(gomock.Any()).Return(&http.Response{
			StatusCode: http.StatusForbidden,
			Body:       io.NopCloser(strings.NewReader(`{"error":"access_denied"}`)),
		}, nil)

		response := &authv3.CheckResponse{}
		require.Equal(
			t,
			codes.Unknown,
			filter.Process(ctx, checkRequest(
				"https",
				"me.tld",
				"/callback?code=value&state=expectedstate",
				map[string]string{
					"cookie": sessionIDCookieName + "=session123; " + stateCookieName + "=encryptedstatecookie",
				}), response))
	})

	t.Run("CallbackParserRejected", func(t *testing.T) {
		ff.tokenEncryptor.EXPECT().Decrypt("encryptedstatecookie").
			Return("expectedstate;expectednonce", nil)
		ff.roundTripper.EXPECT().RoundTrip(gomock.Any()).Return(&http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader("tokenresponsebody")),
		}, nil)
		ff.parser.EXPECT().Parse("example-app", "expectednonce", "tokenresponsebody").
			Return(nil, status.Error(codes.InvalidArgument, "ID token nonce does not match the authorization request"))
		ff.errorLogger.EXPECT().Log(gomock.Any())

		response := &authv3.CheckResponse{}
		require.Equal(
			t,
			codes.InvalidArgument,
			filter.Process(ctx, checkRequest(
				"https",
				"me.tld",
				"/callback?code=value&state=expectedstate",
				map[string]string{
					"cookie": sessionIDCookieName + "=session123; " + stateCookieName + "=encryptedstatecookie",
				}), response))
	})
}

func TestOIDCFilterWithAccessToken(t *testing.T) {
	ctrl, ctx := gomock.WithContext(context.Background(), t)

	ff := newFilterFixture(ctrl)
	configuration := newOIDCConfiguration()
	configuration.AccessToken = &config.HeaderForwarding{Header: "X-Access-Token"}
	filter := ff.newFilter(configuration)

	sessionCookieHeaders := map[string]string{
		"cookie": sessionIDCookieName + "=session123",
	}

	t.Run("BothHeadersInjected", func(t *testing.T) {
		ff.sessionStore.EXPECT().Get(ctx, "session123").Return(&oidc.TokenResponse{
			IDTokenJWT:        "idtokenjwt",
			IDTokenExpiry:     time.Unix(2000, 0),
			AccessToken:       "access-token-value",
			AccessTokenExpiry: time.Unix(2000, 0),
		}, nil)
		ff.clock.EXPECT().Now().Return(time.Unix(1000, 0))

		response := &authv3.CheckResponse{}
		require.Equal(
			t,
			codes.OK,
			filter.Process(ctx, checkRequest("https", "me.tld", "/foo", sessionCookieHeaders), response))
		testutil.RequireEqualProto(t, &authv3.CheckResponse{
			HttpResponse: &authv3.CheckResponse_OkResponse{
				OkResponse: &authv3.OkHttpResponse{
					Headers: []*corev3.HeaderValueOption{
						headerOption("Authorization", "Bearer idtokenjwt"),
						headerOption("X-Access-Token", "access-token-value"),
					},
				},
			},
		}, response)
	})

	t.Run("AccessTokenExpiryOptional", func(t *testing.T) {
		// An access token without a reported expiry is served for
		// as long as the ID token is valid.
		ff.sessionStore.EXPECT().Get(ctx, "session123").Return(&oidc.TokenResponse{
			IDTokenJWT:    "idtokenjwt",
			IDTokenExpiry: time.Unix(2000, 0),
			AccessToken:   "access-token-value",
		}, nil)
		ff.clock.EXPECT().Now().Return(time.Unix(1000, 0))

		response := &authv3.CheckResponse{}
		require.Equal(
			t,
			codes.OK,
			filter.Process(ctx, checkRequest("https", "me.tld", "/foo", sessionCookieHeaders), response))
	})

	t.Run("ExpiredAccessToken", func(t *testing.T) {
		ff.sessionStore.EXPECT().Get(ctx, "session123").Return(&oidc.TokenResponse{
			IDTokenJWT:        "idtokenjwt",
			IDTokenExpiry:     time.Unix(2000, 0),
			AccessToken:       "access-token-value",
			AccessTokenExpiry: time.Unix(500, 0),
		}, nil)
		ff.clock.EXPECT().Now().Return(time.Unix(1000, 0))
		ff.expectAuthorizationTokens()

		response := &authv3.CheckResponse{}
		require.Equal(
			t,
			codes.Unauthenticated,
			filter.Process(ctx, checkRequest("https", "me.tld", "/foo", sessionCookieHeaders), response))
	})

	t.Run("MissingAccessToken", func(t *testing.T) {
		// A session without an access token cannot satisfy the
		// configured header, so the user agent re-authenticates.
		ff.sessionStore.EXPECT().Get(ctx, "session123").Return(&oidc.TokenResponse{
			IDTokenJWT:    "idtokenjwt",
			IDTokenExpiry: time.Unix(2000, 0),
		}, nil)
		ff.expectAuthorizationTokens()

		response := &authv3.CheckResponse{}
		require.Equal(
			t,
			codes.Unauthenticated,
			filter.Process(ctx, checkRequest("https", "me.tld", "/foo", sessionCookieHeaders), response))
		testutil.RequireEqualProto(t, &authv3.CheckResponse{
			HttpResponse: &authv3.CheckResponse_DeniedResponse{
				DeniedResponse: &authv3.DeniedHttpResponse{
					Status:  &typev3.HttpStatus{Code: typev3.StatusCode_Found},
					Headers: redirectToIdPHeaders(),
				},
			},
		}, response)
	})

	t.Run("CallbackWithoutAccessToken", func(t *testing.T) {
		// A token endpoint response lacking an access token is
		// rejected when the access token header is configured.
		ff.tokenEncryptor.EXPECT().Decrypt("encryptedstatecookie").
			Return("expectedstate;expectednonce", nil)
		ff.roundTripper.EXPECT().RoundTrip(gomock.Any()).Return(&http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader("tokenresponsebody")),
		}, nil)
		ff.parser.EXPECT().Parse("example-app", "expectednonce", "tokenresponsebody").
			Return(&oidc.TokenResponse{
				IDTokenJWT:    "idtokenjwt",
				IDTokenExpiry: time.Unix(2000, 0),
			}, nil)

		response := &authv3.CheckResponse{}
		require.Equal(
			t,
			codes.InvalidArgument,
			filter.Process(ctx, checkRequest(
				"https",
				"me.tld",
				"/callback?code=value&state=expectedstate",
				map[string]string{
					"cookie": sessionIDCookieName + "=session123; " + stateCookieName + "=encryptedstatecookie",
				}), response))
	})
}

func TestOIDCFilterEnforceHTTPS(t *testing.T) {
	ctrl, ctx := gomock.WithContext(context.Background(), t)

	ff := newFilterFixture(ctrl)
	configuration := newOIDCConfiguration()
	configuration.EnforceHTTPS = true
	filter := ff.newFilter(configuration)

	t.Run("InsecureScheme", func(t *testing.T) {
		response := &authv3.CheckResponse{}
		require.Equal(
			t,
			codes.InvalidArgument,
			filter.Process(ctx, checkRequest("http", "me.tld", "/foo", nil), response))
		testutil.RequireEqualProto(t, &authv3.CheckResponse{
			HttpResponse: &authv3.CheckResponse_DeniedResponse{
				DeniedResponse: &authv3.DeniedHttpResponse{
					Headers: []*corev3.HeaderValueOption{
						headerOption("Cache-Control", "no-cache"),
						headerOption("Pragma", "no-cache"),
					},
				},
			},
		}, response)
	})

	t.Run("EmptySchemePermitted", func(t *testing.T) {
		// A TLS terminating proxy may strip the scheme, so its
		// absence is not treated as an insecure request.
		ff.sessionIDGenerator.EXPECT().Generate().Return("newsessionid", nil)
		ff.expectAuthorizationTokens()

		response := &authv3.CheckResponse{}
		require.Equal(
			t,
			codes.Unauthenticated,
			filter.Process(ctx, checkRequest("", "me.tld", "/foo", nil), response))
	})
}
