package http_test

import (
	"net/url"
	"testing"

	"github.com/meshguard/authservice/pkg/config"
	as_http "github.com/meshguard/authservice/pkg/http"
	"github.com/stretchr/testify/require"
)

func TestEncodeQueryData(t *testing.T) {
	// Keys must come out in sorted order, so that emitted redirect
	// URLs are deterministic.
	require.Equal(
		t,
		"client_id=example-app&redirect_uri=https%3A%2F%2Fme.tld%2Fcallback&response_type=code",
		as_http.EncodeQueryData(url.Values{
			"response_type": []string{"code"},
			"client_id":     []string{"example-app"},
			"redirect_uri":  []string{"https://me.tld/callback"},
		}))
}

func TestDecodeQueryData(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		queryData, err := as_http.DecodeQueryData("code=value&state=expectedstate")
		require.NoError(t, err)
		require.Equal(t, "value", queryData.Get("code"))
		require.Equal(t, "expectedstate", queryData.Get("state"))
	})

	t.Run("Malformed", func(t *testing.T) {
		_, err := as_http.DecodeQueryData("state=%zz")
		require.Error(t, err)
	})
}

func TestDecodePath(t *testing.T) {
	t.Run("WithQuery", func(t *testing.T) {
		path, query := as_http.DecodePath("/callback?code=value&state=expectedstate")
		require.Equal(t, "/callback", path)
		require.Equal(t, "code=value&state=expectedstate", query)
	})

	t.Run("WithoutQuery", func(t *testing.T) {
		path, query := as_http.DecodePath("/foo")
		require.Equal(t, "/foo", path)
		require.Empty(t, query)
	})

	t.Run("QuestionMarkInQuery", func(t *testing.T) {
		path, query := as_http.DecodePath("/foo?a=b?c")
		require.Equal(t, "/foo", path)
		require.Equal(t, "a=b?c", query)
	})
}

func TestToURL(t *testing.T) {
	t.Run("DefaultHTTPSPort", func(t *testing.T) {
		require.Equal(t, "https://me.tld/callback", as_http.ToURL(&config.Endpoint{
			Scheme:   "https",
			Hostname: "me.tld",
			Port:     443,
			Path:     "/callback",
		}))
	})

	t.Run("DefaultHTTPPort", func(t *testing.T) {
		require.Equal(t, "http://me.tld/callback", as_http.ToURL(&config.Endpoint{
			Scheme:   "http",
			Hostname: "me.tld",
			Port:     80,
			Path:     "/callback",
		}))
	})

	t.Run("NonDefaultPort", func(t *testing.T) {
		require.Equal(t, "https://me.tld:8443/callback", as_http.ToURL(&config.Endpoint{
			Scheme:   "https",
			Hostname: "me.tld",
			Port:     8443,
			Path:     "/callback",
		}))
	})

	t.Run("SchemeMismatchedPort", func(t *testing.T) {
		// Port 443 is only the default for HTTPS.
		require.Equal(t, "http://me.tld:443/callback", as_http.ToURL(&config.Endpoint{
			Scheme:   "http",
			Hostname: "me.tld",
			Port:     443,
			Path:     "/callback",
		}))
	})
}

func TestEncodeBasicAuth(t *testing.T) {
	// Base64 of "example-app:ZXhhbXBsZS1hcHAtc2VjcmV0".
	require.Equal(
		t,
		"Basic ZXhhbXBsZS1hcHA6WlhoaGJYQnNaUzFoY0hBdGMyVmpjbVYw",
		as_http.EncodeBasicAuth("example-app", "ZXhhbXBsZS1hcHAtc2VjcmV0"))
}

func TestEncodeHeaderValue(t *testing.T) {
	t.Run("WithPreamble", func(t *testing.T) {
		require.Equal(t, "Bearer token", as_http.EncodeHeaderValue("Bearer", "token"))
	})

	t.Run("WithoutPreamble", func(t *testing.T) {
		require.Equal(t, "token", as_http.EncodeHeaderValue("", "token"))
	})
}
