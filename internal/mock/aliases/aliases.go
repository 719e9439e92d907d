package aliases

import (
	"net/http"
)

// This file contains aliases for some of the interfaces provided by the
// Go standard library. The only reason this file exists is to give
// MockGen a package of our own to generate mocks from, as it is only
// run against packages inside this module.

// RoundTripper is an alias of http.RoundTripper.
type RoundTripper = http.RoundTripper
