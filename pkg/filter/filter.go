// Package filter declares the interface of per-request authorization
// filters driven by the external authorization service.
package filter

import (
	"context"

	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"

	"google.golang.org/grpc/codes"
)

// Filter makes the authorization decision for a single request. A
// filter inspects the CheckRequest, fills in either the OK or the
// denied variant of the CheckResponse, and reports the decision as a
// gRPC status code. Filters never fail the RPC itself: every failure
// mode maps to a code and matching response headers.
//
// Filters are invoked concurrently and must not retain per-request
// state between calls. Cancellation of the provided context must
// propagate into any outgoing network calls.
type Filter interface {
	Process(ctx context.Context, request *authv3.CheckRequest, response *authv3.CheckResponse) codes.Code
}
