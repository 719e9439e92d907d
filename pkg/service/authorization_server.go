// Package service exposes authorization filters through the Envoy
// external authorization gRPC protocol.
package service

import (
	"context"
	"time"

	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	"github.com/meshguard/authservice/pkg/clock"
	"github.com/meshguard/authservice/pkg/filter"

	rpcstatus "google.golang.org/genproto/googleapis/rpc/status"
)

type authorizationServer struct {
	filter         filter.Filter
	clock          clock.Clock
	defaultTimeout time.Duration
}

// NewAuthorizationServer creates a gRPC service that answers Check
// requests by running them through an authorization filter. The
// authorization decision travels inside the CheckResponse; the RPC
// itself never fails.
//
// When the calling proxy provides no deadline, defaultTimeout bounds
// the identity provider calls that the filter may perform.
func NewAuthorizationServer(filter filter.Filter, clock clock.Clock, defaultTimeout time.Duration) authv3.AuthorizationServer {
	return &authorizationServer{
		filter:         filter,
		clock:          clock,
		defaultTimeout: defaultTimeout,
	}
}

func (s *authorizationServer) Check(ctx context.Context, request *authv3.CheckRequest) (*authv3.CheckResponse, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = s.clock.NewContextWithTimeout(ctx, s.defaultTimeout)
		defer cancel()
	}

	response := &authv3.CheckResponse{}
	code := s.filter.Process(ctx, request, response)
	response.Status = &rpcstatus.Status{
		Code: int32(code),
	}
	return response, nil
}
