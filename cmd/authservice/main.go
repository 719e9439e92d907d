package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	"github.com/go-jose/go-jose/v3"
	"github.com/meshguard/authservice/pkg/clock"
	"github.com/meshguard/authservice/pkg/config"
	"github.com/meshguard/authservice/pkg/cryptor"
	oidc_filter "github.com/meshguard/authservice/pkg/filter/oidc"
	as_global "github.com/meshguard/authservice/pkg/global"
	as_grpc "github.com/meshguard/authservice/pkg/grpc"
	as_http "github.com/meshguard/authservice/pkg/http"
	"github.com/meshguard/authservice/pkg/oidc"
	"github.com/meshguard/authservice/pkg/random"
	"github.com/meshguard/authservice/pkg/service"
	"github.com/meshguard/authservice/pkg/session"
	"github.com/meshguard/authservice/pkg/util"

	"golang.org/x/sync/errgroup"

	"google.golang.org/grpc"
)

func main() {
	if len(os.Args) != 2 {
		log.Fatal("Usage: authservice authservice.jsonnet")
	}
	var configuration config.ApplicationConfiguration
	if err := config.UnmarshalFromFile(os.Args[1], &configuration); err != nil {
		log.Fatalf("Failed to read configuration from %s: %s", os.Args[1], err)
	}
	if err := config.ValidateOIDCConfiguration(configuration.OIDC); err != nil {
		log.Fatal("Invalid OIDC configuration: ", err)
	}
	oidcConfiguration := configuration.OIDC

	diagnosticsServer, err := as_global.ApplyConfiguration(configuration.Global)
	if err != nil {
		log.Fatal("Failed to apply global configuration options: ", err)
	}

	terminationContext := as_global.InstallTerminationSignalHandler()
	terminationGroup, terminationContext := errgroup.WithContext(terminationContext)
	as_global.ServeDiagnostics(terminationContext, terminationGroup, diagnosticsServer)

	systemClock := clock.SystemClock
	randomNumberGenerator := random.CryptoThreadSafeGenerator

	var keySet jose.JSONWebKeySet
	if err := json.Unmarshal([]byte(oidcConfiguration.JWKS), &keySet); err != nil {
		log.Fatal("Failed to parse JSON Web Key Set: ", err)
	}

	tokenEncryptor, err := cryptor.NewAESGCMTokenEncryptor(oidcConfiguration.CryptoSecret, randomNumberGenerator)
	if err != nil {
		log.Fatal("Failed to create token encryptor: ", err)
	}

	sessionStore := session.NewInMemoryStore(
		systemClock,
		time.Duration(oidcConfiguration.AbsoluteSessionTimeout)*time.Second,
		time.Duration(oidcConfiguration.IdleSessionTimeout)*time.Second)
	terminationGroup.Go(func() error {
		cleanupInterval := time.Duration(oidcConfiguration.SessionCleanupInterval) * time.Second
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-terminationContext.Done():
				return nil
			case <-ticker.C:
				sessionStore.RemoveAllExpired()
			}
		}
	})

	httpClient := &http.Client{
		Transport: as_http.NewMetricsRoundTripper(http.DefaultTransport, "TokenEndpoint"),
	}

	authorizationFilter := oidc_filter.NewFilter(
		oidcConfiguration,
		httpClient,
		oidc.NewJWKSTokenResponseParser(&keySet, systemClock),
		tokenEncryptor,
		session.NewRandomIDGenerator(randomNumberGenerator),
		sessionStore,
		randomNumberGenerator,
		systemClock,
		util.DefaultErrorLogger)
	authorizationServer := service.NewAuthorizationServer(
		authorizationFilter,
		systemClock,
		time.Duration(oidcConfiguration.IdPRequestTimeout)*time.Second)

	if err := as_grpc.NewServersFromConfigurationAndServe(
		terminationContext,
		terminationGroup,
		configuration.GrpcServers,
		func(s grpc.ServiceRegistrar) {
			authv3.RegisterAuthorizationServer(s, authorizationServer)
		}); err != nil {
		log.Fatal("Failed to create gRPC servers: ", err)
	}

	diagnosticsServer.SetReady()
	if err := terminationGroup.Wait(); err != nil && err != context.Canceled {
		log.Fatal(err)
	}
}
