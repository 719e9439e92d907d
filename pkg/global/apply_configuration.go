// Package global applies configuration options that are independent
// of the service's purpose: logging, diagnostics endpoints and signal
// handling.
package global

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	// The pprof package does not provide a function for registering
	// its endpoints against an arbitrary mux. Load it to force
	// registration against the default mux, so we can forward
	// traffic to that mux instead.
	_ "net/http/pprof"

	"github.com/meshguard/authservice/pkg/config"
	"github.com/meshguard/authservice/pkg/util"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"golang.org/x/sync/errgroup"
)

// DiagnosticsServer exposes health probes, Prometheus metrics and
// pprof endpoints over plain HTTP. It is returned by
// ApplyConfiguration so that the caller can report readiness once all
// services are up.
type DiagnosticsServer struct {
	configuration *config.DiagnosticsHTTPServerConfiguration
	ready         chan struct{}
}

// SetReady updates the readiness probe to report ready.
func (ds *DiagnosticsServer) SetReady() {
	close(ds.ready)
}

func (ds *DiagnosticsServer) isReady() bool {
	select {
	case <-ds.ready:
		return true
	default:
		return false
	}
}

// Serve runs the diagnostics HTTP server until the termination context
// is cancelled. When no diagnostics server is configured, it simply
// blocks until termination.
func (ds *DiagnosticsServer) Serve(terminationContext context.Context) error {
	if ds.configuration == nil {
		<-terminationContext.Done()
		return nil
	}

	router := mux.NewRouter()
	router.HandleFunc("/-/healthy", func(http.ResponseWriter, *http.Request) {})
	router.HandleFunc("/-/ready", func(w http.ResponseWriter, _ *http.Request) {
		if !ds.isReady() {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	})
	if ds.configuration.EnablePrometheus {
		router.Handle("/metrics", promhttp.Handler())
	}
	if ds.configuration.EnablePprof {
		router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	}

	server := &http.Server{
		Addr:    ds.configuration.ListenAddress,
		Handler: router,
	}
	go func() {
		<-terminationContext.Done()
		server.Shutdown(context.Background())
	}()
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return util.StatusWrap(err, "Diagnostics server")
	}
	return nil
}

// ApplyConfiguration applies process-wide configuration options and
// returns the diagnostics server to be run by the caller.
func ApplyConfiguration(configuration *config.GlobalConfiguration) (*DiagnosticsServer, error) {
	var logPaths []string
	var diagnosticsConfiguration *config.DiagnosticsHTTPServerConfiguration
	if configuration != nil {
		logPaths = configuration.LogPaths
		diagnosticsConfiguration = configuration.DiagnosticsHTTPServer
	}

	logWriters := append(make([]io.Writer, 0, len(logPaths)+1), os.Stderr)
	for _, logPath := range logPaths {
		w, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o666)
		if err != nil {
			return nil, util.StatusWrapf(err, "Failed to open log path %#v", logPath)
		}
		logWriters = append(logWriters, w)
	}
	log.SetOutput(io.MultiWriter(logWriters...))

	return &DiagnosticsServer{
		configuration: diagnosticsConfiguration,
		ready:         make(chan struct{}),
	}, nil
}

// ServeDiagnostics runs DiagnosticsServer.Serve inside a goroutine
// managed by the provided errgroup and returns immediately.
func ServeDiagnostics(terminationContext context.Context, terminationGroup *errgroup.Group, diagnosticsServer *DiagnosticsServer) {
	terminationGroup.Go(func() error {
		return diagnosticsServer.Serve(terminationContext)
	})
}

// InstallTerminationSignalHandler starts watching for SIGTERM and
// SIGINT. The first signal received cancels the returned context; a
// second signal terminates the program immediately.
func InstallTerminationSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	c := make(chan os.Signal, 1)
	signalsToCapture := []os.Signal{os.Interrupt, syscall.SIGTERM}
	signal.Notify(c, signalsToCapture...)
	go func() {
		sig := <-c
		log.Printf("Caught signal %q, shutting down", sig)
		cancel()
		signal.Reset(signalsToCapture...)
	}()
	return ctx
}
