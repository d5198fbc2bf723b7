// Package prometheus provides the /metrics route for the pipeline's
// monitoring endpoint. The route shows all the metrics registered with the
// Prometheus DefaultRegisterer.
package prometheus

import (
	"context"
	"net/http"
	"runtime/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "prometheus")

// Service serves Prometheus metrics while a pipeline run is in flight.
type Service struct {
	server     *http.Server
	failStatus error
}

// NewService sets up a new instance for a given address host:port. An empty
// host will match with any IP so an address like ":8090" is acceptable.
func NewService(addr string) *Service {
	s := &Service{}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK\n")); err != nil {
			log.WithError(err).Debug("Failed to write healthz response")
		}
	})
	mux.HandleFunc("/goroutinez", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		if err := pprof.Lookup("goroutine").WriteTo(w, 2); err != nil {
			log.WithError(err).Error("Failed to write goroutine dump")
		}
	})

	s.server = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start the prometheus service.
func (s *Service) Start() {
	go func() {
		err := s.server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Could not listen to host:port")
			s.failStatus = err
		}
	}()
}

// Stop the service gracefully.
func (s *Service) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Status checks for any service failure conditions.
func (s *Service) Status() error {
	return s.failStatus
}
