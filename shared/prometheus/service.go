// Package prometheus serves the process's registered metrics plus a
// couple of operational debug routes over HTTP.
package prometheus

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "prometheus")

// StatusChecker reports the health of one collaborator (the pipeline,
// the block store, ...). A nil error means healthy.
type StatusChecker func() error

// Service serves Prometheus metrics via /metrics, plus /healthz and
// /goroutinez debug routes, on its own listener.
type Service struct {
	server     *http.Server
	checks     map[string]StatusChecker
	failStatus error
}

// Handler represents a path and handler func to serve on the same port as /metrics, /healthz, /goroutinez, etc.
type Handler struct {
	Path    string
	Handler func(http.ResponseWriter, *http.Request)
}

// NewService sets up a new instance for a given address host:port. An
// empty host will match with any IP so an address like ":2121" is
// perfectly acceptable. checks is consulted by /healthz; a nil map
// means /healthz always reports OK.
func NewService(addr string, checks map[string]StatusChecker, additionalHandlers ...Handler) *Service {
	s := &Service{checks: checks}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.healthzHandler)
	mux.HandleFunc("/goroutinez", s.goroutinezHandler)

	for _, h := range additionalHandlers {
		mux.HandleFunc(h.Path, h.Handler)
	}

	s.server = &http.Server{Addr: addr, Handler: mux}
	return s
}

func (s *Service) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	hasError := false
	var buf strings.Builder
	for name, check := range s.checks {
		status := "OK"
		if err := check(); err != nil {
			hasError = true
			status = "ERROR " + err.Error()
		}
		fmt.Fprintf(&buf, "%s: %s\n", name, status)
	}

	if hasError {
		w.WriteHeader(http.StatusInternalServerError)
		log.WithField("statuses", buf.String()).Warn("node is unhealthy")
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if _, err := w.Write([]byte(buf.String())); err != nil {
		log.WithError(err).Error("could not write healthz body")
	}
}

func (s *Service) goroutinezHandler(w http.ResponseWriter, _ *http.Request) {
	stack := debug.Stack()
	if _, err := w.Write(stack); err != nil {
		log.WithError(err).Error("could not write goroutine stack")
	}
	if err := pprof.Lookup("goroutine").WriteTo(w, 2); err != nil {
		log.WithError(err).Error("could not write pprof goroutines")
	}
}

// Start runs the HTTP server in its own goroutine, refusing to bind if
// the address is already in use.
func (s *Service) Start() {
	go func() {
		addrParts := strings.Split(s.server.Addr, ":")
		port := addrParts[len(addrParts)-1]
		conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%s", port), time.Second)
		if err == nil {
			_ = conn.Close()
			log.WithField("address", s.server.Addr).Warn("port already in use; cannot start prometheus service")
			return
		}

		log.WithField("address", s.server.Addr).Debug("starting prometheus service")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("prometheus service stopped")
			s.failStatus = err
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Service) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Status reports the most recent server-level failure, if any.
func (s *Service) Status() error {
	return s.failStatus
}
