package httpjson

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/amirimatin/eventstore-probes/pkg/internal/logutil"
	"github.com/amirimatin/eventstore-probes/pkg/observability/tracing"
)

// StatusFunc returns the JSON document served at /status.
type StatusFunc func(ctx context.Context) ([]byte, error)

// HealthFunc reports whether the exporter considers the node healthy; a
// non-nil error turns /healthz into a 503 carrying the error text.
type HealthFunc func(ctx context.Context) error

// Server exposes the exporter's /metrics, /healthz and /status endpoints.
type Server struct {
	bind     string
	logger   *log.Logger
	tlsCfg   *tls.Config
	gatherer prometheus.Gatherer
	limiter  *rate.Limiter

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
}

// NewServer binds to the given TCP address (e.g., ":9810").
func NewServer(bind string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{bind: bind, logger: logger, gatherer: prometheus.DefaultGatherer}
}

// UseTLS enables TLS for the HTTP server using the provided config.
func (s *Server) UseTLS(cfg *tls.Config) *Server { s.tlsCfg = cfg; return s }

// UseGatherer serves /metrics from g instead of the default registry.
func (s *Server) UseGatherer(g prometheus.Gatherer) *Server {
	if g != nil {
		s.gatherer = g
	}
	return s
}

// UseRateLimit caps requests across all routes at rps with the given
// burst; excess requests get 429. A non-positive rps disables the limit.
func (s *Server) UseRateLimit(rps float64, burst int) *Server {
	if rps <= 0 {
		s.limiter = nil
		return s
	}
	if burst < 1 {
		burst = 1
	}
	s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return s
}

func (s *Server) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			logutil.Debugf(s.logger, "httpjson: rate limit exceeded by %s", req.RemoteAddr)
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// Handler builds the route table. A nil health func always reports ok.
func (s *Server) Handler(status StatusFunc, health HealthFunc) http.Handler {
	r := mux.NewRouter()
	r.Use(s.limit)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if health != nil {
			if err := health(req.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/status", func(w http.ResponseWriter, req *http.Request) {
		ctx, end := tracing.StartSpan(req.Context(), "http.status")
		defer end()
		data, err := status(ctx)
		if err != nil {
			http.Error(w, fmt.Sprintf("status error: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	}).Methods(http.MethodGet)
	return r
}

// Start launches the HTTP server. The server is shut down when the context
// is canceled.
func (s *Server) Start(ctx context.Context, status StatusFunc, health HealthFunc) error {
	ln, err := net.Listen("tcp", s.bind)
	if err != nil {
		return err
	}
	if s.tlsCfg != nil {
		ln = tls.NewListener(ln, s.tlsCfg)
	}
	srv := &http.Server{Handler: s.Handler(status, health), ReadHeaderTimeout: 5 * time.Second}

	s.mu.Lock()
	s.srv, s.ln = srv, ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = s.Stop(context.Background())
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logutil.Errorf(s.logger, "httpjson: server error: %v", err)
		}
	}()
	logutil.Infof(s.logger, "httpjson: listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.bind
}

// Stop attempts a graceful shutdown with a short timeout.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	c, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return srv.Shutdown(c)
}
