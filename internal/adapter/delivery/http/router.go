// Package http provides the HTTP delivery layer for the URL shortener service:
// a JSON API for shortening and inspecting URLs and a top-level redirect route.
package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/vadimbarashkov/expiring-url-shortener/internal/metrics"
)

// ReservedPaths lists the fixed top-level path segments of the router. A short
// code equal to one of them would never reach the redirect route.
var ReservedPaths = []string{"api", "docs", "metrics", "swagger"}

type routerOptions struct {
	baseURL  string
	docsPath string
	now      func() time.Time
}

type RouterOption func(*routerOptions)

// WithBaseURL sets the prefix of returned short links, e.g. "https://sho.rt".
func WithBaseURL(baseURL string) RouterOption {
	return func(o *routerOptions) {
		o.baseURL = baseURL
	}
}

// WithDocsPath sets the file served at /docs/swagger.yml.
func WithDocsPath(path string) RouterOption {
	return func(o *routerOptions) {
		if path != "" {
			o.docsPath = path
		}
	}
}

func WithClock(now func() time.Time) RouterOption {
	return func(o *routerOptions) {
		o.now = now
	}
}

// NewRouter initializes a Chi router with middleware and the URL shortener routes.
func NewRouter(logger *httplog.Logger, urlUseCase urlUseCase, opts ...RouterOption) *chi.Mux {
	options := routerOptions{
		docsPath: "./docs/swagger.yml",
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&options)
	}

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"POST", "GET", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics)

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))

	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, options.docsPath)
	})

	h := newURLHandler(urlUseCase, newValidator(), options.baseURL, options.now)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", handlePing)

		r.Route("/shorten", func(r chi.Router) {
			r.Post("/", h.shortenURL)

			r.Route("/{shortCode}", func(r chi.Router) {
				r.Get("/", h.resolveShortCode)
				r.Get("/stats", h.getURLStats)
			})
		})

		r.Route("/urls", func(r chi.Router) {
			r.Get("/", h.listURLs)
			r.Delete("/expired", h.purgeExpiredURLs)
		})
	})

	r.Get("/{shortCode}", h.redirect)

	return r
}

// requestMetrics observes request latency labelled by the matched route pattern,
// so short codes do not end up as label values.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		metrics.RecordHTTPRequest(r.Method, route, strconv.Itoa(status), time.Since(start))
	})
}
