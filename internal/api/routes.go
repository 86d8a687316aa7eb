package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/riandyrn/otelchi"
	otelchimetric "github.com/riandyrn/otelchi/metric"
	"go.opentelemetry.io/otel"

	"github.com/socialchef/scribe/internal/sentry"
)

// Router builds the dev server's chi router.
func (s *Server) Router(serviceName string) chi.Router {
	r := chi.NewRouter()

	r.Use(otelchi.Middleware(serviceName,
		otelchi.WithChiRoutes(r),
		otelchi.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health"
		}),
	))

	metricCfg := otelchimetric.NewBaseConfig(serviceName, otelchimetric.WithMeterProvider(otel.GetMeterProvider()))
	r.Use(otelchimetric.NewRequestDurationMillis(metricCfg))
	r.Use(otelchimetric.NewRequestInFlight(metricCfg))
	r.Use(otelchimetric.NewResponseSizeBytes(metricCfg))

	r.Use(sentry.HTTPMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/events", func(r chi.Router) {
		r.Post("/s3", s.HandleS3Event)
		r.Post("/cfn", s.HandleCFNEvent)
	})

	return r
}
