package telemetry

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const httpScopeName = "github.com/weftworks/weft/dashboard"

// HTTPMiddleware counts dashboard requests per route and method. Returns
// next unchanged when telemetry is disabled.
func HTTPMiddleware(next http.Handler) http.Handler {
	if !Enabled() {
		return next
	}
	m := Meter(httpScopeName)
	reqs, _ := m.Int64Counter("weft.http.requests",
		metric.WithDescription("Dashboard HTTP requests by route"),
	)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if p := r.Pattern; p != "" {
			route = p
		}
		reqs.Add(r.Context(), 1, metric.WithAttributes(
			attribute.String("http.route", route),
			attribute.String("http.method", r.Method),
		))
		next.ServeHTTP(w, r)
	})
}
