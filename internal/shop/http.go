package shop

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"PocketBazaar/pkg/kit"
)

type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsToken string
}

func NewHandler(s *Server, deps HTTPDeps) http.Handler {
	r := chi.NewRouter()
	kit.Use(r, deps.Log)

	if deps.Registry != nil {
		metrics := s.Session.Metrics
		if metrics == nil {
			metrics = kit.NewMetrics(deps.Registry)
		}
		r.Use(metrics.Middleware(deps.Service, kit.ChiRoutePatternOrPath))
		kit.MountMetrics(r, deps.Registry, deps.MetricsToken)
	}

	r.Mount("/", s.Routes())
	return r
}
