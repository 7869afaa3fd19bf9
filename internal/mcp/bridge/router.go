package bridge

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/stockmcp/internal/health"
	"github.com/MrWong99/stockmcp/internal/observe"
)

// RouterConfig holds what [NewRouter] mounts. Only Bridge is required.
type RouterConfig struct {
	Bridge    *Bridge
	Discovery Discovery

	// Health, when set, serves /healthz and /readyz.
	Health *health.Handler

	// Metrics, when set, serves /metrics. Usually promhttp.Handler().
	Metrics http.Handler

	// Observe instruments every request. Defaults to
	// [observe.DefaultMetrics].
	Observe *observe.Metrics
}

// NewRouter returns the bridge's HTTP handler: permissive CORS, the
// discovery document, ops endpoints, and the MCP SSE transport on every
// other path.
func NewRouter(cfg RouterConfig) http.Handler {
	m := cfg.Observe
	if m == nil {
		m = observe.DefaultMetrics()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions, http.MethodHead},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))
	r.Use(observe.Middleware(m))

	r.Get(DiscoveryPath, cfg.Discovery.ServeHTTP)
	if cfg.Health != nil {
		cfg.Health.Register(r)
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	sse := mcpsdk.NewSSEHandler(func(*http.Request) *mcpsdk.Server {
		return cfg.Bridge.Server()
	}, nil)
	r.Handle("/*", sse)
	return r
}
