package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sunobot/wa-event-gateway/config"
)

// NewRouter assembles the full HTTP surface. Streaming routes carry no
// timeout middleware on purpose; they are bounded by client lifetime and the
// heartbeat keeps intermediaries from reaping them.
func NewRouter(
	cfg *config.Config,
	webhooks *WebhookHandler,
	sse *SSEHandler,
	poll *PollHandler,
	tokens *TokenHandler,
	instances *InstancesHandler,
	me *MeHandler,
	prompts *PromptHandler,
	health *HealthHandler,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Liveness and metrics are unauthenticated for scrapers.
	r.Get("/health", health.Health)
	r.Handle("/metrics", promhttp.Handler())

	// Provider-facing ingest. The provider authenticates by knowing the
	// URL; payload-level garbage is tolerated, see WebhookHandler.
	r.Route("/webhook", func(r chi.Router) {
		r.Get("/", webhooks.Describe)
		r.Post("/", webhooks.Receive)
		r.Get("/{instance}", webhooks.Describe)
		r.Post("/{instance}", webhooks.Receive)
	})

	// Client-facing streams, gated by capability token in the query. These
	// share the /instances prefix but not the API-key guard: the token IS
	// the credential here.
	r.Get("/instances/{instance}/events", sse.Stream)
	r.Get("/instances/{instance}/events/poll", poll.Poll)

	// Management surface behind the gateway API key.
	r.Group(func(r chi.Router) {
		r.Use(RequireAPIKey(cfg.APIKey))

		r.Post("/instances", instances.Create)
		r.Get("/instances", instances.List)
		r.Get("/instances/overview", instances.ListOverview)

		r.Get("/instances/{instance}", instances.Overview)
		r.Delete("/instances/{instance}", instances.Delete)
		r.Post("/instances/{instance}/sse-token", tokens.Issue)
		r.Get("/instances/{instance}/connect", instances.Connect)
		r.Post("/instances/{instance}/restart", instances.Restart)
		r.Delete("/instances/{instance}/logout", instances.Logout)
		r.Get("/instances/{instance}/connection-state", instances.ConnectionState)
		r.Post("/instances/{instance}/presence", instances.SetPresence)
		r.Get("/instances/{instance}/webhook", instances.GetWebhook)
		r.Post("/instances/{instance}/webhook", instances.SetWebhook)
		r.Post("/instances/{instance}/message/media", instances.SendMedia)

		r.Get("/me", me.Me)

		r.Get("/prompt", prompts.Get)
		r.Post("/prompt", prompts.Save)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})

	return r
}
