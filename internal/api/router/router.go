package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lexpoint/leadforms/internal/events"
	"github.com/lexpoint/leadforms/internal/forms"
	httpmiddleware "github.com/lexpoint/leadforms/internal/http/middleware"
	"github.com/lexpoint/leadforms/internal/http/respond"
	"github.com/lexpoint/leadforms/internal/intake"
	"github.com/lexpoint/leadforms/internal/leads"
	"github.com/lexpoint/leadforms/internal/webhook"
	"github.com/lexpoint/leadforms/pkg/logging"
)

const adminClockSkew = 30 * time.Second

// Config holds router configuration. Nil handlers leave their routes unmounted.
type Config struct {
	Logger             *logging.Logger
	FormsHandler       *forms.Handler
	IntakeHandler      *intake.Handler
	WebhookHandler     *webhook.Handler
	EventsHandler      *events.Handler
	LeadsHandler       *leads.Handler
	AdminAuthSecret    string
	AdminIssuer        string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Browser-facing form endpoints honour the configured origin list. Group
	// middleware only wraps registered routes, so each path also answers OPTIONS.
	r.Group(func(public chi.Router) {
		if len(cfg.CORSAllowedOrigins) > 0 {
			public.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
		}
		if cfg.FormsHandler != nil {
			public.Get("/forms/resolve", cfg.FormsHandler.Resolve)
			public.Options("/forms/resolve", noContent)
		}
		if cfg.IntakeHandler != nil {
			submit := http.HandlerFunc(cfg.IntakeHandler.Submit)
			if cfg.RateLimitRPS > 0 {
				public.With(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)).Post("/forms/submit", submit)
			} else {
				public.Post("/forms/submit", submit)
			}
			public.Options("/forms/submit", noContent)
		}
		if cfg.EventsHandler != nil {
			public.Post("/events/conversion", cfg.EventsHandler.TrackConversion)
			public.Options("/events/conversion", noContent)
		}
	})

	// Third-party lead sources post from anywhere; the webhook routes carry their own CORS.
	if cfg.WebhookHandler != nil {
		r.Mount("/webhooks", cfg.WebhookHandler.Routes())
	}

	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret,
				httpmiddleware.WithIssuer(cfg.AdminIssuer),
				httpmiddleware.WithLeeway(adminClockSkew),
			))
			if cfg.FormsHandler != nil {
				admin.Mount("/forms", cfg.FormsHandler.AdminRoutes())
			}
			if cfg.LeadsHandler != nil {
				admin.Get("/leads", cfg.LeadsHandler.ListLeads)
				admin.Get("/leads/{leadID}", cfg.LeadsHandler.GetLead)
			}
			if cfg.WebhookHandler != nil {
				admin.Mount("/webhook", cfg.WebhookHandler.AdminRoutes())
			}
		})
	}

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func noContent(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
