package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/binarycomp-backend/api/controllers"
	"github.com/angelmondragon/binarycomp-backend/api/middleware"
	"github.com/angelmondragon/binarycomp-backend/internal/members"
	"github.com/angelmondragon/binarycomp-backend/internal/notifications"
	"github.com/angelmondragon/binarycomp-backend/internal/orders"
	"github.com/angelmondragon/binarycomp-backend/internal/payouts"
	"github.com/angelmondragon/binarycomp-backend/internal/wallets"
	"github.com/angelmondragon/binarycomp-backend/pkg/config"
	"github.com/angelmondragon/binarycomp-backend/pkg/logger"
)

// Services are the domain handlers the API exposes.
type Services struct {
	Members       members.Service
	Wallets       wallets.Service
	Tree          controllers.TreeReader
	Infinity      controllers.TeamReader
	Orders        orders.Service
	Payouts       payouts.Service
	Notifications notifications.Service
}

// Infra is what the router needs besides the domain services. Idempotency is
// optional; without it keyed routes run unguarded.
type Infra struct {
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency middleware.IdempotencyStore
}

func NewRouter(cfg *config.Config, logg *logger.Logger, infra Infra, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    infra.DB,
			"redis": infra.Redis,
		}))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Idempotency wraps the endpoint so it sees the full route pattern.
		idem := func(h http.HandlerFunc) http.Handler {
			if infra.Idempotency == nil {
				return h
			}
			return middleware.Idempotency(infra.Idempotency, logg)(h)
		}

		r.Route("/members", func(r chi.Router) {
			r.Method(http.MethodPost, "/", idem(controllers.RegisterMember(svc.Members, logg)))
			r.Route("/{memberId}", func(r chi.Router) {
				r.Get("/", controllers.GetMember(svc.Members, logg))
				r.Method(http.MethodPatch, "/status", idem(controllers.UpdateMemberStatus(svc.Members, logg)))
				r.Method(http.MethodPut, "/wallet", idem(controllers.UpdateWallet(svc.Members, svc.Wallets, logg)))
				r.Get("/tree", controllers.MemberTree(svc.Tree, logg))
				r.Get("/downline/{targetId}", controllers.SearchDownline(svc.Tree, logg))
				r.Get("/infinity", controllers.InfinityTeam(svc.Infinity, logg))
				r.Get("/payouts/summary", controllers.PayoutSummary(svc.Payouts, logg))
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Method(http.MethodPost, "/", idem(controllers.CreateOrder(svc.Orders, logg)))
			r.Get("/{orderId}", controllers.GetOrder(svc.Orders, logg))
			r.Method(http.MethodPost, "/{orderId}/complete", idem(controllers.CompleteOrder(svc.Orders, logg)))
			r.Post("/{orderId}/cancel", controllers.CancelOrder(svc.Orders, logg))
		})

		r.Route("/payouts", func(r chi.Router) {
			r.Get("/", controllers.ListPayouts(svc.Payouts, logg))
			r.Get("/{payoutId}", controllers.GetPayout(svc.Payouts, logg))
			r.Method(http.MethodPost, "/{payoutId}/complete", idem(controllers.CompletePayout(svc.Payouts, logg)))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(svc.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(svc.Notifications, logg))
			r.Method(http.MethodPost, "/{notificationId}/read", idem(controllers.MarkNotificationRead(svc.Notifications, logg)))
		})
	})

	return r
}
