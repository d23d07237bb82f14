package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openagora/agora-backend/api/controllers"
	"github.com/openagora/agora-backend/api/middleware"
	"github.com/openagora/agora-backend/internal/notifications"
	"github.com/openagora/agora-backend/internal/tendering"
	"github.com/openagora/agora-backend/internal/wallet"
	"github.com/openagora/agora-backend/pkg/config"
	"github.com/openagora/agora-backend/pkg/logger"
)

// RouterParams groups everything the HTTP surface needs.
type RouterParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            controllers.Pinger
	Redis         controllers.Pinger
	PubSub        controllers.Pinger
	Tendering     tendering.Service
	Wallets       wallet.Service
	Notifications notifications.Service
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": params.DB,
			"redis":    params.Redis,
			"pubsub":   params.PubSub,
		}))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireAgent(logg))

		r.Route("/asks", func(r chi.Router) {
			r.Post("/", controllers.CreateAsk(params.Tendering, logg))
			r.Get("/", controllers.ListAsks(params.Tendering, logg))
			r.Get("/{askID}", controllers.GetAsk(params.Tendering, logg))
			r.Post("/{askID}/cancel", controllers.CancelAsk(params.Tendering, logg))
			r.Get("/{askID}/bids", controllers.ListBids(params.Tendering, logg))
		})

		r.Route("/bids", func(r chi.Router) {
			r.Post("/", controllers.PlaceBid(params.Tendering, logg))
			r.Get("/{bidID}", controllers.GetBid(params.Tendering, logg))
			r.Post("/{bidID}/accept", controllers.AcceptBid(params.Tendering, logg))
			r.Post("/{bidID}/delivery", controllers.SubmitDelivery(params.Tendering, logg))
		})

		r.Route("/wallets", func(r chi.Router) {
			r.Post("/", controllers.EnsureWallet(params.Wallets, logg))
			r.Get("/me", controllers.GetMyWallet(params.Wallets, logg))
			r.Get("/{walletID}/balance", controllers.GetBalance(params.Wallets, logg))
			r.Post("/{walletID}/deposits", controllers.Deposit(params.Wallets, logg))
			r.Post("/{walletID}/transfers", controllers.Transfer(params.Wallets, logg))
			r.Get("/{walletID}/transactions", controllers.ListTransactions(params.Wallets, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(params.Notifications, logg))
			r.Post("/{notificationID}/read", controllers.MarkNotificationRead(params.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(params.Notifications, logg))
		})
	})

	return r
}
