package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lfgraphics/khadimemillat-backend/api/controllers"
	webhookcontrollers "github.com/lfgraphics/khadimemillat-backend/api/controllers/webhooks"
	"github.com/lfgraphics/khadimemillat-backend/api/middleware"
	"github.com/lfgraphics/khadimemillat-backend/internal/conversations"
	"github.com/lfgraphics/khadimemillat-backend/internal/items"
	"github.com/lfgraphics/khadimemillat-backend/internal/reservations"
	"github.com/lfgraphics/khadimemillat-backend/internal/settlements"
	razorpaywebhook "github.com/lfgraphics/khadimemillat-backend/internal/webhooks/razorpay"
	"github.com/lfgraphics/khadimemillat-backend/pkg/config"
	"github.com/lfgraphics/khadimemillat-backend/pkg/db"
	"github.com/lfgraphics/khadimemillat-backend/pkg/logger"
	"github.com/lfgraphics/khadimemillat-backend/pkg/razorpay"
	"github.com/lfgraphics/khadimemillat-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	razorpayClient *razorpay.Client,
	webhookGuard *razorpaywebhook.IdempotencyGuard,
	itemsService items.Service,
	reservationsService reservations.Service,
	settlementsService settlements.Service,
	conversationsService conversations.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/webhooks", func(r chi.Router) {
		r.Post("/razorpay", webhookcontrollers.RazorpayWebhook(settlementsService, razorpayClient, webhookGuard, logg))
	})

	// Catalog browsing needs no account.
	r.Route("/api/items", func(r chi.Router) {
		r.Get("/", controllers.ItemList(itemsService, logg))
		r.Get("/{itemId}", controllers.ItemDetail(itemsService, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/reservations", func(r chi.Router) {
			r.Get("/", controllers.ReservationList(reservationsService, logg))
			r.Get("/{reservationId}", controllers.ReservationDetail(reservationsService, logg))
			r.Post("/{reservationId}/release", controllers.ReservationRelease(reservationsService, logg))
		})

		r.Route("/purchases", func(r chi.Router) {
			r.Post("/", controllers.PurchaseInitiate(settlementsService, logg))
			r.Post("/confirm", controllers.PurchaseConfirm(settlementsService, logg))
		})

		r.Route("/conversations/{conversationId}", func(r chi.Router) {
			r.Get("/markers", controllers.ConversationMarkers(conversationsService, logg))
			r.Post("/payment-request", controllers.ConversationAttachPaymentRequest(conversationsService, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/items", func(r chi.Router) {
			r.Post("/", controllers.ItemCreate(itemsService, logg))
			r.Post("/{itemId}/restock", controllers.ItemRestock(itemsService, logg))
			r.Put("/{itemId}/listed", controllers.ItemSetListed(itemsService, logg))
		})

		r.Route("/settlements", func(r chi.Router) {
			r.Get("/", controllers.SettlementList(settlementsService, logg))
			r.Get("/{reservationId}", controllers.SettlementDetail(settlementsService, logg))
		})
	})

	return r
}
